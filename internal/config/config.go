// Package config loads and validates Quarry configuration.
//
// Configuration comes from a YAML file (default ~/.quarry/config.yaml)
// merged over built-in defaults. The resulting Config struct is passed
// explicitly to component constructors; there is no global state.
package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	qerrors "github.com/quarrylabs/quarry/internal/errors"
)

// Config is the complete Quarry configuration.
type Config struct {
	DataDir     string            `yaml:"data_dir"`
	Chunking    ChunkingConfig    `yaml:"chunking"`
	Embeddings  EmbeddingsConfig  `yaml:"embeddings"`
	Search      SearchConfig      `yaml:"search"`
	Curate      CurateConfig      `yaml:"curate"`
	Performance PerformanceConfig `yaml:"performance"`
	LogLevel    string            `yaml:"log_level"`
}

// ChunkingConfig controls structural chunking.
type ChunkingConfig struct {
	// MaxChunkTokens is the token ceiling for a single chunk.
	MaxChunkTokens int `yaml:"max_chunk_tokens"`
	// OverlapTokens is the overlap between adjacent fallback windows.
	OverlapTokens int `yaml:"overlap_tokens"`
}

// EmbeddingsConfig configures the embedding provider.
type EmbeddingsConfig struct {
	// Provider selects the embedder: "ollama" or "static".
	Provider   string        `yaml:"provider"`
	Model      string        `yaml:"model"`
	Host       string        `yaml:"host"`
	Dimensions int           `yaml:"dimensions"`
	BatchSize  int           `yaml:"batch_size"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	CacheSize  int           `yaml:"cache_size"`
}

// SearchConfig configures hybrid search and fusion.
type SearchConfig struct {
	// VectorWeight and LexicalWeight must sum to 1.0.
	VectorWeight  float64 `yaml:"vector_weight"`
	LexicalWeight float64 `yaml:"lexical_weight"`

	// Candidate pool sizes per sub-search, before fusion.
	CandidatePoolVector  int `yaml:"candidate_pool_vector"`
	CandidatePoolLexical int `yaml:"candidate_pool_lexical"`

	// MaxResults is the fused result cap.
	MaxResults int `yaml:"max_results"`
	// MinScore drops fused results below this floor.
	MinScore float64 `yaml:"min_score"`
}

// CurateConfig configures context curation.
type CurateConfig struct {
	// TokenBudget is the default context package budget.
	TokenBudget int `yaml:"token_budget"`
}

// PerformanceConfig configures parallelism.
type PerformanceConfig struct {
	// IngestWorkers bounds chunking and embedding parallelism.
	IngestWorkers int `yaml:"ingest_workers"`
}

// DefaultDataDir returns ~/.quarry, falling back to the temp directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".quarry")
	}
	return filepath.Join(home, ".quarry")
}

// DefaultConfigPath returns the default config file location.
func DefaultConfigPath() string {
	return filepath.Join(DefaultDataDir(), "config.yaml")
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir: DefaultDataDir(),
		Chunking: ChunkingConfig{
			MaxChunkTokens: 512,
			OverlapTokens:  64,
		},
		Embeddings: EmbeddingsConfig{
			Provider:   "ollama",
			Model:      "nomic-embed-text",
			Host:       "http://localhost:11434",
			Dimensions: 768,
			BatchSize:  32,
			Timeout:    30 * time.Second,
			MaxRetries: 3,
			CacheSize:  1024,
		},
		Search: SearchConfig{
			VectorWeight:         0.6,
			LexicalWeight:        0.4,
			CandidatePoolVector:  50,
			CandidatePoolLexical: 50,
			MaxResults:           10,
			MinScore:             0.0,
		},
		Curate: CurateConfig{
			TokenBudget: 4096,
		},
		Performance: PerformanceConfig{
			IngestWorkers: 4,
		},
		LogLevel: "info",
	}
}

// Load reads the config file at path, merged over defaults.
// A missing file at the default location is not an error; an explicitly
// requested file that does not exist is.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return nil, qerrors.New(qerrors.ErrCodeConfigNotFound,
			fmt.Sprintf("cannot read config file %s", path), err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, qerrors.New(qerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("cannot parse config file %s", path), err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if sum := c.Search.VectorWeight + c.Search.LexicalWeight; math.Abs(sum-1.0) > 1e-9 {
		return qerrors.New(qerrors.ErrCodeConfigInvalid,
			fmt.Sprintf("search weights must sum to 1.0, got %.3f", sum), nil).
			WithSuggestion("set vector_weight and lexical_weight so they sum to 1.0")
	}
	if c.Search.VectorWeight < 0 || c.Search.LexicalWeight < 0 {
		return qerrors.New(qerrors.ErrCodeConfigInvalid, "search weights must be non-negative", nil)
	}
	if c.Search.MaxResults <= 0 {
		return qerrors.New(qerrors.ErrCodeConfigInvalid, "search.max_results must be positive", nil)
	}
	if c.Search.CandidatePoolVector < c.Search.MaxResults ||
		c.Search.CandidatePoolLexical < c.Search.MaxResults {
		return qerrors.New(qerrors.ErrCodeConfigInvalid,
			"candidate pools must be at least search.max_results", nil)
	}
	if c.Embeddings.Dimensions <= 0 {
		return qerrors.New(qerrors.ErrCodeConfigInvalid, "embeddings.dimensions must be positive", nil)
	}
	if c.Embeddings.BatchSize <= 0 {
		return qerrors.New(qerrors.ErrCodeConfigInvalid, "embeddings.batch_size must be positive", nil)
	}
	if c.Chunking.MaxChunkTokens <= 0 {
		return qerrors.New(qerrors.ErrCodeConfigInvalid, "chunking.max_chunk_tokens must be positive", nil)
	}
	if c.Chunking.OverlapTokens < 0 || c.Chunking.OverlapTokens >= c.Chunking.MaxChunkTokens {
		return qerrors.New(qerrors.ErrCodeConfigInvalid,
			"chunking.overlap_tokens must be non-negative and below max_chunk_tokens", nil)
	}
	if c.Curate.TokenBudget <= 0 {
		return qerrors.New(qerrors.ErrCodeConfigInvalid, "curate.token_budget must be positive", nil)
	}
	if c.Performance.IngestWorkers <= 0 {
		return qerrors.New(qerrors.ErrCodeConfigInvalid, "performance.ingest_workers must be positive", nil)
	}
	return nil
}

// Save writes the configuration to path as YAML.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
