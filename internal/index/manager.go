package index

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/gofrs/flock"

	qerrors "github.com/quarrylabs/quarry/internal/errors"
	"github.com/quarrylabs/quarry/internal/store"
)

const (
	vectorFileName   = "vectors.hnsw"
	lexicalDirName   = "lexical.bleve"
	metadataFileName = "metadata.db"
)

// Collection is the opened backing storage of one index.
type Collection struct {
	Info     Info
	Vector   *store.HNSWStore
	Lexical  *store.BleveIndex
	Metadata *store.MetadataStore

	dir string
}

// Save persists the vector graph. Bleve and SQLite write through on
// their own.
func (c *Collection) Save() error {
	if c.dir == "" {
		return nil
	}
	return c.Vector.Save(filepath.Join(c.dir, vectorFileName))
}

// Close closes all three stores.
func (c *Collection) Close() error {
	var firstErr error
	for _, closer := range []func() error{c.Vector.Close, c.Lexical.Close, c.Metadata.Close} {
		if err := closer(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Manager creates, opens, and destroys indexes. Administrative
// operations against one index name are serialized by an in-process
// mutex plus a cross-process file lock.
type Manager struct {
	registry *Registry
	dataDir  string // empty means fully in-memory (tests)
	logger   *slog.Logger

	mu    sync.Mutex
	names map[string]*sync.Mutex
	open  map[string]*Collection
}

// NewManager opens the registry under dataDir. An empty dataDir keeps
// everything in memory.
func NewManager(dataDir string, logger *slog.Logger) (*Manager, error) {
	if dataDir != "" {
		if err := os.MkdirAll(filepath.Join(dataDir, "collections"), 0o755); err != nil {
			return nil, qerrors.StoreUnavailable("create data directory", err)
		}
		if err := os.MkdirAll(filepath.Join(dataDir, "locks"), 0o755); err != nil {
			return nil, qerrors.StoreUnavailable("create lock directory", err)
		}
	}

	registry, err := OpenRegistry(dataDir)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		registry: registry,
		dataDir:  dataDir,
		logger:   logger,
		names:    make(map[string]*sync.Mutex),
		open:     make(map[string]*Collection),
	}, nil
}

// Registry exposes read access for listing.
func (m *Manager) Registry() *Registry { return m.registry }

// Close closes all open collections and the registry.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for name, col := range m.open {
		if err := col.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(m.open, name)
	}
	if err := m.registry.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// lockName serializes operations on one index name, in-process and
// across processes. The returned function releases both locks.
func (m *Manager) lockName(name string) (func(), error) {
	m.mu.Lock()
	nameMu, ok := m.names[name]
	if !ok {
		nameMu = &sync.Mutex{}
		m.names[name] = nameMu
	}
	m.mu.Unlock()

	nameMu.Lock()

	if m.dataDir == "" {
		return nameMu.Unlock, nil
	}

	fl := flock.New(filepath.Join(m.dataDir, "locks", name+".lock"))
	if err := fl.Lock(); err != nil {
		nameMu.Unlock()
		return nil, qerrors.StoreUnavailable("acquire index lock", err)
	}
	return func() {
		_ = fl.Unlock()
		nameMu.Unlock()
	}, nil
}

// Create builds a new index: vector collection first, then lexical,
// then the registry record. A failure mid-way tears down what was
// already created so no half-built pair survives.
func (m *Manager) Create(ctx context.Context, name string, dimension int) (*Info, error) {
	if name == "" {
		return nil, qerrors.New(qerrors.ErrCodeInvalidInput, "index name must not be empty", nil)
	}
	if dimension <= 0 {
		return nil, qerrors.New(qerrors.ErrCodeInvalidInput,
			fmt.Sprintf("embedding dimension must be positive, got %d", dimension), nil)
	}

	unlock, err := m.lockName(name)
	if err != nil {
		return nil, err
	}
	defer unlock()

	exists, err := m.registry.Exists(ctx, name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, qerrors.New(qerrors.ErrCodeIndexExists,
			fmt.Sprintf("index %q already exists", name), nil).
			WithSuggestion("destroy it first or pick another name")
	}

	info := Info{
		Name:         name,
		CollectionID: newCollectionID(),
		Dimension:    dimension,
		CreatedAt:    time.Now().UTC(),
	}

	col, err := m.openCollection(info, true)
	if err != nil {
		return nil, err
	}

	if err := col.Metadata.SetState(ctx, store.StateKeyDimension, strconv.Itoa(dimension)); err != nil {
		_ = col.Close()
		m.removeCollectionDir(info.CollectionID)
		return nil, err
	}
	if err := col.Save(); err != nil {
		_ = col.Close()
		m.removeCollectionDir(info.CollectionID)
		return nil, qerrors.StoreUnavailable("persist new index", err)
	}

	if err := m.registry.Add(ctx, info); err != nil {
		_ = col.Close()
		m.removeCollectionDir(info.CollectionID)
		return nil, err
	}

	m.mu.Lock()
	m.open[name] = col
	m.mu.Unlock()

	m.logger.Info("index created",
		"index", name, "collection", info.CollectionID, "dimension", dimension)
	return &info, nil
}

// Destroy removes an index in reverse creation order: registry record,
// then backing collections.
func (m *Manager) Destroy(ctx context.Context, name string) error {
	unlock, err := m.lockName(name)
	if err != nil {
		return err
	}
	defer unlock()

	info, err := m.registry.Get(ctx, name)
	if err != nil {
		return err
	}

	m.mu.Lock()
	if col, ok := m.open[name]; ok {
		_ = col.Close()
		delete(m.open, name)
	}
	m.mu.Unlock()

	if err := m.registry.Remove(ctx, name); err != nil {
		return err
	}
	m.removeCollectionDir(info.CollectionID)

	m.logger.Info("index destroyed", "index", name, "collection", info.CollectionID)
	return nil
}

// Open returns the index's backing stores, loading them on first use.
// Collections stay open until Destroy or Close.
func (m *Manager) Open(ctx context.Context, name string) (*Collection, error) {
	m.mu.Lock()
	if col, ok := m.open[name]; ok {
		m.mu.Unlock()
		return col, nil
	}
	m.mu.Unlock()

	info, err := m.registry.Get(ctx, name)
	if err != nil {
		return nil, err
	}

	col, err := m.openCollection(*info, false)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.open[name]; ok {
		_ = col.Close()
		return existing, nil
	}
	m.open[name] = col
	return col, nil
}

func (m *Manager) collectionDir(collectionID string) string {
	if m.dataDir == "" {
		return ""
	}
	return filepath.Join(m.dataDir, "collections", collectionID)
}

func (m *Manager) removeCollectionDir(collectionID string) {
	dir := m.collectionDir(collectionID)
	if dir == "" {
		return
	}
	if err := os.RemoveAll(dir); err != nil {
		m.logger.Warn("failed to remove collection directory", "dir", dir, "error", err)
	}
}

// openCollection opens the three stores, creating them when create is
// set. The vector store is loaded from its snapshot when one exists.
func (m *Manager) openCollection(info Info, create bool) (*Collection, error) {
	dir := m.collectionDir(info.CollectionID)

	var vectorPath, lexicalPath, metadataPath string
	if dir != "" {
		if create {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, qerrors.StoreUnavailable("create collection directory", err)
			}
		}
		vectorPath = filepath.Join(dir, vectorFileName)
		lexicalPath = filepath.Join(dir, lexicalDirName)
		metadataPath = filepath.Join(dir, metadataFileName)
	}

	vector, err := store.NewHNSWStore(store.DefaultVectorConfig(info.Dimension))
	if err != nil {
		return nil, err
	}
	if !create && vectorPath != "" {
		if _, statErr := os.Stat(vectorPath); statErr == nil {
			if err := vector.Load(vectorPath); err != nil {
				_ = vector.Close()
				return nil, qerrors.New(qerrors.ErrCodeCorruptIndex,
					fmt.Sprintf("vector snapshot for %q failed to load", info.Name), err).
					WithSuggestion("destroy and re-ingest the index")
			}
		}
	}

	lexical, err := store.NewBleveIndex(lexicalPath, store.DefaultLexicalConfig())
	if err != nil {
		_ = vector.Close()
		return nil, err
	}

	metadata, err := store.NewMetadataStore(metadataPath)
	if err != nil {
		_ = vector.Close()
		_ = lexical.Close()
		return nil, err
	}

	return &Collection{
		Info:     info,
		Vector:   vector,
		Lexical:  lexical,
		Metadata: metadata,
		dir:      dir,
	}, nil
}

func newCollectionID() string {
	var buf [8]byte
	_, _ = rand.Read(buf[:])
	return "col_" + hex.EncodeToString(buf[:])
}
