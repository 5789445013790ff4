package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite" // pure Go SQLite driver

	"github.com/quarrylabs/quarry/internal/chunk"
)

// MetadataStore persists chunk rows, provenance, and per-collection
// state in SQLite. WAL mode with a single writer connection keeps
// concurrent readers from blocking on ingest.
type MetadataStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// State keys stored per collection.
const (
	// StateKeyDimension records the embedding dimension the collection
	// was created with.
	StateKeyDimension = "embedding_dimension"
	// StateKeyModel records the embedding model name.
	StateKeyModel = "embedding_model"
)

// NewMetadataStore opens or creates the metadata database at path.
// An empty path creates an in-memory database, used by tests.
func NewMetadataStore(path string) (*MetadataStore, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create directory: %w", err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open metadata database: %w", err)
	}

	// Single writer avoids SQLITE_BUSY under concurrent ingest batches.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma: %w", err)
		}
	}

	s := &MetadataStore{db: db, path: path}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *MetadataStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		id           TEXT PRIMARY KEY,
		source_id    TEXT NOT NULL,
		content_type TEXT NOT NULL,
		language     TEXT NOT NULL DEFAULT '',
		text         TEXT NOT NULL,
		token_count  INTEGER NOT NULL,
		start_line   INTEGER NOT NULL,
		end_line     INTEGER NOT NULL,
		cell         INTEGER NOT NULL DEFAULT -1,
		heading_path TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS provenance (
		chunk_id     TEXT NOT NULL,
		source_id    TEXT NOT NULL,
		start_line   INTEGER NOT NULL,
		end_line     INTEGER NOT NULL,
		cell         INTEGER NOT NULL DEFAULT -1,
		heading_path TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (chunk_id, source_id, start_line, end_line, cell)
	);
	CREATE INDEX IF NOT EXISTS idx_provenance_chunk ON provenance(chunk_id);

	CREATE TABLE IF NOT EXISTS state (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveChunks upserts chunk rows and records each chunk's provenance.
func (s *MetadataStore) SaveChunks(ctx context.Context, chunks []*chunk.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("metadata store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	chunkStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, source_id, content_type, language, text, token_count, start_line, end_line, cell, heading_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("prepare chunk insert: %w", err)
	}
	defer chunkStmt.Close()

	provStmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO provenance (chunk_id, source_id, start_line, end_line, cell, heading_path)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare provenance insert: %w", err)
	}
	defer provStmt.Close()

	for _, c := range chunks {
		if _, err := chunkStmt.ExecContext(ctx,
			c.ID, c.SourceID, string(c.ContentType), c.Language, c.Text, c.TokenCount,
			c.Span.StartLine, c.Span.EndLine, c.Span.Cell, c.Span.HeadingPath); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
		if _, err := provStmt.ExecContext(ctx,
			c.ID, c.SourceID, c.Span.StartLine, c.Span.EndLine, c.Span.Cell, c.Span.HeadingPath); err != nil {
			return fmt.Errorf("insert provenance for %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// GetChunk retrieves one chunk by ID. Returns sql.ErrNoRows when absent.
func (s *MetadataStore) GetChunk(ctx context.Context, id string) (*chunk.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("metadata store is closed")
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, source_id, content_type, language, text, token_count, start_line, end_line, cell, heading_path
		FROM chunks WHERE id = ?`, id)
	return scanChunk(row)
}

// GetChunks retrieves chunks by ID, preserving the requested order.
// Missing IDs are silently skipped.
func (s *MetadataStore) GetChunks(ctx context.Context, ids []string) ([]*chunk.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("metadata store is closed")
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, source_id, content_type, language, text, token_count, start_line, end_line, cell, heading_path
		FROM chunks WHERE id IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("query chunks: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*chunk.Chunk, len(ids))
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		byID[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make([]*chunk.Chunk, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			result = append(result, c)
		}
	}
	return result, nil
}

// HasChunk reports whether a chunk row exists.
func (s *MetadataStore) HasChunk(ctx context.Context, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, fmt.Errorf("metadata store is closed")
	}

	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM chunks WHERE id = ?`, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteChunks removes chunk rows and their provenance.
func (s *MetadataStore) DeleteChunks(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("metadata store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete chunk %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM provenance WHERE chunk_id = ?`, id); err != nil {
			return fmt.Errorf("delete provenance %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// Count returns the number of chunk rows.
func (s *MetadataStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, fmt.Errorf("metadata store is closed")
	}

	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count)
	return count, err
}

// AddProvenance records that a chunk was also observed at the given
// document location. Duplicate observations are idempotent.
func (s *MetadataStore) AddProvenance(ctx context.Context, chunkID, sourceID string, span chunk.Span) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("metadata store is closed")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO provenance (chunk_id, source_id, start_line, end_line, cell, heading_path)
		VALUES (?, ?, ?, ?, ?, ?)`,
		chunkID, sourceID, span.StartLine, span.EndLine, span.Cell, span.HeadingPath)
	return err
}

// GetProvenance returns every recorded location of a chunk, ordered by
// source then position.
func (s *MetadataStore) GetProvenance(ctx context.Context, chunkID string) ([]Provenance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("metadata store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id, start_line, end_line, cell, heading_path
		FROM provenance WHERE chunk_id = ?
		ORDER BY source_id, start_line, cell`, chunkID)
	if err != nil {
		return nil, fmt.Errorf("query provenance: %w", err)
	}
	defer rows.Close()

	var result []Provenance
	for rows.Next() {
		var p Provenance
		if err := rows.Scan(&p.SourceID, &p.Span.StartLine, &p.Span.EndLine, &p.Span.Cell, &p.Span.HeadingPath); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}

// GetState reads a state value. Returns "" when the key is absent.
func (s *MetadataStore) GetState(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", fmt.Errorf("metadata store is closed")
	}

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetState writes a state value.
func (s *MetadataStore) SetState(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("metadata store is closed")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// AllIDs returns every chunk ID, for consistency checks.
func (s *MetadataStore) AllIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("metadata store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id FROM chunks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Close closes the database.
func (s *MetadataStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanChunk(row rowScanner) (*chunk.Chunk, error) {
	var c chunk.Chunk
	var contentType string
	if err := row.Scan(&c.ID, &c.SourceID, &contentType, &c.Language, &c.Text, &c.TokenCount,
		&c.Span.StartLine, &c.Span.EndLine, &c.Span.Cell, &c.Span.HeadingPath); err != nil {
		return nil, err
	}
	c.ContentType = chunk.ContentType(contentType)
	return &c, nil
}
