// Package index manages named index lifecycles and the ingest
// pipeline. An index is a vector collection, a lexical collection, and
// a metadata database created and destroyed as a unit.
package index

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	qerrors "github.com/quarrylabs/quarry/internal/errors"
)

// Info is the registry record for one index.
type Info struct {
	Name         string
	CollectionID string
	Dimension    int
	CreatedAt    time.Time
}

// Registry persists the name to collection mapping. It is read on
// every operation that references an index by name and written only on
// create and destroy.
type Registry struct {
	db *sql.DB
}

const registrySchema = `
CREATE TABLE IF NOT EXISTS indexes (
	name          TEXT PRIMARY KEY,
	collection_id TEXT NOT NULL UNIQUE,
	dimension     INTEGER NOT NULL,
	created_at    TEXT NOT NULL
);
`

// OpenRegistry opens or creates the registry database at dir. An empty
// dir keeps the registry in memory, for tests.
func OpenRegistry(dir string) (*Registry, error) {
	dsn := ":memory:"
	if dir != "" {
		dsn = filepath.Join(dir, "registry.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, qerrors.StoreUnavailable("open registry", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, qerrors.StoreUnavailable("configure registry", err)
		}
	}

	if _, err := db.Exec(registrySchema); err != nil {
		_ = db.Close()
		return nil, qerrors.StoreUnavailable("migrate registry", err)
	}

	return &Registry{db: db}, nil
}

// Add records a new index. Fails if the name is taken.
func (r *Registry) Add(ctx context.Context, info Info) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO indexes (name, collection_id, dimension, created_at) VALUES (?, ?, ?, ?)`,
		info.Name, info.CollectionID, info.Dimension, info.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return qerrors.StoreUnavailable("register index", err)
	}
	return nil
}

// Get resolves an index by name.
func (r *Registry) Get(ctx context.Context, name string) (*Info, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT name, collection_id, dimension, created_at FROM indexes WHERE name = ?`, name)

	info, err := scanInfo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, qerrors.IndexNotFound(name)
	}
	if err != nil {
		return nil, qerrors.StoreUnavailable("read registry", err)
	}
	return info, nil
}

// Exists reports whether a name is registered.
func (r *Registry) Exists(ctx context.Context, name string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM indexes WHERE name = ?`, name).Scan(&n)
	if err != nil {
		return false, qerrors.StoreUnavailable("read registry", err)
	}
	return n > 0, nil
}

// List returns all registered indexes ordered by name.
func (r *Registry) List(ctx context.Context) ([]*Info, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT name, collection_id, dimension, created_at FROM indexes ORDER BY name`)
	if err != nil {
		return nil, qerrors.StoreUnavailable("list indexes", err)
	}
	defer func() { _ = rows.Close() }()

	var infos []*Info
	for rows.Next() {
		info, err := scanInfo(rows)
		if err != nil {
			return nil, qerrors.StoreUnavailable("list indexes", err)
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// Remove deletes the registry record for name.
func (r *Registry) Remove(ctx context.Context, name string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM indexes WHERE name = ?`, name)
	if err != nil {
		return qerrors.StoreUnavailable("deregister index", err)
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		return qerrors.IndexNotFound(name)
	}
	return nil
}

// Close closes the registry database.
func (r *Registry) Close() error {
	return r.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInfo(row rowScanner) (*Info, error) {
	var info Info
	var createdAt string
	if err := row.Scan(&info.Name, &info.CollectionID, &info.Dimension, &createdAt); err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at for %s: %w", info.Name, err)
	}
	info.CreatedAt = t
	return &info, nil
}
