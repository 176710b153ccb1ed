package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/evanschultz/weekgrid/internal/app"
	_ "modernc.org/sqlite"
)

// driverName defines a package constant value.
const driverName = "sqlite"

// BlobInfo describes one stored blob without its payload.
type BlobInfo struct {
	Key       string
	Size      int
	UpdatedAt time.Time
}

// Repository stores opaque blobs keyed by name.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens a file-backed repository, creating parent directories as needed.
func Open(path string) (*Repository, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open(driverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return newRepository(db)
}

// OpenInMemory opens a private in-memory repository.
func OpenInMemory() (*Repository, error) {
	db, err := sql.Open(driverName, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite memory: %w", err)
	}
	// Every pooled connection would otherwise see its own empty database.
	db.SetMaxOpenConns(1)
	return newRepository(db)
}

func newRepository(db *sql.DB) (*Repository, error) {
	repo := &Repository{db: db, now: time.Now}
	if err := repo.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

// Close closes the database handle.
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate creates the schema.
func (r *Repository) migrate(ctx context.Context) error {
	stmts := []string{
		`PRAGMA journal_mode = WAL;`,
		`CREATE TABLE IF NOT EXISTS blobs (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			updated_at TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate sqlite: %w", err)
		}
	}
	return nil
}

// Load returns the blob stored under key, or app.ErrNotFound.
func (r *Repository) Load(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := r.db.QueryRowContext(ctx, `SELECT value FROM blobs WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, app.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load blob %q: %w", key, err)
	}
	return value, nil
}

// Save replaces the blob stored under key.
func (r *Repository) Save(ctx context.Context, key string, blob []byte) error {
	if strings.TrimSpace(key) == "" {
		return errors.New("blob key is required")
	}
	if blob == nil {
		blob = []byte{}
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO blobs(key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, blob, ts(r.now()))
	if err != nil {
		return fmt.Errorf("save blob %q: %w", key, err)
	}
	return nil
}

// Stat returns size and update time for key, or app.ErrNotFound.
func (r *Repository) Stat(ctx context.Context, key string) (BlobInfo, error) {
	var (
		info       = BlobInfo{Key: key}
		updatedRaw string
	)
	err := r.db.QueryRowContext(ctx, `SELECT length(value), updated_at FROM blobs WHERE key = ?`, key).Scan(&info.Size, &updatedRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return BlobInfo{}, app.ErrNotFound
	}
	if err != nil {
		return BlobInfo{}, fmt.Errorf("stat blob %q: %w", key, err)
	}
	info.UpdatedAt = parseTS(updatedRaw)
	return info, nil
}

// ts formats a timestamp for storage.
func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTS parses a stored timestamp.
func parseTS(v string) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return ts.UTC()
}
