// Package store keeps versioned page snapshots in SQLite.
package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/recera/lowcode/pkg/model"
)

//go:embed migrations/*.sql
var migrations embed.FS

var logger = slog.Default().With("component", "store")

// SetLogger replaces the package logger.
func SetLogger(l *slog.Logger) {
	logger = l.With("component", "store")
}

// ErrNotFound is returned when no snapshot matches.
var ErrNotFound = errors.New("snapshot not found")

// goose keeps its dialect and filesystem in package state.
var gooseMu sync.Mutex

// Snapshot is one saved revision of a page. Data holds the page JSON with
// every node style in compact form.
type Snapshot struct {
	ID      int64
	Page    string
	Version int
	Hash    string
	Message string
	Created time.Time
	Data    []byte
}

// Store wraps the snapshot database.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies pending
// migrations. ":memory:" opens a private in-memory database.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps ":memory:" a single database and serialises writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	logger.Debug("store opened", "path", path)
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores p as the next version of its page. When the page is unchanged
// since the latest snapshot, that snapshot is returned and nothing is written.
func (s *Store) Save(ctx context.Context, p *model.Page, message string) (*Snapshot, bool, error) {
	if p == nil || p.Name == "" {
		return nil, false, errors.New("page name required")
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, false, fmt.Errorf("encode page: %w", err)
	}
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	latest, err := scanOne(tx.QueryRowContext(ctx,
		`SELECT id, page, version, hash, message, created_at, data FROM snapshots
		 WHERE page = ? ORDER BY version DESC LIMIT 1`, p.Name))
	switch {
	case errors.Is(err, ErrNotFound):
		latest = nil
	case err != nil:
		return nil, false, err
	case latest.Hash == hash:
		return latest, false, nil
	}

	snap := &Snapshot{
		Page:    p.Name,
		Version: 1,
		Hash:    hash,
		Message: message,
		Created: time.Now(),
		Data:    data,
	}
	if latest != nil {
		snap.Version = latest.Version + 1
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (page, version, hash, message, data, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		snap.Page, snap.Version, snap.Hash, snap.Message, snap.Data, snap.Created.UnixNano())
	if err != nil {
		return nil, false, fmt.Errorf("insert snapshot: %w", err)
	}
	if snap.ID, err = res.LastInsertId(); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	logger.Info("snapshot saved", "page", snap.Page, "version", snap.Version)
	return snap, true, nil
}

// List returns the snapshots of page, newest first, without their data.
// An empty page lists every page.
func (s *Store) List(ctx context.Context, page string) ([]Snapshot, error) {
	query := `SELECT id, page, version, hash, message, created_at FROM snapshots`
	var args []any
	if page != "" {
		query += ` WHERE page = ?`
		args = append(args, page)
	}
	query += ` ORDER BY page, version DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var snap Snapshot
		var created int64
		if err := rows.Scan(&snap.ID, &snap.Page, &snap.Version, &snap.Hash, &snap.Message, &created); err != nil {
			return nil, err
		}
		snap.Created = time.Unix(0, created)
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Get returns one snapshot. Version 0 selects the latest.
func (s *Store) Get(ctx context.Context, page string, version int) (*Snapshot, error) {
	if version == 0 {
		return scanOne(s.db.QueryRowContext(ctx,
			`SELECT id, page, version, hash, message, created_at, data FROM snapshots
			 WHERE page = ? ORDER BY version DESC LIMIT 1`, page))
	}
	return scanOne(s.db.QueryRowContext(ctx,
		`SELECT id, page, version, hash, message, created_at, data FROM snapshots
		 WHERE page = ? AND version = ?`, page, version))
}

// Restore decodes a snapshot back into a page with full node styles.
func (s *Store) Restore(ctx context.Context, page string, version int) (*model.Page, error) {
	snap, err := s.Get(ctx, page, version)
	if err != nil {
		return nil, err
	}
	return snap.Decode()
}

// Decode decodes the snapshot data.
func (snap *Snapshot) Decode() (*model.Page, error) {
	p, err := model.Decode(snap.Data, model.FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s@%d: %w", snap.Page, snap.Version, err)
	}
	return p, nil
}

// Prune deletes all but the newest keep snapshots of page and reports how
// many were removed.
func (s *Store) Prune(ctx context.Context, page string, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE page = ? AND version NOT IN (
			SELECT version FROM snapshots WHERE page = ? ORDER BY version DESC LIMIT ?)`,
		page, page, keep)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err == nil && n > 0 {
		logger.Info("snapshots pruned", "page", page, "removed", n)
	}
	return n, err
}

func scanOne(row *sql.Row) (*Snapshot, error) {
	var snap Snapshot
	var created int64
	err := row.Scan(&snap.ID, &snap.Page, &snap.Version, &snap.Hash, &snap.Message, &created, &snap.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	snap.Created = time.Unix(0, created)
	return &snap, nil
}
