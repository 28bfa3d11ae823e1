// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
//
// It keeps the same whole-table contract as the CSV backend, but the table is
// keyed by id with a unique secondary index on phone, and SQLite's own
// locking (bounded by busy_timeout) replaces the lock file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/benbjohnson/clock"
	"modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mmynk/guestpass/internal/models"
	"github.com/mmynk/guestpass/internal/storage"
)

// DBName is the file name of the database inside the data dir.
const DBName = "guests.db"

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// Options configures a SQLiteStore.
type Options struct {
	// Path is the database file. Parent directories are created.
	Path string

	// LockTimeout is passed to SQLite as busy_timeout.
	LockTimeout time.Duration

	Clock  clock.Clock
	Logger *slog.Logger
}

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	clock  clock.Clock
	logger *slog.Logger
}

// New opens (or creates) the database at opts.Path and runs migrations.
func New(opts Options) (*SQLiteStore, error) {
	if opts.Path == "" {
		return nil, errors.New("database path is required")
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = 5 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	// Create parent directory if it doesn't exist
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dsn(opts.Path, opts.LockTimeout))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := runMigrations(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		path:   opts.Path,
		clock:  opts.Clock,
		logger: opts.Logger,
	}, nil
}

// dsn builds a connection string with the lock wait and immediate write
// transactions, so writers queue on busy_timeout instead of failing on
// lock upgrade.
func dsn(path string, lockTimeout time.Duration) string {
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_txlock=immediate",
		path, lockTimeout.Milliseconds())
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ReadAll returns every guest in registration order.
func (s *SQLiteStore) ReadAll(ctx context.Context) ([]models.Guest, error) {
	guests, err := readGuests(ctx, s.db)
	if err != nil {
		return nil, mapError(err)
	}
	return guests, nil
}

// WriteAll replaces the guest table.
func (s *SQLiteStore) WriteAll(ctx context.Context, guests []models.Guest) error {
	return s.Update(ctx, func([]models.Guest) ([]models.Guest, error) {
		return guests, nil
	})
}

// Update reads, applies fn and rewrites the table inside one write
// transaction. The previous rows are backed up before they are replaced.
func (s *SQLiteStore) Update(ctx context.Context, fn storage.UpdateFunc) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapError(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	current, err := readGuests(ctx, tx)
	if err != nil {
		return mapError(err)
	}
	// fn may edit rows in place; the backup needs the rows as they were.
	updated, err := fn(slices.Clone(current))
	if err != nil {
		return err
	}
	if err := models.CheckUnique(updated); err != nil {
		return err
	}

	if len(current) > 0 {
		if _, err := s.writeBackup(ctx, current); err != nil {
			return err
		}
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM guests"); err != nil {
		return mapError(fmt.Errorf("failed to clear guests: %w", err))
	}
	if err := insertGuests(ctx, tx, updated); err != nil {
		return mapError(err)
	}

	if err := tx.Commit(); err != nil {
		return mapError(fmt.Errorf("failed to commit transaction: %w", err))
	}
	s.logger.Debug("Guest table written", "path", s.path, "guests", len(updated))
	return nil
}

// Backup writes the current rows to a timestamped database file.
func (s *SQLiteStore) Backup(ctx context.Context) (string, error) {
	dest, _, err := s.Snapshot(ctx)
	return dest, err
}

// Snapshot reads the rows and backs them up inside one write transaction,
// which keeps other writers out until both are done.
func (s *SQLiteStore) Snapshot(ctx context.Context) (string, []models.Guest, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", nil, mapError(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	guests, err := readGuests(ctx, tx)
	if err != nil {
		return "", nil, mapError(err)
	}
	if len(guests) == 0 {
		return "", nil, storage.ErrNoTable
	}
	dest, err := s.writeBackup(ctx, guests)
	if err != nil {
		return "", nil, err
	}
	return dest, guests, nil
}

// writeBackup stores guests in a fresh database next to the live one.
// A separate file keeps the backup readable with the same backend.
func (s *SQLiteStore) writeBackup(ctx context.Context, guests []models.Guest) (string, error) {
	dest := storage.BackupPath(s.path, s.clock.Now())

	bdb, err := sql.Open("sqlite", dest)
	if err != nil {
		return "", fmt.Errorf("failed to open backup: %w", err)
	}
	defer bdb.Close()

	if err := runMigrations(ctx, bdb); err != nil {
		return "", fmt.Errorf("failed to prepare backup: %w", err)
	}
	btx, err := bdb.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin backup: %w", err)
	}
	defer btx.Rollback()

	if err := insertGuests(ctx, btx, guests); err != nil {
		return "", fmt.Errorf("failed to fill backup: %w", err)
	}
	if err := btx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit backup: %w", err)
	}

	s.logger.Info("Guest table backed up", "backup", dest)
	return dest, nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func readGuests(ctx context.Context, q querier) ([]models.Guest, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, name, phone, address, profession, notes, added, created, plus_one
		FROM guests
		ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query guests: %w", err)
	}
	defer rows.Close()

	guests := []models.Guest{}
	for rows.Next() {
		var (
			g              models.Guest
			added, plusOne string
			created        string
		)
		if err := rows.Scan(&g.ID, &g.Name, &g.Phone, &g.Address, &g.Profession, &g.Notes, &added, &created, &plusOne); err != nil {
			return nil, fmt.Errorf("failed to scan guest: %w", err)
		}
		g.CheckedIn = models.ParseFlag(added)
		g.PlusOne = models.ParseFlag(plusOne)
		if created != "" {
			g.Created, err = time.ParseInLocation(models.CreatedLayout, created, time.Local)
			if err != nil {
				return nil, fmt.Errorf("guest %s: invalid created %q: %w", g.ID, created, err)
			}
		}
		guests = append(guests, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate guests: %w", err)
	}
	return guests, nil
}

func insertGuests(ctx context.Context, tx *sql.Tx, guests []models.Guest) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO guests (id, name, phone, address, profession, notes, added, created, plus_one)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := range guests {
		g := &guests[i]
		_, err := stmt.ExecContext(ctx,
			g.ID, g.Name, g.Phone, g.Address, g.Profession, g.Notes,
			models.FormatFlag(g.CheckedIn), g.CreatedString(), models.FormatFlag(g.PlusOne),
		)
		if err != nil {
			return fmt.Errorf("failed to insert guest %s: %w", g.ID, err)
		}
	}
	return nil
}

// mapError translates SQLite result codes into storage errors.
func mapError(err error) error {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return err
	}
	switch se.Code() & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return fmt.Errorf("%w: %v", storage.ErrLockTimeout, err)
	case sqlite3.SQLITE_CONSTRAINT:
		return fmt.Errorf("%w: %v", storage.ErrDuplicateKey, err)
	}
	return err
}
