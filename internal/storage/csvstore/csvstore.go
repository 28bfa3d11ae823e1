// Package csvstore provides a flat-file CSV implementation of the
// storage.Store interface.
//
// The table lives at <dir>/guests.csv and is guarded by an advisory file lock
// on <dir>/guests.csv.lock, so several processes can share one data
// directory. Each write copies the previous table to a timestamped backup and
// then atomically replaces the table.
package csvstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gofrs/flock"

	"github.com/mmynk/guestpass/internal/models"
	"github.com/mmynk/guestpass/internal/storage"
)

const (
	// TableName is the file name of the guest table inside the data dir.
	TableName = "guests.csv"

	// DefaultLockTimeout bounds how long an operation waits for the lock.
	DefaultLockTimeout = 5 * time.Second

	lockRetryDelay = 25 * time.Millisecond
)

// Ensure CSVStore implements storage.Store
var _ storage.Store = (*CSVStore)(nil)

// Options configures a CSVStore.
type Options struct {
	// Dir is the data directory. Created if missing.
	Dir string

	// LockTimeout bounds the wait for the table lock (default 5s).
	LockTimeout time.Duration

	// Clock names backups. Defaults to the wall clock.
	Clock clock.Clock

	Logger *slog.Logger
}

// CSVStore implements storage.Store on a single CSV file.
type CSVStore struct {
	path        string
	lockPath    string
	lockTimeout time.Duration
	clock       clock.Clock
	logger      *slog.Logger
}

// New creates a CSVStore rooted at opts.Dir, creating the directory if needed.
func New(opts Options) (*CSVStore, error) {
	if opts.Dir == "" {
		return nil, errors.New("data directory is required")
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultLockTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	path := filepath.Join(opts.Dir, TableName)
	return &CSVStore{
		path:        path,
		lockPath:    path + ".lock",
		lockTimeout: opts.LockTimeout,
		clock:       opts.Clock,
		logger:      opts.Logger,
	}, nil
}

// Path returns the location of the guest table.
func (s *CSVStore) Path() string {
	return s.path
}

// Close is a no-op; locks are only held for the duration of an operation.
func (s *CSVStore) Close() error {
	return nil
}

// ReadAll returns every guest in file order.
func (s *CSVStore) ReadAll(ctx context.Context) ([]models.Guest, error) {
	var guests []models.Guest
	err := s.withLock(ctx, func() error {
		var err error
		guests, err = s.read()
		return err
	})
	if err != nil {
		return nil, err
	}
	return guests, nil
}

// WriteAll replaces the table with guests.
func (s *CSVStore) WriteAll(ctx context.Context, guests []models.Guest) error {
	return s.withLock(ctx, func() error {
		return s.write(guests)
	})
}

// Update reads the table, applies fn and writes the result under one lock.
func (s *CSVStore) Update(ctx context.Context, fn storage.UpdateFunc) error {
	return s.withLock(ctx, func() error {
		guests, err := s.read()
		if err != nil {
			return err
		}
		updated, err := fn(guests)
		if err != nil {
			return err
		}
		return s.write(updated)
	})
}

// Backup copies the current table to a timestamped file.
func (s *CSVStore) Backup(ctx context.Context) (string, error) {
	var dest string
	err := s.withLock(ctx, func() error {
		var err error
		dest, err = s.backup()
		return err
	})
	return dest, err
}

// Snapshot backs up the table and reads it without releasing the lock.
func (s *CSVStore) Snapshot(ctx context.Context) (string, []models.Guest, error) {
	var (
		dest   string
		guests []models.Guest
	)
	err := s.withLock(ctx, func() error {
		var err error
		if dest, err = s.backup(); err != nil {
			return err
		}
		guests, err = s.read()
		return err
	})
	if err != nil {
		return "", nil, err
	}
	return dest, guests, nil
}

// withLock runs fn while holding the table lock. A fresh lock handle is used
// for every acquisition: flock(2) excludes other open file descriptions, so
// goroutines in this process are serialised as well as other processes.
func (s *CSVStore) withLock(ctx context.Context, fn func() error) error {
	ctx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	lock := flock.New(s.lockPath)
	defer lock.Close()

	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("Guest table lock timed out", "lock", s.lockPath, "timeout", s.lockTimeout)
			return fmt.Errorf("%w: waited %s", storage.ErrLockTimeout, s.lockTimeout)
		}
		return fmt.Errorf("failed to acquire table lock: %w", err)
	}
	if !locked {
		return storage.ErrLockTimeout
	}
	return fn()
}

func (s *CSVStore) read() ([]models.Guest, error) {
	f, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return []models.Guest{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open guest table: %w", err)
	}
	defer f.Close()

	guests, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse guest table: %w", err)
	}
	return guests, nil
}

func (s *CSVStore) write(guests []models.Guest) error {
	if err := models.CheckUnique(guests); err != nil {
		return err
	}
	if _, err := s.backup(); err != nil && !errors.Is(err, storage.ErrNoTable) {
		return err
	}

	var buf bytes.Buffer
	if err := Encode(&buf, guests); err != nil {
		return fmt.Errorf("failed to encode guest table: %w", err)
	}
	if err := writeFileAtomic(s.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write guest table: %w", err)
	}
	s.logger.Debug("Guest table written", "path", s.path, "guests", len(guests))
	return nil
}

func (s *CSVStore) backup() (string, error) {
	src, err := os.Open(s.path)
	if os.IsNotExist(err) {
		return "", storage.ErrNoTable
	}
	if err != nil {
		return "", fmt.Errorf("failed to open guest table: %w", err)
	}
	defer src.Close()

	dest := storage.BackupPath(s.path, s.clock.Now())
	dst, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create backup: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("failed to copy backup: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("failed to close backup: %w", err)
	}

	s.logger.Info("Guest table backed up", "backup", dest)
	return dest, nil
}
