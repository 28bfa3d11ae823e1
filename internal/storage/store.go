// Package storage provides abstractions for persisting the guest table.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/guestpass/internal/models"
)

var (
	// ErrLockTimeout is returned when the table lock could not be acquired
	// within the configured wait. Callers should treat it as retryable.
	ErrLockTimeout = errors.New("guest table is locked, try again")

	// ErrNoTable is returned by Backup when nothing has been persisted yet.
	ErrNoTable = errors.New("guest table does not exist yet")

	// ErrDuplicateKey is returned when a write would leave two guests
	// sharing an ID or a phone number. Nothing is persisted.
	ErrDuplicateKey = models.ErrDuplicateKey
)

// UpdateFunc receives the current guest table and returns its replacement.
// Returning an error aborts the update without writing.
type UpdateFunc func(guests []models.Guest) ([]models.Guest, error)

// Store defines the interface for guest table storage.
// This abstraction allows swapping the flat-file backend for an embedded
// database without changing the check-in workflow.
//
// Every operation is serialised by a cross-process lock with a bounded wait.
type Store interface {
	// ReadAll returns the guests in table order.
	// Returns an empty slice and no error if no table exists yet.
	ReadAll(ctx context.Context) ([]models.Guest, error)

	// WriteAll replaces the entire table, backing up the previous one first.
	WriteAll(ctx context.Context, guests []models.Guest) error

	// Update performs a read-modify-write while holding the lock once, so no
	// other writer can interleave between the read and the write.
	Update(ctx context.Context, fn UpdateFunc) error

	// Backup copies the current table to a timestamped file and returns its
	// path. Returns ErrNoTable if nothing has been persisted.
	Backup(ctx context.Context) (string, error)

	// Snapshot backs up the table and reads it under one lock hold, so the
	// returned rows match the backup exactly. Returns ErrNoTable if nothing
	// has been persisted.
	Snapshot(ctx context.Context) (backup string, guests []models.Guest, err error)

	// Close releases any resources held by the store.
	Close() error
}
