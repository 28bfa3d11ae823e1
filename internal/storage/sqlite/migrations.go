package sqlite

import (
	"context"
	"database/sql"
)

// schema sets up the guest table. seq keeps registration order; id and
// phone carry UNIQUE indexes so a duplicate can never be persisted.
// Flags are stored as 'yes'/'no' to match the CSV table and its export.
const schema = `
CREATE TABLE IF NOT EXISTS guests (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    id TEXT NOT NULL,
    name TEXT NOT NULL,
    phone TEXT NOT NULL,
    address TEXT NOT NULL DEFAULT '',
    profession TEXT NOT NULL DEFAULT '',
    notes TEXT NOT NULL DEFAULT '',
    added TEXT NOT NULL DEFAULT 'no' CHECK (added IN ('yes', 'no')),
    created TEXT NOT NULL DEFAULT '',
    plus_one TEXT NOT NULL DEFAULT 'no' CHECK (plus_one IN ('yes', 'no'))
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_guests_id ON guests(id);
CREATE UNIQUE INDEX IF NOT EXISTS idx_guests_phone ON guests(phone);
`

// runMigrations executes the schema setup.
func runMigrations(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
