package db

import "context"

// schemaStatements creates the tables this service reads and writes.
// Statements are idempotent so local and test environments can call
// EnsureSchema on every boot.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS shuttles (
		shuttle_number    INTEGER PRIMARY KEY,
		latitude          DOUBLE PRECISION,
		longitude         DOUBLE PRECISION,
		available_seats   INTEGER,
		estimated_arrival TEXT,
		updated_at        TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS geofences (
		name     TEXT PRIMARY KEY,
		vertices JSONB NOT NULL
	)`,
}

// EnsureSchema creates the required tables if they do not exist.
func EnsureSchema(ctx context.Context, db DBTX) error {
	for _, stmt := range schemaStatements {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
