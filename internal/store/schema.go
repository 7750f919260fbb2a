package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"
)

//go:embed schema.sql
var schemaSQL string

//go:embed ratings_schema.sql
var ratingsSchemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the
// expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete the database and reload)",
			ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, ratingsSchemaSQL); err != nil {
		return fmt.Errorf("create ratings schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// RecreateRatings renames the existing ratings table to a timestamped backup
// and creates a fresh empty one. It returns the backup table name.
func (s *Store) RecreateRatings(ctx context.Context) (string, error) {
	ctx = ensureContext(ctx)
	backup := fmt.Sprintf("ratings_bad_%s", time.Now().UTC().Format("20060102T150405"))

	tx, err := s.beginTxWithRetry(ctx)
	if err != nil {
		return "", fmt.Errorf("begin recreate tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// The index stays attached to the renamed table, so it has to go first
	// or the fresh schema would collide with its name.
	if _, err := tx.ExecContext(ctx, "DROP INDEX IF EXISTS idx_ratings_movie_id"); err != nil {
		return "", fmt.Errorf("drop ratings index: %w", err)
	}
	if _, err := tx.ExecContext(ctx, fmt.Sprintf("ALTER TABLE ratings RENAME TO %s", backup)); err != nil {
		return "", fmt.Errorf("rename ratings table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, ratingsSchemaSQL); err != nil {
		return "", fmt.Errorf("recreate ratings table: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit recreate: %w", err)
	}
	return backup, nil
}
