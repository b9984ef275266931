package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Students and photos are provisioned by an external import. The service
// only ever updates the choice columns on students.
var schemaStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS pgcrypto`,
	`CREATE TABLE IF NOT EXISTS students (
		id                UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		first_name        TEXT NOT NULL DEFAULT '',
		last_name         TEXT NOT NULL DEFAULT '',
		access_code       TEXT NOT NULL UNIQUE,
		chosen_photo_url  TEXT,
		chosen_photo_name TEXT,
		has_chosen        BOOLEAN NOT NULL DEFAULT FALSE,
		choice_timestamp  TIMESTAMPTZ,
		created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS photos (
		id            UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		student_id    UUID NOT NULL REFERENCES students(id) ON DELETE CASCADE,
		url           TEXT NOT NULL,
		original_name TEXT NOT NULL DEFAULT '',
		captured_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_photos_student_id ON photos(student_id)`,
	`CREATE INDEX IF NOT EXISTS idx_students_has_chosen ON students(has_chosen)`,
}

// CreateSchema creates the tables if they do not exist. It is safe to run
// on every startup.
func (db *DB) CreateSchema(ctx context.Context) error {
	return db.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, stmt := range schemaStatements {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("apply schema: %w", err)
			}
		}
		return nil
	})
}
