package migration

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"docvault/internal/logging"
)

type migrationStep struct {
	Name string
	SQL  string
}

var steps = []migrationStep{
	{
		Name: "create_table_documents",
		SQL: `CREATE TABLE IF NOT EXISTS documents (
  id                 TEXT        PRIMARY KEY,
  filename           TEXT        NOT NULL,
  mime_type          TEXT        NOT NULL,
  size               BIGINT      NOT NULL CHECK (size >= 0),
  storage_path       TEXT        NOT NULL UNIQUE,
  thumbnail_path     TEXT        NOT NULL DEFAULT '',
  folder_path        TEXT        NOT NULL DEFAULT '/',
  upload_date        TIMESTAMPTZ NOT NULL DEFAULT now(),
  ocr_status         TEXT        NOT NULL DEFAULT 'pending',
  ocr_text           TEXT        NOT NULL DEFAULT '',
  ocr_engine         TEXT        NOT NULL DEFAULT '',
  ocr_engine_version TEXT        NOT NULL DEFAULT '',
  metadata           JSONB       NOT NULL DEFAULT '{}'::jsonb
);`,
	},
	{
		Name: "create_index_documents_folder_path",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_folder_path ON documents (folder_path);`,
	},
	{
		Name: "create_index_documents_mime_type",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_mime_type ON documents (mime_type);`,
	},
	{
		Name: "create_index_documents_upload_date",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_documents_upload_date ON documents (upload_date);`,
	},
	{
		Name: "create_table_tags",
		SQL: `CREATE TABLE IF NOT EXISTS tags (
  id    TEXT PRIMARY KEY,
  name  TEXT NOT NULL,
  color TEXT NOT NULL DEFAULT '#808080'
);`,
	},
	{
		Name: "create_index_tags_lower_name",
		SQL:  `CREATE UNIQUE INDEX IF NOT EXISTS idx_tags_lower_name ON tags (lower(name));`,
	},
	{
		Name: "create_table_document_tags",
		SQL: `CREATE TABLE IF NOT EXISTS document_tags (
  document_id TEXT    NOT NULL REFERENCES documents (id) ON DELETE CASCADE,
  tag_id      TEXT    NOT NULL REFERENCES tags (id) ON DELETE CASCADE,
  position    INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (document_id, tag_id)
);`,
	},
	{
		Name: "create_index_document_tags_tag_id",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_document_tags_tag_id ON document_tags (tag_id);`,
	},
}

// EnsureMigrated checks if the 'document_tags' table (created last) exists and
// runs migrations if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, log *logging.Logger, dbHost string) error {
	if log == nil {
		log = logging.Discard()
	}
	began := time.Now()
	fields := func(extra logging.Fields) logging.Fields {
		f := logging.Fields{"db_host": dbHost, "duration_ms": time.Since(began).Milliseconds()}
		for k, v := range extra {
			f[k] = v
		}
		return f
	}

	var exists bool
	if err := db.QueryRowContext(ctx, sentinelQuery).Scan(&exists); err != nil {
		log.Error("db_migration_failed", fields(logging.Fields{"step": "sentinel", "error": err}))
		return fmt.Errorf("check schema sentinel: %w", err)
	}
	if exists {
		log.Info("db_migration_skip", fields(nil))
		return nil
	}

	if err := applySteps(ctx, db, func(name string, took time.Duration) {
		log.Info("db_migration_step", fields(logging.Fields{"step": name, "step_duration_ms": took.Milliseconds()}))
	}); err != nil {
		log.Error("db_migration_failed", fields(logging.Fields{"error": err}))
		return err
	}

	log.Info("db_migration_success", fields(logging.Fields{"steps": len(steps)}))
	return nil
}

// sentinelQuery checks for the last table the steps create.
const sentinelQuery = "SELECT to_regclass('public.document_tags') IS NOT NULL"

// applySteps runs every step in one transaction so a failed step leaves no
// partial schema behind.
func applySteps(ctx context.Context, db *sql.DB, done func(name string, took time.Duration)) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	for _, step := range steps {
		stepStart := time.Now()
		if _, err := tx.ExecContext(ctx, step.SQL); err != nil {
			return fmt.Errorf("migration step %s: %w", step.Name, err)
		}
		done(step.Name, time.Since(stepStart))
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}
