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

// Identity columns are GENERATED ALWAYS so ids are never reused or supplied
// by clients.
var steps = []migrationStep{
	{
		Name: "create_table_document",
		SQL: `CREATE TABLE IF NOT EXISTS document (
  id          BIGINT      GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
  filename    TEXT        NOT NULL,
  filepath    TEXT        NOT NULL UNIQUE,
  filesize    BIGINT      NOT NULL CHECK (filesize >= 0),
  created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);`,
	},
	{
		Name: "create_index_document_created_at",
		SQL:  `CREATE INDEX IF NOT EXISTS idx_document_created_at ON document (created_at);`,
	},
}

// EnsureMigrated checks if the 'document' table exists and runs migrations if it doesn't.
func EnsureMigrated(ctx context.Context, db *sql.DB, log logging.Logger, dbHost string) error {
	start := time.Now()
	log = log.With("component", "database", "db_host", dbHost)

	log.Info(ctx, "db_migration_check", "status", "starting")

	var exists bool
	query := "SELECT to_regclass('public.document') IS NOT NULL"
	err := db.QueryRowContext(ctx, query).Scan(&exists)
	if err != nil {
		log.Error(ctx, "db_migration_failed",
			"status", "error",
			"error_message", fmt.Sprintf("failed to check sentinel table: %v", err),
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return fmt.Errorf("failed to check sentinel table: %w", err)
	}

	if exists {
		log.Info(ctx, "db_migration_skip",
			"status", "success",
			"detail", "schema already exists, skipping migration",
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil
	}

	log.Info(ctx, "db_migration_start", "status", "in_progress")

	for _, step := range steps {
		stepStart := time.Now()
		_, err := db.ExecContext(ctx, step.SQL)
		if err != nil {
			log.Error(ctx, "db_migration_failed",
				"status", "error",
				"migration_step", step.Name,
				"error_message", err.Error(),
				"duration_ms", time.Since(start).Milliseconds(),
				"step_duration_ms", time.Since(stepStart).Milliseconds(),
			)
			return fmt.Errorf("migration step %s failed: %w", step.Name, err)
		}

		log.Info(ctx, "db_migration_step",
			"status", "success",
			"migration_step", step.Name,
			"step_duration_ms", time.Since(stepStart).Milliseconds(),
		)
	}

	log.Info(ctx, "db_migration_success",
		"status", "success",
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return nil
}
