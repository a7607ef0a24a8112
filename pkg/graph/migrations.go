package graph

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/llmspell/llmspell/pkg/hook"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// runMigrations applies every pending schema migration, dispatching the
// migration_started/completed/failed hook points from pkg/hook (C4) around
// the run so a host can observe or audit schema changes the same way it
// observes tool and agent execution.
func runMigrations(db *sql.DB, pipeline *hook.Pipeline, componentID hook.ComponentID) error {
	dispatchMigration(pipeline, componentID, hook.PointMigrationStarted, nil)

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		dispatchMigration(pipeline, componentID, hook.PointMigrationFailed, err)
		return fmt.Errorf("graph: failed to create migration driver: %w", err)
	}

	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		dispatchMigration(pipeline, componentID, hook.PointMigrationFailed, err)
		return fmt.Errorf("graph: failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "llmspell_graph", driver)
	if err != nil {
		dispatchMigration(pipeline, componentID, hook.PointMigrationFailed, err)
		return fmt.Errorf("graph: failed to build migrator: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		dispatchMigration(pipeline, componentID, hook.PointMigrationFailed, err)
		return fmt.Errorf("graph: failed to apply migrations: %w", err)
	}

	// Close only the source; closing the migrate instance would close db,
	// which the caller still owns via the pool.
	if err := sourceDriver.Close(); err != nil {
		return fmt.Errorf("graph: failed to close migration source: %w", err)
	}

	dispatchMigration(pipeline, componentID, hook.PointMigrationCompleted, nil)
	return nil
}

func dispatchMigration(pipeline *hook.Pipeline, componentID hook.ComponentID, point hook.Point, cause error) {
	if pipeline == nil {
		return
	}
	meta := map[string]string{}
	if cause != nil {
		meta["error"] = cause.Error()
	}
	pipeline.DispatchPre(&hook.Context{
		Point:       point,
		ComponentID: componentID,
		Data:        map[string]json.RawMessage{},
		Metadata:    meta,
	})
}
