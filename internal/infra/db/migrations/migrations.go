package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed sqlite/*.sql mysql/*.sql postgres/*.sql
var migrationFS embed.FS

// goose keeps its dialect and filesystem in package state
var mu sync.Mutex

// Up applies the embedded migrations for driver ("sqlite", "mysql" or "postgres").
func Up(ctx context.Context, db *sql.DB, driver string) error {
	dialect, dir, err := resolve(driver)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()

	goose.SetBaseFS(migrationFS)
	goose.SetLogger(log.New(log.Writer(), "goose: ", log.LstdFlags))
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("goose dialect %s: %w", dialect, err)
	}
	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("apply %s migrations: %w", driver, err)
	}
	return nil
}

func resolve(driver string) (dialect, dir string, err error) {
	switch driver {
	case "sqlite":
		return "sqlite3", "sqlite", nil
	case "mysql":
		return "mysql", "mysql", nil
	case "postgres":
		return "postgres", "postgres", nil
	}
	return "", "", fmt.Errorf("unsupported database driver %q", driver)
}
