// Package main applies the embedded database schema.
//
//	migrate up        apply all pending migrations
//	migrate down      roll back the last migration
//	migrate goto N    migrate to version N
//	migrate status    print the current version
//
// DATABASE_URL is read from the environment or a local .env file.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/joho/godotenv"

	"billingsync/internal/db"
)

// migrator is the subset of *migrate.Migrate the commands use.
type migrator interface {
	Up() error
	Steps(n int) error
	Migrate(version uint) error
	Version() (version uint, dirty bool, err error)
}

func main() {
	_ = godotenv.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(2)
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		logger.Error("DATABASE_URL is not set")
		os.Exit(1)
	}

	m, err := db.NewMigrator(databaseURL)
	if err != nil {
		logger.Error("failed to initialize migrator", "error", err)
		os.Exit(1)
	}

	runErr := run(m, os.Args[1:], logger)

	if sourceErr, dbErr := m.Close(); sourceErr != nil || dbErr != nil {
		logger.Warn("failed to close migration resources", "source_error", sourceErr, "database_error", dbErr)
	}

	if runErr != nil {
		if errors.Is(runErr, errUsage) {
			printUsage(os.Stderr)
			os.Exit(2)
		}
		logger.Error("migration failed", "command", os.Args[1], "error", runErr)
		os.Exit(1)
	}
}

var errUsage = errors.New("usage")

func run(m migrator, args []string, logger *slog.Logger) error {
	if len(args) == 0 {
		return errUsage
	}

	switch args[0] {
	case "up":
		err := m.Up()
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("schema already up to date")
			return nil
		}
		if err != nil {
			return fmt.Errorf("applying migrations: %w", err)
		}
		logger.Info("migrations applied")

	case "down":
		if err := m.Steps(-1); err != nil {
			return fmt.Errorf("rolling back last migration: %w", err)
		}
		logger.Info("last migration rolled back")

	case "goto":
		if len(args) < 2 {
			return errUsage
		}
		version, err := strconv.ParseUint(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		err = m.Migrate(uint(version))
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("schema already at version", "version", version)
			return nil
		}
		if err != nil {
			return fmt.Errorf("migrating to version %d: %w", version, err)
		}
		logger.Info("migrated to version", "version", version)

	case "status":
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			logger.Info("no migrations applied")
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
		logger.Info("current schema version", "version", version, "dirty", dirty)

	default:
		return errUsage
	}
	return nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: migrate <command>")
	fmt.Fprintln(w, "commands:")
	fmt.Fprintln(w, "  up       apply all pending migrations")
	fmt.Fprintln(w, "  down     roll back the last migration")
	fmt.Fprintln(w, "  goto N   migrate to version N")
	fmt.Fprintln(w, "  status   print the current schema version")
}
