package main

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	appconfig "github.com/wolfman30/careconnect-platform/internal/config"
	appmigrations "github.com/wolfman30/careconnect-platform/migrations"
	"github.com/wolfman30/careconnect-platform/pkg/logging"
)

// Usage: migrate [up|down|version|force <version>]
func main() {
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel).Component("migrate")

	if err := run(cfg.DatabaseURL, os.Args[1:], logger); err != nil {
		logger.Error("migration failed", "error", err)
		os.Exit(1)
	}
}

func run(databaseURL string, args []string, logger *logging.Logger) error {
	cmd, err := parseCommand(args)
	if err != nil {
		return err
	}
	if strings.TrimSpace(databaseURL) == "" {
		return errors.New("DATABASE_URL is required")
	}

	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping db: %w", err)
	}

	dbDriver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("db driver: %w", err)
	}
	srcDriver, err := iofs.New(appmigrations.FS, ".")
	if err != nil {
		return fmt.Errorf("source driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", srcDriver, "postgres", dbDriver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer func() { _, _ = m.Close() }()

	switch cmd.name {
	case "force":
		if err := m.Force(cmd.version); err != nil {
			return fmt.Errorf("force version: %w", err)
		}
		logger.Info("forced schema version", "version", cmd.version)
	case "down":
		if err := m.Steps(-1); err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
		logger.Info("rolled back one migration")
	case "version":
		version, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			return fmt.Errorf("read version: %w", err)
		}
		logger.Info("schema version", "version", version, "dirty", dirty)
	default:
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migrate up: %w", err)
		}
		logger.Info("migrations complete")
	}
	return nil
}

type command struct {
	name    string
	version int
}

func parseCommand(args []string) (command, error) {
	if len(args) == 0 {
		return command{name: "up"}, nil
	}
	switch args[0] {
	case "up", "down", "version":
		return command{name: args[0]}, nil
	case "force":
		if len(args) < 2 {
			return command{}, errors.New("force requires a version")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return command{}, fmt.Errorf("invalid version: %w", err)
		}
		return command{name: "force", version: version}, nil
	}
	return command{}, fmt.Errorf("unknown command %q", args[0])
}
