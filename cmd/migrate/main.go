// Command migrate manages the postgres schema.
package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"aktieskat/internal/database"
	"aktieskat/internal/logger"
)

const usage = "usage: migrate <up|down|version> [N]"

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(os.Args[1:]); err != nil {
		logger.Get().Fatalf("Migration error: %v", err)
	}
}

func run(args []string) error {
	if len(args) < 1 {
		return errors.New(usage)
	}

	steps := 1
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid step count: %w", err)
		}
		steps = n
	}

	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}
	if dbConfig.Driver != database.DriverPostgres {
		return fmt.Errorf("migrate only supports postgres; sqlite databases are migrated on startup")
	}

	m, err := database.NewManager(dbConfig)
	if err != nil {
		return err
	}
	defer m.Close()

	log := logger.Get()
	switch args[0] {
	case "up":
		if err := m.RunMigrations(); err != nil {
			return err
		}

	case "down":
		if err := m.RollbackMigrations(steps); err != nil {
			return err
		}
		log.Infof("Rolled back %d migration(s)", steps)

	case "version":
		version, dirty, err := m.MigrationVersion()
		if err != nil {
			return fmt.Errorf("failed to get version: %w", err)
		}
		log.Infof("Version: %d, Dirty: %v", version, dirty)

	default:
		return fmt.Errorf("unknown command: %s (use up, down, or version)", args[0])
	}

	return nil
}
