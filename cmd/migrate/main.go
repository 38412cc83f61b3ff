// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/carterperez-dev/templates/auth-backend/internal/config"
	"github.com/carterperez-dev/templates/auth-backend/internal/core"
	"github.com/carterperez-dev/templates/auth-backend/internal/migrations"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	command := flag.String("command", "up", "migration command: up, down, version")
	flag.Parse()

	if err := run(*configPath, *command); err != nil {
		slog.Error("migration failed", "command", *command, "error", err)
		os.Exit(1)
	}
}

func run(configPath, command string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	cfg, err := config.LoadDatabase(configPath)
	if err != nil {
		return err
	}

	db, err := core.NewDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // process exits right after

	sqlDB := db.DB.DB

	switch command {
	case "up":
		if err := migrations.Up(ctx, sqlDB, migrations.DialectPostgres); err != nil {
			return err
		}
	case "down":
		if err := migrations.Down(ctx, sqlDB, migrations.DialectPostgres); err != nil {
			return err
		}
	case "version":
	default:
		return fmt.Errorf("unknown command %q", command)
	}

	version, err := migrations.Version(ctx, sqlDB, migrations.DialectPostgres)
	if err != nil {
		return err
	}

	slog.Info("schema version", "command", command, "version", version)
	return nil
}
