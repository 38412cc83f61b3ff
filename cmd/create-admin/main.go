// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/carterperez-dev/templates/auth-backend/internal/config"
	"github.com/carterperez-dev/templates/auth-backend/internal/core"
	"github.com/carterperez-dev/templates/auth-backend/internal/user"
)

type adminInput struct {
	Email    string
	Password string
	Name     string
}

func main() {
	in := inputFromEnv()

	configPath := flag.String("config", "", "path to config file")
	flag.StringVar(&in.Email, "email", in.Email, "admin email (ADMIN_EMAIL)")
	flag.StringVar(&in.Password, "password", in.Password, "admin password (ADMIN_PASSWORD)")
	flag.StringVar(&in.Name, "name", in.Name, "admin display name (ADMIN_NAME)")
	flag.Parse()

	if err := run(*configPath, in); err != nil {
		slog.Error("create admin failed", "email", in.Email, "error", err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func inputFromEnv() adminInput {
	return adminInput{
		Email:    envOr("ADMIN_EMAIL", "admin@example.com"),
		Password: envOr("ADMIN_PASSWORD", "admin123"),
		Name:     envOr("ADMIN_NAME", "Admin User"),
	}
}

func run(configPath string, in adminInput) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
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

	return createAdmin(ctx, db.DB, slog.Default(), in)
}

func createAdmin(
	ctx context.Context,
	db *sqlx.DB,
	logger *slog.Logger,
	in adminInput,
) error {
	u, created, err := user.EnsureAdmin(ctx, db, in.Email, in.Password, in.Name)
	if err != nil {
		return err
	}

	if created {
		logger.Info("admin user created", "id", u.ID, "email", u.Email)
	} else {
		logger.Info("existing user promoted to admin", "id", u.ID, "email", u.Email)
	}
	return nil
}
