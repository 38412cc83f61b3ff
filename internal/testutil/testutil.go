// AngelaMos | 2026
// testutil.go

// Package testutil builds in-process stores for tests.
package testutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/carterperez-dev/templates/auth-backend/internal/migrations"
)

// NewSQLite opens a migrated sqlite database in a temp dir.
func NewSQLite(t *testing.T) *sqlx.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "auth.db")
	dsn := fmt.Sprintf(
		"file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)",
		path,
	)

	db, err := sqlx.Open("sqlite", dsn)
	require.NoError(t, err)

	db.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = db.Close()
	})

	require.NoError(t, migrations.Up(
		context.Background(),
		db.DB,
		migrations.DialectSQLite,
	))

	return db
}

// NewRedis starts a miniredis server and returns a client bound to it.
func NewRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
	})

	return mr, client
}

func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
