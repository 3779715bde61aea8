// Package pgtest starts throwaway PostgreSQL containers for integration tests.
package pgtest

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

const image = "postgres:16-alpine"

// Start runs a PostgreSQL container for the lifetime of t and returns its connection string.
// It skips the test in -short mode.
func Start(t *testing.T) string {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pgContainer, err := postgres.Run(ctx,
		image,
		postgres.WithDatabase("notify"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(wait.ForListeningPort("5432/tcp").WithStartupTimeout(2*time.Minute)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		_ = pgContainer.Terminate(context.Background())
	})

	connString, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("postgres connection string: %v", err)
	}
	return connString
}

// Pool opens a pool against connString with search_path pinned to defaultSchema and maxConns
// connections, closing it when t finishes.
func Pool(t *testing.T, connString, defaultSchema string, maxConns int32) *pgxpool.Pool {
	t.Helper()

	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		t.Fatalf("parse pool config: %v", err)
	}
	if defaultSchema != "" {
		cfg.ConnConfig.RuntimeParams["search_path"] = defaultSchema
	}
	if maxConns > 0 {
		cfg.MaxConns = maxConns
	}

	pool, err := pgxpool.NewWithConfig(context.Background(), cfg)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}
