package persistence

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/pressly/goose/v3/lock"
	"go.uber.org/zap"

	sqlassets "github.com/zenGate-Global/notification-service/database"
)

// ErrMigrationFailed wraps every failure of MigratePlatform.
var ErrMigrationFailed = errors.New("platform migration failed")

// MigratePlatform creates the platform schema if needed and applies the embedded goose
// migrations inside it, including the goose version table.
//
// The run holds a Postgres advisory lock for its whole session, so replicas that start
// together apply each migration once and the others wait for them.
func MigratePlatform(ctx context.Context, pool *pgxpool.Pool, schema string, logger *zap.Logger) error {
	schema = strings.TrimSpace(schema)
	if schema == "" {
		return errors.Join(ErrMigrationFailed, errors.New("platform schema is required"))
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("schema", schema))

	// Concurrent IF NOT EXISTS can still collide on pg_namespace; the loser finds the schema in place.
	_, err := pool.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{schema}.Sanitize())
	if err != nil && !IsDuplicateKeyError(err) {
		return errors.Join(ErrMigrationFailed, fmt.Errorf("create schema %q: %w", schema, err))
	}

	connConfig := pool.Config().ConnConfig.Copy()
	connConfig.RuntimeParams["search_path"] = pgx.Identifier{schema}.Sanitize()
	db := stdlib.OpenDB(*connConfig)
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("close migration connection", zap.Error(err))
		}
	}()

	migrations, err := fs.Sub(sqlassets.Migrations, sqlassets.MigrationsDir)
	if err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}
	locker, err := lock.NewPostgresSessionLocker()
	if err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, migrations, goose.WithSessionLocker(locker))
	if err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return errors.Join(ErrMigrationFailed, err)
	}
	for _, r := range results {
		logger.Info("platform migration applied",
			zap.Int64("version", r.Source.Version),
			zap.String("file", r.Source.Path),
			zap.Duration("duration", r.Duration))
	}

	logger.Info("platform schema up to date", zap.Int("applied", len(results)))
	return nil
}
