// Package setups builds the database-facing platform stack shared by the API server and the CLI.
package setups

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/zenGate-Global/notification-service/platform/go/metrics"
	"github.com/zenGate-Global/notification-service/platform/go/persistence"
	"github.com/zenGate-Global/notification-service/platform/go/tenant"
)

// DatabaseConfig is read from the environment by every binary.
type DatabaseConfig struct {
	URL                string        `env:"DATABASE_URL,required"`
	MaxConns           int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	MinConns           int32         `env:"DB_MIN_CONNS" envDefault:"0"`
	ConnectTimeout     time.Duration `env:"DB_CONNECT_TIMEOUT" envDefault:"10s"`
	ApplicationName    string        `env:"DB_APPLICATION_NAME" envDefault:"notification-service"`
	AcquireTimeout     time.Duration `env:"DB_ACQUIRE_TIMEOUT" envDefault:"5s"`
	ResetTimeout       time.Duration `env:"DB_RESET_TIMEOUT" envDefault:"5s"`
	PlatformSchema     string        `env:"PLATFORM_SCHEMA" envDefault:"public"`
	SchemaPrefix       string        `env:"TENANT_SCHEMA_PREFIX" envDefault:"tenant_"`
	ManagementPrefixes []string      `env:"TENANT_MANAGEMENT_PREFIXES" envSeparator:"," envDefault:"/api/v1/tenants"`
	MigrateOnStart     bool          `env:"MIGRATE_ON_START" envDefault:"true"`
}

// CacheConfig selects the tenant status cache. An empty RedisURL keeps the cache in memory.
type CacheConfig struct {
	TTL          time.Duration `env:"TENANT_STATUS_CACHE_TTL" envDefault:"30s"`
	RedisURL     string        `env:"REDIS_URL"`
	RedisTimeout time.Duration `env:"REDIS_TIMEOUT" envDefault:"3s"`
	RedisPrefix  string        `env:"REDIS_KEY_PREFIX"`
}

// Stack is the tenant-aware persistence layer.
type Stack struct {
	Pool     *pgxpool.Pool
	Resolver *tenant.Resolver
	Conns    *persistence.ConnProvider
	DB       *persistence.TenantDB
}

// LoadDotEnv loads the given .env files into the process environment, skipping files that
// do not exist. Variables already set are not overridden.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// NewStack opens the pool, validates routing policy and, when enabled, migrates the platform schema.
// Close the returned stack's pool with persistence.ClosePool.
func NewStack(ctx context.Context, cfg DatabaseConfig, logger *zap.Logger, m *metrics.Metrics) (*Stack, error) {
	resolver, err := tenant.NewResolver(tenant.ResolverConfig{
		DefaultSchema:      cfg.PlatformSchema,
		SchemaPrefix:       cfg.SchemaPrefix,
		ManagementPrefixes: cfg.ManagementPrefixes,
	})
	if err != nil {
		return nil, fmt.Errorf("tenant routing config: %w", err)
	}

	pool, err := persistence.NewPool(ctx, persistence.PoolConfig{
		ConnString:      cfg.URL,
		DefaultSchema:   resolver.DefaultSchema(),
		ApplicationName: cfg.ApplicationName,
		MaxConns:        cfg.MaxConns,
		MinConns:        cfg.MinConns,
		ConnectTimeout:  cfg.ConnectTimeout,
	})
	if err != nil {
		return nil, err
	}

	if cfg.MigrateOnStart {
		if err := persistence.MigratePlatform(ctx, pool, resolver.DefaultSchema(), logger); err != nil {
			persistence.ClosePool(pool)
			return nil, err
		}
	}

	conns := persistence.NewConnProvider(persistence.ConnProviderConfig{
		Pool:           pool,
		DefaultSchema:  resolver.DefaultSchema(),
		AcquireTimeout: cfg.AcquireTimeout,
		ResetTimeout:   cfg.ResetTimeout,
		Logger:         logger,
		Metrics:        m,
	})

	return &Stack{
		Pool:     pool,
		Resolver: resolver,
		Conns:    conns,
		DB:       persistence.NewTenantDB(persistence.TenantDBConfig{Conns: conns, Resolver: resolver}),
	}, nil
}

// NewStatusCache returns a Redis-backed cache when RedisURL is set and an in-memory one otherwise.
// The returned close func is never nil.
func NewStatusCache(ctx context.Context, cfg CacheConfig, logger *zap.Logger) (tenant.StatusCache, func(), error) {
	if cfg.RedisURL == "" {
		return tenant.NewMemoryStatusCache(cfg.TTL), func() {}, nil
	}

	client, err := tenant.ConnectRedis(ctx, cfg.RedisURL, cfg.RedisTimeout)
	if err != nil {
		return nil, func() {}, err
	}
	logger.Info("tenant status cache backed by redis", zap.String("addr", client.Options().Addr), zap.Duration("ttl", cfg.TTL))
	return tenant.NewRedisStatusCache(client, cfg.TTL, cfg.RedisPrefix), func() { _ = client.Close() }, nil
}
