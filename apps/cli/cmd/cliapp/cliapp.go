// Package cliapp opens the services the CLI commands operate on.
package cliapp

import (
	"context"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"

	tenantsprov "github.com/zenGate-Global/notification-service/domains/tenants/be/provisioning"
	tenantsrepo "github.com/zenGate-Global/notification-service/domains/tenants/be/repo"
	tenantsservice "github.com/zenGate-Global/notification-service/domains/tenants/be/service"
	usersrepo "github.com/zenGate-Global/notification-service/domains/users/be/repo"
	usersservice "github.com/zenGate-Global/notification-service/domains/users/be/service"
	platformlogging "github.com/zenGate-Global/notification-service/platform/go/logging"
	"github.com/zenGate-Global/notification-service/platform/go/persistence"
	"github.com/zenGate-Global/notification-service/platform/go/setups"
)

// Options are the persistent root flags.
type Options struct {
	EnvFile     string
	DatabaseURL string
	LogLevel    string
}

type config struct {
	LogLevel string `env:"LOG_LEVEL" envDefault:"warn"`
	Database setups.DatabaseConfig
	Cache    setups.CacheConfig
}

// App holds the opened stack. Close releases it.
type App struct {
	Logger  *zap.Logger
	Stack   *setups.Stack
	Tenants *tenantsservice.Service
	Users   usersservice.Service

	closers []func()
}

// LoadConfig reads the environment, applying flag overrides.
func LoadConfig(opts Options) (setups.DatabaseConfig, string, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return setups.DatabaseConfig{}, "", err
	}
	return cfg.Database, cfg.LogLevel, nil
}

func loadConfig(opts Options) (config, error) {
	if opts.EnvFile != "" {
		if err := setups.LoadDotEnv(opts.EnvFile); err != nil {
			return config{}, err
		}
	}
	if opts.DatabaseURL != "" {
		if err := os.Setenv("DATABASE_URL", opts.DatabaseURL); err != nil {
			return config{}, err
		}
	}

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return config{}, fmt.Errorf("load config: %w", err)
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	return cfg, nil
}

// NewLogger builds the CLI logger. Entries go to stderr so command output stays parseable.
func NewLogger(level string) (*zap.Logger, error) {
	return platformlogging.NewLogger(platformlogging.Config{
		Component: "cli",
		Level:     level,
		Output:    os.Stderr,
	})
}

// Open connects to the database and builds the tenant and user services.
func Open(ctx context.Context, opts Options) (*App, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	app := &App{Logger: logger}
	app.closers = append(app.closers, func() { _ = logger.Sync() })

	stack, err := setups.NewStack(ctx, cfg.Database, logger, nil)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Stack = stack
	app.closers = append(app.closers, func() { persistence.ClosePool(stack.Pool) })

	// Status changes reach running servers at once only through a shared Redis cache.
	warnLocalStatusCache(logger, cfg.Cache)
	cache, closeCache, err := setups.NewStatusCache(ctx, cfg.Cache, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.closers = append(app.closers, closeCache)

	tenantStore, err := persistence.NewTenantStore(stack.DB)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Tenants = tenantsservice.New(
		tenantsrepo.NewPostgresRepository(tenantStore),
		tenantsprov.NewDBProvisioner(stack.DB, stack.Resolver.SchemaPrefix(), logger),
		tenantsservice.Config{
			SchemaPrefix: stack.Resolver.SchemaPrefix(),
			StatusCache:  cache,
			Logger:       logger,
		},
	)

	userStore, err := persistence.NewUserStore(stack.DB)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Users = usersservice.New(usersrepo.NewPostgresRepository(userStore))

	return app, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func warnLocalStatusCache(logger *zap.Logger, cfg setups.CacheConfig) {
	if cfg.RedisURL != "" || cfg.TTL <= 0 {
		return
	}
	logger.Warn("REDIS_URL is not set; running API servers keep cached tenant status until it expires",
		zap.Duration("ttl", cfg.TTL))
}
