package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	tenantsprov "github.com/zenGate-Global/notification-service/domains/tenants/be/provisioning"
	tenantsrepo "github.com/zenGate-Global/notification-service/domains/tenants/be/repo"
	tenantsservice "github.com/zenGate-Global/notification-service/domains/tenants/be/service"
	usersrepo "github.com/zenGate-Global/notification-service/domains/users/be/repo"
	usersservice "github.com/zenGate-Global/notification-service/domains/users/be/service"
	platformlogging "github.com/zenGate-Global/notification-service/platform/go/logging"
	"github.com/zenGate-Global/notification-service/platform/go/metrics"
	"github.com/zenGate-Global/notification-service/platform/go/persistence"
	"github.com/zenGate-Global/notification-service/platform/go/setups"
)

type config struct {
	Port            string        `env:"PORT" envDefault:"3000"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"15s"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	TenantHeader    string        `env:"TENANT_HEADER" envDefault:"X-Tenant-ID"`

	Database setups.DatabaseConfig
	Cache    setups.CacheConfig
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Fatalf("api server: %v", err)
	}
}

// run serves until ctx is cancelled, then drains in-flight requests.
func run(ctx context.Context) error {
	if err := setups.LoadDotEnv(".env"); err != nil {
		return err
	}

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := platformlogging.NewLogger(platformlogging.Config{Component: "api-server", Level: cfg.LogLevel})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(registry)

	stack, err := setups.NewStack(ctx, cfg.Database, logger, m)
	if err != nil {
		return fmt.Errorf("init database stack: %w", err)
	}
	defer persistence.ClosePool(stack.Pool)

	statusCache, closeCache, err := setups.NewStatusCache(ctx, cfg.Cache, logger)
	if err != nil {
		return fmt.Errorf("init tenant status cache: %w", err)
	}
	defer closeCache()

	tenantStore, err := persistence.NewTenantStore(stack.DB)
	if err != nil {
		return err
	}
	userStore, err := persistence.NewUserStore(stack.DB)
	if err != nil {
		return err
	}

	tenantService := tenantsservice.New(
		tenantsrepo.NewPostgresRepository(tenantStore),
		tenantsprov.NewDBProvisioner(stack.DB, stack.Resolver.SchemaPrefix(), logger),
		tenantsservice.Config{
			SchemaPrefix: stack.Resolver.SchemaPrefix(),
			StatusCache:  statusCache,
			Logger:       logger,
			Metrics:      m,
		},
	)

	router, err := buildRouter(routerConfig{
		Logger:         logger,
		RequestTimeout: cfg.RequestTimeout,
		Resolver:       stack.Resolver,
		TenantHeader:   cfg.TenantHeader,
		Tenants:        tenantService,
		Status:         tenantService,
		Users:          usersservice.New(usersrepo.NewPostgresRepository(userStore)),
		Metrics:        m,
		Gatherer:       registry,
		Ready:          stack.Pool.Ping,
	})
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("starting api server",
			zap.String("port", cfg.Port),
			zap.String("platformSchema", stack.Resolver.DefaultSchema()),
			zap.String("tenantSchemaPrefix", stack.Resolver.SchemaPrefix()))
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}
