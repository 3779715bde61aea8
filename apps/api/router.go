package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/zenGate-Global/notification-service/contracts"
	tenantshandler "github.com/zenGate-Global/notification-service/domains/tenants/be/handler"
	usershandler "github.com/zenGate-Global/notification-service/domains/users/be/handler"
	usersservice "github.com/zenGate-Global/notification-service/domains/users/be/service"
	platformlogging "github.com/zenGate-Global/notification-service/platform/go/logging"
	"github.com/zenGate-Global/notification-service/platform/go/metrics"
	platformmiddleware "github.com/zenGate-Global/notification-service/platform/go/middleware"
	"github.com/zenGate-Global/notification-service/platform/go/tenant"
	tenantmiddleware "github.com/zenGate-Global/notification-service/platform/go/tenant/middleware"
)

type routerConfig struct {
	Logger         *zap.Logger
	RequestTimeout time.Duration
	Resolver       *tenant.Resolver
	TenantHeader   string
	Tenants        tenantshandler.Service
	Status         tenantmiddleware.StatusChecker
	Users          usersservice.Service
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	Ready          func(ctx context.Context) error
}

func buildRouter(cfg routerConfig) (http.Handler, error) {
	tenantsSpec, err := contracts.LoadTenants()
	if err != nil {
		return nil, err
	}

	var corsHeaders []string
	if cfg.TenantHeader != "" && cfg.TenantHeader != tenantmiddleware.DefaultHeader {
		corsHeaders = append(corsHeaders, cfg.TenantHeader)
	}

	root := chi.NewRouter()
	root.Use(
		chimw.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		chimw.Timeout(cfg.RequestTimeout),
		platformmiddleware.DefaultCORS(corsHeaders...),
	)
	root.Use(platformlogging.RequestLogger(cfg.Logger))

	root.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	root.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Ready != nil {
			if err := cfg.Ready(r.Context()); err != nil {
				platformlogging.FromRequest(r, cfg.Logger).Warn("readiness check failed", zap.Error(err))
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})
	if cfg.Gatherer != nil {
		root.Handle("/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}

	registerDocsRoutes(root, cfg.Logger)

	root.Group(func(api chi.Router) {
		api.Use(tenantmiddleware.WithTenantContext(tenantmiddleware.Config{
			Header:   cfg.TenantHeader,
			Resolver: cfg.Resolver,
			Status:   cfg.Status,
			Logger:   cfg.Logger,
			Metrics:  cfg.Metrics,
		}))

		api.Group(func(r chi.Router) {
			r.Use(platformmiddleware.SpecValidator(tenantsSpec, cfg.Logger))
			r.Route(tenantshandler.BasePath, tenantshandler.New(cfg.Tenants, cfg.Logger).Routes)
		})

		api.Route(usershandler.BasePath, usershandler.New(cfg.Users, cfg.Logger).Routes)
	})

	return root, nil
}
