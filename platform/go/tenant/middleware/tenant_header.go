package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	platformlogging "github.com/zenGate-Global/notification-service/platform/go/logging"
	"github.com/zenGate-Global/notification-service/platform/go/metrics"
	"github.com/zenGate-Global/notification-service/platform/go/problemdetails"
	"github.com/zenGate-Global/notification-service/platform/go/tenant"
)

// DefaultHeader carries the tenant identifier on tenant-scoped requests.
const DefaultHeader = "X-Tenant-ID"

// StatusChecker reports whether a tenant exists and is active.
// Implementations return tenant.ErrTenantNotFound for unknown identifiers.
type StatusChecker interface {
	IsActive(ctx context.Context, identifier string) (bool, error)
}

// Config controls middleware behavior.
type Config struct {
	Header   string
	Resolver *tenant.Resolver
	// Optional. Without it any well-formed identifier is accepted and schema existence
	// is only checked when a connection is bound.
	Status  StatusChecker
	Logger  *zap.Logger
	Metrics *metrics.Metrics
}

// WithTenantContext starts an operation for every request and attaches the tenant named
// by the header. Management paths pass through without a tenant. The identifier never
// outlives the request because it only lives on the request context.
func WithTenantContext(cfg Config) func(http.Handler) http.Handler {
	if cfg.Resolver == nil {
		panic("tenant middleware: resolver is required")
	}
	if cfg.Header == "" {
		cfg.Header = DefaultHeader
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			op := tenant.Operation{
				Name: r.Method + " " + r.URL.Path,
				Path: r.URL.Path,
			}
			op.Management = cfg.Resolver.IsManagementPath(op.Path)

			ctx := tenant.WithOperation(tenant.WithoutIdentifier(r.Context()), op)
			if op.Management {
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			logger := platformlogging.FromRequest(r, cfg.Logger)

			identifier := strings.TrimSpace(r.Header.Get(cfg.Header))
			if identifier == "" {
				cfg.Metrics.TenantRejected("missing")
				problemdetails.Write(w, problemdetails.New(http.StatusBadRequest, problemdetails.TypeTenantRequired,
					"Tenant required", cfg.Header+" header is required"))
				return
			}
			if err := tenant.ValidateIdentifier(identifier); err != nil {
				cfg.Metrics.TenantRejected("invalid")
				problemdetails.Write(w, problemdetails.New(http.StatusBadRequest, problemdetails.TypeTenantRequired,
					"Invalid tenant", err.Error()))
				return
			}

			if cfg.Status != nil {
				active, err := cfg.Status.IsActive(ctx, identifier)
				switch {
				case errors.Is(err, tenant.ErrTenantNotFound):
					cfg.Metrics.TenantRejected("not_found")
					problemdetails.Write(w, problemdetails.New(http.StatusNotFound, problemdetails.TypeNotFound,
						"Tenant not found", "tenant "+identifier+" does not exist"))
					return
				case err != nil:
					cfg.Metrics.TenantRejected("unavailable")
					logger.Error("tenant status lookup failed", zap.String("tenant", identifier), zap.Error(err))
					problemdetails.Write(w, problemdetails.New(http.StatusServiceUnavailable, problemdetails.TypeUnavailable,
						"Service unavailable", "tenant directory is unavailable"))
					return
				case !active:
					cfg.Metrics.TenantRejected("inactive")
					problemdetails.Write(w, problemdetails.New(http.StatusForbidden, problemdetails.TypeTenantInactive,
						"Tenant inactive", "tenant "+identifier+" is deactivated"))
					return
				}
			}

			ctx = tenant.WithIdentifier(ctx, identifier)
			ctx = platformlogging.WithLogger(ctx, logger.With(zap.String("tenant", identifier)))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
