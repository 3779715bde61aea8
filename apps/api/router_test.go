package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	tenantsrepo "github.com/zenGate-Global/notification-service/domains/tenants/be/repo"
	tenantsservice "github.com/zenGate-Global/notification-service/domains/tenants/be/service"
	usersservice "github.com/zenGate-Global/notification-service/domains/users/be/service"
	"github.com/zenGate-Global/notification-service/platform/go/metrics"
	"github.com/zenGate-Global/notification-service/platform/go/problemdetails"
	"github.com/zenGate-Global/notification-service/platform/go/tenant"
)

type memoryProvisioner struct {
	mu      sync.Mutex
	schemas map[string]bool
}

func (p *memoryProvisioner) Ensure(_ context.Context, schema string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.schemas[schema] = true
	return nil
}

func (p *memoryProvisioner) Drop(_ context.Context, schema string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.schemas, schema)
	return nil
}

func (p *memoryProvisioner) Check(_ context.Context, schema string) (tenantsservice.SchemaStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return tenantsservice.SchemaStatus{SchemaName: schema, Exists: p.schemas[schema], TablesExpected: 1, TablesPresent: 1}, nil
}

// recordingUsers captures the tenant each users call ran for.
type recordingUsers struct {
	usersservice.Service
	mu      sync.Mutex
	tenants []string
}

func (u *recordingUsers) List(ctx context.Context, _ usersservice.ListOptions) (usersservice.ListResult, error) {
	identifier, _ := tenant.IdentifierFromContext(ctx)
	u.mu.Lock()
	u.tenants = append(u.tenants, identifier)
	u.mu.Unlock()
	return usersservice.ListResult{Users: []usersservice.User{}, Page: 1, PageSize: 20}, nil
}

type fixture struct {
	router   http.Handler
	prov     *memoryProvisioner
	users    *recordingUsers
	registry *prometheus.Registry
}

func newFixture(t *testing.T, ready func(context.Context) error) *fixture {
	t.Helper()

	logger := zaptest.NewLogger(t)
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	resolver, err := tenant.NewResolver(tenant.ResolverConfig{})
	require.NoError(t, err)

	prov := &memoryProvisioner{schemas: map[string]bool{}}
	svc := tenantsservice.New(tenantsrepo.NewMemoryRepository(), prov, tenantsservice.Config{
		StatusCache: tenant.NewMemoryStatusCache(time.Minute),
		Logger:      logger,
		Metrics:     m,
	})
	users := &recordingUsers{}

	router, err := buildRouter(routerConfig{
		Logger:         logger,
		RequestTimeout: 5 * time.Second,
		Resolver:       resolver,
		Tenants:        svc,
		Status:         svc,
		Users:          users,
		Metrics:        m,
		Gatherer:       registry,
		Ready:          ready,
	})
	require.NoError(t, err)

	return &fixture{router: router, prov: prov, users: users, registry: registry}
}

func (f *fixture) do(t *testing.T, method, target, tenantID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if tenantID != "" {
		req.Header.Set("X-Tenant-ID", tenantID)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) problemdetails.ProblemDetails {
	t.Helper()
	var p problemdetails.ProblemDetails
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

func TestHealthAndReadiness(t *testing.T) {
	t.Parallel()

	f := newFixture(t, func(context.Context) error { return nil })
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", "", "").Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/readyz", "", "").Code)

	down := newFixture(t, func(context.Context) error { return errors.New("connection refused") })
	require.Equal(t, http.StatusServiceUnavailable, down.do(t, http.MethodGet, "/readyz", "", "").Code)
}

func TestDocsRoutes(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	rec := f.do(t, http.MethodGet, "/docs", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "/openapi/tenants.json")

	rec = f.do(t, http.MethodGet, "/openapi/tenants.json", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	require.Contains(t, doc, "paths")

	require.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, "/openapi/unknown.json", "", "").Code)
}

func TestTenantRoutingEndToEnd(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	// Management endpoints need no tenant header.
	rec := f.do(t, http.MethodPost, "/api/v1/tenants/onboard", "", `{"tenantIdentifier":"acme_corp","name":"Acme Corp"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	require.True(t, f.prov.schemas["tenant_acme_corp"])

	rec = f.do(t, http.MethodGet, "/api/v1/users", "acme_corp", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/v1/users", "", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, problemdetails.TypeTenantRequired, decodeProblem(t, rec).Type)

	rec = f.do(t, http.MethodGet, "/api/v1/users", "Bad-Id", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/users", "globex", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/tenants/acme_corp/deactivate", "", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/v1/users", "acme_corp", "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, problemdetails.TypeTenantInactive, decodeProblem(t, rec).Type)

	require.Equal(t, []string{"acme_corp"}, f.users.tenants)
}

func TestTenantContractValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)

	rec := f.do(t, http.MethodPost, "/api/v1/tenants/onboard", "", `{"tenantIdentifier":"acme_corp"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, problemdetails.TypeValidation, decodeProblem(t, rec).Type)
	require.Empty(t, f.prov.schemas)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	f.do(t, http.MethodGet, "/api/v1/users", "", "")

	rec := f.do(t, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "tenant_rejections_total")
}
