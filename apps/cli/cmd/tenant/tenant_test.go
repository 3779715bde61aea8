package tenantcmd

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/zenGate-Global/notification-service/domains/tenants/be/repo"
	"github.com/zenGate-Global/notification-service/domains/tenants/be/service"
	usersservice "github.com/zenGate-Global/notification-service/domains/users/be/service"
	"github.com/zenGate-Global/notification-service/platform/go/tenant"
)

type stubProvisioner struct {
	mu      sync.Mutex
	schemas map[string]bool
	drops   int
}

func (p *stubProvisioner) Ensure(_ context.Context, schema string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.schemas[schema] = true
	return nil
}

func (p *stubProvisioner) Drop(_ context.Context, schema string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.drops++
	delete(p.schemas, schema)
	return nil
}

func (p *stubProvisioner) Check(_ context.Context, schema string) (service.SchemaStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.schemas[schema] {
		return service.SchemaStatus{SchemaName: schema, TablesExpected: 2, MissingTables: []string{"notifications", "users"}}, nil
	}
	return service.SchemaStatus{SchemaName: schema, Exists: true, TablesExpected: 2, TablesPresent: 2}, nil
}

type mockUsers struct {
	usersservice.Service
	createFn func(ctx context.Context, input usersservice.CreateInput) (usersservice.User, error)
}

func (m *mockUsers) Create(ctx context.Context, input usersservice.CreateInput) (usersservice.User, error) {
	return m.createFn(ctx, input)
}

type fixture struct {
	prov   *stubProvisioner
	users  *mockUsers
	opens  int
	closes int
	cmd    func(args ...string) (string, error)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{prov: &stubProvisioner{schemas: map[string]bool{}}, users: &mockUsers{}}
	svc := service.New(repo.NewMemoryRepository(), f.prov, service.Config{Logger: zaptest.NewLogger(t)})

	open := func(context.Context) (Services, error) {
		f.opens++
		return Services{Tenants: svc, Users: f.users, Close: func() { f.closes++ }}, nil
	}

	f.cmd = func(args ...string) (string, error) {
		cmd := Command(open)
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs(args)
		cmd.SilenceUsage = true
		cmd.SilenceErrors = true
		err := cmd.ExecuteContext(context.Background())
		return out.String(), err
	}
	return f
}

func TestOnboardListAndStatus(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	out, err := f.cmd("onboard", "--identifier", "acme_corp", "--name", "Acme Corp")
	require.NoError(t, err)
	require.Contains(t, out, "Tenant acme_corp onboarded (schema tenant_acme_corp)")
	require.True(t, f.prov.schemas["tenant_acme_corp"])

	_, err = f.cmd("onboard", "--identifier", "globex", "--name", "Globex")
	require.NoError(t, err)

	out, err = f.cmd("deactivate", "globex")
	require.NoError(t, err)
	require.Contains(t, out, "Tenant globex is INACTIVE")

	out, err = f.cmd("list", "--status", "active")
	require.NoError(t, err)
	require.Contains(t, out, "acme_corp")
	require.NotContains(t, out, "globex")

	out, err = f.cmd("list")
	require.NoError(t, err)
	require.Contains(t, out, "IDENTIFIER")
	require.Contains(t, out, "globex")

	out, err = f.cmd("activate", "globex")
	require.NoError(t, err)
	require.Contains(t, out, "Tenant globex is ACTIVE")

	out, err = f.cmd("rename", "globex", "--name", "Globex Corporation")
	require.NoError(t, err)
	require.Contains(t, out, `"Globex Corporation"`)

	out, err = f.cmd("get", "globex")
	require.NoError(t, err)
	require.Contains(t, out, "Globex Corporation")

	require.Equal(t, f.opens, f.closes)
}

func TestOnboardRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.cmd("onboard", "--identifier", "Acme-Corp", "--name", "Acme Corp")
	var verr *service.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Empty(t, f.prov.schemas)

	opened := f.opens
	_, err = f.cmd("onboard", "--identifier", "acme_corp", "--name", "Acme", "--admin-email", "ops@acme.test")
	require.ErrorContains(t, err, "must be given together")
	require.Equal(t, opened, f.opens)

	_, err = f.cmd("list", "--status", "pending")
	require.ErrorContains(t, err, "unknown status")
}

func TestOnboardSeedsAdminInTenantScope(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	var seededFor string
	f.users.createFn = func(ctx context.Context, input usersservice.CreateInput) (usersservice.User, error) {
		seededFor, _ = tenant.IdentifierFromContext(ctx)
		require.Equal(t, "ops@acme.test", input.Email)
		return usersservice.User{Email: input.Email, FullName: input.FullName}, nil
	}

	out, err := f.cmd("onboard", "--identifier", "acme_corp", "--name", "Acme Corp",
		"--admin-email", "ops@acme.test", "--admin-full-name", "Acme Ops")
	require.NoError(t, err)
	require.Equal(t, "acme_corp", seededFor)
	require.Contains(t, out, "Admin user ops@acme.test created in tenant_acme_corp")
}

func TestOnboardReportsSeedFailure(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.users.createFn = func(context.Context, usersservice.CreateInput) (usersservice.User, error) {
		return usersservice.User{}, usersservice.ErrConflict
	}

	_, err := f.cmd("onboard", "--identifier", "acme_corp", "--name", "Acme Corp",
		"--admin-email", "ops@acme.test", "--admin-full-name", "Acme Ops")
	require.ErrorIs(t, err, usersservice.ErrConflict)
	// The tenant itself stays onboarded.
	require.True(t, f.prov.schemas["tenant_acme_corp"])
}

func TestRecreateSchemaNeedsConfirmation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.cmd("onboard", "--identifier", "acme_corp", "--name", "Acme Corp")
	require.NoError(t, err)

	_, err = f.cmd("recreate-schema", "acme_corp")
	require.ErrorIs(t, err, errConfirmationRequired)
	require.Zero(t, f.prov.drops)

	out, err := f.cmd("recreate-schema", "acme_corp", "--yes")
	require.NoError(t, err)
	require.Contains(t, out, "Schema tenant_acme_corp recreated (2/2 tables)")
	require.Equal(t, 1, f.prov.drops)

	_, err = f.cmd("recreate-schema", "nobody", "--yes")
	require.ErrorIs(t, err, service.ErrNotFound)
}

func TestVerifyFailsWhenSchemaMissing(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.cmd("onboard", "--identifier", "acme_corp", "--name", "Acme Corp")
	require.NoError(t, err)

	out, err := f.cmd("verify", "acme_corp")
	require.NoError(t, err)
	require.Contains(t, out, "exists=true tables=2/2")

	delete(f.prov.schemas, "tenant_acme_corp")
	out, err = f.cmd("verify", "acme_corp")
	require.Error(t, err)
	require.Contains(t, out, "Missing tables: notifications, users")
}

func TestDelete(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	_, err := f.cmd("onboard", "--identifier", "acme_corp", "--name", "Acme Corp")
	require.NoError(t, err)

	_, err = f.cmd("delete", "acme_corp", "--drop-schema")
	require.ErrorIs(t, err, errConfirmationRequired)

	out, err := f.cmd("delete", "acme_corp", "--drop-schema", "--yes")
	require.NoError(t, err)
	require.Contains(t, out, "deleted with its schema")
	require.Empty(t, f.prov.schemas)

	_, err = f.cmd("get", "acme_corp")
	require.ErrorIs(t, err, service.ErrNotFound)
}

func TestOpenerErrorIsReturned(t *testing.T) {
	t.Parallel()

	boom := errors.New("connection refused")
	cmd := Command(func(context.Context) (Services, error) { return Services{}, boom })
	cmd.SetArgs([]string{"list"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	require.ErrorIs(t, cmd.ExecuteContext(context.Background()), boom)
}
