package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"

	"github.com/zenGate-Global/notification-service/platform/go/tenant"
)

func newTestTenantDB(t *testing.T, source *fakeSource) *TenantDB {
	t.Helper()
	resolver, err := tenant.NewResolver(tenant.ResolverConfig{DefaultSchema: source.defaultSchema})
	require.NoError(t, err)
	p, _ := newTestProvider(t, source)
	return NewTenantDB(TenantDBConfig{Conns: p, Resolver: resolver})
}

func inOperation(identifier string) context.Context {
	ctx := tenant.WithOperation(context.Background(), tenant.Operation{Name: "test", Path: "/api/v1/recipients"})
	if identifier != "" {
		ctx = tenant.WithIdentifier(ctx, identifier)
	}
	return ctx
}

func TestTenantDBWithTenantUsesResolvedSchema(t *testing.T) {
	t.Parallel()

	source := newFakeSource(1, "public", "tenant_acme_corp")
	db := newTestTenantDB(t, source)
	conn := source.conns[0]

	err := db.WithTenant(inOperation("acme_corp"), func(tx pgx.Tx) error {
		require.Equal(t, "tenant_acme_corp", conn.SearchPath())
		_, err := tx.Exec(context.Background(), "INSERT INTO users DEFAULT VALUES")
		return err
	})
	require.NoError(t, err)
	require.True(t, conn.tx.committed)
	require.Equal(t, []string{"INSERT INTO users DEFAULT VALUES"}, conn.tx.stmts)
	require.Equal(t, "public", conn.SearchPath())
}

func TestTenantDBWithTenantRequiresTenant(t *testing.T) {
	t.Parallel()

	source := newFakeSource(1, "public")
	db := newTestTenantDB(t, source)

	err := db.WithTenant(inOperation(""), func(pgx.Tx) error {
		t.Fatal("fn must not run without a tenant")
		return nil
	})
	require.ErrorIs(t, err, tenant.ErrTenantRequired)
	require.Zero(t, source.conns[0].released, "no connection is borrowed when resolution fails")
}

func TestTenantDBWithTenantUnknownSchema(t *testing.T) {
	t.Parallel()

	source := newFakeSource(1, "public")
	db := newTestTenantDB(t, source)

	err := db.WithTenant(inOperation("ghost_co"), func(pgx.Tx) error { return nil })
	require.ErrorIs(t, err, ErrSchemaBindFailed)
	require.Equal(t, "public", source.conns[0].SearchPath())
}

func TestTenantDBWithAdminIgnoresTenant(t *testing.T) {
	t.Parallel()

	source := newFakeSource(1, "public", "tenant_acme_corp")
	db := newTestTenantDB(t, source)
	conn := source.conns[0]

	err := db.WithAdmin(inOperation("acme_corp"), func(pgx.Tx) error {
		require.Equal(t, "public", conn.SearchPath())
		return nil
	})
	require.NoError(t, err)
}

func TestTenantDBRollsBackOnError(t *testing.T) {
	t.Parallel()

	source := newFakeSource(1, "public", "tenant_acme_corp")
	db := newTestTenantDB(t, source)
	boom := errors.New("boom")

	err := db.WithSchema(context.Background(), "tenant_acme_corp", func(pgx.Tx) error { return boom })
	require.ErrorIs(t, err, boom)
	require.True(t, source.conns[0].tx.rolledBack)
	require.False(t, source.conns[0].tx.committed)
	require.Equal(t, "public", source.conns[0].SearchPath())
}

func TestNewTenantDBRejectsMismatchedDefaults(t *testing.T) {
	t.Parallel()

	source := newFakeSource(1, "public")
	p, _ := newTestProvider(t, source)
	resolver, err := tenant.NewResolver(tenant.ResolverConfig{DefaultSchema: "platform"})
	require.NoError(t, err)

	require.Panics(t, func() { NewTenantDB(TenantDBConfig{Conns: p, Resolver: resolver}) })
}
