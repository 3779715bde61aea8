package provisioning

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/zenGate-Global/notification-service/domains/tenants/be/service"
	"github.com/zenGate-Global/notification-service/platform/go/persistence"
	"github.com/zenGate-Global/notification-service/platform/go/persistence/pgtest"
	"github.com/zenGate-Global/notification-service/platform/go/tenant"
)

type provisionerEnv struct {
	pool *pgxpool.Pool
	db   *persistence.TenantDB
	prov *DBProvisioner
}

func setupProvisioner(t *testing.T) provisionerEnv {
	t.Helper()

	pool := pgtest.Pool(t, pgtest.Start(t), tenant.DefaultSchema, 1)
	resolver, err := tenant.NewResolver(tenant.ResolverConfig{})
	require.NoError(t, err)

	conns := persistence.NewConnProvider(persistence.ConnProviderConfig{
		Pool:          pool,
		DefaultSchema: tenant.DefaultSchema,
		Logger:        zaptest.NewLogger(t),
	})
	db := persistence.NewTenantDB(persistence.TenantDBConfig{Conns: conns, Resolver: resolver})

	return provisionerEnv{
		pool: pool,
		db:   db,
		prov: NewDBProvisioner(db, tenant.DefaultSchemaPrefix, zaptest.NewLogger(t)),
	}
}

func countRows(t *testing.T, db *persistence.TenantDB, schema, table string) int {
	t.Helper()
	ctx := context.Background()

	var n int
	require.NoError(t, db.WithSchema(ctx, schema, func(tx pgx.Tx) error {
		return tx.QueryRow(ctx, "SELECT count(*) FROM "+pgx.Identifier{table}.Sanitize()).Scan(&n)
	}))
	return n
}

func TestDBProvisionerLifecycle(t *testing.T) {
	t.Parallel()

	env := setupProvisioner(t)
	ctx := context.Background()
	const schema = "tenant_acme_corp"

	before, err := env.prov.Check(ctx, schema)
	require.NoError(t, err)
	require.False(t, before.Exists)
	require.ElementsMatch(t, env.prov.Tables(), before.MissingTables)

	require.NoError(t, env.prov.Ensure(ctx, schema))
	// Ensure is idempotent.
	require.NoError(t, env.prov.Ensure(ctx, schema))

	after, err := env.prov.Check(ctx, schema)
	require.NoError(t, err)
	require.True(t, after.Ready())
	require.Equal(t, len(env.prov.Tables()), after.TablesPresent)
	require.Contains(t, env.prov.Tables(), "users")
	require.Contains(t, env.prov.Tables(), "notification_history")

	require.NoError(t, env.db.WithSchema(ctx, schema, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, "INSERT INTO users (user_id, email, full_name) VALUES ($1, $2, $3)", uuid.New(), "jane@acme.test", "Jane Roe")
		return err
	}))
	require.Equal(t, 1, countRows(t, env.db, schema, "users"))

	// Recreation: drop then ensure leaves an empty, complete schema. Twice in a row.
	for range 2 {
		require.NoError(t, env.prov.Drop(ctx, schema))
		require.NoError(t, env.prov.Ensure(ctx, schema))
		status, err := env.prov.Check(ctx, schema)
		require.NoError(t, err)
		require.True(t, status.Ready())
		require.Zero(t, countRows(t, env.db, schema, "users"))
	}

	require.NoError(t, env.prov.Drop(ctx, schema))
	// Dropping a missing schema is not an error.
	require.NoError(t, env.prov.Drop(ctx, schema))

	gone, err := env.prov.Check(ctx, schema)
	require.NoError(t, err)
	require.False(t, gone.Exists)
}

func TestDBProvisionerDetectsMissingTables(t *testing.T) {
	t.Parallel()

	env := setupProvisioner(t)
	ctx := context.Background()
	const schema = "tenant_beta_inc"

	require.NoError(t, env.prov.Ensure(ctx, schema))
	require.NoError(t, env.db.WithSchema(ctx, schema, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, "DROP TABLE notification_history")
		return err
	}))

	status, err := env.prov.Check(ctx, schema)
	require.NoError(t, err)
	require.True(t, status.Exists)
	require.False(t, status.Ready())
	require.Equal(t, []string{"notification_history"}, status.MissingTables)
	require.Equal(t, status.TablesExpected-1, status.TablesPresent)

	// Re-applying the template repairs the schema.
	require.NoError(t, env.prov.Ensure(ctx, schema))
	status, err = env.prov.Check(ctx, schema)
	require.NoError(t, err)
	require.True(t, status.Ready())
}

func TestDBProvisionerRefusesForeignSchemas(t *testing.T) {
	t.Parallel()

	env := setupProvisioner(t)
	ctx := context.Background()

	for _, schema := range []string{"public", "tenant_", "billing"} {
		err := env.prov.Ensure(ctx, schema)
		require.ErrorIs(t, err, service.ErrProvisioningFailed, schema)
		require.Error(t, env.prov.Drop(ctx, schema), schema)
	}

	var exists bool
	require.NoError(t, env.pool.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM pg_namespace WHERE nspname = 'billing')").Scan(&exists))
	require.False(t, exists)
}

func TestDBProvisionerReportsFailingStatement(t *testing.T) {
	t.Parallel()

	env := setupProvisioner(t)
	ctx := context.Background()
	const schema = "tenant_broken_co"

	env.prov.statements = append(append([]string{}, env.prov.statements[:2]...), "CREATE TABLE users (id SERIAL PRIMARY KEY, oops NOT_A_TYPE)")

	err := env.prov.Ensure(ctx, schema)
	require.ErrorIs(t, err, service.ErrProvisioningFailed)

	var perr *service.ProvisioningError
	require.True(t, errors.As(err, &perr))
	require.Equal(t, 2, perr.Index)
	require.Contains(t, perr.Statement, "NOT_A_TYPE")

	// The template runs in one transaction: nothing from the failed attempt is kept.
	status, err := env.prov.Check(ctx, schema)
	require.NoError(t, err)
	require.True(t, status.Exists)
	require.Zero(t, status.TablesPresent)
}
