package persistence

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/zenGate-Global/notification-service/platform/go/tenant"
)

// TenantDB runs transactions on connections scoped to the schema of the current tenant.
type TenantDB struct {
	conns    *ConnProvider
	resolver *tenant.Resolver
}

type TenantDBConfig struct {
	Conns    *ConnProvider
	Resolver *tenant.Resolver
}

func NewTenantDB(cfg TenantDBConfig) *TenantDB {
	if cfg.Conns == nil {
		panic("TenantDB requires connection provider")
	}
	if cfg.Resolver == nil {
		panic("TenantDB requires resolver")
	}
	if cfg.Conns.DefaultSchema() != cfg.Resolver.DefaultSchema() {
		panic(fmt.Sprintf("TenantDB: provider default schema %q differs from resolver default schema %q",
			cfg.Conns.DefaultSchema(), cfg.Resolver.DefaultSchema()))
	}
	return &TenantDB{conns: cfg.Conns, resolver: cfg.Resolver}
}

// Resolver returns the resolver used to route transactions.
func (db *TenantDB) Resolver() *tenant.Resolver { return db.resolver }

// WithAdmin executes fn inside a transaction on the default (directory) schema.
func (db *TenantDB) WithAdmin(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return db.WithSchema(ctx, db.resolver.DefaultSchema(), fn)
}

// WithTenant executes fn inside a transaction on the schema resolved from ctx.
func (db *TenantDB) WithTenant(ctx context.Context, fn func(tx pgx.Tx) error) error {
	schema, err := db.resolver.Resolve(ctx)
	if err != nil {
		return err
	}
	return db.WithSchema(ctx, schema, fn)
}

// WithSchema executes fn inside a transaction on an explicit schema.
func (db *TenantDB) WithSchema(ctx context.Context, schema string, fn func(tx pgx.Tx) error) error {
	return db.conns.WithSchema(ctx, schema, func(conn *ScopedConn) error {
		tx, err := conn.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback(ctx) // nolint:errcheck

		if err := fn(tx); err != nil {
			return err
		}

		return tx.Commit(ctx)
	})
}
