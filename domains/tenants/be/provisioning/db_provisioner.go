package provisioning

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	sqlassets "github.com/zenGate-Global/notification-service/database"
	"github.com/zenGate-Global/notification-service/domains/tenants/be/service"
	"github.com/zenGate-Global/notification-service/platform/go/persistence"
)

const (
	schemaExistsSQL  = "SELECT EXISTS (SELECT 1 FROM pg_namespace WHERE nspname = $1)"
	presentTablesSQL = `
		SELECT tablename
		FROM pg_tables
		WHERE schemaname = $1 AND tablename = ANY($2)`
)

// DBProvisioner creates tenant schemas from the embedded notification template.
type DBProvisioner struct {
	db         *persistence.TenantDB
	prefix     string
	statements []string
	tables     []string
	logger     *zap.Logger
}

// NewDBProvisioner builds a provisioner that only manages schemas named with prefix.
func NewDBProvisioner(db *persistence.TenantDB, prefix string, logger *zap.Logger) *DBProvisioner {
	if db == nil {
		panic("db provisioner requires tenant db")
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		panic("db provisioner requires schema prefix")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &DBProvisioner{
		db:         db,
		prefix:     prefix,
		statements: persistence.SplitStatements(sqlassets.TenantTemplateSQL),
		tables:     persistence.TemplateTables(sqlassets.TenantTemplateSQL),
		logger:     logger,
	}
}

// Tables returns the tables every tenant schema is expected to contain.
func (p *DBProvisioner) Tables() []string {
	return append([]string(nil), p.tables...)
}

func (p *DBProvisioner) guard(schemaName string) error {
	if schemaName == p.db.Resolver().DefaultSchema() {
		return fmt.Errorf("refusing to manage the default schema %q", schemaName)
	}
	if !strings.HasPrefix(schemaName, p.prefix) || len(schemaName) == len(p.prefix) {
		return fmt.Errorf("schema %q is not a tenant schema (prefix %q)", schemaName, p.prefix)
	}
	return nil
}

// Ensure creates the schema if missing and applies the template inside it in a single
// transaction. Every template statement is idempotent, so Ensure may be repeated.
func (p *DBProvisioner) Ensure(ctx context.Context, schemaName string) error {
	if err := p.guard(schemaName); err != nil {
		return &service.ProvisioningError{Schema: schemaName, Index: -1, Err: err}
	}

	if err := p.db.WithAdmin(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgx.Identifier{schemaName}.Sanitize())
		return err
	}); err != nil {
		return &service.ProvisioningError{Schema: schemaName, Index: -1, Err: fmt.Errorf("create schema: %w", err)}
	}

	var failed *service.ProvisioningError
	err := p.db.WithSchema(ctx, schemaName, func(tx pgx.Tx) error {
		for i, stmt := range p.statements {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				failed = &service.ProvisioningError{Schema: schemaName, Index: i, Statement: stmt, Err: err}
				return failed
			}
		}
		return nil
	})
	if err != nil {
		if errors.As(err, &failed) {
			return failed
		}
		return &service.ProvisioningError{Schema: schemaName, Index: -1, Err: err}
	}

	p.logger.Debug("tenant schema template applied",
		zap.String("schema", schemaName),
		zap.Int("statements", len(p.statements)),
	)
	return nil
}

// Drop removes the schema and everything inside it. Missing schemas are ignored.
func (p *DBProvisioner) Drop(ctx context.Context, schemaName string) error {
	if err := p.guard(schemaName); err != nil {
		return err
	}
	return p.db.WithAdmin(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "DROP SCHEMA IF EXISTS "+pgx.Identifier{schemaName}.Sanitize()+" CASCADE"); err != nil {
			return fmt.Errorf("drop schema: %w", err)
		}
		return nil
	})
}

// Check compares the schema against the template without changing anything.
func (p *DBProvisioner) Check(ctx context.Context, schemaName string) (service.SchemaStatus, error) {
	status := service.SchemaStatus{
		SchemaName:     schemaName,
		TablesExpected: len(p.tables),
	}

	err := p.db.WithAdmin(ctx, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx, schemaExistsSQL, schemaName).Scan(&status.Exists); err != nil {
			return fmt.Errorf("check schema: %w", err)
		}
		if !status.Exists {
			return nil
		}

		rows, err := tx.Query(ctx, presentTablesSQL, schemaName, p.tables)
		if err != nil {
			return fmt.Errorf("list tables: %w", err)
		}
		present, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return fmt.Errorf("scan tables: %w", err)
		}

		found := make(map[string]struct{}, len(present))
		for _, name := range present {
			found[name] = struct{}{}
		}
		status.TablesPresent = len(found)
		for _, name := range p.tables {
			if _, ok := found[name]; !ok {
				status.MissingTables = append(status.MissingTables, name)
			}
		}
		return nil
	})
	if err != nil {
		return service.SchemaStatus{}, err
	}

	if !status.Exists {
		status.MissingTables = p.Tables()
	}
	return status, nil
}

var _ service.SchemaProvisioner = (*DBProvisioner)(nil)
