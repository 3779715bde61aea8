package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

const (
	tenantsTableName = "tenants"

	constraintIdentifierUnique = "tenants_identifier_unique"
	constraintSchemaNameUnique = "tenants_schema_name_unique"

	tenantColumns = `id, tenant_identifier, name, schema_name, active, created_at, updated_at`
)

// TenantRecord is one row of the tenant directory.
type TenantRecord struct {
	ID         int64     `db:"id"`
	Identifier string    `db:"tenant_identifier"`
	Name       string    `db:"name"`
	SchemaName string    `db:"schema_name"`
	Active     bool      `db:"active"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

// ListTenantsParams filters and paginates List.
type ListTenantsParams struct {
	Active *bool
	Limit  int
	Offset int
}

// TenantStore provides access to the tenants table in the default schema.
type TenantStore struct {
	db    *TenantDB
	table string
}

// NewTenantStore creates a store; assumes migrations already created the table.
func NewTenantStore(db *TenantDB) (*TenantStore, error) {
	if db == nil {
		return nil, errors.New("tenant db is required")
	}
	table := pgx.Identifier{db.Resolver().DefaultSchema(), tenantsTableName}.Sanitize()
	return &TenantStore{db: db, table: table}, nil
}

// Create inserts a tenant. Duplicates fail with ErrIdentifierConflict or ErrSchemaNameConflict.
func (s *TenantStore) Create(ctx context.Context, rec TenantRecord) (TenantRecord, error) {
	var out TenantRecord
	err := s.db.WithAdmin(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, fmt.Sprintf(`
            INSERT INTO %s (tenant_identifier, name, schema_name, active)
            VALUES ($1, $2, $3, $4)
            RETURNING %s
        `, s.table, tenantColumns),
			rec.Identifier, strings.TrimSpace(rec.Name), rec.SchemaName, rec.Active,
		)
		var err error
		out, err = scanTenantRecord(row)
		return err
	})
	if err != nil {
		return TenantRecord{}, mapTenantWriteError(err)
	}
	return out, nil
}

// GetByIdentifier returns the tenant with the given identifier.
func (s *TenantStore) GetByIdentifier(ctx context.Context, identifier string) (TenantRecord, error) {
	return s.getOne(ctx, "tenant_identifier = $1", identifier)
}

// GetByID returns the tenant with the given surrogate key.
func (s *TenantStore) GetByID(ctx context.Context, id int64) (TenantRecord, error) {
	return s.getOne(ctx, "id = $1", id)
}

func (s *TenantStore) getOne(ctx context.Context, where string, arg any) (TenantRecord, error) {
	var out TenantRecord
	err := s.db.WithAdmin(ctx, func(tx pgx.Tx) error {
		query := fmt.Sprintf(`SELECT %s FROM %s WHERE %s`, tenantColumns, s.table, where)
		var err error
		out, err = scanTenantRecord(tx.QueryRow(ctx, query, arg))
		return err
	})
	return out, err
}

// ExistsByIdentifier reports whether a tenant with identifier exists.
func (s *TenantStore) ExistsByIdentifier(ctx context.Context, identifier string) (bool, error) {
	return s.exists(ctx, "tenant_identifier = $1", identifier)
}

// ExistsBySchemaName reports whether any tenant already owns schemaName.
func (s *TenantStore) ExistsBySchemaName(ctx context.Context, schemaName string) (bool, error) {
	return s.exists(ctx, "schema_name = $1", schemaName)
}

func (s *TenantStore) exists(ctx context.Context, where string, arg any) (bool, error) {
	var found bool
	err := s.db.WithAdmin(ctx, func(tx pgx.Tx) error {
		query := fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s WHERE %s)`, s.table, where)
		return tx.QueryRow(ctx, query, arg).Scan(&found)
	})
	return found, err
}

// SetActive flips the active flag and returns the updated row.
func (s *TenantStore) SetActive(ctx context.Context, identifier string, active bool) (TenantRecord, error) {
	return s.update(ctx, "active = $1", active, identifier)
}

// UpdateName changes the display name and returns the updated row.
func (s *TenantStore) UpdateName(ctx context.Context, identifier, name string) (TenantRecord, error) {
	return s.update(ctx, "name = $1", strings.TrimSpace(name), identifier)
}

func (s *TenantStore) update(ctx context.Context, set string, value any, identifier string) (TenantRecord, error) {
	var out TenantRecord
	err := s.db.WithAdmin(ctx, func(tx pgx.Tx) error {
		query := fmt.Sprintf(`
            UPDATE %s
            SET %s, updated_at = NOW()
            WHERE tenant_identifier = $2
            RETURNING %s
        `, s.table, set, tenantColumns)
		var err error
		out, err = scanTenantRecord(tx.QueryRow(ctx, query, value, identifier))
		return err
	})
	if err != nil {
		return TenantRecord{}, mapTenantWriteError(err)
	}
	return out, nil
}

// Delete removes the directory row. The tenant schema is not touched.
func (s *TenantStore) Delete(ctx context.Context, identifier string) error {
	return s.db.WithAdmin(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE tenant_identifier = $1`, s.table), identifier)
		if err != nil {
			return fmt.Errorf("delete tenant: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// List returns tenants ordered by creation time together with the unpaginated total.
func (s *TenantStore) List(ctx context.Context, params ListTenantsParams) ([]TenantRecord, int, error) {
	where := "WHERE 1=1"
	var args []any
	if params.Active != nil {
		args = append(args, *params.Active)
		where += fmt.Sprintf(" AND active = $%d", len(args))
	}

	var (
		records []TenantRecord
		total   int
	)
	err := s.db.WithAdmin(ctx, func(tx pgx.Tx) error {
		countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s %s", s.table, where)
		if err := tx.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
			return fmt.Errorf("count tenants: %w", err)
		}

		query := fmt.Sprintf(`SELECT %s FROM %s %s ORDER BY created_at ASC, id ASC`, tenantColumns, s.table, where)
		dataArgs := append([]any{}, args...)
		if params.Limit > 0 {
			dataArgs = append(dataArgs, params.Limit, params.Offset)
			query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(dataArgs)-1, len(dataArgs))
		}

		rows, err := tx.Query(ctx, query, dataArgs...)
		if err != nil {
			return fmt.Errorf("list tenants: %w", err)
		}
		defer rows.Close()

		records = make([]TenantRecord, 0)
		for rows.Next() {
			rec, err := scanTenantRecord(rows)
			if err != nil {
				return fmt.Errorf("scan tenant: %w", err)
			}
			records = append(records, rec)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

func scanTenantRecord(row pgx.Row) (TenantRecord, error) {
	var rec TenantRecord
	if err := row.Scan(&rec.ID, &rec.Identifier, &rec.Name, &rec.SchemaName, &rec.Active, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if IsNotFoundError(err) {
			return TenantRecord{}, ErrNotFound
		}
		return TenantRecord{}, err
	}
	return rec, nil
}

func mapTenantWriteError(err error) error {
	if !IsDuplicateKeyError(err) {
		return err
	}
	switch constraintName(err) {
	case constraintIdentifierUnique:
		return ErrIdentifierConflict
	case constraintSchemaNameUnique:
		return ErrSchemaNameConflict
	default:
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
}
