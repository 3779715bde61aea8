package repo

import (
	"context"
	"errors"

	"github.com/zenGate-Global/notification-service/domains/tenants/be/service"
	"github.com/zenGate-Global/notification-service/platform/go/persistence"
)

// PostgresRepository implements the tenant directory on the tenants table of the default schema.
type PostgresRepository struct {
	store *persistence.TenantStore
}

// NewPostgresRepository constructs a repository backed by TenantStore.
func NewPostgresRepository(store *persistence.TenantStore) *PostgresRepository {
	if store == nil {
		panic("tenant store is required")
	}
	return &PostgresRepository{store: store}
}

func (r *PostgresRepository) Create(ctx context.Context, t service.Tenant) (service.Tenant, error) {
	out, err := r.store.Create(ctx, toRecord(t))
	if err != nil {
		return service.Tenant{}, mapError(err)
	}
	return toServiceTenant(out), nil
}

func (r *PostgresRepository) Get(ctx context.Context, identifier string) (service.Tenant, error) {
	rec, err := r.store.GetByIdentifier(ctx, identifier)
	if err != nil {
		return service.Tenant{}, mapError(err)
	}
	return toServiceTenant(rec), nil
}

func (r *PostgresRepository) List(ctx context.Context, opts service.ListOptions) (service.ListResult, error) {
	var params persistence.ListTenantsParams
	if opts.Status != nil {
		active := *opts.Status == service.StatusActive
		params.Active = &active
	}

	rows, total, err := r.store.List(ctx, params)
	if err != nil {
		return service.ListResult{}, mapError(err)
	}

	tenants := make([]service.Tenant, 0, len(rows))
	for _, rec := range rows {
		tenants = append(tenants, toServiceTenant(rec))
	}
	return service.ListResult{Tenants: tenants, TotalItems: total}, nil
}

func (r *PostgresRepository) SchemaNameTaken(ctx context.Context, schemaName string) (bool, error) {
	taken, err := r.store.ExistsBySchemaName(ctx, schemaName)
	if err != nil {
		return false, mapError(err)
	}
	return taken, nil
}

func (r *PostgresRepository) SetActive(ctx context.Context, identifier string, active bool) (service.Tenant, error) {
	rec, err := r.store.SetActive(ctx, identifier, active)
	if err != nil {
		return service.Tenant{}, mapError(err)
	}
	return toServiceTenant(rec), nil
}

func (r *PostgresRepository) UpdateName(ctx context.Context, identifier, name string) (service.Tenant, error) {
	rec, err := r.store.UpdateName(ctx, identifier, name)
	if err != nil {
		return service.Tenant{}, mapError(err)
	}
	return toServiceTenant(rec), nil
}

func (r *PostgresRepository) Delete(ctx context.Context, identifier string) error {
	return mapError(r.store.Delete(ctx, identifier))
}

func toRecord(t service.Tenant) persistence.TenantRecord {
	return persistence.TenantRecord{
		ID:         t.ID,
		Identifier: t.Identifier,
		Name:       t.Name,
		SchemaName: t.SchemaName,
		Active:     t.Active(),
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}
}

func toServiceTenant(rec persistence.TenantRecord) service.Tenant {
	return service.Tenant{
		ID:         rec.ID,
		Identifier: rec.Identifier,
		Name:       rec.Name,
		SchemaName: rec.SchemaName,
		Status:     service.StatusFromActive(rec.Active),
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	}
}

// mapError translates persistence errors into the service vocabulary.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return service.ErrNotFound
	case errors.Is(err, persistence.ErrIdentifierConflict):
		return service.ErrAlreadyExists
	case errors.Is(err, persistence.ErrSchemaNameConflict):
		return service.ErrSchemaCollision
	default:
		return err
	}
}

// Ensure interface compliance.
var _ service.Repository = (*PostgresRepository)(nil)
