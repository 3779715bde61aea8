package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/zenGate-Global/notification-service/domains/tenants/be/service"
)

// MemoryRepository is a simple in-memory implementation suitable for tests and local runs
// without a database.
type MemoryRepository struct {
	mu           sync.RWMutex
	nextID       int64
	byIdentifier map[string]service.Tenant
	now          func() time.Time
}

// NewMemoryRepository constructs a MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byIdentifier: make(map[string]service.Tenant), now: time.Now}
}

func (r *MemoryRepository) Create(_ context.Context, t service.Tenant) (service.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byIdentifier[t.Identifier]; exists {
		return service.Tenant{}, service.ErrAlreadyExists
	}
	for _, existing := range r.byIdentifier {
		if existing.SchemaName == t.SchemaName {
			return service.Tenant{}, service.ErrSchemaCollision
		}
	}

	r.nextID++
	now := r.now().UTC()
	t.ID = r.nextID
	t.CreatedAt, t.UpdatedAt = now, now
	r.byIdentifier[t.Identifier] = t
	return t, nil
}

func (r *MemoryRepository) Get(_ context.Context, identifier string) (service.Tenant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.byIdentifier[identifier]
	if !ok {
		return service.Tenant{}, service.ErrNotFound
	}
	return t, nil
}

func (r *MemoryRepository) List(_ context.Context, opts service.ListOptions) (service.ListResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]service.Tenant, 0, len(r.byIdentifier))
	for _, t := range r.byIdentifier {
		if opts.Status != nil && t.Status != *opts.Status {
			continue
		}
		items = append(items, t)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	return service.ListResult{Tenants: items, TotalItems: len(items)}, nil
}

func (r *MemoryRepository) SchemaNameTaken(_ context.Context, schemaName string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, t := range r.byIdentifier {
		if t.SchemaName == schemaName {
			return true, nil
		}
	}
	return false, nil
}

func (r *MemoryRepository) SetActive(_ context.Context, identifier string, active bool) (service.Tenant, error) {
	return r.update(identifier, func(t *service.Tenant) { t.Status = service.StatusFromActive(active) })
}

func (r *MemoryRepository) UpdateName(_ context.Context, identifier, name string) (service.Tenant, error) {
	return r.update(identifier, func(t *service.Tenant) { t.Name = name })
}

func (r *MemoryRepository) update(identifier string, fn func(*service.Tenant)) (service.Tenant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.byIdentifier[identifier]
	if !ok {
		return service.Tenant{}, service.ErrNotFound
	}
	fn(&t)
	t.UpdatedAt = r.now().UTC()
	r.byIdentifier[identifier] = t
	return t, nil
}

func (r *MemoryRepository) Delete(_ context.Context, identifier string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byIdentifier[identifier]; !ok {
		return service.ErrNotFound
	}
	delete(r.byIdentifier, identifier)
	return nil
}

// Ensure interface compliance.
var _ service.Repository = (*MemoryRepository)(nil)
