package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/zenGate-Global/notification-service/platform/go/metrics"
	"github.com/zenGate-Global/notification-service/platform/go/tenant"
)

const (
	minNameLength = 2
	maxNameLength = 100
)

// Status is the public activation state of a tenant.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
)

// StatusFromActive converts the stored flag.
func StatusFromActive(active bool) Status {
	if active {
		return StatusActive
	}
	return StatusInactive
}

// Tenant is a tenant directory entry.
type Tenant struct {
	ID         int64
	Identifier string
	Name       string
	SchemaName string
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Active reports whether requests for the tenant are accepted.
func (t Tenant) Active() bool { return t.Status == StatusActive }

// OnboardInput is the request to register a tenant.
type OnboardInput struct {
	Identifier string
	Name       string
}

// ListOptions filters List.
type ListOptions struct {
	Status *Status
}

// ListResult wraps the listed tenants.
type ListResult struct {
	Tenants    []Tenant
	TotalItems int
}

// Repository abstracts the tenant directory.
type Repository interface {
	// Create fails with ErrAlreadyExists or ErrSchemaCollision on uniqueness conflicts.
	Create(ctx context.Context, t Tenant) (Tenant, error)
	Get(ctx context.Context, identifier string) (Tenant, error)
	List(ctx context.Context, opts ListOptions) (ListResult, error)
	SchemaNameTaken(ctx context.Context, schemaName string) (bool, error)
	SetActive(ctx context.Context, identifier string, active bool) (Tenant, error)
	UpdateName(ctx context.Context, identifier, name string) (Tenant, error)
	Delete(ctx context.Context, identifier string) error
}

// SchemaStatus compares a tenant schema with the template.
type SchemaStatus struct {
	SchemaName     string
	Exists         bool
	TablesExpected int
	TablesPresent  int
	MissingTables  []string
}

// Ready reports whether the schema exists with every template table.
func (s SchemaStatus) Ready() bool {
	return s.Exists && len(s.MissingTables) == 0
}

// SchemaProvisioner creates, drops and inspects tenant schemas.
// Ensure is idempotent; Check is read-only.
type SchemaProvisioner interface {
	Ensure(ctx context.Context, schemaName string) error
	Drop(ctx context.Context, schemaName string) error
	Check(ctx context.Context, schemaName string) (SchemaStatus, error)
}

// Config holds optional collaborators of Service.
type Config struct {
	SchemaPrefix string
	StatusCache  tenant.StatusCache
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
}

// Service is the tenant lifecycle manager.
type Service struct {
	repo    Repository
	prov    SchemaProvisioner
	prefix  string
	cache   tenant.StatusCache
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// New constructs a Service with required dependencies.
func New(repo Repository, prov SchemaProvisioner, cfg Config) *Service {
	if repo == nil {
		panic("tenants repo is required")
	}
	if prov == nil {
		panic("schema provisioner is required")
	}
	if cfg.SchemaPrefix == "" {
		cfg.SchemaPrefix = tenant.DefaultSchemaPrefix
	}
	if err := tenant.ValidatePrefix(cfg.SchemaPrefix); err != nil {
		panic(err)
	}
	if cfg.StatusCache == nil {
		cfg.StatusCache = tenant.NewMemoryStatusCache(0)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Service{
		repo:    repo,
		prov:    prov,
		prefix:  cfg.SchemaPrefix,
		cache:   cfg.StatusCache,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
}

// SchemaNameFor returns the schema a tenant identifier maps to.
func (s *Service) SchemaNameFor(identifier string) string {
	return tenant.BuildSchemaName(s.prefix, identifier)
}

// Onboard registers a tenant and provisions its schema. If provisioning fails the partial
// schema and the directory row are removed before the error is returned.
func (s *Service) Onboard(ctx context.Context, input OnboardInput) (_ Tenant, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveProvisioning("onboard", start, err) }()

	input.Identifier = strings.TrimSpace(input.Identifier)
	input.Name = strings.TrimSpace(input.Name)

	fields := FieldErrors{}
	if verr := tenant.ValidateIdentifier(input.Identifier); verr != nil {
		fields.add("tenantIdentifier", verr.Error())
	}
	validateName(fields, input.Name)
	if len(fields) > 0 {
		return Tenant{}, &ValidationError{Fields: fields}
	}

	logger := s.logger.With(zap.String("tenant", input.Identifier))
	schema := s.SchemaNameFor(input.Identifier)

	if _, err := s.repo.Get(ctx, input.Identifier); err == nil {
		return Tenant{}, fmt.Errorf("%w: %s", ErrAlreadyExists, input.Identifier)
	} else if !errors.Is(err, ErrNotFound) {
		return Tenant{}, err
	}

	taken, err := s.repo.SchemaNameTaken(ctx, schema)
	if err != nil {
		return Tenant{}, err
	}
	if taken {
		return Tenant{}, fmt.Errorf("%w: %s is registered to another tenant", ErrSchemaCollision, schema)
	}

	status, err := s.prov.Check(ctx, schema)
	if err != nil {
		return Tenant{}, err
	}
	if status.Exists {
		return Tenant{}, fmt.Errorf("%w: %s already exists in the database", ErrSchemaCollision, schema)
	}

	created, err := s.repo.Create(ctx, Tenant{
		Identifier: input.Identifier,
		Name:       input.Name,
		SchemaName: schema,
		Status:     StatusActive,
	})
	if err != nil {
		return Tenant{}, err
	}

	if err := s.prov.Ensure(ctx, schema); err != nil {
		if !errors.Is(err, ErrProvisioningFailed) {
			err = &ProvisioningError{Schema: schema, Index: -1, Err: err}
		}
		logger.Error("tenant schema provisioning failed, rolling back onboarding", zap.String("schema", schema), zap.Error(err))
		return Tenant{}, errors.Join(err, s.compensateOnboard(ctx, input.Identifier, schema, logger))
	}

	s.cacheStatusChange(ctx, created.Identifier, true)
	logger.Info("tenant onboarded", zap.String("schema", schema), zap.Duration("duration", time.Since(start)))
	return created, nil
}

func (s *Service) compensateOnboard(ctx context.Context, identifier, schema string, logger *zap.Logger) error {
	ctx = context.WithoutCancel(ctx)

	var errs []error
	if err := s.prov.Drop(ctx, schema); err != nil {
		errs = append(errs, fmt.Errorf("drop schema %s: %w", schema, err))
	}
	if err := s.repo.Delete(ctx, identifier); err != nil && !errors.Is(err, ErrNotFound) {
		errs = append(errs, fmt.Errorf("delete tenant row: %w", err))
	}

	if err := errors.Join(errs...); err != nil {
		logger.Error("onboarding compensation incomplete; run schema verification", zap.Error(err))
		return err
	}
	return nil
}

// Get returns a tenant by identifier.
func (s *Service) Get(ctx context.Context, identifier string) (Tenant, error) {
	return s.repo.Get(ctx, strings.TrimSpace(identifier))
}

// List returns every tenant, optionally filtered by status.
func (s *Service) List(ctx context.Context, opts ListOptions) (ListResult, error) {
	return s.repo.List(ctx, opts)
}

// Activate marks a tenant active. Activating an active tenant is a no-op apart from updatedAt.
func (s *Service) Activate(ctx context.Context, identifier string) (Tenant, error) {
	return s.setActive(ctx, identifier, true)
}

// Deactivate marks a tenant inactive. Its schema and data are kept.
func (s *Service) Deactivate(ctx context.Context, identifier string) (Tenant, error) {
	return s.setActive(ctx, identifier, false)
}

func (s *Service) setActive(ctx context.Context, identifier string, active bool) (Tenant, error) {
	identifier = strings.TrimSpace(identifier)
	t, err := s.repo.SetActive(ctx, identifier, active)
	if err != nil {
		return Tenant{}, err
	}
	s.cacheStatusChange(ctx, identifier, t.Active())
	s.logger.Info("tenant status changed", zap.String("tenant", identifier), zap.String("status", string(t.Status)))
	return t, nil
}

// Rename changes the display name.
func (s *Service) Rename(ctx context.Context, identifier, name string) (Tenant, error) {
	name = strings.TrimSpace(name)
	fields := FieldErrors{}
	validateName(fields, name)
	if len(fields) > 0 {
		return Tenant{}, &ValidationError{Fields: fields}
	}
	return s.repo.UpdateName(ctx, strings.TrimSpace(identifier), name)
}

// RecreateSchema drops the tenant schema with all its data and provisions it again.
// It never retries: a failure after the drop is reported as ErrRecreateIncomplete.
func (s *Service) RecreateSchema(ctx context.Context, identifier string) (_ SchemaStatus, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveProvisioning("recreate_schema", start, err) }()

	t, err := s.repo.Get(ctx, strings.TrimSpace(identifier))
	if err != nil {
		return SchemaStatus{}, err
	}

	logger := s.logger.With(zap.String("tenant", t.Identifier), zap.String("schema", t.SchemaName))
	logger.Warn("recreating tenant schema; all tenant data is being dropped and cannot be recovered")

	if err := s.prov.Drop(ctx, t.SchemaName); err != nil {
		return SchemaStatus{}, fmt.Errorf("drop schema %s: %w", t.SchemaName, err)
	}

	if err := s.prov.Ensure(ctx, t.SchemaName); err != nil {
		logger.Error("tenant schema dropped but not re-provisioned", zap.Error(err))
		return SchemaStatus{}, errors.Join(ErrRecreateIncomplete, err)
	}

	status, err := s.prov.Check(ctx, t.SchemaName)
	if err != nil {
		return SchemaStatus{}, errors.Join(ErrRecreateIncomplete, err)
	}
	if !status.Ready() {
		logger.Error("tenant schema incomplete after recreation", zap.Strings("missing_tables", status.MissingTables))
		return status, fmt.Errorf("%w: missing tables %s", ErrRecreateIncomplete, strings.Join(status.MissingTables, ", "))
	}

	logger.Warn("tenant schema recreated", zap.Duration("duration", time.Since(start)))
	return status, nil
}

// Delete removes a tenant from the directory, dropping its schema first when dropSchema is set.
func (s *Service) Delete(ctx context.Context, identifier string, dropSchema bool) (err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveProvisioning("delete", start, err) }()

	t, err := s.repo.Get(ctx, strings.TrimSpace(identifier))
	if err != nil {
		return err
	}

	logger := s.logger.With(zap.String("tenant", t.Identifier), zap.String("schema", t.SchemaName))
	if dropSchema {
		logger.Warn("dropping tenant schema")
		if err := s.prov.Drop(ctx, t.SchemaName); err != nil {
			return fmt.Errorf("drop schema %s: %w", t.SchemaName, err)
		}
	}

	if err := s.repo.Delete(ctx, t.Identifier); err != nil {
		return err
	}
	s.cacheDelete(ctx, t.Identifier)
	logger.Info("tenant deleted", zap.Bool("schema_dropped", dropSchema))
	return nil
}

// VerifySchema reports whether the tenant's schema matches the template. It detects a
// directory row left without a usable schema.
func (s *Service) VerifySchema(ctx context.Context, identifier string) (SchemaStatus, error) {
	t, err := s.repo.Get(ctx, strings.TrimSpace(identifier))
	if err != nil {
		return SchemaStatus{}, err
	}
	return s.prov.Check(ctx, t.SchemaName)
}

// IsActive reports whether the tenant exists and is active, consulting the status cache
// first. Unknown tenants return tenant.ErrTenantNotFound.
func (s *Service) IsActive(ctx context.Context, identifier string) (bool, error) {
	active, found, err := s.cache.Get(ctx, identifier)
	switch {
	case err != nil:
		s.metrics.StatusCacheLookup("error")
		s.logger.Warn("tenant status cache read failed", zap.String("tenant", identifier), zap.Error(err))
	case found:
		s.metrics.StatusCacheLookup("hit")
		return active, nil
	default:
		s.metrics.StatusCacheLookup("miss")
	}

	t, err := s.repo.Get(ctx, identifier)
	if err != nil {
		return false, err
	}
	// A status change may have committed since the row was read; never overwrite its value.
	if err := s.cache.SetIfAbsent(ctx, identifier, t.Active()); err != nil {
		s.logger.Warn("tenant status cache fill failed", zap.String("tenant", identifier), zap.Error(err))
	}
	return t.Active(), nil
}

// cacheStatusChange stores the committed status. When the write fails the entry is
// dropped instead, so the next lookup goes back to the directory.
func (s *Service) cacheStatusChange(ctx context.Context, identifier string, active bool) {
	ctx = context.WithoutCancel(ctx)
	if err := s.cache.Set(ctx, identifier, active); err != nil {
		s.logger.Warn("tenant status cache write failed", zap.String("tenant", identifier), zap.Error(err))
		s.cacheDelete(ctx, identifier)
	}
}

func (s *Service) cacheDelete(ctx context.Context, identifier string) {
	if err := s.cache.Delete(context.WithoutCancel(ctx), identifier); err != nil {
		s.logger.Warn("tenant status cache invalidation failed", zap.String("tenant", identifier), zap.Error(err))
	}
}

func validateName(fields FieldErrors, name string) {
	n := utf8.RuneCountInString(name)
	if n < minNameLength || n > maxNameLength {
		fields.add("name", fmt.Sprintf("must be %d-%d characters", minNameLength, maxNameLength))
	}
}
