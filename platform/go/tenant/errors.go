package tenant

import "errors"

var (
	// ErrTenantRequired is returned when a non-management operation has no tenant.
	ErrTenantRequired = errors.New("tenant required")
	// ErrInvalidIdentifier is returned for identifiers that cannot map to a schema.
	ErrInvalidIdentifier = errors.New("invalid tenant identifier")
	// ErrTenantNotFound is returned when the directory has no such tenant.
	ErrTenantNotFound = errors.New("tenant not found")
	// ErrTenantInactive is returned when a deactivated tenant is targeted.
	ErrTenantInactive = errors.New("tenant inactive")
)
