package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/zenGate-Global/notification-service/platform/go/persistence"
	"github.com/zenGate-Global/notification-service/platform/go/tenant"
)

// Errors returned by the service layer.
var (
	ErrNotFound      = tenant.ErrTenantNotFound
	ErrAlreadyExists = errors.New("tenant already exists")
	// ErrSchemaCollision is an ErrAlreadyExists raised when the derived schema name is
	// already owned by another tenant or already present in the database.
	ErrSchemaCollision    = fmt.Errorf("%w: schema name already in use", ErrAlreadyExists)
	ErrProvisioningFailed = errors.New("schema provisioning failed")
	// ErrRecreateIncomplete means the old schema was dropped but the new one is not ready.
	ErrRecreateIncomplete = errors.New("schema recreation incomplete")
	ErrUnavailable        = persistence.ErrUnavailable
)

// FieldErrors maps a field name to its validation messages.
type FieldErrors map[string][]string

func (f FieldErrors) add(field, msg string) {
	f[field] = append(f[field], msg)
}

// ValidationError reports rejected input before any side effect.
type ValidationError struct {
	Fields FieldErrors
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+strings.Join(e.Fields[f], ", "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// ProvisioningError identifies the template statement that failed. Index is -1 when the
// failure happened before the template ran (schema creation, connection).
type ProvisioningError struct {
	Schema    string
	Index     int
	Statement string
	Err       error
}

func (e *ProvisioningError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("provision schema %q: %v", e.Schema, e.Err)
	}
	return fmt.Sprintf("provision schema %q: statement %d (%s): %v", e.Schema, e.Index+1, firstLine(e.Statement), e.Err)
}

func (e *ProvisioningError) Unwrap() []error {
	return []error{ErrProvisioningFailed, e.Err}
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[:i]) + " ..."
	}
	return s
}
