package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ResolverConfig controls the routing policy.
type ResolverConfig struct {
	DefaultSchema      string
	SchemaPrefix       string
	ManagementPrefixes []string
}

// Resolver maps the tenant carried by a context to the schema its data lives in.
// It performs no I/O; schema existence is checked when a connection is bound.
type Resolver struct {
	defaultSchema      string
	prefix             string
	managementPrefixes []string
}

// NewResolver validates cfg and applies defaults for empty fields.
func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	defaultSchema := strings.TrimSpace(cfg.DefaultSchema)
	if defaultSchema == "" {
		defaultSchema = DefaultSchema
	}

	prefix := cfg.SchemaPrefix
	if prefix == "" {
		prefix = DefaultSchemaPrefix
	}
	if err := ValidatePrefix(prefix); err != nil {
		return nil, err
	}
	if strings.HasPrefix(defaultSchema, prefix) {
		return nil, fmt.Errorf("default schema %q must not use the tenant prefix %q", defaultSchema, prefix)
	}

	prefixes := make([]string, 0, len(cfg.ManagementPrefixes))
	for _, p := range cfg.ManagementPrefixes {
		p = strings.TrimRight(strings.TrimSpace(p), "/")
		if p != "" {
			prefixes = append(prefixes, p)
		}
	}
	if len(prefixes) == 0 {
		prefixes = []string{DefaultManagementPrefix}
	}

	return &Resolver{defaultSchema: defaultSchema, prefix: prefix, managementPrefixes: prefixes}, nil
}

// DefaultSchema returns the shared schema name.
func (r *Resolver) DefaultSchema() string { return r.defaultSchema }

// SchemaPrefix returns the prefix used to derive tenant schema names.
func (r *Resolver) SchemaPrefix() string { return r.prefix }

// SchemaFor validates identifier and returns its schema name.
func (r *Resolver) SchemaFor(identifier string) (string, error) {
	if err := ValidateIdentifier(identifier); err != nil {
		return "", err
	}
	return BuildSchemaName(r.prefix, identifier), nil
}

// IsManagementPath reports whether path falls under a tenant-administration namespace.
func (r *Resolver) IsManagementPath(path string) bool {
	for _, p := range r.managementPrefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// IsManagement reports whether op operates on the tenant directory itself.
func (r *Resolver) IsManagement(op Operation) bool {
	return op.Management || r.IsManagementPath(op.Path)
}

// Resolve returns the schema the current operation must use.
//
// Management operations always get the default schema. Without a tenant, code running
// outside any operation (startup, migrations) gets the default schema while code inside
// an operation fails with ErrTenantRequired.
func (r *Resolver) Resolve(ctx context.Context) (string, error) {
	op, inOperation := OperationFromContext(ctx)
	if inOperation && r.IsManagement(op) {
		return r.defaultSchema, nil
	}

	identifier, ok := IdentifierFromContext(ctx)
	if !ok {
		if !inOperation {
			return r.defaultSchema, nil
		}
		return "", fmt.Errorf("%w: operation %q has no tenant", ErrTenantRequired, op.Name)
	}

	schema, err := r.SchemaFor(identifier)
	if err != nil {
		return "", errors.Join(ErrTenantRequired, err)
	}
	return schema, nil
}
