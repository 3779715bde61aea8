package tenant

import (
	"context"
	"strings"
)

// Operation describes the inbound operation a context belongs to.
// Its presence on a context marks the operation boundary used by the Resolver.
type Operation struct {
	Name       string
	Path       string
	Management bool
}

type ctxKey string

const (
	identifierKey ctxKey = "NOTIFY_TENANT_IDENTIFIER"
	operationKey  ctxKey = "NOTIFY_OPERATION"
)

// WithIdentifier returns a derived context carrying the tenant identifier.
func WithIdentifier(ctx context.Context, identifier string) context.Context {
	return context.WithValue(ctx, identifierKey, strings.TrimSpace(identifier))
}

// IdentifierFromContext extracts the tenant identifier and a boolean indicating presence.
func IdentifierFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(identifierKey).(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// WithoutIdentifier returns a derived context in which no tenant identifier is visible,
// even if a parent context carried one.
func WithoutIdentifier(ctx context.Context) context.Context {
	return context.WithValue(ctx, identifierKey, "")
}

// WithOperation marks ctx as running inside an inbound operation.
func WithOperation(ctx context.Context, op Operation) context.Context {
	return context.WithValue(ctx, operationKey, op)
}

// OperationFromContext returns the operation metadata, if ctx is inside an operation boundary.
func OperationFromContext(ctx context.Context) (Operation, bool) {
	if ctx == nil {
		return Operation{}, false
	}
	op, ok := ctx.Value(operationKey).(Operation)
	return op, ok
}

// Scope runs fn as a tenant-scoped operation for callers that are not HTTP requests
// (CLI commands, jobs). The identifier is only visible to fn and whatever it derives.
func Scope(ctx context.Context, name, identifier string, fn func(ctx context.Context) error) error {
	scoped := WithOperation(WithIdentifier(ctx, identifier), Operation{Name: name})
	return fn(scoped)
}
