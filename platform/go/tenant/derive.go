package tenant

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	// DefaultSchema is the shared schema holding the tenant directory.
	DefaultSchema = "public"
	// DefaultSchemaPrefix is prepended to a tenant identifier to form its schema name.
	DefaultSchemaPrefix = "tenant_"
	// DefaultManagementPrefix is the path namespace of tenant administration endpoints.
	DefaultManagementPrefix = "/api/v1/tenants"

	MinIdentifierLength = 3
	MaxIdentifierLength = 50

	// PostgreSQL truncates identifiers longer than NAMEDATALEN-1 bytes.
	maxSchemaNameLength = 63
)

var (
	identifierPattern = regexp.MustCompile(`^[a-z0-9_]+$`)
	prefixPattern     = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
)

// ValidateIdentifier reports whether identifier can be used as a tenant identifier.
// Errors wrap ErrInvalidIdentifier.
func ValidateIdentifier(identifier string) error {
	switch {
	case identifier == "":
		return fmt.Errorf("%w: identifier is empty", ErrInvalidIdentifier)
	case len(identifier) < MinIdentifierLength || len(identifier) > MaxIdentifierLength:
		return fmt.Errorf("%w: identifier must be %d-%d characters", ErrInvalidIdentifier, MinIdentifierLength, MaxIdentifierLength)
	case !identifierPattern.MatchString(identifier):
		return fmt.Errorf("%w: identifier may contain only lowercase letters, digits and underscores", ErrInvalidIdentifier)
	}
	return nil
}

// ValidatePrefix checks that prefix combined with any valid identifier yields a legal,
// untruncated PostgreSQL schema name.
func ValidatePrefix(prefix string) error {
	if !prefixPattern.MatchString(prefix) {
		return fmt.Errorf("schema prefix %q must match %s", prefix, prefixPattern.String())
	}
	if len(prefix)+MaxIdentifierLength > maxSchemaNameLength {
		return fmt.Errorf("schema prefix %q is too long: prefix plus identifier must fit in %d bytes", prefix, maxSchemaNameLength)
	}
	return nil
}

// BuildSchemaName returns the schema name for a tenant: <prefix><identifier>.
// With a fixed prefix the mapping is injective.
func BuildSchemaName(prefix, identifier string) string {
	return strings.TrimSpace(prefix) + identifier
}
