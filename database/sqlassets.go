package sqlassets

import "embed"

// Migrations holds the goose migrations for the platform (shared) schema.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations that goose reads from.
const MigrationsDir = "migrations"

// TenantTemplateSQL is the ordered, semicolon-delimited DDL applied to every tenant schema.
//
//go:embed schema/tenant_space/notifications.sql
var TenantTemplateSQL string
