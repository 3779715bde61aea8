package persistence

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrUnavailable is returned when no pooled connection could be obtained.
	ErrUnavailable = errors.New("database unavailable")
	// ErrSchemaBindFailed is returned when a connection cannot be switched to a schema.
	ErrSchemaBindFailed = errors.New("schema bind failed")
	// ErrConnReleased is returned when a scoped connection is used after release.
	ErrConnReleased = errors.New("connection already released")
	// ErrConnNotBound is returned when a statement runs on a connection with no schema bound.
	ErrConnNotBound = errors.New("connection not bound to a schema")

	// ErrNotFound is returned when a directory record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned on unique constraint violations.
	ErrConflict = errors.New("record conflict")
	// ErrIdentifierConflict narrows ErrConflict to a duplicated tenant identifier.
	ErrIdentifierConflict = fmt.Errorf("%w: tenant identifier already exists", ErrConflict)
	// ErrSchemaNameConflict narrows ErrConflict to a duplicated schema name.
	ErrSchemaNameConflict = fmt.Errorf("%w: schema name already exists", ErrConflict)
)

const (
	codeUniqueViolation = "23505"
	codeInvalidSchema   = "3F000"
)

// IsDuplicateKeyError detects unique constraint violations (SQLSTATE 23505).
func IsDuplicateKeyError(err error) bool {
	return pgErrorCode(err) == codeUniqueViolation
}

// IsNotFoundError detects pgx.ErrNoRows.
func IsNotFoundError(err error) bool {
	return err != nil && errors.Is(err, pgx.ErrNoRows)
}

func constraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

func pgErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
