package service

import (
	"fmt"
	"net/mail"
	"regexp"
	"sort"
	"strings"

	"github.com/zenGate-Global/notification-service/platform/go/persistence"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// E.164: a leading plus, no leading zero, at most 15 digits.
var phonePattern = regexp.MustCompile(`^\+[1-9][0-9]{6,14}$`)

var sortableFields = map[string]bool{
	"email":     true,
	"fullName":  true,
	"createdAt": true,
	"updatedAt": true,
}

// FieldErrors maps request fields to validation issues.
type FieldErrors map[string][]string

func (f FieldErrors) add(field, message string) {
	f[field] = append(f[field], message)
}

func (f FieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return &ValidationError{Fields: f}
}

// ValidationError is returned when the input payload is invalid.
type ValidationError struct {
	Fields FieldErrors
}

func (v *ValidationError) Error() string {
	fields := make([]string, 0, len(v.Fields))
	for field := range v.Fields {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return "validation error: " + strings.Join(fields, ", ")
}

func validateCreate(input CreateInput) (persistence.CreateUserParams, error) {
	fields := FieldErrors{}

	email := strings.TrimSpace(input.Email)
	switch {
	case email == "":
		fields.add("email", "email is required")
	default:
		if _, err := mail.ParseAddress(email); err != nil {
			fields.add("email", "email is not a valid address")
		}
	}

	fullName := strings.TrimSpace(input.FullName)
	if fullName == "" {
		fields.add("fullName", "fullName is required")
	}

	phone := checkPhone(fields, input.PhoneNumber)

	if err := fields.err(); err != nil {
		return persistence.CreateUserParams{}, err
	}
	return persistence.CreateUserParams{
		Email:       strings.ToLower(email),
		FullName:    fullName,
		PhoneNumber: phone,
	}, nil
}

func validateUpdate(input UpdateInput) (persistence.UpdateUserParams, error) {
	if input.FullName == nil && input.PhoneNumber == nil && input.Active == nil {
		return persistence.UpdateUserParams{}, FieldErrors{"payload": {"at least one field must be provided"}}.err()
	}

	fields := FieldErrors{}
	params := persistence.UpdateUserParams{Active: input.Active}

	if input.FullName != nil {
		name := strings.TrimSpace(*input.FullName)
		if name == "" {
			fields.add("fullName", "fullName cannot be empty")
		}
		params.FullName = &name
	}
	if input.PhoneNumber != nil {
		// An empty number clears the stored one.
		params.PhoneNumber = input.PhoneNumber
		if strings.TrimSpace(*input.PhoneNumber) != "" {
			params.PhoneNumber = checkPhone(fields, input.PhoneNumber)
		}
	}

	if err := fields.err(); err != nil {
		return persistence.UpdateUserParams{}, err
	}
	return params, nil
}

func checkPhone(fields FieldErrors, raw *string) *string {
	phone := trimmed(raw)
	if phone == "" {
		return nil
	}
	if !phonePattern.MatchString(phone) {
		fields.add("phoneNumber", "phoneNumber must be in E.164 format, e.g. +14155550100")
		return nil
	}
	return &phone
}

// parseSort accepts a comma separated list of fields, each optionally prefixed with '-'.
func parseSort(raw *string) (*string, error) {
	spec := trimmed(raw)
	if spec == "" {
		return nil, nil
	}
	for _, part := range strings.Split(spec, ",") {
		field := strings.TrimPrefix(strings.TrimSpace(part), "-")
		if field != "" && !sortableFields[field] {
			return nil, FieldErrors{"sort": {fmt.Sprintf("unsupported sort field %q", field)}}.err()
		}
	}
	return &spec, nil
}

func normalizePage(page, size int) (int, int) {
	if page < 1 {
		page = 1
	}
	switch {
	case size <= 0:
		size = defaultPageSize
	case size > maxPageSize:
		size = maxPageSize
	}
	return page, size
}

func pageCount(total, size int) int {
	if total <= 0 {
		return 0
	}
	return (total + size - 1) / size
}

func trimmed(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
