package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	UsersTable = "users"

	userColumns = `user_id, email, full_name, phone_number, active, created_at, updated_at, last_login_at`
)

// User is a notification recipient stored in the tenant's own schema.
type User struct {
	UserID      uuid.UUID  `db:"user_id" json:"userId"`
	Email       string     `db:"email" json:"email"`
	FullName    string     `db:"full_name" json:"fullName"`
	PhoneNumber *string    `db:"phone_number" json:"phoneNumber,omitempty"`
	Active      bool       `db:"active" json:"active"`
	CreatedAt   time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updatedAt"`
	LastLoginAt *time.Time `db:"last_login_at" json:"lastLoginAt,omitempty"`
}

var (
	// ErrUserNotFound indicates a missing user record.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserConflict indicates a uniqueness violation (e.g., duplicated email).
	ErrUserConflict = errors.New("user conflict")
)

// UserStore reads and writes users of the tenant carried by the request context.
// Every call fails with tenant.ErrTenantRequired when the context has no tenant.
type UserStore struct {
	db *TenantDB
}

func NewUserStore(db *TenantDB) (*UserStore, error) {
	if db == nil {
		return nil, errors.New("tenant db is required")
	}
	return &UserStore{db: db}, nil
}

// ListUsersParams captures filters and pagination for ListUsers.
type ListUsersParams struct {
	Page     int
	PageSize int
	Sort     *string
	Email    *string
}

// ListUsersResult includes the rows and the total count for pagination metadata.
type ListUsersResult struct {
	Users      []User
	TotalItems int
}

// CreateUserParams captures the fields required to insert a new user record.
type CreateUserParams struct {
	UserID      uuid.UUID
	Email       string
	FullName    string
	PhoneNumber *string
}

// CreateUser inserts a new user and returns the persisted record.
func (s *UserStore) CreateUser(ctx context.Context, params CreateUserParams) (User, error) {
	if params.UserID == uuid.Nil {
		return User{}, errors.New("user id is required")
	}

	var user User
	err := s.db.WithTenant(ctx, func(tx pgx.Tx) error {
		row := tx.QueryRow(ctx, fmt.Sprintf(`
            INSERT INTO %s (user_id, email, full_name, phone_number)
            VALUES ($1, $2, $3, $4)
            RETURNING %s
        `, UsersTable, userColumns),
			params.UserID,
			strings.TrimSpace(params.Email),
			strings.TrimSpace(params.FullName),
			trimmedPtr(params.PhoneNumber),
		)
		var err error
		user, err = scanUser(row)
		return err
	})
	if err != nil {
		if IsDuplicateKeyError(err) {
			return User{}, ErrUserConflict
		}
		return User{}, err
	}

	return user, nil
}

// ListUsers returns one page of users and the number of users matching the filters.
func (s *UserStore) ListUsers(ctx context.Context, params ListUsersParams) (ListUsersResult, error) {
	page := max(params.Page, 1)
	size := params.PageSize
	if size <= 0 {
		size = 20
	}
	size = min(size, 100)

	orderBy, err := userOrderBy(params.Sort)
	if err != nil {
		return ListUsersResult{}, err
	}

	filter, args := "TRUE", []any{}
	if params.Email != nil {
		if email := strings.ToLower(strings.TrimSpace(*params.Email)); email != "" {
			args = append(args, "%"+email+"%")
			filter = "LOWER(email) LIKE $1"
		}
	}

	// COUNT(*) OVER () reports the filtered total on every row of the page.
	query := fmt.Sprintf(`
        SELECT %s, COUNT(*) OVER () AS total
        FROM %s
        WHERE %s
        ORDER BY %s
        LIMIT %d OFFSET %d
    `, userColumns, UsersTable, filter, orderBy, size, (page-1)*size)

	result := ListUsersResult{Users: []User{}}
	err = s.db.WithTenant(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("list users: %w", err)
		}
		batch, err := pgx.CollectRows(rows, pgx.RowToStructByName[userPageRow])
		if err != nil {
			return fmt.Errorf("scan users: %w", err)
		}
		for _, row := range batch {
			result.Users = append(result.Users, row.User)
			result.TotalItems = row.Total
		}
		if len(batch) > 0 || page == 1 {
			return nil
		}
		// Past the last page the window has no rows to report the total on.
		countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", UsersTable, filter)
		return tx.QueryRow(ctx, countQuery, args...).Scan(&result.TotalItems)
	})
	if err != nil {
		return ListUsersResult{}, err
	}
	return result, nil
}

type userPageRow struct {
	User
	Total int `db:"total"`
}

var userSortColumns = map[string]string{
	"email":     "email",
	"fullName":  "full_name",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

// userOrderBy turns "field,-field" into an ORDER BY list; newest first when empty.
func userOrderBy(sort *string) (string, error) {
	var terms []string
	if sort != nil {
		for _, field := range strings.Split(*sort, ",") {
			field = strings.TrimSpace(field)
			direction := "ASC"
			if rest, ok := strings.CutPrefix(field, "-"); ok {
				field, direction = rest, "DESC"
			}
			if field == "" {
				continue
			}
			column, ok := userSortColumns[field]
			if !ok {
				return "", fmt.Errorf("unsupported sort field %q", field)
			}
			terms = append(terms, column+" "+direction)
		}
	}
	if len(terms) == 0 {
		return "created_at DESC", nil
	}
	return strings.Join(terms, ", "), nil
}

// GetUser returns a single user by identifier.
func (s *UserStore) GetUser(ctx context.Context, id uuid.UUID) (User, error) {
	var user User
	err := s.db.WithTenant(ctx, func(tx pgx.Tx) (err error) {
		query := fmt.Sprintf(`SELECT %s FROM %s WHERE user_id = $1`, userColumns, UsersTable)
		user, err = scanUser(tx.QueryRow(ctx, query, id))
		return err
	})
	if IsNotFoundError(err) {
		return User{}, ErrUserNotFound
	}
	return user, err
}

// UpdateUserParams represents editable fields.
type UpdateUserParams struct {
	FullName    *string
	PhoneNumber *string
	Active      *bool
}

// UpdateUser applies the provided fields and returns the updated record.
func (s *UserStore) UpdateUser(ctx context.Context, id uuid.UUID, params UpdateUserParams) (User, error) {
	setParts := []string{}
	var args []any

	if params.FullName != nil {
		args = append(args, strings.TrimSpace(*params.FullName))
		setParts = append(setParts, fmt.Sprintf("full_name = $%d", len(args)))
	}
	if params.PhoneNumber != nil {
		args = append(args, trimmedPtr(params.PhoneNumber))
		setParts = append(setParts, fmt.Sprintf("phone_number = $%d", len(args)))
	}
	if params.Active != nil {
		args = append(args, *params.Active)
		setParts = append(setParts, fmt.Sprintf("active = $%d", len(args)))
	}

	if len(setParts) == 0 {
		return User{}, errors.New("no fields to update")
	}

	args = append(args, id)

	query := fmt.Sprintf(`
        UPDATE %s
        SET %s, updated_at = NOW()
        WHERE user_id = $%d
        RETURNING %s
    `, UsersTable, strings.Join(setParts, ", "), len(args), userColumns)

	var user User
	err := s.db.WithTenant(ctx, func(tx pgx.Tx) error {
		var err error
		user, err = scanUser(tx.QueryRow(ctx, query, args...))
		return err
	})
	if err != nil {
		if IsNotFoundError(err) {
			return User{}, ErrUserNotFound
		}
		if IsDuplicateKeyError(err) {
			return User{}, ErrUserConflict
		}
		return User{}, err
	}

	return user, nil
}

// DeleteUser removes a user by identifier.
func (s *UserStore) DeleteUser(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return ErrUserNotFound
	}

	return s.db.WithTenant(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE user_id = $1`, UsersTable), id)
		if err != nil {
			return fmt.Errorf("delete user: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return ErrUserNotFound
		}
		return nil
	})
}

func scanUser(row pgx.Row) (User, error) {
	var user User

	if err := row.Scan(&user.UserID, &user.Email, &user.FullName, &user.PhoneNumber, &user.Active,
		&user.CreatedAt, &user.UpdatedAt, &user.LastLoginAt); err != nil {
		return User{}, err
	}

	return user, nil
}

func trimmedPtr(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return &s
}
