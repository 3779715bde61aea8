package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/zenGate-Global/notification-service/domains/users/be/repo"
	"github.com/zenGate-Global/notification-service/platform/go/persistence"
)

// Domain sentinel errors.
var (
	ErrNotFound = errors.New("user not found")
	ErrConflict = errors.New("user conflict")
)

// User is a notification recipient of the current tenant.
type User struct {
	ID          uuid.UUID
	Email       string
	FullName    string
	PhoneNumber *string
	Active      bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastLoginAt *time.Time
}

// ListOptions are the query parameters of a recipient listing.
type ListOptions struct {
	Email    *string
	Page     int
	PageSize int
	Sort     *string
}

// ListResult is one page of recipients.
type ListResult struct {
	Users      []User
	Page       int
	PageSize   int
	TotalItems int
	TotalPages int
}

// CreateInput is the payload of a new recipient.
type CreateInput struct {
	Email       string
	FullName    string
	PhoneNumber *string
}

// UpdateInput holds the fields that may change; nil means unchanged.
type UpdateInput struct {
	FullName    *string
	PhoneNumber *string
	Active      *bool
}

// Service manages the recipients of the tenant carried by ctx.
type Service interface {
	Create(ctx context.Context, input CreateInput) (User, error)
	List(ctx context.Context, opts ListOptions) (ListResult, error)
	Get(ctx context.Context, id uuid.UUID) (User, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (User, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

type service struct {
	repo repo.Repository
}

// New returns a Service over r.
func New(r repo.Repository) Service {
	if r == nil {
		panic("users repository is required")
	}
	return &service{repo: r}
}

func (s *service) List(ctx context.Context, opts ListOptions) (ListResult, error) {
	page, pageSize := normalizePage(opts.Page, opts.PageSize)

	sortSpec, err := parseSort(opts.Sort)
	if err != nil {
		return ListResult{}, err
	}

	params := persistence.ListUsersParams{Page: page, PageSize: pageSize, Sort: sortSpec}
	if email := trimmed(opts.Email); email != "" {
		params.Email = &email
	}

	result, err := s.repo.List(ctx, params)
	if err != nil {
		return ListResult{}, mapPersistenceError(err)
	}

	users := make([]User, len(result.Users))
	for i, record := range result.Users {
		users[i] = mapUser(record)
	}

	return ListResult{
		Users:      users,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: result.TotalItems,
		TotalPages: pageCount(result.TotalItems, pageSize),
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (User, error) {
	params, err := validateCreate(input)
	if err != nil {
		return User{}, err
	}
	params.UserID = uuid.New()

	record, err := s.repo.Create(ctx, params)
	if err != nil {
		return User{}, mapPersistenceError(err)
	}
	return mapUser(record), nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (User, error) {
	if id == uuid.Nil {
		return User{}, ErrNotFound
	}
	record, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, mapPersistenceError(err)
	}
	return mapUser(record), nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (User, error) {
	if id == uuid.Nil {
		return User{}, ErrNotFound
	}
	params, err := validateUpdate(input)
	if err != nil {
		return User{}, err
	}

	record, err := s.repo.Update(ctx, id, params)
	if err != nil {
		return User{}, mapPersistenceError(err)
	}
	return mapUser(record), nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return ErrNotFound
	}
	return mapPersistenceError(s.repo.Delete(ctx, id))
}

func mapUser(record persistence.User) User {
	return User{
		ID:          record.UserID,
		Email:       record.Email,
		FullName:    record.FullName,
		PhoneNumber: record.PhoneNumber,
		Active:      record.Active,
		CreatedAt:   record.CreatedAt,
		UpdatedAt:   record.UpdatedAt,
		LastLoginAt: record.LastLoginAt,
	}
}

// mapPersistenceError translates store errors. Tenant routing errors pass through
// unchanged so the handler can tell them apart.
func mapPersistenceError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrUserNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrUserConflict):
		return ErrConflict
	default:
		return err
	}
}
