package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zenGate-Global/notification-service/domains/users/be/service"
	platformlogging "github.com/zenGate-Global/notification-service/platform/go/logging"
	"github.com/zenGate-Global/notification-service/platform/go/persistence"
	"github.com/zenGate-Global/notification-service/platform/go/problemdetails"
	"github.com/zenGate-Global/notification-service/platform/go/tenant"
)

// BasePath is where the recipient routes are mounted.
const BasePath = "/api/v1/users"

// Handler exposes the current tenant's notification recipients.
type Handler struct {
	svc    service.Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc service.Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("users service is required")
	}
	if logger == nil {
		panic("logger is required")
	}

	return &Handler{svc: svc, logger: logger}
}

// Routes registers the handlers relative to BasePath.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/{userId}", h.get)
	r.Patch("/{userId}", h.update)
	r.Delete("/{userId}", h.delete)
}

type userResponse struct {
	ID          uuid.UUID  `json:"id"`
	Email       string     `json:"email"`
	FullName    string     `json:"fullName"`
	PhoneNumber *string    `json:"phoneNumber,omitempty"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

type userListResponse struct {
	Items      []userResponse `json:"items"`
	Page       int            `json:"page"`
	PageSize   int            `json:"pageSize"`
	TotalItems int            `json:"totalItems"`
	TotalPages int            `json:"totalPages"`
}

type createUserRequest struct {
	Email       string  `json:"email"`
	FullName    string  `json:"fullName"`
	PhoneNumber *string `json:"phoneNumber"`
}

type updateUserRequest struct {
	FullName    *string `json:"fullName"`
	PhoneNumber *string `json:"phoneNumber"`
	Active      *bool   `json:"active"`
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	opts := service.ListOptions{}

	for name, dst := range map[string]*int{"page": &opts.Page, "pageSize": &opts.PageSize} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			h.writeProblem(w, r, problemdetails.New(http.StatusBadRequest, problemdetails.TypeValidation, "Invalid query", name+" must be an integer"))
			return
		}
		*dst = v
	}
	if email := q.Get("email"); email != "" {
		opts.Email = &email
	}
	if sort := q.Get("sort"); sort != "" {
		opts.Sort = &sort
	}

	result, err := h.svc.List(r.Context(), opts)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	items := make([]userResponse, 0, len(result.Users))
	for _, user := range result.Users {
		items = append(items, toUserResponse(user))
	}
	writeJSON(w, http.StatusOK, userListResponse{
		Items:      items,
		Page:       result.Page,
		PageSize:   result.PageSize,
		TotalItems: result.TotalItems,
		TotalPages: result.TotalPages,
	})
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	created, err := h.svc.Create(r.Context(), service.CreateInput{
		Email:       req.Email,
		FullName:    req.FullName,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("%s/%s", BasePath, created.ID))
	writeJSON(w, http.StatusCreated, toUserResponse(created))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}

	user, err := h.svc.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}
	var req updateUserRequest
	if !h.decode(w, r, &req) {
		return
	}

	updated, err := h.svc.Update(r.Context(), id, service.UpdateInput{
		FullName:    req.FullName,
		PhoneNumber: req.PhoneNumber,
		Active:      req.Active,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(updated))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.userID(w, r)
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), id); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) userID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "userId"))
	if err != nil {
		h.writeProblem(w, r, problemdetails.New(http.StatusBadRequest, problemdetails.TypeValidation, "Invalid user id", "userId must be a UUID"))
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		h.writeProblem(w, r, problemdetails.New(http.StatusBadRequest, problemdetails.TypeValidation, "Invalid request body", err.Error()))
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	h.writeProblem(w, r, h.problemForError(r, err))
}

func (h *Handler) writeProblem(w http.ResponseWriter, r *http.Request, p problemdetails.ProblemDetails) {
	p.Instance = r.URL.Path
	problemdetails.Write(w, p)
}

func (h *Handler) problemForError(r *http.Request, err error) problemdetails.ProblemDetails {
	logger := platformlogging.FromRequest(r, h.logger)

	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return problemdetails.New(http.StatusBadRequest, problemdetails.TypeValidation, "Validation failed", "request validation failed").
			WithErrors(verr.Fields)
	case errors.Is(err, service.ErrNotFound):
		return problemdetails.New(http.StatusNotFound, problemdetails.TypeNotFound, "Not found", err.Error())
	case errors.Is(err, service.ErrConflict):
		return problemdetails.New(http.StatusConflict, problemdetails.TypeConflict, "Conflict", "a user with this email already exists")
	case errors.Is(err, tenant.ErrTenantRequired):
		return problemdetails.New(http.StatusBadRequest, problemdetails.TypeTenantRequired, "Tenant required", err.Error())
	case errors.Is(err, persistence.ErrSchemaBindFailed):
		logger.Error("tenant schema could not be bound", zap.Error(err))
		return problemdetails.New(http.StatusServiceUnavailable, problemdetails.TypeUnavailable, "Tenant schema unavailable", "tenant schema is not available")
	case errors.Is(err, persistence.ErrUnavailable):
		logger.Warn("database unavailable", zap.Error(err))
		return problemdetails.New(http.StatusServiceUnavailable, problemdetails.TypeUnavailable, "Service unavailable", "database temporarily unavailable")
	default:
		logger.Error("user operation failed", zap.Error(err))
		return problemdetails.New(http.StatusInternalServerError, problemdetails.TypeInternal, "Internal error", "internal error")
	}
}

func toUserResponse(user service.User) userResponse {
	return userResponse{
		ID:          user.ID,
		Email:       user.Email,
		FullName:    user.FullName,
		PhoneNumber: user.PhoneNumber,
		Active:      user.Active,
		CreatedAt:   user.CreatedAt,
		UpdatedAt:   user.UpdatedAt,
		LastLoginAt: user.LastLoginAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
