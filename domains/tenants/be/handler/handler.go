package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/zenGate-Global/notification-service/domains/tenants/be/service"
	"github.com/zenGate-Global/notification-service/platform/go/problemdetails"
)

// BasePath is where the tenant administration routes are mounted.
const BasePath = "/api/v1/tenants"

// Service is the subset of the lifecycle manager the HTTP layer needs.
type Service interface {
	Onboard(ctx context.Context, input service.OnboardInput) (service.Tenant, error)
	Get(ctx context.Context, identifier string) (service.Tenant, error)
	List(ctx context.Context, opts service.ListOptions) (service.ListResult, error)
	Activate(ctx context.Context, identifier string) (service.Tenant, error)
	Deactivate(ctx context.Context, identifier string) (service.Tenant, error)
	Rename(ctx context.Context, identifier, name string) (service.Tenant, error)
	RecreateSchema(ctx context.Context, identifier string) (service.SchemaStatus, error)
	Delete(ctx context.Context, identifier string, dropSchema bool) error
	VerifySchema(ctx context.Context, identifier string) (service.SchemaStatus, error)
}

// Handler exposes tenant administration over HTTP.
type Handler struct {
	svc    Service
	logger *zap.Logger
}

// New constructs a Handler instance.
func New(svc Service, logger *zap.Logger) *Handler {
	if svc == nil {
		panic("tenants service is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Handler{svc: svc, logger: logger}
}

// Routes registers the handlers relative to BasePath.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/", h.list)
	r.Post("/onboard", h.onboard)
	r.Route("/{identifier}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Patch("/", h.rename)
		r.Delete("/", h.delete)
		r.Post("/activate", h.activate)
		r.Post("/deactivate", h.deactivate)
		r.Post("/recreate-schema", h.recreateSchema)
		r.Get("/schema-status", h.schemaStatus)
	})
}

type tenantResponse struct {
	TenantIdentifier string    `json:"tenantIdentifier"`
	Name             string    `json:"name"`
	SchemaName       string    `json:"schemaName"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

type tenantListResponse struct {
	Items      []tenantResponse `json:"items"`
	TotalItems int              `json:"totalItems"`
}

type schemaStatusResponse struct {
	SchemaName     string   `json:"schemaName"`
	Exists         bool     `json:"exists"`
	TablesExpected int      `json:"tablesExpected"`
	TablesPresent  int      `json:"tablesPresent"`
	MissingTables  []string `json:"missingTables,omitempty"`
	Ready          bool     `json:"ready"`
}

type onboardRequest struct {
	TenantIdentifier string `json:"tenantIdentifier"`
	Name             string `json:"name"`
}

type updateRequest struct {
	Name string `json:"name"`
}

// list implements GET /api/v1/tenants
func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	var opts service.ListOptions
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := service.Status(raw)
		if status != service.StatusActive && status != service.StatusInactive {
			h.writeProblem(w, r, problemdetails.New(http.StatusBadRequest, problemdetails.TypeValidation, "Invalid query", "status must be ACTIVE or INACTIVE"))
			return
		}
		opts.Status = &status
	}

	result, err := h.svc.List(r.Context(), opts)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	items := make([]tenantResponse, 0, len(result.Tenants))
	for _, t := range result.Tenants {
		items = append(items, toTenantResponse(t))
	}
	writeJSON(w, http.StatusOK, tenantListResponse{Items: items, TotalItems: result.TotalItems})
}

// onboard implements POST /api/v1/tenants/onboard
func (h *Handler) onboard(w http.ResponseWriter, r *http.Request) {
	var req onboardRequest
	if !h.decode(w, r, &req) {
		return
	}

	t, err := h.svc.Onboard(r.Context(), service.OnboardInput{Identifier: req.TenantIdentifier, Name: req.Name})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Location", fmt.Sprintf("%s/%s", BasePath, t.Identifier))
	writeJSON(w, http.StatusCreated, toTenantResponse(t))
}

// get implements GET /api/v1/tenants/{identifier}
func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Get(r.Context(), chi.URLParam(r, "identifier"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTenantResponse(t))
}

// rename implements PATCH /api/v1/tenants/{identifier}
func (h *Handler) rename(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if !h.decode(w, r, &req) {
		return
	}

	t, err := h.svc.Rename(r.Context(), chi.URLParam(r, "identifier"), req.Name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTenantResponse(t))
}

// delete implements DELETE /api/v1/tenants/{identifier}
func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	dropSchema := false
	if raw := r.URL.Query().Get("dropSchema"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			h.writeProblem(w, r, problemdetails.New(http.StatusBadRequest, problemdetails.TypeValidation, "Invalid query", "dropSchema must be a boolean"))
			return
		}
		dropSchema = v
	}

	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "identifier"), dropSchema); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// activate implements POST /api/v1/tenants/{identifier}/activate
func (h *Handler) activate(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Activate(r.Context(), chi.URLParam(r, "identifier"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTenantResponse(t))
}

// deactivate implements POST /api/v1/tenants/{identifier}/deactivate
func (h *Handler) deactivate(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Deactivate(r.Context(), chi.URLParam(r, "identifier"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTenantResponse(t))
}

// recreateSchema implements POST /api/v1/tenants/{identifier}/recreate-schema.
// The caller must repeat the identifier in the confirm query parameter.
func (h *Handler) recreateSchema(w http.ResponseWriter, r *http.Request) {
	identifier := chi.URLParam(r, "identifier")
	if r.URL.Query().Get("confirm") != identifier {
		h.writeProblem(w, r, problemdetails.New(http.StatusBadRequest, problemdetails.TypeValidation,
			"Confirmation required", "confirm must equal the tenant identifier; all tenant data will be lost"))
		return
	}

	h.logger.Warn("tenant schema recreation requested", zap.String("tenant", identifier))
	status, err := h.svc.RecreateSchema(r.Context(), identifier)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSchemaStatusResponse(status))
}

// schemaStatus implements GET /api/v1/tenants/{identifier}/schema-status
func (h *Handler) schemaStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.svc.VerifySchema(r.Context(), chi.URLParam(r, "identifier"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSchemaStatusResponse(status))
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
	h.writeProblem(w, r, h.problemForError(err))
}

func (h *Handler) writeProblem(w http.ResponseWriter, r *http.Request, p problemdetails.ProblemDetails) {
	p.Instance = r.URL.Path
	problemdetails.Write(w, p)
}

func (h *Handler) problemForError(err error) problemdetails.ProblemDetails {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		return problemdetails.New(http.StatusBadRequest, problemdetails.TypeValidation, "Validation failed", err.Error()).
			WithErrors(verr.Fields)
	case errors.Is(err, service.ErrNotFound):
		return problemdetails.New(http.StatusNotFound, problemdetails.TypeNotFound, "Not found", err.Error())
	case errors.Is(err, service.ErrAlreadyExists):
		return problemdetails.New(http.StatusConflict, problemdetails.TypeConflict, "Conflict", err.Error())
	case errors.Is(err, service.ErrUnavailable):
		h.logger.Warn("tenant directory unavailable", zap.Error(err))
		return problemdetails.New(http.StatusServiceUnavailable, problemdetails.TypeUnavailable, "Service unavailable", "database temporarily unavailable")
	case errors.Is(err, service.ErrProvisioningFailed), errors.Is(err, service.ErrRecreateIncomplete):
		h.logger.Error("tenant schema operation failed", zap.Error(err))
		return problemdetails.New(http.StatusInternalServerError, problemdetails.TypeProvisioningFailed, "Schema provisioning failed", err.Error())
	default:
		h.logger.Error("tenant operation failed", zap.Error(err))
		return problemdetails.New(http.StatusInternalServerError, problemdetails.TypeInternal, "Internal error", "internal error")
	}
}

func toTenantResponse(t service.Tenant) tenantResponse {
	return tenantResponse{
		TenantIdentifier: t.Identifier,
		Name:             t.Name,
		SchemaName:       t.SchemaName,
		Status:           string(t.Status),
		CreatedAt:        t.CreatedAt,
		UpdatedAt:        t.UpdatedAt,
	}
}

func toSchemaStatusResponse(s service.SchemaStatus) schemaStatusResponse {
	return schemaStatusResponse{
		SchemaName:     s.SchemaName,
		Exists:         s.Exists,
		TablesExpected: s.TablesExpected,
		TablesPresent:  s.TablesPresent,
		MissingTables:  s.MissingTables,
		Ready:          s.Ready(),
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
