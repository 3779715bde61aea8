// Package problemdetails renders RFC 7807 error bodies shared by every HTTP surface.
package problemdetails

import (
	"encoding/json"
	"net/http"
)

const ContentType = "application/problem+json"

const (
	TypeValidation         = "https://notify.zengate.global/problems/validation-error"
	TypeNotFound           = "https://notify.zengate.global/problems/not-found"
	TypeConflict           = "https://notify.zengate.global/problems/conflict"
	TypeInternal           = "https://notify.zengate.global/problems/internal-error"
	TypeTenantRequired     = "https://notify.zengate.global/problems/tenant-required"
	TypeTenantInactive     = "https://notify.zengate.global/problems/tenant-inactive"
	TypeUnavailable        = "https://notify.zengate.global/problems/unavailable"
	TypeProvisioningFailed = "https://notify.zengate.global/problems/provisioning-failed"
)

// ProblemDetails is the JSON error body.
type ProblemDetails struct {
	Type     string              `json:"type,omitempty"`
	Title    string              `json:"title"`
	Status   int                 `json:"status"`
	Detail   string              `json:"detail,omitempty"`
	Instance string              `json:"instance,omitempty"`
	Errors   map[string][]string `json:"errors,omitempty"`
}

// New builds a problem with the given status, type and text.
func New(status int, problemType, title, detail string) ProblemDetails {
	return ProblemDetails{Type: problemType, Title: title, Status: status, Detail: detail}
}

// WithErrors attaches field-level validation messages.
func (p ProblemDetails) WithErrors(errs map[string][]string) ProblemDetails {
	if len(errs) > 0 {
		p.Errors = errs
	}
	return p
}

// Write serialises p with the problem+json content type.
func Write(w http.ResponseWriter, p ProblemDetails) {
	if p.Status == 0 {
		p.Status = http.StatusInternalServerError
	}
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(p.Status)
	_ = json.NewEncoder(w).Encode(p)
}
