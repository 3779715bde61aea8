package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/zenGate-Global/notification-service/contracts"
	"github.com/zenGate-Global/notification-service/platform/go/problemdetails"
)

func TestDefaultCORSAllowsTenantHeader(t *testing.T) {
	t.Parallel()

	called := false
	h := DefaultCORS("Idempotency-Key")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/v1/users", nil))
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.False(t, called)
	allowed := rec.Header().Get("Access-Control-Allow-Headers")
	require.Contains(t, allowed, "X-Tenant-ID")
	require.Contains(t, allowed, "Idempotency-Key")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users", nil))
	require.True(t, called)
}

func TestSpecValidator(t *testing.T) {
	t.Parallel()

	doc, err := contracts.LoadTenants()
	require.NoError(t, err)

	h := SpecValidator(doc, zaptest.NewLogger(t))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	cases := []struct {
		name   string
		method string
		target string
		body   string
		status int
	}{
		{"valid onboard", http.MethodPost, "/api/v1/tenants/onboard", `{"tenantIdentifier":"acme_corp","name":"Acme Corp"}`, http.StatusTeapot},
		{"bad identifier", http.MethodPost, "/api/v1/tenants/onboard", `{"tenantIdentifier":"Acme-Corp","name":"Acme Corp"}`, http.StatusBadRequest},
		{"missing name", http.MethodPost, "/api/v1/tenants/onboard", `{"tenantIdentifier":"acme_corp"}`, http.StatusBadRequest},
		{"recreate without confirm", http.MethodPost, "/api/v1/tenants/acme_corp/recreate-schema", "", http.StatusBadRequest},
		{"bad status filter", http.MethodGet, "/api/v1/tenants?status=PENDING", "", http.StatusBadRequest},
		{"list", http.MethodGet, "/api/v1/tenants", "", http.StatusTeapot},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.target, strings.NewReader(tc.body))
			if tc.body != "" {
				req.Header.Set("Content-Type", "application/json")
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			require.Equal(t, tc.status, rec.Code, rec.Body.String())
			if tc.status == http.StatusBadRequest {
				require.Equal(t, problemdetails.ContentType, rec.Header().Get("Content-Type"))
				var p problemdetails.ProblemDetails
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
				require.Equal(t, problemdetails.TypeValidation, p.Type)
			}
		})
	}
}
