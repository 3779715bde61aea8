package problemdetails

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrite(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	Write(rec, New(http.StatusBadRequest, TypeValidation, "Invalid request", "identifier is invalid").
		WithErrors(map[string][]string{"identifier": {"must match ^[a-z0-9_]+$"}}))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, ContentType, rec.Header().Get("Content-Type"))

	var body ProblemDetails
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, TypeValidation, body.Type)
	require.Equal(t, "identifier is invalid", body.Detail)
	require.Contains(t, body.Errors, "identifier")
}

func TestWriteDefaultsStatus(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	Write(rec, ProblemDetails{Title: "boom"})
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}
