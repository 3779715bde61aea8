package middleware

import (
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	oapimiddleware "github.com/oapi-codegen/nethttp-middleware"
	"go.uber.org/zap"

	"github.com/zenGate-Global/notification-service/platform/go/problemdetails"
)

// SpecValidator rejects requests that do not match spec, answering with a problem document.
// Paths in spec must be absolute since the document declares no servers.
func SpecValidator(spec *openapi3.T, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	// An empty server list makes the router match request paths against the documented ones.
	spec.Servers = nil

	return oapimiddleware.OapiRequestValidatorWithOptions(spec, &oapimiddleware.Options{
		Options: openapi3filter.Options{
			AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
		},
		ErrorHandler: func(w http.ResponseWriter, message string, statusCode int) {
			logger.Debug("request rejected by contract", zap.Int("status", statusCode), zap.String("reason", message))
			problemType := problemdetails.TypeValidation
			title := "Request validation failed"
			if statusCode == http.StatusNotFound || statusCode == http.StatusMethodNotAllowed {
				problemType = problemdetails.TypeNotFound
				title = "No such operation"
			}
			problemdetails.Write(w, problemdetails.New(statusCode, problemType, title, message))
		},
	})
}
