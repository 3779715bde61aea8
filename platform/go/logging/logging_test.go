package logging

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	t.Parallel()

	_, err := NewLogger(Config{Level: "chatty"})
	require.Error(t, err)

	logger, err := NewLogger(Config{Component: "test", Level: "WARN"})
	require.NoError(t, err)
	require.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	require.True(t, logger.Core().Enabled(zapcore.WarnLevel))
}

func TestNewLoggerWritesToOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger, err := NewLogger(Config{Component: "cli", Level: "info", Output: &buf})
	require.NoError(t, err)
	logger.Warn("tenant status changed", zap.String("tenant", "acme_corp"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "WARNING", entry["severity"])
	require.Equal(t, "cli", entry["component"])
	require.Equal(t, "acme_corp", entry["tenant"])
	require.Equal(t, "tenant status changed", entry["message"])
}

func TestGCPLevelEncoder(t *testing.T) {
	t.Parallel()

	cases := map[zapcore.Level]string{
		zapcore.DebugLevel: "DEBUG",
		zapcore.InfoLevel:  "INFO",
		zapcore.WarnLevel:  "WARNING",
		zapcore.ErrorLevel: "ERROR",
		zapcore.PanicLevel: "ALERT",
		zapcore.FatalLevel: "CRITICAL",
	}
	for level, want := range cases {
		enc := &sliceEncoder{}
		gcpLevelEncoder(level, enc)
		require.Equal(t, []string{want}, enc.values, level.String())
	}
}

func TestRequestLoggerStoresScopedLogger(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	var scoped *zap.Logger
	h := chimw.RequestID(RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scoped = FromRequest(r, nil)
		w.WriteHeader(http.StatusAccepted)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/users", nil))

	require.NotNil(t, scoped)
	entries := logs.FilterMessage("request completed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, int64(http.StatusAccepted), fields["status"])
	require.Equal(t, "/api/v1/users", fields["path"])
	require.NotEmpty(t, fields["request_id"])
}

func TestRequestLoggerLevelFollowsStatus(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	logger := RequestLogger(zap.New(core))

	for _, status := range []int{http.StatusOK, http.StatusForbidden, http.StatusServiceUnavailable} {
		h := logger(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/users", nil))
	}

	entries := logs.All()
	require.Len(t, entries, 3)
	require.Equal(t, zapcore.InfoLevel, entries[0].Level)
	require.Equal(t, zapcore.WarnLevel, entries[1].Level)
	require.Equal(t, zapcore.ErrorLevel, entries[2].Level)
}

func TestFromRequestFallback(t *testing.T) {
	t.Parallel()

	fallback := zap.NewNop()
	require.Same(t, fallback, FromRequest(httptest.NewRequest(http.MethodGet, "/", nil), fallback))
}

// sliceEncoder captures the strings appended by a level encoder.
type sliceEncoder struct {
	zapcore.PrimitiveArrayEncoder
	values []string
}

func (e *sliceEncoder) AppendString(v string) { e.values = append(e.values, v) }
