package middleware_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/haulplan/haulplan/internal/api/middleware"
)

// logLine serves req through h and decodes the single log line written to buf.
func logLine(t *testing.T, buf *bytes.Buffer, h http.Handler, req *http.Request) map[string]any {
	t.Helper()
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry), "log output: %s", buf.String())
	return entry
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	h := middleware.Logger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"logs":[]}`))
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/trips:calculate", http.NoBody)
	req.Header.Set("User-Agent", "dispatch-board/2.1")
	entry := logLine(t, &buf, h, req)

	assert.Equal(t, "request completed", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "POST", entry["method"])
	assert.Equal(t, "/v1/trips:calculate", entry["path"])
	assert.Equal(t, "/v1/trips:calculate", entry["route"], "outside chi the path is the route")
	assert.Equal(t, float64(http.StatusOK), entry["status"], "status defaults to 200")
	assert.Equal(t, float64(len(`{"logs":[]}`)), entry["bytes"])
	assert.Equal(t, "dispatch-board/2.1", entry["user_agent"])
	assert.Contains(t, entry, "duration")
}

func TestLogger_LevelFollowsStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "info"},
		{http.StatusNoContent, "info"},
		{http.StatusBadRequest, "warn"},
		{http.StatusTooManyRequests, "warn"},
		{http.StatusInternalServerError, "error"},
		{http.StatusServiceUnavailable, "error"},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			var buf bytes.Buffer
			h := middleware.Logger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))

			entry := logLine(t, &buf, h, httptest.NewRequest(http.MethodGet, "/v1/history", http.NoBody))
			assert.Equal(t, tt.level, entry["level"])
			assert.Equal(t, float64(tt.status), entry["status"])
		})
	}
}

func TestLogger_RouteTemplate(t *testing.T) {
	var buf bytes.Buffer

	r := chi.NewRouter()
	r.Use(middleware.Logger(zerolog.New(&buf)))
	r.Get("/v1/history/{historyId}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	entry := logLine(t, &buf, r, httptest.NewRequest(http.MethodGet, "/v1/history/trp_missing", http.NoBody))
	assert.Equal(t, "/v1/history/trp_missing", entry["path"])
	assert.Equal(t, "/v1/history/{historyId}", entry["route"])
}

func TestLogger_CorrelationIDs(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	var buf bytes.Buffer
	h := middleware.RequestID(middleware.Tracing("haulplan-test")(
		middleware.Logger(zerolog.New(&buf))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		})),
	))

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	req.Header.Set("X-Request-Id", "dispatch-42")
	entry := logLine(t, &buf, h, req)

	assert.Equal(t, "dispatch-42", entry["request_id"])

	require.Len(t, sr.Ended(), 1)
	span := sr.Ended()[0].SpanContext()
	assert.Equal(t, span.TraceID().String(), entry["trace_id"])
	assert.Equal(t, span.SpanID().String(), entry["span_id"])
}

func TestLogger_NoTraceOutsideSpan(t *testing.T) {
	var buf bytes.Buffer
	h := middleware.Logger(zerolog.New(&buf))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	entry := logLine(t, &buf, h, httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody))
	assert.Empty(t, entry["trace_id"])
	assert.Empty(t, entry["request_id"])
}
