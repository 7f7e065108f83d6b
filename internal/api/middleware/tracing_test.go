package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/haulplan/haulplan/internal/api/middleware"
)

// installTracer swaps in a recording tracer provider and W3C propagation for
// the duration of the test.
func installTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))

	prevTP, prevProp := otel.GetTracerProvider(), otel.GetTextMapPropagator()
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetTextMapPropagator(prevProp)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

// tracedRouter mounts Tracing in front of a few planner-shaped routes.
func tracedRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Tracing("haulplan-test"))
	r.Get("/v1/history/{historyId}", func(w http.ResponseWriter, r *http.Request) {
		if !trace.SpanFromContext(r.Context()).SpanContext().IsValid() {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	})
	r.Post("/v1/trips:calculate", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	})
	r.Get("/v1/ops/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	return r
}

func onlySpan(t *testing.T, sr *tracetest.SpanRecorder) sdktrace.ReadOnlySpan {
	t.Helper()
	spans := sr.Ended()
	require.Len(t, spans, 1)
	return spans[0]
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestTracing_SpanNamedByRouteTemplate(t *testing.T) {
	sr := installTracer(t)

	w := httptest.NewRecorder()
	tracedRouter().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/history/trp_123", http.NoBody))
	require.Equal(t, http.StatusOK, w.Code, "handler must see the span in its context")

	span := onlySpan(t, sr)
	assert.Equal(t, "GET /v1/history/{historyId}", span.Name())
	assert.Equal(t, trace.SpanKindServer, span.SpanKind())

	route, ok := spanAttr(span, "http.route")
	require.True(t, ok)
	assert.Equal(t, "/v1/history/{historyId}", route.AsString())

	path, _ := spanAttr(span, "url.path")
	assert.Equal(t, "/v1/history/trp_123", path.AsString())

	size, _ := spanAttr(span, "http.response.body.size")
	assert.Equal(t, int64(2), size.AsInt64())
}

func TestTracing_StatusHandling(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		path       string
		status     int
		spanStatus codes.Code
	}{
		{"client error stays unset", http.MethodPost, "/v1/trips:calculate", http.StatusBadRequest, codes.Unset},
		{"server error marks span", http.MethodGet, "/v1/ops/ready", http.StatusServiceUnavailable, codes.Error},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sr := installTracer(t)
			tracedRouter().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(tt.method, tt.path, http.NoBody))

			span := onlySpan(t, sr)
			code, ok := spanAttr(span, "http.response.status_code")
			require.True(t, ok)
			assert.Equal(t, int64(tt.status), code.AsInt64())
			assert.Equal(t, tt.spanStatus, span.Status().Code)
		})
	}
}

func TestTracing_ContinuesInboundTrace(t *testing.T) {
	sr := installTracer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/history/trp_1", http.NoBody)
	req.Header.Set("traceparent", "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01")
	tracedRouter().ServeHTTP(httptest.NewRecorder(), req)

	span := onlySpan(t, sr)
	assert.Equal(t, "0af7651916cd43dd8448eb211c80319c", span.SpanContext().TraceID().String())
	assert.Equal(t, "b7ad6b7169203331", span.Parent().SpanID().String())
}

func TestTracing_TagsRequestAndService(t *testing.T) {
	sr := installTracer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/history/trp_1", http.NoBody)
	req.Header.Set("X-Request-Id", "dispatch-7")
	tracedRouter().ServeHTTP(httptest.NewRecorder(), req)

	span := onlySpan(t, sr)
	id, ok := spanAttr(span, "request.id")
	require.True(t, ok)
	assert.Equal(t, "dispatch-7", id.AsString())

	svc, _ := spanAttr(span, "service.name")
	assert.Equal(t, "haulplan-test", svc.AsString())
}

func TestTracing_OutsideRouterUsesPath(t *testing.T) {
	sr := installTracer(t)

	h := middleware.Tracing("haulplan-test")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody))

	assert.Equal(t, "GET /v1/ops/health", onlySpan(t, sr).Name())
}
