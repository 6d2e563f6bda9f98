package tracing

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func TestNewProvider_StdoutExportsSpans(t *testing.T) {
	var buf bytes.Buffer
	tp, err := NewProvider("shop-orders", "stdout", &buf)
	require.NoError(t, err)

	ctx, span := tp.Tracer("test").Start(context.Background(), "checkout")
	id := TraceID(ctx)
	span.End()
	require.NoError(t, tp.Shutdown(context.Background()))

	assert.Len(t, id, 32)
	assert.Contains(t, buf.String(), `"Name":"checkout"`)
	assert.Contains(t, buf.String(), id)
	assert.Contains(t, buf.String(), "shop-orders")
}

func TestNewProvider_Unknown(t *testing.T) {
	_, err := NewProvider("svc", "zipkin", nil)
	assert.Error(t, err)
}

func TestTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, TraceID(context.Background()))
}

func TestOtelHandlerStartsServerSpan(t *testing.T) {
	var buf bytes.Buffer
	tp, err := NewProvider("shop-orders", ExporterStdout, &buf)
	require.NoError(t, err)

	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = TraceID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := otelhttp.NewHandler(inner, "api", otelhttp.WithTracerProvider(tp))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, tp.Shutdown(context.Background()))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Len(t, seen, 32)
	assert.Contains(t, buf.String(), seen)
}
