package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/ariefcatur/go-shop-orders/internal/tracing"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func authed(t *testing.T, ctx context.Context) string {
	t.Helper()
	var got string
	h := Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = orders.TraceIDFrom(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/orders", nil).WithContext(ctx)
	req.Header.Set(HeaderUserID, "cust-1")
	req.Header.Set(HeaderUserRole, "customer")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	return got
}

func TestAuthenticate_TraceIDFromSpan(t *testing.T) {
	tp, err := tracing.NewProvider("shop-orders", tracing.ExporterNone, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-1")
	ctx, span := tp.Tracer("test").Start(ctx, "GET /orders")
	defer span.End()

	assert.Equal(t, span.SpanContext().TraceID().String(), authed(t, ctx))
}

func TestAuthenticate_TraceIDFallsBackToRequestID(t *testing.T) {
	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-1")
	assert.Equal(t, "req-1", authed(t, ctx))
}
