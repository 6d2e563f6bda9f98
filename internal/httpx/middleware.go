package httpx

import (
	"net/http"
	"strings"

	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/ariefcatur/go-shop-orders/internal/principal"
	"github.com/ariefcatur/go-shop-orders/internal/tracing"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

// Authenticate trusts the identity headers set by the gateway in front of
// this service. A missing id or an unknown role is a 401.
func Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(HeaderUserID))
		role, ok := principal.ParseRole(strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderUserRole))))
		if id == "" || !ok {
			writeError(w, http.StatusUnauthorized, "unauthenticated", "missing or invalid identity headers", nil)
			return
		}
		ctx := principal.WithPrincipal(r.Context(), principal.Principal{ID: id, Role: role})
		// events carry the span's trace id, or the request id without one
		if id := tracing.TraceID(ctx); id != "" {
			ctx = orders.WithTraceID(ctx, id)
		} else if reqID := middleware.GetReqID(ctx); reqID != "" {
			ctx = orders.WithTraceID(ctx, reqID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
