package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Handlers struct {
	Products *ProductsHandler
	Cart     *CartHandler
	Orders   *OrdersHandler
}

func NewRouter(h Handlers) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(Authenticate)
		if h.Products != nil {
			h.Products.Register(r)
		}
		if h.Cart != nil {
			h.Cart.Register(r)
		}
		if h.Orders != nil {
			h.Orders.Register(r)
		}
	})
	return r
}
