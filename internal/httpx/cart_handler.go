package httpx

import (
	"context"
	"net/http"

	"github.com/ariefcatur/go-shop-orders/internal/cart"
	"github.com/ariefcatur/go-shop-orders/internal/principal"
	"github.com/go-chi/chi/v5"
)

type CartService interface {
	View(ctx context.Context, ownerID string) (*cart.Cart, error)
	Add(ctx context.Context, ownerID, productID string, qty int) (int, error)
	Update(ctx context.Context, ownerID, productID string, qty int) error
	Remove(ctx context.Context, ownerID, productID string) error
	Clear(ctx context.Context, ownerID string) error
}

type CartHandler struct {
	Service CartService
}

type AddItemReq struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"gte=1,lte=999"`
}

type UpdateItemReq struct {
	Quantity int `json:"quantity" validate:"lte=999"`
}

func (h *CartHandler) Register(r chi.Router) {
	r.Route("/cart", func(r chi.Router) {
		r.Get("/", h.view)
		r.Delete("/", h.clear)
		r.Post("/items", h.addItem)
		r.Put("/items/{productID}", h.updateItem)
		r.Delete("/items/{productID}", h.removeItem)
	})
}

func (h *CartHandler) view(w http.ResponseWriter, r *http.Request) {
	p, ok := requireRole(w, r, principal.RoleCustomer)
	if !ok {
		return
	}
	c, err := h.Service.View(r.Context(), p.ID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// addItem merges into an existing line; the response carries the new cart.
func (h *CartHandler) addItem(w http.ResponseWriter, r *http.Request) {
	p, ok := requireRole(w, r, principal.RoleCustomer)
	if !ok {
		return
	}
	var req AddItemReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if _, err := h.Service.Add(r.Context(), p.ID, req.ProductID, req.Quantity); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.respondCart(w, r, p.ID, http.StatusCreated)
}

func (h *CartHandler) updateItem(w http.ResponseWriter, r *http.Request) {
	p, ok := requireRole(w, r, principal.RoleCustomer)
	if !ok {
		return
	}
	var req UpdateItemReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := h.Service.Update(r.Context(), p.ID, chi.URLParam(r, "productID"), req.Quantity); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.respondCart(w, r, p.ID, http.StatusOK)
}

func (h *CartHandler) removeItem(w http.ResponseWriter, r *http.Request) {
	p, ok := requireRole(w, r, principal.RoleCustomer)
	if !ok {
		return
	}
	if err := h.Service.Remove(r.Context(), p.ID, chi.URLParam(r, "productID")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	h.respondCart(w, r, p.ID, http.StatusOK)
}

func (h *CartHandler) clear(w http.ResponseWriter, r *http.Request) {
	p, ok := requireRole(w, r, principal.RoleCustomer)
	if !ok {
		return
	}
	if err := h.Service.Clear(r.Context(), p.ID); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandler) respondCart(w http.ResponseWriter, r *http.Request, ownerID string, status int) {
	c, err := h.Service.View(r.Context(), ownerID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, status, c)
}
