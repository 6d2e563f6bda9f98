package httpx

import (
	"context"
	"net/http"
	"strconv"

	"github.com/ariefcatur/go-shop-orders/internal/inventory"
	"github.com/ariefcatur/go-shop-orders/internal/principal"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

type ProductService interface {
	Get(ctx context.Context, productID string) (inventory.Product, error)
	List(ctx context.Context, merchantID string) ([]inventory.Product, error)
	Adjust(ctx context.Context, p principal.Principal, productID string, adj inventory.Adjustment) (int, error)
	Movements(ctx context.Context, p principal.Principal, productID string, limit int) ([]inventory.Movement, error)
}

type ProductsHandler struct {
	Service ProductService
}

type ProductView struct {
	inventory.Product
	AverageRating decimal.Decimal     `json:"average_rating"`
	StockStatus   inventory.StockBand `json:"stock_status"`
}

func productView(p inventory.Product) ProductView {
	return ProductView{Product: p, AverageRating: p.AverageRating(), StockStatus: inventory.BandFor(p.StockQuantity)}
}

type AdjustStockReq struct {
	Mode     inventory.AdjustMode `json:"mode" validate:"required,oneof=set add subtract"`
	Quantity int                  `json:"quantity" validate:"gte=0"`
	Reason   string               `json:"reason" validate:"max=255"`
}

type StockResp struct {
	ProductID     string              `json:"product_id"`
	StockQuantity int                 `json:"stock_quantity"`
	StockStatus   inventory.StockBand `json:"stock_status"`
}

func (h *ProductsHandler) Register(r chi.Router) {
	r.Get("/products", h.list)
	r.Get("/products/{id}", h.get)
	r.Post("/products/{id}/stock", h.adjustStock)
	r.Get("/products/{id}/movements", h.movements)
}

func (h *ProductsHandler) list(w http.ResponseWriter, r *http.Request) {
	products, err := h.Service.List(r.Context(), r.URL.Query().Get("merchant_id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]ProductView, 0, len(products))
	for _, p := range products {
		out = append(out, productView(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *ProductsHandler) get(w http.ResponseWriter, r *http.Request) {
	p, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, productView(p))
}

func (h *ProductsHandler) adjustStock(w http.ResponseWriter, r *http.Request) {
	p, ok := requireRole(w, r, principal.RoleMerchant, principal.RoleAdmin)
	if !ok {
		return
	}
	var req AdjustStockReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	id := chi.URLParam(r, "id")
	qty, err := h.Service.Adjust(r.Context(), p, id, inventory.Adjustment{
		Mode:     req.Mode,
		Quantity: req.Quantity,
		Reason:   req.Reason,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, StockResp{ProductID: id, StockQuantity: qty, StockStatus: inventory.BandFor(qty)})
}

func (h *ProductsHandler) movements(w http.ResponseWriter, r *http.Request) {
	p, ok := requireRole(w, r, principal.RoleMerchant, principal.RoleAdmin)
	if !ok {
		return
	}
	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 || n > 500 {
			writeError(w, http.StatusBadRequest, "invalid_limit", "limit must be between 1 and 500", nil)
			return
		}
		limit = n
	}
	ms, err := h.Service.Movements(r.Context(), p, chi.URLParam(r, "id"), limit)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ms)
}
