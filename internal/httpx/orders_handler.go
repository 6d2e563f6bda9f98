package httpx

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/ariefcatur/go-shop-orders/internal/principal"
	"github.com/go-chi/chi/v5"
)

type OrderService interface {
	Checkout(ctx context.Context, in orders.CheckoutInput) (*orders.Order, error)
	PlaceOrder(ctx context.Context, in orders.PlaceOrderInput) (*orders.Order, error)
	Get(ctx context.Context, p principal.Principal, orderID string) (*orders.Order, error)
	List(ctx context.Context, p principal.Principal, f orders.ListFilter) (*orders.ListResult, error)
	Status(ctx context.Context, p principal.Principal, orderID string) (orders.StatusView, error)
	History(ctx context.Context, p principal.Principal, orderID string) ([]orders.StatusEntry, error)
	Confirm(ctx context.Context, p principal.Principal, orderID, paymentMethod string) (*orders.Order, error)
	StartProcessing(ctx context.Context, p principal.Principal, orderID, notes string) (*orders.Order, error)
	Ship(ctx context.Context, p principal.Principal, orderID string, in orders.TransitionInput) (*orders.Order, error)
	Deliver(ctx context.Context, p principal.Principal, orderID string) (*orders.Order, error)
	Cancel(ctx context.Context, p principal.Principal, orderID, reason string) (*orders.Order, error)
	Refund(ctx context.Context, p principal.Principal, orderID, reason string) (*orders.Order, error)
	SubmitReview(ctx context.Context, p principal.Principal, orderID string, in orders.ReviewInput) (*orders.Order, error)
}

type OrdersHandler struct {
	Service OrderService
	Timeout time.Duration
}

const HeaderIdempotencyKey = "Idempotency-Key"

type CheckoutReq struct {
	ShippingAddressID string `json:"shipping_address_id" validate:"required,uuid"`
	BillingAddressID  string `json:"billing_address_id" validate:"omitempty,uuid"`
	ShippingMethod    string `json:"shipping_method" validate:"omitempty,max=32"`
	CustomerNote      string `json:"customer_note" validate:"max=500"`
}

type PlaceOrderReq struct {
	CheckoutReq
	Items []PlaceOrderItemReq `json:"items" validate:"required,min=1,dive"`
}

type PlaceOrderItemReq struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"gte=1,lte=999"`
}

type ConfirmReq struct {
	PaymentMethod string `json:"payment_method" validate:"max=64"`
}

type NotesReq struct {
	Notes string `json:"notes" validate:"max=500"`
}

type ShipReq struct {
	TrackingNumber    string     `json:"tracking_number" validate:"max=64"`
	Carrier           string     `json:"carrier" validate:"max=64"`
	EstimatedDelivery *time.Time `json:"estimated_delivery"`
	Notes             string     `json:"notes" validate:"max=500"`
}

type ReasonReq struct {
	Reason string `json:"reason" validate:"max=500"`
}

type ReviewItemReq struct {
	OrderItemID string `json:"order_item_id" validate:"required,uuid"`
	Rating      int    `json:"rating" validate:"gte=0,lte=5"`
	Comment     string `json:"comment" validate:"max=1000"`
}

type ReviewReq struct {
	Items          []ReviewItemReq `json:"items" validate:"required,min=1,dive"`
	ServiceRating  int             `json:"service_rating" validate:"required,gte=1,lte=5"`
	ServiceComment string          `json:"service_comment" validate:"max=1000"`
	Comment        string          `json:"comment" validate:"max=1000"`
}

// OrderResp adds the derived presentation fields to an order.
type OrderResp struct {
	*orders.Order
	Display    orders.Display `json:"display"`
	Reviewable bool           `json:"reviewable"`
}

func orderResp(o *orders.Order) OrderResp {
	return OrderResp{Order: o, Display: o.Display(), Reviewable: o.Reviewable()}
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/checkout", h.checkout)
	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.placeOrder)
		r.Get("/", h.list)
		r.Get("/{id}", h.get)
		r.Get("/{id}/status", h.status)
		r.Get("/{id}/history", h.history)
		r.Post("/{id}/confirm", h.confirm)
		r.Post("/{id}/process", h.process)
		r.Post("/{id}/ship", h.ship)
		r.Post("/{id}/deliver", h.deliver)
		r.Post("/{id}/cancel", h.cancel)
		r.Post("/{id}/refund", h.refund)
		r.Post("/{id}/review", h.review)
	})
}

func (h *OrdersHandler) ctx(r *http.Request) (context.Context, context.CancelFunc) {
	d := h.Timeout
	if d <= 0 {
		d = 5 * time.Second
	}
	return context.WithTimeout(r.Context(), d)
}

func (req CheckoutReq) input(customerID, idemKey string) orders.CheckoutInput {
	return orders.CheckoutInput{
		CustomerID:        customerID,
		ShippingAddressID: req.ShippingAddressID,
		BillingAddressID:  req.BillingAddressID,
		ShippingMethod:    req.ShippingMethod,
		CustomerNote:      req.CustomerNote,
		IdempotencyKey:    idemKey,
	}
}

func idempotencyKey(r *http.Request) (string, bool) {
	k := strings.TrimSpace(r.Header.Get(HeaderIdempotencyKey))
	return k, len(k) <= 128
}

func (h *OrdersHandler) checkout(w http.ResponseWriter, r *http.Request) {
	p, ok := requireRole(w, r, principal.RoleCustomer)
	if !ok {
		return
	}
	var req CheckoutReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	key, ok := idempotencyKey(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_idempotency_key", "Idempotency-Key too long", nil)
		return
	}

	ctx, cancel := h.ctx(r)
	defer cancel()
	o, err := h.Service.Checkout(ctx, req.input(p.ID, key))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, orderResp(o))
}

func (h *OrdersHandler) placeOrder(w http.ResponseWriter, r *http.Request) {
	p, ok := requireRole(w, r, principal.RoleCustomer)
	if !ok {
		return
	}
	var req PlaceOrderReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	key, ok := idempotencyKey(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid_idempotency_key", "Idempotency-Key too long", nil)
		return
	}

	items := make([]orders.LineInput, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, orders.LineInput{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	ctx, cancel := h.ctx(r)
	defer cancel()
	o, err := h.Service.PlaceOrder(ctx, orders.PlaceOrderInput{
		CheckoutInput: req.CheckoutReq.input(p.ID, key),
		Items:         items,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, orderResp(o))
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	p, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	f := orders.ListFilter{Status: orders.Status(strings.ToLower(q.Get("status")))}
	var err error
	if s := q.Get("page"); s != "" {
		if f.Page, err = strconv.Atoi(s); err != nil || f.Page < 1 || f.Page > orders.MaxPage {
			writeError(w, http.StatusBadRequest, "invalid_page", fmt.Sprintf("page must be between 1 and %d", orders.MaxPage), nil)
			return
		}
	}
	if s := q.Get("page_size"); s != "" {
		if f.PageSize, err = strconv.Atoi(s); err != nil || f.PageSize < 1 {
			writeError(w, http.StatusBadRequest, "invalid_page_size", "page_size must be a positive integer", nil)
			return
		}
	}

	res, err := h.Service.List(r.Context(), p, f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	p, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	o, err := h.Service.Get(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orderResp(o))
}

func (h *OrdersHandler) status(w http.ResponseWriter, r *http.Request) {
	p, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	v, err := h.Service.Status(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (h *OrdersHandler) history(w http.ResponseWriter, r *http.Request) {
	p, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	entries, err := h.Service.History(r.Context(), p, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"order_id": chi.URLParam(r, "id"), "history": entries})
}

// transition decodes an optional body and runs one status change.
func transition[T any](h *OrdersHandler, run func(ctx context.Context, p principal.Principal, id string, req T) (*orders.Order, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, ok := mustPrincipal(w, r)
		if !ok {
			return
		}
		var req T
		if err := decodeOptional(w, r, &req); err != nil {
			writeBadRequest(w, err)
			return
		}
		ctx, cancel := h.ctx(r)
		defer cancel()
		o, err := run(ctx, p, chi.URLParam(r, "id"), req)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, orderResp(o))
	}
}

func (h *OrdersHandler) confirm(w http.ResponseWriter, r *http.Request) {
	transition(h, func(ctx context.Context, p principal.Principal, id string, req ConfirmReq) (*orders.Order, error) {
		return h.Service.Confirm(ctx, p, id, req.PaymentMethod)
	})(w, r)
}

func (h *OrdersHandler) process(w http.ResponseWriter, r *http.Request) {
	transition(h, func(ctx context.Context, p principal.Principal, id string, req NotesReq) (*orders.Order, error) {
		return h.Service.StartProcessing(ctx, p, id, req.Notes)
	})(w, r)
}

func (h *OrdersHandler) ship(w http.ResponseWriter, r *http.Request) {
	transition(h, func(ctx context.Context, p principal.Principal, id string, req ShipReq) (*orders.Order, error) {
		return h.Service.Ship(ctx, p, id, orders.TransitionInput{
			Notes:             req.Notes,
			TrackingNumber:    req.TrackingNumber,
			Carrier:           req.Carrier,
			EstimatedDelivery: req.EstimatedDelivery,
		})
	})(w, r)
}

func (h *OrdersHandler) deliver(w http.ResponseWriter, r *http.Request) {
	transition(h, func(ctx context.Context, p principal.Principal, id string, _ struct{}) (*orders.Order, error) {
		return h.Service.Deliver(ctx, p, id)
	})(w, r)
}

func (h *OrdersHandler) cancel(w http.ResponseWriter, r *http.Request) {
	transition(h, func(ctx context.Context, p principal.Principal, id string, req ReasonReq) (*orders.Order, error) {
		return h.Service.Cancel(ctx, p, id, req.Reason)
	})(w, r)
}

func (h *OrdersHandler) refund(w http.ResponseWriter, r *http.Request) {
	transition(h, func(ctx context.Context, p principal.Principal, id string, req ReasonReq) (*orders.Order, error) {
		return h.Service.Refund(ctx, p, id, req.Reason)
	})(w, r)
}

func (h *OrdersHandler) review(w http.ResponseWriter, r *http.Request) {
	p, ok := mustPrincipal(w, r)
	if !ok {
		return
	}
	var req ReviewReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	in := orders.ReviewInput{
		ServiceRating:  req.ServiceRating,
		ServiceComment: req.ServiceComment,
		Comment:        req.Comment,
	}
	for _, it := range req.Items {
		in.Items = append(in.Items, orders.ItemReview{OrderItemID: it.OrderItemID, Rating: it.Rating, Comment: it.Comment})
	}

	ctx, cancel := h.ctx(r)
	defer cancel()
	o, err := h.Service.SubmitReview(ctx, p, chi.URLParam(r, "id"), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, orderResp(o))
}
