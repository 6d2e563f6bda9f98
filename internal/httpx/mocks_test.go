package httpx

import (
	"context"

	"github.com/ariefcatur/go-shop-orders/internal/cart"
	"github.com/ariefcatur/go-shop-orders/internal/inventory"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/ariefcatur/go-shop-orders/internal/principal"
)

type mockProducts struct {
	product inventory.Product
	qty     int
	err     error

	lastAdj inventory.Adjustment
	lastBy  principal.Principal
}

func (m *mockProducts) Get(context.Context, string) (inventory.Product, error) {
	return m.product, m.err
}

func (m *mockProducts) List(context.Context, string) ([]inventory.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []inventory.Product{m.product}, nil
}

func (m *mockProducts) Adjust(_ context.Context, p principal.Principal, _ string, adj inventory.Adjustment) (int, error) {
	m.lastAdj, m.lastBy = adj, p
	return m.qty, m.err
}

func (m *mockProducts) Movements(context.Context, principal.Principal, string, int) ([]inventory.Movement, error) {
	return []inventory.Movement{}, m.err
}

type mockCart struct {
	cart *cart.Cart
	err  error

	added   int
	updated int
}

func (m *mockCart) View(_ context.Context, ownerID string) (*cart.Cart, error) {
	if m.cart == nil {
		return &cart.Cart{OwnerID: ownerID, Lines: []cart.Line{}}, nil
	}
	return m.cart, nil
}

func (m *mockCart) Add(_ context.Context, _, _ string, qty int) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.added += qty
	return m.added, nil
}

func (m *mockCart) Update(_ context.Context, _, _ string, qty int) error {
	m.updated = qty
	return m.err
}

func (m *mockCart) Remove(context.Context, string, string) error { return m.err }
func (m *mockCart) Clear(context.Context, string) error          { return m.err }

type mockOrders struct {
	order *orders.Order
	err   error

	checkout orders.CheckoutInput
	placed   orders.PlaceOrderInput
	filter   orders.ListFilter
	ship     orders.TransitionInput
	review   orders.ReviewInput
	reason   string
	calledBy principal.Principal
}

func (m *mockOrders) result() (*orders.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.order, nil
}

func (m *mockOrders) Checkout(_ context.Context, in orders.CheckoutInput) (*orders.Order, error) {
	m.checkout = in
	return m.result()
}

func (m *mockOrders) PlaceOrder(_ context.Context, in orders.PlaceOrderInput) (*orders.Order, error) {
	m.placed = in
	return m.result()
}

func (m *mockOrders) Get(_ context.Context, p principal.Principal, _ string) (*orders.Order, error) {
	m.calledBy = p
	return m.result()
}

func (m *mockOrders) List(_ context.Context, _ principal.Principal, f orders.ListFilter) (*orders.ListResult, error) {
	m.filter = f
	if m.err != nil {
		return nil, m.err
	}
	return &orders.ListResult{Orders: []orders.Order{}, Page: f.Page, PageSize: f.PageSize}, nil
}

func (m *mockOrders) History(context.Context, principal.Principal, string) ([]orders.StatusEntry, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.order.History, nil
}

func (m *mockOrders) Status(_ context.Context, _ principal.Principal, id string) (orders.StatusView, error) {
	if m.err != nil {
		return orders.StatusView{}, m.err
	}
	return orders.StatusView{OrderID: id, Status: m.order.Status}, nil
}

func (m *mockOrders) Confirm(_ context.Context, p principal.Principal, _, method string) (*orders.Order, error) {
	m.calledBy, m.reason = p, method
	return m.result()
}

func (m *mockOrders) StartProcessing(_ context.Context, p principal.Principal, _, notes string) (*orders.Order, error) {
	m.calledBy, m.reason = p, notes
	return m.result()
}

func (m *mockOrders) Ship(_ context.Context, p principal.Principal, _ string, in orders.TransitionInput) (*orders.Order, error) {
	m.calledBy, m.ship = p, in
	return m.result()
}

func (m *mockOrders) Deliver(_ context.Context, p principal.Principal, _ string) (*orders.Order, error) {
	m.calledBy = p
	return m.result()
}

func (m *mockOrders) Cancel(_ context.Context, p principal.Principal, _, reason string) (*orders.Order, error) {
	m.calledBy, m.reason = p, reason
	return m.result()
}

func (m *mockOrders) Refund(_ context.Context, p principal.Principal, _, reason string) (*orders.Order, error) {
	m.calledBy, m.reason = p, reason
	return m.result()
}

func (m *mockOrders) SubmitReview(_ context.Context, p principal.Principal, _ string, in orders.ReviewInput) (*orders.Order, error) {
	m.calledBy, m.review = p, in
	return m.result()
}
