package orders

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/ariefcatur/go-shop-orders/internal/principal"
	"github.com/ariefcatur/go-shop-orders/internal/redisx"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	// MaxPage keeps the offset well inside an int.
	MaxPage = 100_000
)

var ErrInvalidStatus = errors.New("unknown order status")

type ListFilter struct {
	Status   Status
	Page     int
	PageSize int
}

func (f *ListFilter) normalize() {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Page > MaxPage {
		f.Page = MaxPage
	}
	if f.PageSize < 1 {
		f.PageSize = DefaultPageSize
	}
	if f.PageSize > MaxPageSize {
		f.PageSize = MaxPageSize
	}
}

func (f ListFilter) offset() int { return (f.Page - 1) * f.PageSize }

type ListResult struct {
	Orders   []Order `json:"orders"`
	Total    int     `json:"total"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
}

// Get returns the order with items and history. Orders the principal may not
// see are reported as not found.
func (s *Service) Get(ctx context.Context, p principal.Principal, orderID string) (*Order, error) {
	o, err := loadFull(ctx, s.DB, orderID)
	if err != nil {
		return nil, err
	}
	rel, err := s.relation(ctx, s.DB, p, o)
	if err != nil {
		return nil, err
	}
	if rel == relNone {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

func (s *Service) History(ctx context.Context, p principal.Principal, orderID string) ([]StatusEntry, error) {
	o, err := s.Get(ctx, p, orderID)
	if err != nil {
		return nil, err
	}
	return o.History, nil
}

// List pages through the orders visible to p, newest first.
func (s *Service) List(ctx context.Context, p principal.Principal, f ListFilter) (*ListResult, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, f.Status)
	}
	f.normalize()

	var scope string
	args := []any{}
	switch p.Role {
	case principal.RoleAdmin:
		scope = `TRUE`
	case principal.RoleCustomer:
		args = append(args, p.ID)
		scope = `customer_id = $1`
	case principal.RoleMerchant:
		args = append(args, p.ID)
		scope = `EXISTS (SELECT 1 FROM order_items oi JOIN products pr ON pr.id = oi.product_id
			WHERE oi.order_id = orders.id AND pr.merchant_id = $1)`
	default:
		return nil, principal.ErrForbidden
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		scope += fmt.Sprintf(` AND status = $%d`, len(args))
	}

	res := &ListResult{Orders: []Order{}, Page: f.Page, PageSize: f.PageSize}
	if err := s.DB.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE `+scope, args...).Scan(&res.Total); err != nil {
		return nil, err
	}

	args = append(args, f.PageSize, f.offset())
	rows, err := s.DB.Query(ctx, fmt.Sprintf(`SELECT %s FROM orders WHERE %s
		ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, orderColumns, scope, len(args)-1, len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		res.Orders = append(res.Orders, *o)
	}
	return res, rows.Err()
}

// Status answers status polls from the cache, falling back to the database.
func (s *Service) Status(ctx context.Context, p principal.Principal, orderID string) (StatusView, error) {
	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	var v StatusView
	cached := false
	if s.Redis != nil {
		if err := redisx.GetJSON(ctx, s.Redis, key, &v); err == nil {
			cached = true
		} else if !errors.Is(err, redisx.ErrCacheMiss) {
			log.Printf("order status cache get %s: %v", orderID, err)
		}
	}

	if !cached {
		o, err := loadOrder(ctx, s.DB, orderID, false)
		if err != nil {
			return StatusView{}, err
		}
		v = ViewOf(o)
		if s.Redis != nil {
			if err := redisx.SetJSON(ctx, s.Redis, key, v, redisx.TTLStatusCache); err != nil {
				log.Printf("order status cache set %s: %v", orderID, err)
			}
		}
	}

	if err := s.canSee(ctx, p, v.OrderID, v.CustomerID); err != nil {
		return StatusView{}, err
	}
	return v, nil
}

func (s *Service) canSee(ctx context.Context, p principal.Principal, orderID, customerID string) error {
	owns := false
	if p.Role == principal.RoleMerchant {
		var err error
		if owns, err = merchantOwnsItem(ctx, s.DB, orderID, p.ID); err != nil {
			return err
		}
	}
	if relationOf(p, customerID, owns) == relNone {
		return ErrOrderNotFound
	}
	return nil
}

func ViewOf(o *Order) StatusView {
	return StatusView{
		OrderID:       o.ID,
		CustomerID:    o.CustomerID,
		Status:        o.Status,
		PaymentStatus: o.PaymentStatus,
		Display:       DisplayFor(o.Status),
		UpdatedAt:     o.UpdatedAt,
	}
}
