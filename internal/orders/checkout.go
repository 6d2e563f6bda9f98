package orders

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"

	"github.com/ariefcatur/go-shop-orders/internal/inventory"
	"github.com/ariefcatur/go-shop-orders/internal/postgres"
	"github.com/ariefcatur/go-shop-orders/internal/principal"
	"github.com/ariefcatur/go-shop-orders/internal/redisx"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type CheckoutInput struct {
	CustomerID        string
	ShippingAddressID string
	BillingAddressID  string // defaults to the shipping address
	ShippingMethod    string
	CustomerNote      string
	IdempotencyKey    string
}

// PlaceOrderInput is checkout with an explicit item list instead of the cart.
type PlaceOrderInput struct {
	CheckoutInput
	Items []LineInput
}

// Checkout turns the customer's cart into a pending order. Stock for every
// line is taken in the same transaction that writes the order, so either all
// of it happens or none of it does. The cart is emptied on success.
func (s *Service) Checkout(ctx context.Context, in CheckoutInput) (*Order, error) {
	return s.place(ctx, in, nil)
}

// PlaceOrder creates an order from an explicit item list. The cart is untouched.
func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*Order, error) {
	lines, err := mergeLines(in.Items)
	if err != nil {
		return nil, err
	}
	return s.place(ctx, in.CheckoutInput, lines)
}

// mergeLines canonicalises product ids, folds duplicates together and sorts
// by id. Canonical lower-case ids sort the same way Postgres orders uuids,
// which is the order rows are locked in.
func mergeLines(in []LineInput) ([]LineInput, error) {
	if len(in) == 0 {
		return nil, ErrEmptyCart
	}
	byID := make(map[string]int, len(in))
	for _, l := range in {
		id, err := uuid.Parse(l.ProductID)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", inventory.ErrProductNotFound, l.ProductID)
		}
		if l.Quantity <= 0 {
			return nil, fmt.Errorf("%w: product %s", inventory.ErrInvalidQuantity, l.ProductID)
		}
		byID[id.String()] += l.Quantity
	}
	out := make([]LineInput, 0, len(byID))
	for id, qty := range byID {
		out = append(out, LineInput{ProductID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (s *Service) place(ctx context.Context, in CheckoutInput, adHoc []LineInput) (*Order, error) {
	method, err := s.Pricing.ResolveMethod(in.ShippingMethod)
	if err != nil {
		return nil, err
	}

	var idemKey *string
	if in.IdempotencyKey != "" {
		k := in.CustomerID + ":" + in.IdempotencyKey
		idemKey = &k
		if o, err := s.byIdempotencyKey(ctx, in.CustomerID, in.IdempotencyKey); err == nil {
			return o, nil
		} else if !errors.Is(err, ErrOrderNotFound) {
			return nil, err
		}
	}

	fromCart := adHoc == nil
	var order *Order
	err = postgres.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		var err error
		order, err = s.placeTx(ctx, tx, in, method, adHoc, idemKey)
		return err
	})
	if err != nil {
		// lost the race to a concurrent request with the same key
		if idemKey != nil && postgres.IsUniqueViolation(err) {
			return s.byIdempotencyKey(ctx, in.CustomerID, in.IdempotencyKey)
		}
		return nil, err
	}

	log.Printf("order placed: id=%s number=%s customer=%s items=%d total=%s",
		order.ID, order.OrderNumber, order.CustomerID, len(order.Items), order.Total)

	if fromCart && s.Carts != nil {
		s.Carts.Invalidate(ctx, in.CustomerID)
	}
	s.invalidateProducts(ctx, productIDs(order.Items))
	if idemKey != nil && s.Redis != nil {
		key := fmt.Sprintf(redisx.KeyIdemCheckout, in.CustomerID, in.IdempotencyKey)
		if err := s.Redis.Set(ctx, key, order.ID, redisx.TTLIdempotency).Err(); err != nil {
			log.Printf("checkout idempotency set: %v", err)
		}
	}
	return order, nil
}

func (s *Service) placeTx(ctx context.Context, tx pgx.Tx, in CheckoutInput, method string, adHoc []LineInput, idemKey *string) (*Order, error) {
	if err := addressOwned(ctx, tx, in.ShippingAddressID, in.CustomerID); err != nil {
		return nil, err
	}
	billing := in.BillingAddressID
	if billing == "" {
		billing = in.ShippingAddressID
	} else if err := addressOwned(ctx, tx, billing, in.CustomerID); err != nil {
		return nil, err
	}

	lines := adHoc
	if lines == nil {
		var err error
		if lines, err = cartLines(ctx, tx, in.CustomerID); err != nil {
			return nil, fmt.Errorf("snapshot cart: %w", err)
		}
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	now := s.now()
	shipping := in.ShippingAddressID
	o := &Order{
		ID:                uuid.NewString(),
		OrderNumber:       NewOrderNumber(now),
		CustomerID:        in.CustomerID,
		Status:            StatusPending,
		PaymentStatus:     PaymentPending,
		Currency:          s.Pricing.Currency,
		ShippingMethod:    method,
		ShippingAddressID: &shipping,
		BillingAddressID:  &billing,
		CustomerNote:      in.CustomerNote,
	}

	// Any failure below returns an error and WithTx rolls back every
	// reservation already taken.
	subtotal := decimal.Zero
	ref := inventory.Reference{OrderID: o.ID, ActorID: in.CustomerID, Reason: "checkout " + o.OrderNumber}
	for _, l := range lines {
		snap, err := s.Ledger.ReserveTx(ctx, tx, l.ProductID, l.Quantity, ref)
		if err != nil {
			return nil, err
		}
		if snap.Status != inventory.ProductActive {
			return nil, fmt.Errorf("%w: %s", inventory.ErrProductUnavailable, snap.SKU)
		}
		o.Items = append(o.Items, OrderItem{
			ID:              uuid.NewString(),
			OrderID:         o.ID,
			ProductID:       snap.ProductID,
			ProductName:     snap.Name,
			ProductSKU:      snap.SKU,
			Quantity:        l.Quantity,
			PriceAtPurchase: snap.Price,
		})
		subtotal = subtotal.Add(snap.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	totals, err := s.Pricing.Quote(subtotal, method)
	if err != nil {
		return nil, err
	}
	o.Totals = totals

	if err := insertOrder(ctx, tx, o, idemKey, now); err != nil {
		return nil, err
	}
	for i := range o.Items {
		if err := insertItem(ctx, tx, &o.Items[i]); err != nil {
			return nil, err
		}
	}
	if err := appendHistory(ctx, tx, o.ID, StatusPending, in.CustomerID, string(principal.RoleCustomer), "order placed"); err != nil {
		return nil, err
	}

	events := make([]ItemLine, 0, len(o.Items))
	for _, it := range o.Items {
		events = append(events, ItemLine{ProductID: it.ProductID, SKU: it.ProductSKU, Quantity: it.Quantity, Price: it.PriceAtPurchase})
	}
	if err := s.enqueue(ctx, tx, o.ID, EventOrderPlaced, OrderPlacedPayload{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		CustomerID:  o.CustomerID,
		Items:       events,
		Total:       o.Total,
		Currency:    o.Currency,
	}); err != nil {
		return nil, err
	}

	if adHoc == nil {
		ids := make([]string, 0, len(lines))
		for _, l := range lines {
			ids = append(ids, l.ProductID)
		}
		// only the snapshotted lines
		if _, err := tx.Exec(ctx,
			`DELETE FROM cart_items WHERE owner_id=$1 AND product_id = ANY($2::uuid[])`, in.CustomerID, ids,
		); err != nil {
			return nil, fmt.Errorf("clear cart: %w", err)
		}
	}

	o.History, err = loadHistory(ctx, tx, o.ID)
	if err != nil {
		return nil, err
	}
	return o, nil
}

// byIdempotencyKey: Redis is a shortcut, the unique column is the truth.
func (s *Service) byIdempotencyKey(ctx context.Context, customerID, key string) (*Order, error) {
	if s.Redis != nil {
		rkey := fmt.Sprintf(redisx.KeyIdemCheckout, customerID, key)
		if id, err := s.Redis.Get(ctx, rkey).Result(); err == nil && id != "" {
			if o, err := loadFull(ctx, s.DB, id); err == nil {
				return o, nil
			}
		}
	}

	var id string
	err := s.DB.QueryRow(ctx,
		`SELECT id FROM orders WHERE idempotency_key=$1`, customerID+":"+key,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return loadFull(ctx, s.DB, id)
}
