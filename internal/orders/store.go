package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-shop-orders/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const orderColumns = `id, order_number, customer_id, status, payment_status,
	subtotal, shipping_cost, tax_amount, total_amount, currency, shipping_method,
	shipping_address_id, billing_address_id, tracking_number, carrier, estimated_delivery,
	customer_note, is_reviewed, review_rating, review_comment, service_rating, service_comment,
	shipped_at, delivered_at, created_at, updated_at`

const maxOrderNumberAttempts = 5

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	err := row.Scan(&o.ID, &o.OrderNumber, &o.CustomerID, &o.Status, &o.PaymentStatus,
		&o.Subtotal, &o.Shipping, &o.Tax, &o.Total, &o.Currency, &o.ShippingMethod,
		&o.ShippingAddressID, &o.BillingAddressID, &o.TrackingNumber, &o.Carrier, &o.EstimatedDelivery,
		&o.CustomerNote, &o.IsReviewed, &o.ReviewRating, &o.ReviewComment, &o.ServiceRating, &o.ServiceComment,
		&o.ShippedAt, &o.DeliveredAt, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func loadOrder(ctx context.Context, q postgres.DBTX, orderID string, forUpdate bool) (*Order, error) {
	if _, err := uuid.Parse(orderID); err != nil {
		return nil, ErrOrderNotFound
	}
	sql := `SELECT ` + orderColumns + ` FROM orders WHERE id=$1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	o, err := scanOrder(q.QueryRow(ctx, sql, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", orderID, err)
	}
	return o, nil
}

func loadItems(ctx context.Context, q postgres.DBTX, orderID string) ([]OrderItem, error) {
	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, product_name, product_sku, quantity, price_at_purchase, rating, review_comment
		FROM order_items WHERE order_id=$1 ORDER BY product_id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderItem
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.ProductName, &it.ProductSKU,
			&it.Quantity, &it.PriceAtPurchase, &it.Rating, &it.ReviewComment); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func loadHistory(ctx context.Context, q postgres.DBTX, orderID string) ([]StatusEntry, error) {
	rows, err := q.Query(ctx, `
		SELECT id, status, actor_id, actor_role, notes, created_at
		FROM order_status_history WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StatusEntry
	for rows.Next() {
		var h StatusEntry
		if err := rows.Scan(&h.ID, &h.Status, &h.ActorID, &h.ActorRole, &h.Notes, &h.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func loadFull(ctx context.Context, q postgres.DBTX, orderID string) (*Order, error) {
	o, err := loadOrder(ctx, q, orderID, false)
	if err != nil {
		return nil, err
	}
	if o.Items, err = loadItems(ctx, q, orderID); err != nil {
		return nil, err
	}
	if o.History, err = loadHistory(ctx, q, orderID); err != nil {
		return nil, err
	}
	return o, nil
}

// merchantOwnsItem: a merchant sees an order when it sold at least one line of it.
func merchantOwnsItem(ctx context.Context, q postgres.DBTX, orderID, merchantID string) (bool, error) {
	var ok bool
	err := q.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM order_items oi
			JOIN products p ON p.id = oi.product_id
			WHERE oi.order_id = $1 AND p.merchant_id = $2
		)`, orderID, merchantID).Scan(&ok)
	return ok, err
}

func addressOwned(ctx context.Context, q postgres.DBTX, addressID, customerID string) error {
	if _, err := uuid.Parse(addressID); err != nil {
		return ErrInvalidAddress
	}
	var ok bool
	err := q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM addresses WHERE id=$1 AND owner_id=$2)`, addressID, customerID,
	).Scan(&ok)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidAddress
	}
	return nil
}

// cartLines snapshots the customer's cart in product id order, the same
// order every checkout locks products in.
func cartLines(ctx context.Context, q postgres.DBTX, customerID string) ([]LineInput, error) {
	rows, err := q.Query(ctx, `
		SELECT product_id, quantity FROM cart_items
		WHERE owner_id=$1 ORDER BY product_id
		FOR UPDATE`, customerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LineInput
	for rows.Next() {
		var l LineInput
		if err := rows.Scan(&l.ProductID, &l.Quantity); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func insertOrder(ctx context.Context, q postgres.DBTX, o *Order, idempotencyKey *string, now time.Time) error {
	for attempt := 0; attempt < maxOrderNumberAttempts; attempt++ {
		err := q.QueryRow(ctx, `
			INSERT INTO orders(id, order_number, customer_id, status, payment_status,
				subtotal, shipping_cost, tax_amount, total_amount, currency, shipping_method,
				shipping_address_id, billing_address_id, customer_note, idempotency_key)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
			ON CONFLICT (order_number) DO NOTHING
			RETURNING created_at, updated_at`,
			o.ID, o.OrderNumber, o.CustomerID, string(o.Status), string(o.PaymentStatus),
			o.Subtotal, o.Shipping, o.Tax, o.Total, o.Currency, o.ShippingMethod,
			o.ShippingAddressID, o.BillingAddressID, o.CustomerNote, idempotencyKey,
		).Scan(&o.CreatedAt, &o.UpdatedAt)
		if err == nil {
			return nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("insert order: %w", err)
		}
		// order number taken
		o.OrderNumber = NewOrderNumber(now)
	}
	return fmt.Errorf("insert order: no free order number after %d attempts", maxOrderNumberAttempts)
}

func insertItem(ctx context.Context, q postgres.DBTX, it *OrderItem) error {
	_, err := q.Exec(ctx, `
		INSERT INTO order_items(id, order_id, product_id, product_name, product_sku, quantity, price_at_purchase)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		it.ID, it.OrderID, it.ProductID, it.ProductName, it.ProductSKU, it.Quantity, it.PriceAtPurchase)
	if err != nil {
		return fmt.Errorf("insert order item: %w", err)
	}
	return nil
}

// appendHistory is the only writer of order_status_history. Rows are never
// updated or deleted.
func appendHistory(ctx context.Context, q postgres.DBTX, orderID string, status Status, actorID, actorRole, notes string) error {
	_, err := q.Exec(ctx, `
		INSERT INTO order_status_history(order_id, status, actor_id, actor_role, notes)
		VALUES ($1, $2, $3, $4, $5)`,
		orderID, string(status), actorID, actorRole, notes)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}
