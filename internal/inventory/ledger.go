package inventory

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ariefcatur/go-shop-orders/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StockLedger is the only way stock levels change.
type StockLedger interface {
	Reserve(ctx context.Context, productID string, qty int) error
	Release(ctx context.Context, productID string, qty int) error
	Adjust(ctx context.Context, productID string, adj Adjustment) (int, error)
	Available(ctx context.Context, productID string) (int, error)
}

// Reference is logged with every movement.
type Reference struct {
	OrderID string
	ActorID string
	Reason  string
}

type Movement struct {
	ID                int64        `json:"id"`
	ProductID         string       `json:"product_id"`
	OrderID           *string      `json:"order_id,omitempty"`
	Kind              MovementKind `json:"kind"`
	Delta             int          `json:"delta"`
	ResultingQuantity int          `json:"resulting_quantity"`
	Reason            string       `json:"reason"`
	ActorID           string       `json:"actor_id"`
	CreatedAt         time.Time    `json:"created_at"`
}

type Ledger struct{ DB *pgxpool.Pool }

var _ StockLedger = (*Ledger)(nil)

// ReserveTx takes qty units with a single conditional decrement. The row lock
// it acquires serializes concurrent reservations of the same product until q
// commits or rolls back, so two reservations can never both see the same units.
func (l *Ledger) ReserveTx(ctx context.Context, q postgres.DBTX, productID string, qty int, ref Reference) (Snapshot, error) {
	if qty <= 0 {
		return Snapshot{}, ErrInvalidQuantity
	}
	if _, err := uuid.Parse(productID); err != nil {
		return Snapshot{}, ErrProductNotFound
	}

	var s Snapshot
	err := q.QueryRow(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity - $2, updated_at = NOW()
		WHERE id = $1 AND stock_quantity >= $2
		RETURNING id, merchant_id, name, sku, price, currency, status, stock_quantity`,
		productID, qty,
	).Scan(&s.ProductID, &s.MerchantID, &s.Name, &s.SKU, &s.Price, &s.Currency, &s.Status, &s.Remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return Snapshot{}, rejection(ctx, q, productID, qty)
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("reserve %s: %w", productID, err)
	}

	if err := recordMovement(ctx, q, productID, MovementReserve, -qty, s.Remaining, ref); err != nil {
		return Snapshot{}, err
	}
	return s, nil
}

// ReleaseTx returns qty units. It never fails for an existing product.
func (l *Ledger) ReleaseTx(ctx context.Context, q postgres.DBTX, productID string, qty int, ref Reference) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	if _, err := uuid.Parse(productID); err != nil {
		return ErrProductNotFound
	}

	var remaining int
	err := q.QueryRow(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity + $2, updated_at = NOW()
		WHERE id = $1
		RETURNING stock_quantity`,
		productID, qty,
	).Scan(&remaining)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrProductNotFound
	}
	if err != nil {
		return fmt.Errorf("release %s: %w", productID, err)
	}
	return recordMovement(ctx, q, productID, MovementRelease, qty, remaining, ref)
}

func (l *Ledger) Reserve(ctx context.Context, productID string, qty int) error {
	return postgres.WithTx(ctx, l.DB, func(tx pgx.Tx) error {
		_, err := l.ReserveTx(ctx, tx, productID, qty, Reference{})
		return err
	})
}

func (l *Ledger) Release(ctx context.Context, productID string, qty int) error {
	return postgres.WithTx(ctx, l.DB, func(tx pgx.Tx) error {
		return l.ReleaseTx(ctx, tx, productID, qty, Reference{})
	})
}

// Adjust is the administrative correction path. It does not look at pending
// orders.
func (l *Ledger) Adjust(ctx context.Context, productID string, adj Adjustment) (int, error) {
	return l.adjust(ctx, productID, "", adj)
}

// AdjustOwned is Adjust restricted to the merchant's own products. Other
// merchants' products look absent.
func (l *Ledger) AdjustOwned(ctx context.Context, productID, merchantID string, adj Adjustment) (int, error) {
	if merchantID == "" {
		return 0, ErrProductNotFound
	}
	return l.adjust(ctx, productID, merchantID, adj)
}

func (l *Ledger) adjust(ctx context.Context, productID, merchantID string, adj Adjustment) (int, error) {
	if _, err := uuid.Parse(productID); err != nil {
		return 0, ErrProductNotFound
	}

	var before, after int
	err := postgres.WithTx(ctx, l.DB, func(tx pgx.Tx) error {
		var owner string
		err := tx.QueryRow(ctx,
			`SELECT stock_quantity, merchant_id FROM products WHERE id=$1 FOR UPDATE`, productID,
		).Scan(&before, &owner)
		if errors.Is(err, pgx.ErrNoRows) || (err == nil && merchantID != "" && owner != merchantID) {
			return ErrProductNotFound
		}
		if err != nil {
			return err
		}

		after, err = adj.Apply(before)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`UPDATE products SET stock_quantity=$2, updated_at=NOW() WHERE id=$1`, productID, after,
		); err != nil {
			return err
		}
		return recordMovement(ctx, tx, productID, MovementAdjust, after-before, after,
			Reference{ActorID: adj.ActorID, Reason: adj.Reason})
	})
	if err != nil {
		return 0, err
	}

	log.Printf("stock adjusted: product=%s mode=%s %d -> %d actor=%s reason=%q",
		productID, adj.Mode, before, after, adj.ActorID, adj.Reason)
	return after, nil
}

func (l *Ledger) Available(ctx context.Context, productID string) (int, error) {
	if _, err := uuid.Parse(productID); err != nil {
		return 0, ErrProductNotFound
	}
	var n int
	err := l.DB.QueryRow(ctx, `SELECT stock_quantity FROM products WHERE id=$1`, productID).Scan(&n)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrProductNotFound
	}
	return n, err
}

// Movements lists the newest movements of a product first.
func (l *Ledger) Movements(ctx context.Context, productID string, limit int) ([]Movement, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := l.DB.Query(ctx, `
		SELECT id, product_id, order_id, kind, delta, resulting_quantity, reason, actor_id, created_at
		FROM stock_movements
		WHERE product_id = $1
		ORDER BY id DESC
		LIMIT $2`, productID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Movement{}
	for rows.Next() {
		var m Movement
		if err := rows.Scan(&m.ID, &m.ProductID, &m.OrderID, &m.Kind, &m.Delta,
			&m.ResultingQuantity, &m.Reason, &m.ActorID, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func rejection(ctx context.Context, q postgres.DBTX, productID string, requested int) error {
	var available int
	err := q.QueryRow(ctx, `SELECT stock_quantity FROM products WHERE id=$1`, productID).Scan(&available)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrProductNotFound
	}
	if err != nil {
		return err
	}
	return &InsufficientStockError{ProductID: productID, Requested: requested, Available: available}
}

func recordMovement(ctx context.Context, q postgres.DBTX, productID string, kind MovementKind, delta, resulting int, ref Reference) error {
	var orderID any
	if ref.OrderID != "" {
		orderID = ref.OrderID
	}
	_, err := q.Exec(ctx, `
		INSERT INTO stock_movements(product_id, order_id, kind, delta, resulting_quantity, reason, actor_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		productID, orderID, string(kind), delta, resulting, ref.Reason, ref.ActorID)
	if err != nil {
		return fmt.Errorf("record %s movement: %w", kind, err)
	}
	return nil
}
