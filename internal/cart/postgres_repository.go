package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-shop-orders/internal/inventory"
	"github.com/ariefcatur/go-shop-orders/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct{ DB *pgxpool.Pool }

var _ Repository = (*PostgresRepository)(nil)

// stockFor reads the current level without locking: the cart never holds stock.
func stockFor(ctx context.Context, q postgres.DBTX, productID string) (int, error) {
	if _, err := uuid.Parse(productID); err != nil {
		return 0, inventory.ErrProductNotFound
	}
	var (
		stock  int
		status inventory.ProductStatus
	)
	err := q.QueryRow(ctx, `SELECT stock_quantity, status FROM products WHERE id=$1`, productID).Scan(&stock, &status)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, inventory.ErrProductNotFound
	}
	if err != nil {
		return 0, err
	}
	if status != inventory.ProductActive {
		return 0, inventory.ErrProductUnavailable
	}
	return stock, nil
}

func (r *PostgresRepository) Add(ctx context.Context, ownerID, productID string, qty int) (int, error) {
	if qty < 1 {
		return 0, inventory.ErrInvalidQuantity
	}

	var merged int
	err := postgres.WithTx(ctx, r.DB, func(tx pgx.Tx) error {
		stock, err := stockFor(ctx, tx, productID)
		if err != nil {
			return err
		}
		if err := tx.QueryRow(ctx, `
			INSERT INTO cart_items(owner_id, product_id, quantity)
			VALUES ($1, $2, $3)
			ON CONFLICT (owner_id, product_id)
			DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = NOW()
			RETURNING quantity`,
			ownerID, productID, qty,
		).Scan(&merged); err != nil {
			return fmt.Errorf("upsert cart item: %w", err)
		}
		// rolls back the merge
		if merged > stock {
			return &inventory.InsufficientStockError{ProductID: productID, Requested: merged, Available: stock}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return merged, nil
}

func (r *PostgresRepository) SetQuantity(ctx context.Context, ownerID, productID string, qty int) error {
	// a malformed id can't be in the cart
	if _, err := uuid.Parse(productID); err != nil {
		return ErrItemNotFound
	}
	if qty <= 0 {
		ct, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE owner_id=$1 AND product_id=$2`, ownerID, productID)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return ErrItemNotFound
		}
		return nil
	}

	return postgres.WithTx(ctx, r.DB, func(tx pgx.Tx) error {
		stock, err := stockFor(ctx, tx, productID)
		if err != nil {
			return err
		}
		if qty > stock {
			return &inventory.InsufficientStockError{ProductID: productID, Requested: qty, Available: stock}
		}
		ct, err := tx.Exec(ctx, `
			UPDATE cart_items SET quantity=$3, updated_at=NOW()
			WHERE owner_id=$1 AND product_id=$2`, ownerID, productID, qty)
		if err != nil {
			return err
		}
		if ct.RowsAffected() == 0 {
			return ErrItemNotFound
		}
		return nil
	})
}

func (r *PostgresRepository) Remove(ctx context.Context, ownerID, productID string) error {
	if _, err := uuid.Parse(productID); err != nil {
		return nil
	}
	_, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE owner_id=$1 AND product_id=$2`, ownerID, productID)
	return err
}

func (r *PostgresRepository) Clear(ctx context.Context, ownerID string) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM cart_items WHERE owner_id=$1`, ownerID)
	return err
}

func (r *PostgresRepository) Lines(ctx context.Context, ownerID string) ([]Line, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT p.id, p.name, p.sku, p.price, c.quantity, p.stock_quantity, p.status, c.added_at
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.owner_id = $1
		ORDER BY c.added_at, p.id`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.ProductID, &l.Name, &l.SKU, &l.UnitPrice, &l.Quantity,
			&l.Available, &l.Status, &l.AddedAt); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
