package inventory

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/ariefcatur/go-shop-orders/internal/redisx"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const productColumns = `id, merchant_id, sku, name, price, currency, stock_quantity, status,
	rating_sum, rating_count, created_at, updated_at`

type Catalog struct{ DB *pgxpool.Pool }

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.MerchantID, &p.SKU, &p.Name, &p.Price, &p.Currency, &p.StockQuantity,
		&p.Status, &p.RatingSum, &p.RatingCount, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (c *Catalog) Get(ctx context.Context, productID string) (Product, error) {
	if _, err := uuid.Parse(productID); err != nil {
		return Product{}, ErrProductNotFound
	}
	p, err := scanProduct(c.DB.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id=$1`, productID))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, ErrProductNotFound
	}
	return p, err
}

// List returns purchasable products ordered by name. A non-empty merchantID
// narrows the list to that merchant and includes drafts and inactive ones.
func (c *Catalog) List(ctx context.Context, merchantID string) ([]Product, error) {
	var (
		rows pgx.Rows
		err  error
	)
	if merchantID == "" {
		rows, err = c.DB.Query(ctx, `SELECT `+productColumns+` FROM products WHERE status='active' ORDER BY name, sku`)
	} else {
		rows, err = c.DB.Query(ctx, `SELECT `+productColumns+` FROM products WHERE merchant_id=$1 ORDER BY name, sku`, merchantID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Product{}
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type productReader interface {
	Get(ctx context.Context, productID string) (Product, error)
	List(ctx context.Context, merchantID string) ([]Product, error)
}

// CachedCatalog reads single products through Redis. Lists always go to
// the database.
type CachedCatalog struct {
	Store productReader
	Redis redis.Cmdable
}

func (c *CachedCatalog) Get(ctx context.Context, productID string) (Product, error) {
	key := fmt.Sprintf(redisx.KeyProduct, productID)
	var p Product
	if err := redisx.GetJSON(ctx, c.Redis, key, &p); err == nil {
		return p, nil
	} else if !errors.Is(err, redisx.ErrCacheMiss) {
		log.Printf("product cache get %s: %v", productID, err)
	}

	p, err := c.Store.Get(ctx, productID)
	if err != nil {
		return Product{}, err
	}
	if err := redisx.SetJSON(ctx, c.Redis, key, p, redisx.TTLProduct); err != nil {
		log.Printf("product cache set %s: %v", productID, err)
	}
	return p, nil
}

func (c *CachedCatalog) List(ctx context.Context, merchantID string) ([]Product, error) {
	return c.Store.List(ctx, merchantID)
}

// Invalidate drops cached snapshots after stock or rating changes.
func (c *CachedCatalog) Invalidate(ctx context.Context, productIDs ...string) {
	if len(productIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(productIDs))
	for _, id := range productIDs {
		keys = append(keys, fmt.Sprintf(redisx.KeyProduct, id))
	}
	if err := c.Redis.Del(ctx, keys...).Err(); err != nil {
		log.Printf("product cache invalidate: %v", err)
	}
}
