// Package pgtest starts a throwaway Postgres for integration tests.
package pgtest

import (
	"context"
	"testing"
	"time"

	"github.com/ariefcatur/go-shop-orders/internal/postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// New returns a migrated pool. Skipped under -short.
func New(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test: needs docker")
	}
	ctx := context.Background()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("testdb"),
		tcpostgres.WithUsername("testuser"),
		tcpostgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, postgres.Migrate(dsn))

	pool, err := postgres.Connect(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

type Product struct {
	MerchantID string
	SKU        string
	Name       string
	Price      string
	Stock      int
	Status     string
}

// SeedProduct inserts a product and returns its id. Empty fields get defaults.
func SeedProduct(t *testing.T, pool *pgxpool.Pool, p Product) string {
	t.Helper()
	id := uuid.NewString()
	if p.MerchantID == "" {
		p.MerchantID = "merchant-1"
	}
	if p.SKU == "" {
		p.SKU = "SKU-" + id[:8]
	}
	if p.Name == "" {
		p.Name = "Product " + id[:8]
	}
	if p.Price == "" {
		p.Price = "10.00"
	}
	if p.Status == "" {
		p.Status = "active"
	}
	_, err := pool.Exec(context.Background(), `
		INSERT INTO products(id, merchant_id, sku, name, price, stock_quantity, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, p.MerchantID, p.SKU, p.Name, decimal.RequireFromString(p.Price), p.Stock, p.Status)
	require.NoError(t, err)
	return id
}

func SeedAddress(t *testing.T, pool *pgxpool.Pool, ownerID string) string {
	t.Helper()
	id := uuid.NewString()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO addresses(id, owner_id, recipient, line1, city, postal_code, country)
		VALUES ($1, $2, 'Test Recipient', '1 Main St', 'Springfield', '12345', 'US')`,
		id, ownerID)
	require.NoError(t, err)
	return id
}

func Stock(t *testing.T, pool *pgxpool.Pool, productID string) int {
	t.Helper()
	var n int
	err := pool.QueryRow(context.Background(),
		`SELECT stock_quantity FROM products WHERE id=$1`, productID).Scan(&n)
	require.NoError(t, err)
	return n
}
