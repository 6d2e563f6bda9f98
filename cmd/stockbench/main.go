package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/ariefcatur/go-shop-orders/internal/config"
	"github.com/ariefcatur/go-shop-orders/internal/inventory"
	"github.com/ariefcatur/go-shop-orders/internal/postgres"
	"github.com/ariefcatur/go-shop-orders/internal/stockbench"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func main() {
	var (
		backend     = flag.String("backend", "memory", "ledger backend: memory or postgres")
		products    = flag.Int("products", 4, "number of products to contend on")
		stock       = flag.Int("stock", 1000, "initial stock per product")
		concurrency = flag.Int("concurrency", 32, "concurrent reservers")
		duration    = flag.Duration("duration", 10*time.Second, "how long to run")
		maxQty      = flag.Int("max-qty", 3, "largest quantity per reservation")
		release     = flag.Float64("release", 0.2, "share of reservations released again")
	)
	flag.Parse()
	_ = godotenv.Load()
	ctx := context.Background()

	ids := make([]string, *products)
	for i := range ids {
		ids[i] = uuid.NewString()
	}

	var ledger inventory.StockLedger
	switch *backend {
	case "memory":
		initial := make(map[string]int, len(ids))
		for _, id := range ids {
			initial[id] = *stock
		}
		ledger = inventory.NewMemoryLedger(initial)
	case "postgres":
		cfg := config.Load()
		if err := postgres.Migrate(cfg.PostgresDSN); err != nil {
			log.Fatalf("migrate: %v", err)
		}
		db, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		defer db.Close()
		if err := seed(ctx, db, ids, *stock); err != nil {
			log.Fatalf("seed: %v", err)
		}
		ledger = &inventory.Ledger{DB: db}
	default:
		log.Fatalf("unknown backend %q", *backend)
	}

	res, err := stockbench.Run(ctx, ledger, stockbench.Config{
		ProductIDs:   ids,
		Concurrency:  *concurrency,
		Duration:     *duration,
		MaxQuantity:  *maxQty,
		ReleaseRatio: *release,
	})
	if err != nil {
		log.Fatalf("bench: %v", err)
	}
	log.Printf("%s: %s", *backend, res)
	if !res.DataIntegrity {
		log.Fatal("integrity check failed: stock does not add up")
	}
}

func seed(ctx context.Context, db *pgxpool.Pool, ids []string, stock int) error {
	for i, id := range ids {
		_, err := db.Exec(ctx, `
			INSERT INTO products(id, merchant_id, sku, name, price, stock_quantity, status)
			VALUES ($1, 'stockbench', $2, $3, $4, $5, 'active')`,
			id, "BENCH-"+id[:8], fmt.Sprintf("Bench product %d", i+1), decimal.NewFromInt(1), stock)
		if err != nil {
			return err
		}
	}
	return nil
}
