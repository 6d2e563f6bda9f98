package orders

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/ariefcatur/go-shop-orders/internal/inventory"
	"github.com/ariefcatur/go-shop-orders/internal/redisx"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

type CartInvalidator interface {
	Invalidate(ctx context.Context, ownerID string)
}

type ProductInvalidator interface {
	Invalidate(ctx context.Context, productIDs ...string)
}

// Service owns order creation, the status machine and reviews. Every
// operation that writes runs in one database transaction; cache and
// idempotency writes happen after commit and are best effort.
type Service struct {
	DB          *pgxpool.Pool
	Ledger      *inventory.Ledger
	Pricing     Pricing
	Redis       redis.Cmdable
	Carts       CartInvalidator
	Products    ProductInvalidator
	ServiceName string
	Now         func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) dropStatus(ctx context.Context, orderID string) {
	if s.Redis == nil {
		return
	}
	if err := s.Redis.Del(ctx, fmt.Sprintf(redisx.KeyOrderStatus, orderID)).Err(); err != nil {
		log.Printf("order status cache invalidate %s: %v", orderID, err)
	}
}

func (s *Service) invalidateProducts(ctx context.Context, ids []string) {
	if s.Products != nil && len(ids) > 0 {
		s.Products.Invalidate(ctx, ids...)
	}
}

func productIDs(items []OrderItem) []string {
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	return ids
}
