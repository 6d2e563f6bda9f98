// Package projection keeps read-side caches in step with order events.
package projection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	kafkax "github.com/ariefcatur/go-shop-orders/internal/kafka"
	"github.com/ariefcatur/go-shop-orders/internal/orders"
	"github.com/ariefcatur/go-shop-orders/internal/redisx"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
)

// StatusProjector writes order_status:{id} from OrderPlaced and
// OrderStatusChanged events. Events are deduplicated by event id, and a view
// never replaces a newer one, so redelivery and reordering are harmless.
type StatusProjector struct {
	Redis redis.Cmdable
	Name  string
}

func (p *StatusProjector) Handle(ctx context.Context, m kafka.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// poison message: nothing to retry
		log.Printf("projector: bad envelope at offset %d: %v", m.Offset, err)
		return nil
	}
	if env.EventID == "" {
		env.EventID = kafkax.Header(m, "event_id")
	}

	dedup := fmt.Sprintf(redisx.KeyDedup, p.Name, env.EventID)
	seen, err := redisx.Exists(ctx, p.Redis, dedup)
	if err != nil {
		return err
	}
	if seen {
		return nil
	}

	view, ok, err := viewFrom(env)
	if err != nil {
		log.Printf("projector: %s %s: %v", env.EventType, env.EventID, err)
		return nil
	}
	if ok {
		if err := p.apply(ctx, view); err != nil {
			return err
		}
	}

	_, err = redisx.Claim(ctx, p.Redis, dedup, redisx.TTLDedup)
	return err
}

func viewFrom(env orders.Envelope) (orders.StatusView, bool, error) {
	switch env.EventType {
	case orders.EventOrderPlaced:
		pl, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
		if err != nil {
			return orders.StatusView{}, false, err
		}
		return orders.StatusView{
			OrderID:       pl.OrderID,
			CustomerID:    pl.CustomerID,
			Status:        orders.StatusPending,
			PaymentStatus: orders.PaymentPending,
			Display:       orders.DisplayFor(orders.StatusPending),
			UpdatedAt:     env.OccurredAt,
		}, true, nil
	case orders.EventOrderStatusChanged:
		pl, err := kafkax.UnwrapPayload[orders.OrderStatusChangedPayload](env.Payload)
		if err != nil {
			return orders.StatusView{}, false, err
		}
		return orders.StatusView{
			OrderID:       pl.OrderID,
			CustomerID:    pl.CustomerID,
			Status:        pl.To,
			PaymentStatus: pl.PaymentStatus,
			Display:       orders.DisplayFor(pl.To),
			UpdatedAt:     pl.ChangedAt,
		}, true, nil
	}
	return orders.StatusView{}, false, nil
}

func (p *StatusProjector) apply(ctx context.Context, v orders.StatusView) error {
	key := fmt.Sprintf(redisx.KeyOrderStatus, v.OrderID)
	var cur orders.StatusView
	err := redisx.GetJSON(ctx, p.Redis, key, &cur)
	switch {
	case err == nil:
		if cur.UpdatedAt.After(v.UpdatedAt) {
			return nil
		}
	case !errors.Is(err, redisx.ErrCacheMiss):
		return err
	}
	return redisx.SetJSON(ctx, p.Redis, key, v, redisx.TTLStatusCache)
}
