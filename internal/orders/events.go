package orders

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ariefcatur/go-shop-orders/internal/postgres"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventOrderReviewed      = "OrderReviewed"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type ItemLine struct {
	ProductID string          `json:"product_id"`
	SKU       string          `json:"sku"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type OrderPlacedPayload struct {
	OrderID     string          `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	CustomerID  string          `json:"customer_id"`
	Items       []ItemLine      `json:"items"`
	Total       decimal.Decimal `json:"total_amount"`
	Currency    string          `json:"currency"`
}

type OrderStatusChangedPayload struct {
	OrderID       string        `json:"order_id"`
	CustomerID    string        `json:"customer_id"`
	From          Status        `json:"from"`
	To            Status        `json:"to"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	ActorID       string        `json:"actor_id"`
	ActorRole     string        `json:"actor_role"`
	ChangedAt     time.Time     `json:"changed_at"`
}

type OrderReviewedPayload struct {
	OrderID       string          `json:"order_id"`
	CustomerID    string          `json:"customer_id"`
	ReviewRating  decimal.Decimal `json:"review_rating"`
	ServiceRating int             `json:"service_rating"`
}

// StatusView is the cached answer to "what state is this order in".
type StatusView struct {
	OrderID       string        `json:"order_id"`
	CustomerID    string        `json:"customer_id"`
	Status        Status        `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	Display       Display       `json:"display"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

// enqueue writes the event into the outbox inside the caller's transaction;
// the relay publishes it after commit.
func (s *Service) enqueue(ctx context.Context, q postgres.DBTX, orderID, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", eventType, err)
	}
	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    s.now().UTC(),
		Producer:      s.ServiceName,
		TraceID:       TraceIDFrom(ctx),
		CorrelationID: orderID,
		Payload:       body,
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode %s envelope: %w", eventType, err)
	}
	if _, err := q.Exec(ctx, `
		INSERT INTO outbox_events(id, aggregate_id, event_type, payload)
		VALUES ($1, $2, $3, $4)`,
		env.EventID, orderID, eventType, raw,
	); err != nil {
		return fmt.Errorf("enqueue %s: %w", eventType, err)
	}
	return nil
}

type traceKey struct{}

// WithTraceID tags events written under ctx with the request id.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

func TraceIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}
