package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Order struct {
	ID            string        `json:"id"`
	OrderNumber   string        `json:"order_number"`
	CustomerID    string        `json:"customer_id"`
	Status        Status        `json:"status"`
	PaymentStatus PaymentStatus `json:"payment_status"`

	Totals

	Currency          string              `json:"currency"`
	ShippingMethod    string              `json:"shipping_method"`
	ShippingAddressID *string             `json:"shipping_address_id,omitempty"`
	BillingAddressID  *string             `json:"billing_address_id,omitempty"`
	TrackingNumber    string              `json:"tracking_number,omitempty"`
	Carrier           string              `json:"carrier,omitempty"`
	EstimatedDelivery *time.Time          `json:"estimated_delivery,omitempty"`
	CustomerNote      string              `json:"customer_note,omitempty"`
	IsReviewed        bool                `json:"is_reviewed"`
	ReviewRating      decimal.NullDecimal `json:"review_rating"`
	ReviewComment     string              `json:"review_comment,omitempty"`
	ServiceRating     *int                `json:"service_rating,omitempty"`
	ServiceComment    string              `json:"service_comment,omitempty"`
	ShippedAt         *time.Time          `json:"shipped_at,omitempty"`
	DeliveredAt       *time.Time          `json:"delivered_at,omitempty"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`

	Items   []OrderItem   `json:"items,omitempty"`
	History []StatusEntry `json:"history,omitempty"`
}

func (o *Order) Display() Display { return DisplayFor(o.Status) }

// Reviewable is true once, after delivery.
func (o *Order) Reviewable() bool {
	return o.Status == StatusDelivered && !o.IsReviewed
}

// OrderItem freezes name, sku and price at purchase time.
type OrderItem struct {
	ID              string          `json:"id"`
	OrderID         string          `json:"order_id"`
	ProductID       string          `json:"product_id"`
	ProductName     string          `json:"product_name"`
	ProductSKU      string          `json:"product_sku"`
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"price_at_purchase"`
	Rating          *int            `json:"rating,omitempty"`
	ReviewComment   string          `json:"review_comment,omitempty"`
}

func (i OrderItem) LineTotal() decimal.Decimal {
	return i.PriceAtPurchase.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

type StatusEntry struct {
	ID        int64     `json:"id"`
	Status    Status    `json:"status"`
	ActorID   string    `json:"actor_id"`
	ActorRole string    `json:"actor_role"`
	Notes     string    `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// LineInput is one requested line of an ad-hoc order.
type LineInput struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}
