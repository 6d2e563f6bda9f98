package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

type ProductStatus string

const (
	ProductDraft    ProductStatus = "draft"
	ProductActive   ProductStatus = "active"
	ProductInactive ProductStatus = "inactive"
)

// LowStockThreshold is where the stock band flips from sufficient to low.
const LowStockThreshold = 10

type Product struct {
	ID            string          `json:"id"`
	MerchantID    string          `json:"merchant_id"`
	SKU           string          `json:"sku"`
	Name          string          `json:"name"`
	Price         decimal.Decimal `json:"price"`
	Currency      string          `json:"currency"`
	StockQuantity int             `json:"stock_quantity"`
	Status        ProductStatus   `json:"status"`
	RatingSum     int             `json:"rating_sum"`
	RatingCount   int             `json:"rating_count"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (p Product) Purchasable() bool { return p.Status == ProductActive }

// AverageRating is 0 for a product nobody reviewed.
func (p Product) AverageRating() decimal.Decimal {
	if p.RatingCount == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(p.RatingSum)).
		Div(decimal.NewFromInt(int64(p.RatingCount))).
		Round(2)
}

type StockBand string

const (
	StockOut        StockBand = "out_of_stock"
	StockLow        StockBand = "low"
	StockSufficient StockBand = "sufficient"
)

func BandFor(qty int) StockBand {
	switch {
	case qty <= 0:
		return StockOut
	case qty < LowStockThreshold:
		return StockLow
	default:
		return StockSufficient
	}
}

// Snapshot is what a reservation hands back: the product as it was at the
// moment its stock was taken.
type Snapshot struct {
	ProductID  string
	MerchantID string
	Name       string
	SKU        string
	Price      decimal.Decimal
	Currency   string
	Status     ProductStatus
	Remaining  int
}

type AdjustMode string

const (
	AdjustSet      AdjustMode = "set"
	AdjustAdd      AdjustMode = "add"
	AdjustSubtract AdjustMode = "subtract"
)

type Adjustment struct {
	Mode     AdjustMode
	Quantity int
	Reason   string
	ActorID  string
}

// Apply computes the new level without touching storage.
func (a Adjustment) Apply(current int) (int, error) {
	if a.Quantity < 0 {
		return 0, ErrInvalidQuantity
	}
	var next int
	switch a.Mode {
	case AdjustSet:
		next = a.Quantity
	case AdjustAdd:
		next = current + a.Quantity
	case AdjustSubtract:
		next = current - a.Quantity
	default:
		return 0, ErrInvalidAdjustment
	}
	if next < 0 {
		return 0, ErrNegativeStock
	}
	return next, nil
}

type MovementKind string

const (
	MovementReserve MovementKind = "reserve"
	MovementRelease MovementKind = "release"
	MovementAdjust  MovementKind = "adjust"
)
