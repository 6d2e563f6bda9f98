package cart

import (
	"time"

	"github.com/ariefcatur/go-shop-orders/internal/inventory"
	"github.com/shopspring/decimal"
)

// Line is a cart entry joined with the product's current data. Prices here are
// live; only checkout freezes them.
type Line struct {
	ProductID string                  `json:"product_id"`
	Name      string                  `json:"name"`
	SKU       string                  `json:"sku"`
	UnitPrice decimal.Decimal         `json:"unit_price"`
	Quantity  int                     `json:"quantity"`
	Available int                     `json:"available"`
	Status    inventory.ProductStatus `json:"status"`
	LineTotal decimal.Decimal         `json:"line_total"`
	AddedAt   time.Time               `json:"added_at"`
}

// Totals counts units in ItemCount and distinct products in LineCount.
type Totals struct {
	ItemCount int             `json:"item_count"`
	LineCount int             `json:"line_count"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type Cart struct {
	OwnerID string `json:"owner_id"`
	Lines   []Line `json:"lines"`
	Totals  Totals `json:"totals"`
}

func newCart(ownerID string, lines []Line) *Cart {
	if lines == nil {
		lines = []Line{}
	}
	for i := range lines {
		lines[i].LineTotal = lines[i].UnitPrice.Mul(decimal.NewFromInt(int64(lines[i].Quantity)))
	}
	return &Cart{OwnerID: ownerID, Lines: lines, Totals: Summarize(lines)}
}

func Summarize(lines []Line) Totals {
	t := Totals{LineCount: len(lines), Subtotal: decimal.Zero}
	for _, l := range lines {
		t.ItemCount += l.Quantity
		t.Subtotal = t.Subtotal.Add(l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	t.Subtotal = t.Subtotal.Round(2)
	return t
}
