package orders

import (
	"context"
	"fmt"
	"log"

	"github.com/ariefcatur/go-shop-orders/internal/postgres"
	"github.com/ariefcatur/go-shop-orders/internal/principal"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

type ItemReview struct {
	OrderItemID string
	Rating      int // 0 skips the item
	Comment     string
}

type ReviewInput struct {
	Items          []ItemReview
	ServiceRating  int
	ServiceComment string
	Comment        string
}

// validateReview returns the rated items and their mean rounded to cents.
func validateReview(in ReviewInput, items []OrderItem) ([]ItemReview, decimal.Decimal, error) {
	belongs := make(map[string]bool, len(items))
	for _, it := range items {
		belongs[it.ID] = true
	}

	seen := make(map[string]bool, len(in.Items))
	var rated []ItemReview
	sum := 0
	for _, r := range in.Items {
		if !belongs[r.OrderItemID] {
			return nil, decimal.Zero, invalidReview("item %s is not part of this order", r.OrderItemID)
		}
		if seen[r.OrderItemID] {
			return nil, decimal.Zero, invalidReview("item %s rated twice", r.OrderItemID)
		}
		seen[r.OrderItemID] = true
		if r.Rating == 0 {
			continue
		}
		if r.Rating < 1 || r.Rating > 5 {
			return nil, decimal.Zero, invalidReview("rating %d out of range 1-5", r.Rating)
		}
		rated = append(rated, r)
		sum += r.Rating
	}
	if len(rated) == 0 {
		return nil, decimal.Zero, invalidReview("at least one item rating is required")
	}
	if in.ServiceRating < 1 || in.ServiceRating > 5 {
		return nil, decimal.Zero, invalidReview("service rating %d out of range 1-5", in.ServiceRating)
	}

	mean := decimal.NewFromInt(int64(sum)).Div(decimal.NewFromInt(int64(len(rated)))).Round(2)
	return rated, mean, nil
}

// SubmitReview records the owner's one review of a delivered order. Each
// product counts once per customer toward its average rating, however many
// orders the customer reviews it in.
func (s *Service) SubmitReview(ctx context.Context, p principal.Principal, orderID string, in ReviewInput) (*Order, error) {
	var touched []string
	err := postgres.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		touched = nil
		o, err := loadOrder(ctx, tx, orderID, true)
		if err != nil {
			return err
		}
		rel, err := s.relation(ctx, tx, p, o)
		if err != nil {
			return err
		}
		switch rel {
		case relOwner:
		case relNone:
			return ErrOrderNotFound
		default:
			return principal.ErrForbidden
		}
		if o.IsReviewed {
			return ErrAlreadyReviewed
		}
		if o.Status != StatusDelivered {
			return ErrNotReviewable
		}

		items, err := loadItems(ctx, tx, o.ID)
		if err != nil {
			return err
		}
		rated, mean, err := validateReview(in, items)
		if err != nil {
			return err
		}

		productOf := make(map[string]string, len(items))
		for _, it := range items {
			productOf[it.ID] = it.ProductID
		}
		for _, r := range rated {
			productID := productOf[r.OrderItemID]
			if _, err := tx.Exec(ctx,
				`UPDATE order_items SET rating=$3, review_comment=$4 WHERE id=$1 AND order_id=$2`,
				r.OrderItemID, o.ID, r.Rating, r.Comment,
			); err != nil {
				return fmt.Errorf("rate item: %w", err)
			}

			ct, err := tx.Exec(ctx, `
				INSERT INTO reviews(id, product_id, customer_id, order_id, rating, comment)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (product_id, customer_id) DO NOTHING`,
				uuid.NewString(), productID, o.CustomerID, o.ID, r.Rating, r.Comment)
			if err != nil {
				return fmt.Errorf("insert review: %w", err)
			}
			if ct.RowsAffected() == 0 {
				continue
			}
			if _, err := tx.Exec(ctx, `
				UPDATE products SET rating_sum = rating_sum + $2, rating_count = rating_count + 1, updated_at = NOW()
				WHERE id=$1`, productID, r.Rating,
			); err != nil {
				return fmt.Errorf("aggregate rating: %w", err)
			}
			touched = append(touched, productID)
		}

		if _, err := tx.Exec(ctx, `
			UPDATE orders SET is_reviewed=TRUE, review_rating=$2, review_comment=$3,
				service_rating=$4, service_comment=$5, updated_at=$6
			WHERE id=$1`,
			o.ID, mean, in.Comment, in.ServiceRating, in.ServiceComment, s.now(),
		); err != nil {
			return fmt.Errorf("mark reviewed: %w", err)
		}
		return s.enqueue(ctx, tx, o.ID, EventOrderReviewed, OrderReviewedPayload{
			OrderID:       o.ID,
			CustomerID:    o.CustomerID,
			ReviewRating:  mean,
			ServiceRating: in.ServiceRating,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("order %s reviewed by %s", orderID, p.ID)
	s.invalidateProducts(ctx, touched)
	return loadFull(ctx, s.DB, orderID)
}
