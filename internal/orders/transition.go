package orders

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/ariefcatur/go-shop-orders/internal/inventory"
	"github.com/ariefcatur/go-shop-orders/internal/postgres"
	"github.com/ariefcatur/go-shop-orders/internal/principal"
	"github.com/jackc/pgx/v5"
)

type TransitionInput struct {
	Notes             string
	TrackingNumber    string
	Carrier           string
	EstimatedDelivery *time.Time
}

// Transition moves an order to status to. The edge, the actor and the extra
// input are checked before anything is written; then the status, its side
// effects, one history row and one event are written in one transaction.
func (s *Service) Transition(ctx context.Context, p principal.Principal, orderID string, to Status, in TransitionInput) (*Order, error) {
	var (
		from     Status
		released []string
	)
	err := postgres.WithTx(ctx, s.DB, func(tx pgx.Tx) error {
		released = nil
		o, err := loadOrder(ctx, tx, orderID, true)
		if err != nil {
			return err
		}
		rel, err := s.relation(ctx, tx, p, o)
		if err != nil {
			return err
		}
		if rel == relNone {
			return ErrOrderNotFound
		}
		if !CanTransition(o.Status, to) {
			return &InvalidTransitionError{From: o.Status, To: to}
		}
		if !actorAllowed(to, rel) {
			return principal.ErrForbidden
		}

		from = o.Status
		now := s.now()
		switch to {
		case StatusConfirmed:
			// payment is simulated: confirming marks it paid
			o.PaymentStatus = PaymentPaid
		case StatusShipped:
			tracking := strings.TrimSpace(in.TrackingNumber)
			carrier := strings.TrimSpace(in.Carrier)
			if tracking == "" || carrier == "" {
				return ErrMissingTracking
			}
			o.TrackingNumber, o.Carrier = tracking, carrier
			o.EstimatedDelivery = in.EstimatedDelivery
			o.ShippedAt = &now
		case StatusDelivered:
			o.DeliveredAt = &now
		case StatusCancelled:
			items, err := loadItems(ctx, tx, o.ID)
			if err != nil {
				return err
			}
			ref := inventory.Reference{OrderID: o.ID, ActorID: p.ID, Reason: "order cancelled"}
			for _, it := range items {
				if err := s.Ledger.ReleaseTx(ctx, tx, it.ProductID, it.Quantity, ref); err != nil {
					return err
				}
				released = append(released, it.ProductID)
			}
			if o.PaymentStatus == PaymentPaid {
				o.PaymentStatus = PaymentRefunded
			}
		case StatusRefunded:
			o.PaymentStatus = PaymentRefunded
		}
		o.Status = to

		if _, err := tx.Exec(ctx, `
			UPDATE orders SET status=$2, payment_status=$3, tracking_number=$4, carrier=$5,
				estimated_delivery=$6, shipped_at=$7, delivered_at=$8, updated_at=$9
			WHERE id=$1`,
			o.ID, string(o.Status), string(o.PaymentStatus), o.TrackingNumber, o.Carrier,
			o.EstimatedDelivery, o.ShippedAt, o.DeliveredAt, now,
		); err != nil {
			return fmt.Errorf("update order status: %w", err)
		}
		if err := appendHistory(ctx, tx, o.ID, to, p.ID, string(p.Role), in.Notes); err != nil {
			return err
		}
		return s.enqueue(ctx, tx, o.ID, EventOrderStatusChanged, OrderStatusChangedPayload{
			OrderID:       o.ID,
			CustomerID:    o.CustomerID,
			From:          from,
			To:            to,
			PaymentStatus: o.PaymentStatus,
			ActorID:       p.ID,
			ActorRole:     string(p.Role),
			ChangedAt:     now.UTC(),
		})
	})
	if err != nil {
		return nil, err
	}

	log.Printf("order %s: %s -> %s by %s:%s", orderID, from, to, p.Role, p.ID)
	s.dropStatus(ctx, orderID)
	s.invalidateProducts(ctx, released)
	return loadFull(ctx, s.DB, orderID)
}

// Confirm records the (simulated) payment and confirms the order.
func (s *Service) Confirm(ctx context.Context, p principal.Principal, orderID, paymentMethod string) (*Order, error) {
	notes := "payment received"
	if paymentMethod != "" {
		notes += " via " + paymentMethod
	}
	return s.Transition(ctx, p, orderID, StatusConfirmed, TransitionInput{Notes: notes})
}

func (s *Service) StartProcessing(ctx context.Context, p principal.Principal, orderID, notes string) (*Order, error) {
	return s.Transition(ctx, p, orderID, StatusProcessing, TransitionInput{Notes: notes})
}

func (s *Service) Ship(ctx context.Context, p principal.Principal, orderID string, in TransitionInput) (*Order, error) {
	if in.Notes == "" {
		in.Notes = fmt.Sprintf("shipped with %s, tracking %s", in.Carrier, in.TrackingNumber)
	}
	return s.Transition(ctx, p, orderID, StatusShipped, in)
}

func (s *Service) Deliver(ctx context.Context, p principal.Principal, orderID string) (*Order, error) {
	return s.Transition(ctx, p, orderID, StatusDelivered, TransitionInput{Notes: "delivery confirmed"})
}

// Cancel returns every item's stock to the ledger.
func (s *Service) Cancel(ctx context.Context, p principal.Principal, orderID, reason string) (*Order, error) {
	if reason == "" {
		reason = "cancelled"
	}
	return s.Transition(ctx, p, orderID, StatusCancelled, TransitionInput{Notes: reason})
}

func (s *Service) Refund(ctx context.Context, p principal.Principal, orderID, reason string) (*Order, error) {
	return s.Transition(ctx, p, orderID, StatusRefunded, TransitionInput{Notes: reason})
}

func (s *Service) relation(ctx context.Context, q postgres.DBTX, p principal.Principal, o *Order) (relation, error) {
	owns := false
	if p.Role == principal.RoleMerchant {
		var err error
		if owns, err = merchantOwnsItem(ctx, q, o.ID, p.ID); err != nil {
			return relNone, err
		}
	}
	return relationOf(p, o.CustomerID, owns), nil
}
