package inventory

import (
	"context"

	"github.com/ariefcatur/go-shop-orders/internal/principal"
)

// Service is the principal-aware entry point the HTTP layer uses.
type Service struct {
	Ledger  *Ledger
	Catalog *CachedCatalog
}

func (s *Service) Get(ctx context.Context, productID string) (Product, error) {
	return s.Catalog.Get(ctx, productID)
}

func (s *Service) List(ctx context.Context, merchantID string) ([]Product, error) {
	return s.Catalog.List(ctx, merchantID)
}

// Adjust applies a stock correction. Admins may touch any product,
// merchants only their own.
func (s *Service) Adjust(ctx context.Context, p principal.Principal, productID string, adj Adjustment) (int, error) {
	adj.ActorID = p.ID

	var (
		qty int
		err error
	)
	switch p.Role {
	case principal.RoleAdmin:
		qty, err = s.Ledger.Adjust(ctx, productID, adj)
	case principal.RoleMerchant:
		qty, err = s.Ledger.AdjustOwned(ctx, productID, p.ID, adj)
	default:
		return 0, principal.ErrForbidden
	}
	if err != nil {
		return 0, err
	}
	s.Catalog.Invalidate(ctx, productID)
	return qty, nil
}

func (s *Service) Movements(ctx context.Context, p principal.Principal, productID string, limit int) ([]Movement, error) {
	switch p.Role {
	case principal.RoleAdmin:
	case principal.RoleMerchant:
		prod, err := s.Catalog.Store.Get(ctx, productID)
		if err != nil {
			return nil, err
		}
		if prod.MerchantID != p.ID {
			return nil, ErrProductNotFound
		}
	default:
		return nil, principal.ErrForbidden
	}
	return s.Ledger.Movements(ctx, productID, limit)
}
