package cart

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/ariefcatur/go-shop-orders/internal/inventory"
	"github.com/ariefcatur/go-shop-orders/internal/redisx"
	"golang.org/x/sync/singleflight"
)

type Service struct {
	repo  Repository
	cache Cache
	sfg   singleflight.Group
}

func NewService(repo Repository, cache Cache) *Service {
	return &Service{repo: repo, cache: cache}
}

// View is a pure read: it never touches stock.
func (s *Service) View(ctx context.Context, ownerID string) (*Cart, error) {
	v, err, _ := s.sfg.Do(ownerID, func() (interface{}, error) {
		c, err := s.cache.Get(ctx, ownerID)
		if err == nil {
			return c, nil
		}
		if !errors.Is(err, redisx.ErrCacheMiss) {
			log.Printf("cart cache get %s: %v", ownerID, err)
		}

		// Read the generation before the rows: a write that commits in
		// between bumps it, and the snapshot below is then never served.
		gen, genErr := s.cache.Generation(ctx, ownerID)
		lines, err := s.repo.Lines(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		c = newCart(ownerID, lines)
		if genErr != nil {
			log.Printf("cart cache generation %s: %v", ownerID, genErr)
			return c, nil
		}
		if err := s.cache.Set(ctx, c, gen); err != nil {
			log.Printf("cart cache set %s: %v", ownerID, err)
		}
		return c, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Cart), nil
}

func (s *Service) Totals(ctx context.Context, ownerID string) (Totals, error) {
	c, err := s.View(ctx, ownerID)
	if err != nil {
		return Totals{}, err
	}
	return c.Totals, nil
}

func (s *Service) Add(ctx context.Context, ownerID, productID string, qty int) (int, error) {
	if qty < 1 {
		return 0, inventory.ErrInvalidQuantity
	}
	merged, err := s.repo.Add(ctx, ownerID, productID, qty)
	if err != nil {
		return 0, err
	}
	s.Invalidate(ctx, ownerID)
	return merged, nil
}

// Update sets a line's quantity. Zero or less removes the line.
func (s *Service) Update(ctx context.Context, ownerID, productID string, qty int) error {
	if err := s.repo.SetQuantity(ctx, ownerID, productID, qty); err != nil {
		return err
	}
	s.Invalidate(ctx, ownerID)
	return nil
}

func (s *Service) Remove(ctx context.Context, ownerID, productID string) error {
	if err := s.repo.Remove(ctx, ownerID, productID); err != nil {
		return err
	}
	s.Invalidate(ctx, ownerID)
	return nil
}

func (s *Service) Clear(ctx context.Context, ownerID string) error {
	if err := s.repo.Clear(ctx, ownerID); err != nil {
		return err
	}
	s.Invalidate(ctx, ownerID)
	return nil
}

// Invalidate drops the cached cart. Checkout calls it after emptying the cart
// in its own transaction.
func (s *Service) Invalidate(ctx context.Context, ownerID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, ownerID); err != nil {
		log.Printf("cart cache invalidate %s: %v", ownerID, err)
	}
}
