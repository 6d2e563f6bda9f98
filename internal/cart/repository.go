package cart

import (
	"context"
	"errors"
)

var ErrItemNotFound = errors.New("item not in cart")

type Repository interface {
	// Add merges qty into the owner's line and returns the merged quantity.
	Add(ctx context.Context, ownerID, productID string, qty int) (int, error)
	SetQuantity(ctx context.Context, ownerID, productID string, qty int) error
	Remove(ctx context.Context, ownerID, productID string) error
	Clear(ctx context.Context, ownerID string) error
	Lines(ctx context.Context, ownerID string) ([]Line, error)
}

// Cache entries are stamped with the owner's write generation. Get treats an
// entry from an older generation as a miss.
type Cache interface {
	Get(ctx context.Context, ownerID string) (*Cart, error)
	Generation(ctx context.Context, ownerID string) (int64, error)
	Set(ctx context.Context, c *Cart, gen int64) error
	// Delete bumps the generation and drops the entry.
	Delete(ctx context.Context, ownerID string) error
}
