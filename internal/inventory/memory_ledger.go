package inventory

import (
	"context"
	"sync"
)

// MemoryLedger keeps stock in process memory. It backs the load tool and
// unit tests; the API always runs on Ledger.
type MemoryLedger struct {
	mu    sync.Mutex
	stock map[string]int
}

var _ StockLedger = (*MemoryLedger)(nil)

func NewMemoryLedger(initial map[string]int) *MemoryLedger {
	m := &MemoryLedger{stock: make(map[string]int, len(initial))}
	for id, qty := range initial {
		m.stock[id] = qty
	}
	return m
}

func (m *MemoryLedger) Reserve(_ context.Context, productID string, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	available, ok := m.stock[productID]
	if !ok {
		return ErrProductNotFound
	}
	if available < qty {
		return &InsufficientStockError{ProductID: productID, Requested: qty, Available: available}
	}
	m.stock[productID] = available - qty
	return nil
}

// ReserveAll takes every line or none.
func (m *MemoryLedger) ReserveAll(_ context.Context, lines map[string]int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// first pass checks, second pass mutates
	for id, qty := range lines {
		if qty <= 0 {
			return ErrInvalidQuantity
		}
		available, ok := m.stock[id]
		if !ok {
			return ErrProductNotFound
		}
		if available < qty {
			return &InsufficientStockError{ProductID: id, Requested: qty, Available: available}
		}
	}
	for id, qty := range lines {
		m.stock[id] -= qty
	}
	return nil
}

func (m *MemoryLedger) Release(_ context.Context, productID string, qty int) error {
	if qty <= 0 {
		return ErrInvalidQuantity
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.stock[productID]; !ok {
		return ErrProductNotFound
	}
	m.stock[productID] += qty
	return nil
}

func (m *MemoryLedger) Adjust(_ context.Context, productID string, adj Adjustment) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.stock[productID]
	if !ok {
		return 0, ErrProductNotFound
	}
	next, err := adj.Apply(current)
	if err != nil {
		return 0, err
	}
	m.stock[productID] = next
	return next, nil
}

func (m *MemoryLedger) Available(_ context.Context, productID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.stock[productID]
	if !ok {
		return 0, ErrProductNotFound
	}
	return n, nil
}
