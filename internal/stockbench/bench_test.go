package stockbench

import (
	"context"
	"testing"
	"time"

	"github.com/ariefcatur/go-shop-orders/internal/inventory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_MemoryLedgerKeepsIntegrity(t *testing.T) {
	ledger := inventory.NewMemoryLedger(map[string]int{"a": 50, "b": 5})

	res, err := Run(context.Background(), ledger, Config{
		ProductIDs:   []string{"a", "b"},
		Concurrency:  16,
		Duration:     200 * time.Millisecond,
		MaxQuantity:  3,
		ReleaseRatio: 0.3,
	})
	require.NoError(t, err)

	assert.True(t, res.DataIntegrity, res.String())
	assert.Zero(t, res.Errors)
	assert.Positive(t, res.Operations)
	assert.Positive(t, res.Rejected, "stock runs out, so some reservations must be refused")

	for _, id := range []string{"a", "b"} {
		n, err := ledger.Available(context.Background(), id)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 0)
	}
}

func TestRun_NoProducts(t *testing.T) {
	_, err := Run(context.Background(), inventory.NewMemoryLedger(nil), Config{})
	assert.Error(t, err)
}
