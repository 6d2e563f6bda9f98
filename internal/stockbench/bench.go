// Package stockbench hammers a stock ledger with concurrent reservations and
// checks that it never oversells.
package stockbench

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/ariefcatur/go-shop-orders/internal/inventory"
)

type Config struct {
	ProductIDs  []string
	Concurrency int
	Duration    time.Duration
	MaxQuantity int
	// ReleaseRatio is the share of successful reservations that are given
	// back right away, as a cancellation would.
	ReleaseRatio float64
}

type Result struct {
	Operations     int64
	Rejected       int64
	Errors         int64
	Reserved       int64
	Released       int64
	Throughput     float64
	AverageLatency time.Duration
	P95Latency     time.Duration
	P99Latency     time.Duration
	TotalTime      time.Duration
	DataIntegrity  bool
}

func (r Result) String() string {
	return fmt.Sprintf("ops=%d rejected=%d errors=%d reserved=%d released=%d throughput=%.1f/s avg=%s p95=%s p99=%s integrity=%t",
		r.Operations, r.Rejected, r.Errors, r.Reserved, r.Released, r.Throughput,
		r.AverageLatency, r.P95Latency, r.P99Latency, r.DataIntegrity)
}

// Run drives the ledger for cfg.Duration and then verifies, for every
// product, that initial - reserved + released equals what is left.
func Run(ctx context.Context, ledger inventory.StockLedger, cfg Config) (*Result, error) {
	if len(cfg.ProductIDs) == 0 {
		return nil, errors.New("stockbench: no products")
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.MaxQuantity <= 0 {
		cfg.MaxQuantity = 1
	}

	initial := make(map[string]int, len(cfg.ProductIDs))
	for _, id := range cfg.ProductIDs {
		n, err := ledger.Available(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("stockbench: read %s: %w", id, err)
		}
		initial[id] = n
	}

	var (
		mu       sync.Mutex
		hist     = hdrhistogram.New(1, 10_000_000, 3) // microseconds
		netTaken = make(map[string]int64, len(cfg.ProductIDs))
		res      Result
		ops      atomic.Int64
		rejected atomic.Int64
		failed   atomic.Int64
		reserved atomic.Int64
		released atomic.Int64
	)

	runCtx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()
	start := time.Now()

	var wg sync.WaitGroup
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for runCtx.Err() == nil {
				id := cfg.ProductIDs[rand.IntN(len(cfg.ProductIDs))]
				qty := 1 + rand.IntN(cfg.MaxQuantity)

				t0 := time.Now()
				err := ledger.Reserve(runCtx, id, qty)
				elapsed := time.Since(t0)
				switch {
				case err == nil:
				case errors.Is(err, inventory.ErrInsufficientStock):
					rejected.Add(1)
					ops.Add(1)
					continue
				case runCtx.Err() != nil:
					return
				default:
					failed.Add(1)
					continue
				}

				ops.Add(1)
				reserved.Add(int64(qty))
				mu.Lock()
				_ = hist.RecordValue(elapsed.Microseconds())
				netTaken[id] += int64(qty)
				mu.Unlock()

				if rand.Float64() < cfg.ReleaseRatio {
					// release on the parent ctx so a deadline never strands units
					if err := ledger.Release(ctx, id, qty); err != nil {
						failed.Add(1)
						continue
					}
					released.Add(int64(qty))
					mu.Lock()
					netTaken[id] -= int64(qty)
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	res.TotalTime = time.Since(start)
	res.Operations = ops.Load()
	res.Rejected = rejected.Load()
	res.Errors = failed.Load()
	res.Reserved = reserved.Load()
	res.Released = released.Load()
	if secs := res.TotalTime.Seconds(); secs > 0 {
		res.Throughput = float64(res.Operations) / secs
	}
	res.AverageLatency = time.Duration(hist.Mean()) * time.Microsecond
	res.P95Latency = time.Duration(hist.ValueAtQuantile(95)) * time.Microsecond
	res.P99Latency = time.Duration(hist.ValueAtQuantile(99)) * time.Microsecond

	res.DataIntegrity = true
	for _, id := range cfg.ProductIDs {
		left, err := ledger.Available(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("stockbench: verify %s: %w", id, err)
		}
		if left < 0 || int64(initial[id])-netTaken[id] != int64(left) {
			res.DataIntegrity = false
		}
	}
	return &res, nil
}
