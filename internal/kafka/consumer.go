package kafka

import (
	"context"
	"hash/fnv"
	"log"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
)

// Handler returns nil only when the message is done with and its offset may
// be committed. A non-nil error leaves the offset where it is.
type Handler func(ctx context.Context, m kafka.Message) error

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	r       messageReader
	workers int
	retries int
	backoff time.Duration
}

func NewConsumer(brokers []string, group, topic string, workers int) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	return newConsumer(r, workers)
}

func newConsumer(r messageReader, workers int) *Consumer {
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, workers: workers, retries: 3, backoff: 200 * time.Millisecond}
}

// Start fetches until ctx is done. Messages are routed to a worker by key so
// events of one order are handled in the order they were published.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()

	jobs := make([]chan kafka.Message, c.workers)
	var wg sync.WaitGroup
	for i := range jobs {
		jobs[i] = make(chan kafka.Message, 64)
		wg.Add(1)
		go func(in <-chan kafka.Message) {
			defer wg.Done()
			for m := range in {
				c.handle(ctx, h, m)
			}
		}(jobs[i])
	}
	stop := func() {
		for _, ch := range jobs {
			close(ch)
		}
		wg.Wait()
	}

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			stop()
			// quiet on shutdown
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		select {
		case jobs[c.slot(m.Key)] <- m:
		case <-ctx.Done():
			stop()
			return nil
		}
	}
}

func (c *Consumer) slot(key []byte) int {
	if len(key) == 0 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write(key)
	return int(h.Sum32() % uint32(c.workers))
}

func (c *Consumer) handle(ctx context.Context, h Handler, m kafka.Message) {
	var err error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if err = h(ctx, m); err == nil {
			break
		}
		log.Printf("handle %s/%d@%d attempt %d: %v", m.Topic, m.Partition, m.Offset, attempt+1, err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(c.backoff * time.Duration(attempt+1)):
		}
	}
	if err != nil {
		// skip it; status reads fall back to the database on a cache miss
		log.Printf("giving up on %s/%d@%d: %v", m.Topic, m.Partition, m.Offset, err)
	}
	if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
		log.Printf("commit %s/%d@%d: %v", m.Topic, m.Partition, m.Offset, err)
	}
}
