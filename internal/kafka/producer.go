package kafka

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sony/gobreaker/v2"
)

var ErrBrokerUnavailable = errors.New("kafka: broker unavailable")

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes synchronously: Publish returns only after the brokers
// acknowledged the message, so the caller can mark its row as sent.
// Repeated failures open the breaker and Publish fails fast until it
// half-opens again.
type Producer struct {
	w  messageWriter
	cb *gobreaker.CircuitBreaker[struct{}]
}

func NewProducer(brokers []string, topic string) *Producer {
	return newProducer(&kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
	}, topic)
}

func newProducer(w messageWriter, name string) *Producer {
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "kafka:" + name,
		MaxRequests: 1,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Printf("circuit %s: %s -> %s", name, from, to)
		},
	})
	return &Producer{w: w, cb: cb}
}

func (p *Producer) Publish(ctx context.Context, key, value []byte, headers ...kafka.Header) error {
	_, err := p.cb.Execute(func() (struct{}, error) {
		return struct{}{}, p.w.WriteMessages(ctx, kafka.Message{
			Key:     key,
			Value:   value,
			Time:    time.Now(),
			Headers: headers,
		})
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrBrokerUnavailable, err)
	}
	return err
}

func (p *Producer) Close() error { return p.w.Close() }
