package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-shop-orders/internal/config"
	kafkax "github.com/ariefcatur/go-shop-orders/internal/kafka"
	"github.com/ariefcatur/go-shop-orders/internal/outbox"
	"github.com/ariefcatur/go-shop-orders/internal/postgres"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	prod := kafkax.NewProducer(cfg.KafkaBrokers, cfg.EventsTopic)
	defer func() {
		if err := prod.Close(); err != nil {
			log.Printf("producer close: %v", err)
		}
	}()

	relay := &outbox.Relay{
		DB:        db,
		Publisher: prod,
		Interval:  cfg.RelayInterval,
		Batch:     cfg.RelayBatch,
	}
	log.Printf("outbox relay started: topic=%s interval=%s batch=%d", cfg.EventsTopic, cfg.RelayInterval, cfg.RelayBatch)
	if err := relay.Run(ctx); err != nil {
		log.Printf("relay exit: %v", err)
	}
	log.Println("outbox relay stopped")
}
