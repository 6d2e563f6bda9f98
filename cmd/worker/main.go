package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-shop-orders/internal/config"
	kafkax "github.com/ariefcatur/go-shop-orders/internal/kafka"
	"github.com/ariefcatur/go-shop-orders/internal/projection"
	"github.com/ariefcatur/go-shop-orders/internal/redisx"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis
	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	projector := &projection.StatusProjector{Redis: rdb, Name: cfg.WorkerGroup}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.WorkerGroup, cfg.EventsTopic, cfg.WorkerCount)

	done := make(chan struct{})
	go func() {
		defer close(done)
		log.Printf("status projector started: group=%s topic=%s workers=%d", cfg.WorkerGroup, cfg.EventsTopic, cfg.WorkerCount)
		if err := cons.Start(ctx, projector.Handle); err != nil {
			log.Printf("consumer exit: %v", err)
			cancel()
		}
	}()

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Println("shutting down consumer...")
	cancel()
	<-done
}
