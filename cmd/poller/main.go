package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/Africahassucceed/celebsbridgenew/internal/config"
	"github.com/Africahassucceed/celebsbridgenew/internal/logger"
	"github.com/Africahassucceed/celebsbridgenew/internal/notify"
	"github.com/Africahassucceed/celebsbridgenew/internal/repo"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/segmentio/kafka-go"
)

func main() {
	cfgPath := flag.String("config", "internal/config/config.yaml", "path to the YAML config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	log, err := logger.NewLogger(cfg.Log.Level)
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), repo.GormConfig())
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}

	kw := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Topic:    cfg.Kafka.Topic,
		Balancer: &kafka.Hash{},
	}
	defer kw.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	relay := notify.NewRelay(repo.NewRepository(gdb, log), kw, cfg.Poller.BatchSize, log)
	log.Infow("shoutout-poller started", "topic", cfg.Kafka.Topic, "interval", cfg.Poller.Interval)
	if err := relay.Run(ctx, cfg.Poller.Interval); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("relay: %v", err)
	}
	log.Info("shoutout-poller stopped")
}
