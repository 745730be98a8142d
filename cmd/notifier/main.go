package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fjod/go_store/internal/config"
	"github.com/fjod/go_store/internal/consumer"
	"github.com/fjod/go_store/internal/notifier"
	"github.com/fjod/go_store/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New("order-notifier", cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zl.Sync()

	if len(cfg.KafkaBrokers) == 0 {
		zl.Fatal("KAFKA_BROKERS is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reader := consumer.NewKafkaReader(cfg.KafkaTopic, cfg.KafkaGroupID, cfg.KafkaBrokers...)
	c := consumer.NewConsumer(reader, notifier.NewLogNotifier(zl), zl)
	defer c.Close()

	zl.Info("order notifier consuming",
		zap.Strings("brokers", cfg.KafkaBrokers),
		zap.String("topic", cfg.KafkaTopic),
		zap.String("group_id", cfg.KafkaGroupID))

	c.Run(ctx)
	zl.Info("order notifier stopped")
}
