package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fjod/go_store/internal/cache"
	"github.com/fjod/go_store/internal/config"
	h "github.com/fjod/go_store/internal/http"
	"github.com/fjod/go_store/internal/publisher"
	"github.com/fjod/go_store/internal/repository"
	"github.com/fjod/go_store/internal/service"
	"github.com/fjod/go_store/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New("store-api", cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zl.Sync()
	zap.ReplaceGlobals(zl)
	// upstream traceparent headers become the trace_id in request logs
	otel.SetTextMapPropagator(propagation.TraceContext{})

	if err := run(cfg, zl); err != nil {
		zl.Fatal("store-api stopped with error", zap.Error(err))
	}
	zl.Info("store-api stopped")
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.RunMigrations(cfg.MigrationsPath); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	zl.Info("database ready", zap.String("driver", store.Driver()))

	var cartCache service.CartCache
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			// cache failures fall back to the store
			zl.Warn("redis ping failed, cart cache degraded", zap.Error(err))
		}
		cartCache = cache.NewRedisCache(redisClient, cfg.CartCacheTTL, zl)
	} else {
		zl.Info("REDIS_ADDR not set, cart cache disabled")
	}

	carts := service.NewCartService(store, cartCache, zl)
	orders := service.NewOrderService(store, cartCache, zl)

	router := h.NewRouter(h.Handlers{
		Cart:   h.NewCartHandler(carts, cfg.RequestTimeout, zl),
		Orders: h.NewOrdersHandler(orders, cfg.RequestTimeout, zl),
		Admin:  h.NewAdminHandler(orders, cfg.RequestTimeout, zl),
	}, cfg.RequestTimeout, zl)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zl.Info("store-api listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	if len(cfg.KafkaBrokers) > 0 {
		poller := publisher.NewOutboxPoller(store,
			publisher.NewKafkaWriter(cfg.KafkaTopic, cfg.KafkaBrokers...),
			cfg.OutboxPollInterval, zl)
		g.Go(func() error {
			zl.Info("outbox poller started", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
			poller.Run(gctx)
			return poller.Close()
		})
	} else {
		zl.Info("KAFKA_BROKERS not set, order events stay in the outbox")
	}

	g.Go(func() error {
		<-gctx.Done()
		zl.Info("shutting down store-api")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openStore(cfg *config.Config) (*repository.Repository, error) {
	switch cfg.DBDriver {
	case repository.DriverPostgres:
		return repository.NewRepository(&cfg.DB)
	default:
		return repository.NewSQLiteRepository(cfg.SQLitePath)
	}
}
