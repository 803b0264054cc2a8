package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/textile-backoffice/roll-inventory/internal/application"
	"github.com/textile-backoffice/roll-inventory/internal/config"
	"github.com/textile-backoffice/roll-inventory/internal/infrastructure/memory"
	"github.com/textile-backoffice/roll-inventory/internal/infrastructure/redis"
	"github.com/textile-backoffice/roll-inventory/pkg/cloudevents"
	"github.com/textile-backoffice/roll-inventory/pkg/kafka"
	"github.com/textile-backoffice/roll-inventory/pkg/logging"
	"github.com/textile-backoffice/roll-inventory/pkg/metrics"
	"github.com/textile-backoffice/roll-inventory/pkg/outbox"
	"github.com/textile-backoffice/roll-inventory/pkg/tracing"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.New(logging.DefaultConfig(config.ServiceName)).WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	logConfig := logging.DefaultConfig(config.ServiceName)
	logConfig.Level = logging.ParseLevel(cfg.Log.Level)
	logConfig.Environment = cfg.Log.Environment
	logConfig.Version = cfg.Log.Version
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting roll-inventory API", "storage", cfg.Inventory.Storage)
	ctx := context.Background()

	tracerProvider, err := tracing.Initialize(ctx, cfg.Tracing)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Failed to shutdown tracer")
			}
		}()
		logger.Info("Tracing initialized", "enabled", cfg.Tracing.Enabled, "endpoint", cfg.Tracing.OTLPEndpoint)
	}

	m := metrics.New(metrics.DefaultConfig(config.ServiceName))
	eventFactory := cloudevents.NewEventFactory("/" + config.ServiceName)

	st, err := openStorage(ctx, cfg, eventFactory, m, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to open storage")
		os.Exit(1)
	}
	defer st.close(context.Background())

	var locker application.SequenceLocker = memory.NewKeyedLocker()
	if cfg.RedisEnabled() {
		redisClient, err := redis.NewClient(ctx, cfg.Redis)
		if err != nil {
			logger.WithError(err).Error("Failed to connect to Redis")
			os.Exit(1)
		}
		defer redisClient.Close()
		locker = redis.NewSequenceLocker(redisClient, cfg.Redis, logger)
		logger.Info("Sequence locks use Redis", "addr", cfg.Redis.Addr)
	}

	var publisher runningChecker
	if cfg.Outbox.Enabled {
		producer := kafka.NewInstrumentedProducer(kafka.NewProducer(cfg.Kafka), m, logger)
		defer producer.Close()

		relay := outbox.NewPublisher(st.outbox, producer, logger, m, &cfg.Outbox.PublisherConfig)
		if err := relay.Start(ctx); err != nil {
			logger.WithError(err).Error("Failed to start outbox publisher")
			os.Exit(1)
		}
		defer relay.Stop()
		publisher = relay
		logger.Info("Outbox publisher started", "brokers", cfg.Kafka.Brokers)
	}

	svc := &services{
		receipt:     application.NewReceiptService(st.rolls, st.batches, st.catalog, st.tx, locker, m, logger),
		allocation:  application.NewAllocationService(st.rolls, st.tx, m, logger),
		fulfillment: application.NewFulfillmentService(st.rolls, st.tx, locker, cfg.Inventory.MinUsableLength, m, logger),
		landedCost:  application.NewLandedCostService(st.rolls, st.costs, st.tx, m, logger),
		resolver:    application.NewResolverService(st.rolls, st.catalog, st.tx, m, logger),
		queries:     application.NewRollQueryService(st.rolls, logger),
	}

	gin.SetMode(cfg.Server.Mode)
	idem := newIdempotencyConfig(cfg.Idempotency, st.idempotency, m, logger)
	router := newRouter(svc, idem, m, logger, readinessCheck(ctx, st.ready, publisher))

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server error", "error", err)
		}
	}()
	logger.Info("Server started", "addr", cfg.Server.Addr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server stopped")
}

type runningChecker interface {
	IsRunning() bool
}

// readinessCheck fails while the store is unreachable or, when the outbox is
// on, after its publisher has stopped. publisher may be nil.
func readinessCheck(ctx context.Context, storeReady func(context.Context) error, publisher runningChecker) func() error {
	return func() error {
		readyCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := storeReady(readyCtx); err != nil {
			return err
		}
		if publisher != nil && !publisher.IsRunning() {
			return errors.New("outbox publisher is not running")
		}
		return nil
	}
}
