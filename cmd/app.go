package main

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/akylbek/payment-system/hutko-gateway/internal/callback"
	"github.com/akylbek/payment-system/hutko-gateway/internal/config"
	"github.com/akylbek/payment-system/hutko-gateway/internal/events"
	"github.com/akylbek/payment-system/hutko-gateway/internal/failures"
	"github.com/akylbek/payment-system/hutko-gateway/internal/gateway"
	"github.com/akylbek/payment-system/hutko-gateway/internal/hutkoapi"
	"github.com/akylbek/payment-system/hutko-gateway/internal/interfaces"
	"github.com/akylbek/payment-system/hutko-gateway/internal/lock"
	"github.com/akylbek/payment-system/hutko-gateway/internal/models"
	"github.com/akylbek/payment-system/hutko-gateway/internal/repository"
	"github.com/akylbek/payment-system/hutko-gateway/internal/service"
	"github.com/akylbek/payment-system/hutko-gateway/internal/telemetry"
	"github.com/akylbek/payment-system/hutko-gateway/internal/tokencache"
)

const pluginVersion = "1.0.0"

// app holds the wired components and the resources to release on exit.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	db        *sql.DB
	repo      *repository.OrderRepository
	registry  *gateway.Registry
	processor *service.Processor
	recorder  *failures.Recorder
	metrics   *telemetry.Metrics
	promReg   *prometheus.Registry
	closers   []func() error
}

func openDB(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}
	return db, nil
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, promReg: prometheus.NewRegistry()}
	a.promReg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	a.metrics = telemetry.NewMetrics(a.promReg)

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	a.db = db
	a.closers = append(a.closers, db.Close)
	a.repo = repository.NewOrderRepository(db)

	var (
		tokenStore tokencache.Store
		locker     interfaces.Locker
	)
	if cfg.RedisURL != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		a.closers = append(a.closers, redisClient.Close)
		tokenStore = tokencache.NewRedisStore(redisClient)
		if cfg.LockBackend == config.LockBackendRedis {
			locker = lock.NewRedisLocker(redisClient, cfg.LockTTL, cfg.LockWait, logger)
		}
	} else {
		logger.Warn("REDIS_URL not set, token cache and order locks are process-local")
		tokenStore = tokencache.NewMemoryStore()
	}
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	tokens := tokencache.New(tokenStore, cfg.TokenTTL, logger).WithObserver(a.metrics.ObserveTokenCache)

	var (
		sinks      = []failures.Sink{failures.NewLogSink(logger)}
		publishers events.Fanout
	)
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		failureWriter := &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    cfg.FailureTopic,
			Balancer: &kafka.LeastBytes{},
		}
		stateWriter := &kafka.Writer{
			Addr:     kafka.TCP(brokers...),
			Topic:    cfg.StateTopic,
			Balancer: &kafka.Hash{},
		}
		a.closers = append(a.closers, failureWriter.Close, stateWriter.Close)
		sinks = append(sinks, failures.NewKafkaSink(failureWriter))
		publishers = append(publishers, events.NewKafkaPublisher(stateWriter))
	}
	if cfg.NatsURL != "" {
		nc, err := nats.Connect(cfg.NatsURL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		a.closers = append(a.closers, func() error { nc.Close(); return nil })
		publishers = append(publishers, events.NewNatsPublisher(nc, cfg.NatsPrefix))
	}

	a.recorder = failures.NewRecorder(logger, cfg.FailureBuffer, sinks...)
	a.recorder.OnDrop(a.metrics.ObserveFailureDrop)

	machine := service.NewStateMachine(a.repo, service.StatusOverrides{
		Completed: cfg.CompletedOrderStatus,
		Declined:  cfg.DeclinedOrderStatus,
		Expired:   cfg.ExpiredOrderStatus,
	}, logger)
	machine.OnPostTransition(func(_ context.Context, evt models.TransitionEvent) {
		a.metrics.ObserveTransition(string(evt.To))
	})
	if len(publishers) > 0 {
		machine.Publish(publishers)
	}

	a.processor = service.NewProcessor(service.ProcessorDeps{
		MerchantID:    cfg.MerchantID,
		Authenticator: callback.NewAuthenticator(cfg.MerchantID, cfg.SecretKey),
		Correlator:    service.NewCorrelator(a.repo, logger),
		Machine:       machine,
		Orders:        a.repo,
		Locker:        locker,
		Tokens:        tokens,
		Recorder:      a.recorder,
		Metrics:       a.metrics,
		Logger:        logger,
	})

	client := hutkoapi.NewClient(hutkoapi.Options{
		BaseURL:    cfg.APIBaseURL,
		MerchantID: cfg.MerchantID,
		SecretKey:  cfg.SecretKey,
		Timeout:    cfg.APITimeout,
		Retries:    cfg.APIRetries,
	})
	params := gateway.NewParamsBuilder(gateway.ParamsBuilderConfig{
		SiteURL:       cfg.SiteURL,
		RedirectURL:   cfg.RedirectURL,
		CallbackPath:  gateway.CallbackPathFor(gateway.CardID),
		Locale:        cfg.Language,
		Version:       Version,
		PluginVersion: pluginVersion,
	})
	checkout := service.NewCheckout(cfg.MerchantID, a.repo, client, tokens, params, a.metrics, logger)

	card, err := gateway.NewCard(cfg.IntegrationType, checkout, a.processor)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.registry = gateway.NewRegistry(card)

	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("Error closing resource", zap.Error(err))
		}
	}
}
