package main

import (
	"context"
	"net/http"
	"time"

	"github.com/pm/patient-management/libs/config"
	"github.com/pm/patient-management/libs/db"
	"github.com/pm/patient-management/libs/httpx"
	"github.com/pm/patient-management/libs/kafkax"
	otelx "github.com/pm/patient-management/libs/otel"
	"github.com/pm/patient-management/libs/runtime"
	"github.com/pm/patient-management/services/patient-service/internal/billing"
	"github.com/pm/patient-management/services/patient-service/internal/events"
	"github.com/pm/patient-management/services/patient-service/internal/handlers"
	"github.com/pm/patient-management/services/patient-service/internal/intents"
	"github.com/pm/patient-management/services/patient-service/internal/metrics"
	"github.com/pm/patient-management/services/patient-service/internal/patient"
	"github.com/pm/patient-management/services/patient-service/internal/storage"
	"github.com/pm/patient-management/services/patient-service/migrations"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "patient-service")
	logger := runtime.NewLogger(service)

	cfg, err := loadSettings()
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		panic(err)
	}

	ctx, stop := runtime.SignalContext(logger)
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var checks []runtime.ReadyCheck

	var store patient.Store
	var queue intents.Queue
	switch cfg.storeDriver {
	case "memory":
		logger.Warn("using in-memory patient store; data is lost on restart")
		memQueue := intents.NewMemoryQueue()
		store = storage.NewMemoryStoreWithIntents(memQueue)
		queue = memQueue
	case "postgres":
		if cfg.databaseURL == "" {
			panic("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
		if cfg.migrateOnStart {
			if err := db.Migrate(logger, migrations.FS, cfg.databaseURL); err != nil {
				logger.Error("database migration failed", "err", err)
				panic(err)
			}
		}
		pool, err := db.Open(ctx, cfg.databaseURL, db.PoolOptions{})
		if err != nil {
			logger.Error("db connection failed", "err", err)
			panic(err)
		}
		defer pool.Close()

		intentsRepo := intents.NewRepository(pool)
		store = storage.NewPatientRepository(pool, intentsRepo)
		queue = intentsRepo
		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})
	default:
		panic("unknown STORE_DRIVER " + cfg.storeDriver)
	}

	var provisioner patient.BillingProvisioner = billing.Disabled{}
	if cfg.billingAddr != "" {
		p, err := billing.NewProvisioner(cfg.billingAddr)
		if err != nil {
			logger.Error("billing client init failed", "err", err)
			panic(err)
		}
		defer func() { _ = p.Close() }()
		provisioner = p
		checks = append(checks, runtime.ReadyCheck{Name: "billing", Check: p.ReadyCheck()})
	} else {
		logger.Warn("billing provisioning disabled (no BILLING_GRPC_ADDR)")
	}

	var publisher patient.EventPublisher = events.DisabledPublisher{}
	if brokers := kafkax.SplitBrokers(cfg.kafkaBrokers); len(brokers) > 0 {
		kp := events.NewKafkaPublisher(events.Config{
			Brokers:      brokers,
			Topic:        cfg.eventsTopic,
			BatchTimeout: cfg.publishBatchWait,
		})
		defer func() { _ = kp.Close() }()
		publisher = kp
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(cfg.kafkaBrokers)})
	} else {
		logger.Warn("event publishing disabled (no KAFKA_BROKERS)")
	}

	svc, err := patient.NewService(store, provisioner, publisher, m, logger, patient.Config{
		BillingTimeout: cfg.billingTimeout,
		PublishTimeout: cfg.publishTimeout,
		BillingMode:    cfg.billingMode,
	})
	if err != nil {
		logger.Error("patient service init failed", "err", err)
		panic(err)
	}

	if cfg.billingMode == patient.BillingModeOutbox {
		worker := intents.NewWorker(queue, provisioner, m, logger, intents.WorkerConfig{
			Interval:    cfg.intentPollEvery,
			BatchSize:   cfg.intentBatchSize,
			CallTimeout: cfg.billingTimeout,
			MaxBackoff:  cfg.intentMaxBackoff,
		})
		go worker.Run(ctx)
	}

	var limiter httpx.Limiter = httpx.NewMemoryRateLimiter(cfg.rateLimitPerMinute, time.Minute)
	if cfg.redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.redisAddr})
		defer func() { _ = rdb.Close() }()
		limiter = httpx.NewRedisRateLimiter(rdb, cfg.rateLimitPerMinute, time.Minute, service+":ratelimit")
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: httpx.RedisReadyCheck(rdb)})
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	handlers.NewPatientHandler(svc, logger).Register(mux)

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.RateLimit(limiter, logger, true),
		httpx.WithBodyLimit(1<<20),
		httpx.WithTimeout(15*time.Second),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, service)
	srv := &http.Server{
		Addr:              ":" + cfg.port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("patient service configured",
		"store", cfg.storeDriver,
		"billing_mode", cfg.billingMode,
		"billing_enabled", cfg.billingAddr != "",
	)
	runtime.ServeHTTP(ctx, logger, srv)
}
