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
	"github.com/pm/patient-management/services/analytics-service/internal/consumer"
	"github.com/pm/patient-management/services/analytics-service/internal/handlers"
	"github.com/pm/patient-management/services/analytics-service/internal/metrics"
	"github.com/pm/patient-management/services/analytics-service/internal/patientevents"
	"github.com/pm/patient-management/services/analytics-service/migrations"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "analytics-service")
	port, err := config.Port("PORT", "8082")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

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
	var store patientevents.Store
	switch driver := config.String("STORE_DRIVER", "postgres"); driver {
	case "memory":
		logger.Warn("using in-memory event store; data is lost on restart")
		store = patientevents.NewMemoryStore()
	case "postgres":
		dbURL, err := config.RequiredString("DATABASE_URL")
		if err != nil {
			panic(err)
		}
		if config.Bool("MIGRATE_ON_START", false) {
			if err := db.Migrate(logger, migrations.FS, dbURL); err != nil {
				logger.Error("database migration failed", "err", err)
				panic(err)
			}
		}
		pool, err := db.Open(ctx, dbURL, db.PoolOptions{})
		if err != nil {
			logger.Error("db connection failed", "err", err)
			panic(err)
		}
		defer pool.Close()
		store = patientevents.NewRepository(pool)
		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})
	default:
		panic("unknown STORE_DRIVER " + driver)
	}

	brokers := config.String("KAFKA_BROKERS", "")
	if brokers != "" {
		processor := patientevents.NewProcessor(store, m, logger)
		patientConsumer := consumer.New(logger, consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", "analytics-service"),
			Topic:   config.String("PATIENT_EVENTS_TOPIC", "patient.events"),
		}, processor.Handle)
		go patientConsumer.Run(ctx)
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	} else {
		logger.Warn("kafka disabled: KAFKA_BROKERS missing; no events will be consumed")
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	handlers.NewStatsHandler(store, logger).Register(mux)

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
	)
	handler = otelhttp.NewHandler(handler, "analytics")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	runtime.ServeHTTP(ctx, logger, srv)
}
