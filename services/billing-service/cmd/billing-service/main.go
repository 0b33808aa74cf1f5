package main

import (
	"context"
	"net/http"
	"time"

	"github.com/pm/patient-management/libs/config"
	"github.com/pm/patient-management/libs/db"
	"github.com/pm/patient-management/libs/httpx"
	otelx "github.com/pm/patient-management/libs/otel"
	"github.com/pm/patient-management/libs/runtime"
	"github.com/pm/patient-management/services/billing-service/internal/metrics"
	"github.com/pm/patient-management/services/billing-service/internal/provisioning"
	"github.com/pm/patient-management/services/billing-service/internal/storage"
	"github.com/pm/patient-management/services/billing-service/migrations"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "billing-service")
	port, err := config.Port("PORT", "8081")
	if err != nil {
		panic(err)
	}
	grpcPort, err := config.Port("GRPC_PORT", "9001")
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
	var accounts provisioning.AccountStore
	switch driver := config.String("STORE_DRIVER", "postgres"); driver {
	case "memory":
		logger.Warn("using in-memory account store; data is lost on restart")
		accounts = storage.NewMemoryAccountRepository()
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
		accounts = storage.NewAccountRepository(pool)
		checks = append(checks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})
	default:
		panic("unknown STORE_DRIVER " + driver)
	}

	var customers provisioning.CustomerCreator
	if key := config.String("STRIPE_SECRET_KEY", ""); key != "" {
		customers = provisioning.NewStripeCustomers(key, nil)
	} else {
		logger.Warn("stripe disabled: STRIPE_SECRET_KEY missing; accounts are local only")
	}

	svc := provisioning.New(accounts, customers, m, logger)
	if err := startGrpcServer(ctx, logger, grpcPort, svc); err != nil {
		logger.Error("grpc server failed to start", "err", err)
		panic(err)
	}

	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
	)
	handler = otelhttp.NewHandler(handler, "billing")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	runtime.ServeHTTP(ctx, logger, srv)
}
