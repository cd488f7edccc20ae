package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	contacthandler "identity-recon/internal/contact/handler"
	contactlock "identity-recon/internal/contact/lock"
	contactmetrics "identity-recon/internal/contact/metrics"
	contactservice "identity-recon/internal/contact/service"
	contactstore "identity-recon/internal/contact/store"
	"identity-recon/internal/platform/config"
	"identity-recon/internal/platform/httpserver"
	"identity-recon/internal/platform/logger"
	"identity-recon/internal/platform/metrics"
	"identity-recon/internal/platform/postgres"
	"identity-recon/internal/platform/redis"
	httptransport "identity-recon/internal/transport/http"
	"identity-recon/pkg/platform/circuit"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal service packages.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	contactMetrics := contactmetrics.New(reg)
	checks := map[string]httptransport.HealthChecker{}

	var (
		tx     contactservice.StoreTx
		reader contactservice.Reader
	)
	if cfg.Database.URL == "" {
		log.Warn("DATABASE_URL not set, using in-memory contact store")
		mem := contactstore.NewInMemory()
		tx = contactservice.NewInMemoryTx(mem, cfg.Database.StoreTimeout)
		reader = mem
		checks["store"] = mem
	} else {
		db, err := openDatabase(ctx, cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		pg := contactstore.NewPostgres(db)
		tx = newContactPostgresTx(pg, cfg.Database.StoreTimeout, cfg.Database.TxMaxAttempts, contactMetrics, log)
		reader = pg
		checks["store"] = pg
		log.Info("using postgres contact store", "driver", cfg.Database.Driver)
	}

	opts := []contactservice.Option{
		contactservice.WithLogger(log),
		contactservice.WithMetrics(contactMetrics),
	}
	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		locker := contactlock.NewBreakerLocker(
			contactlock.NewRedisLocker(redisClient.Client, contactlock.WithTTL(cfg.Redis.LockTTL)),
			circuit.New("redis-lock"),
			log,
		)
		opts = append(opts, contactservice.WithLocker(locker))
		checks["redis"] = redisClient
		log.Info("distributed identity lock enabled")
	}

	svc := contactservice.New(tx, reader, opts...)
	router := httptransport.NewRouter(httptransport.Dependencies{
		Logger:         log,
		Contacts:       contacthandler.New(svc, log),
		Metrics:        metrics.New(reg),
		Gatherer:       reg,
		RequestTimeout: cfg.Server.RequestTimeout,
		HealthChecks:   checks,
	})
	srv := httpserver.New(cfg.Server.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting identity-recon", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := postgres.Open(ctx, postgres.Options{
		Driver:          cfg.Driver,
		DSN:             cfg.URL,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := postgres.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}
