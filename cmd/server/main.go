package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"

	"pdv/internal/cart"
	cartstore "pdv/internal/cart/store"
	"pdv/internal/catalog"
	cataloghandler "pdv/internal/catalog/handler"
	catalogstore "pdv/internal/catalog/store"
	"pdv/internal/cashsession"
	sessionhandler "pdv/internal/cashsession/handler"
	sessionstore "pdv/internal/cashsession/store"
	"pdv/internal/jwtoken"
	"pdv/internal/payment"
	"pdv/internal/platform/config"
	"pdv/internal/platform/events"
	"pdv/internal/platform/httpserver"
	"pdv/internal/platform/logger"
	"pdv/internal/platform/metrics"
	"pdv/internal/platform/postgres"
	platformredis "pdv/internal/platform/redis"
	"pdv/internal/register"
	registerhandler "pdv/internal/register/handler"
	"pdv/internal/sale"
	salehandler "pdv/internal/sale/handler"
	salestore "pdv/internal/sale/store"
	transporthttp "pdv/internal/transport/http"
)

func main() {
	log := logger.New()
	if err := run(log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger) error {
	cfg := config.FromEnv()

	if tol, err := decimal.NewFromString(cfg.PaymentTolerance); err == nil && !tol.IsNegative() {
		payment.DefaultTolerance = tol
	} else {
		log.Warn("invalid payment tolerance, keeping default", "value", cfg.PaymentTolerance)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Store selection: PostgreSQL when a DSN is configured, in-memory
	// otherwise. The in-memory wiring has no shared transaction, so the
	// commit coordinator runs its saga path there.
	var (
		catalogStore  catalog.Store
		sessionsStore cashsession.Store
		salesStore    sale.Store
		outboxStore   events.Store
		txRunner      sale.TxRunner
	)
	if cfg.PostgresDSN != "" {
		db, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return err
		}
		catalogStore = catalogstore.NewPostgresStore(db)
		sessionsStore = sessionstore.NewPostgresStore(db)
		salesStore = salestore.NewPostgresStore(db)
		outboxStore = events.NewPostgresStore(db)
		txRunner = newSaleTxRunner(db, cfg.CommitTimeout)
		log.Info("using postgres stores")
	} else {
		catalogStore = catalogstore.NewInMemoryStore()
		sessionsStore = sessionstore.NewInMemoryStore()
		salesStore = salestore.NewInMemoryStore()
		outboxStore = events.NewInMemoryStore()
		log.Warn("no postgres DSN configured, using in-memory stores")
	}

	var carts cart.Store = cartstore.NewInMemoryStore()
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		carts = cartstore.NewRedisStore(redisClient)
		log.Info("cart snapshots on redis")
	}

	sessions := cashsession.NewService(sessionsStore, m)
	sales := sale.NewService(salesStore, catalogStore, sessions, outboxStore, txRunner, m, log)
	registry := register.NewRegistry(carts, log)

	jwtService := jwtoken.NewService(cfg.JWTSigningKey, "pdv")

	router := transporthttp.NewRouter(transporthttp.Deps{
		Catalog:        cataloghandler.New(catalogStore, log),
		Sessions:       sessionhandler.New(sessions, log),
		Registers:      registerhandler.New(registry, catalogStore, sales, log),
		Sales:          salehandler.New(sales, log),
		TokenValidator: jwtoken.NewMiddlewareAdapter(jwtService),
		Metrics:        m,
		Logger:         log,
		RequestTimeout: cfg.CommitTimeout,
	})

	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			return err
		}
		defer publisher.Close()
		worker := events.NewWorker(outboxStore, publisher, log)
		go func() {
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("outbox worker stopped", "error", err)
			}
		}()
		log.Info("sale event publisher started", "topic", cfg.Kafka.Topic)
	}

	srv := httpserver.New(cfg.Addr, router)
	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
