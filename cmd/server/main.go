package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"jagga/internal/audit"
	auditstore "jagga/internal/audit/store"
	auditworker "jagga/internal/audit/worker"
	"jagga/internal/authtoken"
	authhandler "jagga/internal/authtoken/handler"
	"jagga/internal/ledger"
	ledgerhandler "jagga/internal/ledger/handler"
	"jagga/internal/payment"
	"jagga/internal/platform/config"
	"jagga/internal/platform/httpserver"
	"jagga/internal/platform/logger"
	"jagga/internal/platform/metrics"
	"jagga/internal/platform/postgres"
	platformredis "jagga/internal/platform/redis"
	registryhandler "jagga/internal/registry/handler"
	registryservice "jagga/internal/registry/service"
	registrystore "jagga/internal/registry/store"
	requesthandler "jagga/internal/request/handler"
	requestservice "jagga/internal/request/service"
	requeststore "jagga/internal/request/store"
	httptransport "jagga/internal/transport/http"
)

const reconcileSweepInterval = 30 * time.Second

// main wires dependencies and runs the server lifecycle. Business logic
// lives in the internal service packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "jagga: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.FromEnv()
	log := logger.New()
	m := metrics.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Stores. Postgres when configured, in-memory otherwise so the service
	// still runs in local development.
	var (
		requests requeststore.Store
		parcels  registrystore.Store
		outbox   *auditstore.PostgresStore

		healthCheck func() error
	)
	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()
		if err := postgres.EnsureSchema(ctx, pool); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		requests = requeststore.NewPostgres(pool)
		parcels = registrystore.NewPostgres(pool)
		outbox = auditstore.NewPostgres(pool)
		healthCheck = func() error { return pool.Ping(context.Background()) }
		log.Info("using postgres stores")
	} else {
		requests = requeststore.NewInMemoryStore()
		parcels = registrystore.NewInMemoryStore()
		log.Warn("DATABASE_URL not set; using in-memory stores")
	}

	redisClient, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	ledgerClient, err := ledger.New(ledger.Config{
		RPCURL:       cfg.SolanaRPCURL,
		AuthorityKey: cfg.SolanaAuthorityKey,
	}, log, ledger.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("init ledger client: %w", err)
	}
	if !ledgerClient.Configured() {
		log.Warn("ledger not configured; running in degraded mode with placeholder references")
	}

	gate := payment.NewGate(cfg.CitizenFeeLamports, cfg.OfficerFeeLamports, cfg.ChiefFeeLamports, cfg.TreasuryWallet)
	tokens := authtoken.New([]byte(cfg.JWTSigningKey), cfg.OfficerWallets, cfg.ChiefWallets)

	var publisher audit.Publisher = audit.NopPublisher{}
	if outbox != nil {
		publisher = audit.NewOutboxPublisher(outbox, log)
	}

	registrySvc := registryservice.New(parcels, ledgerClient, requests, log,
		registryservice.WithAuditPublisher(publisher),
		registryservice.WithMetrics(m),
		registryservice.WithTreasuryWallet(cfg.TreasuryWallet),
	)
	requestSvc := requestservice.New(requests, gate, ledgerClient, registrySvc, log,
		requestservice.WithLocker(platformredis.NewMutex(redisClient, 30*time.Second)),
		requestservice.WithAuditPublisher(publisher),
		requestservice.WithMetrics(m),
	)

	router := httptransport.NewRouter(httptransport.Deps{
		Requests:    requesthandler.New(requestSvc, tokens, log),
		Registry:    registryhandler.New(registrySvc, requestSvc, log),
		Ledger:      ledgerhandler.New(ledgerClient, gate, log),
		Auth:        authhandler.New(tokens, log),
		Metrics:     m,
		Logger:      log,
		HealthCheck: healthCheck,
	})
	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// Resume any decision whose registry side effects did not finish before
	// the last shutdown, then keep sweeping.
	g.Go(func() error {
		ticker := time.NewTicker(reconcileSweepInterval)
		defer ticker.Stop()
		for {
			if err := requestSvc.SweepUnreconciled(gctx); err != nil {
				log.Error("reconciliation sweep failed", "error", err)
			}
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
			}
		}
	})

	if outbox != nil && len(cfg.KafkaBrokers) > 0 {
		kafkaClient, err := auditworker.NewKafkaClient(cfg.KafkaBrokers)
		if err != nil {
			return fmt.Errorf("connect kafka: %w", err)
		}
		defer kafkaClient.Close()
		worker := auditworker.New(outbox, kafkaClient, log)
		g.Go(func() error {
			return worker.Run(gctx)
		})
	}

	return g.Wait()
}
