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
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"verdant/internal/declaration/adapters"
	"verdant/internal/declaration/handler"
	declmetrics "verdant/internal/declaration/metrics"
	"verdant/internal/declaration/ports"
	"verdant/internal/declaration/store"
	"verdant/internal/declaration/verification"
	"verdant/internal/declaration/verification/geoservice"
	"verdant/internal/declaration/verification/scripted"
	"verdant/internal/declaration/wizard"
	"verdant/internal/platform/config"
	"verdant/internal/platform/httpserver"
	"verdant/internal/platform/kafka"
	"verdant/internal/platform/logger"
	"verdant/internal/platform/metrics"
	"verdant/internal/platform/middleware"
	"verdant/internal/platform/postgres"
	"verdant/internal/platform/redis"
	"verdant/pkg/platform/audit"
	"verdant/pkg/platform/audit/publishers/compliance"
	auditmemory "verdant/pkg/platform/audit/store/memory"
	auditpostgres "verdant/pkg/platform/audit/store/postgres"
	"verdant/pkg/platform/audit/worker"
	"verdant/pkg/platform/circuit"
	"verdant/pkg/platform/httputil"
	"verdant/pkg/platform/middleware/metadata"
)

// main wires infrastructure, the wizard and the HTTP surface, then runs the
// server, the session sweeper and the audit relay until a signal arrives.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.Server.LogLevel, cfg.Server.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("verdant stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if db != nil {
		defer db.Close()
	}

	redisClient, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	producer, err := kafka.NewProducer(cfg.Kafka)
	if err != nil {
		return fmt.Errorf("create kafka producer: %w", err)
	}
	if producer != nil {
		defer producer.Close()
		if err := producer.EnsureTopic(ctx, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
			log.Warn("kafka topic not ensured", "topic", cfg.Kafka.Topic, "error", err)
		}
	}

	declStore, auditStore, outbox, err := buildStores(ctx, db)
	if err != nil {
		return err
	}

	m := declmetrics.New()
	verifier, err := buildVerifier(cfg, log)
	if err != nil {
		return err
	}
	pipeline, err := verification.New(verifier,
		verification.WithStageTimeout(cfg.Verification.StageTimeout),
		verification.WithLogger(log),
		verification.WithMetrics(m),
	)
	if err != nil {
		return fmt.Errorf("build verification pipeline: %w", err)
	}

	var locker ports.SubmitLocker = adapters.NewMemorySubmitLocker()
	if redisClient != nil {
		locker = adapters.NewRedisSubmitLocker(redisClient.Client)
	}

	opts := []wizard.Option{
		wizard.WithLogger(log),
		wizard.WithMetrics(m),
		wizard.WithAuditPublisher(compliance.New(auditStore,
			compliance.WithLogger(log),
			compliance.WithMetrics(compliance.NewMetrics()),
		)),
		wizard.WithOperationsAudit(auditStore),
		wizard.WithSessionTTL(cfg.Wizard.SessionTTL),
		wizard.WithLockTTL(cfg.Wizard.LockTTL),
	}
	if producer != nil {
		events, err := adapters.NewKafkaEventPublisher(producer)
		if err != nil {
			return fmt.Errorf("build event publisher: %w", err)
		}
		opts = append(opts, wizard.WithEventPublisher(events))
	}
	svc, err := wizard.New(pipeline, declStore, locker, opts...)
	if err != nil {
		return fmt.Errorf("build wizard: %w", err)
	}
	defer svc.Shutdown(context.WithoutCancel(ctx))

	router := chi.NewRouter()
	httpMetrics := metrics.New()
	router.Use(httpMetrics.Middleware)
	router.Use(middleware.RequestTime)
	router.Use(metadata.ClientMetadata)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/readyz", readiness(db, redisClient, producer))
	handler.New(svc, log).Register(router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(gctx, httpserver.New(cfg.Server.Addr, router), log)
	})
	g.Go(func() error {
		return svc.RunSweeper(gctx, cfg.Wizard.SweepInterval)
	})
	if outbox != nil && producer != nil {
		sink, err := adapters.NewKafkaAuditSink(producer)
		if err != nil {
			return fmt.Errorf("build audit sink: %w", err)
		}
		relay := worker.NewWorker(outbox, sink, worker.WithLogger(log))
		g.Go(func() error {
			if err := relay.Run(gctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}

	log.Info("verdant started",
		"addr", cfg.Server.Addr,
		"postgres", db != nil,
		"redis", redisClient != nil,
		"kafka", producer != nil,
		"verification", verificationMode(cfg),
	)
	return g.Wait()
}

// readiness reports each configured backend; any failure yields 503.
func readiness(db *sql.DB, redisClient *redis.Client, producer *kafka.Producer) http.HandlerFunc {
	checks := map[string]func(context.Context) error{}
	if db != nil {
		checks["postgres"] = db.PingContext
	}
	if redisClient != nil {
		checks["redis"] = redisClient.Health
	}
	if producer != nil {
		checks["kafka"] = producer.Health
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		status := http.StatusOK
		body := map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body[name] = err.Error()
				continue
			}
			body[name] = "ok"
		}
		httputil.WriteJSON(w, status, body)
	}
}

// buildStores picks Postgres when a database is configured, otherwise memory.
func buildStores(ctx context.Context, db *sql.DB) (ports.DeclarationStore, audit.Store, worker.Outbox, error) {
	if db == nil {
		return store.NewInMemoryStore(), auditmemory.NewInMemoryStore(), nil, nil
	}
	declStore := store.NewPostgresStore(db)
	if err := declStore.Migrate(ctx); err != nil {
		return nil, nil, nil, fmt.Errorf("migrate declarations: %w", err)
	}
	auditStore := auditpostgres.New(db)
	if err := auditStore.Migrate(ctx); err != nil {
		return nil, nil, nil, fmt.Errorf("migrate audit: %w", err)
	}
	return declStore, auditStore, auditStore, nil
}

func buildVerifier(cfg config.Config, log *slog.Logger) (ports.VerificationService, error) {
	if cfg.Verification.BaseURL == "" {
		log.Warn("no verification service configured, using scripted verifier")
		return scripted.New(), nil
	}
	breaker := circuit.New("verification",
		circuit.WithFailureThreshold(cfg.Verification.FailureThreshold),
		circuit.WithCooldown(cfg.Verification.Cooldown),
	)
	client, err := geoservice.New(cfg.Verification.BaseURL,
		geoservice.WithBreaker(breaker),
		geoservice.WithLogger(log),
	)
	if err != nil {
		return nil, fmt.Errorf("build verification client: %w", err)
	}
	return client, nil
}

func verificationMode(cfg config.Config) string {
	if cfg.Verification.BaseURL == "" {
		return "scripted"
	}
	return "remote"
}
