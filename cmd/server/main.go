package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	consenthandler "consentwindow/internal/consent/handler"
	consentkafka "consentwindow/internal/consent/publisher/kafka"
	"consentwindow/internal/consent/publisher/memory"
	"consentwindow/internal/consent/publisher/outbox"
	consentservice "consentwindow/internal/consent/service"
	jwttoken "consentwindow/internal/jwt_token"
	"consentwindow/internal/platform/config"
	"consentwindow/internal/platform/httpserver"
	platformkafka "consentwindow/internal/platform/kafka"
	"consentwindow/internal/platform/logger"
	"consentwindow/internal/platform/metrics"
	platformredis "consentwindow/internal/platform/redis"
	"consentwindow/internal/platform/tracer"
	ratelimit "consentwindow/internal/ratelimit/middleware"
	ratelimitmodels "consentwindow/internal/ratelimit/models"
	"consentwindow/internal/ratelimit/store/bucket"
	"consentwindow/pkg/platform/audit"
	"consentwindow/pkg/platform/audit/publishers/compliance"
	auditmemory "consentwindow/pkg/platform/audit/store/memory"
	auditpostgres "consentwindow/pkg/platform/audit/store/postgres"
	"consentwindow/pkg/platform/httputil"
	"consentwindow/pkg/platform/middleware/metadata"
	"consentwindow/pkg/platform/middleware/request"
	"consentwindow/pkg/platform/middleware/requesttime"
)

const requestTimeout = 30 * time.Second

// main wires the consent service to its configured backend and serves the HTTP API
// until SIGINT or SIGTERM.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := tracer.Setup(ctx, cfg.Tracer)
	if err != nil {
		return fmt.Errorf("setup tracer: %w", err)
	}
	defer func() {
		if err := shutdownTracer(context.Background()); err != nil {
			log.Warn("tracer shutdown failed", "error", err)
		}
	}()

	m := metrics.New(prometheus.DefaultRegisterer)

	backend, err := openConsentBackend(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open consent backend: %w", err)
	}
	defer func() { _ = backend.close() }()

	var auditStore audit.Store = auditmemory.NewInMemoryStore()
	if backend.db != nil {
		auditStore = auditpostgres.New(backend.db)
	}
	auditPublisher := compliance.New(auditStore,
		compliance.WithLogger(log),
		compliance.WithMetrics(compliance.NewMetrics(prometheus.DefaultRegisterer)),
	)

	publisher, worker, closePublisher, err := buildPublisher(ctx, cfg, backend, log, m)
	if err != nil {
		return err
	}
	defer closePublisher()

	svc := consentservice.New(backend.store, backend.tx,
		consentservice.WithPublisher(publisher),
		consentservice.WithAuditPublisher(auditPublisher),
		consentservice.WithLogger(log),
		consentservice.WithMetrics(m),
		consentservice.WithBatchConcurrency(cfg.BatchConcurrency),
	)

	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)

	limiter, closeLimiter, err := buildRateLimiter(ctx, cfg, backend, log)
	if err != nil {
		return err
	}
	defer closeLimiter()

	router := chi.NewRouter()
	router.Use(request.RequestID)
	router.Use(request.Logger(log))
	router.Use(request.Recovery(log))
	router.Use(metadata.ClientMetadata)
	router.Use(requesttime.Middleware)
	router.Use(chimw.Timeout(requestTimeout))
	router.Get("/healthz", healthHandler(backend))
	router.Handle("/metrics", promhttp.Handler())
	consenthandler.New(svc, auditPublisher, jwttoken.NewJWTServiceAdapter(jwtService), log,
		consenthandler.WithRateLimiter(limiter),
	).Register(router)

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting consent service", "addr", cfg.Addr, "backend", cfg.Backend, "env", cfg.Environment)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	if worker != nil {
		g.Go(func() error {
			if err := worker(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("notification worker: %w", err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down", "timeout", cfg.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// buildPublisher picks the notification sink and the background worker that drives it.
// Without Kafka, notifications go to a bounded in-process recorder whose worker logs them. With Kafka and the postgres backend the outbox is on by default,
// so a notification is relayed only once its grant has committed.
func buildPublisher(
	ctx context.Context,
	cfg config.Server,
	backend *consentBackend,
	log *slog.Logger,
	m *metrics.Metrics,
) (consentservice.Publisher, func(context.Context) error, func(), error) {
	if !cfg.Kafka.Enabled() {
		log.InfoContext(ctx, "kafka not configured; notifications are recorded in memory")
		recorder := memory.NewRecorder()
		drain := func(ctx context.Context) error {
			return recorder.Drain(ctx, recorder.LogNotifications(log))
		}
		return recorder, drain, func() {}, nil
	}

	client, err := platformkafka.NewClient(ctx, cfg.Kafka)
	if err != nil {
		return nil, nil, nil, err
	}
	if err := platformkafka.EnsureTopic(ctx, client, cfg.Kafka); err != nil {
		client.Close()
		return nil, nil, nil, err
	}
	producer := consentkafka.New(client, cfg.Kafka.Topic,
		consentkafka.WithLogger(log),
		consentkafka.WithMetrics(m),
		consentkafka.WithTimeout(cfg.Kafka.ProduceTimeout),
	)

	if cfg.Outbox.Enabled && backend.db != nil {
		relay := outbox.NewRelay(backend.db, producer,
			outbox.WithInterval(cfg.Outbox.PollInterval),
			outbox.WithBatchSize(cfg.Outbox.BatchSize),
			outbox.WithLogger(log),
			outbox.WithMetrics(m),
		)
		log.InfoContext(ctx, "consent notifications go through the postgres outbox", "topic", cfg.Kafka.Topic)
		return outbox.NewPublisher(), relay.Run, client.Close, nil
	}
	log.WarnContext(ctx, "consent notifications are produced to kafka inside the transaction; a failed commit can still notify",
		"topic", cfg.Kafka.Topic,
		"backend", cfg.Backend,
	)
	return producer, nil, client.Close, nil
}

// buildRateLimiter shares budgets through Redis when it is configured, reusing the
// consent backend's client when that is Redis too.
func buildRateLimiter(
	ctx context.Context,
	cfg config.Server,
	backend *consentBackend,
	log *slog.Logger,
) (*ratelimit.Middleware, func(), error) {
	opts := []ratelimit.Option{
		ratelimit.WithDisabled(!cfg.RateLimit.Enabled),
		ratelimit.WithLimit(ratelimitmodels.ClassRead, ratelimitmodels.Limit{Requests: cfg.RateLimit.ReadLimit, Window: cfg.RateLimit.Window}),
		ratelimit.WithLimit(ratelimitmodels.ClassWrite, ratelimitmodels.Limit{Requests: cfg.RateLimit.WriteLimit, Window: cfg.RateLimit.Window}),
	}

	if backend.redis != nil {
		return ratelimit.New(bucket.NewRedisBucketStore(backend.redis.Client), log, opts...), func() {}, nil
	}
	client, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	if client != nil {
		return ratelimit.New(bucket.NewRedisBucketStore(client.Client), log, opts...), func() { _ = client.Close() }, nil
	}
	return ratelimit.New(bucket.NewInMemoryBucketStore(), log, opts...), func() {}, nil
}

func healthHandler(backend *consentBackend) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := backend.health(ctx); err != nil {
			httputil.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
