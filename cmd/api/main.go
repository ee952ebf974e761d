package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cabinetworks/contractor-backend/api/controllers"
	"github.com/cabinetworks/contractor-backend/api/routes"
	"github.com/cabinetworks/contractor-backend/internal/acceptance"
	"github.com/cabinetworks/contractor-backend/internal/analytics"
	"github.com/cabinetworks/contractor-backend/internal/audit"
	"github.com/cabinetworks/contractor-backend/internal/branding"
	"github.com/cabinetworks/contractor-backend/internal/documents"
	"github.com/cabinetworks/contractor-backend/internal/events"
	"github.com/cabinetworks/contractor-backend/internal/manufacturers"
	"github.com/cabinetworks/contractor-backend/internal/notifications"
	"github.com/cabinetworks/contractor-backend/internal/orders"
	"github.com/cabinetworks/contractor-backend/internal/payments"
	"github.com/cabinetworks/contractor-backend/internal/proposals"
	"github.com/cabinetworks/contractor-backend/internal/relay"
	"github.com/cabinetworks/contractor-backend/internal/sessions"
	"github.com/cabinetworks/contractor-backend/internal/users"
	"github.com/cabinetworks/contractor-backend/pkg/bigquery"
	"github.com/cabinetworks/contractor-backend/pkg/config"
	"github.com/cabinetworks/contractor-backend/pkg/db"
	"github.com/cabinetworks/contractor-backend/pkg/db/models"
	"github.com/cabinetworks/contractor-backend/pkg/dedupe"
	"github.com/cabinetworks/contractor-backend/pkg/logger"
	"github.com/cabinetworks/contractor-backend/pkg/mailer"
	"github.com/cabinetworks/contractor-backend/pkg/metrics"
	"github.com/cabinetworks/contractor-backend/pkg/migrate"
	"github.com/cabinetworks/contractor-backend/pkg/pubsub"
	"github.com/cabinetworks/contractor-backend/pkg/ratelimit"
	"github.com/cabinetworks/contractor-backend/pkg/redis"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	readiness := map[string]controllers.Pinger{"db": dbClient}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		readiness["redis"] = redisClient
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	pipelineMetrics := metrics.NewPipeline(registry)

	conn := dbClient.DB()
	healer := db.NewSchemaHealer(conn, logg, models.PipelineTables()...)
	proposalRepo := proposals.NewRepository(conn)

	bus := events.NewBus(cfg.Eventing.SubscriberTimeout, pipelineMetrics, logg)
	var publisher events.Publisher = bus
	if !cfg.Eventing.Async {
		publisher = events.Synchronous(bus)
	}

	limiter, err := newLimiter(cfg, redisClient)
	exitOnErr(ctx, logg, "failed to create rate limiter", err)

	orderStore, err := orders.NewStore(conn, proposalRepo, cfg.Orders, healer, logg)
	exitOnErr(ctx, logg, "failed to create order store", err)

	deriver, err := payments.NewDeriver(payments.NewRepository(conn), healer, cfg.Pricing.Currency, logg)
	exitOnErr(ctx, logg, "failed to create payment deriver", err)

	userRepo := users.NewRepository(conn)

	sessionService, err := sessions.NewService(conn, proposalRepo, userRepo, healer, publisher, cfg.Sessions.TTL, logg)
	exitOnErr(ctx, logg, "failed to create session service", err)

	taxRate, err := decimal.NewFromString(cfg.Pricing.TaxRatePct)
	exitOnErr(ctx, logg, "invalid tax rate", err)

	acceptanceService, err := acceptance.NewService(acceptance.ServiceParams{
		Proposals:       proposalRepo,
		Users:           userRepo,
		Orders:          orderStore,
		Payments:        deriver,
		Sessions:        sessionService,
		Publisher:       publisher,
		Limiter:         limiter,
		TaxRatePct:      taxRate,
		DefaultCurrency: cfg.Pricing.Currency,
		Metrics:         pipelineMetrics,
		Logger:          logg,
	})
	exitOnErr(ctx, logg, "failed to create acceptance service", err)

	renderer, err := documents.NewRenderer(documents.FPDFEngine{}, cfg.Documents.RenderTimeout, pipelineMetrics)
	exitOnErr(ctx, logg, "failed to create document renderer", err)

	sender, err := mailer.NewSender(cfg.Mail, logg)
	exitOnErr(ctx, logg, "failed to create mailer", err)

	notifier, err := manufacturers.NewNotifier(orderStore, proposalRepo, branding.NewReader(conn, cfg.Branding), renderer, sender, cfg.Mail.From, pipelineMetrics, logg)
	exitOnErr(ctx, logg, "failed to create manufacturer notifier", err)

	notificationDeduper, err := newDeduper(cfg, redisClient, "notifications")
	exitOnErr(ctx, logg, "failed to create notification deduper", err)

	fanout, err := notifications.NewFanout(notifications.NewRepository(conn), userRepo, proposalRepo, notificationDeduper, logg)
	exitOnErr(ctx, logg, "failed to create notification fanout", err)

	bus.Subscribe(fanout.Subscriber(), notifier.Subscriber())
	bus.Subscribe(audit.NewRecorder(conn, pipelineMetrics, logg).Subscribers()...)

	if cfg.PubSub.Enabled() {
		psClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		exitOnErr(ctx, logg, "failed to bootstrap pubsub", err)
		ordersPublisher := psClient.OrdersPublisher()
		defer func() {
			ordersPublisher.Stop()
			if err := psClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing pubsub", err)
			}
		}()

		orderRelay, err := relay.New(ordersPublisher, logg)
		exitOnErr(ctx, logg, "failed to create pubsub relay", err)
		bus.Subscribe(orderRelay.Subscriber())
		readiness["pubsub"] = psClient
	}

	if cfg.BigQuery.Enabled() {
		bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
		exitOnErr(ctx, logg, "failed to bootstrap bigquery", err)
		defer func() {
			if err := bqClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing bigquery", err)
			}
		}()

		analyticsDeduper, err := newDeduper(cfg, redisClient, "analytics")
		exitOnErr(ctx, logg, "failed to create analytics deduper", err)
		writer, err := analytics.NewWriter(bqClient.AcceptedOrdersInserter(), analyticsDeduper, analytics.RetryPolicy{}, logg)
		exitOnErr(ctx, logg, "failed to create analytics writer", err)
		bus.Subscribe(writer.Subscriber())
		readiness["bigquery"] = bqClient
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	serverCtx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Services{
			Acceptor:      acceptanceService,
			Sessions:      sessionService,
			Manufacturers: notifier,
			Renderer:      renderer,
			Readiness:     readiness,
			Gatherer:      registry,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(serverCtx, "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(serverCtx, "api server stopped", err)
		}
	case <-ctx.Done():
		logg.Info(serverCtx, "shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(serverCtx, "api server shutdown failed", err)
	}
	drainEvents(shutdownCtx, logg, bus)
}

// drainEvents waits for detached subscriber dispatches until ctx expires.
func drainEvents(ctx context.Context, logg *logger.Logger, bus *events.Bus) {
	done := make(chan struct{})
	go func() {
		bus.Wait()
		close(done)
	}()
	select {
	case <-done:
		logg.Info(ctx, "event dispatch drained")
	case <-ctx.Done():
		logg.Warn(ctx, "event dispatch drain timed out")
	}
}

func newLimiter(cfg *config.Config, redisClient *redis.Client) (ratelimit.Limiter, error) {
	policy := ratelimit.Policy{
		Name:   acceptance.RatePolicy,
		Limit:  int64(cfg.RateLimit.AcceptLimit),
		Window: cfg.RateLimit.AcceptWindow,
	}
	if cfg.RateLimit.Backend == config.BackendRedis && redisClient != nil {
		return ratelimit.NewRedis(policy, redisClient)
	}
	return ratelimit.NewMemory(policy, nil), nil
}

func newDeduper(cfg *config.Config, redisClient *redis.Client, scope string) (dedupe.Deduper, error) {
	if cfg.Dedupe.Backend == config.BackendRedis && redisClient != nil {
		return dedupe.NewRedis(redisClient, scope, cfg.Dedupe.TTL)
	}
	return dedupe.NewMemory(cfg.Dedupe.TTL, nil), nil
}

func exitOnErr(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, msg, err)
	os.Exit(1)
}
