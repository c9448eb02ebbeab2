package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	adminpkg "cynergists/internal/admin"
	"cynergists/internal/agent"
	agenthandler "cynergists/internal/agent/handler"
	agentmetrics "cynergists/internal/agent/metrics"
	"cynergists/internal/agent/responder"
	agentservice "cynergists/internal/agent/service"
	"cynergists/internal/audit"
	"cynergists/internal/conversation"
	"cynergists/internal/notify/slack"
	"cynergists/internal/onboarding/adapters"
	"cynergists/internal/onboarding/gate"
	onboardingmetrics "cynergists/internal/onboarding/metrics"
	onboardingservice "cynergists/internal/onboarding/service"
	onboardingstore "cynergists/internal/onboarding/store"
	"cynergists/internal/platform/config"
	"cynergists/internal/platform/database"
	"cynergists/internal/platform/health"
	"cynergists/internal/platform/kafka"
	"cynergists/internal/platform/logger"
	platformredis "cynergists/internal/platform/redis"
	"cynergists/internal/platform/tracer"
	"cynergists/internal/seeder"
	tenanthandler "cynergists/internal/tenant/handler"
	tenantmetrics "cynergists/internal/tenant/metrics"
	tenantservice "cynergists/internal/tenant/service"
	tenantstore "cynergists/internal/tenant/store"
	httptransport "cynergists/internal/transport/http"
	"cynergists/migrations"
)

// main wires dependencies and keeps the server lifecycle small. Business
// logic lives in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	log.Info("initializing portal",
		"addr", cfg.Addr,
		"postgres", cfg.DatabaseURL != "",
		"redis", cfg.RedisAddr != "",
		"kafka", cfg.KafkaBrokers != "",
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	healthHandler := health.New(envName())

	// Optional backing services; each falls back to in-memory when unset.
	pool, err := database.New(database.Config{
		URL:             cfg.DatabaseURL,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	})
	if err != nil {
		log.Error("database init failed", "error", err)
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
		if err := database.Migrate(ctx, pool.DB(), migrations.FS); err != nil {
			log.Error("migrations failed", "error", err)
			os.Exit(1)
		}
		healthHandler.RegisterCheck("postgres", func() error {
			return pool.Ping(context.Background())
		})
	}

	redisClient, err := platformredis.New(ctx, platformredis.Config{Addr: cfg.RedisAddr})
	if err != nil {
		log.Error("redis init failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		healthHandler.RegisterCheck("redis", func() error {
			return redisClient.Ping(context.Background()).Err()
		})
	}

	// Audit pipeline: durable store plus an optional Kafka fan-out.
	var auditStore audit.Store = audit.NewInMemoryStore()
	if pool != nil {
		auditStore = audit.NewPostgres(pool.DB())
	}
	publisherOpts := []audit.PublisherOption{
		audit.WithAsyncBuffer(1024),
		audit.WithPublisherLogger(log),
	}
	if cfg.KafkaBrokers != "" {
		producer, err := kafka.New(kafka.Config{
			Brokers:         cfg.KafkaBrokers,
			Acks:            "all",
			Retries:         3,
			DeliveryTimeout: 30 * time.Second,
		}, log)
		if err != nil {
			log.Error("kafka init failed", "error", err)
			os.Exit(1)
		}
		defer producer.Close(10 * time.Second)
		publisherOpts = append(publisherOpts, audit.WithSink(audit.NewKafkaSink(producer, cfg.KafkaAuditTopic)))
	}
	publisher := audit.NewPublisher(auditStore, publisherOpts...)
	defer publisher.Close()
	recorder := audit.NewRecorder(log, publisher)

	catalog := agent.DefaultCatalog()

	// Tenant domain.
	var (
		tenantOpts = []tenantservice.Option{
			tenantservice.WithLogger(log),
			tenantservice.WithAuditRecorder(recorder),
			tenantservice.WithMetrics(tenantmetrics.New()),
			tenantservice.WithAgentResolver(catalog),
		}
		tStore tenantservice.TenantStore       = tenantstore.NewInMemoryTenantStore()
		sStore tenantservice.SubscriptionStore = tenantstore.NewInMemorySubscriptionStore()
	)
	if pool != nil {
		tStore = tenantstore.NewPostgresTenantStore(pool.DB())
		sStore = tenantstore.NewPostgresSubscriptionStore(pool.DB())
		tenantOpts = append(tenantOpts, tenantservice.WithStoreTx(newTenantPostgresTx(pool.DB())))
	}
	tenants := tenantservice.New(tStore, sStore, tenantOpts...)

	// Onboarding domain.
	var oStore onboardingservice.Store = onboardingstore.NewInMemoryStore()
	if pool != nil {
		oStore = onboardingstore.NewPostgresStore(pool.DB())
	}
	obMetrics := onboardingmetrics.New()
	onboarding := onboardingservice.New(
		oStore,
		adapters.NewTenantAdapter(tenants),
		catalog,
		onboardingservice.WithLogger(log),
		onboardingservice.WithAuditRecorder(recorder),
		onboardingservice.WithMetrics(obMetrics),
	)
	trace := tracer.NewOTel("cynergists-portal")
	gatekeeper := gate.New(onboarding, catalog,
		gate.WithMetrics(obMetrics),
		gate.WithTracer(trace),
	)

	// Conversation history and the message pipeline.
	var convStore conversation.Store = conversation.NewInMemoryStore()
	if redisClient != nil {
		convStore = conversation.NewRedisStore(redisClient)
	}
	var replies responder.Responder
	if cfg.ResponderAPIKey != "" {
		replies = responder.NewResilient(responder.NewHTTP(responder.Config{
			BaseURL: cfg.ResponderBaseURL,
			APIKey:  cfg.ResponderAPIKey,
			Model:   cfg.ResponderModel,
			Timeout: cfg.ResponderTimeout,
		}), log)
	} else {
		log.Warn("responder API key not set, using scripted replies")
		replies = responder.NewScripted(
			"Thanks for reaching out! I'm running in demo mode right now.",
		)
	}
	messages := agentservice.New(
		catalog,
		tenants,
		gatekeeper,
		convStore,
		replies,
		onboarding,
		agentservice.WithLogger(log),
		agentservice.WithMetrics(agentmetrics.New()),
		agentservice.WithTracer(trace),
		agentservice.WithNotifier(slack.New(cfg.SlackWebhookURL, log)),
		agentservice.WithWindowBudgets(cfg.WindowMaxMessages, cfg.WindowMaxCharacters),
	)

	adminSvc := adminpkg.NewService(tenants, onboarding, publisher, catalog, log)

	if cfg.SeedDemo && pool == nil {
		if err := seeder.New(tenants, onboarding, convStore, log).SeedAll(ctx); err != nil {
			log.Error("demo seed failed", "error", err)
			os.Exit(1)
		}
	}

	router := httptransport.NewRouter(
		httptransport.Config{
			AdminToken:    cfg.AdminToken,
			JWTSigningKey: cfg.JWTSigningKey,
		},
		httptransport.Handlers{
			Tenant: tenanthandler.New(tenants, log),
			Agent:  agenthandler.New(messages, catalog, log, agenthandler.WithGate(gatekeeper)),
			Admin:  adminpkg.New(adminSvc, log),
			Health: healthHandler,
		},
		log,
	)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting http server", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server gracefully")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped")
}

func envName() string {
	if env := os.Getenv("PORTAL_ENV"); env != "" {
		return env
	}
	return "development"
}
