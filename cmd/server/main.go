package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"coffeeshop/internal/app"
	"coffeeshop/internal/bakong"
	"coffeeshop/internal/config"
	"coffeeshop/internal/events"
	"coffeeshop/internal/handler"
	"coffeeshop/internal/khqr"
	internalRedis "coffeeshop/internal/redis"
	"coffeeshop/internal/repository/postgres"
	"coffeeshop/internal/service"
	"coffeeshop/internal/session"
)

func main() {
	// Load configuration.
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	app.SetupLogger(cfg.Log)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
		)
		if err != nil {
			log.Error().Err(err).Msg("failed to initialize New Relic")
		} else {
			log.Info().Str("app", cfg.NewRelic.AppName).Msg("New Relic enabled")
		}
	}

	if missing := cfg.Bakong.MissingMerchantFields(); len(missing) > 0 {
		log.Warn().Strs("missing", missing).Msg("KHQR generation disabled until merchant settings are provided")
	}
	if missing := cfg.Bakong.MissingAPIFields(); len(missing) > 0 {
		log.Warn().Strs("missing", missing).Msg("Bakong verification disabled until API settings are provided")
	}

	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()
	log.Info().Msg("connected to PostgreSQL")

	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info().Msg("connected to Redis")

	publisher, err := events.New(cfg.Events)
	if err != nil {
		// Events are best effort; checkouts keep working without them.
		log.Error().Err(err).Msg("failed to connect to RabbitMQ, events disabled")
		publisher = events.NopPublisher{}
	}
	defer publisher.Close()

	server, manager := wireServer(db, redisClient, publisher, nrApp, cfg)

	go func() {
		log.Info().Str("port", cfg.Server.Port).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	if err := manager.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("payment sessions did not stop in time")
	}
	if nrApp != nil {
		nrApp.Shutdown(5 * time.Second)
	}

	log.Info().Msg("server exited")
}

// wireServer wires all dependencies and returns the HTTP server and the session manager.
func wireServer(db *sql.DB, redisClient *redis.Client, publisher events.Publisher, nrApp *newrelic.Application, cfg *config.Config) (*http.Server, *session.Manager) {
	// Initialize Redis stores.
	cacheStore := internalRedis.NewCacheStore(redisClient)
	lockStore := internalRedis.NewLockStore(redisClient)
	idempotencyStore := internalRedis.NewIdempotencyStore(redisClient)

	// Initialize repositories.
	orderRepo := postgres.NewOrderRepository(db)

	// KHQR encoder and the payment switch client.
	encoder := khqr.NewEncoder(cfg.Bakong.Merchant(), khqr.WithTTL(cfg.Payment.QRTTL))
	verifier := bakong.NewCachingVerifier(bakong.NewClient(cfg.Bakong), cacheStore)

	hostname, _ := os.Hostname()
	manager := session.NewManager(encoder, verifier,
		session.WithTiming(session.Timing{
			TTL:              cfg.Payment.QRTTL,
			Tick:             cfg.Payment.CountdownTick,
			InitialPollDelay: cfg.Payment.InitialPollDelay,
			PollInterval:     cfg.Payment.PollInterval,
		}),
		session.WithLocker(lockStore, hostname+"-"+uuid.NewString()),
	)

	// Initialize services.
	notificationService := service.NewNotificationService(publisher)
	paymentService := service.NewPaymentService(encoder, verifier, cfg.Payment.DefaultCurrency)
	orderService := service.NewOrderService(orderRepo, cacheStore, notificationService)
	checkoutService := service.NewCheckoutService(manager, orderService, notificationService)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		KHQRHandler:      handler.NewKHQRHandler(paymentService),
		CheckoutHandler:  handler.NewCheckoutHandler(checkoutService),
		OrderHandler:     handler.NewOrderHandler(orderService),
		IdempotencyStore: idempotencyStore,
		AllowedOrigins:   cfg.Server.CORSAllowedOrigins,
		NewRelicApp:      nrApp,
	})

	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}, manager
}
