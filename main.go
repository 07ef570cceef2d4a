package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"checkout-server/config"
	"checkout-server/database"
	"checkout-server/internal/api/admin"
	"checkout-server/internal/api/billing"
	"checkout-server/internal/api/landing"
	stripewebhooks "checkout-server/internal/api/stripewebhook"
	routes "checkout-server/internal/app/http"
	"checkout-server/internal/app/saga"
	"checkout-server/internal/infra/ledger"
	"checkout-server/internal/infra/logging"
	"checkout-server/internal/infra/rabbitmq"
	stripeinfra "checkout-server/internal/infra/stripe"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	// gin.SetMode(gin.ReleaseMode) uncomment only in production
	cfg := config.MustLoad()

	logger, stopLogger := logging.New(cfg.LogLevel, cfg.LokiURL)
	defer stopLogger()
	slog.SetDefault(logger)

	store, closeStore := openLedger(cfg, logger)
	defer closeStore()

	publisher := rabbitmq.Connect(cfg.RabbitMQURL, cfg.EventsExchange, logger)
	defer publisher.Close()

	provider := stripeinfra.NewProvider(stripeinfra.Options{
		SecretKey: cfg.StripeSecretKey,
		APIURL:    cfg.StripeAPIURL,
		Logger:    logger,
	})
	orchestrator := saga.New(cfg, provider, store, publisher, logger)

	landingHandler, err := landing.NewHandler(cfg.Offer)
	if err != nil {
		log.Fatalf("Failed to render offer page: %v", err)
	}

	r := gin.Default()

	if cfg.CORSOrigin != "" {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     []string{cfg.CORSOrigin},
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			ExposeHeaders:    []string{"Content-Length"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	routes.RegisterRoutes(r, routes.Handlers{
		Landing:        landingHandler,
		Billing:        billing.NewHandler(orchestrator),
		Webhook:        stripewebhooks.NewHandler(stripeinfra.NewVerifier(cfg.StripeWebhookSecret), orchestrator, logger),
		Admin:          admin.NewHandler(store),
		AdminJWTSecret: cfg.AdminJWTSecret,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

// openLedger picks postgres, then redis, then the in-process store.
func openLedger(cfg *config.Config, logger *slog.Logger) (ledger.Store, func()) {
	switch {
	case cfg.DBURL != "":
		db, err := database.Open(cfg.DBURL)
		if err != nil {
			log.Fatalf("Database error: %v", err)
		}
		logger.Info("event ledger: postgres")
		return ledger.NewGorm(db), func() { _ = database.Close(db) }

	case cfg.RedisURL != "":
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Invalid REDIS_URL: %v", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("Redis unreachable: %v", err)
		}
		logger.Info("event ledger: redis")
		return ledger.NewRedis(client), func() { _ = client.Close() }

	default:
		logger.Warn("event ledger: in-memory, duplicates are only detected within this process")
		return ledger.NewMemory(), func() {}
	}
}
