package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/agentpay/agentpay-backend/internal/auth"
	entityapp "github.com/agentpay/agentpay-backend/internal/entity/application"
	entityhttp "github.com/agentpay/agentpay-backend/internal/entity/infrastructure/http"
	entitymem "github.com/agentpay/agentpay-backend/internal/entity/infrastructure/memory"
	entitypg "github.com/agentpay/agentpay-backend/internal/entity/infrastructure/postgres"
	"github.com/agentpay/agentpay-backend/internal/payment/application"
	paymenthttp "github.com/agentpay/agentpay-backend/internal/payment/infrastructure/http"
	paymentkafka "github.com/agentpay/agentpay-backend/internal/payment/infrastructure/kafka"
	paymentmem "github.com/agentpay/agentpay-backend/internal/payment/infrastructure/memory"
	paymentpg "github.com/agentpay/agentpay-backend/internal/payment/infrastructure/postgres"
	"github.com/agentpay/agentpay-backend/internal/provider/method"
	"github.com/agentpay/agentpay-backend/pkg/idempotency"
	"github.com/agentpay/agentpay-backend/pkg/keylock"
	"github.com/agentpay/agentpay-backend/pkg/logging"
	"github.com/agentpay/agentpay-backend/pkg/outbox"
	"github.com/agentpay/agentpay-backend/pkg/shutdown"
	"github.com/agentpay/agentpay-backend/pkg/tracing"
)

func main() {
	_ = godotenv.Load()
	log := logging.New()

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	// Configuration
	httpAddr := env("HTTP_ADDR", ":8000")
	pgURL := env("PG_URL", "")
	redisAddr := env("REDIS_ADDR", "")
	kafkaAddr := env("KAFKA_ADDR", "")
	jaeger := env("JAEGER_URL", "http://localhost:14268/api/traces")
	jwtSecret := env("JWT_SECRET", "your-super-secret-key")
	webhookSecret := env("WEBHOOK_SECRET", "")
	methodEnv := env("METHOD_ENVIRONMENT", "dev")
	methodKey := env("METHOD_API_KEY", "")
	outboxTopic := env("OUTBOX_TOPIC", "payment.events")

	tp, err := tracing.Init(ctx, "payment-service", jaeger, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(ctx) }()

	// Stores: postgres when configured, in-memory demo mode otherwise.
	var (
		paymentRepo application.PaymentRepository
		entityRepo  entityapp.EntityRepository
		storeMode   = "memory"
	)
	if pgURL != "" {
		pool, err := pgxpool.New(ctx, pgURL)
		if err != nil {
			log.Error("pg connect failed", "err", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := paymentpg.EnsureSchema(ctx, pool); err != nil {
			log.Error("payments schema setup failed", "err", err)
			os.Exit(1)
		}
		if err := entitypg.EnsureSchema(ctx, pool); err != nil {
			log.Error("entities schema setup failed", "err", err)
			os.Exit(1)
		}
		paymentRepo = paymentpg.NewRepository(log, pool)
		entityRepo = entitypg.NewRepository(log, pool)
		storeMode = "postgres"

		// Outbox relay publishes state changes to Kafka.
		if kafkaAddr != "" {
			writer := paymentkafka.NewWriter([]string{kafkaAddr})
			defer writer.Close()
			dispatch := outbox.NewDispatcher(log, writer, outboxTopic)
			store := paymentpg.NewOutboxStore(log, pool)
			relay := outbox.NewRelay(log, store, dispatch, "payment-service-relay")
			go func() {
				if err := relay.Run(ctx); err != nil {
					log.Error("relay stopped", "err", err)
				}
			}()
		}
	} else {
		paymentRepo = paymentmem.New()
		entityRepo = entitymem.New()
	}

	var idem application.IdempotencyStore
	if redisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
		idem = idempotency.NewRedisStore(rdb, 24*time.Hour)
	} else {
		idem = idempotency.NewMemoryStore()
	}

	var provider entityapp.ProviderClient
	if methodKey != "" {
		client, err := method.New(method.Config{APIKey: methodKey, Environment: methodEnv})
		if err != nil {
			log.Error("method client setup failed", "err", err)
			os.Exit(1)
		}
		provider = client
	}

	paymentSvc := application.NewService(paymentRepo, idem, keylock.New())
	entitySvc := entityapp.NewService(entityRepo, provider)

	verifier := auth.NewVerifier(jwtSecret)
	paymentHandler := paymenthttp.NewHandler(log, paymentSvc, methodEnv, webhookSecret)
	entityHandler := entityhttp.NewHandler(log, entitySvc, methodEnv)

	r := chi.NewRouter()
	r.Get("/api/health", healthHandler(storeMode, methodEnv))
	r.Mount("/webhooks", paymentHandler.WebhookRoutes())
	r.Route("/api", func(api chi.Router) {
		api.Use(verifier.Middleware)
		api.Mount("/payments", paymentHandler.PaymentRoutes())
		api.Mount("/simulations", paymentHandler.SimulationRoutes())
		api.Mount("/entities", entityHandler.EntityRoutes())
		api.Mount("/accounts", entityHandler.AccountRoutes())
	})

	srv := &http.Server{
		Addr:         httpAddr,
		Handler:      r,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("http listening", "addr", httpAddr, "store", storeMode, "environment", methodEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	log.Info("payment-service shutdown complete")
}

func healthHandler(storeMode, environment string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy","store":"` + storeMode + `","environment":"` + environment + `"}`))
	}
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
