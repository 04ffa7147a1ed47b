// Command server hosts the HTTP API surface, the Prometheus metrics
// endpoint, and the booking expiry sweep.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/traffictacos/reservation-core/internal/config"
	"github.com/traffictacos/reservation-core/internal/eventbus"
	"github.com/traffictacos/reservation-core/internal/httpapi"
	"github.com/traffictacos/reservation-core/internal/lockstore"
	"github.com/traffictacos/reservation-core/internal/observability"
	"github.com/traffictacos/reservation-core/internal/payment"
	"github.com/traffictacos/reservation-core/internal/reservation"
	"github.com/traffictacos/reservation-core/internal/saga"
	"github.com/traffictacos/reservation-core/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgPool, err := store.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pgPool.Close()
	log.Println("postgres connected")

	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: 10,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	log.Println("redis connected")

	metrics := observability.NewMetrics()

	bus, err := eventbus.NewRabbitBus(cfg.RabbitMQ.URL, cfg.RabbitMQ.PublishRetries, cfg.RabbitMQ.ConsumerDLQAfter, cfg.RabbitMQ.Prefetch, metrics)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer bus.Close()
	log.Println("rabbitmq connected")
	if cfg.Observability.TracingEnabled {
		shutdownTracer, err := observability.InitTracer(ctx, cfg.Observability.ServiceName, cfg.Observability.OTLPEndpoint)
		if err != nil {
			log.Printf("tracing disabled: failed to init tracer: %v", err)
		} else {
			defer func() { _ = shutdownTracer(context.Background()) }()
		}
	}

	lockStore := lockstore.NewRedisStore(redisClient)
	seatLocker := reservation.NewSeatLocker(lockStore).WithMetrics(metrics)
	tatkal := reservation.NewTatkalCounter(lockStore).WithMetrics(metrics)

	bookingRepo := store.NewBookingRepo(pgPool)
	transactionRepo := store.NewTransactionRepo(pgPool)
	outboxRepo := store.NewOutboxRepo(pgPool)

	bookingSaga := saga.NewSaga(bookingRepo, outboxRepo, seatLocker, cfg.Reservation.BookingExpiry).WithMetrics(metrics)

	invHandlers := httpapi.NewInventoryHandlers(seatLocker, tatkal, cfg.Reservation.LockTTL)
	bookingHandlers := httpapi.NewBookingHandlers(bookingSaga, bookingRepo)
	paymentHandlers := httpapi.NewPaymentHandlers(transactionRepo)

	router := httpapi.NewRouter(invHandlers, bookingHandlers, paymentHandlers, pgPool, redisClient, cfg.Reservation.GatewayTimeout)

	srv := &http.Server{
		Addr:         cfg.Server.ServerAddr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go observability.StartMetricsServer(ctx, cfg.Observability.MetricsPort)

	drainer := eventbus.NewOutboxDrainer(outboxRepo, bus, 2*time.Second)
	go drainer.Run(ctx)

	go runExpirySweep(ctx, bookingSaga, cfg.Reservation.ExpirySweepInterval)

	go func() {
		log.Printf("server listening on %s", cfg.Server.ServerAddr())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("server forced to shutdown: %v", err)
	}
	log.Println("server gracefully stopped")
	_ = os.Stdout.Sync()
}

func runExpirySweep(ctx context.Context, s *saga.Saga, interval time.Duration) {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			swept, err := s.ExpireSweep(ctx)
			if err != nil {
				log.Printf("expiry sweep failed: %v", err)
				continue
			}
			if swept > 0 {
				log.Printf("expiry sweep expired %d bookings", swept)
			}
		}
	}
}
