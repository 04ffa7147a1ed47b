// Command worker runs the event-bus consumers that drive the payment
// engine and the booking saga's payment-result handling.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/traffictacos/reservation-core/internal/config"
	"github.com/traffictacos/reservation-core/internal/eventbus"
	"github.com/traffictacos/reservation-core/internal/lockstore"
	"github.com/traffictacos/reservation-core/internal/observability"
	"github.com/traffictacos/reservation-core/internal/payment"
	"github.com/traffictacos/reservation-core/internal/reservation"
	"github.com/traffictacos/reservation-core/internal/saga"
	"github.com/traffictacos/reservation-core/internal/store"
)

const consumerGroup = "reservation-core-worker"

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

	redisClient := redis.NewClient(&redis.Options{
		Addr:         cfg.Redis.Addr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}

	metrics := observability.NewMetrics()

	bus, err := eventbus.NewRabbitBus(cfg.RabbitMQ.URL, cfg.RabbitMQ.PublishRetries, cfg.RabbitMQ.ConsumerDLQAfter, cfg.RabbitMQ.Prefetch, metrics)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer bus.Close()

	lockStore := lockstore.NewRedisStore(redisClient)
	seatLocker := reservation.NewSeatLocker(lockStore).WithMetrics(metrics)

	bookingRepo := store.NewBookingRepo(pgPool)
	transactionRepo := store.NewTransactionRepo(pgPool)
	outboxRepo := store.NewOutboxRepo(pgPool)

	bookingSaga := saga.NewSaga(bookingRepo, outboxRepo, seatLocker, cfg.Reservation.BookingExpiry).WithMetrics(metrics)
	gateway := payment.NewStochasticGateway(cfg.Reservation.PaymentFailureRate)
	engine := payment.NewEngine(transactionRepo, outboxRepo, gateway).WithMetrics(metrics)

	go observability.StartMetricsServer(ctx, cfg.Observability.MetricsPort+1)
	go runPaymentSweep(ctx, engine, cfg.Reservation.GatewayTimeout, cfg.Reservation.ExpirySweepInterval)

	go runConsumer(ctx, bus, eventbus.TopicBookingCreated, func(ctx context.Context, body []byte) error {
		var ev eventbus.BookingCreated
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal booking.created: %w", err)
		}
		chargeCtx, cancel := context.WithTimeout(ctx, cfg.Reservation.GatewayTimeout)
		defer cancel()
		_, err := engine.Process(chargeCtx, ev.BookingID, ev.UserID, ev.AmountCents, ev.Currency)
		return err
	})

	go runConsumer(ctx, bus, eventbus.TopicPaymentSuccess, func(ctx context.Context, body []byte) error {
		var ev eventbus.PaymentSuccess
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal payment.success: %w", err)
		}
		return bookingSaga.OnPaymentSuccess(ctx, ev.BookingID)
	})

	go runConsumer(ctx, bus, eventbus.TopicPaymentFailed, func(ctx context.Context, body []byte) error {
		var ev eventbus.PaymentFailed
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("unmarshal payment.failed: %w", err)
		}
		return bookingSaga.OnPaymentFailed(ctx, ev.BookingID)
	})

	log.Println("worker consumers started")
	<-ctx.Done()
	log.Println("worker shutting down")
}

func runConsumer(ctx context.Context, bus eventbus.Bus, topic string, handler eventbus.Handler) {
	if err := bus.Subscribe(ctx, topic, consumerGroup, handler); err != nil && ctx.Err() == nil {
		log.Printf("consumer for %s stopped: %v", topic, err)
	}
}

// runPaymentSweep periodically resolves Transactions left PENDING by a
// GATEWAY_TIMEOUT, querying the gateway for their real outcome instead
// of leaving a charge that may have actually succeeded stuck forever.
func runPaymentSweep(ctx context.Context, engine *payment.Engine, staleAfter, interval time.Duration) {
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
			resolved, err := engine.Sweep(ctx, staleAfter)
			if err != nil {
				log.Printf("payment sweep failed: %v", err)
				continue
			}
			if resolved > 0 {
				log.Printf("payment sweep resolved %d stale pending transactions", resolved)
			}
		}
	}
}
