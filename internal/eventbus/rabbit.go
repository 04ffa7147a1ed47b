package eventbus

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	exchangeName    = "reservation.events"
	dlxExchangeName = "reservation.events.dlq"
	retryCountHdr   = "x-retry-count"

	numShards = 8
)

// rabbitBus implements Bus on top of a single long-lived AMQP
// connection. RabbitMQ has no native per-key partition concept, so
// per-bookingId FIFO is approximated here by hashing the partition key
// onto a fixed set of shard queues and pinning exactly one consumer
// (prefetch 1) per shard — every message for a given booking always
// lands on, and is processed serially from, the same shard.
type rabbitBus struct {
	conn             *amqp.Connection
	pubCh            *amqp.Channel
	publishRetries   int
	consumerDLQAfter int
	prefetch         int
	metrics          Recorder
}

// Recorder receives event-bus transport metrics. *observability.Metrics
// satisfies this implicitly.
type Recorder interface {
	RecordPublish(topic, outcome string)
	RecordConsume(topic, outcome string)
	RecordDeadLettered(topic string)
}

type noopRecorder struct{}

func (noopRecorder) RecordPublish(string, string)  {}
func (noopRecorder) RecordConsume(string, string)  {}
func (noopRecorder) RecordDeadLettered(string)     {}

// NewRabbitBus dials url and declares the shared exchanges. Publishing
// and consuming both go through this single adapter instance. A nil
// metrics recorder is replaced with a no-op.
func NewRabbitBus(url string, publishRetries, consumerDLQAfter, prefetch int, metrics Recorder) (Bus, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("eventbus: dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("eventbus: open publish channel: %w", err)
	}

	if err := declareTopology(ch); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}

	if publishRetries <= 0 {
		publishRetries = 5
	}
	if consumerDLQAfter <= 0 {
		consumerDLQAfter = 10
	}
	if prefetch <= 0 {
		prefetch = 1
	}

	if metrics == nil {
		metrics = noopRecorder{}
	}

	return &rabbitBus{
		conn:             conn,
		pubCh:            ch,
		publishRetries:   publishRetries,
		consumerDLQAfter: consumerDLQAfter,
		prefetch:         prefetch,
		metrics:          metrics,
	}, nil
}

func declareTopology(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(exchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("eventbus: declare exchange: %w", err)
	}
	if err := ch.ExchangeDeclare(dlxExchangeName, "direct", true, false, false, false, nil); err != nil {
		return fmt.Errorf("eventbus: declare dlx exchange: %w", err)
	}
	return nil
}

func shardFor(partitionKey string, shards int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(partitionKey))
	return int(h.Sum32()) % shards
}

func routingKey(topic string, shard int) string {
	return fmt.Sprintf("%s.%d", topic, shard)
}

func queueName(topic, consumerGroup string, shard int) string {
	return fmt.Sprintf("%s.%s.%d", topic, consumerGroup, shard)
}

// Publish routes payload to the shard queue owning partitionKey, with
// bounded exponential-backoff retries on transport failure.
func (b *rabbitBus) Publish(ctx context.Context, topic, partitionKey string, payload []byte) error {
	shard := shardFor(partitionKey, numShards)
	key := routingKey(topic, shard)

	backoff := 100 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt < b.publishRetries; attempt++ {
		err := b.pubCh.PublishWithContext(ctx, exchangeName, key, false, false, amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now().UTC(),
			Body:         payload,
			Headers:      amqp.Table{retryCountHdr: int32(0)},
		})
		if err == nil {
			b.metrics.RecordPublish(topic, "success")
			return nil
		}
		lastErr = err
		log.Printf("eventbus: publish attempt %d/%d to %s failed: %v", attempt+1, b.publishRetries, topic, err)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}
	b.metrics.RecordPublish(topic, "error")
	return fmt.Errorf("eventbus: publish to %s exhausted retries: %w", topic, lastErr)
}

// Subscribe declares and binds every shard queue for (topic,
// consumerGroup) and runs one consume loop per shard, each in its own
// goroutine, preserving per-partition FIFO. It reconnects with backoff
// on channel failure and returns only when ctx is cancelled.
func (b *rabbitBus) Subscribe(ctx context.Context, topic, consumerGroup string, handler Handler) error {
	for shard := 0; shard < numShards; shard++ {
		shard := shard
		go b.consumeShard(ctx, topic, consumerGroup, shard, handler)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (b *rabbitBus) consumeShard(ctx context.Context, topic, consumerGroup string, shard int, handler Handler) {
	backoff := time.Second
	for {
		if ctx.Err() != nil {
			return
		}
		if err := b.consumeShardOnce(ctx, topic, consumerGroup, shard, handler); err != nil {
			log.Printf("eventbus: shard %s/%d consume loop ended: %v; reconnecting in %s", topic, shard, err, backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second
	}
}

func (b *rabbitBus) consumeShardOnce(ctx context.Context, topic, consumerGroup string, shard int, handler Handler) error {
	ch, err := b.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(b.prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	qname := queueName(topic, consumerGroup, shard)
	dlqName := qname + ".dlq"

	if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare dlq: %w", err)
	}
	if err := ch.QueueBind(dlqName, dlqName, dlxExchangeName, false, nil); err != nil {
		return fmt.Errorf("bind dlq: %w", err)
	}

	if _, err := ch.QueueDeclare(qname, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(qname, routingKey(topic, shard), exchangeName, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	msgs, err := ch.Consume(qname, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			b.handleDelivery(ctx, ch, d, topic, routingKey(topic, shard), dlqName, handler)
		}
	}
}

// handleDelivery processes a single delivery. A retryable failure is
// never requeued via the native Nack(requeue=true): RabbitMQ redelivers
// the original message unchanged, headers included, so the retry count
// would never advance and a poisoned message would block its shard
// forever. Instead the retry count is incremented and the message is
// explicitly republished to the same routing key, then the original is
// acked.
func (b *rabbitBus) handleDelivery(ctx context.Context, ch *amqp.Channel, d amqp.Delivery, topic, key, dlqName string, handler Handler) {
	if err := handler(ctx, d.Body); err != nil {
		retries := retryCount(d.Headers) + 1
		if retries >= b.consumerDLQAfter {
			log.Printf("eventbus: message exceeded %d retries, routing to %s: %v", b.consumerDLQAfter, dlqName, err)
			_ = ch.PublishWithContext(ctx, dlxExchangeName, dlqName, false, false, amqp.Publishing{
				ContentType:  d.ContentType,
				DeliveryMode: amqp.Persistent,
				Body:         d.Body,
				Headers:      amqp.Table{retryCountHdr: retries},
			})
			b.metrics.RecordDeadLettered(topic)
			_ = d.Ack(false)
			return
		}
		log.Printf("eventbus: delivery failed (retry %d/%d) on %s: %v", retries, b.consumerDLQAfter, topic, err)
		_ = ch.PublishWithContext(ctx, exchangeName, key, false, false, amqp.Publishing{
			ContentType:  d.ContentType,
			DeliveryMode: amqp.Persistent,
			Body:         d.Body,
			Headers:      amqp.Table{retryCountHdr: retries},
		})
		b.metrics.RecordConsume(topic, "retry")
		_ = d.Ack(false)
		return
	}
	b.metrics.RecordConsume(topic, "success")
	_ = d.Ack(false)
}

func retryCount(headers amqp.Table) int32 {
	if headers == nil {
		return 0
	}
	if v, ok := headers[retryCountHdr]; ok {
		if n, ok := v.(int32); ok {
			return n
		}
	}
	return 0
}

func (b *rabbitBus) Close() error {
	if err := b.pubCh.Close(); err != nil {
		log.Printf("eventbus: close publish channel: %v", err)
	}
	return b.conn.Close()
}
