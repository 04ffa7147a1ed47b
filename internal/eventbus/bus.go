// Package eventbus defines the publish/subscribe contract used to glue
// the payment engine, booking saga, and their event-driven consumers
// together, plus the RabbitMQ adapter implementing it.
package eventbus

import "context"

// Handler processes a single message body for a subscription. Returning
// an error causes the message to be retried (eventually dead-lettered);
// returning nil acks it.
type Handler func(ctx context.Context, body []byte) error

// Bus is the transport-agnostic event bus contract. Delivery is
// at-least-once; messages for the same partition key are delivered in
// FIFO order to a given consumer group as long as their handlers
// succeed. A message whose handler fails is republished to the tail of
// its queue, so it is redelivered after any messages published behind
// it in the meantime.
type Bus interface {
	// Publish sends payload to topic, routed by partitionKey so that
	// every message sharing a key lands on the same ordered queue.
	Publish(ctx context.Context, topic, partitionKey string, payload []byte) error

	// Subscribe registers handler against topic under consumerGroup.
	// It runs until ctx is cancelled. Each consumer group maintains an
	// independent cursor over the topic.
	Subscribe(ctx context.Context, topic, consumerGroup string, handler Handler) error

	// Close releases the underlying connection.
	Close() error
}
