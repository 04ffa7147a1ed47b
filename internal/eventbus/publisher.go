package eventbus

import (
	"context"
	"log"
	"time"

	"github.com/traffictacos/reservation-core/internal/store"
)

// OutboxDrainer periodically reads unpublished rows from the outbox
// and publishes them to the bus, marking each published on success.
// Running this as a separate loop (rather than publishing inline
// during the originating request) means a bus outage never blocks or
// fails the request that produced the event.
type OutboxDrainer struct {
	outbox   *store.OutboxRepo
	bus      Bus
	interval time.Duration
	batch    int
}

func NewOutboxDrainer(outbox *store.OutboxRepo, bus Bus, interval time.Duration) *OutboxDrainer {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &OutboxDrainer{outbox: outbox, bus: bus, interval: interval, batch: 100}
}

// Run drains the outbox on a ticker until ctx is cancelled.
func (d *OutboxDrainer) Run(ctx context.Context) {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.drainOnce(ctx)
		}
	}
}

func (d *OutboxDrainer) drainOnce(ctx context.Context) {
	events, err := d.outbox.FetchUnpublished(ctx, d.batch)
	if err != nil {
		log.Printf("outbox: fetch unpublished failed: %v", err)
		return
	}
	for _, e := range events {
		if err := d.bus.Publish(ctx, e.Topic, e.PartitionKey, e.Payload); err != nil {
			log.Printf("outbox: publish event %d (topic=%s) failed: %v", e.ID, e.Topic, err)
			continue
		}
		if err := d.outbox.MarkPublished(ctx, e.ID); err != nil {
			log.Printf("outbox: mark event %d published failed: %v", e.ID, err)
		}
	}
}
