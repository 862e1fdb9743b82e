// Package worker ships outbox entries to Kafka.
package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"

	"jagga/internal/audit/store"
)

// Producer is the franz-go surface the worker needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Worker polls the outbox and publishes entries, marking them published only
// after Kafka acknowledges. At-least-once: a crash between produce and mark
// re-ships on the next pass; consumers de-duplicate on event id.
type Worker struct {
	outbox   *store.PostgresStore
	producer Producer
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

func New(outbox *store.PostgresStore, producer Producer, logger *slog.Logger) *Worker {
	return &Worker{
		outbox:   outbox,
		producer: producer,
		logger:   logger,
		interval: 2 * time.Second,
		batch:    100,
	}
}

// NewKafkaClient builds the franz-go producer for the audit topic.
func NewKafkaClient(brokers []string) (*kgo.Client, error) {
	return kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.AllowAutoTopicCreation(),
	)
}

// Run polls until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.shipBatch(ctx); err != nil {
				w.logger.WarnContext(ctx, "outbox shipment failed", "error", err)
			}
		}
	}
}

func (w *Worker) shipBatch(ctx context.Context) error {
	entries, err := w.outbox.Unpublished(ctx, w.batch)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return nil
	}

	records := make([]*kgo.Record, 0, len(entries))
	for _, e := range entries {
		records = append(records, &kgo.Record{
			Topic: e.Topic,
			Key:   []byte(e.ID.String()),
			Value: e.Payload,
		})
	}
	if err := w.producer.ProduceSync(ctx, records...).FirstErr(); err != nil {
		return err
	}

	ids := make([]uuid.UUID, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	return w.outbox.MarkPublished(ctx, ids)
}
