// Package audit emits lifecycle events through a transactional outbox. The
// outbox worker publishes them to Kafka for operational consumers. This
// stream is separate from the on-ledger memo trail: memos are the public
// record, the Kafka stream is ops.
package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Actions recorded by the registry.
const (
	ActionRequestCreated    = "request.created"
	ActionRequestProposed   = "request.proposed"
	ActionRequestDecided    = "request.decided"
	ActionParcelRegistered  = "parcel.registered"
	ActionParcelTransferred = "parcel.transferred"
)

// Topic is the Kafka topic the outbox worker publishes to.
const Topic = "registry.audit"

// Event is one audit record.
type Event struct {
	ID        uuid.UUID `json:"id"`
	Action    string    `json:"action"`
	RequestID string    `json:"requestId,omitempty"`
	ParcelID  string    `json:"parcelId,omitempty"`
	Decision  string    `json:"decision,omitempty"`
	Wallet    string    `json:"wallet,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Store appends events to the outbox.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Publisher is what services emit through.
type Publisher interface {
	Emit(ctx context.Context, event Event)
}

// OutboxPublisher writes events to the outbox store, fail-open: a failed
// append is logged and dropped rather than failing the business operation.
type OutboxPublisher struct {
	store  Store
	logger *slog.Logger
}

func NewOutboxPublisher(store Store, logger *slog.Logger) *OutboxPublisher {
	return &OutboxPublisher{store: store, logger: logger}
}

func (p *OutboxPublisher) Emit(ctx context.Context, event Event) {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := p.store.Append(ctx, event); err != nil {
		p.logger.ErrorContext(ctx, "audit append failed",
			"action", event.Action,
			"error", err,
		)
	}
}

// NopPublisher discards events; used when no outbox is configured and in
// unit tests that don't assert on auditing.
type NopPublisher struct{}

func (NopPublisher) Emit(context.Context, Event) {}
