package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"jagga/internal/audit"
)

// PostgresStore writes audit events to the outbox table. The outbox worker
// ships them to Kafka and stamps published_at.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("audit store: marshal event: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO outbox (id, topic, payload, created_at)
		VALUES ($1, $2, $3, $4)`,
		event.ID, audit.Topic, payload, time.Now())
	if err != nil {
		return fmt.Errorf("audit store: insert outbox entry: %w", err)
	}
	return nil
}

// Entry is one unpublished outbox row.
type Entry struct {
	ID      uuid.UUID
	Topic   string
	Payload []byte
}

// Unpublished returns up to limit unshipped entries, oldest first.
func (s *PostgresStore) Unpublished(ctx context.Context, limit int) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, topic, payload FROM outbox
		WHERE published_at IS NULL
		ORDER BY created_at ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("audit store: query unpublished: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Topic, &e.Payload); err != nil {
			return nil, fmt.Errorf("audit store: scan outbox entry: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// MarkPublished stamps entries after a successful Kafka produce.
func (s *PostgresStore) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE outbox SET published_at = now() WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("audit store: mark published: %w", err)
	}
	return nil
}
