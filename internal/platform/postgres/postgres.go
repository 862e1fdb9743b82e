// Package postgres owns the shared pgx pool and the registry schema.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool constructs a pgx connection pool using the provided connection string.
func NewPool(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	if connString == "" {
		return nil, fmt.Errorf("postgres: empty connection string")
	}

	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}

	return pgxpool.NewWithConfig(ctx, cfg)
}

// Schema is the full registry schema, applied idempotently at startup and by
// the integration test harness. title_no is assigned from a sequence with a
// unique constraint: two concurrent approvals can never share a title number.
const Schema = `
CREATE TABLE IF NOT EXISTS requests (
    id                    uuid PRIMARY KEY,
    request_type          text NOT NULL CHECK (request_type IN ('registration','transfer')),
    status                text NOT NULL DEFAULT 'pending'
                          CHECK (status IN ('pending','proposed','approved','rejected')),
    submitter_wallet      text NOT NULL,
    submitter_name        text NOT NULL,
    province              text,
    district              text,
    municipality          text,
    ward                  int,
    tole                  text,
    size_bigha            int,
    size_kattha           int,
    size_dhur             int,
    target_parcel_id      uuid,
    recipient_wallet      text,
    recipient_name        text,
    citizen_fee_proof     text NOT NULL,
    officer_fee_proof     text,
    chief_fee_proof       text,
    token_escrow_ref      text,
    reconciliation_state  text NOT NULL DEFAULT 'none'
                          CHECK (reconciliation_state IN ('none','pending','done','failed')),
    created_at            timestamptz NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS requests_status_idx ON requests (status);
CREATE INDEX IF NOT EXISTS requests_backfill_idx
    ON requests (submitter_wallet, submitter_name, created_at DESC)
    WHERE status = 'approved' AND request_type = 'registration';

CREATE SEQUENCE IF NOT EXISTS title_no_seq;

CREATE TABLE IF NOT EXISTS parcels (
    id               uuid PRIMARY KEY,
    title_no         bigint NOT NULL UNIQUE,
    owner_name       text NOT NULL,
    owner_wallet     text NOT NULL,
    province         text,
    district         text,
    municipality     text,
    ward             int,
    tole             text,
    size_bigha       int,
    size_kattha      int,
    size_dhur        int,
    document_hash    text,
    ledger_tx_ref    text,
    ledger_tx_state  text NOT NULL DEFAULT 'degraded'
                     CHECK (ledger_tx_state IN ('confirmed','degraded')),
    token_ref        text,
    origin_request_id uuid,
    citizen_tx_sig   text,
    officer_tx_sig   text,
    chief_tx_sig     text,
    status           text NOT NULL DEFAULT 'registered',
    created_at       timestamptz NOT NULL DEFAULT now(),
    updated_at       timestamptz NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS parcels_owner_idx ON parcels (owner_wallet);

CREATE TABLE IF NOT EXISTS outbox (
    id            uuid PRIMARY KEY,
    topic         text NOT NULL,
    payload       jsonb NOT NULL,
    published_at  timestamptz,
    created_at    timestamptz NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS outbox_unpublished_idx
    ON outbox (created_at) WHERE published_at IS NULL;
`

// EnsureSchema applies the schema. Every statement is idempotent.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("postgres: ensure schema: %w", err)
	}
	return nil
}
