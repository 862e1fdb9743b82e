// Package store persists lifecycle requests. Implementations return
// sentinel errors; the service translates them into coded domain errors.
package store

import (
	"context"

	"jagga/internal/request"
	"jagga/pkg/domain"
)

// TransitionUpdate is a compare-and-set status advance. Expected guards the
// update: the row is only touched while still in that status, so two racing
// transitions cannot both win. Proof is written only if the stage's proof
// field is still empty (append-only invariant).
type TransitionUpdate struct {
	Expected Status
	Next     Status
	Proof    string
	// MarkReconcilePending is set by Decide so the status and the
	// reconciliation marker commit atomically.
	MarkReconcilePending bool
}

// Aliases keep the update type readable without importing request twice.
type Status = request.Status

// Counts aggregates queue numbers for the stats endpoint.
type Counts struct {
	Pending              int
	Proposed             int
	Approved             int
	PendingRegistrations int
	PendingTransfers     int
}

type Store interface {
	Create(ctx context.Context, req *request.Request) error
	FindByID(ctx context.Context, id domain.RequestID) (*request.Request, error)
	// List returns all requests, newest first.
	List(ctx context.Context) ([]*request.Request, error)
	// ApplyTransition performs the compare-and-set advance and returns the
	// updated request. sentinel.ErrInvalidState when the status moved
	// underneath us, sentinel.ErrNotFound when the id is unknown.
	ApplyTransition(ctx context.Context, id domain.RequestID, upd TransitionUpdate) (*request.Request, error)
	SetReconciliationState(ctx context.Context, id domain.RequestID, state request.ReconciliationState) error
	// ListUnreconciled returns decided requests whose reconciliation marker
	// is still pending or failed, oldest first.
	ListUnreconciled(ctx context.Context) ([]*request.Request, error)
	// LatestApprovedRegistration finds the most recent approved
	// registration for a wallet/name pair; used by the provenance backfill.
	LatestApprovedRegistration(ctx context.Context, wallet, name string) (*request.Request, error)
	Counts(ctx context.Context) (Counts, error)
}
