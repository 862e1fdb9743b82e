// Package store persists parcels. Implementations return sentinel errors;
// services translate them into coded domain errors.
package store

import (
	"context"

	"jagga/internal/ledger"
	"jagga/internal/registry"
	"jagga/pkg/domain"
)

type Store interface {
	// NextTitleNo atomically allocates the next title number. Backed by a
	// database sequence; two concurrent approvals can never share one.
	NextTitleNo(ctx context.Context) (int64, error)
	// Create inserts a parcel. sentinel.ErrConflict on a title number
	// collision.
	Create(ctx context.Context, p *registry.Parcel) error
	FindByID(ctx context.Context, id domain.ParcelID) (*registry.Parcel, error)
	// FindByOriginRequest locates the parcel created for a registration
	// request, if any. Used to keep reconciliation retries idempotent.
	FindByOriginRequest(ctx context.Context, reqID domain.RequestID) (*registry.Parcel, error)
	// List returns all parcels, newest first.
	List(ctx context.Context) ([]*registry.Parcel, error)
	ListByOwner(ctx context.Context, ownerWallet string) ([]*registry.Parcel, error)
	// UpdateOwner applies an approved transfer: owner fields and the ledger
	// reference change, location and size never do. Bumps updated_at.
	UpdateOwner(ctx context.Context, id domain.ParcelID, ownerName, ownerWallet string, tx ledger.Ref) error
	// BackfillProvenance fills only the signature fields that are still
	// empty; populated fields are never overwritten.
	BackfillProvenance(ctx context.Context, id domain.ParcelID, prov registry.Provenance) error
	Count(ctx context.Context) (int, error)
}
