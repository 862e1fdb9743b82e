package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and the ledger adapter
// return these (optionally wrapped) so services can translate them into
// coded domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in store
// - ErrConflict: unique constraint or concurrent-update collision
// - ErrInvalidState: entity in wrong state for requested operation
// - ErrUnavailable: ledger endpoint not configured or unreachable
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
