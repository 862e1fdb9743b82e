package request

import (
	"time"

	"jagga/pkg/domain"
)

// Type distinguishes what a citizen is asking for.
type Type string

const (
	TypeRegistration Type = "registration"
	TypeTransfer     Type = "transfer"
)

// Valid reports whether t is a known request type.
func (t Type) Valid() bool { return t == TypeRegistration || t == TypeTransfer }

// Status is the lifecycle state. Transitions only move forward:
// pending -> proposed -> approved | rejected.
type Status string

const (
	StatusPending  Status = "pending"
	StatusProposed Status = "proposed"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool { return s == StatusApproved || s == StatusRejected }

// CanTransition encodes the fixed three-stage approval chain.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusProposed
	case StatusProposed:
		return to == StatusApproved || to == StatusRejected
	default:
		return false
	}
}

// ReconciliationState tracks whether the ledger/registry side effects of a
// decision have been applied. Persisted with the decision so a crash between
// the status commit and the ledger work is detectable and resumable.
type ReconciliationState string

const (
	ReconcileNone    ReconciliationState = "none"
	ReconcilePending ReconciliationState = "pending"
	ReconcileDone    ReconciliationState = "done"
	ReconcileFailed  ReconciliationState = "failed"
)

// Location is the descriptive address of a parcel (registration requests).
type Location struct {
	Province     string `json:"province"`
	District     string `json:"district"`
	Municipality string `json:"municipality"`
	Ward         int    `json:"ward"`
	Tole         string `json:"tole"`
}

// Size is the parcel area in traditional units (registration requests).
type Size struct {
	Bigha  int `json:"bigha"`
	Kattha int `json:"kattha"`
	Dhur   int `json:"dhur"`
}

// Request is one submitted registration or transfer action moving through
// the approval chain. The three fee-proof fields are append-only: once set
// they are never cleared or overwritten by a later transition.
type Request struct {
	ID              domain.RequestID
	Type            Type
	Status          Status
	SubmitterWallet string
	SubmitterName   string

	// Registration payload.
	Location Location
	Size     Size

	// Transfer payload.
	TargetParcelID  domain.ParcelID
	RecipientWallet string
	RecipientName   string

	// Proof-of-payment references, one per approval stage.
	CitizenFeeProof string
	OfficerFeeProof string
	ChiefFeeProof   string

	// TokenEscrowRef records a real token transfer into treasury custody
	// made at submission time (transfer requests only, optional).
	TokenEscrowRef string

	ReconciliationState ReconciliationState
	CreatedAt           time.Time
}
