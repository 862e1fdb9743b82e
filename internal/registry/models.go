// Package registry holds the canonical parcel records derived from approved
// requests.
package registry

import (
	"time"

	"jagga/internal/ledger"
	"jagga/internal/request"
	"jagga/pkg/domain"
)

// Parcel is one registered land title. Location and size are copied from the
// originating registration request at creation and never change afterwards;
// transfers change the owner, not the parcel.
type Parcel struct {
	ID          domain.ParcelID
	TitleNo     int64
	OwnerName   string
	OwnerWallet string
	Location    request.Location
	Size        request.Size

	DocumentHash string
	// LedgerTx references the most recent ledger transaction affecting this
	// parcel (mint or transfer); Degraded when it is a placeholder.
	LedgerTx ledger.Ref
	// TokenRef is the title token's mint address; empty when token issuance
	// failed and the parcel exists off-ledger only.
	TokenRef string

	// Provenance chain: the three ledger signatures that authorized this
	// parcel's registration. Write-once per field, backfillable.
	CitizenTxSig string
	OfficerTxSig string
	ChiefTxSig   string

	// OriginRequestID links back to the approved registration request when
	// known; older records may lack it and rely on the backfill query.
	OriginRequestID domain.RequestID

	Status    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// StatusRegistered is the only parcel status in the normal flow.
const StatusRegistered = "registered"

// Provenance is the signature triple served by the read path.
type Provenance struct {
	CitizenTxSig string `json:"citizenTxSig"`
	OfficerTxSig string `json:"officerProposalTxSig"`
	ChiefTxSig   string `json:"chiefDecisionTxSig"`
}

// Complete reports whether all three signatures are present.
func (p Provenance) Complete() bool {
	return p.CitizenTxSig != "" && p.OfficerTxSig != "" && p.ChiefTxSig != ""
}
