// Package payment gates lifecycle transitions on fee proofs. The gate is a
// deliberate trust boundary: it checks that a proof reference is present and
// that builder-requested amounts match the configured tier, but it does not
// verify the referenced ledger transaction's sender, recipient, or settled
// amount. Hardening that check against the ledger is the documented next
// step before any adversarial deployment.
package payment

import (
	"fmt"

	dErrors "jagga/pkg/domain-errors"
)

// Tier identifies who pays a fee and at which lifecycle stage.
type Tier string

const (
	TierCitizen Tier = "citizen"
	TierOfficer Tier = "officer"
	TierChief   Tier = "chief"
)

// ParseTier validates a client-supplied tier name.
func ParseTier(s string) (Tier, error) {
	switch t := Tier(s); t {
	case TierCitizen, TierOfficer, TierChief:
		return t, nil
	}
	return "", dErrors.New(dErrors.CodeValidation, "tier must be citizen, officer, or chief")
}

// Gate is a stateless validator over the three configured fee tiers.
type Gate struct {
	citizenLamports uint64
	officerLamports uint64
	chiefLamports   uint64
	treasuryWallet  string
}

// NewGate builds the gate from startup configuration.
func NewGate(citizen, officer, chief uint64, treasuryWallet string) *Gate {
	return &Gate{
		citizenLamports: citizen,
		officerLamports: officer,
		chiefLamports:   chief,
		treasuryWallet:  treasuryWallet,
	}
}

// RequireProof rejects a transition whose caller did not supply the tier's
// fee-proof reference.
func (g *Gate) RequireProof(tier Tier, proof string) error {
	if proof != "" {
		return nil
	}
	switch tier {
	case TierCitizen:
		return dErrors.New(dErrors.CodeValidation, "payment required: send the citizen fee first and include its transaction signature")
	case TierOfficer:
		return dErrors.New(dErrors.CodeValidation, "officer payment required: send the proposal fee first and include its transaction signature")
	case TierChief:
		return dErrors.New(dErrors.CodeValidation, "chief payment required: send the decision fee first and include its transaction signature")
	default:
		return dErrors.New(dErrors.CodeValidation, "payment proof required")
	}
}

// Amount returns the configured fee for a tier in lamports.
func (g *Gate) Amount(tier Tier) uint64 {
	switch tier {
	case TierCitizen:
		return g.citizenLamports
	case TierOfficer:
		return g.officerLamports
	case TierChief:
		return g.chiefLamports
	}
	return 0
}

// CheckAmount pins a transaction-builder request to the configured tier fee
// so a signing client cannot obtain a proof for the wrong amount through
// this service.
func (g *Gate) CheckAmount(tier Tier, lamports uint64) error {
	want := g.Amount(tier)
	if lamports != want {
		return dErrors.New(dErrors.CodeValidation,
			fmt.Sprintf("fee amount %d does not match the configured %s tier fee %d", lamports, tier, want))
	}
	return nil
}

// TreasuryWallet returns the configured treasury/escrow account.
func (g *Gate) TreasuryWallet() string { return g.treasuryWallet }
