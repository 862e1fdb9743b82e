package service

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"jagga/internal/ledger"
	"jagga/internal/registry"
	"jagga/internal/registry/store"
	"jagga/internal/request"
	reqstore "jagga/internal/request/store"
	"jagga/pkg/domain"
	dErrors "jagga/pkg/domain-errors"
)

// fakeLedger mints deterministic refs and records transfer calls. Setting
// degraded simulates an unreachable ledger: operations return placeholder
// refs instead of failing.
type fakeLedger struct {
	degraded  bool
	mints     int
	transfers []string
	memos     []string
}

func (f *fakeLedger) Configured() bool        { return !f.degraded }
func (f *fakeLedger) AuthorityWallet() string { return "AuthorityWa11et" }

func (f *fakeLedger) MintTitleToken(_ context.Context, _ string, meta ledger.TokenMetadata) (ledger.Ref, ledger.Ref) {
	f.mints++
	if f.degraded {
		return ledger.Ref{}, ledger.Degraded()
	}
	return ledger.Confirmed(fmt.Sprintf("Mint%d", meta.TitleNo)),
		ledger.Confirmed(fmt.Sprintf("mintSig%d", meta.TitleNo))
}

func (f *fakeLedger) TransferTitleToken(_ context.Context, tokenRef, from, to string) ledger.Ref {
	f.transfers = append(f.transfers, tokenRef+":"+from+":"+to)
	if f.degraded {
		return ledger.Degraded()
	}
	return ledger.Confirmed("transferSig" + tokenRef)
}

func (f *fakeLedger) WriteMemo(_ context.Context, text string) ledger.Ref {
	f.memos = append(f.memos, text)
	if f.degraded {
		return ledger.Degraded()
	}
	return ledger.Confirmed("memoSig")
}

type ReconcilerSuite struct {
	suite.Suite
	ctx      context.Context
	parcels  *store.InMemoryStore
	requests *reqstore.InMemoryStore
	ledger   *fakeLedger
	service  *Service
}

func TestReconcilerSuite(t *testing.T) {
	suite.Run(t, new(ReconcilerSuite))
}

func (s *ReconcilerSuite) SetupTest() {
	s.ctx = context.Background()
	s.parcels = store.NewInMemoryStore()
	s.requests = reqstore.NewInMemoryStore()
	s.ledger = &fakeLedger{}
	s.service = New(s.parcels, s.ledger, s.requests, slog.Default())
}

// SetupSubTest gives every s.Run subtest fresh fixtures: the subtests assert
// absolute counts (s.Len, s.Empty) and must not see siblings' state.
func (s *ReconcilerSuite) SetupSubTest() {
	s.SetupTest()
}

func (s *ReconcilerSuite) approvedRegistration() *request.Request {
	return &request.Request{
		ID:              domain.NewRequestID(),
		Type:            request.TypeRegistration,
		Status:          request.StatusApproved,
		SubmitterWallet: "OwnerWa11et",
		SubmitterName:   "Sita Sharma",
		Location:        request.Location{Province: "Bagmati", District: "Kathmandu", Municipality: "KMC", Ward: 7, Tole: "Patan"},
		Size:            request.Size{Kattha: 4},
		CitizenFeeProof: "citizenSig",
		OfficerFeeProof: "officerSig",
		ChiefFeeProof:   "chiefSig",
	}
}

func (s *ReconcilerSuite) registerParcel() *registry.Parcel {
	req := s.approvedRegistration()
	s.Require().NoError(s.service.ReconcileDecision(s.ctx, req))
	parcel, err := s.parcels.FindByOriginRequest(s.ctx, req.ID)
	s.Require().NoError(err)
	return parcel
}

func (s *ReconcilerSuite) TestApprovedRegistration() {
	s.Run("creates a parcel with token, ledger ref, and the full provenance triple", func() {
		req := s.approvedRegistration()
		s.Require().NoError(s.service.ReconcileDecision(s.ctx, req))

		parcel, err := s.parcels.FindByOriginRequest(s.ctx, req.ID)
		s.Require().NoError(err)
		s.Equal(int64(1), parcel.TitleNo)
		s.Equal("Sita Sharma", parcel.OwnerName)
		s.Equal("OwnerWa11et", parcel.OwnerWallet)
		s.Equal(registry.StatusRegistered, parcel.Status)
		s.True(parcel.LedgerTx.IsConfirmed())
		s.Equal("Mint1", parcel.TokenRef)
		s.Equal("citizenSig", parcel.CitizenTxSig)
		s.Equal("officerSig", parcel.OfficerTxSig)
		s.Equal("chiefSig", parcel.ChiefTxSig)
		s.NotEmpty(parcel.DocumentHash)
	})

	s.Run("allocates distinct title numbers across registrations", func() {
		first := s.registerParcel()
		second := s.registerParcel()
		s.NotEqual(first.TitleNo, second.TitleNo)
	})

	s.Run("is idempotent per request", func() {
		req := s.approvedRegistration()
		s.Require().NoError(s.service.ReconcileDecision(s.ctx, req))
		s.Require().NoError(s.service.ReconcileDecision(s.ctx, req))

		mints := s.ledger.mints
		all, err := s.parcels.List(s.ctx)
		s.Require().NoError(err)
		s.Len(all, 1)
		s.Equal(1, mints)
	})

	s.Run("registers off-ledger when the ledger is degraded", func() {
		s.ledger.degraded = true
		req := s.approvedRegistration()
		s.Require().NoError(s.service.ReconcileDecision(s.ctx, req))

		parcel, err := s.parcels.FindByOriginRequest(s.ctx, req.ID)
		s.Require().NoError(err)
		s.False(parcel.LedgerTx.IsConfirmed())
		s.Contains(parcel.LedgerTx.Value(), "dev-")
		s.Empty(parcel.TokenRef)
	})
}

func (s *ReconcilerSuite) TestRejectedRegistration() {
	req := s.approvedRegistration()
	req.Status = request.StatusRejected
	s.Require().NoError(s.service.ReconcileDecision(s.ctx, req))

	all, err := s.parcels.List(s.ctx)
	s.Require().NoError(err)
	s.Empty(all)
	s.Zero(s.ledger.mints)
}

// escrowSig stands in for the deposit transaction's signature. It is not a
// mint address and must never reach the ledger as one.
const escrowSig = "5VERv8NMvzbJMEkV8xnrLkEaWRtSz9CosKDYjCJjBRnbJLgp8uirBgmQpjKhoR4tjF3ZpRzrFmBV6UjKdiSZkQUW"

func (s *ReconcilerSuite) transferFor(parcel *registry.Parcel, status request.Status) *request.Request {
	return &request.Request{
		ID:              domain.NewRequestID(),
		Type:            request.TypeTransfer,
		Status:          status,
		SubmitterWallet: parcel.OwnerWallet,
		SubmitterName:   parcel.OwnerName,
		TargetParcelID:  parcel.ID,
		RecipientWallet: "RecipientWa11et",
		RecipientName:   "Hari Thapa",
		TokenEscrowRef:  escrowSig,
	}
}

func (s *ReconcilerSuite) TestApprovedTransfer() {
	s.Run("releases escrow to the recipient and updates ownership only", func() {
		parcel := s.registerParcel()
		req := s.transferFor(parcel, request.StatusApproved)

		s.Require().NoError(s.service.ReconcileDecision(s.ctx, req))

		updated, err := s.parcels.FindByID(s.ctx, parcel.ID)
		s.Require().NoError(err)
		s.Equal("RecipientWa11et", updated.OwnerWallet)
		s.Equal("Hari Thapa", updated.OwnerName)
		s.Equal(parcel.TitleNo, updated.TitleNo)
		s.Equal(parcel.Location, updated.Location)
		s.Equal(parcel.Size, updated.Size)

		s.Require().Len(s.ledger.transfers, 1)
		s.Equal(parcel.TokenRef+":AuthorityWa11et:RecipientWa11et", s.ledger.transfers[0])
	})

	s.Run("is idempotent once ownership changed", func() {
		parcel := s.registerParcel()
		req := s.transferFor(parcel, request.StatusApproved)
		s.Require().NoError(s.service.ReconcileDecision(s.ctx, req))

		transfers := len(s.ledger.transfers)
		s.Require().NoError(s.service.ReconcileDecision(s.ctx, req))
		s.Len(s.ledger.transfers, transfers)
	})

	s.Run("fails when the target parcel does not exist", func() {
		req := s.transferFor(&registry.Parcel{ID: domain.NewParcelID()}, request.StatusApproved)
		err := s.service.ReconcileDecision(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("falls back to a memo when the parcel has no token", func() {
		s.ledger.degraded = true
		parcel := s.registerParcel()
		s.ledger.degraded = false

		req := s.transferFor(parcel, request.StatusApproved)
		s.Require().NoError(s.service.ReconcileDecision(s.ctx, req))

		s.Empty(s.ledger.transfers)
		s.Require().NotEmpty(s.ledger.memos)
		s.Contains(s.ledger.memos[len(s.ledger.memos)-1], "jagga:TRANSFER:"+parcel.ID.String())
	})
}

func (s *ReconcilerSuite) TestRejectedTransfer() {
	s.Run("returns the escrowed token to the submitter", func() {
		parcel := s.registerParcel()
		req := s.transferFor(parcel, request.StatusRejected)

		s.Require().NoError(s.service.ReconcileDecision(s.ctx, req))

		updated, err := s.parcels.FindByID(s.ctx, parcel.ID)
		s.Require().NoError(err)
		s.Equal(parcel.OwnerWallet, updated.OwnerWallet)

		s.Require().Len(s.ledger.transfers, 1)
		s.Equal(parcel.TokenRef+":AuthorityWa11et:"+parcel.OwnerWallet, s.ledger.transfers[0])
	})

	s.Run("transfers the parcel's mint, not the escrow deposit signature", func() {
		parcel := s.registerParcel()
		req := s.transferFor(parcel, request.StatusRejected)

		s.Require().NoError(s.service.ReconcileDecision(s.ctx, req))

		s.Require().Len(s.ledger.transfers, 1)
		s.Contains(s.ledger.transfers[0], parcel.TokenRef+":")
		s.NotContains(s.ledger.transfers[0], escrowSig)
	})

	s.Run("no escrow to return means no ledger call", func() {
		parcel := s.registerParcel()
		req := s.transferFor(parcel, request.StatusRejected)
		req.TokenEscrowRef = ""

		s.Require().NoError(s.service.ReconcileDecision(s.ctx, req))
		s.Empty(s.ledger.transfers)
	})

	s.Run("tokenless parcel has nothing to return", func() {
		s.ledger.degraded = true
		parcel := s.registerParcel()
		s.ledger.degraded = false

		req := s.transferFor(parcel, request.StatusRejected)
		s.Require().NoError(s.service.ReconcileDecision(s.ctx, req))
		s.Empty(s.ledger.transfers)
	})

	s.Run("fails when the target parcel does not exist", func() {
		req := s.transferFor(&registry.Parcel{ID: domain.NewParcelID()}, request.StatusRejected)
		err := s.service.ReconcileDecision(s.ctx, req)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ReconcilerSuite) TestTreasuryCustody() {
	// Built inside each subtest: SetupSubTest recreates the stores, so a
	// method-scoped service would point at stale ones.
	treasuryService := func() *Service {
		return New(s.parcels, s.ledger, s.requests, slog.Default(),
			WithTreasuryWallet("TreasuryWa11et"))
	}

	s.Run("escrow release moves out of the treasury account", func() {
		svc := treasuryService()
		parcel := s.registerParcel()
		req := s.transferFor(parcel, request.StatusApproved)

		s.Require().NoError(svc.ReconcileDecision(s.ctx, req))
		s.Require().Len(s.ledger.transfers, 1)
		s.Equal(parcel.TokenRef+":TreasuryWa11et:RecipientWa11et", s.ledger.transfers[0])
	})

	s.Run("escrow return moves out of the treasury account", func() {
		svc := treasuryService()
		parcel := s.registerParcel()
		req := s.transferFor(parcel, request.StatusRejected)

		s.Require().NoError(svc.ReconcileDecision(s.ctx, req))
		last := s.ledger.transfers[len(s.ledger.transfers)-1]
		s.Equal(parcel.TokenRef+":TreasuryWa11et:"+parcel.OwnerWallet, last)
	})
}

func (s *ReconcilerSuite) TestProvenance() {
	s.Run("serves the stored triple", func() {
		parcel := s.registerParcel()
		prov, err := s.service.Provenance(s.ctx, parcel.ID)
		s.Require().NoError(err)
		s.True(prov.Complete())
		s.Equal("citizenSig", prov.CitizenTxSig)
		s.Equal("officerSig", prov.OfficerTxSig)
		s.Equal("chiefSig", prov.ChiefTxSig)
	})

	s.Run("backfills gaps from the originating request without overwriting", func() {
		// An older record that predates officer/chief signature capture.
		parcel := &registry.Parcel{
			ID:           domain.NewParcelID(),
			TitleNo:      99,
			OwnerName:    "Sita Sharma",
			OwnerWallet:  "OwnerWa11et",
			CitizenTxSig: "originalCitizenSig",
			Status:       registry.StatusRegistered,
		}
		s.Require().NoError(s.parcels.Create(s.ctx, parcel))

		origin := s.approvedRegistration()
		s.Require().NoError(s.requests.Create(s.ctx, origin))

		prov, err := s.service.Provenance(s.ctx, parcel.ID)
		s.Require().NoError(err)
		s.Equal("originalCitizenSig", prov.CitizenTxSig, "populated fields are never overwritten")
		s.Equal("officerSig", prov.OfficerTxSig)
		s.Equal("chiefSig", prov.ChiefTxSig)

		// The backfill persisted.
		stored, err := s.parcels.FindByID(s.ctx, parcel.ID)
		s.Require().NoError(err)
		s.Equal("officerSig", stored.OfficerTxSig)
		s.Equal("originalCitizenSig", stored.CitizenTxSig)
	})

	s.Run("unknown parcel", func() {
		_, err := s.service.Provenance(s.ctx, domain.NewParcelID())
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
