// Package service reconciles decided requests into the title registry and
// serves the parcel read paths.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"jagga/internal/audit"
	"jagga/internal/ledger"
	"jagga/internal/platform/metrics"
	"jagga/internal/registry"
	"jagga/internal/registry/store"
	"jagga/internal/request"
	reqstore "jagga/internal/request/store"
	"jagga/pkg/domain"
	dErrors "jagga/pkg/domain-errors"
	"jagga/pkg/requestcontext"
	"jagga/pkg/sentinel"
)

// Ledger is the slice of the ledger adapter the reconciler uses. Mint and
// transfer never return errors; degraded references carry the failure.
type Ledger interface {
	Configured() bool
	AuthorityWallet() string
	MintTitleToken(ctx context.Context, ownerWallet string, meta ledger.TokenMetadata) (ledger.Ref, ledger.Ref)
	TransferTitleToken(ctx context.Context, tokenRef, fromWallet, toWallet string) ledger.Ref
	WriteMemo(ctx context.Context, text string) ledger.Ref
}

// ProvenanceSource finds the approved registration request that produced a
// parcel, for backfilling signature triples on older records.
type ProvenanceSource interface {
	LatestApprovedRegistration(ctx context.Context, wallet, name string) (*request.Request, error)
}

// Service applies registry-side effects of decisions and answers parcel
// queries.
type Service struct {
	parcels    store.Store
	ledger     Ledger
	provenance ProvenanceSource
	treasury   string
	publisher  audit.Publisher
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(*Service)

func WithAuditPublisher(p audit.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTreasuryWallet sets the custodial escrow account that holds title
// tokens while a transfer is in flight. Without it, custody defaults to
// the ledger authority's own account.
func WithTreasuryWallet(wallet string) Option {
	return func(s *Service) { s.treasury = wallet }
}

func New(parcels store.Store, led Ledger, provenance ProvenanceSource, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		parcels:    parcels,
		ledger:     led,
		provenance: provenance,
		publisher:  audit.NopPublisher{},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ReconcileDecision applies the registry consequences of a decided request.
// Idempotent: a retry after a partial failure skips work that already
// landed. Rejected registrations have no registry consequences at all.
func (s *Service) ReconcileDecision(ctx context.Context, req *request.Request) error {
	switch {
	case req.Type == request.TypeRegistration && req.Status == request.StatusApproved:
		return s.reconcileRegistration(ctx, req)
	case req.Type == request.TypeTransfer && req.Status == request.StatusApproved:
		return s.reconcileTransferApproval(ctx, req)
	case req.Type == request.TypeTransfer && req.Status == request.StatusRejected:
		return s.reconcileTransferRejection(ctx, req)
	case req.Type == request.TypeRegistration && req.Status == request.StatusRejected:
		return nil
	default:
		return dErrors.New(dErrors.CodeInvalidTransition,
			fmt.Sprintf("request %s is not in a reconcilable state (%s/%s)", req.ID, req.Type, req.Status))
	}
}

func (s *Service) reconcileRegistration(ctx context.Context, req *request.Request) error {
	// A previous attempt may have created the parcel already.
	existing, err := s.parcels.FindByOriginRequest(ctx, req.ID)
	if err == nil && existing != nil {
		return nil
	}
	if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return fmt.Errorf("registry: origin lookup for request %s: %w", req.ID, err)
	}

	titleNo, err := s.parcels.NextTitleNo(ctx)
	if err != nil {
		return fmt.Errorf("registry: allocate title number: %w", err)
	}

	tokenRef, txRef := s.ledger.MintTitleToken(ctx, req.SubmitterWallet, ledger.TokenMetadata{
		TitleNo:      titleNo,
		OwnerName:    req.SubmitterName,
		District:     req.Location.District,
		Municipality: req.Location.Municipality,
	})

	now := requestcontext.Now(ctx)
	parcel := &registry.Parcel{
		ID:              domain.NewParcelID(),
		TitleNo:         titleNo,
		OwnerName:       req.SubmitterName,
		OwnerWallet:     req.SubmitterWallet,
		Location:        req.Location,
		Size:            req.Size,
		DocumentHash:    documentHash(now.UnixMilli()),
		LedgerTx:        txRef,
		TokenRef:        tokenRef.Value(),
		CitizenTxSig:    req.CitizenFeeProof,
		OfficerTxSig:    req.OfficerFeeProof,
		ChiefTxSig:      req.ChiefFeeProof,
		OriginRequestID: req.ID,
		Status:          registry.StatusRegistered,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.parcels.Create(ctx, parcel); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// A concurrent retry won the insert for this request.
			if _, lookupErr := s.parcels.FindByOriginRequest(ctx, req.ID); lookupErr == nil {
				return nil
			}
		}
		return fmt.Errorf("registry: create parcel for request %s: %w", req.ID, err)
	}

	if !txRef.IsConfirmed() {
		s.logger.WarnContext(ctx, "parcel registered off-ledger",
			"parcel_id", parcel.ID.String(),
			"title_no", titleNo,
			"placeholder", txRef.Value(),
		)
	}

	s.publisher.Emit(ctx, audit.Event{
		Action:    audit.ActionParcelRegistered,
		RequestID: req.ID.String(),
		ParcelID:  parcel.ID.String(),
		Wallet:    parcel.OwnerWallet,
	})
	if s.metrics != nil {
		s.metrics.ParcelsRegistered.Inc()
	}
	return nil
}

func (s *Service) reconcileTransferApproval(ctx context.Context, req *request.Request) error {
	parcel, err := s.parcels.FindByID(ctx, req.TargetParcelID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound,
				fmt.Sprintf("transfer target parcel %s does not exist", req.TargetParcelID))
		}
		return fmt.Errorf("registry: load parcel %s: %w", req.TargetParcelID, err)
	}
	if parcel.OwnerWallet == req.RecipientWallet {
		// A previous attempt already applied this transfer.
		return nil
	}

	var txRef ledger.Ref
	if parcel.TokenRef != "" && s.ledger.Configured() {
		// Escrow release: the token sits in the custodial holding account
		// while the transfer is in flight.
		txRef = s.ledger.TransferTitleToken(ctx, parcel.TokenRef, s.custodyWallet(), req.RecipientWallet)
	} else {
		txRef = s.ledger.WriteMemo(ctx, fmt.Sprintf("jagga:TRANSFER:%s:%s:%s",
			parcel.ID, parcel.OwnerWallet, req.RecipientWallet))
	}

	if err := s.parcels.UpdateOwner(ctx, parcel.ID, req.RecipientName, req.RecipientWallet, txRef); err != nil {
		return fmt.Errorf("registry: update owner of parcel %s: %w", parcel.ID, err)
	}

	s.publisher.Emit(ctx, audit.Event{
		Action:    audit.ActionParcelTransferred,
		RequestID: req.ID.String(),
		ParcelID:  parcel.ID.String(),
		Wallet:    req.RecipientWallet,
	})
	if s.metrics != nil {
		s.metrics.ParcelsTransferred.Inc()
	}
	return nil
}

// reconcileTransferRejection returns the escrowed token to the submitter.
// TokenEscrowRef holds the escrow deposit's transaction signature and only
// marks that a deposit happened; the token itself is identified by the
// parcel's mint. The parcel record never changed, so there is nothing to
// roll back there.
func (s *Service) reconcileTransferRejection(ctx context.Context, req *request.Request) error {
	if req.TokenEscrowRef == "" || !s.ledger.Configured() {
		return nil
	}
	parcel, err := s.parcels.FindByID(ctx, req.TargetParcelID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound,
				fmt.Sprintf("transfer target parcel %s does not exist", req.TargetParcelID))
		}
		return fmt.Errorf("registry: load parcel %s: %w", req.TargetParcelID, err)
	}
	if parcel.TokenRef == "" {
		return nil
	}
	ref := s.ledger.TransferTitleToken(ctx, parcel.TokenRef, s.custodyWallet(), req.SubmitterWallet)
	if !ref.IsConfirmed() {
		s.logger.WarnContext(ctx, "escrow return degraded",
			"request_id", req.ID.String(),
			"placeholder", ref.Value(),
		)
	}
	return nil
}

// custodyWallet is the account tokens move out of on escrow release and
// escrow return.
func (s *Service) custodyWallet() string {
	if s.treasury != "" {
		return s.treasury
	}
	return s.ledger.AuthorityWallet()
}

// Get returns one parcel.
func (s *Service) Get(ctx context.Context, id domain.ParcelID) (*registry.Parcel, error) {
	parcel, err := s.parcels.FindByID(ctx, id)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	return parcel, nil
}

// List returns all parcels, newest first.
func (s *Service) List(ctx context.Context) ([]*registry.Parcel, error) {
	return s.parcels.List(ctx)
}

// ListByOwner returns the parcels held by one wallet.
func (s *Service) ListByOwner(ctx context.Context, ownerWallet string) ([]*registry.Parcel, error) {
	if ownerWallet == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "owner wallet is required")
	}
	return s.parcels.ListByOwner(ctx, ownerWallet)
}

// Count returns the registered parcel total for the stats endpoint.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.parcels.Count(ctx)
}

// Provenance returns the parcel's signature triple, lazily backfilling any
// gaps from the originating approved registration request. Populated
// signatures are never overwritten.
func (s *Service) Provenance(ctx context.Context, id domain.ParcelID) (registry.Provenance, error) {
	parcel, err := s.parcels.FindByID(ctx, id)
	if err != nil {
		return registry.Provenance{}, translateStoreErr(err)
	}

	prov := registry.Provenance{
		CitizenTxSig: parcel.CitizenTxSig,
		OfficerTxSig: parcel.OfficerTxSig,
		ChiefTxSig:   parcel.ChiefTxSig,
	}
	if prov.Complete() || s.provenance == nil {
		return prov, nil
	}

	origin, err := s.provenance.LatestApprovedRegistration(ctx, parcel.OwnerWallet, parcel.OwnerName)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return prov, nil
		}
		return registry.Provenance{}, fmt.Errorf("registry: provenance backfill lookup: %w", err)
	}

	if prov.CitizenTxSig == "" {
		prov.CitizenTxSig = origin.CitizenFeeProof
	}
	if prov.OfficerTxSig == "" {
		prov.OfficerTxSig = origin.OfficerFeeProof
	}
	if prov.ChiefTxSig == "" {
		prov.ChiefTxSig = origin.ChiefFeeProof
	}

	if err := s.parcels.BackfillProvenance(ctx, id, prov); err != nil {
		// The read still succeeds; the next read retries the persist.
		s.logger.WarnContext(ctx, "provenance backfill persist failed",
			"parcel_id", id.String(),
			"error", err,
		)
	}
	return prov, nil
}

func documentHash(unixMilli int64) string {
	return fmt.Sprintf("Qm%d", unixMilli)
}

func translateStoreErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "parcel not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "parcel store failure")
}

var _ ProvenanceSource = (reqstore.Store)(nil)
