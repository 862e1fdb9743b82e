// Package service owns the request lifecycle state machine: payment-gated
// transitions pending -> proposed -> approved | rejected, and the handoff to
// the title registry reconciler on decision.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"jagga/internal/audit"
	"jagga/internal/ledger"
	"jagga/internal/payment"
	"jagga/internal/platform/metrics"
	"jagga/internal/request"
	"jagga/internal/request/store"
	"jagga/pkg/domain"
	dErrors "jagga/pkg/domain-errors"
	"jagga/pkg/requestcontext"
	"jagga/pkg/sentinel"
)

// Reconciler applies the registry-side effects of a decided request. It must
// be idempotent: the sweeper re-invokes it for requests whose reconciliation
// marker never reached done.
type Reconciler interface {
	ReconcileDecision(ctx context.Context, req *request.Request) error
}

// Memos is the slice of the ledger adapter the lifecycle needs directly.
type Memos interface {
	WriteMemo(ctx context.Context, text string) ledger.Ref
}

// Locker serializes decide-stage work per entity across instances.
type Locker interface {
	Acquire(ctx context.Context, key string) (func(), error)
}

// Service drives request lifecycle transitions.
type Service struct {
	requests   store.Store
	gate       *payment.Gate
	memos      Memos
	reconciler Reconciler
	locker     Locker
	publisher  audit.Publisher
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// Option configures the Service.
type Option func(*Service)

func WithLocker(l Locker) Option {
	return func(s *Service) { s.locker = l }
}

func WithAuditPublisher(p audit.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(requests store.Store, gate *payment.Gate, memos Memos, reconciler Reconciler, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		requests:   requests,
		gate:       gate,
		memos:      memos,
		reconciler: reconciler,
		publisher:  audit.NopPublisher{},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateParams is the citizen-facing submission payload.
type CreateParams struct {
	Type            request.Type
	SubmitterWallet string
	SubmitterName   string
	Location        request.Location
	Size            request.Size
	TargetParcelID  string
	RecipientWallet string
	RecipientName   string
	CitizenFeeProof string
	TokenEscrowRef  string
}

// Create records a citizen's intent. The citizen-tier fee proof is required
// before the system will even record it.
func (s *Service) Create(ctx context.Context, params CreateParams) (*request.Request, error) {
	if err := s.gate.RequireProof(payment.TierCitizen, params.CitizenFeeProof); err != nil {
		return nil, err
	}
	if !params.Type.Valid() {
		return nil, dErrors.New(dErrors.CodeValidation, "requestType must be registration or transfer")
	}
	if params.SubmitterWallet == "" || params.SubmitterName == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "walletAddress and ownerName are required")
	}

	req := &request.Request{
		ID:                  domain.NewRequestID(),
		Type:                params.Type,
		Status:              request.StatusPending,
		SubmitterWallet:     params.SubmitterWallet,
		SubmitterName:       params.SubmitterName,
		CitizenFeeProof:     params.CitizenFeeProof,
		ReconciliationState: request.ReconcileNone,
		CreatedAt:           requestcontext.Now(ctx),
	}

	switch params.Type {
	case request.TypeRegistration:
		req.Location = params.Location
		req.Size = params.Size
	case request.TypeTransfer:
		if params.TargetParcelID == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "parcelId is required for transfers")
		}
		parcelID, err := domain.ParseParcelID(params.TargetParcelID)
		if err != nil {
			return nil, err
		}
		if params.RecipientWallet == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "toWallet is required for transfers")
		}
		req.TargetParcelID = parcelID
		req.RecipientWallet = params.RecipientWallet
		req.RecipientName = params.RecipientName
		req.TokenEscrowRef = params.TokenEscrowRef
	}

	if err := s.requests.Create(ctx, req); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record request")
	}

	s.publisher.Emit(ctx, audit.Event{
		Action:    audit.ActionRequestCreated,
		RequestID: req.ID.String(),
		Wallet:    req.SubmitterWallet,
	})
	if s.metrics != nil {
		s.metrics.RequestsCreated.WithLabelValues(string(req.Type)).Inc()
	}
	return req, nil
}

// Propose advances a pending request (tier-1 officer action). The officer's
// fee proof is stored alongside; no ledger side effects happen here beyond
// what the officer already settled off-band.
func (s *Service) Propose(ctx context.Context, id domain.RequestID, officerFeeProof string) (*request.Request, error) {
	if err := s.gate.RequireProof(payment.TierOfficer, officerFeeProof); err != nil {
		return nil, err
	}

	current, err := s.requests.FindByID(ctx, id)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	if !request.CanTransition(current.Status, request.StatusProposed) {
		return nil, dErrors.New(dErrors.CodeInvalidTransition,
			fmt.Sprintf("only pending requests can be proposed (current status: %s)", current.Status))
	}

	updated, err := s.requests.ApplyTransition(ctx, id, store.TransitionUpdate{
		Expected: request.StatusPending,
		Next:     request.StatusProposed,
		Proof:    officerFeeProof,
	})
	if err != nil {
		return nil, translateStoreErr(err)
	}

	s.publisher.Emit(ctx, audit.Event{
		Action:    audit.ActionRequestProposed,
		RequestID: id.String(),
		Wallet:    requestcontext.ActorWallet(ctx),
	})
	if s.metrics != nil {
		s.metrics.Transitions.WithLabelValues(string(request.StatusProposed)).Inc()
	}
	return updated, nil
}

// Decide resolves a proposed request (tier-2 chief action). Ordering within
// the call: (1) the status, chief proof, and reconciliation-pending marker
// commit in one store write, (2) an audit memo goes to the ledger
// (non-fatal), (3) the registry reconciler runs. A reconciler failure
// surfaces to the caller even though the status already committed; the
// persisted marker makes the work resumable.
func (s *Service) Decide(ctx context.Context, id domain.RequestID, decision request.Status, chiefFeeProof string) (*request.Request, error) {
	if decision != request.StatusApproved && decision != request.StatusRejected {
		return nil, dErrors.New(dErrors.CodeValidation, "decision must be approved or rejected")
	}
	if err := s.gate.RequireProof(payment.TierChief, chiefFeeProof); err != nil {
		return nil, err
	}

	current, err := s.requests.FindByID(ctx, id)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	if !request.CanTransition(current.Status, decision) {
		return nil, dErrors.New(dErrors.CodeInvalidTransition,
			fmt.Sprintf("only proposed requests can be approved or rejected (current status: %s)", current.Status))
	}

	release, err := s.acquireDecideLeases(ctx, current)
	if err != nil {
		return nil, err
	}
	defer release()

	updated, err := s.requests.ApplyTransition(ctx, id, store.TransitionUpdate{
		Expected:             request.StatusProposed,
		Next:                 decision,
		Proof:                chiefFeeProof,
		MarkReconcilePending: true,
	})
	if err != nil {
		return nil, translateStoreErr(err)
	}

	s.writeDecisionMemo(ctx, updated)

	if err := s.reconcile(ctx, updated); err != nil {
		return nil, err
	}

	s.publisher.Emit(ctx, audit.Event{
		Action:    audit.ActionRequestDecided,
		RequestID: id.String(),
		Decision:  string(decision),
		Wallet:    requestcontext.ActorWallet(ctx),
	})
	if s.metrics != nil {
		s.metrics.Transitions.WithLabelValues(string(decision)).Inc()
	}
	updated.ReconciliationState = request.ReconcileDone
	return updated, nil
}

// RetryReconciliation re-runs the registry side effects for a decided
// request whose marker is still pending or failed.
func (s *Service) RetryReconciliation(ctx context.Context, id domain.RequestID) error {
	req, err := s.requests.FindByID(ctx, id)
	if err != nil {
		return translateStoreErr(err)
	}
	if !req.Status.Terminal() {
		return dErrors.New(dErrors.CodeInvalidTransition, "request has not been decided")
	}
	if req.ReconciliationState == request.ReconcileDone {
		return nil
	}
	if s.metrics != nil {
		s.metrics.ReconcileRetries.Inc()
	}
	return s.reconcile(ctx, req)
}

// SweepUnreconciled resumes every decided-but-unreconciled request. Run at
// startup and periodically; errors are logged per request so one stuck
// reconciliation does not starve the rest.
func (s *Service) SweepUnreconciled(ctx context.Context) error {
	stuck, err := s.requests.ListUnreconciled(ctx)
	if err != nil {
		return translateStoreErr(err)
	}
	for _, req := range stuck {
		if err := s.RetryReconciliation(ctx, req.ID); err != nil {
			s.logger.WarnContext(ctx, "reconciliation retry failed",
				"request_id", req.ID.String(),
				"error", err,
			)
		}
	}
	return nil
}

// Get returns one request.
func (s *Service) Get(ctx context.Context, id domain.RequestID) (*request.Request, error) {
	req, err := s.requests.FindByID(ctx, id)
	if err != nil {
		return nil, translateStoreErr(err)
	}
	return req, nil
}

// List returns all requests, newest first.
func (s *Service) List(ctx context.Context) ([]*request.Request, error) {
	return s.requests.List(ctx)
}

// Counts exposes queue numbers for the stats endpoint.
func (s *Service) Counts(ctx context.Context) (store.Counts, error) {
	return s.requests.Counts(ctx)
}

func (s *Service) reconcile(ctx context.Context, req *request.Request) error {
	if err := s.reconciler.ReconcileDecision(ctx, req); err != nil {
		if markErr := s.requests.SetReconciliationState(ctx, req.ID, request.ReconcileFailed); markErr != nil {
			s.logger.ErrorContext(ctx, "failed to mark reconciliation failed",
				"request_id", req.ID.String(),
				"error", markErr,
			)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "registry reconciliation failed; decision recorded and retriable")
	}
	if err := s.requests.SetReconciliationState(ctx, req.ID, request.ReconcileDone); err != nil {
		// The side effects applied; the stale marker only causes a
		// harmless idempotent retry later.
		s.logger.WarnContext(ctx, "failed to mark reconciliation done",
			"request_id", req.ID.String(),
			"error", err,
		)
	}
	return nil
}

// acquireDecideLeases takes the request lease and, for transfers, the target
// parcel lease, so two decides cannot interleave cross-system writes on the
// same parcel.
func (s *Service) acquireDecideLeases(ctx context.Context, req *request.Request) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}
	releaseReq, err := s.locker.Acquire(ctx, "decide:request:"+req.ID.String())
	if err != nil {
		return nil, translateLeaseErr(err)
	}
	if req.Type != request.TypeTransfer || req.TargetParcelID.IsNil() {
		return releaseReq, nil
	}
	releaseParcel, err := s.locker.Acquire(ctx, "decide:parcel:"+req.TargetParcelID.String())
	if err != nil {
		releaseReq()
		return nil, translateLeaseErr(err)
	}
	return func() {
		releaseParcel()
		releaseReq()
	}, nil
}

func (s *Service) writeDecisionMemo(ctx context.Context, req *request.Request) {
	kind := "REGISTRATION"
	if req.Type == request.TypeTransfer {
		kind = "TRANSFER"
	}
	ref := s.memos.WriteMemo(ctx, fmt.Sprintf("jagga:%s:%s:%s", kind, req.ID.String(), req.Status))
	if !ref.IsConfirmed() {
		// Memo-write failures are tolerated; the decision stands.
		s.logger.WarnContext(ctx, "decision memo degraded",
			"request_id", req.ID.String(),
			"placeholder", ref.Value(),
		)
	}
}

func translateStoreErr(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "request not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.New(dErrors.CodeInvalidTransition, "request status changed underneath this transition")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "request store failure")
	}
}

func translateLeaseErr(err error) error {
	if errors.Is(err, sentinel.ErrConflict) {
		return dErrors.New(dErrors.CodeConflict, "another decision is in progress for this request or parcel")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to acquire decision lease")
}
