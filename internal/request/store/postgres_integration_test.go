//go:build integration

package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"jagga/internal/platform/postgres"
	"jagga/internal/request"
	"jagga/internal/request/store"
	"jagga/pkg/domain"
	"jagga/pkg/sentinel"
	"jagga/pkg/testutil/containers"
)

type PostgresRequestStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *store.PostgresStore
	ctx   context.Context
}

func TestPostgresRequestStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresRequestStoreSuite))
}

func (s *PostgresRequestStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	s.pg = containers.NewPostgresContainer(s.T())
	s.Require().NoError(postgres.EnsureSchema(s.ctx, s.pg.Pool))
	s.store = store.NewPostgres(s.pg.Pool)
}

func (s *PostgresRequestStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.TruncateTables(s.ctx, "requests"))
}

func (s *PostgresRequestStoreSuite) newRequest() *request.Request {
	return &request.Request{
		ID:                  domain.NewRequestID(),
		Type:                request.TypeRegistration,
		Status:              request.StatusPending,
		SubmitterWallet:     "Wa11et",
		SubmitterName:       "Gita Rai",
		Location:            request.Location{Province: "Bagmati", District: "Kathmandu", Municipality: "KMC", Ward: 4, Tole: "Baneshwor"},
		Size:                request.Size{Kattha: 2},
		CitizenFeeProof:     "citizenSig",
		ReconciliationState: request.ReconcileNone,
		CreatedAt:           time.Now().UTC().Truncate(time.Microsecond),
	}
}

func (s *PostgresRequestStoreSuite) TestRoundTrip() {
	req := s.newRequest()
	s.Require().NoError(s.store.Create(s.ctx, req))

	found, err := s.store.FindByID(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(req.SubmitterName, found.SubmitterName)
	s.Equal(req.Location, found.Location)
	s.Equal(req.Size, found.Size)
	s.Equal(req.CitizenFeeProof, found.CitizenFeeProof)

	_, err = s.store.FindByID(s.ctx, domain.NewRequestID())
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresRequestStoreSuite) TestTransferFields() {
	req := s.newRequest()
	req.Type = request.TypeTransfer
	req.TargetParcelID = domain.NewParcelID()
	req.RecipientWallet = "RecipientWa11et"
	req.RecipientName = "Hari Thapa"
	req.TokenEscrowRef = "EscrowMint"
	s.Require().NoError(s.store.Create(s.ctx, req))

	found, err := s.store.FindByID(s.ctx, req.ID)
	s.Require().NoError(err)
	s.Equal(req.TargetParcelID, found.TargetParcelID)
	s.Equal("RecipientWa11et", found.RecipientWallet)
	s.Equal("EscrowMint", found.TokenEscrowRef)
}

func (s *PostgresRequestStoreSuite) TestApplyTransition() {
	s.Run("CAS advance with proof append", func() {
		req := s.newRequest()
		s.Require().NoError(s.store.Create(s.ctx, req))

		updated, err := s.store.ApplyTransition(s.ctx, req.ID, store.TransitionUpdate{
			Expected: request.StatusPending,
			Next:     request.StatusProposed,
			Proof:    "officerSig",
		})
		s.Require().NoError(err)
		s.Equal(request.StatusProposed, updated.Status)
		s.Equal("officerSig", updated.OfficerFeeProof)

		_, err = s.store.ApplyTransition(s.ctx, req.ID, store.TransitionUpdate{
			Expected: request.StatusPending,
			Next:     request.StatusProposed,
			Proof:    "other",
		})
		s.Require().ErrorIs(err, sentinel.ErrInvalidState)
	})

	s.Run("decision marks reconciliation pending in the same statement", func() {
		req := s.newRequest()
		req.Status = request.StatusProposed
		s.Require().NoError(s.store.Create(s.ctx, req))

		updated, err := s.store.ApplyTransition(s.ctx, req.ID, store.TransitionUpdate{
			Expected:             request.StatusProposed,
			Next:                 request.StatusApproved,
			Proof:                "chiefSig",
			MarkReconcilePending: true,
		})
		s.Require().NoError(err)
		s.Equal(request.ReconcilePending, updated.ReconciliationState)
		s.Equal("chiefSig", updated.ChiefFeeProof)

		unreconciled, err := s.store.ListUnreconciled(s.ctx)
		s.Require().NoError(err)
		s.Require().Len(unreconciled, 1)
		s.Equal(req.ID, unreconciled[0].ID)
	})

	s.Run("exactly one of two concurrent decisions wins", func() {
		req := s.newRequest()
		req.Status = request.StatusProposed
		s.Require().NoError(s.store.Create(s.ctx, req))

		var wg sync.WaitGroup
		errs := make([]error, 2)
		outcomes := []request.Status{request.StatusApproved, request.StatusRejected}
		for i, next := range outcomes {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, errs[i] = s.store.ApplyTransition(s.ctx, req.ID, store.TransitionUpdate{
					Expected:             request.StatusProposed,
					Next:                 next,
					Proof:                "chiefSig",
					MarkReconcilePending: true,
				})
			}()
		}
		wg.Wait()

		winners := 0
		for _, err := range errs {
			if err == nil {
				winners++
			} else {
				s.Require().ErrorIs(err, sentinel.ErrInvalidState)
			}
		}
		s.Equal(1, winners)
	})
}

func (s *PostgresRequestStoreSuite) TestReconciliationLifecycle() {
	req := s.newRequest()
	req.Status = request.StatusApproved
	req.ReconciliationState = request.ReconcileFailed
	s.Require().NoError(s.store.Create(s.ctx, req))

	stuck, err := s.store.ListUnreconciled(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(stuck, 1)

	s.Require().NoError(s.store.SetReconciliationState(s.ctx, req.ID, request.ReconcileDone))

	stuck, err = s.store.ListUnreconciled(s.ctx)
	s.Require().NoError(err)
	s.Empty(stuck)
}

func (s *PostgresRequestStoreSuite) TestCounts() {
	pending := s.newRequest()
	proposed := s.newRequest()
	proposed.Status = request.StatusProposed
	s.Require().NoError(s.store.Create(s.ctx, pending))
	s.Require().NoError(s.store.Create(s.ctx, proposed))

	counts, err := s.store.Counts(s.ctx)
	s.Require().NoError(err)
	s.Equal(1, counts.Pending)
	s.Equal(1, counts.Proposed)
	s.Equal(1, counts.PendingRegistrations)
}
