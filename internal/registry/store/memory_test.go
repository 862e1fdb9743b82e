package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"jagga/internal/ledger"
	"jagga/internal/registry"
	"jagga/pkg/domain"
	"jagga/pkg/sentinel"
)

type ParcelStoreSuite struct {
	suite.Suite
	ctx   context.Context
	store *InMemoryStore
}

func TestParcelStoreSuite(t *testing.T) {
	suite.Run(t, new(ParcelStoreSuite))
}

func (s *ParcelStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemoryStore()
}

func (s *ParcelStoreSuite) newParcel(titleNo int64) *registry.Parcel {
	return &registry.Parcel{
		ID:           domain.NewParcelID(),
		TitleNo:      titleNo,
		OwnerName:    "Maya Gurung",
		OwnerWallet:  "OwnerWa11et",
		LedgerTx:     ledger.Confirmed("mintSig"),
		TokenRef:     "MintAddr",
		CitizenTxSig: "citizenSig",
		Status:       registry.StatusRegistered,
		CreatedAt:    time.Now(),
	}
}

func (s *ParcelStoreSuite) TestNextTitleNo() {
	s.Run("allocates monotonically", func() {
		first, err := s.store.NextTitleNo(s.ctx)
		s.Require().NoError(err)
		second, err := s.store.NextTitleNo(s.ctx)
		s.Require().NoError(err)
		s.Equal(first+1, second)
	})

	s.Run("never hands out duplicates under concurrency", func() {
		const n = 50
		seen := sync.Map{}
		var wg sync.WaitGroup
		for range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				no, err := s.store.NextTitleNo(s.ctx)
				s.Require().NoError(err)
				_, dup := seen.LoadOrStore(no, true)
				s.False(dup, "title number %d allocated twice", no)
			}()
		}
		wg.Wait()
	})
}

func (s *ParcelStoreSuite) TestCreate() {
	p := s.newParcel(1)
	s.Require().NoError(s.store.Create(s.ctx, p))

	s.Run("rejects a title number collision", func() {
		dup := s.newParcel(1)
		s.Require().ErrorIs(s.store.Create(s.ctx, dup), sentinel.ErrConflict)
	})

	s.Run("finds by id and by origin request", func() {
		withOrigin := s.newParcel(2)
		withOrigin.OriginRequestID = domain.NewRequestID()
		s.Require().NoError(s.store.Create(s.ctx, withOrigin))

		found, err := s.store.FindByID(s.ctx, withOrigin.ID)
		s.Require().NoError(err)
		s.Equal(int64(2), found.TitleNo)

		byOrigin, err := s.store.FindByOriginRequest(s.ctx, withOrigin.OriginRequestID)
		s.Require().NoError(err)
		s.Equal(withOrigin.ID, byOrigin.ID)

		_, err = s.store.FindByOriginRequest(s.ctx, domain.NewRequestID())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *ParcelStoreSuite) TestListByOwner() {
	mine := s.newParcel(1)
	other := s.newParcel(2)
	other.OwnerWallet = "OtherWa11et"
	s.Require().NoError(s.store.Create(s.ctx, mine))
	s.Require().NoError(s.store.Create(s.ctx, other))

	owned, err := s.store.ListByOwner(s.ctx, "OwnerWa11et")
	s.Require().NoError(err)
	s.Require().Len(owned, 1)
	s.Equal(mine.ID, owned[0].ID)
}

func (s *ParcelStoreSuite) TestUpdateOwner() {
	p := s.newParcel(1)
	s.Require().NoError(s.store.Create(s.ctx, p))

	newRef := ledger.Confirmed("transferSig")
	s.Require().NoError(s.store.UpdateOwner(s.ctx, p.ID, "Hari Thapa", "NewWa11et", newRef))

	updated, err := s.store.FindByID(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal("Hari Thapa", updated.OwnerName)
	s.Equal("NewWa11et", updated.OwnerWallet)
	s.Equal(newRef, updated.LedgerTx)
	s.Equal(p.TitleNo, updated.TitleNo)
	s.False(updated.UpdatedAt.IsZero())

	s.Require().ErrorIs(
		s.store.UpdateOwner(s.ctx, domain.NewParcelID(), "x", "y", newRef),
		sentinel.ErrNotFound,
	)
}

func (s *ParcelStoreSuite) TestBackfillProvenance() {
	p := s.newParcel(1)
	p.CitizenTxSig = "originalCitizenSig"
	s.Require().NoError(s.store.Create(s.ctx, p))

	s.Require().NoError(s.store.BackfillProvenance(s.ctx, p.ID, registry.Provenance{
		CitizenTxSig: "newCitizenSig",
		OfficerTxSig: "officerSig",
		ChiefTxSig:   "chiefSig",
	}))

	updated, err := s.store.FindByID(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Equal("originalCitizenSig", updated.CitizenTxSig, "populated fields stay put")
	s.Equal("officerSig", updated.OfficerTxSig)
	s.Equal("chiefSig", updated.ChiefTxSig)
}
