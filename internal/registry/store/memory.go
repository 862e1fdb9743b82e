package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"jagga/internal/ledger"
	"jagga/internal/registry"
	"jagga/pkg/domain"
	"jagga/pkg/sentinel"
)

// InMemoryStore backs unit tests and local development.
type InMemoryStore struct {
	mu      sync.RWMutex
	parcels map[domain.ParcelID]*registry.Parcel
	titleNo int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{parcels: make(map[domain.ParcelID]*registry.Parcel)}
}

func (s *InMemoryStore) NextTitleNo(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.titleNo++
	return s.titleNo, nil
}

func (s *InMemoryStore) Create(_ context.Context, p *registry.Parcel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.parcels {
		if existing.TitleNo == p.TitleNo {
			return sentinel.ErrConflict
		}
	}
	cp := *p
	s.parcels[p.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.ParcelID) (*registry.Parcel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.parcels[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *InMemoryStore) FindByOriginRequest(_ context.Context, reqID domain.RequestID) (*registry.Parcel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.parcels {
		if p.OriginRequestID == reqID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) List(_ context.Context) ([]*registry.Parcel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*registry.Parcel, 0, len(s.parcels))
	for _, p := range s.parcels {
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) ListByOwner(_ context.Context, ownerWallet string) ([]*registry.Parcel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*registry.Parcel
	for _, p := range s.parcels {
		if p.OwnerWallet == ownerWallet {
			cp := *p
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) UpdateOwner(_ context.Context, id domain.ParcelID, ownerName, ownerWallet string, tx ledger.Ref) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parcels[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	p.OwnerName = ownerName
	p.OwnerWallet = ownerWallet
	p.LedgerTx = tx
	p.UpdatedAt = time.Now()
	return nil
}

func (s *InMemoryStore) BackfillProvenance(_ context.Context, id domain.ParcelID, prov registry.Provenance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.parcels[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	if p.CitizenTxSig == "" {
		p.CitizenTxSig = prov.CitizenTxSig
	}
	if p.OfficerTxSig == "" {
		p.OfficerTxSig = prov.OfficerTxSig
	}
	if p.ChiefTxSig == "" {
		p.ChiefTxSig = prov.ChiefTxSig
	}
	return nil
}

func (s *InMemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.parcels), nil
}
