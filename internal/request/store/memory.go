package store

import (
	"context"
	"sort"
	"sync"

	"jagga/internal/request"
	"jagga/pkg/domain"
	"jagga/pkg/sentinel"
)

// InMemoryStore backs unit tests and local development.
type InMemoryStore struct {
	mu       sync.RWMutex
	requests map[domain.RequestID]*request.Request
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{requests: make(map[domain.RequestID]*request.Request)}
}

func (s *InMemoryStore) Create(_ context.Context, req *request.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[req.ID]; ok {
		return sentinel.ErrConflict
	}
	cp := *req
	s.requests[req.ID] = &cp
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, id domain.RequestID) (*request.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *req
	return &cp, nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*request.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*request.Request, 0, len(s.requests))
	for _, req := range s.requests {
		cp := *req
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) ApplyTransition(_ context.Context, id domain.RequestID, upd TransitionUpdate) (*request.Request, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if req.Status != upd.Expected {
		return nil, sentinel.ErrInvalidState
	}
	req.Status = upd.Next
	switch upd.Next {
	case request.StatusProposed:
		if req.OfficerFeeProof == "" {
			req.OfficerFeeProof = upd.Proof
		}
	case request.StatusApproved, request.StatusRejected:
		if req.ChiefFeeProof == "" {
			req.ChiefFeeProof = upd.Proof
		}
	}
	if upd.MarkReconcilePending {
		req.ReconciliationState = request.ReconcilePending
	}
	cp := *req
	return &cp, nil
}

func (s *InMemoryStore) SetReconciliationState(_ context.Context, id domain.RequestID, state request.ReconciliationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	req.ReconciliationState = state
	return nil
}

func (s *InMemoryStore) ListUnreconciled(_ context.Context) ([]*request.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*request.Request
	for _, req := range s.requests {
		if req.Status.Terminal() &&
			(req.ReconciliationState == request.ReconcilePending || req.ReconciliationState == request.ReconcileFailed) {
			cp := *req
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *InMemoryStore) LatestApprovedRegistration(_ context.Context, wallet, name string) (*request.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var latest *request.Request
	for _, req := range s.requests {
		if req.Type != request.TypeRegistration || req.Status != request.StatusApproved {
			continue
		}
		if req.SubmitterWallet != wallet || req.SubmitterName != name {
			continue
		}
		if latest == nil || req.CreatedAt.After(latest.CreatedAt) {
			latest = req
		}
	}
	if latest == nil {
		return nil, sentinel.ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (s *InMemoryStore) Counts(_ context.Context) (Counts, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var c Counts
	for _, req := range s.requests {
		switch req.Status {
		case request.StatusPending:
			c.Pending++
			if req.Type == request.TypeRegistration {
				c.PendingRegistrations++
			} else {
				c.PendingTransfers++
			}
		case request.StatusProposed:
			c.Proposed++
		case request.StatusApproved:
			c.Approved++
		}
	}
	return c, nil
}
