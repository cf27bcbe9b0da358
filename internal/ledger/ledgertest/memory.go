// Package ledgertest provides an in-memory ledger.Store with the same CAS
// semantics as the SQLite store, for unit tests of the gate and dispatcher.
package ledgertest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/arenvik/warden/internal/ledger"
)

// MemoryStore is a mutex-guarded in-memory ledger.Store.
type MemoryStore struct {
	mu      sync.Mutex
	actions map[string]*ledger.PendingAction
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		actions: make(map[string]*ledger.PendingAction),
	}
}

// Create implements ledger.Store.
func (s *MemoryStore) Create(_ context.Context, action *ledger.PendingAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.actions[action.ID]; exists {
		return fmt.Errorf("ledgertest: duplicate id %s", action.ID)
	}
	cp := *action
	s.actions[action.ID] = &cp
	return nil
}

// Get implements ledger.Store.
func (s *MemoryStore) Get(_ context.Context, id string) (*ledger.PendingAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	action, ok := s.actions[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	cp := *action
	return &cp, nil
}

// ListPending implements ledger.Store.
func (s *MemoryStore) ListPending(_ context.Context, userID string) ([]*ledger.PendingAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*ledger.PendingAction
	for _, action := range s.actions {
		if action.UserID == userID && action.Status == ledger.StatusPending {
			cp := *action
			out = append(out, &cp)
		}
	}
	sortByCreation(out)
	return out, nil
}

// ListOpen returns every pending entry regardless of user, oldest first.
func (s *MemoryStore) ListOpen(_ context.Context) ([]*ledger.PendingAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*ledger.PendingAction
	for _, action := range s.actions {
		if action.Status == ledger.StatusPending {
			cp := *action
			out = append(out, &cp)
		}
	}
	sortByCreation(out)
	return out, nil
}

// ListExpired implements ledger.Store.
func (s *MemoryStore) ListExpired(_ context.Context, asOf time.Time) ([]*ledger.PendingAction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*ledger.PendingAction
	for _, action := range s.actions {
		if action.Status == ledger.StatusPending && action.ExpiresAt.Before(asOf) {
			cp := *action
			out = append(out, &cp)
		}
	}
	sortByCreation(out)
	return out, nil
}

// Transition implements ledger.Store with the same CAS contract as the
// SQLite store: the swap succeeds only if the entry is currently in `from`.
func (s *MemoryStore) Transition(_ context.Context, id string, from, to ledger.Status, fields ledger.Fields) (*ledger.PendingAction, error) {
	if !ledger.CanTransition(from, to) {
		return nil, fmt.Errorf("%w: %s → %s", ledger.ErrIllegalTransition, from, to)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	action, ok := s.actions[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	if action.Status != from {
		return nil, fmt.Errorf("%w: %s is %s", ledger.ErrAlreadyResolved, id, action.Status)
	}

	action.Status = to
	if !fields.ResolvedAt.IsZero() {
		action.ResolvedAt = fields.ResolvedAt
	}
	if fields.ExecutionResult != "" {
		action.ExecutionResult = fields.ExecutionResult
	}
	if fields.FailureReason != "" {
		action.FailureReason = fields.FailureReason
	}

	cp := *action
	return &cp, nil
}

func sortByCreation(actions []*ledger.PendingAction) {
	sort.Slice(actions, func(i, j int) bool {
		if actions[i].CreatedAt.Equal(actions[j].CreatedAt) {
			return actions[i].ID < actions[j].ID
		}
		return actions[i].CreatedAt.Before(actions[j].CreatedAt)
	})
}
