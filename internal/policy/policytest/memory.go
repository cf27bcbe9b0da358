// Package policytest provides an in-memory policy.Store for tests.
package policytest

import (
	"context"
	"sync"

	"github.com/arenvik/warden/internal/policy"
)

type key struct {
	userID   string
	toolName string
}

// MemoryStore is a mutex-guarded in-memory policy.Store.
type MemoryStore struct {
	mu        sync.Mutex
	overrides map[key]policy.Override
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{overrides: make(map[key]policy.Override)}
}

// Get implements policy.Store.
func (s *MemoryStore) Get(_ context.Context, userID, toolName string) (*policy.Override, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.overrides[key{userID, toolName}]
	if !ok {
		return nil, policy.ErrOverrideNotFound
	}
	cp := o
	return &cp, nil
}

// Set implements policy.Store. Existing overrides are superseded.
func (s *MemoryStore) Set(_ context.Context, override policy.Override) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.overrides[key{override.UserID, override.ToolName}] = override
	return nil
}

// ListForUser implements policy.Store.
func (s *MemoryStore) ListForUser(_ context.Context, userID string) ([]policy.Override, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []policy.Override
	for k, o := range s.overrides {
		if k.userID == userID {
			out = append(out, o)
		}
	}
	return out, nil
}
