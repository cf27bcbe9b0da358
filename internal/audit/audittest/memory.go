// Package audittest provides an in-memory audit.Trail for tests.
package audittest

import (
	"context"
	"sync"

	"github.com/arenvik/warden/internal/audit"
)

// MemoryTrail collects appended records in order.
type MemoryTrail struct {
	mu      sync.Mutex
	records []audit.Record
}

// NewMemoryTrail creates an empty trail.
func NewMemoryTrail() *MemoryTrail {
	return &MemoryTrail{}
}

// Append implements audit.Trail.
func (t *MemoryTrail) Append(_ context.Context, record audit.Record) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = append(t.records, record)
	return nil
}

// History implements audit.Trail.
func (t *MemoryTrail) History(_ context.Context, filter audit.Filter) ([]audit.Record, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []audit.Record
	for _, r := range t.records {
		if filter.PendingActionID != "" && r.PendingActionID != filter.PendingActionID {
			continue
		}
		if filter.UserID != "" && r.UserID != filter.UserID {
			continue
		}
		if !filter.Since.IsZero() && r.At.Before(filter.Since) {
			continue
		}
		out = append(out, r)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

// Records returns a copy of everything appended so far.
func (t *MemoryTrail) Records() []audit.Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]audit.Record, len(t.records))
	copy(out, t.records)
	return out
}
