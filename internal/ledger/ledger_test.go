package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/arenvik/warden/internal/ledger"
	"github.com/arenvik/warden/internal/ledger/ledgertest"
)

func TestCanTransition(t *testing.T) {
	t.Parallel()

	legal := []struct{ from, to ledger.Status }{
		{ledger.StatusPending, ledger.StatusApproved},
		{ledger.StatusPending, ledger.StatusRejected},
		{ledger.StatusPending, ledger.StatusExpired},
		{ledger.StatusApproved, ledger.StatusExecuted},
		{ledger.StatusApproved, ledger.StatusFailed},
	}
	for _, e := range legal {
		if !ledger.CanTransition(e.from, e.to) {
			t.Errorf("CanTransition(%s, %s) = false, want true", e.from, e.to)
		}
	}

	illegal := []struct{ from, to ledger.Status }{
		{ledger.StatusPending, ledger.StatusExecuted},
		{ledger.StatusPending, ledger.StatusFailed},
		{ledger.StatusApproved, ledger.StatusRejected},
		{ledger.StatusApproved, ledger.StatusPending},
		{ledger.StatusRejected, ledger.StatusApproved},
		{ledger.StatusExpired, ledger.StatusApproved},
		{ledger.StatusExecuted, ledger.StatusFailed},
		{ledger.StatusFailed, ledger.StatusExecuted},
	}
	for _, e := range illegal {
		if ledger.CanTransition(e.from, e.to) {
			t.Errorf("CanTransition(%s, %s) = true, want false", e.from, e.to)
		}
	}
}

func TestStatus_Terminal(t *testing.T) {
	t.Parallel()

	for _, s := range []ledger.Status{ledger.StatusRejected, ledger.StatusExpired, ledger.StatusExecuted, ledger.StatusFailed} {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}
	for _, s := range []ledger.Status{ledger.StatusPending, ledger.StatusApproved} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func newAction(id, userID string, expiresAt time.Time) *ledger.PendingAction {
	return &ledger.PendingAction{
		ID:        id,
		ToolName:  "send_email",
		Arguments: []byte(`{"to":"x@y.com"}`),
		SessionID: "s1",
		UserID:    userID,
		Status:    ledger.StatusPending,
		CreatedAt: expiresAt.Add(-24 * time.Hour),
		ExpiresAt: expiresAt,
	}
}

func TestMemoryStore_TransitionCAS(t *testing.T) {
	t.Parallel()

	store := ledgertest.NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	if err := store.Create(ctx, newAction("p1", "alice", now.Add(time.Hour))); err != nil {
		t.Fatal(err)
	}

	updated, err := store.Transition(ctx, "p1", ledger.StatusPending, ledger.StatusApproved, ledger.Fields{ResolvedAt: now})
	if err != nil {
		t.Fatalf("Transition: %v", err)
	}
	if updated.Status != ledger.StatusApproved || updated.ResolvedAt.IsZero() {
		t.Errorf("updated = %+v, want approved with resolved_at set", updated)
	}

	// A second swap from Pending misses: the entry has moved on.
	if _, err := store.Transition(ctx, "p1", ledger.StatusPending, ledger.StatusRejected, ledger.Fields{}); !errors.Is(err, ledger.ErrAlreadyResolved) {
		t.Errorf("err = %v, want ErrAlreadyResolved", err)
	}

	// Illegal edges are rejected before the swap is attempted.
	if _, err := store.Transition(ctx, "p1", ledger.StatusApproved, ledger.StatusRejected, ledger.Fields{}); !errors.Is(err, ledger.ErrIllegalTransition) {
		t.Errorf("err = %v, want ErrIllegalTransition", err)
	}

	// Unknown IDs are reported as such.
	if _, err := store.Transition(ctx, "ghost", ledger.StatusPending, ledger.StatusApproved, ledger.Fields{}); !errors.Is(err, ledger.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMemoryStore_ConcurrentTransitionOneWinner(t *testing.T) {
	t.Parallel()

	store := ledgertest.NewMemoryStore()
	ctx := context.Background()

	if err := store.Create(ctx, newAction("p1", "alice", time.Now().Add(-time.Second))); err != nil {
		t.Fatal(err)
	}

	// Race an approval against an expiry sweep on the same entry.
	var wg sync.WaitGroup
	results := make([]error, 2)
	targets := []ledger.Status{ledger.StatusApproved, ledger.StatusExpired}
	for i, to := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, results[i] = store.Transition(ctx, "p1", ledger.StatusPending, to, ledger.Fields{})
		}()
	}
	wg.Wait()

	var wins, losses int
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ledger.ErrAlreadyResolved):
			losses++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || losses != 1 {
		t.Errorf("wins = %d, losses = %d; want exactly one of each", wins, losses)
	}

	got, err := store.Get(ctx, "p1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != ledger.StatusApproved && got.Status != ledger.StatusExpired {
		t.Errorf("final status = %s, want approved or expired", got.Status)
	}
}

func TestMemoryStore_Listing(t *testing.T) {
	t.Parallel()

	store := ledgertest.NewMemoryStore()
	ctx := context.Background()
	now := time.Now()

	for _, a := range []*ledger.PendingAction{
		newAction("old", "alice", now.Add(-time.Minute)),
		newAction("fresh", "alice", now.Add(time.Hour)),
		newAction("other", "bob", now.Add(time.Hour)),
	} {
		if err := store.Create(ctx, a); err != nil {
			t.Fatal(err)
		}
	}

	pending, err := store.ListPending(ctx, "alice")
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 {
		t.Errorf("ListPending(alice) = %d entries, want 2", len(pending))
	}

	expired, err := store.ListExpired(ctx, now)
	if err != nil {
		t.Fatal(err)
	}
	if len(expired) != 1 || expired[0].ID != "old" {
		t.Errorf("ListExpired = %+v, want just the old entry", expired)
	}

	// Resolved entries drop out of both listings.
	if _, err := store.Transition(ctx, "fresh", ledger.StatusPending, ledger.StatusRejected, ledger.Fields{ResolvedAt: now}); err != nil {
		t.Fatal(err)
	}
	pending, _ = store.ListPending(ctx, "alice")
	if len(pending) != 1 || pending[0].ID != "old" {
		t.Errorf("ListPending after rejection = %+v, want just the old entry", pending)
	}
}

func TestPendingAction_Expired(t *testing.T) {
	t.Parallel()

	now := time.Now()
	a := newAction("p1", "alice", now)
	if a.Expired(now) {
		t.Error("an action expiring exactly now is not yet expired")
	}
	if !a.Expired(now.Add(time.Nanosecond)) {
		t.Error("an action past its deadline should be expired")
	}
}
