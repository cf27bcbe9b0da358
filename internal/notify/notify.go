// Package notify defines the channel-notifier boundary: delivery of
// "approval needed" and "action resolved" events to whichever channel a
// session belongs to. Delivery is best-effort everywhere: the ledger remains
// the source of truth and pending items stay recoverable via listing.
package notify

import (
	"context"
	"log/slog"

	"github.com/arenvik/warden/internal/ledger"
)

// Notifier delivers approval lifecycle events for a session's channel.
// Implementations must not block indefinitely; errors are logged and
// swallowed by the caller.
type Notifier interface {
	// NotifyPending surfaces a newly queued action awaiting a decision.
	NotifyPending(ctx context.Context, action *ledger.PendingAction) error

	// NotifyResolution reports an action reaching a terminal state.
	NotifyResolution(ctx context.Context, action *ledger.PendingAction) error
}

// Messenger delivers free-form text to a user on their channel. Used for
// out-of-band pushes (due reminders) that are not tied to a pending action.
type Messenger interface {
	SendText(ctx context.Context, userID, text string) error
}

// Fanout dispatches events to every registered channel notifier. Failures
// are logged per channel and never propagated.
type Fanout struct {
	logger    *slog.Logger
	notifiers []Notifier
}

// NewFanout creates a Fanout over the given notifiers.
func NewFanout(logger *slog.Logger, notifiers ...Notifier) *Fanout {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fanout{logger: logger, notifiers: notifiers}
}

// Add registers an additional notifier. Called during module wiring, before
// the gate starts serving.
func (f *Fanout) Add(n Notifier) {
	f.notifiers = append(f.notifiers, n)
}

// NotifyPending implements Notifier.
func (f *Fanout) NotifyPending(ctx context.Context, action *ledger.PendingAction) error {
	for _, n := range f.notifiers {
		if err := n.NotifyPending(ctx, action); err != nil {
			f.logger.Warn("pending notification failed",
				"pending_id", action.ID,
				"session_id", action.SessionID,
				"error", err,
			)
		}
	}
	return nil
}

// NotifyResolution implements Notifier.
func (f *Fanout) NotifyResolution(ctx context.Context, action *ledger.PendingAction) error {
	for _, n := range f.notifiers {
		if err := n.NotifyResolution(ctx, action); err != nil {
			f.logger.Warn("resolution notification failed",
				"pending_id", action.ID,
				"session_id", action.SessionID,
				"error", err,
			)
		}
	}
	return nil
}
