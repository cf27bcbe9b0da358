// Package dispatch resolves queued pending actions. It owns the terminal
// half of the action lifecycle: applying a human decision, executing
// approved tools exactly once, and expiring entries whose deadline passed.
//
// Every status change goes through the ledger's compare-and-swap, so two
// channels resolving the same action concurrently cannot both win, and an
// approval racing the expiry sweep settles on whichever swap lands first.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/arenvik/warden/internal/audit"
	"github.com/arenvik/warden/internal/conversation"
	"github.com/arenvik/warden/internal/ledger"
	"github.com/arenvik/warden/internal/metrics"
	"github.com/arenvik/warden/internal/notify"
	"github.com/arenvik/warden/internal/tool"
)

// ErrUnknownDecision is returned for a decision other than approve or reject.
var ErrUnknownDecision = errors.New("unknown decision")

// Decision is a human verdict on a pending action.
type Decision string

// Decisions.
const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// Resolution carries one decision to Resolve.
type Resolution struct {
	Decision Decision

	// Actor identifies who decided, e.g. "user:telegram" or an API client ID.
	Actor string

	// Reason optionally explains a rejection. Recorded in the audit trail.
	Reason string
}

// Config configures a Dispatcher.
type Config struct {
	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Now overrides time.Now for testing.
	Now func() time.Time

	// Metrics, if non-nil, records resolution counters.
	Metrics *metrics.Metrics
}

// Dispatcher applies decisions to pending actions and runs the expiry sweep.
// Safe for concurrent use.
type Dispatcher struct {
	registry *tool.Registry
	store    ledger.Store
	trail    audit.Trail
	notifier notify.Notifier
	sink     conversation.Sink

	logger  *slog.Logger
	now     func() time.Time
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// New creates a Dispatcher. sink may be nil when no conversation transcript
// is wired.
func New(
	registry *tool.Registry,
	store ledger.Store,
	trail audit.Trail,
	notifier notify.Notifier,
	sink conversation.Sink,
	cfg Config,
) *Dispatcher {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Dispatcher{
		registry: registry,
		store:    store,
		trail:    trail,
		notifier: notifier,
		sink:     sink,
		logger:   cfg.Logger,
		now:      cfg.Now,
		metrics:  cfg.Metrics,
		tracer:   otel.Tracer("warden/dispatch"),
	}
}

// Resolve applies a decision to the identified pending action and returns it
// in its final state.
//
// Unknown IDs fail with ledger.ErrNotFound. Actions no longer pending fail
// with ledger.ErrAlreadyResolved; a second decision never re-executes the
// tool. An approved action executes exactly once, then lands in Executed or
// Failed depending on the handler outcome.
func (d *Dispatcher) Resolve(ctx context.Context, id string, res Resolution) (*ledger.PendingAction, error) {
	ctx, span := d.tracer.Start(ctx, "dispatch.resolve", trace.WithAttributes(
		attribute.String("pending_id", id),
		attribute.String("decision", string(res.Decision)),
	))
	defer span.End()

	switch res.Decision {
	case DecisionApprove, DecisionReject:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDecision, res.Decision)
	}

	to := ledger.StatusApproved
	if res.Decision == DecisionReject {
		to = ledger.StatusRejected
	}

	now := d.now()
	action, err := d.store.Transition(ctx, id, ledger.StatusPending, to, ledger.Fields{
		ResolvedAt: now,
	})
	if err != nil {
		return nil, err
	}
	d.gaugePendingDec()
	d.appendAudit(ctx, action, ledger.StatusPending, to, res.Actor, res.Reason, now)

	if res.Decision == DecisionReject {
		d.count(metrics.OutcomeRejected)
		d.followUp(ctx, action, rejectionText(action, res.Reason))
		d.notifyResolution(ctx, action)
		d.logger.Info("pending action rejected",
			"pending_id", action.ID, "tool", action.ToolName, "actor", res.Actor)
		return action, nil
	}

	return d.execute(ctx, action, res.Actor)
}

// execute runs an approved action's tool and records the terminal state.
func (d *Dispatcher) execute(ctx context.Context, action *ledger.PendingAction, actor string) (*ledger.PendingAction, error) {
	out, execErr := d.run(ctx, action)

	now := d.now()
	if execErr != nil {
		failed, err := d.store.Transition(ctx, action.ID, ledger.StatusApproved, ledger.StatusFailed, ledger.Fields{
			FailureReason: execErr.Error(),
		})
		if err != nil {
			// The approval is durable but the outcome is not recorded.
			// Surface both.
			return nil, errors.Join(execErr, err)
		}
		d.count(metrics.OutcomeFailed)
		d.appendAudit(ctx, failed, ledger.StatusApproved, ledger.StatusFailed, actor, execErr.Error(), now)
		d.followUp(ctx, failed, fmt.Sprintf("%s was approved but failed: %s", failed.ToolName, execErr))
		d.notifyResolution(ctx, failed)
		d.logger.Warn("approved action failed",
			"pending_id", failed.ID, "tool", failed.ToolName, "error", execErr)
		return failed, nil
	}

	executed, err := d.store.Transition(ctx, action.ID, ledger.StatusApproved, ledger.StatusExecuted, ledger.Fields{
		ExecutionResult: out.Content,
	})
	if err != nil {
		return nil, err
	}
	d.count(metrics.OutcomeExecuted)
	d.appendAudit(ctx, executed, ledger.StatusApproved, ledger.StatusExecuted, actor, "", now)
	d.followUp(ctx, executed, fmt.Sprintf("%s was approved and executed: %s", executed.ToolName, out.Content))
	d.notifyResolution(ctx, executed)
	d.logger.Info("approved action executed",
		"pending_id", executed.ID, "tool", executed.ToolName, "actor", actor)
	return executed, nil
}

// run looks up and invokes the action's tool. The stored arguments were
// schema-validated at queue time and run unchanged.
func (d *Dispatcher) run(ctx context.Context, action *ledger.PendingAction) (tool.Output, error) {
	t, err := d.registry.Lookup(action.ToolName)
	if err != nil {
		return tool.Output{}, err
	}
	out, err := t.Execute(ctx, action.Arguments)
	if err != nil {
		return tool.Output{}, err
	}
	if out.IsError {
		return tool.Output{}, fmt.Errorf("%s: %s", action.ToolName, out.Content)
	}
	return out, nil
}

// SweepExpired cancels every pending action whose deadline has passed and
// returns how many were expired. The sweep is idempotent: entries resolved
// between listing and swapping are skipped, and a rerun over the same window
// finds nothing left to expire.
func (d *Dispatcher) SweepExpired(ctx context.Context) (int, error) {
	ctx, span := d.tracer.Start(ctx, "dispatch.sweep_expired")
	defer span.End()

	now := d.now()
	candidates, err := d.store.ListExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("dispatch: list expired: %w", err)
	}

	swept := 0
	for _, action := range candidates {
		expired, err := d.store.Transition(ctx, action.ID, ledger.StatusPending, ledger.StatusExpired, ledger.Fields{
			ResolvedAt: now,
		})
		if errors.Is(err, ledger.ErrAlreadyResolved) || errors.Is(err, ledger.ErrNotFound) {
			// Lost the race to a concurrent approval or rejection.
			continue
		}
		if err != nil {
			return swept, fmt.Errorf("dispatch: expire %s: %w", action.ID, err)
		}

		swept++
		d.gaugePendingDec()
		if d.metrics != nil {
			d.metrics.SweptExpired.Inc()
		}
		d.appendAudit(ctx, expired, ledger.StatusPending, ledger.StatusExpired, audit.ActorSweep, "", now)
		d.followUp(ctx, expired, fmt.Sprintf("%s expired unanswered", expired.ToolName))
		d.notifyResolution(ctx, expired)
	}

	if swept > 0 {
		d.logger.Info("expiry sweep completed", "swept", swept, "as_of", now)
	}
	return swept, nil
}

func (d *Dispatcher) appendAudit(ctx context.Context, action *ledger.PendingAction, from, to ledger.Status, actor, detail string, at time.Time) {
	err := d.trail.Append(ctx, audit.Record{
		PendingActionID: action.ID,
		UserID:          action.UserID,
		ToolName:        action.ToolName,
		FromStatus:      from,
		ToStatus:        to,
		Actor:           actor,
		Detail:          detail,
		At:              at,
	})
	if err != nil {
		d.logger.Error("audit append failed",
			"pending_id", action.ID, "to_status", to, "error", err)
	}
}

// followUp posts a system line into the originating session's transcript.
// Best-effort: the ledger already holds the authoritative outcome.
func (d *Dispatcher) followUp(ctx context.Context, action *ledger.PendingAction, text string) {
	if d.sink == nil {
		return
	}
	if err := d.sink.AppendSystemMessage(ctx, action.SessionID, text); err != nil {
		d.logger.Warn("conversation follow-up failed",
			"pending_id", action.ID, "session_id", action.SessionID, "error", err)
	}
}

func (d *Dispatcher) notifyResolution(ctx context.Context, action *ledger.PendingAction) {
	if d.notifier == nil {
		return
	}
	if err := d.notifier.NotifyResolution(ctx, action); err != nil {
		d.logger.Warn("resolution notification failed",
			"pending_id", action.ID, "error", err)
	}
}

func (d *Dispatcher) count(outcome string) {
	if d.metrics != nil {
		d.metrics.Resolutions.WithLabelValues(outcome).Inc()
	}
}

func (d *Dispatcher) gaugePendingDec() {
	if d.metrics != nil {
		d.metrics.PendingOpen.Dec()
	}
}

func rejectionText(action *ledger.PendingAction, reason string) string {
	if reason == "" {
		return fmt.Sprintf("%s was rejected", action.ToolName)
	}
	return fmt.Sprintf("%s was rejected: %s", action.ToolName, reason)
}
