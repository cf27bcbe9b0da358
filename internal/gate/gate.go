// Package gate implements the synchronous decision point invoked for every
// agent tool call. It classifies the call by effective risk tier and either
// executes it immediately, queues it on the pending-action ledger for human
// sign-off, or rejects it. The gate never blocks on a human decision: the
// deferred path returns at once with a pending-action ID.
package gate

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/arenvik/warden/internal/audit"
	"github.com/arenvik/warden/internal/ledger"
	"github.com/arenvik/warden/internal/metrics"
	"github.com/arenvik/warden/internal/notify"
	"github.com/arenvik/warden/internal/policy"
	"github.com/arenvik/warden/internal/security"
	"github.com/arenvik/warden/internal/tool"
)

// DefaultTTL is how long a queued action waits for a decision before the
// expiry sweep cancels it.
const DefaultTTL = 24 * time.Hour

// Kind discriminates the gate's result union.
type Kind string

// Result kinds.
const (
	// KindExecuted: the tool ran synchronously; Output holds its result.
	KindExecuted Kind = "executed"

	// KindDeferred: the call was queued for human approval; PendingID
	// identifies the ledger entry.
	KindDeferred Kind = "deferred"

	// KindRejected: the call was refused without queueing; Reason explains.
	KindRejected Kind = "rejected"
)

// Result is a flat union; Kind discriminates which fields are meaningful.
type Result struct {
	Kind      Kind        `json:"kind"`
	Output    tool.Output `json:"output,omitzero"`
	PendingID string      `json:"pending_id,omitempty"`
	Reason    string      `json:"reason,omitempty"`
}

// Request is one intercepted tool call.
type Request struct {
	UserID    string
	SessionID string
	ToolName  string
	Arguments json.RawMessage
}

// Config configures a Gate.
type Config struct {
	// TTL is the pending-action lifetime. Defaults to DefaultTTL.
	TTL time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Now overrides time.Now for testing.
	Now func() time.Time

	// Limiter, if non-nil, rate-limits gate calls via the "gate" bucket.
	Limiter *security.RateLimiter

	// Metrics, if non-nil, records decision counters.
	Metrics *metrics.Metrics
}

// Gate is the approval gate. Construct once and share across request
// handlers; all methods are safe for concurrent use.
type Gate struct {
	registry *tool.Registry
	resolver *policy.Resolver
	store    ledger.Store
	trail    audit.Trail
	notifier notify.Notifier

	ttl     time.Duration
	logger  *slog.Logger
	now     func() time.Time
	limiter *security.RateLimiter
	metrics *metrics.Metrics
	tracer  trace.Tracer
}

// New creates a Gate over the given collaborators.
func New(
	registry *tool.Registry,
	resolver *policy.Resolver,
	store ledger.Store,
	trail audit.Trail,
	notifier notify.Notifier,
	cfg Config,
) *Gate {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Gate{
		registry: registry,
		resolver: resolver,
		store:    store,
		trail:    trail,
		notifier: notifier,
		ttl:      cfg.TTL,
		logger:   cfg.Logger,
		now:      cfg.Now,
		limiter:  cfg.Limiter,
		metrics:  cfg.Metrics,
		tracer:   otel.Tracer("warden/gate"),
	}
}

// Decide classifies and dispatches one tool call.
//
//  1. Unregistered tool names fail fast with tool.ErrUnknownTool.
//  2. Arguments failing schema validation fail with tool.ErrInvalidArguments;
//     neither case creates a ledger entry.
//  3. AutoApprove executes the handler synchronously and returns its result.
//     This path writes no ledger entry and no audit record.
//  4. Anything else creates a Pending ledger entry with the configured TTL,
//     appends the creation audit record, best-effort notifies the session's
//     channel, and returns Deferred.
func (g *Gate) Decide(ctx context.Context, req Request) (Result, error) {
	ctx, span := g.tracer.Start(ctx, "gate.decide", trace.WithAttributes(
		attribute.String("tool", req.ToolName),
		attribute.String("session_id", req.SessionID),
	))
	defer span.End()

	if g.limiter != nil {
		if err := g.limiter.Allow(security.BucketGate); err != nil {
			g.count(metrics.OutcomeRejected)
			return Result{Kind: KindRejected, Reason: "rate limit exceeded"}, nil
		}
	}

	t, err := g.registry.Lookup(req.ToolName)
	if err != nil {
		g.count(metrics.OutcomeError)
		return Result{}, err
	}

	if err := tool.ValidateArguments(t.Schema(), req.Arguments); err != nil {
		g.count(metrics.OutcomeError)
		return Result{}, err
	}

	tier, err := g.resolver.EffectiveTier(ctx, req.UserID, req.ToolName)
	if err != nil {
		g.count(metrics.OutcomeError)
		return Result{}, fmt.Errorf("gate: resolve tier for %s: %w", req.ToolName, err)
	}

	if tier == tool.TierAutoApprove {
		out, execErr := t.Execute(ctx, req.Arguments)
		if execErr != nil {
			g.count(metrics.OutcomeError)
			return Result{}, fmt.Errorf("gate: %s: %w", req.ToolName, execErr)
		}
		g.count(metrics.OutcomeExecuted)
		return Result{Kind: KindExecuted, Output: out}, nil
	}

	return g.queue(ctx, req)
}

// queue creates the Pending ledger entry and notifies the session's channel.
func (g *Gate) queue(ctx context.Context, req Request) (Result, error) {
	now := g.now()
	action := &ledger.PendingAction{
		ID:        uuid.NewString(),
		ToolName:  req.ToolName,
		Arguments: req.Arguments,
		SessionID: req.SessionID,
		UserID:    req.UserID,
		Status:    ledger.StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(g.ttl),
	}

	if err := g.store.Create(ctx, action); err != nil {
		g.count(metrics.OutcomeError)
		return Result{}, fmt.Errorf("gate: queue %s: %w", req.ToolName, err)
	}

	if err := g.trail.Append(ctx, audit.Record{
		PendingActionID: action.ID,
		UserID:          action.UserID,
		ToolName:        action.ToolName,
		ToStatus:        ledger.StatusPending,
		Actor:           audit.ActorSystem,
		At:              now,
	}); err != nil {
		// The entry exists; a missing creation record is an audit gap,
		// not a reason to fail the call.
		g.logger.Error("audit append failed", "pending_id", action.ID, "error", err)
	}

	// Best-effort: the pending item is recoverable via listing even if the
	// push notification is lost.
	if g.notifier != nil {
		if err := g.notifier.NotifyPending(ctx, action); err != nil {
			g.logger.Warn("pending notification failed", "pending_id", action.ID, "error", err)
		}
	}

	if g.metrics != nil {
		g.metrics.PendingOpen.Inc()
	}
	g.count(metrics.OutcomeDeferred)

	g.logger.Info("tool call queued for approval",
		"tool", req.ToolName,
		"pending_id", action.ID,
		"session_id", req.SessionID,
		"expires_at", action.ExpiresAt,
	)

	return Result{Kind: KindDeferred, PendingID: action.ID}, nil
}

// ListPending returns the user's open approvals, oldest first.
func (g *Gate) ListPending(ctx context.Context, userID string) ([]*ledger.PendingAction, error) {
	return g.store.ListPending(ctx, userID)
}

func (g *Gate) count(outcome string) {
	if g.metrics != nil {
		g.metrics.GateDecisions.WithLabelValues(outcome).Inc()
	}
}
