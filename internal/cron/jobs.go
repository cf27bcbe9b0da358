package cron

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper is the subset of the dispatcher needed by the expiry sweep.
// Defined here to avoid a dependency on the dispatch package.
type Sweeper interface {
	SweepExpired(ctx context.Context) (int, error)
}

// ExpirySweepJob cancels pending actions whose deadline has passed.
type ExpirySweepJob struct {
	Sweeper      Sweeper
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "* * * * *"
}

// Compile-time interface check.
var _ Job = (*ExpirySweepJob)(nil)

// Name implements Job.
func (j *ExpirySweepJob) Name() string { return "expiry_sweep" }

// Schedule implements Job.
func (j *ExpirySweepJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "* * * * *"
}

// Run expires overdue pending actions. Safe to rerun: the sweep skips
// entries resolved since listing.
func (j *ExpirySweepJob) Run(ctx context.Context) error {
	swept, err := j.Sweeper.SweepExpired(ctx)
	if err != nil {
		return err
	}
	if swept > 0 && j.Logger != nil {
		j.Logger.Info("cron: expired pending actions", "count", swept)
	}
	return nil
}

// AuditPruner is the subset of the audit store needed for retention pruning.
type AuditPruner interface {
	PruneBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// AuditRetentionJob deletes audit records older than Retention.
type AuditRetentionJob struct {
	Pruner       AuditPruner
	Retention    time.Duration // empty = default 90 days
	Logger       *slog.Logger
	ScheduleExpr string           // empty = default "0 3 * * *"
	Now          func() time.Time // empty = time.Now
}

// Compile-time interface check.
var _ Job = (*AuditRetentionJob)(nil)

// Name implements Job.
func (j *AuditRetentionJob) Name() string { return "audit_retention" }

// Schedule implements Job.
func (j *AuditRetentionJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "0 3 * * *"
}

// Run prunes audit records past the retention window.
func (j *AuditRetentionJob) Run(ctx context.Context) error {
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}
	retention := j.Retention
	if retention <= 0 {
		retention = 90 * 24 * time.Hour
	}

	pruned, err := j.Pruner.PruneBefore(ctx, now().Add(-retention))
	if err != nil {
		return err
	}
	if pruned > 0 && j.Logger != nil {
		j.Logger.Info("cron: pruned audit records", "count", pruned)
	}
	return nil
}
