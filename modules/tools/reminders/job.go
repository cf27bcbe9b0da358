package reminders

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/arenvik/warden/internal/cron"
	"github.com/arenvik/warden/internal/notify"
	"github.com/arenvik/warden/internal/reminder"
)

// DueReminderJob delivers due reminders to their owners and marks them fired.
// A reminder whose delivery fails stays unfired and is retried on the next
// tick.
type DueReminderJob struct {
	Store        reminder.Store
	Messenger    notify.Messenger
	Logger       *slog.Logger
	ScheduleExpr string           // empty = default "* * * * *"
	Now          func() time.Time // empty = time.Now
}

// Compile-time interface check.
var _ cron.Job = (*DueReminderJob)(nil)

// Name implements cron.Job.
func (j *DueReminderJob) Name() string { return "reminder_delivery" }

// Schedule implements cron.Job.
func (j *DueReminderJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "* * * * *"
}

// Run delivers every reminder due at or before now. Per-reminder failures
// are logged and skipped so one unreachable user cannot block the rest.
func (j *DueReminderJob) Run(ctx context.Context) error {
	now := time.Now
	if j.Now != nil {
		now = j.Now
	}

	due, err := j.Store.ListDue(ctx, now())
	if err != nil {
		return fmt.Errorf("list due reminders: %w", err)
	}

	delivered := 0
	for _, r := range due {
		text := fmt.Sprintf("Reminder: %s", r.Text)
		if err := j.Messenger.SendText(ctx, r.UserID, text); err != nil {
			if j.Logger != nil {
				j.Logger.Warn("cron: reminder delivery failed",
					"reminder_id", r.ID,
					"user", r.UserID,
					"error", err,
				)
			}
			continue
		}
		if err := j.Store.MarkFired(ctx, r.ID); err != nil {
			if j.Logger != nil {
				j.Logger.Error("cron: delivered reminder could not be marked fired",
					"reminder_id", r.ID,
					"error", err,
				)
			}
			continue
		}
		delivered++
	}

	if delivered > 0 && j.Logger != nil {
		j.Logger.Info("cron: delivered reminders", "count", delivered)
	}
	return nil
}
