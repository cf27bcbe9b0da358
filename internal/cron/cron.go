// Package cron schedules the periodic maintenance work behind the approval
// flow: sweeping expired pending actions, pruning old audit entries, and
// delivering due reminders.
package cron

import "context"

// Job is one periodic task. Name must be unique within a scheduler; it keys
// the per-job overlap lock and appears in log lines. Schedule is a 5-field
// cron expression ("*/5 * * * *"). Run receives a context that is cancelled
// when the scheduler stops.
type Job interface {
	Name() string
	Schedule() string
	Run(ctx context.Context) error
}
