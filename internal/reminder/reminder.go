// Package reminder defines the reminder domain types shared by the reminder
// tools and the storage layer.
package reminder

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no reminder exists with the given ID.
var ErrNotFound = errors.New("reminder: not found")

// Reminder is a user-scheduled one-shot note.
type Reminder struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Text      string    `json:"text"`
	DueAt     time.Time `json:"due_at"`
	Fired     bool      `json:"fired"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists reminders.
type Store interface {
	// Create inserts a new reminder.
	Create(ctx context.Context, r *Reminder) error

	// ListUpcoming returns the user's unfired reminders, soonest first.
	ListUpcoming(ctx context.Context, userID string, limit int) ([]*Reminder, error)

	// ListDue returns unfired reminders due at or before asOf.
	ListDue(ctx context.Context, asOf time.Time) ([]*Reminder, error)

	// MarkFired flags a reminder as delivered.
	MarkFired(ctx context.Context, id string) error
}
