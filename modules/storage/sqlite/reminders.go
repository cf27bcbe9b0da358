package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/arenvik/warden/internal/reminder"
)

// reminderStore implements reminder.Store backed by SQLite.
type reminderStore struct {
	db *sql.DB
}

// Create implements reminder.Store.
func (s *reminderStore) Create(ctx context.Context, r *reminder.Reminder) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reminders (id, user_id, text, due_at, fired, created_at)
		VALUES (?, ?, ?, ?, 0, ?)`,
		r.ID, r.UserID, r.Text,
		r.DueAt.UTC().Format(timeFormat),
		r.CreatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("sqlite: create reminder: %w", err)
	}
	return nil
}

// ListUpcoming implements reminder.Store.
func (s *reminderStore) ListUpcoming(ctx context.Context, userID string, limit int) ([]*reminder.Reminder, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, text, due_at, fired, created_at
		FROM reminders
		WHERE user_id = ? AND fired = 0
		ORDER BY due_at ASC
		LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list upcoming reminders: %w", err)
	}
	return collectReminders(rows)
}

// ListDue implements reminder.Store.
func (s *reminderStore) ListDue(ctx context.Context, asOf time.Time) ([]*reminder.Reminder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, text, due_at, fired, created_at
		FROM reminders
		WHERE fired = 0 AND due_at <= ?
		ORDER BY due_at ASC`,
		asOf.UTC().Format(timeFormat),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list due reminders: %w", err)
	}
	return collectReminders(rows)
}

// MarkFired implements reminder.Store.
func (s *reminderStore) MarkFired(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "UPDATE reminders SET fired = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("sqlite: mark reminder fired: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: mark reminder fired: rows affected: %w", err)
	}
	if n == 0 {
		return reminder.ErrNotFound
	}
	return nil
}

func collectReminders(rows *sql.Rows) ([]*reminder.Reminder, error) {
	defer func() { _ = rows.Close() }()

	var out []*reminder.Reminder
	for rows.Next() {
		var (
			r         reminder.Reminder
			dueAt     string
			fired     int
			createdAt string
		)
		if err := rows.Scan(&r.ID, &r.UserID, &r.Text, &dueAt, &fired, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan reminder: %w", err)
		}
		r.Fired = fired != 0

		var err error
		if r.DueAt, err = time.Parse(timeFormat, dueAt); err != nil {
			return nil, fmt.Errorf("sqlite: parse reminder due_at: %w", err)
		}
		if r.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: parse reminder created_at: %w", err)
		}
		out = append(out, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: reminder rows: %w", err)
	}
	return out, nil
}
