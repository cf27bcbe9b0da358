package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"time"

	"github.com/arenvik/warden/internal/conversation"
)

// messageSink implements conversation.Sink backed by SQLite. Approval
// follow-ups land here so the session transcript shows what happened to a
// deferred call.
type messageSink struct {
	db *sql.DB
}

// AppendSystemMessage implements conversation.Sink.
func (s *messageSink) AppendSystemMessage(ctx context.Context, sessionID, text string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages (session_id, seq, kind, content)
		VALUES (?, COALESCE((SELECT MAX(seq) FROM messages WHERE session_id = ?), 0) + 1, ?, ?)`,
		sessionID, sessionID, string(conversation.KindSystem), text,
	)
	if err != nil {
		return fmt.Errorf("sqlite: append system message: %w", err)
	}
	return nil
}

// Recent returns the n most recent messages for a session in
// chronological order.
func (s *messageSink) Recent(ctx context.Context, sessionID string, n int) ([]conversation.Message, error) {
	if n <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, seq, kind, content, created_at
		FROM messages
		WHERE session_id = ?
		ORDER BY seq DESC
		LIMIT ?`,
		sessionID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: recent messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var msgs []conversation.Message
	for rows.Next() {
		var (
			m         conversation.Message
			kind      string
			createdAt string
		)
		if err := rows.Scan(&m.SessionID, &m.Seq, &kind, &m.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan message: %w", err)
		}
		m.Kind = kind
		if _, err := time.Parse("2006-01-02T15:04:05.999Z", createdAt); err != nil {
			return nil, fmt.Errorf("sqlite: parse message created_at: %w", err)
		}
		m.CreatedAt = createdAt
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: message rows: %w", err)
	}

	// Reverse to chronological order.
	slices.Reverse(msgs)
	return msgs, nil
}
