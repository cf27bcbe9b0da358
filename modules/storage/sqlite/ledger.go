package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/arenvik/warden/internal/ledger"
)

// ledgerStore implements ledger.Store backed by SQLite. The Transition
// compare-and-swap rides on UPDATE ... WHERE status = ?: with a single-writer
// connection pool, RowsAffected == 0 means the entry left the expected state
// first.
type ledgerStore struct {
	db *sql.DB
}

const pendingColumns = `id, tool_name, arguments, session_id, user_id, status,
	created_at, expires_at, resolved_at, execution_result, failure_reason`

// Create implements ledger.Store.
func (s *ledgerStore) Create(ctx context.Context, action *ledger.PendingAction) error {
	args := action.Arguments
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pending_actions (`+pendingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, '', '', '')`,
		action.ID, action.ToolName, string(args), action.SessionID, action.UserID,
		string(action.Status),
		action.CreatedAt.UTC().Format(timeFormat),
		action.ExpiresAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("sqlite: create pending action: %w", err)
	}
	return nil
}

// Get implements ledger.Store.
func (s *ledgerStore) Get(ctx context.Context, id string) (*ledger.PendingAction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+pendingColumns+` FROM pending_actions WHERE id = ?`, id)

	action, err := scanPendingAction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ledger.ErrNotFound
	}
	return action, err
}

// ListPending implements ledger.Store.
func (s *ledgerStore) ListPending(ctx context.Context, userID string) ([]*ledger.PendingAction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+pendingColumns+` FROM pending_actions
		WHERE user_id = ? AND status = ?
		ORDER BY created_at ASC, id ASC`,
		userID, string(ledger.StatusPending),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list pending: %w", err)
	}
	return collectPendingActions(rows)
}

// ListOpen returns every pending entry regardless of user, oldest first.
// Used by the heartbeat nudger.
func (s *ledgerStore) ListOpen(ctx context.Context) ([]*ledger.PendingAction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+pendingColumns+` FROM pending_actions
		WHERE status = ?
		ORDER BY created_at ASC, id ASC`,
		string(ledger.StatusPending),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list open: %w", err)
	}
	return collectPendingActions(rows)
}

// ListExpired implements ledger.Store.
func (s *ledgerStore) ListExpired(ctx context.Context, asOf time.Time) ([]*ledger.PendingAction, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+pendingColumns+` FROM pending_actions
		WHERE status = ? AND expires_at < ?
		ORDER BY created_at ASC, id ASC`,
		string(ledger.StatusPending), asOf.UTC().Format(timeFormat),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list expired: %w", err)
	}
	return collectPendingActions(rows)
}

// Transition implements ledger.Store.
func (s *ledgerStore) Transition(ctx context.Context, id string, from, to ledger.Status, fields ledger.Fields) (*ledger.PendingAction, error) {
	if !ledger.CanTransition(from, to) {
		return nil, fmt.Errorf("%w: %s to %s", ledger.ErrIllegalTransition, from, to)
	}

	resolvedAt := ""
	if !fields.ResolvedAt.IsZero() {
		resolvedAt = fields.ResolvedAt.UTC().Format(timeFormat)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE pending_actions
		SET status           = ?,
		    resolved_at      = COALESCE(NULLIF(?, ''), resolved_at),
		    execution_result = COALESCE(NULLIF(?, ''), execution_result),
		    failure_reason   = COALESCE(NULLIF(?, ''), failure_reason)
		WHERE id = ? AND status = ?`,
		string(to), resolvedAt, fields.ExecutionResult, fields.FailureReason,
		id, string(from),
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: transition %s: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: transition %s: rows affected: %w", id, err)
	}
	if affected == 1 {
		return s.Get(ctx, id)
	}

	// Lost the swap. Distinguish a missing entry from one already moved on.
	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %s is %s", ledger.ErrAlreadyResolved, id, current.Status)
}

// scanner abstracts *sql.Row and *sql.Rows for shared scan logic.
type scanner interface {
	Scan(dest ...any) error
}

func scanPendingAction(s scanner) (*ledger.PendingAction, error) {
	var (
		action               ledger.PendingAction
		args                 string
		status               string
		createdAt, expiresAt string
		resolvedAt           string
	)

	err := s.Scan(&action.ID, &action.ToolName, &args, &action.SessionID,
		&action.UserID, &status, &createdAt, &expiresAt, &resolvedAt,
		&action.ExecutionResult, &action.FailureReason)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("sqlite: scan pending action: %w", err)
	}

	action.Arguments = json.RawMessage(args)
	action.Status = ledger.Status(status)

	if action.CreatedAt, err = time.Parse(timeFormat, createdAt); err != nil {
		return nil, fmt.Errorf("sqlite: parse created_at: %w", err)
	}
	if action.ExpiresAt, err = time.Parse(timeFormat, expiresAt); err != nil {
		return nil, fmt.Errorf("sqlite: parse expires_at: %w", err)
	}
	if resolvedAt != "" {
		if action.ResolvedAt, err = time.Parse(timeFormat, resolvedAt); err != nil {
			return nil, fmt.Errorf("sqlite: parse resolved_at: %w", err)
		}
	}

	return &action, nil
}

func collectPendingActions(rows *sql.Rows) ([]*ledger.PendingAction, error) {
	defer func() { _ = rows.Close() }()

	var out []*ledger.PendingAction
	for rows.Next() {
		action, err := scanPendingAction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, action)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: pending action rows: %w", err)
	}
	return out, nil
}
