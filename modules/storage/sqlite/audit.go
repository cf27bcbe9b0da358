package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/arenvik/warden/internal/audit"
	"github.com/arenvik/warden/internal/ledger"
)

// auditTrail implements audit.Trail backed by SQLite. Records are
// append-only; the only delete path is retention pruning.
type auditTrail struct {
	db *sql.DB
}

// Append implements audit.Trail.
func (t *auditTrail) Append(ctx context.Context, record audit.Record) error {
	_, err := t.db.ExecContext(ctx, `
		INSERT INTO audit_log (pending_action_id, user_id, tool_name, from_status, to_status, actor, detail, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.PendingActionID, record.UserID, record.ToolName,
		string(record.FromStatus), string(record.ToStatus),
		record.Actor, record.Detail,
		record.At.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("sqlite: append audit record: %w", err)
	}
	return nil
}

// History implements audit.Trail. Records return in append order.
func (t *auditTrail) History(ctx context.Context, filter audit.Filter) ([]audit.Record, error) {
	var (
		conds []string
		args  []any
	)
	if filter.PendingActionID != "" {
		conds = append(conds, "pending_action_id = ?")
		args = append(args, filter.PendingActionID)
	}
	if filter.UserID != "" {
		conds = append(conds, "user_id = ?")
		args = append(args, filter.UserID)
	}
	if !filter.Since.IsZero() {
		conds = append(conds, "at >= ?")
		args = append(args, filter.Since.UTC().Format(timeFormat))
	}

	query := "SELECT pending_action_id, user_id, tool_name, from_status, to_status, actor, detail, at FROM audit_log"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: audit history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []audit.Record
	for rows.Next() {
		var (
			r          audit.Record
			fromStatus string
			toStatus   string
			at         string
		)
		if err := rows.Scan(&r.PendingActionID, &r.UserID, &r.ToolName, &fromStatus, &toStatus, &r.Actor, &r.Detail, &at); err != nil {
			return nil, fmt.Errorf("sqlite: scan audit record: %w", err)
		}
		r.FromStatus = ledger.Status(fromStatus)
		r.ToStatus = ledger.Status(toStatus)
		if r.At, err = time.Parse(timeFormat, at); err != nil {
			return nil, fmt.Errorf("sqlite: parse audit at: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: audit rows: %w", err)
	}
	return out, nil
}

// PruneBefore deletes audit records older than cutoff and returns how many
// were removed. Used by the retention cron job.
func (t *auditTrail) PruneBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := t.db.ExecContext(ctx,
		"DELETE FROM audit_log WHERE at < ?",
		cutoff.UTC().Format(timeFormat),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: prune audit log: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: prune audit log: rows affected: %w", err)
	}
	return int(n), nil
}
