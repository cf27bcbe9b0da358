package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/arenvik/warden/internal/policy"
)

// policyStore implements policy.Store backed by SQLite.
type policyStore struct {
	db *sql.DB
}

// Get implements policy.Store.
func (s *policyStore) Get(ctx context.Context, userID, toolName string) (*policy.Override, error) {
	var (
		o         policy.Override
		updatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, tool_name, tier, updated_at
		FROM policy_overrides
		WHERE user_id = ? AND tool_name = ?`,
		userID, toolName,
	).Scan(&o.UserID, &o.ToolName, &o.Tier, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, policy.ErrOverrideNotFound
		}
		return nil, fmt.Errorf("sqlite: get override: %w", err)
	}

	if o.UpdatedAt, err = time.Parse(timeFormat, updatedAt); err != nil {
		return nil, fmt.Errorf("sqlite: parse override updated_at: %w", err)
	}
	return &o, nil
}

// Set implements policy.Store. Existing overrides are superseded.
func (s *policyStore) Set(ctx context.Context, override policy.Override) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO policy_overrides (user_id, tool_name, tier, updated_at)
		VALUES (?, ?, ?, ?)`,
		override.UserID, override.ToolName, override.Tier,
		override.UpdatedAt.UTC().Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("sqlite: set override: %w", err)
	}
	return nil
}

// ListForUser implements policy.Store.
func (s *policyStore) ListForUser(ctx context.Context, userID string) ([]policy.Override, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, tool_name, tier, updated_at
		FROM policy_overrides
		WHERE user_id = ?
		ORDER BY tool_name ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list overrides: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []policy.Override
	for rows.Next() {
		var (
			o         policy.Override
			updatedAt string
		)
		if err := rows.Scan(&o.UserID, &o.ToolName, &o.Tier, &updatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scan override: %w", err)
		}
		if o.UpdatedAt, err = time.Parse(timeFormat, updatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: parse override updated_at: %w", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: override rows: %w", err)
	}
	return out, nil
}
