package reminders

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/arenvik/warden/internal/reminder"
	"github.com/arenvik/warden/internal/tool"
)

const createSchema = `{
	"type": "object",
	"properties": {
		"user_id": {"type": "string", "description": "Owner of the reminder."},
		"text": {"type": "string", "description": "What to be reminded about."},
		"due_at": {"type": "string", "description": "Delivery time, RFC 3339."}
	},
	"required": ["user_id", "text", "due_at"],
	"additionalProperties": false
}`

const listSchema = `{
	"type": "object",
	"properties": {
		"user_id": {"type": "string", "description": "Owner of the reminders."}
	},
	"required": ["user_id"],
	"additionalProperties": false
}`

// createReminderTool schedules a one-shot reminder. User-configurable tier:
// it writes state, so it defers to approval until the user promotes it.
type createReminderTool struct {
	module *Reminders
}

var _ tool.Tool = (*createReminderTool)(nil)

// Name implements tool.Tool.
func (t *createReminderTool) Name() string { return "create_reminder" }

// Description implements tool.Tool.
func (t *createReminderTool) Description() string {
	return "Schedule a one-shot reminder delivered to the user at the given time."
}

// Schema implements tool.Tool.
func (t *createReminderTool) Schema() json.RawMessage { return json.RawMessage(createSchema) }

// DefaultTier implements tool.Tool.
func (t *createReminderTool) DefaultTier() tool.RiskTier { return tool.TierUserConfigurable }

// Execute implements tool.Tool.
func (t *createReminderTool) Execute(ctx context.Context, args json.RawMessage) (tool.Output, error) {
	var req struct {
		UserID string `json:"user_id"`
		Text   string `json:"text"`
		DueAt  string `json:"due_at"`
	}
	if err := json.Unmarshal(args, &req); err != nil {
		return tool.Output{}, fmt.Errorf("create_reminder: decode arguments: %w", err)
	}

	if strings.TrimSpace(req.Text) == "" {
		return tool.Output{Content: "text must not be empty", IsError: true}, nil
	}
	due, err := time.Parse(time.RFC3339, req.DueAt)
	if err != nil {
		return tool.Output{
			Content: fmt.Sprintf("due_at %q is not a valid RFC 3339 timestamp", req.DueAt),
			IsError: true,
		}, nil
	}
	now := t.module.clock()
	if !due.After(now) {
		return tool.Output{
			Content: fmt.Sprintf("due_at %s is not in the future", due.UTC().Format(time.RFC3339)),
			IsError: true,
		}, nil
	}

	r := &reminder.Reminder{
		ID:        t.module.id(),
		UserID:    req.UserID,
		Text:      strings.TrimSpace(req.Text),
		DueAt:     due.UTC(),
		CreatedAt: now.UTC(),
	}
	if err := t.module.store.Create(ctx, r); err != nil {
		return tool.Output{}, fmt.Errorf("create_reminder: %w", err)
	}

	return tool.Output{
		Content: fmt.Sprintf("Reminder %s set for %s.", r.ID, r.DueAt.Format(time.RFC822)),
	}, nil
}

// listRemindersTool reads upcoming reminders. Read-only, so it auto-approves.
type listRemindersTool struct {
	module *Reminders
}

var _ tool.Tool = (*listRemindersTool)(nil)

// Name implements tool.Tool.
func (t *listRemindersTool) Name() string { return "list_reminders" }

// Description implements tool.Tool.
func (t *listRemindersTool) Description() string {
	return "List the user's upcoming reminders, soonest first."
}

// Schema implements tool.Tool.
func (t *listRemindersTool) Schema() json.RawMessage { return json.RawMessage(listSchema) }

// DefaultTier implements tool.Tool.
func (t *listRemindersTool) DefaultTier() tool.RiskTier { return tool.TierAutoApprove }

// Execute implements tool.Tool.
func (t *listRemindersTool) Execute(ctx context.Context, args json.RawMessage) (tool.Output, error) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := json.Unmarshal(args, &req); err != nil {
		return tool.Output{}, fmt.Errorf("list_reminders: decode arguments: %w", err)
	}

	upcoming, err := t.module.store.ListUpcoming(ctx, req.UserID, t.module.config.ListLimit)
	if err != nil {
		return tool.Output{}, fmt.Errorf("list_reminders: %w", err)
	}
	if len(upcoming) == 0 {
		return tool.Output{Content: "No upcoming reminders."}, nil
	}

	var b strings.Builder
	for i, r := range upcoming {
		fmt.Fprintf(&b, "%d. %s: %s\n", i+1, r.DueAt.UTC().Format(time.RFC822), r.Text)
	}
	return tool.Output{Content: strings.TrimRight(b.String(), "\n")}, nil
}
