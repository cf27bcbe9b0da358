package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/arenvik/warden/internal/dispatch"
	"github.com/arenvik/warden/internal/ledger"
)

// approvalResolver is the slice of the dispatcher the command handler needs.
type approvalResolver interface {
	Resolve(ctx context.Context, id string, res dispatch.Resolution) (*ledger.PendingAction, error)
}

// pendingLister is the slice of the gate the command handler needs.
type pendingLister interface {
	ListPending(ctx context.Context, userID string) ([]*ledger.PendingAction, error)
}

// messageSender sends replies back to a chat. *Client satisfies it.
type messageSender interface {
	SendMessage(ctx context.Context, req SendMessageRequest) (*Message, error)
}

// commandHandler turns inbound chat messages into approval decisions. One
// instance serves both polling and webhook delivery.
type commandHandler struct {
	config    Config
	approvals approvalResolver
	pending   pendingLister
	sender    messageSender
	logger    *slog.Logger
}

// handleUpdate processes a single inbound update. Messages from unmapped
// chats are dropped; everything else gets a reply.
func (h *commandHandler) handleUpdate(ctx context.Context, update *Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}
	msg := update.Message

	userID, ok := h.config.userFor(msg.Chat.ID)
	if !ok {
		h.logger.Debug("message from unmapped chat ignored",
			"update_id", update.UpdateID,
			"chat_id", msg.Chat.ID,
		)
		return
	}

	reply := h.dispatchCommand(ctx, userID, msg)
	if reply == "" {
		return
	}

	if _, err := h.sender.SendMessage(ctx, SendMessageRequest{
		ChatID:           msg.Chat.ID,
		Text:             reply,
		ReplyToMessageID: msg.MessageID,
	}); err != nil {
		h.logger.Warn("reply failed",
			"update_id", update.UpdateID,
			"chat_id", msg.Chat.ID,
			"error", err,
		)
	}
}

// dispatchCommand parses and executes one command, returning the reply text.
func (h *commandHandler) dispatchCommand(ctx context.Context, userID string, msg *Message) string {
	fields := strings.Fields(msg.Text)
	if len(fields) == 0 {
		return ""
	}

	// Accept both "approve x" and "/approve x".
	verb := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	args := fields[1:]

	switch verb {
	case "approve":
		if len(args) < 1 {
			return "Usage: approve <id>"
		}
		return h.resolve(ctx, userID, msg, args[0], dispatch.DecisionApprove, "")

	case "reject":
		if len(args) < 1 {
			return "Usage: reject <id> [reason]"
		}
		return h.resolve(ctx, userID, msg, args[0], dispatch.DecisionReject, strings.Join(args[1:], " "))

	case "pending":
		return h.listPending(ctx, userID)

	case "help", "start":
		return "Commands:\n" +
			"approve <id>\n" +
			"reject <id> [reason]\n" +
			"pending"

	default:
		return ""
	}
}

func (h *commandHandler) resolve(ctx context.Context, userID string, msg *Message, id string, decision dispatch.Decision, reason string) string {
	actor := "telegram:" + userID
	if msg.From != nil && msg.From.Username != "" {
		actor = "telegram:" + msg.From.Username
	}

	action, err := h.approvals.Resolve(ctx, id, dispatch.Resolution{
		Decision: decision,
		Actor:    actor,
		Reason:   reason,
	})
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return fmt.Sprintf("No pending action %s.", id)
	case errors.Is(err, ledger.ErrAlreadyResolved):
		return fmt.Sprintf("Action %s has already been resolved.", id)
	case err != nil:
		h.logger.Error("resolve via chat failed", "pending_id", id, "error", err)
		return "Something went wrong, try again."
	}

	return resolutionText(action)
}

func (h *commandHandler) listPending(ctx context.Context, userID string) string {
	actions, err := h.pending.ListPending(ctx, userID)
	if err != nil {
		h.logger.Error("list pending via chat failed", "user_id", userID, "error", err)
		return "Something went wrong, try again."
	}
	if len(actions) == 0 {
		return "Nothing awaiting approval."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d awaiting approval:\n", len(actions))
	for _, a := range actions {
		fmt.Fprintf(&b, "%s  %s  expires %s\n", a.ID, a.ToolName, a.ExpiresAt.UTC().Format("Jan 2 15:04"))
	}
	return strings.TrimRight(b.String(), "\n")
}
