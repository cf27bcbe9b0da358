package telegram

import (
	"context"
	"fmt"
	"time"

	"github.com/arenvik/warden/internal/ledger"
)

// NotifyPending implements notify.Notifier. It pushes an approval prompt to
// the chat mapped to the action's user.
func (t *Telegram) NotifyPending(ctx context.Context, action *ledger.PendingAction) error {
	chatID, ok := t.config.chatFor(action.UserID)
	if !ok {
		return fmt.Errorf("telegram: no chat mapped for user %s", action.UserID)
	}

	_, err := t.client.SendMessage(ctx, SendMessageRequest{
		ChatID: chatID,
		Text:   pendingText(action),
	})
	if err != nil {
		return fmt.Errorf("telegram: notify pending %s: %w", action.ID, err)
	}
	return nil
}

// NotifyResolution implements notify.Notifier. It reports the terminal
// outcome of an action to the same chat.
func (t *Telegram) NotifyResolution(ctx context.Context, action *ledger.PendingAction) error {
	chatID, ok := t.config.chatFor(action.UserID)
	if !ok {
		return fmt.Errorf("telegram: no chat mapped for user %s", action.UserID)
	}

	_, err := t.client.SendMessage(ctx, SendMessageRequest{
		ChatID:              chatID,
		Text:                resolutionText(action),
		DisableNotification: true,
	})
	if err != nil {
		return fmt.Errorf("telegram: notify resolution %s: %w", action.ID, err)
	}
	return nil
}

// SendText implements notify.Messenger. It delivers a plain message to the
// chat mapped to the user.
func (t *Telegram) SendText(ctx context.Context, userID, text string) error {
	chatID, ok := t.config.chatFor(userID)
	if !ok {
		return fmt.Errorf("telegram: no chat mapped for user %s", userID)
	}

	_, err := t.client.SendMessage(ctx, SendMessageRequest{
		ChatID: chatID,
		Text:   text,
	})
	if err != nil {
		return fmt.Errorf("telegram: send text to %s: %w", userID, err)
	}
	return nil
}

func pendingText(action *ledger.PendingAction) string {
	return fmt.Sprintf(
		"Approval needed: %s\nArguments: %s\nExpires: %s\n\nReply \"approve %s\" or \"reject %s [reason]\".",
		action.ToolName,
		string(action.Arguments),
		action.ExpiresAt.UTC().Format(time.RFC822),
		action.ID,
		action.ID,
	)
}

func resolutionText(action *ledger.PendingAction) string {
	switch action.Status {
	case ledger.StatusExecuted:
		return fmt.Sprintf("%s executed: %s", action.ToolName, action.ExecutionResult)
	case ledger.StatusFailed:
		return fmt.Sprintf("%s was approved but failed: %s", action.ToolName, action.FailureReason)
	case ledger.StatusRejected:
		return fmt.Sprintf("%s was rejected.", action.ToolName)
	case ledger.StatusExpired:
		return fmt.Sprintf("%s expired unanswered.", action.ToolName)
	default:
		return fmt.Sprintf("%s is now %s.", action.ToolName, action.Status)
	}
}
