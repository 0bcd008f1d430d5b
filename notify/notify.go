// Package notify delivers rendered notifications to subscribers.
package notify

import (
	"context"
	"errors"
)

// Delivery failure classification.
var (
	// ErrRecipientBlocked means the recipient can never again receive
	// messages through this channel; callers remove them permanently.
	ErrRecipientBlocked = errors.New("recipient has blocked the bot")
)

// Notifier sends one rendered message to one recipient. Any error that
// is not ErrRecipientBlocked is transient from the caller's point of
// view: the message is logged and dropped, never retried.
type Notifier interface {
	Send(ctx context.Context, chatID int64, text string) error
}
