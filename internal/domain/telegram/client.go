// Package telegram describes the chat messenger reminders are delivered through.
package telegram

import (
	"fmt"

	"billing_cycle_bot/internal/domain/reminder"

	"gopkg.in/telebot.v3"
)

// ErrChatUnreachable is returned when a chat can no longer receive messages from the
// bot: it was blocked, the chat was deleted or the account deactivated.
var ErrChatUnreachable = fmt.Errorf("chat is unreachable: %w", reminder.ErrUndeliverable)

// Client defines an interface for sending messages via a Telegram bot.
// Implementations report permanent failures as ErrChatUnreachable.
type Client interface {
	SendMessage(chatID int64, text string, options *telebot.SendOptions) error
}
