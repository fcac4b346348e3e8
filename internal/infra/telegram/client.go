// internal/infra/telegram/client.go
package telegram

import (
	"errors"
	"fmt"
	"time"

	domaintg "billing_cycle_bot/internal/domain/telegram"

	"gopkg.in/telebot.v3"
)

// TelebotAdapter implements the Client interface using the gopkg.in/telebot.v3 library.
type TelebotAdapter struct {
	bot *telebot.Bot
}

func NewTelebotAdapter(b *telebot.Bot) *TelebotAdapter {
	return &TelebotAdapter{bot: b}
}

var _ domaintg.Client = (*TelebotAdapter)(nil)

// NewBot creates a long-polling bot for token.
func NewBot(token string) (*telebot.Bot, error) {
	return telebot.NewBot(telebot.Settings{
		Token:  token,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
	})
}

// SendMessage sends a text message to the specified chat. Members may reach the bot
// from private chats or groups, so the recipient is a chat rather than a user.
func (tba *TelebotAdapter) SendMessage(recipientChatID int64, text string, options *telebot.SendOptions) error {
	if options == nil {
		options = &telebot.SendOptions{}
	}

	recipient := &telebot.Chat{ID: recipientChatID}
	_, err := tba.bot.Send(recipient, text, options)
	return classifySendError(err)
}

// unreachable are the API errors after which the chat will never accept a message.
var unreachable = []error{
	telebot.ErrBlockedByUser,
	telebot.ErrUserIsDeactivated,
	telebot.ErrChatNotFound,
	telebot.ErrKickedFromGroup,
	telebot.ErrKickedFromSuperGroup,
}

func classifySendError(err error) error {
	if err == nil {
		return nil
	}
	for _, target := range unreachable {
		if errors.Is(err, target) {
			return fmt.Errorf("%w: %v", domaintg.ErrChatUnreachable, err)
		}
	}
	return err
}
