package telegram

import (
	"context"
	"errors"
	"fmt"

	"billing_cycle_bot/internal/domain/project"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// MemberPreferences is the part of the project store the bot handlers need.
type MemberPreferences interface {
	ListMembers(ctx context.Context, projectID int64) ([]*project.Member, error)
	SetUnsubscribed(ctx context.Context, memberID int64, unsubscribed bool) error
}

// Replies to the "stop reminders" button.
const (
	replyUnsubscribed = "Reminders for this project are switched off."
	replyNotYours     = "This button does not belong to your chat."
	replyFailed       = "Something went wrong, please try again later."
)

const helpText = "I remind you when a shared subscription payment is due or overdue.\n\n" +
	"Give your chat ID to the project owner to receive reminders. " +
	"Use the button under a reminder to stop reminders for that project.\n\n" +
	"/start - show your chat ID\n/help - show this message"

// MemberHandlers answers members of shared subscriptions.
type MemberHandlers struct {
	prefs MemberPreferences
	log   *logrus.Entry
}

func NewMemberHandlers(prefs MemberPreferences, log *logrus.Entry) *MemberHandlers {
	return &MemberHandlers{prefs: prefs, log: log.WithField("component", "telegram_handlers")}
}

// Register installs the command and callback handlers on b.
func (h *MemberHandlers) Register(ctx context.Context, b *telebot.Bot) {
	b.Handle("/start", func(c telebot.Context) error {
		h.log.WithField("chat_id", c.Chat().ID).Info("Processing /start command")
		return c.Send(startText(c.Chat().ID))
	})

	b.Handle("/help", func(c telebot.Context) error {
		return c.Send(helpText)
	})

	b.Handle(&telebot.Btn{Unique: unsubscribeUnique}, func(c telebot.Context) error {
		reply := h.Unsubscribe(ctx, c.Chat().ID, c.Data())
		return c.Respond(&telebot.CallbackResponse{Text: reply})
	})
}

func startText(chatID int64) string {
	return fmt.Sprintf("Hi! Your chat ID is %d. Share it with the project owner to get payment reminders.", chatID)
}

// Unsubscribe handles a "stop reminders" press from chatID and returns the reply text.
// Only the chat a reminder was sent to may switch its reminders off.
func (h *MemberHandlers) Unsubscribe(ctx context.Context, chatID int64, data string) string {
	log := h.log.WithFields(logrus.Fields{"chat_id": chatID, "data": data})
	projectID, memberID, err := parseUnsubscribeData(data)
	if err != nil {
		log.Warnf("Invalid unsubscribe callback: %v", err)
		return replyFailed
	}

	members, err := h.prefs.ListMembers(ctx, projectID)
	if err != nil {
		log.WithError(err).Error("Failed to load project members")
		return replyFailed
	}
	var member *project.Member
	for _, m := range members {
		if m.ID == memberID {
			member = m
			break
		}
	}
	if member == nil || member.ChatID != chatID {
		log.Warn("Unsubscribe attempt from a foreign chat")
		return replyNotYours
	}

	if err := h.prefs.SetUnsubscribed(ctx, memberID, true); err != nil {
		if errors.Is(err, project.ErrProjectNotFound) {
			return replyNotYours
		}
		log.WithError(err).Error("Failed to store unsubscribe preference")
		return replyFailed
	}
	log.WithFields(logrus.Fields{"project_id": projectID, "member_id": memberID}).Info("Member unsubscribed from reminders")
	return replyUnsubscribed
}
