package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"billing_cycle_bot/internal/domain/reminder"
	domaintg "billing_cycle_bot/internal/domain/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

// unsubscribeUnique identifies the "stop reminders" button in callbacks.
const unsubscribeUnique = "unsub"

// ReminderSender delivers reminder tasks as chat messages.
type ReminderSender struct {
	client domaintg.Client
	log    *logrus.Entry
}

func NewReminderSender(client domaintg.Client, log *logrus.Entry) *ReminderSender {
	return &ReminderSender{client: client, log: log.WithField("component", "telegram_sender")}
}

var _ reminder.Deliverer = (*ReminderSender)(nil)

func (s *ReminderSender) Deliver(ctx context.Context, t *reminder.Task) error {
	if t.ChatID == 0 {
		return fmt.Errorf("member %d has no chat: %w", t.MemberID, reminder.ErrUndeliverable)
	}
	markup := &telebot.ReplyMarkup{}
	markup.InlineKeyboard = [][]telebot.InlineButton{{
		{Unique: unsubscribeUnique, Text: "Stop reminders for this project", Data: unsubscribeData(t.ProjectID, t.MemberID)},
	}}

	if err := s.client.SendMessage(t.ChatID, t.Message, &telebot.SendOptions{ReplyMarkup: markup}); err != nil {
		return fmt.Errorf("failed to send reminder to chat %d: %w", t.ChatID, err)
	}
	s.log.WithFields(logrus.Fields{"task_id": t.ID, "chat_id": t.ChatID, "tier": t.Tier}).Debug("Reminder sent")
	return nil
}

func unsubscribeData(projectID, memberID int64) string {
	return fmt.Sprintf("%d:%d", projectID, memberID)
}

func parseUnsubscribeData(data string) (projectID, memberID int64, err error) {
	p, m, ok := strings.Cut(data, ":")
	if !ok {
		return 0, 0, fmt.Errorf("invalid unsubscribe data %q", data)
	}
	if projectID, err = strconv.ParseInt(p, 10, 64); err != nil {
		return 0, 0, fmt.Errorf("invalid project in %q: %w", data, err)
	}
	if memberID, err = strconv.ParseInt(m, 10, 64); err != nil {
		return 0, 0, fmt.Errorf("invalid member in %q: %w", data, err)
	}
	return projectID, memberID, nil
}

// LogDeliverer only logs reminders. It stands in for chat delivery when no bot
// token is configured.
type LogDeliverer struct {
	log *logrus.Entry
}

func NewLogDeliverer(log *logrus.Entry) *LogDeliverer {
	return &LogDeliverer{log: log.WithField("component", "log_deliverer")}
}

func (d *LogDeliverer) Deliver(ctx context.Context, t *reminder.Task) error {
	d.log.WithFields(logrus.Fields{
		"task_id":    t.ID,
		"project_id": t.ProjectID,
		"cycle_id":   t.CycleID,
		"member_id":  t.MemberID,
		"tier":       t.Tier,
	}).Infof("Reminder: %s", t.Message)
	return nil
}
