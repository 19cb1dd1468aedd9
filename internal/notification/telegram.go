package notification

import (
	"bytes"
	"context"
	"fmt"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
)

// TelegramNotifier sends alerts through a Telegram bot.
type TelegramNotifier struct {
	bot    *tgbot.BotAPI
	chatID int64
}

// NewTelegramNotifier authenticates the bot token and targets chatID.
func NewTelegramNotifier(botToken string, chatID int64) (*TelegramNotifier, error) {
	return newTelegramNotifier(botToken, tgbot.APIEndpoint, chatID)
}

func newTelegramNotifier(botToken, endpoint string, chatID int64) (*TelegramNotifier, error) {
	b, err := tgbot.NewBotAPIWithAPIEndpoint(botToken, endpoint)
	if err != nil {
		return nil, errors.Wrap(err, "telegram: connect")
	}
	return &TelegramNotifier{bot: b, chatID: chatID}, nil
}

func (t *TelegramNotifier) Send(_ context.Context, alert Alert) error {
	emoji := "ℹ️"
	switch alert.Level {
	case AlertWarning:
		emoji = "⚠️"
	case AlertCritical:
		emoji = "🚨"
	}

	title := alert.Title
	if alert.BotID != "" {
		title = fmt.Sprintf("[%s] %s", alert.BotID, title)
	}
	msg := tgbot.NewMessage(t.chatID,
		fmt.Sprintf("%s *%s*\n\n%s", emoji, escapeMarkdown(title), escapeMarkdown(alert.Message)))
	msg.ParseMode = tgbot.ModeMarkdownV2

	if _, err := t.bot.Send(msg); err != nil {
		return errors.Wrap(err, "telegram: send")
	}
	return nil
}

// escapeMarkdown escapes special characters for Telegram MarkdownV2.
func escapeMarkdown(s string) string {
	const specials = "_*[]()~`>#+-=|{}.!\\"
	var buf bytes.Buffer
	for i := 0; i < len(s); i++ {
		if bytes.IndexByte([]byte(specials), s[i]) >= 0 {
			buf.WriteByte('\\')
		}
		buf.WriteByte(s[i])
	}
	return buf.String()
}
