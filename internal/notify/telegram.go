package notify

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"go.uber.org/zap"
)

// TelegramSender delivers messages through the Bot API. Users who blocked the
// bot are treated as delivered so the queue never retries them.
type TelegramSender struct {
	bot    *tgbotapi.BotAPI
	logger *zap.Logger
}

// NewTelegramSender wraps a bot client.
func NewTelegramSender(bot *tgbotapi.BotAPI, logger *zap.Logger) *TelegramSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TelegramSender{bot: bot, logger: logger}
}

// Send delivers one HTML message without link previews.
func (s *TelegramSender) Send(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true

	if _, err := s.bot.Send(msg); err != nil {
		if isBlockedByUser(err) {
			s.logger.Debug("recipient blocked the bot", zap.Int64("chat_id", chatID))
			return nil
		}
		return err
	}
	return nil
}

func isBlockedByUser(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "Forbidden") || strings.Contains(msg, "chat not found")
}
