package transport

import (
	"context"
	"fmt"

	"emergency_alert_service/internal/domain/alert"
	"emergency_alert_service/internal/domain/dispatch"

	"gopkg.in/telebot.v3"
)

// TelegramSender delivers messages to a fixed Telegram chat. Outbound only:
// no poller is started, the bot is used purely as a send API.
type TelegramSender struct {
	bot    *telebot.Bot
	chatID int64
}

func NewTelegramSender(token string, chatID int64) (*TelegramSender, error) {
	bot, err := telebot.NewBot(telebot.Settings{Token: token})
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return &TelegramSender{bot: bot, chatID: chatID}, nil
}

func (s *TelegramSender) Channel() string { return "telegram" }

func (s *TelegramSender) Send(ctx context.Context, _ alert.Contact, msg dispatch.Message) error {
	done := make(chan error, 1)
	go func() {
		_, err := s.bot.Send(&telebot.Chat{ID: s.chatID}, msg.Body)
		done <- err
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("failed to send Telegram message: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("telegram send aborted: %w", ctx.Err())
	}
}
