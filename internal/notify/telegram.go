package notify

import (
	"context"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSender delivers notifications to Telegram chats over a bounded HTTP client.
type TelegramSender struct {
	Bot *tgbotapi.BotAPI
}

// NewTelegramSender is separate from the polling bot so that the send timeout does not cut long polls.
func NewTelegramSender(token string, timeout time.Duration) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("telegram sender: %w", err)
	}
	return &TelegramSender{Bot: bot}, nil
}

func (s *TelegramSender) SendTelegram(ctx context.Context, chatID int64, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.Bot.Send(tgbotapi.NewMessage(chatID, body))
	return err
}
