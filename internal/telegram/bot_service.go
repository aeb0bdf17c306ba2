// Package telegram is a conversational transport into the grievance pipeline:
// citizens describe a problem (optionally with a photo) and check progress with /status.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"grievance/backend/internal/grievance"
	"grievance/backend/internal/models"
	"grievance/backend/internal/storage"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Intake is the part of the orchestrator the bot talks to.
type Intake interface {
	HandleInbound(ctx context.Context, msg grievance.InboundMessage) (string, error)
	StatusText(lang string, g *models.Grievance) string
	Text(lang, key string, params map[string]string) string
}

// Lookup resolves /status queries.
type Lookup interface {
	GetGrievanceByID(ctx context.Context, grievanceID string) (*models.Grievance, error)
}

// Fetcher downloads a file by URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, string, error)
}

// BotService receives Telegram updates and answers each message with one reply.
type BotService struct {
	BotAPI  *tgbotapi.BotAPI
	Intake  Intake
	Lookup  Lookup
	Fetcher Fetcher
	// fileURL resolves a Telegram file id to a download URL.
	fileURL func(fileID string) (string, error)
	log     *zap.Logger
}

// NewBotService creates a new BotService instance.
func NewBotService(token string, intake Intake, lookup Lookup, fetcher Fetcher, log *zap.Logger) (*BotService, error) {
	// Long polling тримає з'єднання до 60с, тому таймаут клієнта більший
	bot, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{Timeout: 90 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	bot.Debug = false
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("component", "telegram"))
	log.Info("Authorized on account", zap.String("username", bot.Self.UserName))

	return &BotService{
		BotAPI:  bot,
		Intake:  intake,
		Lookup:  lookup,
		Fetcher: fetcher,
		fileURL: bot.GetFileDirectURL,
		log:     log,
	}, nil
}

// Run is the main loop for receiving Telegram updates. It returns when ctx is cancelled.
func (s *BotService) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := s.BotAPI.GetUpdatesChan(u)
	defer s.BotAPI.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			reply := s.Reply(ctx, update.Message)
			if reply == "" {
				continue
			}
			if _, err := s.BotAPI.Send(tgbotapi.NewMessage(update.Message.Chat.ID, reply)); err != nil {
				s.log.Warn("Failed to send reply", zap.Int64("chat_id", update.Message.Chat.ID), zap.Error(err))
			}
		}
	}
}

// Reply computes the answer for one incoming message.
func (s *BotService) Reply(ctx context.Context, msg *tgbotapi.Message) string {
	lang := languageOf(msg)

	if msg.IsCommand() {
		switch msg.Command() {
		case "start", "help":
			return s.Intake.Text(lang, "tg_welcome", nil)
		case "status":
			return s.handleStatusCommand(ctx, lang, msg.CommandArguments())
		}
	}

	return s.handleIncomingMessage(ctx, lang, msg)
}

func (s *BotService) handleStatusCommand(ctx context.Context, lang, args string) string {
	id := strings.ToUpper(strings.TrimSpace(args))
	if id == "" {
		return s.Intake.Text(lang, "tg_status_usage", nil)
	}

	g, err := s.Lookup.GetGrievanceByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return s.Intake.Text(lang, "tg_not_found", map[string]string{"id": id})
	}
	if err != nil {
		s.log.Error("Status lookup failed", zap.String("grievance_id", id), zap.Error(err))
		return s.Intake.Text(lang, "ack_failed", nil)
	}
	return s.Intake.StatusText(lang, g)
}

func (s *BotService) handleIncomingMessage(ctx context.Context, lang string, msg *tgbotapi.Message) string {
	chatID := msg.Chat.ID
	in := grievance.InboundMessage{
		MessageID:      fmt.Sprintf("tg:%d:%d", chatID, msg.MessageID),
		Source:         models.SourceTelegram,
		Name:           displayName(msg.From),
		Text:           extractMessageContent(msg),
		TelegramChatID: &chatID,
		Language:       lang,
	}
	if len(msg.Photo) > 0 {
		in.Image = s.downloadPhoto(ctx, msg.Photo)
	}

	reply, err := s.Intake.HandleInbound(ctx, in)
	if err != nil && !errors.Is(err, grievance.ErrEmptyText) {
		s.log.Error("Failed to register Telegram grievance", zap.Int64("chat_id", chatID), zap.Error(err))
	}
	return reply
}

// downloadPhoto fetches the largest size. Failures leave the grievance without an image.
func (s *BotService) downloadPhoto(ctx context.Context, sizes []tgbotapi.PhotoSize) *grievance.Image {
	if s.Fetcher == nil || s.fileURL == nil {
		return nil
	}
	largest := sizes[len(sizes)-1]

	url, err := s.fileURL(largest.FileID)
	if err != nil {
		s.log.Warn("Failed to resolve photo URL", zap.Error(err))
		return nil
	}
	data, mime, err := s.Fetcher.Fetch(ctx, url)
	if err != nil {
		s.log.Warn("Failed to download photo", zap.Error(err))
		return nil
	}
	return &grievance.Image{Filename: largest.FileUniqueID + ".jpg", MimeType: mime, Data: data}
}

// extractMessageContent uniformly extracts text or a caption from a message.
func extractMessageContent(msg *tgbotapi.Message) string {
	if msg == nil {
		return ""
	}
	if msg.Text != "" {
		return msg.Text
	}
	return msg.Caption
}

func languageOf(msg *tgbotapi.Message) string {
	if msg.From == nil {
		return ""
	}
	return msg.From.LanguageCode
}

func displayName(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		name = u.UserName
	}
	return name
}
