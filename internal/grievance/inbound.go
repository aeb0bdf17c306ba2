package grievance

import (
	"context"
	"strings"

	"grievance/backend/internal/models"

	"go.uber.org/zap"
)

// InboundMessage is a conversational message from WhatsApp or Telegram.
type InboundMessage struct {
	// MessageID is the provider's id, used to answer redeliveries with the first reply.
	MessageID      string
	Source         string
	From           string
	Name           string
	Text           string
	TelegramChatID *int64
	Language       string
	Image          *Image
}

// HandleInbound runs the Submit pipeline for a chat message and returns the acknowledgement
// to send back. The returned reply is always usable, even when err is non-nil.
func (s *Service) HandleInbound(ctx context.Context, msg InboundMessage) (string, error) {
	claimed, previous, err := s.dedupe.Claim(ctx, msg.MessageID)
	if err != nil {
		// Без Redis обробляємо повідомлення як нове
		s.log.Warn("Inbound de-duplication unavailable", zap.Error(err))
		claimed = true
	}
	if !claimed {
		s.log.Info("Duplicate inbound message", zap.String("message_id", msg.MessageID))
		if previous != "" {
			return previous, nil
		}
		return s.text(msg.Language, "ack_duplicate_pending", nil), nil
	}

	if strings.TrimSpace(msg.Text) == "" {
		s.release(ctx, msg.MessageID)
		return s.text(msg.Language, "ack_empty", nil), ErrEmptyText
	}

	res, err := s.Submit(ctx, Submission{
		Text:           msg.Text,
		Name:           msg.Name,
		Phone:          msg.From,
		Source:         msg.Source,
		TelegramChatID: msg.TelegramChatID,
		Location:       s.inbound,
		Image:          msg.Image,
		Quiet:          true,
	})
	if err != nil {
		s.release(ctx, msg.MessageID)
		return s.text(msg.Language, "ack_failed", nil), err
	}

	reply := s.Acknowledgement(msg.Language, res.Grievance)
	if err := s.dedupe.Complete(ctx, msg.MessageID, reply); err != nil {
		s.log.Warn("Failed to store inbound reply", zap.String("message_id", msg.MessageID), zap.Error(err))
	}
	return reply, nil
}

// Acknowledgement formats the confirmation sent back for a registered grievance.
func (s *Service) Acknowledgement(lang string, g *models.Grievance) string {
	return s.text(lang, "ack_submitted", map[string]string{
		"id":         g.GrievanceID,
		"department": g.Department,
		"priority":   g.Priority,
		"status":     g.Status,
	})
}

// StatusText formats a short status line for chat lookups.
func (s *Service) StatusText(lang string, g *models.Grievance) string {
	return s.text(lang, "tg_status", map[string]string{
		"id":         g.GrievanceID,
		"status":     g.Status,
		"department": g.Department,
		"priority":   g.Priority,
	})
}

// Text exposes the message catalog to transports.
func (s *Service) Text(lang, key string, params map[string]string) string {
	return s.text(lang, key, params)
}

func (s *Service) release(ctx context.Context, messageID string) {
	if err := s.dedupe.Release(ctx, messageID); err != nil {
		s.log.Warn("Failed to release inbound message", zap.String("message_id", messageID), zap.Error(err))
	}
}
