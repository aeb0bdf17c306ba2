package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"grievance/backend/internal/grievance"
	"grievance/backend/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/twilio/twilio-go/client"
	"github.com/twilio/twilio-go/twiml"
	"go.uber.org/zap"
)

const twilioSignatureHeader = "X-Twilio-Signature"

// WhatsAppWebhookStatus is the GET liveness probe for the webhook URL.
func (h *Handler) WhatsAppWebhookStatus(c *gin.Context) {
	success(c, http.StatusOK, gin.H{"message": "WhatsApp webhook is active"})
}

// WhatsAppWebhook registers an inbound WhatsApp message and replies with TwiML.
func (h *Handler) WhatsAppWebhook(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		fail(c, http.StatusBadRequest, "Invalid form body")
		return
	}
	form := c.Request.PostForm

	if h.Options.ValidateSignature && !h.validSignature(c) {
		h.log.Warn("Rejected webhook with invalid signature", zap.String("client_ip", c.ClientIP()))
		fail(c, http.StatusForbidden, "Invalid signature")
		return
	}

	msg := grievance.InboundMessage{
		MessageID: form.Get("MessageSid"),
		Source:    models.SourceWhatsApp,
		From:      strings.TrimPrefix(form.Get("From"), "whatsapp:"),
		Name:      form.Get("ProfileName"),
		Text:      form.Get("Body"),
	}

	// Перше вкладення, якщо є
	if n, _ := strconv.Atoi(form.Get("NumMedia")); n > 0 && h.Media != nil {
		if url := form.Get("MediaUrl0"); url != "" {
			data, mime, err := h.Media.Fetch(c.Request.Context(), url)
			if err != nil {
				h.log.Warn("Failed to download WhatsApp media", zap.String("message_sid", msg.MessageID), zap.Error(err))
			} else {
				if ct := form.Get("MediaContentType0"); ct != "" {
					mime = ct
				}
				msg.Image = &grievance.Image{Filename: msg.MessageID + extensionFor(mime), MimeType: mime, Data: data}
			}
		}
	}

	reply, err := h.Grievances.HandleInbound(c.Request.Context(), msg)
	if err != nil && !isEmptyText(err) {
		h.log.Error("Failed to register WhatsApp grievance",
			zap.String("message_sid", msg.MessageID),
			zap.String("request_id", c.GetString(requestIDKey)),
			zap.Error(err))
	}

	body, err := twiml.Messages([]twiml.Element{&twiml.MessagingMessage{Body: reply}})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.Data(http.StatusOK, "application/xml; charset=utf-8", []byte(body))
}

// validSignature checks X-Twilio-Signature against the public URL of this request.
func (h *Handler) validSignature(c *gin.Context) bool {
	sig := c.GetHeader(twilioSignatureHeader)
	if sig == "" {
		return false
	}

	params := make(map[string]string, len(c.Request.PostForm))
	for k, v := range c.Request.PostForm {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}

	url := strings.TrimRight(h.Options.PublicBaseURL, "/") + c.Request.URL.RequestURI()
	validator := client.NewRequestValidator(h.Options.TwilioAuthToken)
	return validator.Validate(url, params, sig)
}

func isEmptyText(err error) bool {
	return errors.Is(err, grievance.ErrEmptyText)
}

func extensionFor(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	return ""
}
