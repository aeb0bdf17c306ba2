// Package notify formats citizen notifications and dispatches them over WhatsApp or Telegram.
// Delivery is best effort: every outcome is reported as a Result, never as an error.
package notify

import (
	"context"
	"errors"
	"time"

	"grievance/backend/internal/localization"
	"grievance/backend/internal/metrics"
	"grievance/backend/internal/models"

	"go.uber.org/zap"
)

// Result is reported alongside otherwise successful responses.
type Result struct {
	Sent    bool   `json:"sent"`
	Channel string `json:"channel,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Delivery channels.
const (
	ChannelWhatsApp = "whatsapp"
	ChannelTelegram = "telegram"
)

// WhatsAppSender sends a WhatsApp text and returns the provider message id.
type WhatsAppSender interface {
	SendWhatsApp(ctx context.Context, to, body string) (string, error)
}

// TelegramChatSender sends a Telegram text message.
type TelegramChatSender interface {
	SendTelegram(ctx context.Context, chatID int64, body string) error
}

// PhoneLookup resolves the contact phone for a grievance.
type PhoneLookup interface {
	ContactPhone(ctx context.Context, grievanceID string) (string, error)
}

// Dispatcher picks the channel a grievance came from and sends the localized message.
type Dispatcher struct {
	whatsapp WhatsAppSender
	telegram TelegramChatSender
	phones   PhoneLookup
	loc      *localization.Localizer
	lang     string
	timeout  time.Duration
	log      *zap.Logger
}

// Options configures a Dispatcher. Nil senders disable their channel.
type Options struct {
	WhatsApp WhatsAppSender
	Telegram TelegramChatSender
	Phones   PhoneLookup
	Localize *localization.Localizer
	Language string
	Timeout  time.Duration
	Logger   *zap.Logger
}

func NewDispatcher(o Options) *Dispatcher {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Language == "" {
		o.Language = localization.DefaultLanguage
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	return &Dispatcher{
		whatsapp: o.WhatsApp,
		telegram: o.Telegram,
		phones:   o.Phones,
		loc:      o.Localize,
		lang:     o.Language,
		timeout:  o.Timeout,
		log:      o.Logger.With(zap.String("component", "notify")),
	}
}

// WhatsAppEnabled reports whether outbound WhatsApp is configured.
func (d *Dispatcher) WhatsAppEnabled() bool {
	return d.whatsapp != nil
}

// NotifySubmitted confirms a new grievance to the citizen.
func (d *Dispatcher) NotifySubmitted(ctx context.Context, g *models.Grievance) Result {
	body := d.render("notify_submitted", map[string]string{
		"id":         g.GrievanceID,
		"department": g.Department,
		"priority":   g.Priority,
		"status":     g.Status,
	})
	return d.deliver(ctx, g, body)
}

// NotifyStatusChange tells the citizen about a stage transition.
func (d *Dispatcher) NotifyStatusChange(ctx context.Context, g *models.Grievance, oldStatus, newStatus, note string) Result {
	key := "notify_status"
	if note != "" {
		key = "notify_status_note"
	}
	if newStatus == models.StatusClosed && note != "" {
		key = "notify_closed"
	}
	body := d.render(key, map[string]string{
		"id":         g.GrievanceID,
		"old_status": oldStatus,
		"new_status": newStatus,
		"note":       note,
	})
	return d.deliver(ctx, g, body)
}

func (d *Dispatcher) render(key string, params map[string]string) string {
	if d.loc == nil {
		return key
	}
	return d.loc.Format(d.lang, key, params)
}

func (d *Dispatcher) deliver(ctx context.Context, g *models.Grievance, body string) Result {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if g.TelegramChatID != nil && d.telegram != nil {
		err := d.telegram.SendTelegram(ctx, *g.TelegramChatID, body)
		return d.outcome(ChannelTelegram, g.GrievanceID, err)
	}

	phone := g.Phone
	if phone == "" && d.phones != nil {
		p, err := d.phones.ContactPhone(ctx, g.GrievanceID)
		if err != nil {
			return d.outcome(ChannelWhatsApp, g.GrievanceID, err)
		}
		phone = p
	}
	if phone == "" {
		return d.outcome(ChannelWhatsApp, g.GrievanceID, errNoPhone)
	}
	if d.whatsapp == nil {
		return d.outcome(ChannelWhatsApp, g.GrievanceID, errWhatsAppDisabled)
	}

	_, err := d.whatsapp.SendWhatsApp(ctx, phone, body)
	return d.outcome(ChannelWhatsApp, g.GrievanceID, err)
}

var (
	errNoPhone          = errors.New("no phone number on record")
	errWhatsAppDisabled = errors.New("WhatsApp notifications are not configured")
)

func (d *Dispatcher) outcome(channel, grievanceID string, err error) Result {
	if err != nil {
		metrics.Notifications.WithLabelValues(channel, "failed").Inc()
		d.log.Warn("Notification not delivered",
			zap.String("channel", channel),
			zap.String("grievance_id", grievanceID),
			zap.Error(err))
		return Result{Sent: false, Channel: channel, Error: err.Error()}
	}
	metrics.Notifications.WithLabelValues(channel, "sent").Inc()
	return Result{Sent: true, Channel: channel}
}
