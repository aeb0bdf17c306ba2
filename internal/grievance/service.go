// Package grievance is the lifecycle orchestrator: it runs submissions through triage,
// persists them, moves them between stages and tells the citizen what happened.
package grievance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"grievance/backend/internal/config"
	"grievance/backend/internal/livefeed"
	"grievance/backend/internal/localization"
	"grievance/backend/internal/metrics"
	"grievance/backend/internal/models"
	"grievance/backend/internal/notify"
	"grievance/backend/internal/storage"
	"grievance/backend/internal/triage"

	"go.uber.org/zap"
	"gorm.io/datatypes"
)

var (
	ErrEmptyText            = triage.ErrEmptyText
	ErrEmptyNote            = errors.New("closure note is required")
	ErrTransitionNotAllowed = errors.New("status transition not allowed")
)

// Triage is the classification client used by the orchestrator.
type Triage interface {
	Structure(ctx context.Context, text string, loc models.Location) (string, error)
	ClassifyDepartment(ctx context.Context, text string) string
	AssignPriority(ctx context.Context, text string, loc models.Location) string
	VerifyClosure(ctx context.Context, grievance, resolution string, loc models.Location) triage.Verdict
	AnalyzeImage(ctx context.Context, data []byte, mimeType, structured string) triage.ImageAnalysis
}

// Notifier delivers citizen notifications. Outcomes are reported, never returned as errors.
type Notifier interface {
	NotifySubmitted(ctx context.Context, g *models.Grievance) notify.Result
	NotifyStatusChange(ctx context.Context, g *models.Grievance, oldStatus, newStatus, note string) notify.Result
}

// ImageStore persists uploaded photos and returns their path.
type ImageStore interface {
	Save(originalName string, data []byte) (string, error)
}

// Deps are the collaborators of Service. Feed, Images and Dedupe are optional.
type Deps struct {
	Storage   storage.Storage
	Triage    Triage
	Notifier  Notifier
	Images    ImageStore
	Feed      livefeed.Publisher
	Dedupe    storage.MessageDeduper
	Localizer *localization.Localizer
	Language  string
	// Policy is config.TransitionOpen or config.TransitionForward.
	Policy       string
	InboundCity  string
	InboundState string
	Logger       *zap.Logger
}

// Service handles the business logic for grievances.
type Service struct {
	Storage  storage.Storage
	triage   Triage
	notifier Notifier
	images   ImageStore
	feed     livefeed.Publisher
	dedupe   storage.MessageDeduper
	loc      *localization.Localizer
	lang     string
	policy   string
	inbound  models.Location
	log      *zap.Logger
	now      func() time.Time
}

// NewService creates a new grievance service.
func NewService(d Deps) *Service {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Dedupe == nil {
		d.Dedupe = storage.NoopDeduper{}
	}
	if d.Language == "" {
		d.Language = localization.DefaultLanguage
	}
	if d.Policy == "" {
		d.Policy = config.TransitionOpen
	}
	return &Service{
		Storage:  d.Storage,
		triage:   d.Triage,
		notifier: d.Notifier,
		images:   d.Images,
		feed:     d.Feed,
		dedupe:   d.Dedupe,
		loc:      d.Localizer,
		lang:     d.Language,
		policy:   d.Policy,
		inbound: models.Location{
			City:             d.InboundCity,
			State:            d.InboundState,
			SpecificLocation: config.PlaceholderLocationTag,
		},
		log: d.Logger.With(zap.String("component", "grievance")),
		now: time.Now,
	}
}

// Image is an uploaded photo attached to a submission.
type Image struct {
	Filename string
	MimeType string
	Data     []byte
}

// Submission is one citizen complaint as received from any transport.
type Submission struct {
	Text           string
	Name           string
	Email          string
	Phone          string
	UserID         *uint
	Source         string
	TelegramChatID *int64
	Location       models.Location
	Image          *Image
	// Quiet skips the outbound confirmation when the transport replies synchronously.
	Quiet bool
}

// SubmitResult is the full outcome of Submit.
type SubmitResult struct {
	Grievance     *models.Grievance
	ImageAnalysis *triage.ImageAnalysis
	Notification  notify.Result
}

// Submit runs the intake pipeline. Only empty text and storage failures are errors;
// triage and notification problems degrade.
func (s *Service) Submit(ctx context.Context, sub Submission) (*SubmitResult, error) {
	text := strings.TrimSpace(sub.Text)
	if text == "" {
		return nil, ErrEmptyText
	}
	if sub.Source == "" {
		sub.Source = models.SourceWeb
	}

	// 1. Структурування, відділ, пріоритет: саме в такому порядку
	structured, err := s.triage.Structure(ctx, text, sub.Location)
	if err != nil {
		return nil, err
	}
	classifyInput := structured
	if structured == triage.StructureFailed {
		classifyInput = text
	}
	department := s.triage.ClassifyDepartment(ctx, classifyInput)
	priority := s.triage.AssignPriority(ctx, text, sub.Location)

	g := &models.Grievance{
		UserID:         sub.UserID,
		Name:           strings.TrimSpace(sub.Name),
		Email:          strings.TrimSpace(sub.Email),
		Phone:          strings.TrimSpace(sub.Phone),
		Source:         sub.Source,
		TelegramChatID: sub.TelegramChatID,
		OriginalText:   text,
		StructuredText: structured,
		Department:     department,
		Priority:       priority,
		Status:         models.InitialStatus,
	}
	g.SetLocation(sub.Location)

	// 2. Фото (необов'язково)
	var analysis *triage.ImageAnalysis
	if sub.Image != nil && len(sub.Image.Data) > 0 {
		analysis = s.attachImage(ctx, g, sub.Image, structured)
	}

	// 3. Збереження
	if err := s.save(ctx, g); err != nil {
		return nil, err
	}
	metrics.Submissions.WithLabelValues(g.Source).Inc()
	s.log.Info("Grievance submitted",
		zap.String("grievance_id", g.GrievanceID),
		zap.String("department", g.Department),
		zap.String("priority", g.Priority),
		zap.String("source", g.Source))

	// 4. Сповіщення: помилка тут не скасовує збережену скаргу
	res := &SubmitResult{Grievance: g, ImageAnalysis: analysis}
	if !sub.Quiet && s.notifier != nil {
		res.Notification = s.notifier.NotifySubmitted(ctx, g)
		if res.Notification.Sent {
			g.NotificationSent = true
			if err := s.Storage.MarkNotificationSent(ctx, g.GrievanceID); err != nil {
				s.log.Warn("Failed to mark notification as sent", zap.String("grievance_id", g.GrievanceID), zap.Error(err))
			}
		}
	}

	s.publish(ctx, models.FeedEvent{
		Type:        models.EventGrievanceCreated,
		GrievanceID: g.GrievanceID,
		Department:  g.Department,
		Priority:    g.Priority,
		NewStatus:   g.Status,
		At:          g.CreatedAt,
	})
	return res, nil
}

// save assigns a fresh id and retries once if it collides.
func (s *Service) save(ctx context.Context, g *models.Grievance) error {
	g.GrievanceID = models.NewGrievanceID(s.now())
	err := s.Storage.SaveGrievance(ctx, g)
	if errors.Is(err, storage.ErrDuplicateGrievanceID) {
		s.log.Warn("Grievance id collision, regenerating", zap.String("grievance_id", g.GrievanceID))
		g.GrievanceID = models.NewGrievanceID(s.now())
		err = s.Storage.SaveGrievance(ctx, g)
	}
	if err != nil {
		return fmt.Errorf("save grievance: %w", err)
	}
	return nil
}

func (s *Service) attachImage(ctx context.Context, g *models.Grievance, img *Image, structured string) *triage.ImageAnalysis {
	if s.images != nil {
		path, err := s.images.Save(img.Filename, img.Data)
		if err != nil {
			s.log.Warn("Failed to store uploaded image", zap.Error(err))
		} else {
			g.ImagePath = path
		}
	}

	a := s.triage.AnalyzeImage(ctx, img.Data, img.MimeType, structured)
	raw, err := json.Marshal(a)
	if err != nil {
		s.log.Warn("Failed to encode image analysis", zap.Error(err))
		return &a
	}
	g.ImageAnalysis = datatypes.JSON(raw)
	return &a
}

func (s *Service) publish(ctx context.Context, ev models.FeedEvent) {
	if s.feed == nil {
		return
	}
	if ev.At.IsZero() {
		ev.At = s.now()
	}
	if err := s.feed.Publish(ctx, ev); err != nil {
		s.log.Warn("Failed to publish feed event", zap.String("type", ev.Type), zap.Error(err))
	}
}

// text renders a citizen-facing message from the catalog.
func (s *Service) text(lang, key string, params map[string]string) string {
	if s.loc == nil {
		return key
	}
	if lang == "" {
		lang = s.lang
	}
	return s.loc.Format(lang, key, params)
}
