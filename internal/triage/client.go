// Package triage turns free-form citizen complaints into structured, classified grievances.
// The language model behind it is treated as an untrusted text generator: every reply is
// cleaned and normalized, and every operation degrades to a local default instead of failing.
package triage

import (
	"context"
	"errors"
	"strings"
	"time"

	"grievance/backend/internal/config"
	"grievance/backend/internal/llm"
	"grievance/backend/internal/metrics"
	"grievance/backend/internal/models"

	"go.uber.org/zap"
)

// StructureFailed is substituted for the structured report when the model is unavailable.
const StructureFailed = "Error structuring grievance"

// NotSpecified renders a missing location field.
const NotSpecified = "Not specified"

// ErrEmptyText is returned when an operation gets no grievance text.
var ErrEmptyText = errors.New("grievance text is required")

var errNoCompleter = errors.New("no completion backend configured")

// Client is the classification client. A nil Completer puts every operation in fallback mode.
type Client struct {
	llm     llm.Completer
	log     *zap.Logger
	timeout time.Duration
}

func NewClient(completer llm.Completer, log *zap.Logger, timeout time.Duration) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = config.DefaultLLMTimeout
	}
	return &Client{llm: completer, log: log.With(zap.String("component", "triage")), timeout: timeout}
}

func (c *Client) complete(ctx context.Context, prompt string, temperature float32) (string, error) {
	if c.llm == nil {
		return "", errNoCompleter
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.llm.Complete(ctx, prompt, temperature)
}

func (c *Client) completeWithImage(ctx context.Context, prompt string, image []byte, mime string) (string, error) {
	if c.llm == nil {
		return "", errNoCompleter
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.llm.CompleteWithImage(ctx, prompt, image, mime, config.VisionTemperature)
}

func (c *Client) degraded(op string, err error) {
	metrics.TriageDegraded.WithLabelValues(op).Inc()
	c.log.Warn("Classification degraded to fallback", zap.String("operation", op), zap.Error(err))
}

// Structure rewrites raw text into the multi-section report.
// Only empty text is an error; model failures yield StructureFailed.
func (c *Client) Structure(ctx context.Context, text string, loc models.Location) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText
	}

	reply, err := c.complete(ctx, structurePrompt(text, loc), config.StructureTemperature)
	if err != nil {
		c.degraded("structure", err)
		return StructureFailed, nil
	}
	return stripMarkdownFences(reply), nil
}

// ClassifyDepartment always returns a member of the department vocabulary.
func (c *Client) ClassifyDepartment(ctx context.Context, text string) string {
	if strings.TrimSpace(text) == "" {
		return models.DefaultDepartment
	}

	reply, err := c.complete(ctx, classifyPrompt(text), config.ClassifyTemperature)
	if err != nil {
		c.degraded("classify", err)
		// Локальний пошук за ключовими словами в самому тексті
		return NormalizeDepartment(text)
	}
	return NormalizeDepartment(reply)
}

// AssignPriority always returns low, medium or high.
func (c *Client) AssignPriority(ctx context.Context, text string, loc models.Location) string {
	reply, err := c.complete(ctx, priorityPrompt(text, loc), config.PriorityTemperature)
	if err != nil {
		c.degraded("priority", err)
		return HeuristicPriority(text)
	}
	if p, ok := NormalizePriority(reply); ok {
		return p
	}
	c.degraded("priority", errors.New("unparseable priority reply"))
	return HeuristicPriority(text)
}
