package triage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"strings"

	"grievance/backend/internal/models"
)

// Analysis modes.
const (
	ModeAI    = "ai"
	ModeBasic = "basic"
)

// ImageAnalysis is the structured image finding stored with the grievance.
// MatchesGrievance is nil in basic mode.
type ImageAnalysis struct {
	Mode                 string `json:"mode"`
	Description          string `json:"description"`
	Issue                string `json:"issue"`
	MatchesGrievance     *bool  `json:"matches_grievance,omitempty"`
	Severity             string `json:"severity"`
	TextFound            string `json:"text_found"`
	SafetyConcern        string `json:"safety_concern"`
	ManualReviewRequired bool   `json:"manual_review_required"`
	Width                int    `json:"width,omitempty"`
	Height               int    `json:"height,omitempty"`
	Format               string `json:"format,omitempty"`
}

// AnalyzeImage asks the vision model about the photo. It never fails: transport or parse
// errors produce the basic metadata-only analysis.
func (c *Client) AnalyzeImage(ctx context.Context, data []byte, mimeType, structured string) ImageAnalysis {
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}

	reply, err := c.completeWithImage(ctx, imagePrompt(structured), data, mimeType)
	if err != nil {
		c.degraded("analyze_image", err)
		return BasicImageAnalysis(data)
	}

	a, err := ParseImageAnalysis(reply)
	if err != nil {
		c.degraded("analyze_image", err)
		return BasicImageAnalysis(data)
	}
	return a
}

// ParseImageAnalysis decodes a vision reply. matches_grievance is required.
func ParseImageAnalysis(reply string) (ImageAnalysis, error) {
	obj := extractJSONObject(cleanReply(reply))
	if obj == "" {
		return ImageAnalysis{}, errors.New("no JSON object in reply")
	}

	var raw struct {
		Description      string          `json:"description"`
		Issue            string          `json:"issue"`
		MatchesGrievance json.RawMessage `json:"matches_grievance"`
		Severity         string          `json:"severity"`
		TextFound        string          `json:"text_found"`
		SafetyConcern    string          `json:"safety_concern"`
	}
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return ImageAnalysis{}, fmt.Errorf("decode image analysis: %w", err)
	}
	matches, err := parseLooseBool(raw.MatchesGrievance)
	if err != nil {
		return ImageAnalysis{}, err
	}

	severity, ok := NormalizePriority(raw.Severity)
	if !ok {
		severity = models.PriorityMedium
	}
	return ImageAnalysis{
		Mode:             ModeAI,
		Description:      strings.TrimSpace(raw.Description),
		Issue:            strings.TrimSpace(raw.Issue),
		MatchesGrievance: &matches,
		Severity:         severity,
		TextFound:        strings.TrimSpace(raw.TextFound),
		SafetyConcern:    strings.TrimSpace(raw.SafetyConcern),
	}, nil
}

// BasicImageAnalysis reports only what can be read from the image header.
func BasicImageAnalysis(data []byte) ImageAnalysis {
	a := ImageAnalysis{
		Mode:                 ModeBasic,
		Description:          "Automatic image analysis unavailable",
		Severity:             models.PriorityMedium,
		ManualReviewRequired: true,
		Format:               "unknown",
	}
	if cfg, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		a.Width, a.Height, a.Format = cfg.Width, cfg.Height, format
		a.Description = fmt.Sprintf("%dx%d %s image, manual review required", cfg.Width, cfg.Height, strings.ToUpper(format))
	}
	return a
}
