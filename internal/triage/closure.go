package triage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"grievance/backend/internal/config"
	"grievance/backend/internal/models"
)

// UnparseableVerdictReason is reported when the model reply holds no usable verdict.
const UnparseableVerdictReason = "Closure verification reply could not be parsed; manual review required"

// Verdict sources.
const (
	VerdictFromModel     = "model"
	VerdictFromHeuristic = "heuristic"
	VerdictUnparseable   = "unparseable"
)

// Verdict is the outcome of a closure verification.
type Verdict struct {
	Approved bool   `json:"approved"`
	Reason   string `json:"reason"`
	Source   string `json:"source"`
}

// VerifyClosure judges whether a proposed resolution really resolves the grievance.
// A model that cannot be reached falls back to HeuristicVerdict; a reply that cannot be
// parsed is never approved.
func (c *Client) VerifyClosure(ctx context.Context, grievance, resolution string, loc models.Location) Verdict {
	if strings.TrimSpace(resolution) == "" {
		return Verdict{Approved: false, Reason: "Resolution note is empty", Source: VerdictFromHeuristic}
	}

	reply, err := c.complete(ctx, verifyPrompt(grievance, resolution, loc), config.VerifyTemperature)
	if err != nil {
		c.degraded("verify_closure", err)
		return HeuristicVerdict(grievance, resolution, loc)
	}

	v, err := ParseVerdict(reply)
	if err != nil {
		c.degraded("verify_closure", err)
		return Verdict{Approved: false, Reason: UnparseableVerdictReason, Source: VerdictUnparseable}
	}
	return v
}

// ParseVerdict extracts {"approved": ..., "reason": ...} from a model reply that may be
// wrapped in prose, code fences or markdown emphasis.
func ParseVerdict(reply string) (Verdict, error) {
	obj := extractJSONObject(cleanReply(reply))
	if obj == "" {
		return Verdict{}, errors.New("no JSON object in reply")
	}

	var raw struct {
		Approved json.RawMessage `json:"approved"`
		Reason   string          `json:"reason"`
	}
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return Verdict{}, fmt.Errorf("decode verdict: %w", err)
	}

	approved, err := parseLooseBool(raw.Approved)
	if err != nil {
		return Verdict{}, err
	}
	reason := strings.TrimSpace(raw.Reason)
	if reason == "" {
		reason = "No reason given"
	}
	return Verdict{Approved: approved, Reason: reason, Source: VerdictFromModel}, nil
}

func parseLooseBool(raw json.RawMessage) (bool, error) {
	if len(raw) == 0 {
		return false, errors.New("verdict has no approved field")
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return false, fmt.Errorf("approved is neither bool nor string: %s", raw)
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "approved":
		return true, nil
	case "false", "no", "rejected":
		return false, nil
	}
	return false, fmt.Errorf("unrecognised approved value %q", s)
}

var (
	datePattern      = regexp.MustCompile(`(?i)\b(\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4}|\d{4}-\d{2}-\d{2}|\d{1,2}(st|nd|rd|th)?\s+(jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*|(jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\s+\d{1,2}|today|yesterday|monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)
	referencePattern = regexp.MustCompile(`(?i)\b(ref(erence)?|ticket|work\s*order|wo|job|complaint|receipt)\s*(no\.?|number|id)?\s*[:#-]?\s*[a-z]*-?\d{3,}[a-z0-9-]*\b|#\d{3,}`)
	actionPattern    = regexp.MustCompile(`(?i)\b(repaired|replaced|fixed|installed|cleaned|cleared|restored|filled|resurfaced|removed|completed|laid|patched|unclogged|desilted|disinfected|fumigated|reconnected|constructed|rebuilt)\b`)
	placePattern     = regexp.MustCompile(`(?i)\b(road|street|lane|nagar|colony|ward|sector|block|market|village|chowk|near|junction|avenue|layout|phase)\b`)
)

// HeuristicVerdict approves only a resolution that names the location, a date, and a
// reference number or concrete action.
func HeuristicVerdict(grievance, resolution string, loc models.Location) Verdict {
	var missing []string
	if !mentionsLocation(resolution, loc) {
		missing = append(missing, "location")
	}
	if !datePattern.MatchString(resolution) {
		missing = append(missing, "date")
	}
	if !referencePattern.MatchString(resolution) && !actionPattern.MatchString(resolution) {
		missing = append(missing, "reference number or completed action")
	}

	if len(missing) > 0 {
		return Verdict{
			Approved: false,
			Reason:   "Resolution lacks specific details: " + strings.Join(missing, ", "),
			Source:   VerdictFromHeuristic,
		}
	}
	return Verdict{
		Approved: true,
		Reason:   "Resolution names the location, a date and the work done",
		Source:   VerdictFromHeuristic,
	}
}

// locationConnectors join place words but name nothing.
var locationConnectors = map[string]bool{
	"near": true, "the": true, "of": true, "at": true, "on": true, "in": true, "to": true, "and": true,
	"opposite": true, "opp": true, "behind": true, "next": true, "beside": true, "front": true,
}

// genericPlaceWords identify a place only next to a proper name ("mg road").
var genericPlaceWords = map[string]bool{
	"road": true, "street": true, "lane": true, "main": true, "area": true, "colony": true,
	"nagar": true, "ward": true, "sector": true, "block": true, "phase": true, "cross": true,
}

var locationToken = regexp.MustCompile(`[\p{L}\p{N}]+`)

func mentionsLocation(resolution string, loc models.Location) bool {
	lower := strings.ToLower(resolution)
	known := false
	for _, v := range []string{loc.SpecificLocation, loc.Place, loc.Area, loc.City, loc.Pincode} {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "" {
			continue
		}
		known = true
		if strings.Contains(lower, v) {
			return true
		}
	}
	if !known {
		return placePattern.MatchString(resolution)
	}

	tokens := locationToken.FindAllString(lower, -1)
	words := make(map[string]bool, len(tokens))
	for _, w := range tokens {
		words[w] = true
	}
	padded := " " + strings.Join(tokens, " ") + " "
	for _, v := range []string{loc.SpecificLocation, loc.Place, loc.Area} {
		if locationOverlap(strings.ToLower(v), words, padded) {
			return true
		}
	}
	return false
}

// locationOverlap reports whether the resolution shares a distinctive word of the field
// (four letters or more) or a pair of adjacent words such as "mg road" or "bus stand".
func locationOverlap(field string, words map[string]bool, padded string) bool {
	tokens := locationToken.FindAllString(field, -1)
	for i, tok := range tokens {
		distinctive := !locationConnectors[tok] && !genericPlaceWords[tok]
		if distinctive && len([]rune(tok)) >= 4 && words[tok] {
			return true
		}
		if i == 0 {
			continue
		}
		prev := tokens[i-1]
		if locationConnectors[prev] || locationConnectors[tok] || genericPlaceWords[prev] && genericPlaceWords[tok] {
			continue
		}
		if strings.Contains(padded, " "+prev+" "+tok+" ") {
			return true
		}
	}
	return false
}
