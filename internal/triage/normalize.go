package triage

import (
	"regexp"
	"strings"

	"grievance/backend/internal/models"
)

type synonym struct {
	keyword    string
	department string
}

// departmentSynonyms maps lower-case keywords onto the department vocabulary.
var departmentSynonyms = []synonym{
	{"public health", models.DeptPublicHealth},
	{"health", models.DeptPublicHealth},
	{"hospital", models.DeptPublicHealth},
	{"medical", models.DeptPublicHealth},
	{"clinic", models.DeptPublicHealth},
	{"dengue", models.DeptPublicHealth},
	{"mosquito", models.DeptPublicHealth},

	{"education", models.DeptEducation},
	{"school", models.DeptEducation},
	{"teacher", models.DeptEducation},
	{"college", models.DeptEducation},

	{"infrastructure", models.DeptRoads},
	{"road", models.DeptRoads},
	{"pothole", models.DeptRoads},
	{"bridge", models.DeptRoads},
	{"footpath", models.DeptRoads},
	{"street light", models.DeptRoads},
	{"streetlight", models.DeptRoads},

	{"police", models.DeptPolice},
	{"public safety", models.DeptPolice},
	{"safety", models.DeptPolice},
	{"crime", models.DeptPolice},
	{"theft", models.DeptPolice},
	{"harassment", models.DeptPolice},
	{"law and order", models.DeptPolice},

	{"water", models.DeptWater},
	{"sanitation", models.DeptWater},
	{"sewage", models.DeptWater},
	{"sewer", models.DeptWater},
	{"drainage", models.DeptWater},
	{"garbage", models.DeptWater},
	{"waste", models.DeptWater},

	{"electricity", models.DeptElectricity},
	{"electric", models.DeptElectricity},
	{"power cut", models.DeptElectricity},
	{"power outage", models.DeptElectricity},
	{"transformer", models.DeptElectricity},

	{"municipal", models.DeptMunicipalAdmin},
	{"administration", models.DeptMunicipalAdmin},
	{"certificate", models.DeptMunicipalAdmin},
	{"property tax", models.DeptMunicipalAdmin},
	{"licence", models.DeptMunicipalAdmin},
	{"license", models.DeptMunicipalAdmin},
}

// NormalizeDepartment coerces arbitrary text into the department vocabulary.
// An exact department name wins; otherwise the synonym that appears earliest in the
// text is used (longer keyword on a tie); otherwise DefaultDepartment.
// Synonyms match only at the start of a word, so "broad" is not a road.
func NormalizeDepartment(reply string) string {
	cleaned := strings.ToLower(cleanReply(reply))
	if cleaned == "" {
		return models.DefaultDepartment
	}

	for _, name := range models.DepartmentNames() {
		if strings.Contains(cleaned, strings.ToLower(name)) && name != models.DeptOther {
			return name
		}
	}

	best, bestPos, bestLen := "", -1, 0
	for _, s := range departmentSynonyms {
		pos := wordIndex(cleaned, s.keyword)
		if pos < 0 {
			continue
		}
		if bestPos < 0 || pos < bestPos || (pos == bestPos && len(s.keyword) > bestLen) {
			best, bestPos, bestLen = s.department, pos, len(s.keyword)
		}
	}
	if best == "" {
		return models.DefaultDepartment
	}
	return best
}

// wordIndex is strings.Index restricted to matches that begin a word.
func wordIndex(s, keyword string) int {
	for offset := 0; offset < len(s); {
		i := strings.Index(s[offset:], keyword)
		if i < 0 {
			return -1
		}
		pos := offset + i
		if pos == 0 || !isWordByte(s[pos-1]) {
			return pos
		}
		offset = pos + 1
	}
	return -1
}

func isWordByte(b byte) bool {
	return b == '_' || ('a' <= b && b <= 'z') || ('A' <= b && b <= 'Z') || ('0' <= b && b <= '9')
}

var priorityWords = map[string]*regexp.Regexp{
	models.PriorityHigh:   regexp.MustCompile(`\bhigh\b`),
	models.PriorityMedium: regexp.MustCompile(`\bmedium\b`),
	models.PriorityLow:    regexp.MustCompile(`\blow\b`),
}

// NormalizePriority extracts a priority token from a model reply, checking high, medium, low in that order.
func NormalizePriority(reply string) (string, bool) {
	cleaned := strings.ToLower(cleanReply(reply))
	for _, p := range models.Priorities {
		if priorityWords[p].MatchString(cleaned) {
			return p, true
		}
	}
	return "", false
}

var urgentTerms = regexp.MustCompile(`(?i)\b(urgent|urgently|emergency|danger|dangerous|critical|accident|fire|collapse[ds]?|electrocut\w*|live wire|injur\w*|death|died|dead|flood\w*|gas leak|life[- ]threatening|sparking)\b`)

// HeuristicPriority is the deterministic fallback: urgency terms mean high, anything else medium.
func HeuristicPriority(text string) string {
	if urgentTerms.MatchString(text) {
		return models.PriorityHigh
	}
	return models.PriorityMedium
}

// cleanReply strips code fences, bold/italic markers and surrounding quotes.
func cleanReply(s string) string {
	s = stripMarkdownFences(s)
	s = strings.NewReplacer("**", "", "__", "", "*", "", "`", "").Replace(s)
	return strings.Trim(strings.TrimSpace(s), `"'.`)
}

// stripMarkdownFences drops every ``` fence line and keeps the text between them.
func stripMarkdownFences(s string) string {
	if !strings.Contains(s, "```") {
		return strings.TrimSpace(s)
	}
	lines := strings.Split(s, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			continue
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// extractJSONObject returns the first balanced {...} in s, ignoring braces inside strings.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	if start == -1 {
		return ""
	}

	depth := 0
	inString, escaped := false, false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
