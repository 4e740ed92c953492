package promotion

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/amar74/n-be-sub001/internal/models"
)

// Risk score thresholds for banding.
const (
	riskHighThreshold   = 70
	riskMediumThreshold = 40
)

// maxStateLen matches the canonical record's state column width.
const maxStateLen = 64

var (
	currencyStripRe = regexp.MustCompile(`[$€£,]`)
	numberRe        = regexp.MustCompile(`\d+(?:\.\d+)?`)
)

// multipliers recognized in budget text, checked against the lowercased
// remainder after the number.
var multipliers = []struct {
	token  string
	factor float64
}{
	{"billion", 1e9},
	{"million", 1e6},
	{"thousand", 1e3},
	{"b", 1e9},
	{"m", 1e6},
	{"k", 1e3},
}

// ParseBudget resolves a numeric project value from budget text:
// "$1,250,000" → 1250000, "1.5 million" → 1500000, "$2.5M" → 2500000.
// Unparseable text returns ok=false; the caller records a warning and
// promotes with a null value.
func ParseBudget(text string) (float64, bool) {
	stripped := currencyStripRe.ReplaceAllString(text, "")
	loc := numberRe.FindStringIndex(stripped)
	if loc == nil {
		return 0, false
	}

	value, err := strconv.ParseFloat(stripped[loc[0]:loc[1]], 64)
	if err != nil {
		return 0, false
	}

	// A multiplier only counts as the whole next word: "$500 bid bond" is
	// five hundred, not five hundred billion.
	rest := strings.TrimSpace(strings.ToLower(stripped[loc[1]:]))
	for _, m := range multipliers {
		if !strings.HasPrefix(rest, m.token) {
			continue
		}
		tail := rest[len(m.token):]
		if tail == "" || !isASCIILetter(tail[0]) {
			return value * m.factor, true
		}
	}
	return value, true
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// riskTagHints map free-text tag substrings to bands, most severe first.
var riskTagHints = []struct {
	substring string
	band      string
}{
	{"high risk", models.RiskBandHigh},
	{"high-risk", models.RiskBandHigh},
	{"medium risk", models.RiskBandMedium},
	{"moderate", models.RiskBandMedium},
	{"low risk", models.RiskBandLow},
}

// ResolveRiskBand thresholds a numeric score when present, otherwise infers
// from tags by substring, otherwise returns empty (left unset).
func ResolveRiskBand(score *float64, tags []string) string {
	if score != nil {
		switch {
		case *score >= riskHighThreshold:
			return models.RiskBandHigh
		case *score >= riskMediumThreshold:
			return models.RiskBandMedium
		default:
			return models.RiskBandLow
		}
	}

	joined := strings.ToLower(strings.Join(tags, " "))
	for _, hint := range riskTagHints {
		if strings.Contains(joined, hint.substring) {
			return hint.band
		}
	}
	return ""
}

// stateSeparators split a free-text location into segments.
var stateSeparators = func(r rune) bool {
	return r == ',' || r == '|' || r == '\n' || r == '-'
}

// ResolveState extracts the geographic state for the canonical record:
// an explicit state field first, then a structured location sub-object,
// then the last meaningful segment of the free-text location.
func ResolveState(payload map[string]any) string {
	if state := payloadString(payload, "state"); state != "" {
		return truncate(state, maxStateLen)
	}

	if sub, ok := payload["location"].(map[string]any); ok {
		if state := payloadString(sub, "state"); state != "" {
			return truncate(state, maxStateLen)
		}
	}

	location := payloadString(payload, "location")
	if location == "" {
		return ""
	}

	segments := strings.FieldsFunc(location, stateSeparators)
	for i := len(segments) - 1; i >= 0; i-- {
		if segment := strings.TrimSpace(segments[i]); segment != "" {
			return truncate(segment, maxStateLen)
		}
	}
	return ""
}

// RepairDates enforces deadline > expectedRFP by shifting the deadline one
// day forward. Date ordering never blocks a promotion; it is repaired.
func RepairDates(expectedRFP, deadline *time.Time) (repaired *time.Time, wasRepaired bool) {
	if expectedRFP == nil || deadline == nil {
		return deadline, false
	}
	if deadline.After(*expectedRFP) {
		return deadline, false
	}
	shifted := expectedRFP.Add(24 * time.Hour)
	return &shifted, true
}

// payloadDateLayouts accepted when parsing payload date strings. Extraction
// normalizes to ISO; the first layout covers everything it produces.
var payloadDateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"01/02/2006",
	"January 2, 2006",
}

// ParsePayloadDate parses a date value from the raw payload. Unparseable
// values are a data-shape failure: nil, never an error.
func ParsePayloadDate(payload map[string]any, key string) *time.Time {
	raw := payloadString(payload, key)
	if raw == "" {
		return nil
	}
	for _, layout := range payloadDateLayouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return &parsed
		}
	}
	return nil
}

// payloadString reads a string value, tolerating absent keys and non-string
// values.
func payloadString(payload map[string]any, key string) string {
	value, ok := payload[key]
	if !ok {
		return ""
	}
	s, ok := value.(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(s)
}

// payloadStrings reads a string-slice value stored as []any (the shape JSON
// round-tripping produces).
func payloadStrings(payload map[string]any, key string) []string {
	raw, ok := payload[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

// payloadFloat reads a numeric value, tolerating JSON numbers and numeric
// strings.
func payloadFloat(payload map[string]any, key string) *float64 {
	switch v := payload[key].(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	case string:
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return &parsed
		}
	}
	return nil
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}
