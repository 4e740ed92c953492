package extract

import (
	"regexp"
	"strings"
	"time"
)

var (
	phoneRe = regexp.MustCompile(`(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]\d{3}[-.\s]\d{4}`)
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

	// Money in symbol form ($1,250,000 / $1.5M) or written form
	// (1.5 million dollars).
	moneySymbolRe  = regexp.MustCompile(`[$€£]\s?\d[\d,]*(?:\.\d+)?\s?(?:[kKmMbB](?:illion)?|thousand|million|billion)?`)
	moneyWrittenRe = regexp.MustCompile(`(?i)\d+(?:\.\d+)?\s?(?:thousand|million|billion)\s?(?:dollars|usd|eur|gbp)?`)

	// Address shapes, most specific first: full street + city + state + zip,
	// then street + state + zip, then a bare city/state pair.
	addressPatterns = []*regexp.Regexp{
		regexp.MustCompile(`\d+\s+[A-Za-z0-9 .]+\b(?:St|Street|Ave|Avenue|Blvd|Boulevard|Rd|Road|Dr|Drive|Ln|Lane|Way|Ct|Court)\.?,\s*[A-Za-z .]+,\s*[A-Z]{2}\s*\d{5}(?:-\d{4})?`),
		regexp.MustCompile(`\d+\s+[A-Za-z0-9 .]+,\s*[A-Z]{2}\s*\d{5}(?:-\d{4})?`),
		regexp.MustCompile(`[A-Z][a-z.]+(?: [A-Z][a-z.]+)*,\s*[A-Z]{2}\s*\d{5}(?:-\d{4})?`),
	}

	numericDateRe = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b|\b\d{1,2}/\d{1,2}/\d{4}\b`)
	writtenDateRe = regexp.MustCompile(`(?i)\b(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.?\s+\d{1,2},?\s+\d{4}\b`)

	deadlineCueRe = regexp.MustCompile(`(?i)(?:deadline|due|closing|submission|proposals?\s+due|responses?\s+due)[^.\n]{0,80}`)
	rfpCueRe      = regexp.MustCompile(`(?i)(?:rfp|solicitation|release|issued?)[^.\n]{0,80}`)
)

// dateLayouts tried in order when normalizing a date token.
var dateLayouts = []string{
	"2006-01-02",
	"1/2/2006",
	"01/02/2006",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"Jan. 2, 2006",
}

func extractPhone(text string) (string, float64) {
	if match := phoneRe.FindString(text); match != "" {
		return strings.TrimSpace(match), confidenceHigh
	}
	return "", 0
}

func extractEmail(text string) (string, float64) {
	if match := emailRe.FindString(text); match != "" {
		return match, confidenceHigh
	}
	return "", 0
}

// extractMoney returns the budget text as written on the page. The symbol
// form is more reliable than the written form.
func extractMoney(text string) (string, float64) {
	if match := moneySymbolRe.FindString(text); match != "" {
		return strings.TrimSpace(match), confidenceHigh
	}
	if match := moneyWrittenRe.FindString(text); match != "" {
		return strings.TrimSpace(match), confidenceLow
	}
	return "", 0
}

// extractAddress tries the layered address patterns, first match wins.
func extractAddress(text string) (string, float64) {
	for i, pattern := range addressPatterns {
		if match := pattern.FindString(text); match != "" {
			if i == 0 {
				return strings.TrimSpace(match), confidenceHigh
			}
			return strings.TrimSpace(match), confidenceLow
		}
	}
	return "", 0
}

// extractDates scans for date tokens. A date next to a deadline cue becomes
// the deadline; one next to an RFP cue becomes the expected RFP date. With no
// cues the latest date found is treated as the deadline.
func extractDates(text string) (deadline, rfpDate string, conf float64) {
	deadline = cuedDate(text, deadlineCueRe)
	rfpDate = cuedDate(text, rfpCueRe)
	if deadline != "" {
		return deadline, rfpDate, confidenceHigh
	}

	var latest time.Time
	for _, token := range append(numericDateRe.FindAllString(text, -1), writtenDateRe.FindAllString(text, -1)...) {
		if parsed, ok := parseDate(token); ok && parsed.After(latest) {
			latest = parsed
		}
	}
	if latest.IsZero() {
		return "", rfpDate, 0
	}
	return latest.Format("2006-01-02"), rfpDate, confidenceDefault
}

// cuedDate finds a date token inside the window following a cue phrase.
func cuedDate(text string, cue *regexp.Regexp) string {
	for _, window := range cue.FindAllString(text, -1) {
		if token := numericDateRe.FindString(window); token != "" {
			if normalized, ok := normalizeDate(token); ok {
				return normalized
			}
		}
		if token := writtenDateRe.FindString(window); token != "" {
			if normalized, ok := normalizeDate(token); ok {
				return normalized
			}
		}
	}
	return ""
}

func parseDate(token string) (time.Time, bool) {
	token = strings.TrimSpace(token)
	for _, layout := range dateLayouts {
		if parsed, err := time.Parse(layout, token); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// normalizeDate converts a raw date token to ISO form.
func normalizeDate(token string) (string, bool) {
	parsed, ok := parseDate(token)
	if !ok {
		return "", false
	}
	return parsed.Format("2006-01-02"), true
}
