package ai

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Models wrap JSON in prose and markdown despite instructions, truncate long
// replies mid-object, and leave trailing commas. ParseSummary cleans before
// parsing and repairs only when the strict parse fails, so well-formed output
// is never rewritten.

var (
	codeFenceRe     = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
)

// ParseSummary parses model output into a Summary. repaired reports whether
// the lenient pass was needed.
func ParseSummary(raw string) (summary *Summary, repaired bool, err error) {
	cleaned := extractJSONObject(stripCodeFences(raw))
	if cleaned == "" {
		return nil, false, fmt.Errorf("no JSON object in model output")
	}

	var s Summary
	if jsonErr := json.Unmarshal([]byte(cleaned), &s); jsonErr == nil {
		return &s, false, nil
	}

	fixed := balanceBrackets(trailingCommaRe.ReplaceAllString(cleaned, "$1"))
	if jsonErr := json.Unmarshal([]byte(fixed), &s); jsonErr != nil {
		return nil, false, fmt.Errorf("parse model output: %w", jsonErr)
	}

	return &s, true, nil
}

// stripCodeFences unwraps ``` and ```json fences, keeping the inner text.
func stripCodeFences(raw string) string {
	if match := codeFenceRe.FindStringSubmatch(raw); match != nil {
		return match[1]
	}
	// An unterminated fence at the end of a truncated reply.
	if idx := strings.Index(raw, "```json"); idx >= 0 {
		return raw[idx+len("```json"):]
	}
	if idx := strings.Index(raw, "```"); idx >= 0 {
		return raw[idx+len("```"):]
	}
	return raw
}

// extractJSONObject trims prose before the first { and after the last }.
// When no closing brace exists (truncation) everything from the first { on
// is kept for the repair pass.
func extractJSONObject(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return ""
	}
	end := strings.LastIndex(s, "}")
	if end < start {
		return strings.TrimSpace(s[start:])
	}
	return strings.TrimSpace(s[start : end+1])
}

// balanceBrackets closes an unterminated string and appends the closers a
// truncated object is missing, innermost first.
func balanceBrackets(s string) string {
	var stack []byte
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch c {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}

	var sb strings.Builder
	sb.WriteString(s)
	if inString {
		sb.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		sb.WriteByte(stack[i])
	}
	return sb.String()
}
