// Package metadata suggests source registration fields from a live URL for
// the create-source form: fetch the page, read og: tags with sensible
// fallbacks.
package metadata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/amar74/n-be-sub001/internal/fetch"
	"github.com/amar74/n-be-sub001/internal/logger"
)

// maxDescriptionRunes caps suggested descriptions.
const maxDescriptionRunes = 500

// Suggestion is the prefill payload for the create-source form.
type Suggestion struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	URL         string `json:"url"`
}

// Suggester fetches pages and derives registration suggestions.
type Suggester struct {
	fetcher fetch.Service
	logger  logger.Logger
}

// NewSuggester creates a suggester on the shared fetch collaborator.
func NewSuggester(fetcher fetch.Service, log logger.Logger) *Suggester {
	return &Suggester{fetcher: fetcher, logger: log}
}

// Suggest fetches the URL and extracts a name and description.
func (s *Suggester) Suggest(ctx context.Context, rawURL string) (*Suggestion, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return nil, fmt.Errorf("invalid url %q", rawURL)
	}

	result, err := s.fetcher.Fetch(ctx, rawURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	if result.HTTPStatus != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", rawURL, result.HTTPStatus)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(result.Body)))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rawURL, err)
	}

	suggestion := &Suggestion{
		URL:         rawURL,
		Name:        suggestName(doc, parsed),
		Description: suggestDescription(doc),
	}

	s.logger.Debug("metadata suggested",
		logger.String("url", rawURL),
		logger.String("name", suggestion.Name),
	)
	return suggestion, nil
}

// suggestName tries og:title, og:site_name, <title>, first h1, then the host.
func suggestName(doc *goquery.Document, parsed *url.URL) string {
	if v, ok := doc.Find("meta[property='og:title']").Attr("content"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	if v, ok := doc.Find("meta[property='og:site_name']").Attr("content"); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	if v := strings.TrimSpace(doc.Find("title").First().Text()); v != "" {
		return v
	}
	if v := strings.TrimSpace(doc.Find("h1").First().Text()); v != "" {
		return v
	}
	return parsed.Host
}

// suggestDescription tries og:description then the meta description, capped.
func suggestDescription(doc *goquery.Document) string {
	candidates := []string{
		"meta[property='og:description']",
		"meta[name='description']",
	}
	for _, sel := range candidates {
		if v, ok := doc.Find(sel).Attr("content"); ok {
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				return truncateRunes(trimmed, maxDescriptionRunes)
			}
		}
	}
	return ""
}

func truncateRunes(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen])
}
