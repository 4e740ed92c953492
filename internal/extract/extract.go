// Package extract turns raw page markup into structured opportunity
// candidates. Extraction is layered: markup sections first, pattern matching
// over the section text, keyword classification, then an optional model pass
// whose output fills gaps but never overrides a confident rule match.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/amar74/n-be-sub001/internal/ai"
	"github.com/amar74/n-be-sub001/internal/logger"
	"github.com/amar74/n-be-sub001/internal/metrics"
)

// Confidence levels assigned by the rule extractors. A full-shape match is
// high, a partial shape is low, model output sits in between.
const (
	confidenceHigh    = 0.9
	confidenceModel   = 0.7
	confidenceLow     = 0.4
	confidenceDefault = 0.2
)

// Config bounds extraction work per page.
type Config struct {
	// ExcerptRunes is the body-text fallback length when no markup
	// section matches.
	ExcerptRunes int
	// MaxChildLinks caps link harvesting fan-out.
	MaxChildLinks int
}

// Extraction is one structured opportunity candidate. Dates are normalized
// to ISO (2006-01-02) strings; the promotion engine parses them. Confidence
// carries a per-field score in [0,1]; fields below the reviewer's auto-apply
// threshold stay visible but flagged.
type Extraction struct {
	Title           string             `json:"title"`
	Summary         string             `json:"summary"`
	BudgetText      string             `json:"budget_text"`
	Deadline        string             `json:"deadline"`
	ExpectedRFPDate string             `json:"expected_rfp_date"`
	ContactPhone    string             `json:"contact_phone"`
	ContactEmail    string             `json:"contact_email"`
	Location        string             `json:"location"`
	Sector          string             `json:"sector"`
	ProjectStatus   string             `json:"project_status"`
	DocumentLinks   []string           `json:"document_links"`
	ImageLinks      []string           `json:"image_links"`
	SourceURL       string             `json:"source_url"`
	RawSection      string             `json:"raw_section"`
	Confidence      map[string]float64 `json:"-"`
}

// Payload flattens the extraction into the open-ended staging payload.
// Promotion reads these keys back; renaming one is a schema change.
func (x *Extraction) Payload() map[string]any {
	payload := map[string]any{
		"title":             x.Title,
		"summary":           x.Summary,
		"budget_text":       x.BudgetText,
		"deadline":          x.Deadline,
		"expected_rfp_date": x.ExpectedRFPDate,
		"contact_phone":     x.ContactPhone,
		"contact_email":     x.ContactEmail,
		"location":          x.Location,
		"sector":            x.Sector,
		"project_status":    x.ProjectStatus,
		"source_url":        x.SourceURL,
	}
	if len(x.DocumentLinks) > 0 {
		payload["document_links"] = toAnySlice(x.DocumentLinks)
	}
	if len(x.ImageLinks) > 0 {
		payload["image_links"] = toAnySlice(x.ImageLinks)
	}
	return payload
}

func toAnySlice(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// Extractor runs the layered extraction pipeline.
type Extractor struct {
	cfg        Config
	completer  ai.Completer
	classifier *Classifier
	logger     logger.Logger
	metrics    *metrics.Metrics
}

// New creates an extractor. completer may be nil, which disables the model
// pass; metrics may be nil.
func New(cfg Config, completer ai.Completer, log logger.Logger, m *metrics.Metrics) *Extractor {
	if cfg.ExcerptRunes <= 0 {
		cfg.ExcerptRunes = 2000
	}
	if cfg.MaxChildLinks <= 0 {
		cfg.MaxChildLinks = 10
	}
	return &Extractor{
		cfg:        cfg,
		completer:  completer,
		classifier: NewClassifier(),
		logger:     log,
		metrics:    m,
	}
}

// HarvestLinks returns candidate opportunity links from a landing page,
// bounded by the configured fan-out.
func (e *Extractor) HarvestLinks(body []byte, pageURL string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse landing page: %w", err)
	}
	return harvestLinks(doc, pageURL, e.cfg.MaxChildLinks), nil
}

// ExtractPage extracts a single candidate from one page. It never fails on
// content shape: unextractable fields come back empty with zero confidence.
// Only a page that cannot be parsed as markup at all returns an error.
func (e *Extractor) ExtractPage(ctx context.Context, body []byte, pageURL string) (*Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	text, fromSection := sectionText(doc, e.cfg.ExcerptRunes)

	x := &Extraction{
		SourceURL:  pageURL,
		RawSection: text,
		Confidence: make(map[string]float64),
	}

	x.Title = pageTitle(doc)
	if x.Title != "" {
		x.Confidence["title"] = confidenceHigh
	}
	if !fromSection {
		// Excerpt text is noisier; everything derived from it starts lower.
		x.Confidence["raw_section"] = confidenceLow
	} else {
		x.Confidence["raw_section"] = confidenceHigh
	}

	x.ContactPhone, x.Confidence["contact_phone"] = extractPhone(text)
	x.ContactEmail, x.Confidence["contact_email"] = extractEmail(text)
	x.BudgetText, x.Confidence["budget_text"] = extractMoney(text)
	x.Location, x.Confidence["location"] = extractAddress(text)

	deadline, rfpDate, dateConf := extractDates(text)
	x.Deadline = deadline
	x.ExpectedRFPDate = rfpDate
	x.Confidence["deadline"] = dateConf

	x.DocumentLinks = documentLinks(doc, pageURL)
	x.ImageLinks = imageLinks(doc, pageURL)

	x.ProjectStatus, x.Confidence["project_status"] = e.classifier.ClassifyStatus(text)
	x.Sector, x.Confidence["sector"] = e.classifier.ClassifySector(text)

	e.applyModelPass(ctx, x, text)
	applyDefaults(x)

	return x, nil
}

// applyDefaults fills the classification fields still empty after both the
// rule and model passes.
func applyDefaults(x *Extraction) {
	if x.ProjectStatus == "" {
		x.ProjectStatus = DefaultProjectStatus
		x.Confidence["project_status"] = confidenceDefault
	}
	if x.Sector == "" {
		x.Sector = DefaultSector
		x.Confidence["sector"] = confidenceDefault
	}
}

// applyModelPass asks the model to summarize the page and fills fields the
// rule extractors left empty. Model failures downgrade, never abort.
func (e *Extractor) applyModelPass(ctx context.Context, x *Extraction, text string) {
	if e.completer == nil {
		return
	}

	reply, err := e.completer.Complete(ctx, summaryPrompt(text))
	if err != nil {
		e.logger.Warn("model summarization failed",
			logger.String("url", x.SourceURL),
			logger.Error(err),
		)
		return
	}

	summary, repaired, err := ai.ParseSummary(reply)
	if err != nil {
		e.logger.Warn("model output unparseable, extraction continues without it",
			logger.String("url", x.SourceURL),
			logger.Error(err),
		)
		return
	}
	if repaired {
		e.metrics.RecordModelRepair()
		e.logger.Debug("model output repaired before parsing",
			logger.String("url", x.SourceURL),
		)
	}

	conf := summary.Confidence
	if conf <= 0 || conf > 1 {
		conf = confidenceModel
	}

	if summary.Summary != "" {
		x.Summary = summary.Summary
		x.Confidence["summary"] = conf
	}
	fillIfEmpty(&x.Title, summary.Title, "title", conf, x.Confidence)
	fillIfEmpty(&x.BudgetText, summary.BudgetText, "budget_text", conf, x.Confidence)
	fillIfEmpty(&x.Location, summary.Location, "location", conf, x.Confidence)
	fillIfEmpty(&x.Sector, summary.Sector, "sector", conf, x.Confidence)
	fillIfEmpty(&x.ContactPhone, summary.Contact.Phone, "contact_phone", conf, x.Confidence)
	fillIfEmpty(&x.ContactEmail, summary.Contact.Email, "contact_email", conf, x.Confidence)

	if x.Deadline == "" && summary.Deadline != "" {
		if normalized, ok := normalizeDate(summary.Deadline); ok {
			x.Deadline = normalized
			x.Confidence["deadline"] = conf
		}
	}
}

func fillIfEmpty(dst *string, value, field string, conf float64, confidence map[string]float64) {
	if *dst != "" || value == "" {
		return
	}
	*dst = value
	confidence[field] = conf
}

// summaryPrompt asks for strict JSON. Models ignore the strictness often
// enough that ParseSummary repairs the reply anyway.
func summaryPrompt(text string) string {
	schema := map[string]string{
		"title":       "short project title",
		"summary":     "2-3 sentence description",
		"budget_text": "budget or contract value as written",
		"deadline":    "submission deadline, ISO date",
		"location":    "project location",
		"sector":      "market sector",
	}
	schemaJSON, _ := json.Marshal(schema)

	return fmt.Sprintf(
		"Summarize this procurement/opportunity page as strict JSON with keys %s "+
			"plus \"contact\": {\"phone\", \"email\"} and \"confidence\" (0-1). "+
			"Use empty strings for unknown fields. Reply with JSON only, no markdown.\n\n%s",
		schemaJSON, text)
}
