// Package scrape runs one agent's fetch/extract pass: landing page, link
// harvest, bounded child-page extraction, staging. Page-level failures are
// recorded on history rows and never abort the pass; only a landing page that
// cannot be fetched fails the run.
package scrape

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/amar74/n-be-sub001/internal/events"
	"github.com/amar74/n-be-sub001/internal/extract"
	"github.com/amar74/n-be-sub001/internal/fetch"
	"github.com/amar74/n-be-sub001/internal/logger"
	"github.com/amar74/n-be-sub001/internal/metrics"
	"github.com/amar74/n-be-sub001/internal/models"
)

// HistoryStore records fetch attempts and answers freshness checks.
type HistoryStore interface {
	Insert(ctx context.Context, h *models.ScrapeHistory) error
	SeenSince(ctx context.Context, urlHash string, cutoff time.Time) (bool, error)
}

// StagingStore persists extracted candidates.
type StagingStore interface {
	Upsert(ctx context.Context, temp *models.TempOpportunity) (created bool, err error)
	MergePayload(ctx context.Context, orgID, tempIdentifier string, payload models.JSONMap, confidence models.ConfidenceMap) error
}

// Config bounds one executor pass.
type Config struct {
	// FreshnessWindow is how long a scraped URL stays fresh. A URL with a
	// successful history row inside the window is skipped, not re-fetched.
	FreshnessWindow time.Duration
}

// Stats aggregates one pass for the agent run record.
type Stats struct {
	PagesScraped     int
	PagesSkipped     int
	PagesFailed      int
	NewOpportunities int
}

// Executor drives fetch, dedup, extraction and staging for one agent.
type Executor struct {
	cfg       Config
	fetcher   fetch.Service
	extractor *extract.Extractor
	history   HistoryStore
	staging   StagingStore
	publisher *events.Publisher
	metrics   *metrics.Metrics
	logger    logger.Logger
	now       func() time.Time
}

// NewExecutor creates an executor. publisher and metrics may be nil.
func NewExecutor(
	cfg Config,
	fetcher fetch.Service,
	extractor *extract.Extractor,
	history HistoryStore,
	staging StagingStore,
	publisher *events.Publisher,
	m *metrics.Metrics,
	log logger.Logger,
) *Executor {
	if cfg.FreshnessWindow <= 0 {
		cfg.FreshnessWindow = 24 * time.Hour
	}
	return &Executor{
		cfg:       cfg,
		fetcher:   fetcher,
		extractor: extractor,
		history:   history,
		staging:   staging,
		publisher: publisher,
		metrics:   m,
		logger:    log,
		now:       time.Now,
	}
}

// Run executes one pass for an agent against its source URL. The returned
// error means the run itself failed (landing page unreachable); page-level
// failures are folded into Stats.
func (e *Executor) Run(ctx context.Context, agent *models.Agent, source *models.Source) (Stats, error) {
	var stats Stats

	landing, err := e.fetcher.Fetch(ctx, source.URL)
	if err != nil {
		e.recordFailure(ctx, agent, source, source.URL, err.Error(), nil)
		return stats, fmt.Errorf("fetch landing page %s: %w", source.URL, err)
	}
	if landing.HTTPStatus >= http.StatusBadRequest {
		msg := fmt.Sprintf("landing page returned HTTP %d", landing.HTTPStatus)
		e.recordFailure(ctx, agent, source, source.URL, msg, &landing.HTTPStatus)
		return stats, fmt.Errorf("fetch landing page %s: %s", source.URL, msg)
	}

	links, err := e.extractor.HarvestLinks(landing.Body, landing.FinalURL)
	if err != nil {
		e.recordFailure(ctx, agent, source, source.URL, err.Error(), &landing.HTTPStatus)
		return stats, fmt.Errorf("harvest links from %s: %w", source.URL, err)
	}

	// A page with no listing links is treated as the opportunity itself.
	if len(links) == 0 {
		links = []string{landing.FinalURL}
	}

	e.logger.Debug("scrape pass starting",
		logger.String("agent_id", agent.ID),
		logger.String("source_url", source.URL),
		logger.Int("candidate_pages", len(links)),
	)

	for _, link := range links {
		switch outcome := e.scrapePage(ctx, agent, source, link); outcome {
		case outcomeScraped:
			stats.PagesScraped++
		case outcomeStaged:
			stats.PagesScraped++
			stats.NewOpportunities++
		case outcomeSkipped:
			stats.PagesSkipped++
		case outcomeFailed:
			stats.PagesFailed++
		}
	}

	return stats, nil
}

type pageOutcome int

const (
	outcomeFailed pageOutcome = iota
	outcomeSkipped
	outcomeScraped // extracted, merged into an existing staged record
	outcomeStaged  // extracted, new staged record created
)

// scrapePage handles one candidate page end to end. Every path leaves a
// history row; the row is written last so a reader never sees a scraped
// status before the staged record exists.
func (e *Executor) scrapePage(ctx context.Context, agent *models.Agent, source *models.Source, pageURL string) pageOutcome {
	urlHash := HashURL(pageURL)
	cutoff := e.now().Add(-e.cfg.FreshnessWindow)

	seen, err := e.history.SeenSince(ctx, urlHash, cutoff)
	if err != nil {
		e.logger.Error("freshness check failed",
			logger.String("url", pageURL),
			logger.Error(err),
		)
		return outcomeFailed
	}
	if seen {
		e.metrics.RecordPageSkipped()
		e.insertHistory(ctx, agent, source, pageURL, urlHash, models.ScrapeStatusSkipped, nil, nil, "")
		return outcomeSkipped
	}

	page, err := e.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		e.insertHistory(ctx, agent, source, pageURL, urlHash, models.ScrapeStatusFailed, nil, nil, err.Error())
		return outcomeFailed
	}
	if page.HTTPStatus >= http.StatusBadRequest {
		msg := fmt.Sprintf("HTTP %d", page.HTTPStatus)
		e.insertHistory(ctx, agent, source, pageURL, urlHash, models.ScrapeStatusFailed, &page.HTTPStatus, nil, msg)
		return outcomeFailed
	}

	extraction, err := e.extractor.ExtractPage(ctx, page.Body, pageURL)
	if err != nil {
		e.insertHistory(ctx, agent, source, pageURL, urlHash, models.ScrapeStatusFailed, &page.HTTPStatus, nil, err.Error())
		return outcomeFailed
	}

	created, err := e.stage(ctx, agent, source, urlHash, extraction)
	if err != nil {
		e.insertHistory(ctx, agent, source, pageURL, urlHash, models.ScrapeStatusFailed, &page.HTTPStatus, nil, err.Error())
		return outcomeFailed
	}

	contentLength := len(page.Body)
	e.metrics.RecordPageScraped()
	e.insertHistory(ctx, agent, source, pageURL, urlHash, models.ScrapeStatusScraped, &page.HTTPStatus, &contentLength, "")

	if created {
		return outcomeStaged
	}
	return outcomeScraped
}

// stage writes the candidate; a duplicate identifier merges instead.
func (e *Executor) stage(ctx context.Context, agent *models.Agent, source *models.Source, urlHash string, x *extract.Extraction) (bool, error) {
	temp := &models.TempOpportunity{
		OrgID:          agent.OrgID,
		AgentID:        &agent.ID,
		SourceID:       &source.ID,
		TempIdentifier: TempIdentifier(urlHash),
		Title:          x.Title,
		RawPayload:     models.JSONMap(x.Payload()),
		Confidence:     models.ConfidenceMap(x.Confidence),
		SourceURL:      &x.SourceURL,
	}
	if x.Summary != "" {
		temp.Summary = &x.Summary
	}

	created, err := e.staging.Upsert(ctx, temp)
	if err != nil {
		return false, fmt.Errorf("stage candidate: %w", err)
	}

	if created {
		e.metrics.RecordStaged("created")
		e.publisher.PublishAsync(events.NewOpportunityStaged(temp.OrgID, temp.ID, x.SourceURL))
	} else {
		e.metrics.RecordStaged("merged")
	}
	return created, nil
}

// Refresh re-extracts a staged record's source page and merges the new
// payload in without discarding keys absent from the refresh.
func (e *Executor) Refresh(ctx context.Context, temp *models.TempOpportunity) error {
	if temp.SourceURL == nil || *temp.SourceURL == "" {
		return fmt.Errorf("temp opportunity %s has no source url", temp.ID)
	}

	page, err := e.fetcher.Fetch(ctx, *temp.SourceURL)
	if err != nil {
		return fmt.Errorf("refresh fetch %s: %w", *temp.SourceURL, err)
	}
	if page.HTTPStatus >= http.StatusBadRequest {
		return fmt.Errorf("refresh fetch %s: HTTP %d", *temp.SourceURL, page.HTTPStatus)
	}

	extraction, err := e.extractor.ExtractPage(ctx, page.Body, *temp.SourceURL)
	if err != nil {
		return fmt.Errorf("refresh extract: %w", err)
	}

	if err := e.staging.MergePayload(ctx, temp.OrgID, temp.TempIdentifier,
		models.JSONMap(extraction.Payload()), models.ConfidenceMap(extraction.Confidence)); err != nil {
		return fmt.Errorf("refresh merge: %w", err)
	}

	e.metrics.RecordStaged("merged")
	return nil
}

func (e *Executor) recordFailure(ctx context.Context, agent *models.Agent, source *models.Source, pageURL, msg string, httpStatus *int) {
	e.insertHistory(ctx, agent, source, pageURL, HashURL(pageURL), models.ScrapeStatusFailed, httpStatus, nil, msg)
}

func (e *Executor) insertHistory(
	ctx context.Context,
	agent *models.Agent,
	source *models.Source,
	pageURL, urlHash, status string,
	httpStatus, contentLength *int,
	errorMessage string,
) {
	h := &models.ScrapeHistory{
		AgentID:       agent.ID,
		SourceID:      source.ID,
		URL:           pageURL,
		URLHash:       urlHash,
		Status:        status,
		HTTPStatus:    httpStatus,
		ContentLength: contentLength,
		ScrapedAt:     e.now(),
	}
	if errorMessage != "" {
		h.ErrorMessage = &errorMessage
	}

	// History is audit trail; losing a row must not fail the pass.
	if err := e.history.Insert(ctx, h); err != nil {
		e.logger.Error("insert scrape history failed",
			logger.String("url", pageURL),
			logger.Error(err),
		)
	}
}
