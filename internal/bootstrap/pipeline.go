package bootstrap

import (
	"database/sql"

	"github.com/amar74/n-be-sub001/internal/ai"
	"github.com/amar74/n-be-sub001/internal/config"
	"github.com/amar74/n-be-sub001/internal/events"
	"github.com/amar74/n-be-sub001/internal/extract"
	"github.com/amar74/n-be-sub001/internal/fetch"
	"github.com/amar74/n-be-sub001/internal/importer"
	"github.com/amar74/n-be-sub001/internal/logger"
	"github.com/amar74/n-be-sub001/internal/metadata"
	"github.com/amar74/n-be-sub001/internal/metrics"
	"github.com/amar74/n-be-sub001/internal/opportunity"
	"github.com/amar74/n-be-sub001/internal/promotion"
	"github.com/amar74/n-be-sub001/internal/repository"
	"github.com/amar74/n-be-sub001/internal/scheduler"
	"github.com/amar74/n-be-sub001/internal/scrape"
)

// Pipeline holds every wired component the HTTP layer and scheduler need.
type Pipeline struct {
	Sources           *repository.SourceRepository
	Agents            *repository.AgentRepository
	AgentRuns         *repository.AgentRunRepository
	TempOpportunities *repository.TempOpportunityRepository

	Fetcher   fetch.Service
	Extractor *extract.Extractor
	Executor  *scrape.Executor
	Scheduler *scheduler.Scheduler
	Promoter  *promotion.Engine
	Importer  *importer.Importer
	Suggester *metadata.Suggester

	Metrics *metrics.Metrics
}

// BuildPipeline constructs repositories, collaborators, and engines.
// publisher and metrics may be nil; every consumer tolerates that.
func BuildPipeline(
	cfg *config.Config,
	db *sql.DB,
	publisher *events.Publisher,
	m *metrics.Metrics,
	log logger.Logger,
) *Pipeline {
	sources := repository.NewSourceRepository(db, log)
	agents := repository.NewAgentRepository(db, log)
	agentRuns := repository.NewAgentRunRepository(db, log)
	history := repository.NewScrapeHistoryRepository(db, log)
	temps := repository.NewTempOpportunityRepository(db, log)

	fetcher := fetch.NewHTTPService(fetch.Config{
		Timeout:      cfg.Scraper.FetchTimeout,
		UserAgent:    cfg.Scraper.UserAgent,
		HostInterval: cfg.Scraper.HostRateInterval,
	}, log)

	var completer ai.Completer
	if cfg.AI.Enabled {
		completer = ai.NewAnthropicCompleter(ai.AnthropicConfig{
			APIKey:    cfg.AI.APIKey,
			Model:     cfg.AI.Model,
			MaxTokens: cfg.AI.MaxTokens,
		}, log)
	} else {
		log.Info("model summarization disabled; extraction runs rules only")
	}

	extractor := extract.New(extract.Config{
		ExcerptRunes:  cfg.Scraper.ExcerptRunes,
		MaxChildLinks: cfg.Scraper.MaxChildLinks,
	}, completer, log, m)

	executor := scrape.NewExecutor(scrape.Config{
		FreshnessWindow: cfg.Scraper.FreshnessWindow,
	}, fetcher, extractor, history, temps, publisher, m, log)

	sched := scheduler.New(scheduler.Config{
		PollInterval:        cfg.Scheduler.PollInterval,
		MaxConsecutiveFails: cfg.Scheduler.MaxConsecutiveFails,
	}, agents, agentRuns, sources, executor, publisher, m, log)

	promoter := promotion.New(temps, opportunity.NewPostgresAggregate(log), publisher, m, log)

	return &Pipeline{
		Sources:           sources,
		Agents:            agents,
		AgentRuns:         agentRuns,
		TempOpportunities: temps,
		Fetcher:           fetcher,
		Extractor:         extractor,
		Executor:          executor,
		Scheduler:         sched,
		Promoter:          promoter,
		Importer:          importer.New(sources, log),
		Suggester:         metadata.NewSuggester(fetcher, log),
		Metrics:           m,
	}
}
