// Package scheduler polls for due agents and runs each one as an independent
// task. One agent never has two runs in flight; one agent's failure never
// touches a sibling's schedule.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amar74/n-be-sub001/internal/events"
	"github.com/amar74/n-be-sub001/internal/logger"
	"github.com/amar74/n-be-sub001/internal/metrics"
	"github.com/amar74/n-be-sub001/internal/models"
	"github.com/amar74/n-be-sub001/internal/scrape"
)

// ErrRunInProgress is returned when a manual trigger hits an agent that is
// already executing.
var ErrRunInProgress = errors.New("agent run already in progress")

// dueBatchLimit caps how many due agents one tick picks up.
const dueBatchLimit = 50

// AgentStore is the scheduler's view of agent persistence.
type AgentStore interface {
	GetDue(ctx context.Context, now time.Time, limit int) ([]models.Agent, error)
	ClaimDue(ctx context.Context, id string, now, nextRun time.Time) (bool, error)
	RecordSuccess(ctx context.Context, id string, ranAt time.Time) error
	RecordFailure(ctx context.Context, id string, ranAt time.Time, maxFails int) error
}

// RunStore records agent run outcomes.
type RunStore interface {
	Start(ctx context.Context, agentID string) (*models.AgentRun, error)
	Complete(ctx context.Context, runID string, scraped, skipped, found int) error
	Fail(ctx context.Context, runID, errorMessage string) error
}

// SourceStore resolves an agent's source.
type SourceStore interface {
	GetByID(ctx context.Context, orgID, id string) (*models.Source, error)
	TouchLastScraped(ctx context.Context, id string, at time.Time) error
}

// Runner executes one scrape pass for an agent.
type Runner interface {
	Run(ctx context.Context, agent *models.Agent, source *models.Source) (scrape.Stats, error)
}

// Config controls the due-poll loop.
type Config struct {
	PollInterval time.Duration
	// MaxConsecutiveFails flips an agent to error status and off the
	// schedule once its failure streak reaches it.
	MaxConsecutiveFails int
}

// Scheduler owns the poll loop and the per-agent concurrency guard.
type Scheduler struct {
	cfg       Config
	agents    AgentStore
	runs      RunStore
	sources   SourceStore
	runner    Runner
	publisher *events.Publisher
	metrics   *metrics.Metrics
	logger    logger.Logger
	now       func() time.Time

	mu         sync.Mutex
	activeRuns map[string]bool
	wg         sync.WaitGroup
	cancel     context.CancelFunc
}

// New creates a scheduler. publisher and metrics may be nil.
func New(
	cfg Config,
	agents AgentStore,
	runs RunStore,
	sources SourceStore,
	runner Runner,
	publisher *events.Publisher,
	m *metrics.Metrics,
	log logger.Logger,
) *Scheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 30 * time.Second
	}
	if cfg.MaxConsecutiveFails <= 0 {
		cfg.MaxConsecutiveFails = 3
	}
	return &Scheduler{
		cfg:        cfg,
		agents:     agents,
		runs:       runs,
		sources:    sources,
		runner:     runner,
		publisher:  publisher,
		metrics:    m,
		logger:     log,
		now:        time.Now,
		activeRuns: make(map[string]bool),
	}
}

// Start launches the poll loop. It returns immediately; Stop waits for
// in-flight runs.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx)
	}()

	s.logger.Info("scheduler started",
		logger.Duration("poll_interval", s.cfg.PollInterval),
	)
}

// Stop cancels the loop and waits for in-flight runs to finish. In-flight
// runs are not cancelled; they complete or fail on their own.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Tick runs one scheduling pass: find due agents, claim each, execute
// claimed ones concurrently. Exported so a pass can be driven directly.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.now()

	due, err := s.agents.GetDue(ctx, now, dueBatchLimit)
	if err != nil {
		s.logger.Error("due agent query failed", logger.Error(err))
		return
	}

	for i := range due {
		agent := due[i]

		nextRun, err := nextRunAt(now, agent.Frequency)
		if err != nil {
			s.logger.Error("agent has unknown frequency, skipping",
				logger.String("agent_id", agent.ID),
				logger.String("frequency", agent.Frequency),
			)
			continue
		}

		// The claim advances next_run_at, so a concurrent tick (or a
		// second instance) loses cleanly.
		claimed, err := s.agents.ClaimDue(ctx, agent.ID, now, nextRun)
		if err != nil {
			s.logger.Error("agent claim failed",
				logger.String("agent_id", agent.ID),
				logger.Error(err),
			)
			continue
		}
		if !claimed {
			continue
		}

		if !s.markActive(agent.ID) {
			// Still executing its previous run; next_run_at has already
			// moved forward, so it will be retried on its new schedule.
			continue
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.markIdle(agent.ID)
			s.execute(ctx, &agent)
		}()
	}
}

// TriggerNow runs one agent immediately, honoring the same one-run-per-agent
// guard as the schedule.
func (s *Scheduler) TriggerNow(ctx context.Context, agent *models.Agent) error {
	if !s.markActive(agent.ID) {
		return fmt.Errorf("agent %s: %w", agent.ID, ErrRunInProgress)
	}
	defer s.markIdle(agent.ID)

	s.execute(ctx, agent)
	return nil
}

// TriggerAsync starts an immediate run in the background. The returned error
// reports only guard refusal; run outcomes land on the run record. The run
// outlives the caller's request, so it carries its own context.
func (s *Scheduler) TriggerAsync(agent *models.Agent) error {
	if !s.markActive(agent.ID) {
		return fmt.Errorf("agent %s: %w", agent.ID, ErrRunInProgress)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.markIdle(agent.ID)
		s.execute(context.Background(), agent)
	}()
	return nil
}

func (s *Scheduler) markActive(agentID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeRuns[agentID] {
		return false
	}
	s.activeRuns[agentID] = true
	return true
}

func (s *Scheduler) markIdle(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.activeRuns, agentID)
}

// execute performs one run: run record, scrape pass, outcome bookkeeping.
// All failures are recorded, never propagated.
func (s *Scheduler) execute(ctx context.Context, agent *models.Agent) {
	started := s.now()

	run, err := s.runs.Start(ctx, agent.ID)
	if err != nil {
		s.logger.Error("agent run record creation failed",
			logger.String("agent_id", agent.ID),
			logger.Error(err),
		)
		return
	}

	s.metrics.RecordRunStarted()
	s.logger.Info("agent run started",
		logger.String("agent_id", agent.ID),
		logger.String("run_id", run.ID),
	)

	source, err := s.sources.GetByID(ctx, agent.OrgID, agent.SourceID)
	if err != nil {
		s.finishFailed(ctx, agent, run, started, fmt.Errorf("resolve source: %w", err))
		return
	}

	stats, err := s.runner.Run(ctx, agent, source)
	if err != nil {
		s.finishFailed(ctx, agent, run, started, err)
		return
	}

	if err := s.runs.Complete(ctx, run.ID, stats.PagesScraped, stats.PagesSkipped, stats.NewOpportunities); err != nil {
		s.logger.Error("agent run completion write failed",
			logger.String("run_id", run.ID),
			logger.Error(err),
		)
	}
	if err := s.agents.RecordSuccess(ctx, agent.ID, started); err != nil {
		s.logger.Error("agent success bookkeeping failed",
			logger.String("agent_id", agent.ID),
			logger.Error(err),
		)
	}
	if err := s.sources.TouchLastScraped(ctx, agent.SourceID, started); err != nil {
		s.logger.Error("source timestamp update failed",
			logger.String("source_id", agent.SourceID),
			logger.Error(err),
		)
	}

	s.metrics.RecordRunFinished(models.RunStatusCompleted, s.now().Sub(started).Seconds())
	s.publisher.PublishAsync(events.NewRunCompleted(agent.OrgID, agent.ID, run.ID, stats.NewOpportunities))

	s.logger.Info("agent run completed",
		logger.String("agent_id", agent.ID),
		logger.String("run_id", run.ID),
		logger.Int("pages_scraped", stats.PagesScraped),
		logger.Int("pages_skipped", stats.PagesSkipped),
		logger.Int("opportunities_found", stats.NewOpportunities),
	)
}

func (s *Scheduler) finishFailed(ctx context.Context, agent *models.Agent, run *models.AgentRun, started time.Time, runErr error) {
	if err := s.runs.Fail(ctx, run.ID, runErr.Error()); err != nil {
		s.logger.Error("agent run failure write failed",
			logger.String("run_id", run.ID),
			logger.Error(err),
		)
	}
	if err := s.agents.RecordFailure(ctx, agent.ID, started, s.cfg.MaxConsecutiveFails); err != nil {
		s.logger.Error("agent failure bookkeeping failed",
			logger.String("agent_id", agent.ID),
			logger.Error(err),
		)
	}

	s.metrics.RecordRunFinished(models.RunStatusFailed, s.now().Sub(started).Seconds())
	s.publisher.PublishAsync(events.NewRunFailed(agent.OrgID, agent.ID, run.ID, runErr.Error()))

	s.logger.Warn("agent run failed",
		logger.String("agent_id", agent.ID),
		logger.String("run_id", run.ID),
		logger.Error(runErr),
	)
}

// nextRunAt computes the next due time from the run start, not the finish,
// so slow runs do not drift the cadence.
func nextRunAt(start time.Time, frequency string) (time.Time, error) {
	interval, err := models.FrequencyInterval(frequency)
	if err != nil {
		return time.Time{}, err
	}
	return start.Add(interval), nil
}
