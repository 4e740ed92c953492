package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amar74/n-be-sub001/internal/logger"
	"github.com/amar74/n-be-sub001/internal/models"
	"github.com/amar74/n-be-sub001/internal/scrape"
)

type fakeAgentStore struct {
	mu        sync.Mutex
	due       []models.Agent
	claimed   map[string]time.Time
	successes []string
	failures  []string
	claimErr  error
}

func (f *fakeAgentStore) GetDue(_ context.Context, _ time.Time, _ int) ([]models.Agent, error) {
	return f.due, nil
}

func (f *fakeAgentStore) ClaimDue(_ context.Context, id string, _, nextRun time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return false, f.claimErr
	}
	if f.claimed == nil {
		f.claimed = make(map[string]time.Time)
	}
	if _, taken := f.claimed[id]; taken {
		return false, nil
	}
	f.claimed[id] = nextRun
	return true, nil
}

func (f *fakeAgentStore) RecordSuccess(_ context.Context, id string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.successes = append(f.successes, id)
	return nil
}

func (f *fakeAgentStore) RecordFailure(_ context.Context, id string, _ time.Time, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures = append(f.failures, id)
	return nil
}

type fakeRunStore struct {
	mu        sync.Mutex
	started   []string
	completed []string
	failed    map[string]string
}

func (f *fakeRunStore) Start(_ context.Context, agentID string) (*models.AgentRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, agentID)
	return &models.AgentRun{ID: uuid.New().String(), AgentID: agentID, Status: models.RunStatusRunning, StartedAt: time.Now()}, nil
}

func (f *fakeRunStore) Complete(_ context.Context, runID string, _, _, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, runID)
	return nil
}

func (f *fakeRunStore) Fail(_ context.Context, runID, msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failed == nil {
		f.failed = make(map[string]string)
	}
	f.failed[runID] = msg
	return nil
}

type fakeSourceStore struct {
	mu      sync.Mutex
	sources map[string]*models.Source
	touched []string
}

func (f *fakeSourceStore) GetByID(_ context.Context, _, id string) (*models.Source, error) {
	if src, ok := f.sources[id]; ok {
		return src, nil
	}
	return nil, errors.New("source not found")
}

func (f *fakeSourceStore) TouchLastScraped(_ context.Context, id string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.touched = append(f.touched, id)
	return nil
}

type fakeRunner struct {
	mu      sync.Mutex
	runs    []string
	stats   scrape.Stats
	errFor  map[string]error
	block   chan struct{} // when set, Run blocks until closed
	started chan string
}

func (f *fakeRunner) Run(_ context.Context, agent *models.Agent, _ *models.Source) (scrape.Stats, error) {
	f.mu.Lock()
	f.runs = append(f.runs, agent.ID)
	f.mu.Unlock()

	if f.started != nil {
		f.started <- agent.ID
	}
	if f.block != nil {
		<-f.block
	}
	if err, ok := f.errFor[agent.ID]; ok {
		return scrape.Stats{}, err
	}
	return f.stats, nil
}

func (f *fakeRunner) runCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.runs)
}

func dueAgent(id string) models.Agent {
	return models.Agent{
		ID:        id,
		OrgID:     "org-1",
		SourceID:  "source-" + id,
		Status:    models.AgentStatusActive,
		Frequency: models.FrequencyDaily,
	}
}

func newTestScheduler(agents *fakeAgentStore, runs *fakeRunStore, sources *fakeSourceStore, runner *fakeRunner) *Scheduler {
	return New(Config{PollInterval: time.Hour, MaxConsecutiveFails: 3},
		agents, runs, sources, runner, nil, nil, logger.NewNop())
}

func sourcesFor(agents ...models.Agent) *fakeSourceStore {
	store := &fakeSourceStore{sources: make(map[string]*models.Source)}
	for _, a := range agents {
		store.sources[a.SourceID] = &models.Source{ID: a.SourceID, OrgID: a.OrgID, URL: "https://example.com"}
	}
	return store
}

func TestTickRunsEachDueAgentOnce(t *testing.T) {
	a1, a2 := dueAgent("a1"), dueAgent("a2")
	agents := &fakeAgentStore{due: []models.Agent{a1, a2}}
	runs := &fakeRunStore{}
	runner := &fakeRunner{stats: scrape.Stats{PagesScraped: 2, NewOpportunities: 1}}
	sources := sourcesFor(a1, a2)
	s := newTestScheduler(agents, runs, sources, runner)

	s.Tick(context.Background())
	s.wg.Wait()

	assert.Equal(t, 2, runner.runCount())
	assert.ElementsMatch(t, []string{"a1", "a2"}, runs.started)
	assert.Len(t, runs.completed, 2)
	assert.ElementsMatch(t, []string{"a1", "a2"}, agents.successes)
	assert.ElementsMatch(t, []string{"source-a1", "source-a2"}, sources.touched)
}

func TestTickSecondPassDoesNotDuplicateClaims(t *testing.T) {
	a1 := dueAgent("a1")
	agents := &fakeAgentStore{due: []models.Agent{a1}}
	runs := &fakeRunStore{}
	runner := &fakeRunner{}
	s := newTestScheduler(agents, runs, sourcesFor(a1), runner)

	// The due list is stale on the second tick, but the claim is gone.
	s.Tick(context.Background())
	s.Tick(context.Background())
	s.wg.Wait()

	assert.Equal(t, 1, runner.runCount(), "exactly one run per due interval")
}

func TestTickAgentFailureIsIsolated(t *testing.T) {
	a1, a2 := dueAgent("a1"), dueAgent("a2")
	agents := &fakeAgentStore{due: []models.Agent{a1, a2}}
	runs := &fakeRunStore{}
	runner := &fakeRunner{errFor: map[string]error{"a1": errors.New("landing page unreachable")}}
	s := newTestScheduler(agents, runs, sourcesFor(a1, a2), runner)

	s.Tick(context.Background())
	s.wg.Wait()

	assert.Equal(t, []string{"a1"}, agents.failures)
	assert.Equal(t, []string{"a2"}, agents.successes)
	require.Len(t, runs.failed, 1)
	for _, msg := range runs.failed {
		assert.Contains(t, msg, "landing page unreachable")
	}
}

func TestTickUnknownFrequencySkipped(t *testing.T) {
	bad := dueAgent("a1")
	bad.Frequency = "fortnightly"
	agents := &fakeAgentStore{due: []models.Agent{bad}}
	runner := &fakeRunner{}
	s := newTestScheduler(agents, &fakeRunStore{}, sourcesFor(bad), runner)

	s.Tick(context.Background())
	s.wg.Wait()

	assert.Zero(t, runner.runCount())
	assert.Empty(t, agents.claimed)
}

func TestTriggerNowRefusedWhileRunning(t *testing.T) {
	a1 := dueAgent("a1")
	runner := &fakeRunner{
		block:   make(chan struct{}),
		started: make(chan string, 1),
	}
	s := newTestScheduler(&fakeAgentStore{}, &fakeRunStore{}, sourcesFor(a1), runner)

	done := make(chan error, 1)
	go func() {
		done <- s.TriggerNow(context.Background(), &a1)
	}()
	<-runner.started

	err := s.TriggerNow(context.Background(), &a1)
	assert.ErrorIs(t, err, ErrRunInProgress)

	close(runner.block)
	require.NoError(t, <-done)

	// Once the first run finished, the agent can run again.
	runner.block = nil
	assert.NoError(t, s.TriggerNow(context.Background(), &a1))
}

func TestSourceResolutionFailureFailsTheRun(t *testing.T) {
	a1 := dueAgent("a1")
	agents := &fakeAgentStore{due: []models.Agent{a1}}
	runs := &fakeRunStore{}
	s := newTestScheduler(agents, runs, &fakeSourceStore{}, &fakeRunner{})

	s.Tick(context.Background())
	s.wg.Wait()

	require.Len(t, runs.failed, 1)
	assert.Equal(t, []string{"a1"}, agents.failures)
}

func TestNextRunAt(t *testing.T) {
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	next, err := nextRunAt(start, models.FrequencyDaily)
	require.NoError(t, err)
	assert.Equal(t, start.Add(24*time.Hour), next)

	_, err = nextRunAt(start, "sometimes")
	assert.ErrorIs(t, err, models.ErrUnknownFrequency)
}
