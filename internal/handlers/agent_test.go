package handlers_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amar74/n-be-sub001/internal/handlers"
	"github.com/amar74/n-be-sub001/internal/identity"
	"github.com/amar74/n-be-sub001/internal/logger"
	"github.com/amar74/n-be-sub001/internal/models"
	"github.com/amar74/n-be-sub001/internal/repository"
	"github.com/amar74/n-be-sub001/internal/scheduler"
)

type fakeTrigger struct {
	err       error
	triggered []string
}

func (f *fakeTrigger) TriggerAsync(agent *models.Agent) error {
	if f.err != nil {
		return f.err
	}
	f.triggered = append(f.triggered, agent.ID)
	return nil
}

func newAgentRouter(t *testing.T, trigger handlers.RunTrigger) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := repository.NewAgentRepository(db, logger.NewNop())
	runs := repository.NewAgentRunRepository(db, logger.NewNop())
	handler := handlers.NewAgentHandler(repo, runs, trigger, logger.NewNop())

	gin.SetMode(gin.TestMode)
	router := gin.New()
	v1 := router.Group("/api/v1")
	v1.Use(identity.Middleware())
	v1.POST("/agents", handler.Create)
	v1.POST("/agents/:id/run", handler.TriggerRun)
	v1.GET("/agents/:id/runs", handler.ListRuns)
	return router, mock
}

func agentRows(agent *models.Agent) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "org_id", "source_id", "name", "status", "frequency",
		"consecutive_fails", "last_run_at", "next_run_at", "created_at", "updated_at",
	}).AddRow(
		agent.ID, agent.OrgID, agent.SourceID, agent.Name, agent.Status,
		agent.Frequency, agent.ConsecutiveFails, agent.LastRunAt, agent.NextRunAt,
		agent.CreatedAt, agent.UpdatedAt,
	)
}

func activeAgent() *models.Agent {
	return &models.Agent{
		ID:        "agent-1",
		OrgID:     "org-1",
		SourceID:  "source-1",
		Name:      "city-portal",
		Status:    models.AgentStatusActive,
		Frequency: models.FrequencyDaily,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
}

func TestCreateAgentRequiresSource(t *testing.T) {
	router, _ := newAgentRouter(t, &fakeTrigger{})

	w := doJSON(router, http.MethodPost, "/api/v1/agents",
		gin.H{"name": "no-source", "frequency": "daily"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCreateAgentRejectsUnknownFrequency(t *testing.T) {
	router, _ := newAgentRouter(t, &fakeTrigger{})

	w := doJSON(router, http.MethodPost, "/api/v1/agents",
		gin.H{"name": "bad", "source_id": "source-1", "frequency": "fortnightly"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestTriggerRunStartsAgent(t *testing.T) {
	trigger := &fakeTrigger{}
	router, mock := newAgentRouter(t, trigger)

	mock.ExpectQuery("FROM agents").WillReturnRows(agentRows(activeAgent()))

	w := doJSON(router, http.MethodPost, "/api/v1/agents/agent-1/run", nil)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, []string{"agent-1"}, trigger.triggered)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTriggerRunConflictWhileRunning(t *testing.T) {
	trigger := &fakeTrigger{err: fmt.Errorf("agent agent-1: %w", scheduler.ErrRunInProgress)}
	router, mock := newAgentRouter(t, trigger)

	mock.ExpectQuery("FROM agents").WillReturnRows(agentRows(activeAgent()))

	w := doJSON(router, http.MethodPost, "/api/v1/agents/agent-1/run", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTriggerRunUnknownAgent(t *testing.T) {
	router, mock := newAgentRouter(t, &fakeTrigger{})

	mock.ExpectQuery("FROM agents").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	w := doJSON(router, http.MethodPost, "/api/v1/agents/agent-9/run", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListRunsScopedThroughAgent(t *testing.T) {
	router, mock := newAgentRouter(t, &fakeTrigger{})

	mock.ExpectQuery("FROM agents").WillReturnRows(agentRows(activeAgent()))
	mock.ExpectQuery("FROM agent_runs").WillReturnRows(sqlmock.NewRows([]string{
		"id", "agent_id", "status", "started_at", "completed_at",
		"pages_scraped", "pages_skipped", "opportunities_found", "error_message",
	}).AddRow("run-1", "agent-1", models.RunStatusCompleted, time.Now(), nil, 5, 2, 3, nil))

	w := doJSON(router, http.MethodGet, "/api/v1/agents/agent-1/runs", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Runs  []models.AgentRun `json:"runs"`
		Count int               `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "run-1", resp.Runs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
