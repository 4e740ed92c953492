package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/amar74/n-be-sub001/internal/logger"
	"github.com/amar74/n-be-sub001/internal/models"
)

const agentRunColumns = `id, agent_id, status, started_at, completed_at,
	       pages_scraped, pages_skipped, opportunities_found, error_message`

type AgentRunRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewAgentRunRepository(db *sql.DB, log logger.Logger) *AgentRunRepository {
	return &AgentRunRepository{
		db:     db,
		logger: log,
	}
}

// Start inserts a running record before the agent executes.
func (r *AgentRunRepository) Start(ctx context.Context, agentID string) (*models.AgentRun, error) {
	run := &models.AgentRun{
		ID:        uuid.New().String(),
		AgentID:   agentID,
		Status:    models.RunStatusRunning,
		StartedAt: time.Now(),
	}

	query := `
		INSERT INTO agent_runs (id, agent_id, status, started_at)
		VALUES ($1, $2, $3, $4)
	`

	_, err := r.db.ExecContext(ctx, query, run.ID, run.AgentID, run.Status, run.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("insert agent run: %w", err)
	}

	return run, nil
}

// Complete finalizes a successful run with its counters.
func (r *AgentRunRepository) Complete(ctx context.Context, runID string, scraped, skipped, found int) error {
	query := `
		UPDATE agent_runs
		SET status = $2, completed_at = $3,
		    pages_scraped = $4, pages_skipped = $5, opportunities_found = $6
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		runID, models.RunStatusCompleted, time.Now(), scraped, skipped, found)
	if err != nil {
		return fmt.Errorf("complete agent run: %w", err)
	}

	return expectOneRow(result, "agent run", runID)
}

// Fail finalizes a failed run with the error message.
func (r *AgentRunRepository) Fail(ctx context.Context, runID, errorMessage string) error {
	query := `
		UPDATE agent_runs
		SET status = $2, completed_at = $3, error_message = $4
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		runID, models.RunStatusFailed, time.Now(), errorMessage)
	if err != nil {
		return fmt.Errorf("fail agent run: %w", err)
	}

	return expectOneRow(result, "agent run", runID)
}

// ListByAgent returns an agent's runs, newest first.
func (r *AgentRunRepository) ListByAgent(ctx context.Context, agentID string, limit int) ([]models.AgentRun, error) {
	query := `
		SELECT ` + agentRunColumns + `
		FROM agent_runs
		WHERE agent_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("query agent runs: %w", err)
	}
	defer rows.Close()

	runs := make([]models.AgentRun, 0)
	for rows.Next() {
		var run models.AgentRun
		scanErr := rows.Scan(
			&run.ID,
			&run.AgentID,
			&run.Status,
			&run.StartedAt,
			&run.CompletedAt,
			&run.PagesScraped,
			&run.PagesSkipped,
			&run.OpportunitiesFound,
			&run.ErrorMessage,
		)
		if scanErr != nil {
			return nil, fmt.Errorf("scan agent run: %w", scanErr)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agent runs: %w", err)
	}

	return runs, nil
}

// CountRunning reports how many runs are currently marked running for an
// agent. The scheduler uses this to refuse a second concurrent run.
func (r *AgentRunRepository) CountRunning(ctx context.Context, agentID string) (int, error) {
	query := `SELECT COUNT(*) FROM agent_runs WHERE agent_id = $1 AND status = $2`

	var count int
	if err := r.db.QueryRowContext(ctx, query, agentID, models.RunStatusRunning).Scan(&count); err != nil {
		return 0, fmt.Errorf("count running: %w", err)
	}
	return count, nil
}
