package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/amar74/n-be-sub001/internal/logger"
	"github.com/amar74/n-be-sub001/internal/models"
)

const agentColumns = `id, org_id, source_id, name, status, frequency,
	       consecutive_fails, last_run_at, next_run_at, created_at, updated_at`

type AgentRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewAgentRepository(db *sql.DB, log logger.Logger) *AgentRepository {
	return &AgentRepository{
		db:     db,
		logger: log,
	}
}

func (r *AgentRepository) Create(ctx context.Context, agent *models.Agent) error {
	agent.ID = uuid.New().String()
	agent.CreatedAt = time.Now()
	agent.UpdatedAt = time.Now()
	if agent.Status == "" {
		agent.Status = models.AgentStatusActive
	}
	// A fresh agent is due immediately.
	if agent.NextRunAt == nil {
		now := time.Now()
		agent.NextRunAt = &now
	}

	query := `
		INSERT INTO agents (
			id, org_id, source_id, name, status, frequency,
			consecutive_fails, next_run_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx,
		query,
		agent.ID,
		agent.OrgID,
		agent.SourceID,
		agent.Name,
		agent.Status,
		agent.Frequency,
		agent.ConsecutiveFails,
		agent.NextRunAt,
		agent.CreatedAt,
		agent.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("insert agent: %w", err)
	}

	return nil
}

func (r *AgentRepository) GetByID(ctx context.Context, orgID, id string) (*models.Agent, error) {
	query := `
		SELECT ` + agentColumns + `
		FROM agents
		WHERE id = $1 AND org_id = $2
	`

	agent, err := scanAgent(r.db.QueryRowContext(ctx, query, id, orgID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("agent %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query agent: %w", err)
	}

	return agent, nil
}

// Get loads an agent without org scoping, for scheduler internals.
func (r *AgentRepository) Get(ctx context.Context, id string) (*models.Agent, error) {
	query := `
		SELECT ` + agentColumns + `
		FROM agents
		WHERE id = $1
	`

	agent, err := scanAgent(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("agent %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query agent: %w", err)
	}

	return agent, nil
}

// AgentListFilter holds pagination and filter params for agent listing.
type AgentListFilter struct {
	Limit     int
	Offset    int
	SortBy    string // name, status, frequency, next_run_at, created_at
	SortOrder string // asc, desc
	Status    string // empty = all
	SourceID  string // empty = all
}

func (r *AgentRepository) ListPaginated(ctx context.Context, orgID string, filter AgentListFilter) ([]models.Agent, error) {
	whereClause, whereArgs := buildAgentWhere(orgID, filter)
	orderClause := buildAgentOrder(filter)
	limitPlaceholder := strconv.Itoa(len(whereArgs) + 1)
	offsetPlaceholder := strconv.Itoa(len(whereArgs) + 2)
	// #nosec G202 -- column names come from a whitelist
	query := `
		SELECT ` + agentColumns + `
		FROM agents
		WHERE ` + whereClause + orderClause + `
		LIMIT $` + limitPlaceholder + ` OFFSET $` + offsetPlaceholder

	args := append(append([]any{}, whereArgs...), filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query agents: %w", err)
	}
	defer rows.Close()

	return scanAgentRows(rows)
}

func (r *AgentRepository) Count(ctx context.Context, orgID string, filter AgentListFilter) (int, error) {
	whereClause, args := buildAgentWhere(orgID, filter)
	query := `SELECT COUNT(*) FROM agents WHERE ` + whereClause

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count agents: %w", err)
	}
	return count, nil
}

func buildAgentWhere(orgID string, filter AgentListFilter) (whereClause string, args []any) {
	clauses := []string{"org_id = $1"}
	args = []any{orgID}
	pos := 2

	if filter.Status != "" {
		clauses = append(clauses, fmt.Sprintf("status = $%d", pos))
		args = append(args, filter.Status)
		pos++
	}
	if filter.SourceID != "" {
		clauses = append(clauses, fmt.Sprintf("source_id = $%d", pos))
		args = append(args, filter.SourceID)
	}

	return strings.Join(clauses, " AND "), args
}

func buildAgentOrder(filter AgentListFilter) string {
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "name"
	}
	validSort := map[string]bool{
		"name": true, "status": true, "frequency": true, "next_run_at": true, "created_at": true,
	}
	if !validSort[sortBy] {
		sortBy = "name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	return fmt.Sprintf(" ORDER BY %s %s", sortBy, order)
}

func scanAgent(row rowScanner) (*models.Agent, error) {
	var agent models.Agent
	err := row.Scan(
		&agent.ID,
		&agent.OrgID,
		&agent.SourceID,
		&agent.Name,
		&agent.Status,
		&agent.Frequency,
		&agent.ConsecutiveFails,
		&agent.LastRunAt,
		&agent.NextRunAt,
		&agent.CreatedAt,
		&agent.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &agent, nil
}

func scanAgentRows(rows *sql.Rows) ([]models.Agent, error) {
	agents := make([]models.Agent, 0)
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agent: %w", err)
		}
		agents = append(agents, *agent)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agents: %w", err)
	}
	return agents, nil
}

func (r *AgentRepository) Update(ctx context.Context, agent *models.Agent) error {
	agent.UpdatedAt = time.Now()

	query := `
		UPDATE agents
		SET name = $3, status = $4, frequency = $5, updated_at = $6
		WHERE id = $1 AND org_id = $2
	`

	result, err := r.db.ExecContext(ctx,
		query,
		agent.ID,
		agent.OrgID,
		agent.Name,
		agent.Status,
		agent.Frequency,
		agent.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("update agent: %w", err)
	}

	return expectOneRow(result, "agent", agent.ID)
}

func (r *AgentRepository) Delete(ctx context.Context, orgID, id string) error {
	query := `DELETE FROM agents WHERE id = $1 AND org_id = $2`

	result, err := r.db.ExecContext(ctx, query, id, orgID)
	if err != nil {
		return fmt.Errorf("delete agent: %w", err)
	}

	return expectOneRow(result, "agent", id)
}

// GetDue returns active agents whose next_run_at has arrived.
func (r *AgentRepository) GetDue(ctx context.Context, now time.Time, limit int) ([]models.Agent, error) {
	query := `
		SELECT ` + agentColumns + `
		FROM agents
		WHERE status = $1 AND next_run_at IS NOT NULL AND next_run_at <= $2
		ORDER BY next_run_at ASC
		LIMIT $3
	`

	rows, err := r.db.QueryContext(ctx, query, models.AgentStatusActive, now, limit)
	if err != nil {
		return nil, fmt.Errorf("query due agents: %w", err)
	}
	defer rows.Close()

	return scanAgentRows(rows)
}

// ClaimDue advances next_run_at past the due window so exactly one scheduler
// tick wins the run. Returns false when another tick claimed it first.
func (r *AgentRepository) ClaimDue(ctx context.Context, id string, now, nextRun time.Time) (bool, error) {
	query := `
		UPDATE agents
		SET next_run_at = $3, updated_at = $4
		WHERE id = $1 AND status = $2 AND next_run_at IS NOT NULL AND next_run_at <= $4
	`

	result, err := r.db.ExecContext(ctx, query, id, models.AgentStatusActive, nextRun, now)
	if err != nil {
		return false, fmt.Errorf("claim agent: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}

	return rowsAffected == 1, nil
}

// RecordSuccess clears the failure streak after a completed run.
func (r *AgentRepository) RecordSuccess(ctx context.Context, id string, ranAt time.Time) error {
	query := `
		UPDATE agents
		SET last_run_at = $2, consecutive_fails = 0, updated_at = $3
		WHERE id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, id, ranAt, time.Now()); err != nil {
		return fmt.Errorf("record agent success: %w", err)
	}
	return nil
}

// RecordFailure bumps the failure streak; at maxFails the agent flips to
// error status and leaves the schedule.
func (r *AgentRepository) RecordFailure(ctx context.Context, id string, ranAt time.Time, maxFails int) error {
	query := `
		UPDATE agents
		SET last_run_at = $2,
		    consecutive_fails = consecutive_fails + 1,
		    status = CASE WHEN consecutive_fails + 1 >= $3 THEN $4 ELSE status END,
		    updated_at = $5
		WHERE id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, id, ranAt, maxFails, models.AgentStatusError, time.Now()); err != nil {
		return fmt.Errorf("record agent failure: %w", err)
	}
	return nil
}
