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
	"github.com/lib/pq"

	"github.com/amar74/n-be-sub001/internal/convert"
	"github.com/amar74/n-be-sub001/internal/logger"
	"github.com/amar74/n-be-sub001/internal/models"
)

const tempOppColumns = `id, org_id, agent_id, source_id, temp_identifier, title, summary,
	       status, raw_payload, confidence, risk_score, source_url,
	       reviewer_id, reviewer_notes, promoted_opportunity_id, created_at, updated_at`

// payloadProjection maps merged raw_payload keys back onto typed columns.
type payloadProjection struct {
	Title     string  `json:"title"`
	Summary   string  `json:"summary"`
	RiskScore float64 `json:"risk_score"`
	SourceURL string  `json:"source_url"`
}

type TempOpportunityRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewTempOpportunityRepository(db *sql.DB, log logger.Logger) *TempOpportunityRepository {
	return &TempOpportunityRepository{
		db:     db,
		logger: log,
	}
}

// Upsert inserts a staged record, or merges into the existing row when the
// organization already holds the temp identifier. Exactly one row survives a
// concurrent insert of the same identifier; the loser becomes a merge.
func (r *TempOpportunityRepository) Upsert(ctx context.Context, temp *models.TempOpportunity) (created bool, err error) {
	if err := r.insert(ctx, temp); err != nil {
		if !isUniqueViolation(err) {
			return false, err
		}
		r.logger.Debug("temp identifier exists, merging",
			logger.String("org_id", temp.OrgID),
			logger.String("temp_identifier", temp.TempIdentifier),
		)
		return false, r.MergePayload(ctx, temp.OrgID, temp.TempIdentifier, temp.RawPayload, temp.Confidence)
	}
	return true, nil
}

func (r *TempOpportunityRepository) insert(ctx context.Context, temp *models.TempOpportunity) error {
	temp.ID = uuid.New().String()
	temp.CreatedAt = time.Now()
	temp.UpdatedAt = time.Now()
	if temp.Status == "" {
		temp.Status = models.ReviewStatusPending
	}

	query := `
		INSERT INTO temp_opportunities (
			id, org_id, agent_id, source_id, temp_identifier, title, summary,
			status, raw_payload, confidence, risk_score, source_url,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := r.db.ExecContext(ctx,
		query,
		temp.ID,
		temp.OrgID,
		temp.AgentID,
		temp.SourceID,
		temp.TempIdentifier,
		temp.Title,
		temp.Summary,
		temp.Status,
		temp.RawPayload,
		temp.Confidence,
		temp.RiskScore,
		temp.SourceURL,
		temp.CreatedAt,
		temp.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return err
		}
		return fmt.Errorf("insert temp opportunity: %w", err)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505" // unique_violation
}

// MergePayload re-reads the row under lock and folds the incoming payload in
// non-destructively. Review state is never touched by a merge.
func (r *TempOpportunityRepository) MergePayload(ctx context.Context, orgID, tempIdentifier string, payload models.JSONMap, confidence models.ConfidenceMap) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.logger.Error("failed to rollback transaction", logger.Error(rbErr))
			}
		}
	}()

	query := `
		SELECT ` + tempOppColumns + `
		FROM temp_opportunities
		WHERE org_id = $1 AND temp_identifier = $2
		FOR UPDATE
	`

	existing, err := scanTempOpportunity(tx.QueryRowContext(ctx, query, orgID, tempIdentifier))
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("temp opportunity %s: %w", tempIdentifier, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("query temp opportunity: %w", err)
	}

	merged := models.MergeRawPayload(existing.RawPayload, payload)

	mergedConfidence := existing.Confidence
	if mergedConfidence == nil {
		mergedConfidence = models.ConfidenceMap{}
	}
	for field, score := range confidence {
		mergedConfidence[field] = score
	}

	var projected payloadProjection
	if decodeErr := convert.Decode(map[string]any(merged), &projected); decodeErr != nil {
		// A payload that cannot project leaves the typed columns alone.
		r.logger.Warn("payload projection failed",
			logger.String("temp_identifier", tempIdentifier),
			logger.Error(decodeErr),
		)
		projected = payloadProjection{
			Title: existing.Title,
		}
	}

	title := existing.Title
	if projected.Title != "" {
		title = projected.Title
	}
	summary := existing.Summary
	if projected.Summary != "" {
		summary = &projected.Summary
	}
	sourceURL := existing.SourceURL
	if projected.SourceURL != "" {
		sourceURL = &projected.SourceURL
	}
	riskScore := existing.RiskScore
	if projected.RiskScore != 0 {
		riskScore = &projected.RiskScore
	}

	update := `
		UPDATE temp_opportunities
		SET title = $2, summary = $3, raw_payload = $4, confidence = $5,
		    risk_score = $6, source_url = $7, updated_at = $8
		WHERE id = $1
	`

	if _, err = tx.ExecContext(ctx, update,
		existing.ID, title, summary, merged, mergedConfidence,
		riskScore, sourceURL, time.Now()); err != nil {
		return fmt.Errorf("merge temp opportunity: %w", err)
	}

	if commitErr := tx.Commit(); commitErr != nil {
		err = fmt.Errorf("commit transaction: %w", commitErr)
		return err
	}

	return nil
}

func (r *TempOpportunityRepository) GetByID(ctx context.Context, orgID, id string) (*models.TempOpportunity, error) {
	query := `
		SELECT ` + tempOppColumns + `
		FROM temp_opportunities
		WHERE id = $1 AND org_id = $2
	`

	temp, err := scanTempOpportunity(r.db.QueryRowContext(ctx, query, id, orgID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("temp opportunity %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query temp opportunity: %w", err)
	}

	return temp, nil
}

// GetForUpdate loads a staged record inside a transaction with a row lock.
// The promotion engine holds the lock for the whole promote.
func (r *TempOpportunityRepository) GetForUpdate(ctx context.Context, tx *sql.Tx, orgID, id string) (*models.TempOpportunity, error) {
	query := `
		SELECT ` + tempOppColumns + `
		FROM temp_opportunities
		WHERE id = $1 AND org_id = $2
		FOR UPDATE
	`

	temp, err := scanTempOpportunity(tx.QueryRowContext(ctx, query, id, orgID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("temp opportunity %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query temp opportunity: %w", err)
	}

	return temp, nil
}

// TempOpportunityListFilter holds pagination and filter params.
type TempOpportunityListFilter struct {
	Limit     int
	Offset    int
	SortBy    string // title, status, risk_score, created_at, updated_at
	SortOrder string // asc, desc
	Status    string // empty = all
	AgentID   string // empty = all
}

func (r *TempOpportunityRepository) ListPaginated(ctx context.Context, orgID string, filter TempOpportunityListFilter) ([]models.TempOpportunity, error) {
	whereClause, whereArgs := buildTempOppWhere(orgID, filter)
	orderClause := buildTempOppOrder(filter)
	limitPlaceholder := strconv.Itoa(len(whereArgs) + 1)
	offsetPlaceholder := strconv.Itoa(len(whereArgs) + 2)
	// #nosec G202 -- column names come from a whitelist
	query := `
		SELECT ` + tempOppColumns + `
		FROM temp_opportunities
		WHERE ` + whereClause + orderClause + `
		LIMIT $` + limitPlaceholder + ` OFFSET $` + offsetPlaceholder

	args := append(append([]any{}, whereArgs...), filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query temp opportunities: %w", err)
	}
	defer rows.Close()

	temps := make([]models.TempOpportunity, 0)
	for rows.Next() {
		temp, scanErr := scanTempOpportunity(rows)
		if scanErr != nil {
			return nil, fmt.Errorf("scan temp opportunity: %w", scanErr)
		}
		temps = append(temps, *temp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate temp opportunities: %w", err)
	}

	return temps, nil
}

func (r *TempOpportunityRepository) Count(ctx context.Context, orgID string, filter TempOpportunityListFilter) (int, error) {
	whereClause, args := buildTempOppWhere(orgID, filter)
	query := `SELECT COUNT(*) FROM temp_opportunities WHERE ` + whereClause

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count temp opportunities: %w", err)
	}
	return count, nil
}

func buildTempOppWhere(orgID string, filter TempOpportunityListFilter) (whereClause string, args []any) {
	clauses := []string{"org_id = $1"}
	args = []any{orgID}
	pos := 2

	if filter.Status != "" {
		clauses = append(clauses, fmt.Sprintf("status = $%d", pos))
		args = append(args, filter.Status)
		pos++
	}
	if filter.AgentID != "" {
		clauses = append(clauses, fmt.Sprintf("agent_id = $%d", pos))
		args = append(args, filter.AgentID)
	}

	return strings.Join(clauses, " AND "), args
}

func buildTempOppOrder(filter TempOpportunityListFilter) string {
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	validSort := map[string]bool{
		"title": true, "status": true, "risk_score": true, "created_at": true, "updated_at": true,
	}
	if !validSort[sortBy] {
		sortBy = "created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s", sortBy, order)
}

func scanTempOpportunity(row rowScanner) (*models.TempOpportunity, error) {
	var temp models.TempOpportunity
	err := row.Scan(
		&temp.ID,
		&temp.OrgID,
		&temp.AgentID,
		&temp.SourceID,
		&temp.TempIdentifier,
		&temp.Title,
		&temp.Summary,
		&temp.Status,
		&temp.RawPayload,
		&temp.Confidence,
		&temp.RiskScore,
		&temp.SourceURL,
		&temp.ReviewerID,
		&temp.ReviewerNotes,
		&temp.PromotedOpportunityID,
		&temp.CreatedAt,
		&temp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &temp, nil
}

// UpdateReview applies a reviewed decision (approve/reject) with the acting
// reviewer and optional notes. The WHERE clause repeats the expected current
// status so a concurrent decision loses cleanly.
func (r *TempOpportunityRepository) UpdateReview(ctx context.Context, orgID, id, to string, reviewerID, notes *string) error {
	temp, err := r.GetByID(ctx, orgID, id)
	if err != nil {
		return err
	}

	if err := models.ValidateReviewTransition(temp.Status, to); err != nil {
		return err
	}

	query := `
		UPDATE temp_opportunities
		SET status = $3, reviewer_id = COALESCE($4, reviewer_id),
		    reviewer_notes = COALESCE($5, reviewer_notes), updated_at = $6
		WHERE id = $1 AND org_id = $2 AND status = $7
	`

	result, err := r.db.ExecContext(ctx, query, id, orgID, to, reviewerID, notes, time.Now(), temp.Status)
	if err != nil {
		return fmt.Errorf("update temp opportunity status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: status changed concurrently", models.ErrInvalidTransition)
	}

	return nil
}

// TempOpportunityEdits are the reviewer-editable fields of a staged record.
// Nil means "leave unchanged".
type TempOpportunityEdits struct {
	Title         *string  `json:"title"`
	Summary       *string  `json:"summary"`
	RiskScore     *float64 `json:"risk_score"`
	SourceURL     *string  `json:"source_url"`
	ReviewerNotes *string  `json:"reviewer_notes"`
}

// UpdateEditable applies reviewer edits under a row lock. Edited projected
// fields are mirrored into raw_payload under matching keys so promotion
// reads the reviewed values, not the original extraction. Terminal records
// refuse edits.
func (r *TempOpportunityRepository) UpdateEditable(ctx context.Context, orgID, id string, edits TempOpportunityEdits) (temp *models.TempOpportunity, err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.logger.Error("failed to rollback transaction", logger.Error(rbErr))
			}
		}
	}()

	temp, err = r.GetForUpdate(ctx, tx, orgID, id)
	if err != nil {
		return nil, err
	}
	if models.IsTerminalReviewStatus(temp.Status) {
		return nil, fmt.Errorf("%w: record is %s", models.ErrInvalidTransition, temp.Status)
	}

	payload := temp.RawPayload
	if payload == nil {
		payload = models.JSONMap{}
	}
	if edits.Title != nil {
		temp.Title = *edits.Title
		payload["title"] = *edits.Title
	}
	if edits.Summary != nil {
		temp.Summary = edits.Summary
		payload["summary"] = *edits.Summary
	}
	if edits.RiskScore != nil {
		temp.RiskScore = edits.RiskScore
		payload["risk_score"] = *edits.RiskScore
	}
	if edits.SourceURL != nil {
		temp.SourceURL = edits.SourceURL
		payload["source_url"] = *edits.SourceURL
	}
	if edits.ReviewerNotes != nil {
		temp.ReviewerNotes = edits.ReviewerNotes
	}
	temp.RawPayload = payload
	temp.UpdatedAt = time.Now()

	update := `
		UPDATE temp_opportunities
		SET title = $2, summary = $3, raw_payload = $4, risk_score = $5,
		    source_url = $6, reviewer_notes = $7, updated_at = $8
		WHERE id = $1
	`

	if _, err = tx.ExecContext(ctx, update,
		temp.ID, temp.Title, temp.Summary, temp.RawPayload,
		temp.RiskScore, temp.SourceURL, temp.ReviewerNotes, temp.UpdatedAt); err != nil {
		return nil, fmt.Errorf("update temp opportunity: %w", err)
	}

	if commitErr := tx.Commit(); commitErr != nil {
		err = fmt.Errorf("commit transaction: %w", commitErr)
		return nil, err
	}

	return temp, nil
}

// MarkPromotedTx flips a staged record to promoted inside the promotion
// transaction, linking the created opportunity and the acting reviewer.
func (r *TempOpportunityRepository) MarkPromotedTx(ctx context.Context, tx *sql.Tx, id, opportunityID string, reviewerID *string) error {
	query := `
		UPDATE temp_opportunities
		SET status = $2, promoted_opportunity_id = $3,
		    reviewer_id = COALESCE($4, reviewer_id), updated_at = $5
		WHERE id = $1
	`

	result, err := tx.ExecContext(ctx, query, id, models.ReviewStatusPromoted, opportunityID, reviewerID, time.Now())
	if err != nil {
		return fmt.Errorf("mark promoted: %w", err)
	}

	return expectOneRow(result, "temp opportunity", id)
}

func (r *TempOpportunityRepository) Delete(ctx context.Context, orgID, id string) error {
	query := `DELETE FROM temp_opportunities WHERE id = $1 AND org_id = $2`

	result, err := r.db.ExecContext(ctx, query, id, orgID)
	if err != nil {
		return fmt.Errorf("delete temp opportunity: %w", err)
	}

	return expectOneRow(result, "temp opportunity", id)
}

// BeginTx starts a transaction on the underlying database for callers that
// coordinate multi-repository writes.
func (r *TempOpportunityRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return tx, nil
}
