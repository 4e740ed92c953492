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

const sourceColumns = `id, org_id, name, url, description, frequency, status,
	       tags, last_scraped_at, created_by, created_at, updated_at`

type SourceRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewSourceRepository(db *sql.DB, log logger.Logger) *SourceRepository {
	return &SourceRepository{
		db:     db,
		logger: log,
	}
}

func (r *SourceRepository) Create(ctx context.Context, source *models.Source) error {
	source.ID = uuid.New().String()
	source.CreatedAt = time.Now()
	source.UpdatedAt = time.Now()
	if source.Status == "" {
		source.Status = models.SourceStatusActive
	}

	query := `
		INSERT INTO sources (
			id, org_id, name, url, description, frequency, status,
			tags, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.ExecContext(ctx,
		query,
		source.ID,
		source.OrgID,
		source.Name,
		source.URL,
		source.Description,
		source.Frequency,
		source.Status,
		source.Tags,
		source.CreatedBy,
		source.CreatedAt,
		source.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("insert source: %w", err)
	}

	return nil
}

func (r *SourceRepository) GetByID(ctx context.Context, orgID, id string) (*models.Source, error) {
	query := `
		SELECT ` + sourceColumns + `
		FROM sources
		WHERE id = $1 AND org_id = $2
	`

	source, err := scanSource(r.db.QueryRowContext(ctx, query, id, orgID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("source %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query source: %w", err)
	}

	return source, nil
}

// ListFilter holds pagination and filter params for ListPaginated.
type ListFilter struct {
	Limit     int
	Offset    int
	SortBy    string // name, url, status, frequency, created_at
	SortOrder string // asc, desc
	Search    string // ILIKE on name or url
	Status    string // empty = all
}

// Count returns the number of sources matching the filter (ignores Limit/Offset/Sort).
func (r *SourceRepository) Count(ctx context.Context, orgID string, filter ListFilter) (int, error) {
	whereClause, args := buildSourceWhere(orgID, filter)
	query := `SELECT COUNT(*) FROM sources WHERE ` + whereClause

	var count int
	err := r.db.QueryRowContext(ctx, query, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count sources: %w", err)
	}
	return count, nil
}

// ListPaginated returns an organization's sources with pagination, sorting,
// and filtering.
func (r *SourceRepository) ListPaginated(ctx context.Context, orgID string, filter ListFilter) ([]models.Source, error) {
	whereClause, whereArgs := buildSourceWhere(orgID, filter)
	orderClause := buildSourceOrder(filter)
	limitPlaceholder := strconv.Itoa(len(whereArgs) + 1)
	offsetPlaceholder := strconv.Itoa(len(whereArgs) + 2)
	// whereClause and orderClause use whitelisted column names; limit/offset are integers
	// #nosec G202 -- SQL string built from validated filter, column names from whitelist
	query := `
		SELECT ` + sourceColumns + `
		FROM sources
		WHERE ` + whereClause + orderClause + `
		LIMIT $` + limitPlaceholder + ` OFFSET $` + offsetPlaceholder

	args := append(append([]any{}, whereArgs...), filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query sources: %w", err)
	}
	defer rows.Close()

	return scanSourceRows(rows)
}

func buildSourceWhere(orgID string, filter ListFilter) (whereClause string, args []any) {
	clauses := []string{"org_id = $1"}
	args = []any{orgID}
	pos := 2

	if filter.Search != "" {
		clauses = append(clauses, fmt.Sprintf("(name ILIKE $%d OR url ILIKE $%d)", pos, pos))
		args = append(args, "%"+filter.Search+"%")
		pos++
	}
	if filter.Status != "" {
		clauses = append(clauses, fmt.Sprintf("status = $%d", pos))
		args = append(args, filter.Status)
	}

	return strings.Join(clauses, " AND "), args
}

func buildSourceOrder(filter ListFilter) string {
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "name"
	}
	validSort := map[string]bool{
		"name": true, "url": true, "status": true, "frequency": true, "created_at": true,
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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*models.Source, error) {
	var source models.Source
	err := row.Scan(
		&source.ID,
		&source.OrgID,
		&source.Name,
		&source.URL,
		&source.Description,
		&source.Frequency,
		&source.Status,
		&source.Tags,
		&source.LastScrapedAt,
		&source.CreatedBy,
		&source.CreatedAt,
		&source.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &source, nil
}

func scanSourceRows(rows *sql.Rows) ([]models.Source, error) {
	sources := make([]models.Source, 0)
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("scan source: %w", err)
		}
		sources = append(sources, *source)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sources: %w", err)
	}
	return sources, nil
}

func (r *SourceRepository) Update(ctx context.Context, source *models.Source) error {
	source.UpdatedAt = time.Now()

	query := `
		UPDATE sources
		SET name = $3, url = $4, description = $5, frequency = $6, status = $7,
		    tags = $8, updated_at = $9
		WHERE id = $1 AND org_id = $2
	`

	result, err := r.db.ExecContext(ctx,
		query,
		source.ID,
		source.OrgID,
		source.Name,
		source.URL,
		source.Description,
		source.Frequency,
		source.Status,
		source.Tags,
		source.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("update source: %w", err)
	}

	return expectOneRow(result, "source", source.ID)
}

func (r *SourceRepository) Delete(ctx context.Context, orgID, id string) error {
	query := `DELETE FROM sources WHERE id = $1 AND org_id = $2`

	result, err := r.db.ExecContext(ctx, query, id, orgID)
	if err != nil {
		return fmt.Errorf("delete source: %w", err)
	}

	return expectOneRow(result, "source", id)
}

// TouchLastScraped stamps a source after a completed run.
func (r *SourceRepository) TouchLastScraped(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE sources SET last_scraped_at = $2, updated_at = $2 WHERE id = $1`

	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("touch source: %w", err)
	}
	return nil
}

// expectOneRow returns a wrapped ErrNotFound when the exec touched no rows.
func expectOneRow(result sql.Result, entity, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
	}
	return nil
}

// UpsertSourcesTx upserts sources in one transaction, as used by bulk import.
// Returns created and updated counts; any failure rolls back everything.
func (r *SourceRepository) UpsertSourcesTx(ctx context.Context, sources []*models.Source) (created, updated int, err error) {
	if len(sources) == 0 {
		return 0, 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				r.logger.Error("failed to rollback transaction",
					logger.Error(rbErr),
				)
			}
		}
	}()

	for _, source := range sources {
		isCreated, upsertErr := r.UpsertSource(ctx, tx, source)
		if upsertErr != nil {
			err = fmt.Errorf("upsert source %q: %w", source.Name, upsertErr)
			return 0, 0, err
		}
		if isCreated {
			created++
		} else {
			updated++
		}
	}

	if commitErr := tx.Commit(); commitErr != nil {
		err = fmt.Errorf("commit transaction: %w", commitErr)
		return 0, 0, err
	}

	return created, updated, nil
}

// UpsertSource inserts or updates a source within an existing transaction.
// Conflict key is (org_id, url); the xmax = 0 trick distinguishes insert from
// update.
func (r *SourceRepository) UpsertSource(ctx context.Context, tx *sql.Tx, source *models.Source) (bool, error) {
	now := time.Now()

	if source.ID == "" {
		source.ID = uuid.New().String()
	}
	if source.Status == "" {
		source.Status = models.SourceStatusActive
	}
	source.CreatedAt = now
	source.UpdatedAt = now

	query := `
		INSERT INTO sources (
			id, org_id, name, url, description, frequency, status,
			tags, created_by, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (org_id, url) DO UPDATE SET
			name = EXCLUDED.name,
			description = EXCLUDED.description,
			frequency = EXCLUDED.frequency,
			status = EXCLUDED.status,
			tags = EXCLUDED.tags,
			updated_at = EXCLUDED.updated_at
		RETURNING id, (xmax = 0) AS is_insert
	`

	var returnedID string
	var isInsert bool
	err := tx.QueryRowContext(ctx,
		query,
		source.ID,
		source.OrgID,
		source.Name,
		source.URL,
		source.Description,
		source.Frequency,
		source.Status,
		source.Tags,
		source.CreatedBy,
		source.CreatedAt,
		source.UpdatedAt,
	).Scan(&returnedID, &isInsert)

	if err != nil {
		return false, fmt.Errorf("upsert source: %w", err)
	}

	source.ID = returnedID

	return isInsert, nil
}
