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

type ScrapeHistoryRepository struct {
	db     *sql.DB
	logger logger.Logger
}

func NewScrapeHistoryRepository(db *sql.DB, log logger.Logger) *ScrapeHistoryRepository {
	return &ScrapeHistoryRepository{
		db:     db,
		logger: log,
	}
}

func (r *ScrapeHistoryRepository) Insert(ctx context.Context, h *models.ScrapeHistory) error {
	h.ID = uuid.New().String()
	if h.ScrapedAt.IsZero() {
		h.ScrapedAt = time.Now()
	}

	query := `
		INSERT INTO scrape_history (
			id, agent_id, source_id, url, url_hash, status,
			http_status, content_length, error_message, scraped_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(ctx,
		query,
		h.ID,
		h.AgentID,
		h.SourceID,
		h.URL,
		h.URLHash,
		h.Status,
		h.HTTPStatus,
		h.ContentLength,
		h.ErrorMessage,
		h.ScrapedAt,
	)

	if err != nil {
		return fmt.Errorf("insert scrape history: %w", err)
	}

	return nil
}

// SeenSince reports whether a URL hash has a successful scrape newer than the
// cutoff. Skipped and failed rows do not count as seen.
func (r *ScrapeHistoryRepository) SeenSince(ctx context.Context, urlHash string, cutoff time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM scrape_history
			WHERE url_hash = $1 AND status = $2 AND scraped_at > $3
		)
	`

	var seen bool
	err := r.db.QueryRowContext(ctx, query, urlHash, models.ScrapeStatusScraped, cutoff).Scan(&seen)
	if err != nil {
		return false, fmt.Errorf("check scrape history: %w", err)
	}

	return seen, nil
}

// ListByAgent returns an agent's scrape history, newest first.
func (r *ScrapeHistoryRepository) ListByAgent(ctx context.Context, agentID string, limit int) ([]models.ScrapeHistory, error) {
	query := `
		SELECT id, agent_id, source_id, url, url_hash, status,
		       http_status, content_length, error_message, scraped_at
		FROM scrape_history
		WHERE agent_id = $1
		ORDER BY scraped_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("query scrape history: %w", err)
	}
	defer rows.Close()

	entries := make([]models.ScrapeHistory, 0)
	for rows.Next() {
		var h models.ScrapeHistory
		scanErr := rows.Scan(
			&h.ID,
			&h.AgentID,
			&h.SourceID,
			&h.URL,
			&h.URLHash,
			&h.Status,
			&h.HTTPStatus,
			&h.ContentLength,
			&h.ErrorMessage,
			&h.ScrapedAt,
		)
		if scanErr != nil {
			return nil, fmt.Errorf("scan scrape history: %w", scanErr)
		}
		entries = append(entries, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scrape history: %w", err)
	}

	return entries, nil
}
