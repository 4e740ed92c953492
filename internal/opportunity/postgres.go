package opportunity

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/amar74/n-be-sub001/internal/logger"
	"github.com/amar74/n-be-sub001/internal/models"
)

// PostgresAggregate implements Aggregate against the service's own database.
type PostgresAggregate struct {
	logger logger.Logger
}

// NewPostgresAggregate creates the Postgres-backed aggregate adapter.
func NewPostgresAggregate(log logger.Logger) *PostgresAggregate {
	return &PostgresAggregate{logger: log}
}

// CreateTx inserts the opportunity inside the caller's transaction.
func (a *PostgresAggregate) CreateTx(ctx context.Context, tx *sql.Tx, opp *models.Opportunity) error {
	opp.ID = uuid.New().String()
	opp.CreatedAt = time.Now()
	opp.UpdatedAt = time.Now()
	if opp.Stage == "" {
		opp.Stage = models.StageLead
	}

	query := `
		INSERT INTO opportunities (
			id, org_id, account_id, stage, title, summary,
			budget_value, budget_text, risk_band, state, sector,
			deadline, expected_rfp_date, source_url, created_by,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`

	_, err := tx.ExecContext(ctx,
		query,
		opp.ID,
		opp.OrgID,
		opp.AccountID,
		opp.Stage,
		opp.Title,
		opp.Summary,
		opp.BudgetValue,
		opp.BudgetText,
		opp.RiskBand,
		opp.State,
		opp.Sector,
		opp.Deadline,
		opp.ExpectedRFPDate,
		opp.SourceURL,
		opp.CreatedBy,
		opp.CreatedAt,
		opp.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("insert opportunity: %w", err)
	}

	return nil
}

// CreateOverviewTx inserts the overview sub-record.
func (a *PostgresAggregate) CreateOverviewTx(ctx context.Context, tx *sql.Tx, overview *models.OpportunityOverview) error {
	overview.ID = uuid.New().String()
	overview.CreatedAt = time.Now()
	overview.UpdatedAt = time.Now()

	query := `
		INSERT INTO opportunity_overviews (
			id, opportunity_id, scope_summary, key_metrics,
			documents_summary, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := tx.ExecContext(ctx,
		query,
		overview.ID,
		overview.OpportunityID,
		overview.ScopeSummary,
		overview.KeyMetrics,
		overview.DocumentsSummary,
		overview.CreatedAt,
		overview.UpdatedAt,
	)

	if err != nil {
		return fmt.Errorf("insert opportunity overview: %w", err)
	}

	return nil
}

// ImportDocumentTx records a document reference. Name is derived from the
// URL when not set.
func (a *PostgresAggregate) ImportDocumentTx(ctx context.Context, tx *sql.Tx, doc *models.OpportunityDocument) error {
	doc.ID = uuid.New().String()
	doc.CreatedAt = time.Now()
	if doc.Name == "" {
		doc.Name = DocumentName(doc.URL)
	}

	query := `
		INSERT INTO opportunity_documents (id, opportunity_id, url, name, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	if _, err := tx.ExecContext(ctx, query, doc.ID, doc.OpportunityID, doc.URL, doc.Name, doc.CreatedAt); err != nil {
		return fmt.Errorf("insert opportunity document: %w", err)
	}

	return nil
}

// DocumentName derives a display name from a document URL's last path
// segment.
func DocumentName(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Path == "" || parsed.Path == "/" {
		return rawURL
	}
	name := path.Base(parsed.Path)
	if name == "." || name == "/" || strings.TrimSpace(name) == "" {
		return rawURL
	}
	return name
}
