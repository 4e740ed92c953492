// Package promotion converts an approved staged opportunity into a canonical
// opportunity record. The whole conversion runs in one database transaction:
// either the opportunity, its overview, and the staging status flip all land,
// or none do.
package promotion

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/amar74/n-be-sub001/internal/events"
	"github.com/amar74/n-be-sub001/internal/logger"
	"github.com/amar74/n-be-sub001/internal/metrics"
	"github.com/amar74/n-be-sub001/internal/models"
	"github.com/amar74/n-be-sub001/internal/opportunity"
)

// ErrAlreadyRejected is returned when promotion hits a rejected record.
// Rejected is terminal; the caller gets a conflict, not a new opportunity.
var ErrAlreadyRejected = errors.New("temp opportunity already rejected")

// Promotion outcomes recorded in metrics.
const (
	outcomePromoted = "promoted"
	outcomeNoop     = "noop"
	outcomeRefused  = "refused"
	outcomeFailed   = "failed"
)

// StagingStore is the engine's view of the review staging table.
type StagingStore interface {
	BeginTx(ctx context.Context) (*sql.Tx, error)
	GetForUpdate(ctx context.Context, tx *sql.Tx, orgID, id string) (*models.TempOpportunity, error)
	MarkPromotedTx(ctx context.Context, tx *sql.Tx, id, opportunityID string, reviewerID *string) error
}

// Result reports what a promotion produced.
type Result struct {
	OpportunityID   string
	AlreadyPromoted bool
	// Warnings are non-fatal field resolution problems: unparseable budget
	// text, repaired dates, failed document imports. The promotion itself
	// succeeded.
	Warnings []string
}

// Engine performs promotions. publisher and metrics may be nil.
type Engine struct {
	staging   StagingStore
	aggregate opportunity.Aggregate
	publisher *events.Publisher
	metrics   *metrics.Metrics
	logger    logger.Logger
}

// New creates a promotion engine.
func New(
	staging StagingStore,
	aggregate opportunity.Aggregate,
	publisher *events.Publisher,
	m *metrics.Metrics,
	log logger.Logger,
) *Engine {
	return &Engine{
		staging:   staging,
		aggregate: aggregate,
		publisher: publisher,
		metrics:   m,
		logger:    log,
	}
}

// Promote converts the staged record into a canonical opportunity. A record
// already promoted is a no-op returning the existing opportunity ID; a
// rejected record returns ErrAlreadyRejected. Pending and approved records
// both promote: promoting a pending record is an implicit approval.
func (e *Engine) Promote(ctx context.Context, orgID, tempID string, accountID, reviewerID *string) (result *Result, err error) {
	tx, err := e.staging.BeginTx(ctx)
	if err != nil {
		e.metrics.RecordPromotion(outcomeFailed)
		return nil, fmt.Errorf("begin promotion: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	temp, err := e.staging.GetForUpdate(ctx, tx, orgID, tempID)
	if err != nil {
		e.metrics.RecordPromotion(outcomeFailed)
		return nil, err
	}

	switch temp.Status {
	case models.ReviewStatusPromoted:
		_ = tx.Rollback()
		e.metrics.RecordPromotion(outcomeNoop)
		existing := ""
		if temp.PromotedOpportunityID != nil {
			existing = *temp.PromotedOpportunityID
		}
		e.logger.Info("promotion no-op, already promoted",
			logger.String("temp_opportunity_id", tempID),
			logger.String("opportunity_id", existing))
		return &Result{OpportunityID: existing, AlreadyPromoted: true}, nil
	case models.ReviewStatusRejected:
		e.metrics.RecordPromotion(outcomeRefused)
		return nil, fmt.Errorf("temp opportunity %s: %w", tempID, ErrAlreadyRejected)
	}

	opp, warnings := e.buildOpportunity(temp, accountID, reviewerID)

	if err = e.aggregate.CreateTx(ctx, tx, opp); err != nil {
		e.metrics.RecordPromotion(outcomeFailed)
		return nil, err
	}

	overview := e.buildOverview(temp, opp)
	if err = e.aggregate.CreateOverviewTx(ctx, tx, overview); err != nil {
		e.metrics.RecordPromotion(outcomeFailed)
		return nil, err
	}

	warnings = append(warnings, e.importDocuments(ctx, tx, temp, opp)...)

	if err = e.staging.MarkPromotedTx(ctx, tx, temp.ID, opp.ID, reviewerID); err != nil {
		e.metrics.RecordPromotion(outcomeFailed)
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		e.metrics.RecordPromotion(outcomeFailed)
		return nil, fmt.Errorf("commit promotion: %w", err)
	}

	e.metrics.RecordPromotion(outcomePromoted)
	e.publisher.PublishAsync(events.NewOpportunityPromoted(orgID, temp.ID, opp.ID, warnings))
	e.logger.Info("temp opportunity promoted",
		logger.String("temp_opportunity_id", temp.ID),
		logger.String("opportunity_id", opp.ID),
		logger.Int("warnings", len(warnings)))

	return &Result{OpportunityID: opp.ID, Warnings: warnings}, nil
}

// buildOpportunity resolves canonical fields from the staged record and its
// raw payload. Field resolution problems become warnings, never failures.
func (e *Engine) buildOpportunity(temp *models.TempOpportunity, accountID, reviewerID *string) (*models.Opportunity, []string) {
	var warnings []string
	payload := map[string]any(temp.RawPayload)

	opp := &models.Opportunity{
		OrgID:     temp.OrgID,
		AccountID: accountID,
		Stage:     models.StageLead,
		Title:     temp.Title,
		Summary:   temp.Summary,
		SourceURL: temp.SourceURL,
		CreatedBy: reviewerID,
	}
	if opp.Title == "" {
		opp.Title = payloadString(payload, "title")
	}
	if opp.Summary == nil {
		if summary := payloadString(payload, "summary"); summary != "" {
			opp.Summary = &summary
		}
	}

	budgetText := payloadString(payload, "budget_text")
	if budgetText == "" {
		budgetText = payloadString(payload, "project_value")
	}
	if budgetText != "" {
		opp.BudgetText = &budgetText
		if value, ok := ParseBudget(budgetText); ok {
			opp.BudgetValue = &value
		} else {
			warnings = append(warnings, fmt.Sprintf("budget text %q could not be parsed to a value", budgetText))
		}
	}

	riskScore := temp.RiskScore
	if riskScore == nil {
		riskScore = payloadFloat(payload, "risk_score")
	}
	opp.RiskBand = ResolveRiskBand(riskScore, payloadStrings(payload, "tags"))
	if opp.RiskBand == "" {
		warnings = append(warnings, "no risk signal; risk band left unset")
	}

	if state := ResolveState(payload); state != "" {
		opp.State = &state
	}
	if sector := payloadString(payload, "sector"); sector != "" {
		opp.Sector = &sector
	}

	opp.ExpectedRFPDate = ParsePayloadDate(payload, "expected_rfp_date")
	deadline := ParsePayloadDate(payload, "deadline")
	deadline, repaired := RepairDates(opp.ExpectedRFPDate, deadline)
	if repaired {
		warnings = append(warnings, "deadline was on or before expected RFP date; shifted one day past it")
	}
	opp.Deadline = deadline

	return opp, warnings
}

// buildOverview seeds the overview sub-record with the metrics a reviewer saw
// when approving the candidate.
func (e *Engine) buildOverview(temp *models.TempOpportunity, opp *models.Opportunity) *models.OpportunityOverview {
	payload := map[string]any(temp.RawPayload)
	docCount := len(payloadStrings(payload, "document_links"))

	metrics := models.JSONMap{
		"document_count": docCount,
	}
	if opp.RiskBand != "" {
		metrics["risk_band"] = opp.RiskBand
	}
	if temp.RiskScore != nil {
		metrics["risk_score"] = *temp.RiskScore
	}
	if opp.BudgetValue != nil {
		metrics["budget_value"] = *opp.BudgetValue
	}
	if location := payloadString(payload, "location"); location != "" {
		metrics["location"] = location
	}
	if opp.Deadline != nil {
		metrics["deadline"] = opp.Deadline.Format("2006-01-02")
	}
	if opp.ExpectedRFPDate != nil {
		metrics["expected_rfp_date"] = opp.ExpectedRFPDate.Format("2006-01-02")
	}

	overview := &models.OpportunityOverview{
		OpportunityID: opp.ID,
		ScopeSummary:  opp.Summary,
		KeyMetrics:    metrics,
	}
	if overview.ScopeSummary == nil {
		if raw := payloadString(payload, "raw_section"); raw != "" {
			overview.ScopeSummary = &raw
		}
	}
	if docCount > 0 {
		summary := fmt.Sprintf("%d document(s) referenced at promotion", docCount)
		overview.DocumentsSummary = &summary
	}
	return overview
}

// importDocuments records each document link from the payload. Imports are
// best effort: a failed link becomes a warning, isolated behind a savepoint
// so it cannot abort the enclosing transaction.
func (e *Engine) importDocuments(ctx context.Context, tx *sql.Tx, temp *models.TempOpportunity, opp *models.Opportunity) []string {
	var warnings []string

	for _, link := range payloadStrings(map[string]any(temp.RawPayload), "document_links") {
		if _, err := tx.ExecContext(ctx, "SAVEPOINT doc_import"); err != nil {
			warnings = append(warnings, fmt.Sprintf("document %s skipped: %v", link, err))
			continue
		}

		doc := &models.OpportunityDocument{OpportunityID: opp.ID, URL: link}
		if err := e.aggregate.ImportDocumentTx(ctx, tx, doc); err != nil {
			_, _ = tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT doc_import")
			warnings = append(warnings, fmt.Sprintf("document %s import failed: %v", link, err))
			e.logger.Warn("document import failed",
				logger.String("temp_opportunity_id", temp.ID),
				logger.String("url", link),
				logger.Error(err))
			continue
		}
		_, _ = tx.ExecContext(ctx, "RELEASE SAVEPOINT doc_import")
	}

	return warnings
}
