package promotion

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amar74/n-be-sub001/internal/logger"
	"github.com/amar74/n-be-sub001/internal/models"
)

type fakeStaging struct {
	db   *sql.DB
	temp *models.TempOpportunity

	getErr  error
	markErr error

	markedID    string
	markedOppID string
	markedBy    *string
}

func (f *fakeStaging) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return f.db.BeginTx(ctx, nil)
}

func (f *fakeStaging) GetForUpdate(_ context.Context, _ *sql.Tx, orgID, id string) (*models.TempOpportunity, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	if f.temp == nil || f.temp.OrgID != orgID || f.temp.ID != id {
		return nil, errors.New("not found")
	}
	return f.temp, nil
}

func (f *fakeStaging) MarkPromotedTx(_ context.Context, _ *sql.Tx, id, opportunityID string, reviewerID *string) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.markedID = id
	f.markedOppID = opportunityID
	f.markedBy = reviewerID
	return nil
}

type fakeAggregate struct {
	opp      *models.Opportunity
	overview *models.OpportunityOverview
	docs     []*models.OpportunityDocument

	createErr error
	docErr    error
}

func (f *fakeAggregate) CreateTx(_ context.Context, _ *sql.Tx, opp *models.Opportunity) error {
	if f.createErr != nil {
		return f.createErr
	}
	opp.ID = "opp-1"
	f.opp = opp
	return nil
}

func (f *fakeAggregate) CreateOverviewTx(_ context.Context, _ *sql.Tx, overview *models.OpportunityOverview) error {
	f.overview = overview
	return nil
}

func (f *fakeAggregate) ImportDocumentTx(_ context.Context, _ *sql.Tx, doc *models.OpportunityDocument) error {
	if f.docErr != nil {
		return f.docErr
	}
	f.docs = append(f.docs, doc)
	return nil
}

func newEngineForTest(t *testing.T, temp *models.TempOpportunity) (*Engine, *fakeStaging, *fakeAggregate, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	staging := &fakeStaging{db: db, temp: temp}
	aggregate := &fakeAggregate{}
	engine := New(staging, aggregate, nil, nil, logger.NewNop())
	return engine, staging, aggregate, mock
}

func pendingTemp(payload models.JSONMap) *models.TempOpportunity {
	summary := "City water treatment upgrade"
	sourceURL := "https://city.example.gov/projects/water"
	score := 85.0
	return &models.TempOpportunity{
		ID:             "temp-1",
		OrgID:          "org-1",
		TempIdentifier: "cand-abc",
		Title:          "Water Treatment Plant Upgrade",
		Summary:        &summary,
		Status:         models.ReviewStatusPending,
		RawPayload:     payload,
		RiskScore:      &score,
		SourceURL:      &sourceURL,
	}
}

func strPtr(s string) *string { return &s }

func TestPromoteCreatesOpportunity(t *testing.T) {
	temp := pendingTemp(models.JSONMap{
		"budget_text":       "$1,250,000",
		"location":          "123 Main St, Springfield, IL 62704",
		"sector":            "Construction",
		"deadline":          "2026-03-01",
		"expected_rfp_date": "2026-02-01",
		"document_links":    []any{"https://city.example.gov/docs/rfp.pdf"},
	})
	engine, staging, aggregate, mock := newEngineForTest(t, temp)

	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT doc_import").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("RELEASE SAVEPOINT doc_import").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	result, err := engine.Promote(context.Background(), "org-1", "temp-1", strPtr("acct-1"), strPtr("user-1"))
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.Equal(t, "opp-1", result.OpportunityID)
	assert.False(t, result.AlreadyPromoted)
	assert.Empty(t, result.Warnings)

	require.NotNil(t, aggregate.opp)
	opp := aggregate.opp
	assert.Equal(t, "org-1", opp.OrgID)
	assert.Equal(t, models.StageLead, opp.Stage)
	assert.Equal(t, "Water Treatment Plant Upgrade", opp.Title)
	require.NotNil(t, opp.BudgetValue)
	assert.InDelta(t, 1250000, *opp.BudgetValue, 0.001)
	assert.Equal(t, models.RiskBandHigh, opp.RiskBand)
	require.NotNil(t, opp.State)
	assert.Equal(t, "IL 62704", *opp.State)
	require.NotNil(t, opp.Sector)
	assert.Equal(t, "Construction", *opp.Sector)
	require.NotNil(t, opp.Deadline)
	assert.Equal(t, "2026-03-01", opp.Deadline.Format("2006-01-02"))
	require.NotNil(t, opp.CreatedBy)
	assert.Equal(t, "user-1", *opp.CreatedBy)

	require.NotNil(t, aggregate.overview)
	assert.Equal(t, "opp-1", aggregate.overview.OpportunityID)
	assert.Equal(t, models.RiskBandHigh, aggregate.overview.KeyMetrics["risk_band"])
	assert.Equal(t, 1, aggregate.overview.KeyMetrics["document_count"])

	require.Len(t, aggregate.docs, 1)
	assert.Equal(t, "https://city.example.gov/docs/rfp.pdf", aggregate.docs[0].URL)

	assert.Equal(t, "temp-1", staging.markedID)
	assert.Equal(t, "opp-1", staging.markedOppID)
	require.NotNil(t, staging.markedBy)
	assert.Equal(t, "user-1", *staging.markedBy)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoteApprovedRecord(t *testing.T) {
	temp := pendingTemp(models.JSONMap{})
	temp.Status = models.ReviewStatusApproved
	engine, staging, _, mock := newEngineForTest(t, temp)

	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := engine.Promote(context.Background(), "org-1", "temp-1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "opp-1", result.OpportunityID)
	assert.Equal(t, "temp-1", staging.markedID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoteAlreadyPromotedIsNoop(t *testing.T) {
	temp := pendingTemp(models.JSONMap{})
	temp.Status = models.ReviewStatusPromoted
	temp.PromotedOpportunityID = strPtr("opp-9")
	engine, staging, aggregate, mock := newEngineForTest(t, temp)

	mock.ExpectBegin()
	mock.ExpectRollback()

	result, err := engine.Promote(context.Background(), "org-1", "temp-1", nil, nil)
	require.NoError(t, err)
	assert.True(t, result.AlreadyPromoted)
	assert.Equal(t, "opp-9", result.OpportunityID)
	assert.Nil(t, aggregate.opp)
	assert.Empty(t, staging.markedID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoteRejectedIsConflict(t *testing.T) {
	temp := pendingTemp(models.JSONMap{})
	temp.Status = models.ReviewStatusRejected
	engine, _, aggregate, mock := newEngineForTest(t, temp)

	mock.ExpectBegin()
	mock.ExpectRollback()

	result, err := engine.Promote(context.Background(), "org-1", "temp-1", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAlreadyRejected)
	assert.Nil(t, result)
	assert.Nil(t, aggregate.opp)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoteDocumentFailureBecomesWarning(t *testing.T) {
	temp := pendingTemp(models.JSONMap{
		"document_links": []any{"https://city.example.gov/docs/broken.pdf"},
	})
	engine, staging, aggregate, mock := newEngineForTest(t, temp)
	aggregate.docErr = errors.New("url too long")

	mock.ExpectBegin()
	mock.ExpectExec("SAVEPOINT doc_import").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("ROLLBACK TO SAVEPOINT doc_import").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	result, err := engine.Promote(context.Background(), "org-1", "temp-1", nil, nil)
	require.NoError(t, err)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "broken.pdf")
	assert.Equal(t, "temp-1", staging.markedID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoteRepairsDateOrdering(t *testing.T) {
	temp := pendingTemp(models.JSONMap{
		"deadline":          "2026-01-15",
		"expected_rfp_date": "2026-02-01",
	})
	engine, _, aggregate, mock := newEngineForTest(t, temp)

	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := engine.Promote(context.Background(), "org-1", "temp-1", nil, nil)
	require.NoError(t, err)
	require.NotNil(t, aggregate.opp.Deadline)
	assert.Equal(t, "2026-02-02", aggregate.opp.Deadline.Format("2006-01-02"))
	assert.NotEmpty(t, result.Warnings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoteUnparseableBudgetBecomesWarning(t *testing.T) {
	temp := pendingTemp(models.JSONMap{"budget_text": "call for pricing"})
	engine, _, aggregate, mock := newEngineForTest(t, temp)

	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := engine.Promote(context.Background(), "org-1", "temp-1", nil, nil)
	require.NoError(t, err)
	assert.Nil(t, aggregate.opp.BudgetValue)
	require.NotNil(t, aggregate.opp.BudgetText)
	assert.Equal(t, "call for pricing", *aggregate.opp.BudgetText)
	assert.NotEmpty(t, result.Warnings)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoteWithoutRiskSignalLeavesBandUnset(t *testing.T) {
	temp := pendingTemp(models.JSONMap{})
	temp.RiskScore = nil
	engine, _, aggregate, mock := newEngineForTest(t, temp)

	mock.ExpectBegin()
	mock.ExpectCommit()

	result, err := engine.Promote(context.Background(), "org-1", "temp-1", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, aggregate.opp.RiskBand)
	assert.NotContains(t, aggregate.overview.KeyMetrics, "risk_band")
	assert.Contains(t, result.Warnings, "no risk signal; risk band left unset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoteCreateFailureRollsBack(t *testing.T) {
	temp := pendingTemp(models.JSONMap{})
	engine, staging, aggregate, mock := newEngineForTest(t, temp)
	aggregate.createErr = errors.New("insert opportunity: boom")

	mock.ExpectBegin()
	mock.ExpectRollback()

	result, err := engine.Promote(context.Background(), "org-1", "temp-1", nil, nil)
	require.Error(t, err)
	assert.Nil(t, result)
	assert.Empty(t, staging.markedID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
