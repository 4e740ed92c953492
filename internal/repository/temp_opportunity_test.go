package repository

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amar74/n-be-sub001/internal/logger"
	"github.com/amar74/n-be-sub001/internal/models"
)

func newTempRepo(t *testing.T) (*TempOpportunityRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewTempOpportunityRepository(db, logger.NewNop()), mock
}

// jsonWithKeys matches a jsonb argument whose object contains the expected
// key/value pairs.
type jsonWithKeys map[string]any

func (j jsonWithKeys) Match(v driver.Value) bool {
	raw, ok := v.([]byte)
	if !ok {
		if s, isString := v.(string); isString {
			raw = []byte(s)
		} else {
			return false
		}
	}
	var got map[string]any
	if err := json.Unmarshal(raw, &got); err != nil {
		return false
	}
	for k, want := range j {
		if got[k] != want {
			return false
		}
	}
	return true
}

func existingRow() *sqlmock.Rows {
	payload, _ := json.Marshal(map[string]any{
		"title":       "Old Title",
		"budget_text": "$2M",
		"contact":     map[string]any{"email": "eng@county.gov"},
	})
	confidence, _ := json.Marshal(map[string]float64{"title": 0.8})
	now := time.Now()

	return sqlmock.NewRows([]string{
		"id", "org_id", "agent_id", "source_id", "temp_identifier", "title", "summary",
		"status", "raw_payload", "confidence", "risk_score", "source_url",
		"reviewer_id", "reviewer_notes", "promoted_opportunity_id", "created_at", "updated_at",
	}).AddRow(
		"temp-1", "org-1", nil, nil, "https://city.example.gov/rfp/42", "Old Title", nil,
		models.ReviewStatusPending, payload, confidence, nil, nil,
		nil, nil, nil, now, now,
	)
}

func TestUpsertInsertsNewRecord(t *testing.T) {
	repo, mock := newTempRepo(t)

	mock.ExpectExec("INSERT INTO temp_opportunities").
		WillReturnResult(sqlmock.NewResult(0, 1))

	temp := &models.TempOpportunity{
		OrgID:          "org-1",
		TempIdentifier: "https://city.example.gov/rfp/42",
		Title:          "Bridge Repair",
	}
	created, err := repo.Upsert(context.Background(), temp)

	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.ReviewStatusPending, temp.Status)
	assert.NotEmpty(t, temp.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertConflictMergesPayload(t *testing.T) {
	repo, mock := newTempRepo(t)

	mock.ExpectExec("INSERT INTO temp_opportunities").
		WillReturnError(&pq.Error{Code: "23505"})

	mock.ExpectBegin()
	mock.ExpectQuery("FROM temp_opportunities").
		WithArgs("org-1", "https://city.example.gov/rfp/42").
		WillReturnRows(existingRow())
	// Incoming title wins; the key only the old payload had survives.
	mock.ExpectExec("UPDATE temp_opportunities").
		WithArgs("temp-1", "New Title", sqlmock.AnyArg(),
			jsonWithKeys{"title": "New Title", "budget_text": "$2M"},
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	temp := &models.TempOpportunity{
		OrgID:          "org-1",
		TempIdentifier: "https://city.example.gov/rfp/42",
		Title:          "New Title",
		RawPayload:     models.JSONMap{"title": "New Title", "summary": ""},
		Confidence:     models.ConfidenceMap{"title": 0.95},
	}
	created, err := repo.Upsert(context.Background(), temp)

	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertMergeMissingRow(t *testing.T) {
	repo, mock := newTempRepo(t)

	mock.ExpectExec("INSERT INTO temp_opportunities").
		WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectBegin()
	mock.ExpectQuery("FROM temp_opportunities").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	temp := &models.TempOpportunity{
		OrgID:          "org-1",
		TempIdentifier: "https://city.example.gov/rfp/42",
		Title:          "Ghost",
	}
	_, err := repo.Upsert(context.Background(), temp)

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertNonUniqueErrorPropagates(t *testing.T) {
	repo, mock := newTempRepo(t)

	mock.ExpectExec("INSERT INTO temp_opportunities").
		WillReturnError(errors.New("connection reset"))

	temp := &models.TempOpportunity{
		OrgID:          "org-1",
		TempIdentifier: "https://city.example.gov/rfp/42",
		Title:          "Bridge Repair",
	}
	_, err := repo.Upsert(context.Background(), temp)

	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateEditableMirrorsIntoPayload(t *testing.T) {
	repo, mock := newTempRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM temp_opportunities").
		WithArgs("temp-1", "org-1").
		WillReturnRows(existingRow())
	mock.ExpectExec("UPDATE temp_opportunities").
		WithArgs("temp-1", "Edited Title", sqlmock.AnyArg(),
			jsonWithKeys{"title": "Edited Title", "budget_text": "$2M", "risk_score": 65.0},
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	title := "Edited Title"
	risk := 65.0
	updated, err := repo.UpdateEditable(context.Background(), "org-1", "temp-1", TempOpportunityEdits{
		Title:     &title,
		RiskScore: &risk,
	})

	require.NoError(t, err)
	assert.Equal(t, "Edited Title", updated.Title)
	require.NotNil(t, updated.RiskScore)
	assert.Equal(t, 65.0, *updated.RiskScore)
	assert.Equal(t, "Edited Title", updated.RawPayload["title"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateEditableRefusesTerminalRecord(t *testing.T) {
	repo, mock := newTempRepo(t)

	payload, _ := json.Marshal(map[string]any{})
	confidence, _ := json.Marshal(map[string]float64{})
	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "org_id", "agent_id", "source_id", "temp_identifier", "title", "summary",
		"status", "raw_payload", "confidence", "risk_score", "source_url",
		"reviewer_id", "reviewer_notes", "promoted_opportunity_id", "created_at", "updated_at",
	}).AddRow(
		"temp-1", "org-1", nil, nil, "ident", "Done", nil,
		models.ReviewStatusRejected, payload, confidence, nil, nil,
		nil, nil, nil, now, now,
	)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM temp_opportunities").WillReturnRows(rows)
	mock.ExpectRollback()

	title := "Too Late"
	_, err := repo.UpdateEditable(context.Background(), "org-1", "temp-1", TempOpportunityEdits{Title: &title})

	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateReviewRejectsInvalidTransition(t *testing.T) {
	repo, mock := newTempRepo(t)

	payload, _ := json.Marshal(map[string]any{})
	confidence, _ := json.Marshal(map[string]float64{})
	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "org_id", "agent_id", "source_id", "temp_identifier", "title", "summary",
		"status", "raw_payload", "confidence", "risk_score", "source_url",
		"reviewer_id", "reviewer_notes", "promoted_opportunity_id", "created_at", "updated_at",
	}).AddRow(
		"temp-1", "org-1", nil, nil, "ident", "Done", nil,
		models.ReviewStatusPromoted, payload, confidence, nil, nil,
		nil, nil, nil, now, now,
	)
	mock.ExpectQuery("FROM temp_opportunities").WillReturnRows(rows)

	err := repo.UpdateReview(context.Background(), "org-1", "temp-1", models.ReviewStatusApproved, nil, nil)

	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}
