package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
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
	"github.com/amar74/n-be-sub001/internal/promotion"
	"github.com/amar74/n-be-sub001/internal/repository"
)

type fakePromoter struct {
	result *promotion.Result
	err    error

	orgID      string
	tempID     string
	accountID  *string
	reviewerID *string
}

func (f *fakePromoter) Promote(_ context.Context, orgID, tempID string, accountID, reviewerID *string) (*promotion.Result, error) {
	f.orgID = orgID
	f.tempID = tempID
	f.accountID = accountID
	f.reviewerID = reviewerID
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeRefresher struct {
	err       error
	refreshed string
}

func (f *fakeRefresher) Refresh(_ context.Context, temp *models.TempOpportunity) error {
	f.refreshed = temp.ID
	return f.err
}

func newTempRouter(t *testing.T, promoter *fakePromoter, refresher *fakeRefresher) (*gin.Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	repo := repository.NewTempOpportunityRepository(db, logger.NewNop())
	handler := handlers.NewTempOpportunityHandler(repo, promoter, refresher, logger.NewNop())

	gin.SetMode(gin.TestMode)
	router := gin.New()
	v1 := router.Group("/api/v1")
	v1.Use(identity.Middleware())
	v1.GET("/temp-opportunities/:id", handler.GetByID)
	v1.PUT("/temp-opportunities/:id", handler.Update)
	v1.PATCH("/temp-opportunities/:id/status", handler.UpdateStatus)
	v1.POST("/temp-opportunities/:id/promote", handler.Promote)
	v1.POST("/temp-opportunities/:id/refresh", handler.Refresh)
	v1.DELETE("/temp-opportunities/:id", handler.Delete)
	return router, mock
}

func doJSON(router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Org-ID", "org-1")
	req.Header.Set("X-User-ID", "user-1")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func tempOppRows(temp *models.TempOpportunity) *sqlmock.Rows {
	payload, _ := temp.RawPayload.Value()
	confidence, _ := temp.Confidence.Value()
	return sqlmock.NewRows([]string{
		"id", "org_id", "agent_id", "source_id", "temp_identifier", "title", "summary",
		"status", "raw_payload", "confidence", "risk_score", "source_url",
		"reviewer_id", "reviewer_notes", "promoted_opportunity_id", "created_at", "updated_at",
	}).AddRow(
		temp.ID, temp.OrgID, temp.AgentID, temp.SourceID, temp.TempIdentifier,
		temp.Title, temp.Summary, temp.Status, payload, confidence, temp.RiskScore,
		temp.SourceURL, temp.ReviewerID, temp.ReviewerNotes, temp.PromotedOpportunityID,
		temp.CreatedAt, temp.UpdatedAt,
	)
}

func stagedTemp(status string) *models.TempOpportunity {
	return &models.TempOpportunity{
		ID:             "temp-1",
		OrgID:          "org-1",
		TempIdentifier: "cand-abc",
		Title:          "Bridge Repair RFP",
		Status:         status,
		RawPayload:     models.JSONMap{},
		CreatedAt:      time.Now(),
		UpdatedAt:      time.Now(),
	}
}

func TestPromoteEndpointReturnsResult(t *testing.T) {
	promoter := &fakePromoter{result: &promotion.Result{
		OpportunityID: "opp-1",
		Warnings:      []string{"budget text \"TBD\" could not be parsed to a value"},
	}}
	router, _ := newTempRouter(t, promoter, &fakeRefresher{})

	w := doJSON(router, http.MethodPost, "/api/v1/temp-opportunities/temp-1/promote",
		gin.H{"account_id": "acct-1"})

	assert.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		OpportunityID string   `json:"opportunity_id"`
		Warnings      []string `json:"warnings"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "opp-1", resp.OpportunityID)
	assert.Len(t, resp.Warnings, 1)

	assert.Equal(t, "org-1", promoter.orgID)
	assert.Equal(t, "temp-1", promoter.tempID)
	require.NotNil(t, promoter.accountID)
	assert.Equal(t, "acct-1", *promoter.accountID)
	require.NotNil(t, promoter.reviewerID)
	assert.Equal(t, "user-1", *promoter.reviewerID)
}

func TestPromoteEndpointRejectedConflict(t *testing.T) {
	promoter := &fakePromoter{err: fmt.Errorf("temp opportunity temp-1: %w", promotion.ErrAlreadyRejected)}
	router, _ := newTempRouter(t, promoter, &fakeRefresher{})

	w := doJSON(router, http.MethodPost, "/api/v1/temp-opportunities/temp-1/promote", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestPromoteEndpointNotFound(t *testing.T) {
	promoter := &fakePromoter{err: fmt.Errorf("temp opportunity temp-9: %w", repository.ErrNotFound)}
	router, _ := newTempRouter(t, promoter, &fakeRefresher{})

	w := doJSON(router, http.MethodPost, "/api/v1/temp-opportunities/temp-9/promote", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateEndpointAppliesReviewerEdits(t *testing.T) {
	router, mock := newTempRouter(t, &fakePromoter{}, &fakeRefresher{})

	mock.ExpectBegin()
	mock.ExpectQuery("FROM temp_opportunities").WillReturnRows(tempOppRows(stagedTemp(models.ReviewStatusPending)))
	mock.ExpectExec("UPDATE temp_opportunities").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	w := doJSON(router, http.MethodPut, "/api/v1/temp-opportunities/temp-1",
		gin.H{"title": "Edited Title", "risk_score": 55.5})

	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.TempOpportunity
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "Edited Title", resp.Title)
	require.NotNil(t, resp.RiskScore)
	assert.Equal(t, 55.5, *resp.RiskScore)
	assert.Equal(t, "Edited Title", resp.RawPayload["title"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateEndpointTerminalRecordConflict(t *testing.T) {
	router, mock := newTempRouter(t, &fakePromoter{}, &fakeRefresher{})

	mock.ExpectBegin()
	mock.ExpectQuery("FROM temp_opportunities").WillReturnRows(tempOppRows(stagedTemp(models.ReviewStatusPromoted)))
	mock.ExpectRollback()

	w := doJSON(router, http.MethodPut, "/api/v1/temp-opportunities/temp-1",
		gin.H{"title": "Too Late"})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusRejectsUnknownValue(t *testing.T) {
	router, _ := newTempRouter(t, &fakePromoter{}, &fakeRefresher{})

	w := doJSON(router, http.MethodPatch, "/api/v1/temp-opportunities/temp-1/status",
		gin.H{"status": "promoted"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateStatusApproves(t *testing.T) {
	router, mock := newTempRouter(t, &fakePromoter{}, &fakeRefresher{})

	pending := stagedTemp(models.ReviewStatusPending)
	approved := stagedTemp(models.ReviewStatusApproved)

	mock.ExpectQuery("FROM temp_opportunities").WillReturnRows(tempOppRows(pending))
	mock.ExpectExec("UPDATE temp_opportunities").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("FROM temp_opportunities").WillReturnRows(tempOppRows(approved))

	w := doJSON(router, http.MethodPatch, "/api/v1/temp-opportunities/temp-1/status",
		gin.H{"status": "approved", "notes": "looks solid"})

	assert.Equal(t, http.StatusOK, w.Code)
	var resp models.TempOpportunity
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.ReviewStatusApproved, resp.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusInvalidTransitionConflict(t *testing.T) {
	router, mock := newTempRouter(t, &fakePromoter{}, &fakeRefresher{})

	rejected := stagedTemp(models.ReviewStatusRejected)
	mock.ExpectQuery("FROM temp_opportunities").WillReturnRows(tempOppRows(rejected))

	w := doJSON(router, http.MethodPatch, "/api/v1/temp-opportunities/temp-1/status",
		gin.H{"status": "approved"})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshEndpointMergesAndReturns(t *testing.T) {
	refresher := &fakeRefresher{}
	router, mock := newTempRouter(t, &fakePromoter{}, refresher)

	temp := stagedTemp(models.ReviewStatusPending)
	mock.ExpectQuery("FROM temp_opportunities").WillReturnRows(tempOppRows(temp))
	mock.ExpectQuery("FROM temp_opportunities").WillReturnRows(tempOppRows(temp))

	w := doJSON(router, http.MethodPost, "/api/v1/temp-opportunities/temp-1/refresh", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "temp-1", refresher.refreshed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteEndpoint(t *testing.T) {
	router, mock := newTempRouter(t, &fakePromoter{}, &fakeRefresher{})

	mock.ExpectExec("DELETE FROM temp_opportunities").WillReturnResult(sqlmock.NewResult(0, 1))
	w := doJSON(router, http.MethodDelete, "/api/v1/temp-opportunities/temp-1", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	mock.ExpectExec("DELETE FROM temp_opportunities").WillReturnResult(sqlmock.NewResult(0, 0))
	w = doJSON(router, http.MethodDelete, "/api/v1/temp-opportunities/temp-9", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMissingOrgHeaderUnauthorized(t *testing.T) {
	router, _ := newTempRouter(t, &fakePromoter{}, &fakeRefresher{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/temp-opportunities/temp-1", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPromoteEndpointInternalError(t *testing.T) {
	promoter := &fakePromoter{err: errors.New("commit promotion: disk full")}
	router, _ := newTempRouter(t, promoter, &fakeRefresher{})

	w := doJSON(router, http.MethodPost, "/api/v1/temp-opportunities/temp-1/promote", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "disk full")
}
