package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/amar74/n-be-sub001/internal/identity"
	"github.com/amar74/n-be-sub001/internal/logger"
	"github.com/amar74/n-be-sub001/internal/models"
	"github.com/amar74/n-be-sub001/internal/promotion"
	"github.com/amar74/n-be-sub001/internal/repository"
)

// Promoter converts a staged record into a canonical opportunity.
type Promoter interface {
	Promote(ctx context.Context, orgID, tempID string, accountID, reviewerID *string) (*promotion.Result, error)
}

// Refresher re-extracts a staged record from its source URL and merges.
type Refresher interface {
	Refresh(ctx context.Context, temp *models.TempOpportunity) error
}

// TempOpportunityHandler serves the review queue: list, inspect, decide,
// promote, refresh, discard.
type TempOpportunityHandler struct {
	repo      *repository.TempOpportunityRepository
	promoter  Promoter
	refresher Refresher
	logger    logger.Logger
}

// NewTempOpportunityHandler creates the handler.
func NewTempOpportunityHandler(
	repo *repository.TempOpportunityRepository,
	promoter Promoter,
	refresher Refresher,
	log logger.Logger,
) *TempOpportunityHandler {
	return &TempOpportunityHandler{
		repo:      repo,
		promoter:  promoter,
		refresher: refresher,
		logger:    log,
	}
}

func (h *TempOpportunityHandler) List(c *gin.Context) {
	orgID := identity.OrgID(c)
	limit, offset := pagination(c)
	filter := repository.TempOpportunityListFilter{
		Limit:     limit,
		Offset:    offset,
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
		Status:    c.Query("status"),
		AgentID:   c.Query("agent_id"),
	}

	temps, err := h.repo.ListPaginated(c.Request.Context(), orgID, filter)
	if err != nil {
		respondError(c, err, "Failed to list temp opportunities")
		return
	}
	total, err := h.repo.Count(c.Request.Context(), orgID, filter)
	if err != nil {
		respondError(c, err, "Failed to list temp opportunities")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"temp_opportunities": temps,
		"total_count":        total,
		"limit":              limit,
		"offset":             offset,
	})
}

func (h *TempOpportunityHandler) GetByID(c *gin.Context) {
	temp, err := h.repo.GetByID(c.Request.Context(), identity.OrgID(c), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to get temp opportunity")
		return
	}
	c.JSON(http.StatusOK, temp)
}

// UpdateStatus applies a review decision. Only approve/reject arrive here;
// promoted is reachable solely through the promote endpoint.
func (h *TempOpportunityHandler) UpdateStatus(c *gin.Context) {
	var req struct {
		Status string  `json:"status" binding:"required"`
		Notes  *string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}
	if req.Status != models.ReviewStatusApproved && req.Status != models.ReviewStatusRejected {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status must be approved or rejected"})
		return
	}

	orgID := identity.OrgID(c)
	id := c.Param("id")
	if err := h.repo.UpdateReview(c.Request.Context(), orgID, id, req.Status, identity.UserID(c), req.Notes); err != nil {
		respondError(c, err, "Failed to update status")
		return
	}

	h.logger.Info("temp opportunity reviewed",
		logger.String("temp_opportunity_id", id),
		logger.String("status", req.Status),
	)

	updated, err := h.repo.GetByID(c.Request.Context(), orgID, id)
	if err != nil {
		respondError(c, err, "Failed to get temp opportunity")
		return
	}
	c.JSON(http.StatusOK, updated)
}

// Update applies reviewer edits to the staged record. Projected fields are
// mirrored into the raw payload so a later promote reads the edited values.
func (h *TempOpportunityHandler) Update(c *gin.Context) {
	var edits repository.TempOpportunityEdits
	if err := c.ShouldBindJSON(&edits); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	updated, err := h.repo.UpdateEditable(c.Request.Context(), identity.OrgID(c), c.Param("id"), edits)
	if err != nil {
		respondError(c, err, "Failed to update temp opportunity")
		return
	}

	h.logger.Info("temp opportunity edited",
		logger.String("temp_opportunity_id", updated.ID),
	)
	c.JSON(http.StatusOK, updated)
}

// Promote converts the staged record into a canonical opportunity.
func (h *TempOpportunityHandler) Promote(c *gin.Context) {
	var req struct {
		AccountID *string `json:"account_id"`
	}
	// Body is optional.
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
			return
		}
	}

	result, err := h.promoter.Promote(c.Request.Context(), identity.OrgID(c), c.Param("id"), req.AccountID, identity.UserID(c))
	if err != nil {
		respondError(c, err, "Failed to promote")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"opportunity_id":   result.OpportunityID,
		"already_promoted": result.AlreadyPromoted,
		"warnings":         result.Warnings,
	})
}

// Refresh re-scrapes the record's source URL and merges the new extraction
// into the payload without touching review state.
func (h *TempOpportunityHandler) Refresh(c *gin.Context) {
	orgID := identity.OrgID(c)
	id := c.Param("id")

	temp, err := h.repo.GetByID(c.Request.Context(), orgID, id)
	if err != nil {
		respondError(c, err, "Failed to get temp opportunity")
		return
	}

	if err := h.refresher.Refresh(c.Request.Context(), temp); err != nil {
		h.logger.Warn("temp opportunity refresh failed",
			logger.String("temp_opportunity_id", id),
			logger.Error(err),
		)
		respondError(c, err, "Failed to refresh")
		return
	}

	updated, err := h.repo.GetByID(c.Request.Context(), orgID, id)
	if err != nil {
		respondError(c, err, "Failed to get temp opportunity")
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *TempOpportunityHandler) Delete(c *gin.Context) {
	if err := h.repo.Delete(c.Request.Context(), identity.OrgID(c), c.Param("id")); err != nil {
		respondError(c, err, "Failed to delete temp opportunity")
		return
	}

	h.logger.Info("temp opportunity deleted", logger.String("temp_opportunity_id", c.Param("id")))
	c.JSON(http.StatusNoContent, nil)
}
