package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/amar74/n-be-sub001/internal/identity"
	"github.com/amar74/n-be-sub001/internal/importer"
	"github.com/amar74/n-be-sub001/internal/logger"
	"github.com/amar74/n-be-sub001/internal/metadata"
	"github.com/amar74/n-be-sub001/internal/models"
	"github.com/amar74/n-be-sub001/internal/repository"
)

// SourceHandler serves source CRUD plus bulk import and metadata suggestion.
type SourceHandler struct {
	repo      *repository.SourceRepository
	importer  *importer.Importer
	suggester *metadata.Suggester
	logger    logger.Logger
}

// NewSourceHandler creates the handler. importer and suggester may be nil in
// tests that exercise CRUD only.
func NewSourceHandler(
	repo *repository.SourceRepository,
	imp *importer.Importer,
	suggester *metadata.Suggester,
	log logger.Logger,
) *SourceHandler {
	return &SourceHandler{
		repo:      repo,
		importer:  imp,
		suggester: suggester,
		logger:    log,
	}
}

func (h *SourceHandler) Create(c *gin.Context) {
	var source models.Source
	if err := c.ShouldBindJSON(&source); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	source.OrgID = identity.OrgID(c)
	source.CreatedBy = identity.UserID(c)
	if source.Frequency == "" {
		source.Frequency = models.FrequencyDaily
	}
	if source.Status == "" {
		source.Status = models.SourceStatusActive
	}
	if msg := validateSource(&source); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	if err := h.repo.Create(c.Request.Context(), &source); err != nil {
		h.logger.Error("source creation failed",
			logger.String("source_name", source.Name),
			logger.Error(err),
		)
		respondError(c, err, "Failed to create source")
		return
	}

	h.logger.Info("source created",
		logger.String("source_id", source.ID),
		logger.String("source_name", source.Name),
	)
	c.JSON(http.StatusCreated, source)
}

func (h *SourceHandler) List(c *gin.Context) {
	orgID := identity.OrgID(c)
	limit, offset := pagination(c)
	filter := repository.ListFilter{
		Limit:     limit,
		Offset:    offset,
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
		Search:    c.Query("search"),
		Status:    c.Query("status"),
	}

	sources, err := h.repo.ListPaginated(c.Request.Context(), orgID, filter)
	if err != nil {
		respondError(c, err, "Failed to list sources")
		return
	}
	total, err := h.repo.Count(c.Request.Context(), orgID, filter)
	if err != nil {
		respondError(c, err, "Failed to list sources")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sources":     sources,
		"total_count": total,
		"limit":       limit,
		"offset":      offset,
	})
}

func (h *SourceHandler) GetByID(c *gin.Context) {
	source, err := h.repo.GetByID(c.Request.Context(), identity.OrgID(c), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to get source")
		return
	}
	c.JSON(http.StatusOK, source)
}

func (h *SourceHandler) Update(c *gin.Context) {
	var source models.Source
	if err := c.ShouldBindJSON(&source); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	source.ID = c.Param("id")
	source.OrgID = identity.OrgID(c)
	if msg := validateSource(&source); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	if err := h.repo.Update(c.Request.Context(), &source); err != nil {
		respondError(c, err, "Failed to update source")
		return
	}

	updated, err := h.repo.GetByID(c.Request.Context(), source.OrgID, source.ID)
	if err != nil {
		c.JSON(http.StatusOK, source)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *SourceHandler) Delete(c *gin.Context) {
	if err := h.repo.Delete(c.Request.Context(), identity.OrgID(c), c.Param("id")); err != nil {
		respondError(c, err, "Failed to delete source")
		return
	}

	h.logger.Info("source deleted", logger.String("source_id", c.Param("id")))
	c.JSON(http.StatusNoContent, nil)
}

// Import bulk-loads sources from an uploaded Excel workbook.
func (h *SourceHandler) Import(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing file upload", "details": err.Error()})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable file upload"})
		return
	}
	defer f.Close()

	result, err := h.importer.ImportWorkbook(c.Request.Context(), f, identity.OrgID(c), identity.UserID(c))
	if err != nil {
		respondError(c, err, "Failed to import sources")
		return
	}
	c.JSON(http.StatusOK, result)
}

// Suggest fetches a URL and proposes name/description for the create form.
func (h *SourceHandler) Suggest(c *gin.Context) {
	var req struct {
		URL string `json:"url" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	suggestion, err := h.suggester.Suggest(c.Request.Context(), req.URL)
	if err != nil {
		h.logger.Warn("metadata suggestion failed",
			logger.String("url", req.URL),
			logger.Error(err),
		)
		respondError(c, err, "Failed to suggest metadata")
		return
	}
	c.JSON(http.StatusOK, suggestion)
}

func validateSource(source *models.Source) string {
	if source.Name == "" {
		return "name is required"
	}
	if source.URL == "" {
		return "url is required"
	}
	if !models.ValidFrequency(source.Frequency) {
		return "frequency must be one of hourly, daily, weekly, monthly"
	}
	switch source.Status {
	case models.SourceStatusActive, models.SourceStatusPaused, models.SourceStatusArchived:
	default:
		return "status must be one of active, paused, archived"
	}
	return ""
}
