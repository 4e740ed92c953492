package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/amar74/n-be-sub001/internal/identity"
	"github.com/amar74/n-be-sub001/internal/logger"
	"github.com/amar74/n-be-sub001/internal/models"
	"github.com/amar74/n-be-sub001/internal/repository"
)

// defaultRunHistoryLimit bounds GET /agents/:id/runs.
const defaultRunHistoryLimit = 20

// RunTrigger starts an immediate agent run, refusing when one is in flight.
type RunTrigger interface {
	TriggerAsync(agent *models.Agent) error
}

// AgentHandler serves agent CRUD, manual triggering, and run history.
type AgentHandler struct {
	repo    *repository.AgentRepository
	runs    *repository.AgentRunRepository
	trigger RunTrigger
	logger  logger.Logger
}

// NewAgentHandler creates the handler. trigger may be nil when the scheduler
// is disabled; manual runs then return 503.
func NewAgentHandler(
	repo *repository.AgentRepository,
	runs *repository.AgentRunRepository,
	trigger RunTrigger,
	log logger.Logger,
) *AgentHandler {
	return &AgentHandler{
		repo:    repo,
		runs:    runs,
		trigger: trigger,
		logger:  log,
	}
}

func (h *AgentHandler) Create(c *gin.Context) {
	var agent models.Agent
	if err := c.ShouldBindJSON(&agent); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	agent.OrgID = identity.OrgID(c)
	if agent.Frequency == "" {
		agent.Frequency = models.FrequencyDaily
	}
	if msg := validateAgent(&agent); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	if err := h.repo.Create(c.Request.Context(), &agent); err != nil {
		h.logger.Error("agent creation failed",
			logger.String("agent_name", agent.Name),
			logger.Error(err),
		)
		respondError(c, err, "Failed to create agent")
		return
	}

	h.logger.Info("agent created",
		logger.String("agent_id", agent.ID),
		logger.String("source_id", agent.SourceID),
	)
	c.JSON(http.StatusCreated, agent)
}

func (h *AgentHandler) List(c *gin.Context) {
	orgID := identity.OrgID(c)
	limit, offset := pagination(c)
	filter := repository.AgentListFilter{
		Limit:     limit,
		Offset:    offset,
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
		Status:    c.Query("status"),
		SourceID:  c.Query("source_id"),
	}

	agents, err := h.repo.ListPaginated(c.Request.Context(), orgID, filter)
	if err != nil {
		respondError(c, err, "Failed to list agents")
		return
	}
	total, err := h.repo.Count(c.Request.Context(), orgID, filter)
	if err != nil {
		respondError(c, err, "Failed to list agents")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"agents":      agents,
		"total_count": total,
		"limit":       limit,
		"offset":      offset,
	})
}

func (h *AgentHandler) GetByID(c *gin.Context) {
	agent, err := h.repo.GetByID(c.Request.Context(), identity.OrgID(c), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to get agent")
		return
	}
	c.JSON(http.StatusOK, agent)
}

func (h *AgentHandler) Update(c *gin.Context) {
	var agent models.Agent
	if err := c.ShouldBindJSON(&agent); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	agent.ID = c.Param("id")
	agent.OrgID = identity.OrgID(c)
	if msg := validateAgent(&agent); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	if err := h.repo.Update(c.Request.Context(), &agent); err != nil {
		respondError(c, err, "Failed to update agent")
		return
	}

	updated, err := h.repo.GetByID(c.Request.Context(), agent.OrgID, agent.ID)
	if err != nil {
		c.JSON(http.StatusOK, agent)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *AgentHandler) Delete(c *gin.Context) {
	if err := h.repo.Delete(c.Request.Context(), identity.OrgID(c), c.Param("id")); err != nil {
		respondError(c, err, "Failed to delete agent")
		return
	}

	h.logger.Info("agent deleted", logger.String("agent_id", c.Param("id")))
	c.JSON(http.StatusNoContent, nil)
}

// TriggerRun starts an immediate run for the agent. A run already in flight
// is a conflict, not a queue.
func (h *AgentHandler) TriggerRun(c *gin.Context) {
	if h.trigger == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Scheduler is disabled"})
		return
	}

	agent, err := h.repo.GetByID(c.Request.Context(), identity.OrgID(c), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to get agent")
		return
	}

	if err := h.trigger.TriggerAsync(agent); err != nil {
		respondError(c, err, "Failed to trigger run")
		return
	}

	h.logger.Info("agent run triggered manually", logger.String("agent_id", agent.ID))
	c.JSON(http.StatusAccepted, gin.H{"status": "started", "agent_id": agent.ID})
}

// ListRuns returns the agent's recent run history.
func (h *AgentHandler) ListRuns(c *gin.Context) {
	// Resolve through the org scope first so one tenant cannot read
	// another's run history by ID.
	agent, err := h.repo.GetByID(c.Request.Context(), identity.OrgID(c), c.Param("id"))
	if err != nil {
		respondError(c, err, "Failed to get agent")
		return
	}

	limit := defaultRunHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= maxListLimit {
			limit = n
		}
	}

	runs, err := h.runs.ListByAgent(c.Request.Context(), agent.ID, limit)
	if err != nil {
		respondError(c, err, "Failed to list runs")
		return
	}

	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

func validateAgent(agent *models.Agent) string {
	if agent.Name == "" {
		return "name is required"
	}
	if agent.SourceID == "" {
		return "source_id is required"
	}
	if !models.ValidFrequency(agent.Frequency) {
		return "frequency must be one of hourly, daily, weekly, monthly"
	}
	switch agent.Status {
	case "", models.AgentStatusActive, models.AgentStatusPaused, models.AgentStatusError:
	default:
		return "status must be one of active, paused, error"
	}
	return ""
}
