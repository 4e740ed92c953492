// Package api registers the service's routes on a gin engine.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/amar74/n-be-sub001/internal/handlers"
	"github.com/amar74/n-be-sub001/internal/identity"
)

// Handlers collects everything the router mounts.
type Handlers struct {
	Sources           *handlers.SourceHandler
	Agents            *handlers.AgentHandler
	TempOpportunities *handlers.TempOpportunityHandler
}

// Register mounts health, metrics, and the /api/v1 surface. Data routes sit
// behind the identity middleware; health and metrics do not.
func Register(router *gin.Engine, h Handlers) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	v1.Use(identity.Middleware())

	sources := v1.Group("/sources")
	sources.POST("", h.Sources.Create)
	sources.GET("", h.Sources.List)
	sources.POST("/import", h.Sources.Import)
	sources.POST("/suggest", h.Sources.Suggest)
	sources.GET("/:id", h.Sources.GetByID)
	sources.PUT("/:id", h.Sources.Update)
	sources.DELETE("/:id", h.Sources.Delete)

	agents := v1.Group("/agents")
	agents.POST("", h.Agents.Create)
	agents.GET("", h.Agents.List)
	agents.GET("/:id", h.Agents.GetByID)
	agents.PUT("/:id", h.Agents.Update)
	agents.DELETE("/:id", h.Agents.Delete)
	agents.POST("/:id/run", h.Agents.TriggerRun)
	agents.GET("/:id/runs", h.Agents.ListRuns)

	temps := v1.Group("/temp-opportunities")
	temps.GET("", h.TempOpportunities.List)
	temps.GET("/:id", h.TempOpportunities.GetByID)
	temps.PUT("/:id", h.TempOpportunities.Update)
	temps.PATCH("/:id/status", h.TempOpportunities.UpdateStatus)
	temps.POST("/:id/promote", h.TempOpportunities.Promote)
	temps.POST("/:id/refresh", h.TempOpportunities.Refresh)
	temps.DELETE("/:id", h.TempOpportunities.Delete)
}
