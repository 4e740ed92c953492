package bootstrap

import (
	"github.com/gin-gonic/gin"

	"github.com/amar74/n-be-sub001/internal/api"
	"github.com/amar74/n-be-sub001/internal/config"
	"github.com/amar74/n-be-sub001/internal/ginsrv"
	"github.com/amar74/n-be-sub001/internal/handlers"
	"github.com/amar74/n-be-sub001/internal/logger"
)

// SetupHTTPServer builds the server with all routes mounted.
func SetupHTTPServer(cfg *config.Config, p *Pipeline, log logger.Logger) *ginsrv.Server {
	var trigger handlers.RunTrigger
	if cfg.Scheduler.Enabled {
		trigger = p.Scheduler
	}

	h := api.Handlers{
		Sources:           handlers.NewSourceHandler(p.Sources, p.Importer, p.Suggester, log),
		Agents:            handlers.NewAgentHandler(p.Agents, p.AgentRuns, trigger, log),
		TempOpportunities: handlers.NewTempOpportunityHandler(p.TempOpportunities, p.Promoter, p.Executor, log),
	}

	return ginsrv.New(&ginsrv.Config{
		Port:           cfg.Server.Port,
		Debug:          cfg.Debug,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		CORSOrigins:    cfg.Server.CORSOrigins,
		ServiceName:    serviceName,
		ServiceVersion: version,
	}, log, func(router *gin.Engine) {
		api.Register(router, h)
	})
}
