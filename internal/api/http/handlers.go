package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/ringsim/internal/domain/buffer"
	"github.com/GriffinCanCode/ringsim/internal/domain/simulation"
	"github.com/GriffinCanCode/ringsim/internal/infrastructure/config"
	"github.com/GriffinCanCode/ringsim/internal/infrastructure/logging"
	"github.com/GriffinCanCode/ringsim/internal/infrastructure/monitoring"
)

// Simulator is the engine surface the handlers drive
type Simulator interface {
	Init(p simulation.Params) error
	Start() error
	Stop()
	Continue() error
	Reset()
	Status() simulation.Snapshot
	History() []buffer.Item
	IsRunning() bool
	Options() simulation.Options
}

// Handlers contains all HTTP handlers
type Handlers struct {
	sim     Simulator
	presets config.Presets
	metrics *monitoring.Metrics
	logger  *logging.Logger
	version string
}

// NewHandlers creates a new handler set. metrics may be nil.
func NewHandlers(sim Simulator, presets config.Presets, metrics *monitoring.Metrics, logger *logging.Logger, version string) *Handlers {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Handlers{
		sim:     sim,
		presets: presets,
		metrics: metrics,
		logger:  logger,
		version: version,
	}
}

// Register mounts every route on router
func (h *Handlers) Register(router gin.IRouter) {
	router.GET("/", h.Root)
	router.GET("/health", h.Health)
	router.GET("/metrics/json", h.MetricsJSON)

	api := router.Group("/api/producer-consumer")
	{
		api.POST("/init", h.Init)
		api.POST("/start", h.Start)
		api.POST("/stop", h.Stop)
		api.POST("/continue", h.Continue)
		api.POST("/reset", h.Reset)
		api.GET("/status", h.Status)
		api.GET("/is-running", h.IsRunning)
		api.GET("/history", h.History)
		api.GET("/history/export", h.ExportHistory)
		api.GET("/logs", h.Logs)
		api.POST("/logs", h.IngestLogs)
		api.GET("/presets", h.ListPresets)
		api.POST("/presets/:name/init", h.InitPreset)
	}
}

// Root handles health check
func (h *Handlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": "ringsim",
		"version": h.version,
	})
}

// Health handles detailed health check
func (h *Handlers) Health(c *gin.Context) {
	snap := h.sim.Status()

	body := gin.H{
		"status":     "healthy",
		"running":    snap.Running,
		"session":    snap.SessionID,
		"bufferSize": snap.BufferSize,
	}
	if h.metrics != nil {
		body["http"] = h.metrics.Snapshot()
	}
	c.JSON(http.StatusOK, body)
}

// fail maps engine errors to status codes
func (h *Handlers) fail(c *gin.Context, err error) {
	var cfgErr *simulation.ConfigurationError
	switch {
	case errors.As(err, &cfgErr):
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   err.Error(),
			"field":   cfgErr.Field,
		})
	case errors.Is(err, simulation.ErrNotInitialized):
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error":   err.Error(),
		})
	default:
		h.logger.Error("Simulation request failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
	}
}
