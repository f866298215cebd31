package http

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/ringsim/internal/domain/simulation"
)

// InitRequest is the body of POST /init. Omitted fields take the configured
// defaults. Speeds and delays are milliseconds; productionSpeed and
// consumptionSpeed are accepted as aliases of the delay fields.
type InitRequest struct {
	BufferSize         *int    `json:"bufferSize"`
	ProducerCount      *int    `json:"producerCount"`
	ConsumerCount      *int    `json:"consumerCount"`
	SimulationSpeed    *int64  `json:"simulationSpeed"`
	ProductionDelayMs  *int64  `json:"productionDelayMs"`
	ProductionSpeed    *int64  `json:"productionSpeed"`
	ConsumptionDelayMs *int64  `json:"consumptionDelayMs"`
	ConsumptionSpeed   *int64  `json:"consumptionSpeed"`
	DelayPolicy        *string `json:"delayPolicy"`
}

// Params merges the request over defaults
func (r InitRequest) Params(defaults simulation.Params) simulation.Params {
	p := defaults
	if r.BufferSize != nil {
		p.BufferSize = *r.BufferSize
	}
	if r.ProducerCount != nil {
		p.ProducerCount = *r.ProducerCount
	}
	if r.ConsumerCount != nil {
		p.ConsumerCount = *r.ConsumerCount
	}
	if r.SimulationSpeed != nil {
		p.SimulationSpeed = millis(*r.SimulationSpeed)
	}
	if ms := firstSet(r.ProductionDelayMs, r.ProductionSpeed); ms != nil {
		p.ProductionDelay = millis(*ms)
	}
	if ms := firstSet(r.ConsumptionDelayMs, r.ConsumptionSpeed); ms != nil {
		p.ConsumptionDelay = millis(*ms)
	}
	if r.DelayPolicy != nil {
		p.DelayPolicy = *r.DelayPolicy
	}
	return p
}

func firstSet(values ...*int64) *int64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func millis(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

// Init (re)initializes the simulation
func (h *Handlers) Init(c *gin.Context) {
	var req InitRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "Invalid request: " + err.Error(),
			})
			return
		}
	}

	if err := h.sim.Init(req.Params(h.sim.Options().Defaults)); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sim.Status())
}

// Start spawns the workers
func (h *Handlers) Start(c *gin.Context) {
	if err := h.sim.Start(); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sim.Status())
}

// Stop signals the workers to exit
func (h *Handlers) Stop(c *gin.Context) {
	h.sim.Stop()
	c.JSON(http.StatusOK, h.sim.Status())
}

// Continue resumes a stopped session
func (h *Handlers) Continue(c *gin.Context) {
	if err := h.sim.Continue(); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sim.Status())
}

// Reset stops the session and clears its counters
func (h *Handlers) Reset(c *gin.Context) {
	h.sim.Reset()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Simulation reset",
	})
}

// Status returns a snapshot
func (h *Handlers) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.sim.Status())
}

// IsRunning returns a bare boolean
func (h *Handlers) IsRunning(c *gin.Context) {
	c.JSON(http.StatusOK, h.sim.IsRunning())
}

// History returns the consumed items, oldest first
func (h *Handlers) History(c *gin.Context) {
	items := simulation.HistoryViews(h.sim.History())
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"count":   len(items),
		"items":   items,
	})
}

// ExportHistory streams the consumed items as compressed NDJSON.
// ?compression=zstd selects zstd; gzip is the default.
func (h *Handlers) ExportHistory(c *gin.Context) {
	compression := c.DefaultQuery("compression", "gzip")
	if compression != "gzip" && compression != "zstd" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "compression must be gzip or zstd",
		})
		return
	}

	items := simulation.HistoryViews(h.sim.History())
	session := h.sim.Status().SessionID
	if session == "" {
		session = "dormant"
	}

	var (
		w   io.WriteCloser
		ext string
	)
	if compression == "zstd" {
		zw, err := zstd.NewWriter(c.Writer)
		if err != nil {
			h.fail(c, err)
			return
		}
		w, ext = zw, "zst"
		c.Header("Content-Type", "application/zstd")
	} else {
		w, ext = gzip.NewWriter(c.Writer), "gz"
		c.Header("Content-Type", "application/gzip")
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="history-%s.ndjson.%s"`, session, ext))
	c.Status(http.StatusOK)

	enc := sonic.ConfigDefault.NewEncoder(w)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			h.logger.Warn("History export aborted", zap.Error(err))
			return
		}
	}
	if err := w.Close(); err != nil {
		h.logger.Warn("History export aborted", zap.Error(err))
	}
}
