package http

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/ringsim/internal/domain/simulation"
	"github.com/GriffinCanCode/ringsim/internal/infrastructure/monitoring"
)

// MetricsSummary is the JSON companion of the Prometheus endpoint
type MetricsSummary struct {
	HTTP       *monitoring.MetricsSnapshot `json:"http,omitempty"`
	Simulation SimulationMetrics           `json:"simulation"`
	Timestamp  int64                       `json:"timestamp"`
}

// SimulationMetrics summarizes the session in rates and ratios
type SimulationMetrics struct {
	SessionID   string               `json:"sessionId,omitempty"`
	Running     bool                 `json:"running"`
	Stats       simulation.Stats     `json:"stats"`
	WaitStats   simulation.WaitStats `json:"waitStats"`
	SlotStates  map[string]int       `json:"slotStates"`
	Utilization float64              `json:"utilization"`
	Backlog     int64                `json:"backlog"`
}

// MetricsJSON returns request totals and a derived view of the session
func (h *Handlers) MetricsJSON(c *gin.Context) {
	snap := h.sim.Status()

	summary := MetricsSummary{
		Simulation: SimulationMetrics{
			SessionID:  snap.SessionID,
			Running:    snap.Running,
			Stats:      snap.Stats,
			WaitStats:  snap.WaitStats,
			SlotStates: make(map[string]int),
			Backlog:    snap.ItemCount,
		},
		Timestamp: time.Now().Unix(),
	}
	for state, n := range snap.StateCounts() {
		summary.Simulation.SlotStates[state.String()] = n
	}
	if snap.BufferSize > 0 {
		summary.Simulation.Utilization = float64(snap.ItemCount) / float64(snap.BufferSize)
	}
	if h.metrics != nil {
		httpTotals := h.metrics.Snapshot()
		summary.HTTP = &httpTotals
	}

	c.JSON(http.StatusOK, summary)
}
