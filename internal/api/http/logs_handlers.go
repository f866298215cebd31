package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const maxClientLogBatch = 100

// ClientLogEntry is one log line forwarded by a dashboard
type ClientLogEntry struct {
	ID        string                 `json:"id"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context"`
	Timestamp string                 `json:"timestamp"`
}

// ClientLogBatch is the body of POST /logs
type ClientLogBatch struct {
	Source  string           `json:"source"`
	Entries []ClientLogEntry `json:"entries"`
}

// Logs returns the tail of the session's event log, oldest first. ?limit=N
// keeps only the newest N lines.
func (h *Handlers) Logs(c *gin.Context) {
	snap := h.sim.Status()
	logs := snap.Logs

	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"success": false,
				"error":   "limit must be a non-negative integer",
			})
			return
		}
		if limit < len(logs) {
			logs = logs[len(logs)-limit:]
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"sessionId": snap.SessionID,
		"count":     len(logs),
		"logs":      logs,
	})
}

// IngestLogs writes dashboard log entries into the server log
func (h *Handlers) IngestLogs(c *gin.Context) {
	var req ClientLogBatch
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Invalid log request format"})
		return
	}
	if req.Source == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "Missing log source"})
		return
	}
	if len(req.Entries) == 0 || len(req.Entries) > maxClientLogBatch {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Batch must hold between 1 and " + strconv.Itoa(maxClientLogBatch) + " entries",
		})
		return
	}

	logger := h.logger.Named("client").With(zap.String("source", req.Source))
	for _, entry := range req.Entries {
		fields := make([]zap.Field, 0, len(entry.Context)+2)
		fields = append(fields,
			zap.String("client_log_id", entry.ID),
			zap.String("client_timestamp", entry.Timestamp),
		)
		for key, value := range entry.Context {
			fields = append(fields, zap.Any(key, value))
		}

		switch entry.Level {
		case "error":
			logger.Error(entry.Message, fields...)
		case "warn":
			logger.Warn(entry.Message, fields...)
		case "debug", "verbose":
			logger.Debug(entry.Message, fields...)
		default:
			logger.Info(entry.Message, fields...)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"received": len(req.Entries),
	})
}
