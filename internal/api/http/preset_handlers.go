package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ListPresets returns the configured scenarios
func (h *Handlers) ListPresets(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"presets": h.presets.List(),
	})
}

// InitPreset initializes the simulation from a named scenario
func (h *Handlers) InitPreset(c *gin.Context) {
	name := c.Param("name")

	preset, ok := h.presets[name]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "Unknown preset: " + name,
		})
		return
	}

	if err := h.sim.Init(preset.Params()); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.sim.Status())
}
