package handler

import (
	"net/http"
	"time"

	"pagegen-backend/internal/metrics"
	"pagegen-backend/internal/preview"
	"pagegen-backend/internal/utils"

	"github.com/gin-gonic/gin"
)

type PreviewHandler struct {
	hub     *preview.Hub
	metrics *metrics.Metrics
}

func NewPreviewHandler(hub *preview.Hub, m *metrics.Metrics) *PreviewHandler {
	return &PreviewHandler{hub: hub, metrics: m}
}

func (h *PreviewHandler) GetPreview(c *gin.Context) {
	snap, ok := h.hub.Latest()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no preview booted yet"})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// StreamPreview pushes a bundle event for every sandbox boot.
func (h *PreviewHandler) StreamPreview(c *gin.Context) {
	boots, unsubscribe := h.hub.Subscribe()
	defer unsubscribe()

	h.metrics.AddListeners(1)
	defer h.metrics.AddListeners(-1)

	sseWriter := utils.NewSSEWriter(c.Writer)
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()
	ctx := c.Request.Context()

	for {
		select {
		case snap := <-boots:
			if err := sseWriter.WriteJSON("bundle", snap); err != nil {
				return
			}
		case <-heartbeat.C:
			if err := sseWriter.WriteJSON("heartbeat", gin.H{"timestamp": time.Now().Unix()}); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
