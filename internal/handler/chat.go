package handler

import (
	"errors"
	"net/http"
	"time"

	"pagegen-backend/internal/model"
	"pagegen-backend/internal/service"
	"pagegen-backend/internal/utils"
	"pagegen-backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

const heartbeatInterval = 30 * time.Second

type ChatHandler struct {
	chatService *service.ChatService
}

func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{
		chatService: chatService,
	}
}

// StreamChat submits a prompt and streams artifact updates until the turn
// ends. A client disconnect does not cancel the turn.
func (h *ChatHandler) StreamChat(c *gin.Context) {
	var req model.PromptRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session := h.chatService.Session()
	updates := make(chan service.Artifact, 1)
	unsubscribe := session.Subscribe(func(a service.Artifact) {
		offerLatest(updates, a)
	})
	defer unsubscribe()

	turn, err := session.SubmitPrompt(req.Message)
	if err != nil {
		c.JSON(submitStatus(err), gin.H{"error": err.Error()})
		return
	}

	sseWriter := utils.NewSSEWriter(c.Writer)
	sseWriter.WriteJSON("status", gin.H{
		"type":       "processing_start",
		"turn_id":    turn.ID,
		"project_id": turn.ProjectID,
		"timestamp":  time.Now().Unix(),
	})

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()
	ctx := c.Request.Context()

	for {
		select {
		case a := <-updates:
			if err := sseWriter.WriteJSON("artifact", toTurnEvent(a)); err != nil {
				logger.Errorf("Failed to write SSE: %v", err)
				return
			}

		case <-turn.Done():
			sseWriter.WriteJSON("artifact", toTurnEvent(session.Artifact()))

			status := gin.H{
				"type":      "processing_complete",
				"turn_id":   turn.ID,
				"timestamp": time.Now().Unix(),
			}
			if err := turn.Err(); err != nil {
				status["type"] = "processing_failed"
				status["error"] = err.Error()
			}
			sseWriter.WriteJSON("status", status)
			sseWriter.Close()
			return

		case <-heartbeat.C:
			if err := sseWriter.WriteJSON("heartbeat", gin.H{"timestamp": time.Now().Unix()}); err != nil {
				logger.Warnf("Heartbeat failed: %v", err)
				return
			}

		case <-ctx.Done():
			logger.WithProject(turn.ProjectID).Infof("Client left turn %s, generation continues", turn.ID)
			return
		}
	}
}

func (h *ChatHandler) GetMessages(c *gin.Context) {
	c.JSON(http.StatusOK, model.MessagesResponse{
		ProjectID: h.chatService.Workspace().ActiveProjectID(),
		Messages:  h.chatService.Session().Messages(),
	})
}

func (h *ChatHandler) GetState(c *gin.Context) {
	a := h.chatService.Session().Artifact()
	c.JSON(http.StatusOK, model.StateResponse{
		ProjectID: h.chatService.Workspace().ActiveProjectID(),
		State:     h.chatService.Session().State().String(),
		Artifact:  a.Source,
		Revision:  a.Revision,
		Failed:    a.Failed,
	})
}

func submitStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrTurnInProgress):
		return http.StatusConflict
	case errors.Is(err, service.ErrEmptyPrompt):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrSessionClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func toTurnEvent(a service.Artifact) model.TurnEvent {
	return model.TurnEvent{
		ProjectID: a.ProjectID,
		State:     a.State.String(),
		Artifact:  a.Source,
		Revision:  a.Revision,
		Failed:    a.Failed,
		Timestamp: time.Now().Unix(),
	}
}

// offerLatest replaces any unread value so the reader only sees the newest.
func offerLatest(ch chan service.Artifact, a service.Artifact) {
	select {
	case ch <- a:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- a:
	default:
	}
}
