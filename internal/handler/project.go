package handler

import (
	"context"
	"errors"
	"net/http"

	"pagegen-backend/internal/model"
	"pagegen-backend/internal/service"
	"pagegen-backend/internal/storage"

	"github.com/gin-gonic/gin"
)

type ProjectHandler struct {
	chatService *service.ChatService
}

func NewProjectHandler(chatService *service.ChatService) *ProjectHandler {
	return &ProjectHandler{chatService: chatService}
}

func (h *ProjectHandler) ListProjects(c *gin.Context) {
	c.JSON(http.StatusOK, h.chatService.Projects())
}

// CreateProject mints a project and makes it active.
func (h *ProjectHandler) CreateProject(c *gin.Context) {
	project, err := h.chatService.NewProject(c.Request.Context())
	if err != nil {
		c.JSON(switchStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, project)
}

// SwitchProject waits for any in-flight turn before loading the project.
func (h *ProjectHandler) SwitchProject(c *gin.Context) {
	var req model.SwitchProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.chatService.SwitchProject(c.Request.Context(), req.ProjectID); err != nil {
		c.JSON(switchStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, model.MessagesResponse{
		ProjectID: h.chatService.Workspace().ActiveProjectID(),
		Messages:  h.chatService.Session().Messages(),
	})
}

func switchStatus(err error) int {
	switch {
	case errors.Is(err, storage.ErrProjectNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrSessionClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	default:
		return http.StatusInternalServerError
	}
}
