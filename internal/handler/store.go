package handler

import (
	"errors"
	"net/http"

	"pagegen-backend/internal/model"
	"pagegen-backend/internal/storage"
	"pagegen-backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// StoreHandler exposes the local Storage as the remote persistence
// transport used by storage.RemoteStorage.
type StoreHandler struct {
	storage storage.Storage
}

func NewStoreHandler(store storage.Storage) *StoreHandler {
	return &StoreHandler{storage: store}
}

func (h *StoreHandler) CreateProject(c *gin.Context) {
	var req model.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.storage.CreateProject(c.Request.Context(), req.ID); err != nil {
		c.JSON(storeStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, model.Project{ID: req.ID})
}

func (h *StoreHandler) GetMessages(c *gin.Context) {
	projectID := c.Param("project_id")

	messages, err := h.storage.GetMessages(c.Request.Context(), projectID)
	if err != nil {
		logger.WithProject(projectID).Errorf("Store read failed: %v", err)
		c.JSON(storeStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, model.MessagesResponse{ProjectID: projectID, Messages: messages})
}

func (h *StoreHandler) SaveMessages(c *gin.Context) {
	projectID := c.Param("project_id")

	var req model.SaveMessagesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.storage.SaveMessages(c.Request.Context(), projectID, req.Messages); err != nil {
		logger.WithProject(projectID).Errorf("Store write failed: %v", err)
		c.JSON(storeStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func storeStatus(err error) int {
	switch {
	case errors.Is(err, storage.ErrProjectExists):
		return http.StatusConflict
	case errors.Is(err, storage.ErrInvalidData):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrProjectNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
