package handler

import (
	"net/http"
	"time"

	"pagegen-backend/internal/config"
	"pagegen-backend/internal/metrics"
	"pagegen-backend/internal/preview"
	"pagegen-backend/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func NewRouter(cfg *config.Config, chatService *service.ChatService, hub *preview.Hub, m *metrics.Metrics) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    cfg.CORS.ExposedHeaders,
		AllowCredentials: cfg.CORS.AllowCredentials,
		MaxAge:           time.Duration(cfg.CORS.MaxAge) * time.Second,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":         "ok",
			"active_project": chatService.Workspace().ActiveProjectID(),
			"state":          chatService.Session().State().String(),
			"timestamp":      time.Now().Unix(),
		})
	})
	router.GET("/metrics", gin.WrapH(m.Handler()))

	chatHandler := NewChatHandler(chatService)
	projectHandler := NewProjectHandler(chatService)
	previewHandler := NewPreviewHandler(hub, m)
	storeHandler := NewStoreHandler(chatService.Storage())

	api := router.Group("/api")
	{
		chat := api.Group("/chat")
		{
			chat.POST("/stream", RateLimit(cfg.RateLimit), chatHandler.StreamChat)
			chat.GET("/messages", chatHandler.GetMessages)
			chat.GET("/state", chatHandler.GetState)
		}

		projects := api.Group("/projects")
		{
			projects.GET("", projectHandler.ListProjects)
			projects.POST("", projectHandler.CreateProject)
			projects.PUT("/active", projectHandler.SwitchProject)
		}

		previews := api.Group("/preview")
		{
			previews.GET("", previewHandler.GetPreview)
			previews.GET("/stream", previewHandler.StreamPreview)
		}

		store := api.Group("/store")
		{
			store.POST("/projects", storeHandler.CreateProject)
			store.GET("/projects/:project_id/messages", storeHandler.GetMessages)
			store.PUT("/projects/:project_id/messages", storeHandler.SaveMessages)
		}
	}

	return router
}
