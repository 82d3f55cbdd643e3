package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pagegen-backend/internal/handler"
	"pagegen-backend/internal/metrics"
	"pagegen-backend/internal/model"
	"pagegen-backend/internal/preview"
	"pagegen-backend/internal/registry"
	"pagegen-backend/internal/service"
	"pagegen-backend/internal/storage"
	"pagegen-backend/pkg/logger"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx := context.Background()
		chatModel, err := model.NewChatModel(ctx, cfg)
		if err != nil {
			return fmt.Errorf("create chat model: %w", err)
		}
		pipeline, err := service.NewPipeline(ctx, chatModel)
		if err != nil {
			return err
		}

		store := storage.New(cfg.Storage)
		defer store.Close()

		reg, err := registry.Open(cfg.Registry.Path)
		if err != nil {
			return err
		}

		m := metrics.New()
		hub := preview.NewHub()
		renderer := preview.NewRenderer(cfg.Preview, hub, m)
		chatService := service.NewChatService(cfg, pipeline, store, reg, renderer, m)

		startCtx, cancel := context.WithTimeout(ctx, cfg.Session.PersistTimeout+cfg.Storage.Timeout)
		err = chatService.Start(startCtx)
		cancel()
		if err != nil {
			return err
		}

		server := &http.Server{
			Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:        handler.NewRouter(cfg, chatService, hub, m),
			ReadTimeout:    cfg.Server.ReadTimeout,
			WriteTimeout:   cfg.Server.WriteTimeout,
			MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
		}

		serveErr := make(chan error, 1)
		go func() {
			logger.Infof("Server listening on port %d", cfg.Server.Port)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
		}()

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		select {
		case err := <-serveErr:
			return fmt.Errorf("server failed: %w", err)
		case <-quit:
		}

		logger.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Errorf("Server shutdown failed: %v", err)
		}
		if err := chatService.Close(shutdownCtx); err != nil {
			logger.Errorf("Pending writes not drained: %v", err)
		}
		logger.Info("Server stopped")
		return nil
	},
}
