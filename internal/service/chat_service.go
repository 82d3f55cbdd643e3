package service

import (
	"context"
	"fmt"

	"pagegen-backend/internal/config"
	"pagegen-backend/internal/metrics"
	"pagegen-backend/internal/model"
	"pagegen-backend/internal/preview"
	"pagegen-backend/internal/registry"
	"pagegen-backend/internal/storage"
	"pagegen-backend/pkg/logger"
)

// ChatService wires the session, its workspace and the preview renderer
// together for the HTTP layer.
type ChatService struct {
	storage   storage.Storage
	persister *Persister
	workspace *Workspace
	session   *Session
	renderer  *preview.Renderer

	unsubscribe func()
}

func NewChatService(cfg *config.Config, gen Generator, store storage.Storage, reg *registry.Registry, renderer *preview.Renderer, m *metrics.Metrics) *ChatService {
	persister := NewPersister(store, cfg.Storage.Timeout, m)
	workspace := NewWorkspace(reg, persister)
	session := NewSession(gen, store, persister, workspace, cfg.Session, m)

	cs := &ChatService{
		storage:   store,
		persister: persister,
		workspace: workspace,
		session:   session,
		renderer:  renderer,
	}

	// rendering is fire-and-forget from the session's point of view
	cs.unsubscribe = session.Subscribe(func(a Artifact) {
		renderer.Render(context.Background(), a.Source)
	})

	return cs
}

// Start loads the startup project, creating one on first run.
func (s *ChatService) Start(ctx context.Context) error {
	project, err := s.workspace.Bootstrap(ctx, s.session)
	if err != nil {
		return fmt.Errorf("bootstrap workspace: %w", err)
	}
	logger.WithProject(project.ID).Infof("Active project loaded (%d registered)", s.workspace.Registry().Len())
	return nil
}

func (s *ChatService) Session() *Session {
	return s.session
}

func (s *ChatService) Workspace() *Workspace {
	return s.workspace
}

func (s *ChatService) Storage() storage.Storage {
	return s.storage
}

func (s *ChatService) Projects() model.ProjectListResponse {
	return model.ProjectListResponse{
		Projects:        s.workspace.Registry().List(),
		ActiveProjectID: s.workspace.ActiveProjectID(),
	}
}

// NewProject registers a fresh project and makes it active.
func (s *ChatService) NewProject(ctx context.Context) (model.Project, error) {
	project, err := s.workspace.NewProject()
	if err != nil {
		return project, err
	}
	if err := s.session.SwitchProject(ctx, project.ID); err != nil {
		return project, err
	}
	return project, nil
}

// SwitchProject activates a registered project.
func (s *ChatService) SwitchProject(ctx context.Context, projectID string) error {
	if projectID != "" && !s.workspace.Registry().Contains(projectID) {
		return fmt.Errorf("%w: %s", storage.ErrProjectNotFound, projectID)
	}
	return s.session.SwitchProject(ctx, projectID)
}

func (s *ChatService) Close(ctx context.Context) error {
	s.unsubscribe()
	return s.session.Close(ctx)
}
