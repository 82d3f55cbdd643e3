package service

import (
	"context"
	"fmt"
	"sync"

	"pagegen-backend/internal/model"
	"pagegen-backend/internal/registry"
	"pagegen-backend/pkg/logger"

	"github.com/google/uuid"
)

// Workspace is the session context: the project registry plus the id of the
// project whose conversation is currently loaded.
type Workspace struct {
	registry  *registry.Registry
	persister *Persister

	mu       sync.RWMutex
	activeID string
}

type projectSwitcher interface {
	SwitchProject(ctx context.Context, projectID string) error
}

func NewWorkspace(reg *registry.Registry, persister *Persister) *Workspace {
	return &Workspace{
		registry:  reg,
		persister: persister,
	}
}

func (w *Workspace) Registry() *registry.Registry {
	return w.registry
}

func (w *Workspace) ActiveProjectID() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.activeID
}

func (w *Workspace) setActive(id string) {
	w.mu.Lock()
	w.activeID = id
	w.mu.Unlock()
}

// NewProject mints an id, registers it and schedules its creation on the
// gateway. A gateway failure is only logged.
func (w *Workspace) NewProject() (model.Project, error) {
	project := model.Project{ID: uuid.New().String()}

	if err := w.registry.Append(project); err != nil {
		return project, fmt.Errorf("register project %s: %w", project.ID, err)
	}
	w.persister.EnqueueCreate(project.ID)

	logger.WithProject(project.ID).Info("Project created")
	return project, nil
}

// Bootstrap picks the startup project (the oldest registered one, or a new
// one when the registry is empty) and loads it into s.
func (w *Workspace) Bootstrap(ctx context.Context, s projectSwitcher) (model.Project, error) {
	project, ok := w.registry.First()
	if !ok {
		var err error
		project, err = w.NewProject()
		if err != nil {
			return project, err
		}
	}

	if err := s.SwitchProject(ctx, project.ID); err != nil {
		return project, err
	}
	return project, nil
}
