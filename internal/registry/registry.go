package registry

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"pagegen-backend/internal/model"

	"gopkg.in/yaml.v3"
)

var ErrInvalidProject = errors.New("project id must not be empty")

type document struct {
	Projects []model.Project `yaml:"projects"`
}

// Registry is the ordered list of known projects, kept in a YAML file.
// Entries are only ever appended.
type Registry struct {
	path     string
	mu       sync.RWMutex
	projects []model.Project
}

// Open loads the registry at path. A missing file is an empty registry.
func Open(path string) (*Registry, error) {
	r := &Registry{path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read registry %s: %w", path, err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}

	seen := make(map[string]bool, len(doc.Projects))
	for _, p := range doc.Projects {
		if p.ID == "" || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		r.projects = append(r.projects, p)
	}
	return r, nil
}

// NewInMemory returns a registry that is never written to disk.
func NewInMemory(projects ...model.Project) *Registry {
	return &Registry{projects: append([]model.Project(nil), projects...)}
}

func (r *Registry) List() []model.Project {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Project, len(r.projects))
	copy(out, r.projects)
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.projects)
}

func (r *Registry) Contains(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.indexOf(id) >= 0
}

// First returns the oldest registered project.
func (r *Registry) First() (model.Project, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.projects) == 0 {
		return model.Project{}, false
	}
	return r.projects[0], true
}

// Append adds p at the end and rewrites the file. Known ids are ignored.
func (r *Registry) Append(p model.Project) error {
	if p.ID == "" {
		return ErrInvalidProject
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.indexOf(p.ID) >= 0 {
		return nil
	}

	next := append(append([]model.Project(nil), r.projects...), p)
	if err := r.write(next); err != nil {
		return err
	}
	r.projects = next
	return nil
}

func (r *Registry) indexOf(id string) int {
	for i, p := range r.projects {
		if p.ID == id {
			return i
		}
	}
	return -1
}

func (r *Registry) write(projects []model.Project) error {
	if r.path == "" {
		return nil
	}

	data, err := yaml.Marshal(document{Projects: projects})
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(r.path), 0755); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}
	tempPath := r.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write registry: %w", err)
	}
	if err := os.Rename(tempPath, r.path); err != nil {
		return fmt.Errorf("replace registry: %w", err)
	}
	return nil
}
