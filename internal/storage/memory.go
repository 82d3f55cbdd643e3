package storage

import (
	"context"
	"sync"

	"pagegen-backend/internal/model"
)

type MemoryStorage struct {
	projects map[string][]model.Message
	mu       sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		projects: make(map[string][]model.Message),
	}
}

func (m *MemoryStorage) Init() error {
	return nil
}

func (m *MemoryStorage) Close() error {
	return nil
}

func (m *MemoryStorage) CreateProject(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidData
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.projects[id]; exists {
		return ErrProjectExists
	}
	m.projects[id] = []model.Message{}
	return nil
}

func (m *MemoryStorage) GetMessages(ctx context.Context, projectID string) ([]model.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return copyMessages(m.projects[projectID]), nil
}

func (m *MemoryStorage) SaveMessages(ctx context.Context, projectID string, messages []model.Message) error {
	if projectID == "" {
		return ErrInvalidData
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.projects[projectID] = copyMessages(messages)
	return nil
}

func copyMessages(messages []model.Message) []model.Message {
	out := make([]model.Message, len(messages))
	copy(out, messages)
	return out
}
