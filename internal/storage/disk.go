package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"pagegen-backend/internal/model"
	"pagegen-backend/pkg/logger"
)

// DiskStorage keeps one JSON document per project under dataDir:
// projects/<id>.json holds the record, messages/<id>.json the stored log.
type DiskStorage struct {
	dataDir string
	mu      sync.RWMutex
}

type projectRecord struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func NewDiskStorage(dataDir string) *DiskStorage {
	return &DiskStorage{dataDir: dataDir}
}

func (d *DiskStorage) Init() error {
	dirs := []string{
		d.dataDir,
		filepath.Join(d.dataDir, "projects"),
		filepath.Join(d.dataDir, "messages"),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageInit, err)
		}
	}

	logger.Infof("Disk storage initialized at %s", d.dataDir)
	return nil
}

func (d *DiskStorage) Close() error {
	return nil
}

func (d *DiskStorage) projectPath(id string) string {
	return filepath.Join(d.dataDir, "projects", id+".json")
}

func (d *DiskStorage) messagesPath(id string) string {
	return filepath.Join(d.dataDir, "messages", id+".json")
}

func (d *DiskStorage) CreateProject(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrInvalidData
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := os.Stat(d.projectPath(id)); err == nil {
		return ErrProjectExists
	}

	now := time.Now()
	if err := writeJSON(d.projectPath(id), projectRecord{ID: id, CreatedAt: now, UpdatedAt: now}); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	return nil
}

func (d *DiskStorage) GetMessages(ctx context.Context, projectID string) ([]model.Message, error) {
	if !validID(projectID) {
		return []model.Message{}, nil
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	data, err := os.ReadFile(d.messagesPath(projectID))
	if errors.Is(err, os.ErrNotExist) {
		return []model.Message{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	var messages []model.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	if messages == nil {
		messages = []model.Message{}
	}
	return messages, nil
}

func (d *DiskStorage) SaveMessages(ctx context.Context, projectID string, messages []model.Message) error {
	if !validID(projectID) {
		return ErrInvalidData
	}
	if messages == nil {
		messages = []model.Message{}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if err := writeJSON(d.messagesPath(projectID), messages); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	record := projectRecord{ID: projectID, CreatedAt: time.Now()}
	if data, err := os.ReadFile(d.projectPath(projectID)); err == nil {
		if err := json.Unmarshal(data, &record); err != nil {
			logger.WithProject(projectID).Warnf("Rewriting unreadable project record: %v", err)
		}
	}
	record.UpdatedAt = time.Now()
	if err := writeJSON(d.projectPath(projectID), record); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	return nil
}

// writeJSON replaces path atomically through a sibling temp file.
func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}
	return os.Rename(tempPath, path)
}

// validID rejects ids that would escape the data directory.
func validID(id string) bool {
	return id != "" && id != "." && id != ".." && filepath.Base(id) == id
}
