package storage

import (
	"pagegen-backend/internal/config"
	"pagegen-backend/pkg/logger"
)

// New builds and initialises the configured backend. A backend that fails to
// initialise is replaced by in-memory storage so the session stays usable.
func New(cfg config.StorageConfig) Storage {
	var store Storage

	switch cfg.Type {
	case "disk":
		store = NewDiskStorage(cfg.DataDir)
	case "sqlite":
		store = NewSQLiteStorage(cfg.DSN)
	case "remote":
		store = NewRemoteStorage(cfg.RemoteURL, cfg.Timeout)
	default:
		store = NewMemoryStorage()
	}

	if err := store.Init(); err != nil {
		logger.Errorf("Failed to initialize %s storage, falling back to memory: %v", cfg.Type, err)
		store = NewMemoryStorage()
		_ = store.Init()
	}

	return store
}
