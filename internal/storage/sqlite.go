package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pagegen-backend/internal/model"
	"pagegen-backend/pkg/logger"

	_ "modernc.org/sqlite"
)

// SQLiteStorage persists projects and their stored logs in a single SQLite file.
type SQLiteStorage struct {
	dsn string
	db  *sql.DB
}

func NewSQLiteStorage(dsn string) *SQLiteStorage {
	return &SQLiteStorage{dsn: dsn}
}

func (s *SQLiteStorage) Init() error {
	if dir := filepath.Dir(s.dsn); s.dsn != ":memory:" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("%w: %v", ErrStorageInit, err)
		}
	}

	db, err := sql.Open("sqlite", s.dsn)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}
	// a single connection serialises writers and keeps :memory: databases shared
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return fmt.Errorf("%w: %s: %v", ErrStorageInit, pragma, err)
		}
	}

	s.db = db
	if err := s.migrate(); err != nil {
		db.Close()
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	logger.Infof("SQLite storage initialized at %s", s.dsn)
	return nil
}

func (s *SQLiteStorage) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS messages (
		project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		id TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		PRIMARY KEY (project_id, position)
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to execute migration: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStorage) CreateProject(ctx context.Context, id string) error {
	if id == "" {
		return ErrInvalidData
	}

	now := time.Now().UnixMilli()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO projects (id, created_at, updated_at) VALUES (?, ?, ?)`,
		id, now, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrProjectExists
		}
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) GetMessages(ctx context.Context, projectID string) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, role, content FROM messages WHERE project_id = ? ORDER BY position`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	messages := []model.Message{}
	for rows.Next() {
		var m model.Message
		var role string
		if err := rows.Scan(&m.ID, &role, &m.Content); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
		}
		m.Role = model.Role(role)
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

func (s *SQLiteStorage) SaveMessages(ctx context.Context, projectID string, messages []model.Message) error {
	if projectID == "" {
		return ErrInvalidData
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO projects (id, created_at, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET updated_at = excluded.updated_at`,
		projectID, now, now,
	); err != nil {
		return fmt.Errorf("failed to touch project: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE project_id = ?`, projectID); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO messages (project_id, position, id, role, content) VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, m := range messages {
		if _, err := stmt.ExecContext(ctx, projectID, i, m.ID, string(m.Role), m.Content); err != nil {
			return fmt.Errorf("failed to insert message %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit messages: %w", err)
	}
	return nil
}
