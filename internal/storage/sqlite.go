package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/IshaanNene/AutoStalk/internal/types"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	data TEXT NOT NULL
)`

// SQLiteStorage writes each item as one JSON document row in an
// embedded sqlite database.
type SQLiteStorage struct {
	path   string
	db     *sql.DB
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewSQLiteStorage opens (creating if needed) the database at path and
// ensures the results table exists.
func NewSQLiteStorage(path string, logger *slog.Logger) (*SQLiteStorage, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create results table: %w", err)
	}

	return &SQLiteStorage{
		path:   path,
		db:     db,
		logger: logger.With("component", "sqlite_storage"),
	}, nil
}

func (s *SQLiteStorage) Name() string { return "sqlite" }

func (s *SQLiteStorage) Store(items []*types.Item) error {
	if len(items) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	stmt, err := tx.Prepare(`INSERT INTO results (data) VALUES (?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, item := range items {
		data, err := json.Marshal(document(item))
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("encode item: %w", err)
		}
		if _, err := stmt.Exec(string(data)); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	s.count += len(items)
	s.logger.Debug("items stored in sqlite", "count", len(items), "total", s.count)
	return nil
}

func (s *SQLiteStorage) Close() error {
	s.logger.Info("sqlite storage closing", "path", s.path, "total_items", s.count)
	return s.db.Close()
}
