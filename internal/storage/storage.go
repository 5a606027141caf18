// Package storage persists extracted items. File backends (json, jsonl,
// csv), an embedded sqlite database and mongodb share one interface so
// the crawler's result sink can fan into any of them.
package storage

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/IshaanNene/AutoStalk/internal/config"
	"github.com/IshaanNene/AutoStalk/internal/types"
)

// Storage is the interface for all storage backends.
type Storage interface {
	// Store persists a batch of items.
	Store(items []*types.Item) error

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}

// NewFromConfig builds the backend selected by the export section.
func NewFromConfig(cfg config.ExportConfig, logger *slog.Logger) (Storage, error) {
	switch cfg.Format {
	case "json", "jsonl", "csv":
		return NewFileStorage(cfg.Format, cfg.Path, logger)
	case "sqlite":
		return NewSQLiteStorage(filepath.Join(cfg.Path, "results.db"), logger)
	case "mongodb", "mongo":
		if cfg.MongoURI == "" {
			return nil, fmt.Errorf("mongodb export needs export.mongo_uri")
		}
		db := cfg.MongoDatabase
		if db == "" {
			db = "autostalk"
		}
		coll := cfg.MongoCollection
		if coll == "" {
			coll = "results"
		}
		return NewMongoStorage(cfg.MongoURI, db, coll, logger)
	default:
		return nil, fmt.Errorf("unsupported export format: %s", cfg.Format)
	}
}

// document renders an item as one flat export record. Extracted fields
// keep their keys; source metadata goes under underscore keys so it can
// never collide with an inferred field.
func document(item *types.Item) map[string]any {
	doc := make(map[string]any, len(item.Fields)+3)
	doc["_url"] = item.URL
	doc["_timestamp"] = item.Timestamp
	if item.Depth > 0 {
		doc["_depth"] = item.Depth
	}
	for k, v := range item.Fields {
		doc[k] = v
	}
	return doc
}
