package storage

import (
	"context"
	"fmt"

	"xhsdl/pkg/config"
	"xhsdl/pkg/models"
)

// Store persists extracted posts keyed by id
type Store interface {
	// LoadAll returns every stored post in first-stored order
	LoadAll(ctx context.Context) ([]models.Post, error)
	// Upsert merges post into the stored record with the same id and
	// returns the merged record
	Upsert(ctx context.Context, post models.Post) (models.Post, error)
	// Clear removes every post
	Clear(ctx context.Context) error
	Close() error
}

// Merge combines a stored post with a newer extraction of the same post.
// Fresh fields win, but comments are never regressed to empty by a pass
// that collected none.
func Merge(stored, fresh models.Post) models.Post {
	merged := fresh
	if len(fresh.Comments) == 0 && len(stored.Comments) > 0 {
		merged.Comments = stored.Comments
	}
	return merged
}

// Open creates the store selected by cfg
func Open(cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return OpenSQLite(cfg.Path)
	case "json":
		return NewJSONStore(cfg.Path)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}
