// internal/storage/factory.go
package storage

import (
	"fmt"

	"github.com/OCAP2/locationmarker/internal/config"
	"github.com/OCAP2/locationmarker/internal/database"
	"github.com/OCAP2/locationmarker/internal/session"
	gormstorage "github.com/OCAP2/locationmarker/internal/storage/gorm"
	"github.com/OCAP2/locationmarker/internal/storage/memory"
)

// NewBackend creates a storage backend based on configuration. The
// returned backend still needs Init.
func NewBackend(cfg config.StorageConfig, sessions *session.Context, log Logger) (Backend, error) {
	switch cfg.Type {
	case "postgres", "sqlite":
		db, err := database.Open(cfg, log)
		if err != nil {
			return nil, err
		}
		return gormstorage.New(gormstorage.Dependencies{
			DB:            db,
			Sessions:      sessions,
			Logger:        log,
			FlushInterval: cfg.FlushInterval,
			QueueLimit:    cfg.QueueLimit,
		}), nil
	case "memory", "":
		return memory.New(cfg.Memory, sessions), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
