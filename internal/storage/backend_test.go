package storage_test

import (
	"github.com/OCAP2/locationmarker/internal/marker"
	"github.com/OCAP2/locationmarker/internal/storage"
	gormstorage "github.com/OCAP2/locationmarker/internal/storage/gorm"
	"github.com/OCAP2/locationmarker/internal/storage/memory"
)

// Compile-time interface checks
var (
	_ storage.Backend = (*memory.Backend)(nil)
	_ storage.Backend = (*gormstorage.Backend)(nil)
	_ marker.Renderer = (*storage.Recorder)(nil)
)
