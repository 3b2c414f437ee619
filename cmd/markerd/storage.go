package main

import (
	"fmt"
	"time"

	"github.com/OCAP2/locationmarker/internal/config"
	"github.com/OCAP2/locationmarker/internal/storage"
	"github.com/OCAP2/locationmarker/pkg/core"
	"github.com/spf13/viper"
)

func initStorage() error {
	storageCfg := config.GetStorageConfig()

	backend, err := storage.NewBackend(storageCfg, Sessions, Logger)
	if err != nil {
		Logger.Error("Failed to create storage backend", "error", err)
		return err
	}
	storageBackend = backend
	if err := storageBackend.Init(); err != nil {
		Logger.Error("Failed to initialize storage backend", "error", err)
		return err
	}
	Logger.Info("Storage backend initialized", "type", storageCfg.Type)

	if err := storageBackend.StartSession(newSession(viper.GetString("sessionName"), SessionStartTime)); err != nil {
		Logger.Error("Failed to start session", "error", err)
		return err
	}
	return nil
}

// newSession names a session after its start time unless a name is configured
func newSession(name string, start time.Time) *core.Session {
	if name == "" {
		name = fmt.Sprintf("%s %s", ServiceName, start.Format("2006-01-02 15:04:05"))
	}
	return &core.Session{Name: name, StartTime: start}
}
