package main

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/OCAP2/locationmarker/internal/config"
	"github.com/OCAP2/locationmarker/internal/database"
	gormstorage "github.com/OCAP2/locationmarker/internal/storage/gorm"
	"github.com/OCAP2/locationmarker/pkg/core"
)

// sessionExport is the file layout written by `markerd export`
type sessionExport struct {
	Session core.Session  `json:"session"`
	Commits []core.Commit `json:"commits"`
}

// openRecorded opens the configured database for reading recorded sessions
func openRecorded() (*gormstorage.Backend, error) {
	cfg := config.GetStorageConfig()
	if cfg.Type != "sqlite" && cfg.Type != "postgres" {
		return nil, fmt.Errorf("storage type %q keeps no recorded sessions", cfg.Type)
	}
	db, err := database.Open(cfg, Logger)
	if err != nil {
		return nil, err
	}
	return gormstorage.New(gormstorage.Dependencies{DB: db, Logger: Logger}), nil
}

func listSessions(w io.Writer) error {
	backend, err := openRecorded()
	if err != nil {
		return err
	}
	sessions, err := backend.Sessions()
	if err != nil {
		return err
	}
	return writeSessions(w, sessions)
}

func writeSessions(w io.Writer, sessions []core.Session) error {
	for _, s := range sessions {
		end := "running"
		if !s.EndTime.IsZero() {
			end = s.EndTime.Sub(s.StartTime).Round(time.Second).String()
		}
		if _, err := fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", s.ID, s.StartTime.Format(time.RFC3339), end, s.Name); err != nil {
			return err
		}
	}
	return nil
}

func exportSessions(sessionIDs []string, outDir string) error {
	backend, err := openRecorded()
	if err != nil {
		return err
	}
	sessions, err := backend.Sessions()
	if err != nil {
		return err
	}
	byID := make(map[uint]core.Session, len(sessions))
	for _, s := range sessions {
		byID[s.ID] = s
	}

	for _, raw := range sessionIDs {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid session id %q: %w", raw, err)
		}
		s, ok := byID[uint(id)]
		if !ok {
			return fmt.Errorf("session %d not found", id)
		}

		start := time.Now()
		commits, err := backend.Commits(s.ID)
		if err != nil {
			return err
		}
		path := filepath.Join(outDir, fmt.Sprintf("session_%d.json.gz", s.ID))
		if err := writeExport(path, sessionExport{Session: s, Commits: commits}); err != nil {
			return err
		}
		Logger.Info("Exported session", "id", s.ID, "commits", len(commits), "path", path, "duration", time.Since(start))
	}
	return nil
}

func writeExport(path string, export sessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	gz := gzip.NewWriter(f)
	if err := json.NewEncoder(gz).Encode(export); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("failed to finish export: %w", err)
	}
	return f.Close()
}
