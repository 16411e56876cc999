package filestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/Joseda-hg/dashtrack/internal/model"
)

var unsafeKeyChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// Store persists each board as its own JSON document under a data directory.
type Store struct {
	mu      sync.RWMutex
	dataDir string
}

func New(dataDir string) (*Store, error) {
	if dataDir == "" {
		return nil, fmt.Errorf("data dir is required")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	return &Store{dataDir: dataDir}, nil
}

func (s *Store) filePath(key string) string {
	return filepath.Join(s.dataDir, "board-"+unsafeKeyChars.ReplaceAllString(key, "_")+".json")
}

func (s *Store) Get(_ context.Context, key string) (model.Snapshot, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read(key)
}

func (s *Store) read(key string) (model.Snapshot, bool, error) {
	data, err := os.ReadFile(s.filePath(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return model.Snapshot{}, false, nil
		}
		return model.Snapshot{}, false, err
	}

	var snapshot model.Snapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return model.Snapshot{}, false, fmt.Errorf("parse board %s: %w", key, err)
	}
	if snapshot.Tasks == nil {
		snapshot.Tasks = []model.Task{}
	}
	return snapshot, true, nil
}

func (s *Store) Set(_ context.Context, key string, snapshot model.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok, err := s.read(key)
	if err != nil {
		return err
	}
	if ok && snapshot.Version <= current.Version {
		return model.ErrStaleWrite
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}

	path := s.filePath(key)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
