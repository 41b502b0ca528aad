// Copyright (c) 2026 vignitin
// apstra-commit-backup - commit-aware backup agent for Juniper Apstra
// This source code is licensed under the MIT license found in the LICENSE file.

// Package state persists the agent's revision-tracking document. The store
// is written backup-then-replace so a crash mid-write always leaves a
// recoverable prior version next to the file.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vignitin/apstra-commit-backup/internal/errdefs"
	"github.com/vignitin/apstra-commit-backup/internal/logging"
	"github.com/vignitin/apstra-commit-backup/internal/model"
)

// Store reads and writes the global state document at a fixed path. Only
// the scheduler goroutine touches it, so no locking is needed.
type Store struct {
	path string
}

// NewStore returns a store for the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the state file location.
func (s *Store) Path() string {
	return s.path
}

// BackupPath returns the location of the prior-version copy.
func (s *Store) BackupPath() string {
	return s.path + ".bak"
}

// Load reads the persisted state. A missing file yields a fresh empty
// state; so does an unreadable or corrupt one, with the failure logged and
// reported. The returned state is always usable.
func (s *Store) Load() (*model.GlobalState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			logging.Infof("state file %s does not exist, starting with empty state", s.path)
			return model.NewGlobalState(), nil
		}
		return model.NewGlobalState(), fmt.Errorf("%w: read %s: %v", errdefs.ErrStateIO, s.path, err)
	}

	st := model.NewGlobalState()
	if err := json.Unmarshal(data, st); err != nil {
		return model.NewGlobalState(), fmt.Errorf("%w: parse %s: %v", errdefs.ErrStateIO, s.path, err)
	}
	if st.Blueprints == nil {
		st.Blueprints = make(map[string]*model.BlueprintState)
	}
	return st, nil
}

// Save persists the state document. The prior file, if any, is copied to
// the .bak sibling first, then the new content is written to a temp file
// and renamed into place. LastUpdated is stamped here.
func (s *Store) Save(st *model.GlobalState) error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: create state directory: %v", errdefs.ErrStateIO, err)
		}
	}

	if prior, err := os.ReadFile(s.path); err == nil {
		if err := os.WriteFile(s.BackupPath(), prior, 0o644); err != nil {
			return fmt.Errorf("%w: write backup copy: %v", errdefs.ErrStateIO, err)
		}
	}

	st.LastUpdated = time.Now().Format(time.RFC3339)
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode state: %v", errdefs.ErrStateIO, err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: write %s: %v", errdefs.ErrStateIO, tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: replace %s: %v", errdefs.ErrStateIO, s.path, err)
	}
	logging.Debugf("state saved to %s", s.path)
	return nil
}
