// Package file provides a JSON-file DeploymentStore. The whole deployment
// list is serialized into a single file on every save.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"trenches-buddy/internal/domain"
	"trenches-buddy/internal/storage"
)

// DeploymentStore persists the deployment list as one JSON file.
type DeploymentStore struct {
	path string
	mu   sync.Mutex
}

// NewDeploymentStore creates a store backed by the given file path.
// The file is created on first Save; a missing file reads as empty.
func NewDeploymentStore(path string) *DeploymentStore {
	return &DeploymentStore{path: path}
}

var _ storage.DeploymentStore = (*DeploymentStore)(nil)

// Load retrieves all deployments in stored order.
func (s *DeploymentStore) Load(_ context.Context) ([]*domain.BuddyDeployment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []*domain.BuddyDeployment{}, nil
		}
		return nil, fmt.Errorf("read deployments file: %w", err)
	}

	var deployments []*domain.BuddyDeployment
	if err := json.Unmarshal(data, &deployments); err != nil {
		return nil, fmt.Errorf("%w: %v", storage.ErrCorrupt, err)
	}
	if deployments == nil {
		deployments = []*domain.BuddyDeployment{}
	}
	return deployments, nil
}

// Save replaces the full deployment list. The write goes through a temp
// file and rename so a crash never leaves a half-written list behind.
func (s *DeploymentStore) Save(_ context.Context, deployments []*domain.BuddyDeployment) error {
	for _, d := range deployments {
		if d == nil || d.ID == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(deployments, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal deployments: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".deployments-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
