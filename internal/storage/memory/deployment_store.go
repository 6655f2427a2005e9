package memory

import (
	"context"
	"sync"

	"trenches-buddy/internal/domain"
	"trenches-buddy/internal/storage"
)

// DeploymentStore is an in-memory implementation of storage.DeploymentStore.
type DeploymentStore struct {
	mu          sync.RWMutex
	deployments []*domain.BuddyDeployment
}

// NewDeploymentStore creates a new in-memory deployment store.
func NewDeploymentStore() *DeploymentStore {
	return &DeploymentStore{}
}

var _ storage.DeploymentStore = (*DeploymentStore)(nil)

// Load retrieves all deployments in stored order.
func (s *DeploymentStore) Load(_ context.Context) ([]*domain.BuddyDeployment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.BuddyDeployment, len(s.deployments))
	for i, d := range s.deployments {
		cp := *d
		out[i] = &cp
	}
	return out, nil
}

// Save replaces the full deployment list.
func (s *DeploymentStore) Save(_ context.Context, deployments []*domain.BuddyDeployment) error {
	for _, d := range deployments {
		if d == nil || d.ID == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.deployments = make([]*domain.BuddyDeployment, len(deployments))
	for i, d := range deployments {
		cp := *d
		s.deployments[i] = &cp
	}
	return nil
}
