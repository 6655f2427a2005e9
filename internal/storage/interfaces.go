package storage

import (
	"context"

	"trenches-buddy/internal/domain"
)

// DeploymentStore persists buddy deployment records. The durable unit is
// the whole list: every mutation round-trips the entire list through
// serialization. Concurrent writers are last-write-wins at list
// granularity.
type DeploymentStore interface {
	// Load retrieves all deployments in stored order. An empty store
	// yields an empty slice, not an error.
	Load(ctx context.Context) ([]*domain.BuddyDeployment, error)

	// Save replaces the full deployment list.
	Save(ctx context.Context, deployments []*domain.BuddyDeployment) error
}

// PriceTimeseriesStore records observed token prices. The discovery
// monitor appends a point for every successful price fetch; readers are
// analytical and out of band.
type PriceTimeseriesStore interface {
	// InsertPoints appends observed price points.
	InsertPoints(ctx context.Context, points []*domain.PricePoint) error

	// GetByMint retrieves all points for a mint, ordered by timestamp ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.PricePoint, error)
}
