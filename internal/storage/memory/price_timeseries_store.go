package memory

import (
	"context"
	"sort"
	"sync"

	"trenches-buddy/internal/domain"
	"trenches-buddy/internal/storage"
)

// PriceTimeseriesStore is an in-memory implementation of storage.PriceTimeseriesStore.
type PriceTimeseriesStore struct {
	mu     sync.RWMutex
	byMint map[string][]*domain.PricePoint
}

// NewPriceTimeseriesStore creates a new in-memory price timeseries store.
func NewPriceTimeseriesStore() *PriceTimeseriesStore {
	return &PriceTimeseriesStore{
		byMint: make(map[string][]*domain.PricePoint),
	}
}

var _ storage.PriceTimeseriesStore = (*PriceTimeseriesStore)(nil)

// InsertPoints appends observed price points.
func (s *PriceTimeseriesStore) InsertPoints(_ context.Context, points []*domain.PricePoint) error {
	for _, p := range points {
		if p == nil || p.Mint == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range points {
		cp := *p
		s.byMint[p.Mint] = append(s.byMint[p.Mint], &cp)
	}
	return nil
}

// GetByMint retrieves all points for a mint, ordered by timestamp ASC.
func (s *PriceTimeseriesStore) GetByMint(_ context.Context, mint string) ([]*domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points := s.byMint[mint]
	out := make([]*domain.PricePoint, len(points))
	for i, p := range points {
		cp := *p
		out[i] = &cp
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TimestampMs < out[j].TimestampMs })
	return out, nil
}
