package clickhouse

import (
	"context"
	"fmt"

	"trenches-buddy/internal/domain"
	"trenches-buddy/internal/storage"
)

// PriceTimeseriesStore persists discovered-token price points in ClickHouse.
// Inserts use the native batch interface; the table is append-only.
type PriceTimeseriesStore struct {
	conn *Conn
}

// NewPriceTimeseriesStore creates a ClickHouse-backed price store.
func NewPriceTimeseriesStore(conn *Conn) *PriceTimeseriesStore {
	return &PriceTimeseriesStore{conn: conn}
}

var _ storage.PriceTimeseriesStore = (*PriceTimeseriesStore)(nil)

// InsertPoints stores a batch of price points.
func (s *PriceTimeseriesStore) InsertPoints(ctx context.Context, points []*domain.PricePoint) error {
	if len(points) == 0 {
		return nil
	}
	for _, p := range points {
		if p == nil || p.Mint == "" {
			return storage.ErrInvalidInput
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO price_points (mint, timestamp_ms, price_usd)
	`)
	if err != nil {
		return fmt.Errorf("prepare price batch: %w", err)
	}

	for _, p := range points {
		if err := batch.Append(p.Mint, p.TimestampMs, p.PriceUSD); err != nil {
			return fmt.Errorf("append price point for %s: %w", p.Mint, err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send price batch: %w", err)
	}
	return nil
}

// GetByMint returns all stored points for a mint ordered by timestamp.
func (s *PriceTimeseriesStore) GetByMint(ctx context.Context, mint string) ([]*domain.PricePoint, error) {
	if mint == "" {
		return nil, storage.ErrInvalidInput
	}

	rows, err := s.conn.Query(ctx, `
		SELECT mint, timestamp_ms, price_usd
		FROM price_points
		WHERE mint = ?
		ORDER BY timestamp_ms ASC
	`, mint)
	if err != nil {
		return nil, fmt.Errorf("query price points: %w", err)
	}
	defer rows.Close()

	points := []*domain.PricePoint{}
	for rows.Next() {
		p := &domain.PricePoint{}
		if err := rows.Scan(&p.Mint, &p.TimestampMs, &p.PriceUSD); err != nil {
			return nil, fmt.Errorf("scan price point: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate price points: %w", err)
	}

	return points, nil
}
