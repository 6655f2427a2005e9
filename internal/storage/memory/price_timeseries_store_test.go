package memory

import (
	"context"
	"testing"

	"trenches-buddy/internal/domain"
)

func TestPriceTimeseriesStore_InsertAndGet(t *testing.T) {
	store := NewPriceTimeseriesStore()
	ctx := context.Background()

	points := []*domain.PricePoint{
		{Mint: "mint1", TimestampMs: 2000, PriceUSD: 0.02},
		{Mint: "mint1", TimestampMs: 1000, PriceUSD: 0.01},
		{Mint: "mint2", TimestampMs: 1500, PriceUSD: 5.0},
	}

	if err := store.InsertPoints(ctx, points); err != nil {
		t.Fatalf("InsertPoints failed: %v", err)
	}

	got, err := store.GetByMint(ctx, "mint1")
	if err != nil {
		t.Fatalf("GetByMint failed: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 points for mint1, got %d", len(got))
	}

	if got[0].TimestampMs != 1000 || got[1].TimestampMs != 2000 {
		t.Errorf("points not ordered by timestamp: %d, %d", got[0].TimestampMs, got[1].TimestampMs)
	}
}

func TestPriceTimeseriesStore_UnknownMint(t *testing.T) {
	store := NewPriceTimeseriesStore()

	got, err := store.GetByMint(context.Background(), "missing")
	if err != nil {
		t.Fatalf("GetByMint failed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no points, got %d", len(got))
	}
}
