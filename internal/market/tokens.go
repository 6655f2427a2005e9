package market

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"trenches-buddy/internal/domain"
)

// DefaultLaunchpadMints is the curated set of launchpad tokens the source
// assembles batches from. The upstream launchpad has no discovery
// endpoint, so a known set stands in for the feed.
var DefaultLaunchpadMints = []string{
	"DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263", // BONK
	"EKpQGSJtjMFqKZ9KQanSqYXRcF8fBopzLHYxdM65zcjm", // WIF
	"7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr", // POPCAT
	"A8C3xuqscfmyLrte3VmTqrAq8kgMASius9AFNANwpump", // PNUT
	"Df6yfrKC8kZE3KNkrHERKzAetSxbrWeniQfyJY4Jpump", // CHILLGUY
}

const defaultFetchSpacing = 200 * time.Millisecond

// TokenSource assembles DiscoveredToken batches from provider metadata
// and prices. Stats the providers don't expose (volume, holders, bonding
// curve progress) are simulated, seeded from an injected source so tests
// stay deterministic.
type TokenSource struct {
	moralis *MoralisClient
	mints   []string
	limiter *rate.Limiter
	logger  *zap.Logger
	now     func() time.Time

	randMu sync.Mutex
	rand   *rand.Rand
}

// TokenSourceOptions contains configuration for creating a TokenSource.
type TokenSourceOptions struct {
	Moralis *MoralisClient

	// Mints overrides the curated launchpad set.
	Mints []string

	// FetchSpacing throttles per-mint provider calls. Default 200ms.
	FetchSpacing time.Duration

	Logger *zap.Logger

	// Now and Seed make creation times and simulated stats deterministic
	// in tests.
	Now  func() time.Time
	Seed int64
}

// NewTokenSource creates a token source.
func NewTokenSource(opts TokenSourceOptions) *TokenSource {
	mints := opts.Mints
	if len(mints) == 0 {
		mints = DefaultLaunchpadMints
	}
	spacing := opts.FetchSpacing
	if spacing <= 0 {
		spacing = defaultFetchSpacing
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	return &TokenSource{
		moralis: opts.Moralis,
		mints:   mints,
		limiter: rate.NewLimiter(rate.Every(spacing), 1),
		logger:  logger.Named("token-source"),
		now:     now,
		rand:    rand.New(rand.NewSource(seed)),
	}
}

// NewTokens assembles up to limit discovered tokens from the curated set.
// A mint whose metadata cannot be fetched is skipped, not fatal.
func (s *TokenSource) NewTokens(ctx context.Context, limit int) ([]*domain.DiscoveredToken, error) {
	if limit <= 0 || limit > len(s.mints) {
		limit = len(s.mints)
	}

	tokens := make([]*domain.DiscoveredToken, 0, limit)
	for i, mint := range s.mints[:limit] {
		if err := s.limiter.Wait(ctx); err != nil {
			return tokens, err
		}

		meta, price, havePrice, err := s.fetchPair(ctx, mint)
		if err != nil {
			if ctx.Err() != nil {
				return tokens, ctx.Err()
			}
			s.logger.Warn("skipping mint after provider error",
				zap.String("mint", mint),
				zap.Error(err),
			)
			continue
		}
		if meta == nil {
			s.logger.Debug("no metadata for mint, skipping", zap.String("mint", mint))
			continue
		}

		tokens = append(tokens, s.assemble(meta, price, havePrice, i))
	}

	s.logger.Debug("assembled token batch", zap.Int("count", len(tokens)))
	return tokens, nil
}

// Trending returns the curated set reshaped as a trending list: every
// other token is marked graduated with scaled-up stats.
func (s *TokenSource) Trending(ctx context.Context, limit int) ([]*domain.DiscoveredToken, error) {
	tokens, err := s.NewTokens(ctx, limit)
	if err != nil {
		return nil, err
	}

	for i, t := range tokens {
		if i%2 != 0 {
			continue
		}
		t.IsGraduated = true
		t.BondingCurveProgress = 100
		t.MarketCap *= 2
		t.Volume24h *= 3
		t.Holders *= 2
	}
	return tokens, nil
}

// TokenMetrics assembles a single token. Returns nil when the providers
// have no metadata for the mint.
func (s *TokenSource) TokenMetrics(ctx context.Context, mint string) (*domain.DiscoveredToken, error) {
	meta, price, havePrice, err := s.fetchPair(ctx, mint)
	if err != nil {
		return nil, err
	}
	if meta == nil {
		return nil, nil
	}
	return s.assemble(meta, price, havePrice, 0), nil
}

// fetchPair fetches metadata and price for one mint in parallel.
func (s *TokenSource) fetchPair(ctx context.Context, mint string) (*domain.TokenMetadata, float64, bool, error) {
	var (
		meta      *domain.TokenMetadata
		price     float64
		havePrice bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := s.moralis.TokenMetadata(gctx, mint)
		meta = m
		return err
	})
	g.Go(func() error {
		p, ok, err := s.moralis.TokenPriceUSD(gctx, mint)
		price, havePrice = p, ok
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, 0, false, err
	}
	return meta, price, havePrice, nil
}

func (s *TokenSource) assemble(meta *domain.TokenMetadata, price float64, havePrice bool, index int) *domain.DiscoveredToken {
	s.randMu.Lock()
	simPrice := s.rand.Float64() * 0.01
	volume := s.rand.Float64() * 100_000
	holders := s.rand.Intn(1000) + 50
	progress := s.rand.Float64() * 100
	graduated := s.rand.Float64() > 0.7
	s.randMu.Unlock()

	if !havePrice {
		price = simPrice
	}

	name := meta.Name
	if name == "" {
		name = "Token " + meta.Symbol
	}

	// Stagger creation times five minutes apart by batch position.
	createdAt := s.now().UnixMilli() - int64(index)*5*time.Minute.Milliseconds()

	return &domain.DiscoveredToken{
		Mint:                 meta.Address,
		Name:                 name,
		Symbol:               meta.Symbol,
		Description:          name + " - A token on Solana",
		Image:                meta.Logo,
		Price:                price,
		MarketCap:            price * 1_000_000,
		Volume24h:            volume,
		Holders:              holders,
		CreatedTimestamp:     createdAt,
		BondingCurveProgress: progress,
		IsGraduated:          graduated,
	}
}
