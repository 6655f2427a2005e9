package postgres

import (
	"context"
	"fmt"

	"trenches-buddy/internal/domain"
	"trenches-buddy/internal/storage"
)

// DeploymentStore persists buddy deployments in PostgreSQL.
// Save replaces the whole list inside one transaction so readers never
// observe a partially written set.
type DeploymentStore struct {
	pool *Pool
}

// NewDeploymentStore creates a Postgres-backed deployment store.
func NewDeploymentStore(pool *Pool) *DeploymentStore {
	return &DeploymentStore{pool: pool}
}

var _ storage.DeploymentStore = (*DeploymentStore)(nil)

// Load retrieves all deployments in saved order.
func (s *DeploymentStore) Load(ctx context.Context) ([]*domain.BuddyDeployment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, wallet_address, deployed_at, buddy_name,
		       risk_level, strategy, max_trade_size, mode, is_active
		FROM buddy_deployments
		ORDER BY position ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query deployments: %w", err)
	}
	defer rows.Close()

	deployments := []*domain.BuddyDeployment{}
	for rows.Next() {
		d := &domain.BuddyDeployment{}
		var strategy, mode string
		if err := rows.Scan(
			&d.ID,
			&d.WalletAddress,
			&d.DeployedAt,
			&d.BuddyName,
			&d.Configuration.RiskLevel,
			&strategy,
			&d.Configuration.MaxTradeSize,
			&mode,
			&d.IsActive,
		); err != nil {
			return nil, fmt.Errorf("scan deployment: %w", err)
		}
		d.Configuration.Strategy = domain.Strategy(strategy)
		d.Configuration.Mode = domain.TradingMode(mode)
		deployments = append(deployments, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deployments: %w", err)
	}

	return deployments, nil
}

// Save replaces the full deployment list.
func (s *DeploymentStore) Save(ctx context.Context, deployments []*domain.BuddyDeployment) error {
	for _, d := range deployments {
		if d == nil || d.ID == "" {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM buddy_deployments`); err != nil {
		return fmt.Errorf("clear deployments: %w", err)
	}

	for i, d := range deployments {
		_, err := tx.Exec(ctx, `
			INSERT INTO buddy_deployments (
				id, wallet_address, deployed_at, buddy_name,
				risk_level, strategy, max_trade_size, mode, is_active, position
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`,
			d.ID,
			d.WalletAddress,
			d.DeployedAt,
			d.BuddyName,
			d.Configuration.RiskLevel,
			string(d.Configuration.Strategy),
			d.Configuration.MaxTradeSize,
			string(d.Configuration.Mode),
			d.IsActive,
			i,
		)
		if err != nil {
			if isDuplicateKeyError(err) {
				return fmt.Errorf("%w: duplicate deployment id %s", storage.ErrInvalidInput, d.ID)
			}
			return fmt.Errorf("insert deployment %s: %w", d.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit deployments: %w", err)
	}
	return nil
}
