package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/updownlabs/updownd/internal/domain"
)

// ParamsStore implements domain.ParamsStore using a singleton params row.
type ParamsStore struct {
	pool *pgxpool.Pool
}

// NewParamsStore creates a ParamsStore backed by the given pool.
func NewParamsStore(pool *pgxpool.Pool) *ParamsStore {
	return &ParamsStore{pool: pool}
}

// Get returns the protocol parameters.
func (s *ParamsStore) Get(ctx context.Context) (domain.ProtocolParams, error) {
	var p domain.ProtocolParams
	var owner, oracle string
	var minStake, feePercent, nextID int64
	err := s.pool.QueryRow(ctx,
		`SELECT owner_addr, oracle_addr, min_stake, fee_percent, next_market_id
		 FROM params WHERE singleton`).
		Scan(&owner, &oracle, &minStake, &feePercent, &nextID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ProtocolParams{}, domain.ErrNotFound
		}
		return domain.ProtocolParams{}, fmt.Errorf("postgres: get params: %w", err)
	}
	p.Owner = domain.Address(owner)
	p.Oracle = domain.Address(oracle)
	p.MinStake = uint64(minStake)
	p.FeePercent = uint64(feePercent)
	p.NextMarketID = uint64(nextID)
	return p, nil
}

// Init writes the parameters if no row exists yet. On subsequent starts
// the existing row wins.
func (s *ParamsStore) Init(ctx context.Context, p domain.ProtocolParams) error {
	const query = `
		INSERT INTO params (singleton, owner_addr, oracle_addr, min_stake, fee_percent, next_market_id)
		VALUES (TRUE, $1, $2, $3, $4, $5)
		ON CONFLICT (singleton) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		string(p.Owner), string(p.Oracle),
		int64(p.MinStake), int64(p.FeePercent), int64(p.NextMarketID))
	if err != nil {
		return fmt.Errorf("postgres: init params: %w", err)
	}
	return nil
}

// SetOracle updates the oracle address.
func (s *ParamsStore) SetOracle(ctx context.Context, oracle domain.Address) error {
	return s.update(ctx, "oracle_addr", string(oracle))
}

// SetMinStake updates the minimum stake.
func (s *ParamsStore) SetMinStake(ctx context.Context, minStake uint64) error {
	return s.update(ctx, "min_stake", int64(minStake))
}

// SetFeePercent updates the settlement fee percentage.
func (s *ParamsStore) SetFeePercent(ctx context.Context, feePercent uint64) error {
	return s.update(ctx, "fee_percent", int64(feePercent))
}

func (s *ParamsStore) update(ctx context.Context, column string, value any) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE params SET `+column+` = $1 WHERE singleton`, value)
	if err != nil {
		return fmt.Errorf("postgres: update params %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// NextMarketID returns the current counter and advances it atomically.
func (s *ParamsStore) NextMarketID(ctx context.Context) (uint64, error) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`UPDATE params SET next_market_id = next_market_id + 1
		 WHERE singleton RETURNING next_market_id - 1`).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, domain.ErrNotFound
		}
		return 0, fmt.Errorf("postgres: next market id: %w", err)
	}
	return uint64(id), nil
}

var _ domain.ParamsStore = (*ParamsStore)(nil)
