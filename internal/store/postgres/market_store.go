package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/updownlabs/updownd/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL. Amounts,
// prices, and heights are stored as BIGINT; values are expected to stay
// below 2^63.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketCols = `id, start_price, end_price, total_up_stake, total_down_stake,
	start_block, end_block, resolved, created_at, resolved_at`

// Create inserts a new market record.
func (s *MarketStore) Create(ctx context.Context, m domain.Market) error {
	const query = `
		INSERT INTO markets (
			id, start_price, end_price, total_up_stake, total_down_stake,
			start_block, end_block, resolved, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, query,
		int64(m.ID), int64(m.StartPrice), int64(m.EndPrice),
		int64(m.TotalUpStake), int64(m.TotalDownStake),
		int64(m.StartBlock), int64(m.EndBlock),
		m.Resolved, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create market %d: %w", m.ID, err)
	}
	return nil
}

// scanMarket scans a single market row into a domain.Market.
func scanMarket(row pgx.Row) (domain.Market, error) {
	var m domain.Market
	var id, startPrice, endPrice, up, down, startBlock, endBlock int64
	err := row.Scan(
		&id, &startPrice, &endPrice, &up, &down,
		&startBlock, &endBlock, &m.Resolved, &m.CreatedAt, &m.ResolvedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.ID = uint64(id)
	m.StartPrice = uint64(startPrice)
	m.EndPrice = uint64(endPrice)
	m.TotalUpStake = uint64(up)
	m.TotalDownStake = uint64(down)
	m.StartBlock = uint64(startBlock)
	m.EndBlock = uint64(endBlock)
	return m, nil
}

// Get retrieves a market by id.
func (s *MarketStore) Get(ctx context.Context, id uint64) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE id = $1`, int64(id))
	m, err := scanMarket(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %d: %w", id, err)
	}
	return m, nil
}

// AddStake adds stake to the given direction's running total.
func (s *MarketStore) AddStake(ctx context.Context, id uint64, dir domain.Direction, stake uint64) error {
	column := "total_down_stake"
	if dir == domain.DirectionUp {
		column = "total_up_stake"
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE markets SET `+column+` = `+column+` + $2 WHERE id = $1`,
		int64(id), int64(stake),
	)
	if err != nil {
		return fmt.Errorf("postgres: add stake to market %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SetResolved records the terminal price and flips the resolved flag.
func (s *MarketStore) SetResolved(ctx context.Context, id uint64, endPrice uint64, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE markets SET end_price = $2, resolved = TRUE, resolved_at = $3 WHERE id = $1`,
		int64(id), int64(endPrice), at,
	)
	if err != nil {
		return fmt.Errorf("postgres: resolve market %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List returns markets ordered by id with pagination and an optional
// resolved filter.
func (s *MarketStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets`
	args := []any{}
	argIdx := 1

	if opts.Resolved != nil {
		query += fmt.Sprintf(" WHERE resolved = $%d", argIdx)
		args = append(args, *opts.Resolved)
		argIdx++
	}

	query += " ORDER BY id"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets rows: %w", err)
	}
	return markets, nil
}

// Count returns the total number of markets.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM markets").Scan(&count); err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}

// ListResolvedBefore returns markets resolved strictly before the cutoff,
// for archival.
func (s *MarketStore) ListResolvedBefore(ctx context.Context, before time.Time) ([]domain.Market, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+marketCols+` FROM markets
		 WHERE resolved AND resolved_at < $1 ORDER BY id`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list resolved markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan resolved market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list resolved markets rows: %w", err)
	}
	return markets, nil
}

// Compile-time interface checks.
var (
	_ domain.MarketStore        = (*MarketStore)(nil)
	_ domain.SettledMarketStore = (*MarketStore)(nil)
)
