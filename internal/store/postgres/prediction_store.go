package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/updownlabs/updownd/internal/domain"
)

// PredictionStore implements domain.PredictionStore using PostgreSQL.
type PredictionStore struct {
	pool *pgxpool.Pool
}

// NewPredictionStore creates a PredictionStore backed by the given pool.
func NewPredictionStore(pool *pgxpool.Pool) *PredictionStore {
	return &PredictionStore{pool: pool}
}

const predictionCols = `market_id, account, direction, stake, claimed, placed_at`

// Put upserts a prediction keyed by (market, account). Returns whether an
// existing prediction was overwritten.
func (s *PredictionStore) Put(ctx context.Context, p domain.Prediction) (bool, error) {
	const query = `
		INSERT INTO predictions (market_id, account, direction, stake, claimed, placed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (market_id, account) DO UPDATE SET
			direction = EXCLUDED.direction,
			stake = EXCLUDED.stake,
			claimed = EXCLUDED.claimed,
			placed_at = EXCLUDED.placed_at
		RETURNING (xmax <> 0)`

	var overwrote bool
	err := s.pool.QueryRow(ctx, query,
		int64(p.MarketID), string(p.Account), string(p.Direction),
		int64(p.Stake), p.Claimed, p.PlacedAt,
	).Scan(&overwrote)
	if err != nil {
		return false, fmt.Errorf("postgres: put prediction market=%d account=%s: %w", p.MarketID, p.Account, err)
	}
	return overwrote, nil
}

func scanPrediction(row pgx.Row) (domain.Prediction, error) {
	var p domain.Prediction
	var marketID, stake int64
	var account, direction string
	err := row.Scan(&marketID, &account, &direction, &stake, &p.Claimed, &p.PlacedAt)
	if err != nil {
		return domain.Prediction{}, err
	}
	p.MarketID = uint64(marketID)
	p.Account = domain.Address(account)
	p.Direction = domain.Direction(direction)
	p.Stake = uint64(stake)
	return p, nil
}

// Get retrieves the prediction for (market, account).
func (s *PredictionStore) Get(ctx context.Context, marketID uint64, account domain.Address) (domain.Prediction, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+predictionCols+` FROM predictions WHERE market_id = $1 AND account = $2`,
		int64(marketID), string(account))
	p, err := scanPrediction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Prediction{}, domain.ErrNotFound
		}
		return domain.Prediction{}, fmt.Errorf("postgres: get prediction market=%d account=%s: %w", marketID, account, err)
	}
	return p, nil
}

// MarkClaimed flips the claimed flag on.
func (s *PredictionStore) MarkClaimed(ctx context.Context, marketID uint64, account domain.Address) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE predictions SET claimed = TRUE WHERE market_id = $1 AND account = $2`,
		int64(marketID), string(account))
	if err != nil {
		return fmt.Errorf("postgres: mark claimed market=%d account=%s: %w", marketID, account, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListByMarket returns predictions for a market ordered by account.
func (s *PredictionStore) ListByMarket(ctx context.Context, marketID uint64, opts domain.ListOpts) ([]domain.Prediction, error) {
	query := `SELECT ` + predictionCols + ` FROM predictions WHERE market_id = $1 ORDER BY account`
	args := []any{int64(marketID)}
	argIdx := 2

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
		return nil, fmt.Errorf("postgres: list predictions market=%d: %w", marketID, err)
	}
	defer rows.Close()

	var predictions []domain.Prediction
	for rows.Next() {
		p, err := scanPrediction(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan prediction: %w", err)
		}
		predictions = append(predictions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list predictions rows: %w", err)
	}
	return predictions, nil
}

var _ domain.PredictionStore = (*PredictionStore)(nil)
