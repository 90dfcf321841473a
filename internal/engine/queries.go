package engine

import (
	"context"
	"fmt"

	"github.com/updownlabs/updownd/internal/domain"
)

// GetMarket returns the stored market record.
func (e *Engine) GetMarket(ctx context.Context, id uint64) (domain.Market, error) {
	m, err := e.markets.Get(ctx, id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("engine: get market %d: %w", id, err)
	}
	return m, nil
}

// ListMarkets returns markets with pagination and an optional resolved
// filter.
func (e *Engine) ListMarkets(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	markets, err := e.markets.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("engine: list markets: %w", err)
	}
	return markets, nil
}

// CountMarkets returns the total number of markets ever created.
func (e *Engine) CountMarkets(ctx context.Context) (int64, error) {
	n, err := e.markets.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("engine: count markets: %w", err)
	}
	return n, nil
}

// GetPrediction returns the stored prediction for one (market, account)
// pair.
func (e *Engine) GetPrediction(ctx context.Context, marketID uint64, account domain.Address) (domain.Prediction, error) {
	p, err := e.predictions.Get(ctx, marketID, account)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("engine: get prediction: %w", err)
	}
	return p, nil
}

// PoolBalance returns the collateral currently held in escrow.
func (e *Engine) PoolBalance(ctx context.Context) (uint64, error) {
	balance, err := e.bank.BalanceOf(ctx, domain.PoolAccount)
	if err != nil {
		return 0, fmt.Errorf("engine: pool balance: %w", err)
	}
	return balance, nil
}

// Params returns the current protocol parameters.
func (e *Engine) Params(ctx context.Context) (domain.ProtocolParams, error) {
	params, err := e.params.Get(ctx)
	if err != nil {
		return domain.ProtocolParams{}, fmt.Errorf("engine: load params: %w", err)
	}
	return params, nil
}

// Height reports the engine's current view of the external block height.
func (e *Engine) Height(ctx context.Context) (uint64, error) {
	h, err := e.heights.Height(ctx)
	if err != nil {
		return 0, fmt.Errorf("engine: read height: %w", err)
	}
	return h, nil
}
