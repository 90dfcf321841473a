// Package service provides read-side query services between the HTTP
// handlers and the stores.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/updownlabs/updownd/internal/domain"
)

// MarketService serves market reads, checking the cache before the
// persistent store. The engine invalidates cache entries on every mutation,
// so reads here are at most one TTL behind a failed invalidation.
type MarketService struct {
	markets     domain.MarketStore
	predictions domain.PredictionStore
	cache       domain.MarketCache
	logger      *slog.Logger
}

// NewMarketService creates a MarketService. The cache may be nil, in which
// case every read goes straight to the store.
func NewMarketService(
	markets domain.MarketStore,
	predictions domain.PredictionStore,
	cache domain.MarketCache,
	logger *slog.Logger,
) *MarketService {
	return &MarketService{
		markets:     markets,
		predictions: predictions,
		cache:       cache,
		logger:      logger.With(slog.String("component", "market_service")),
	}
}

// GetMarket retrieves a market by ID, checking the cache first and falling
// back to the persistent store on a cache miss.
func (s *MarketService) GetMarket(ctx context.Context, id uint64) (domain.Market, error) {
	if s.cache != nil {
		if m, err := s.cache.Get(ctx, id); err == nil {
			return m, nil
		}
	}

	m, err := s.markets.Get(ctx, id)
	if err != nil {
		return domain.Market{}, fmt.Errorf("market_service: get market %d: %w", id, err)
	}

	// Back-fill cache; log but do not fail on cache write errors.
	if s.cache != nil {
		if cacheErr := s.cache.Set(ctx, m); cacheErr != nil {
			s.logger.WarnContext(ctx, "cache set failed",
				slog.Uint64("market_id", id),
				slog.String("error", cacheErr.Error()),
			)
		}
	}

	return m, nil
}

// ListMarkets returns markets directly from the persistent store.
func (s *MarketService) ListMarkets(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	markets, err := s.markets.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: list markets: %w", err)
	}
	return markets, nil
}

// Count returns the total number of markets in the persistent store.
func (s *MarketService) Count(ctx context.Context) (int64, error) {
	count, err := s.markets.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("market_service: count: %w", err)
	}
	return count, nil
}

// GetPrediction retrieves the prediction one account holds on a market.
func (s *MarketService) GetPrediction(ctx context.Context, marketID uint64, account domain.Address) (domain.Prediction, error) {
	p, err := s.predictions.Get(ctx, marketID, account)
	if err != nil {
		return domain.Prediction{}, fmt.Errorf("market_service: get prediction market=%d account=%s: %w", marketID, account, err)
	}
	return p, nil
}

// ListPredictions returns the predictions recorded against a market.
func (s *MarketService) ListPredictions(ctx context.Context, marketID uint64, opts domain.ListOpts) ([]domain.Prediction, error) {
	preds, err := s.predictions.ListByMarket(ctx, marketID, opts)
	if err != nil {
		return nil, fmt.Errorf("market_service: list predictions market=%d: %w", marketID, err)
	}
	return preds, nil
}
