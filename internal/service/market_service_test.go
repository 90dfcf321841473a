package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/updownlabs/updownd/internal/domain"
	"github.com/updownlabs/updownd/internal/store/memory"
)

// stubCache is an in-test MarketCache that counts hits and misses.
type stubCache struct {
	entries map[uint64]domain.Market
	hits    int
	sets    int
}

func newStubCache() *stubCache {
	return &stubCache{entries: map[uint64]domain.Market{}}
}

func (c *stubCache) Set(ctx context.Context, m domain.Market) error {
	c.sets++
	c.entries[m.ID] = m
	return nil
}

func (c *stubCache) Get(ctx context.Context, id uint64) (domain.Market, error) {
	m, ok := c.entries[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	c.hits++
	return m, nil
}

func (c *stubCache) Invalidate(ctx context.Context, id uint64) error {
	delete(c.entries, id)
	return nil
}

func newService(t *testing.T, cache domain.MarketCache) (*MarketService, *memory.MarketStore, *memory.PredictionStore) {
	t.Helper()
	st := memory.NewStore()
	markets := memory.NewMarketStore(st)
	preds := memory.NewPredictionStore(st)
	svc := NewMarketService(markets, preds, cache, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return svc, markets, preds
}

func TestGetMarketReadThrough(t *testing.T) {
	ctx := context.Background()
	cache := newStubCache()
	svc, markets, _ := newService(t, cache)

	require.NoError(t, markets.Create(ctx, domain.Market{ID: 1, StartPrice: 50_000, EndBlock: 10}))

	// First read misses the cache and back-fills it.
	m, err := svc.GetMarket(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(50_000), m.StartPrice)
	assert.Equal(t, 0, cache.hits)
	assert.Equal(t, 1, cache.sets)

	// Second read is served from the cache.
	_, err = svc.GetMarket(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, 1, cache.sets)

	_, err = svc.GetMarket(ctx, 99)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetMarketNoCache(t *testing.T) {
	ctx := context.Background()
	svc, markets, _ := newService(t, nil)

	require.NoError(t, markets.Create(ctx, domain.Market{ID: 1, StartPrice: 50_000, EndBlock: 10}))

	m, err := svc.GetMarket(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), m.ID)
}

func TestListAndCount(t *testing.T) {
	ctx := context.Background()
	svc, markets, preds := newService(t, nil)

	for id := uint64(1); id <= 3; id++ {
		require.NoError(t, markets.Create(ctx, domain.Market{ID: id, StartPrice: 1, EndBlock: 10}))
	}
	_, err := preds.Put(ctx, domain.Prediction{MarketID: 2, Account: "alice", Direction: domain.DirectionUp, Stake: 5})
	require.NoError(t, err)

	got, err := svc.ListMarkets(ctx, domain.ListOpts{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, got, 2)

	n, err := svc.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	ps, err := svc.ListPredictions(ctx, 2, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, domain.Address("alice"), ps[0].Account)
}
