package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/updownlabs/updownd/internal/domain"
)

func TestBank(t *testing.T) {
	ctx := context.Background()
	bank := NewBank(NewStore())

	// Unknown accounts hold zero.
	b, err := bank.BalanceOf(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, b)

	require.NoError(t, bank.Credit(ctx, "alice", 1_000))
	require.NoError(t, bank.Transfer(ctx, "alice", "pool", 400))

	b, err = bank.BalanceOf(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(600), b)
	b, err = bank.BalanceOf(ctx, "pool")
	require.NoError(t, err)
	assert.Equal(t, uint64(400), b)

	// Overdrafts fail without moving anything.
	err = bank.Transfer(ctx, "alice", "pool", 601)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	b, _ = bank.BalanceOf(ctx, "alice")
	assert.Equal(t, uint64(600), b)

	// Zero-amount transfers are no-ops even from unknown accounts.
	require.NoError(t, bank.Transfer(ctx, "nobody", "pool", 0))
}

func TestMarketStore(t *testing.T) {
	ctx := context.Background()
	ms := NewMarketStore(NewStore())

	m := domain.Market{ID: 1, StartPrice: 50_000, StartBlock: 10, EndBlock: 20}
	require.NoError(t, ms.Create(ctx, m))
	assert.Error(t, ms.Create(ctx, m), "duplicate id must be rejected")

	_, err := ms.Get(ctx, 99)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, ms.AddStake(ctx, 1, domain.DirectionUp, 300))
	require.NoError(t, ms.AddStake(ctx, 1, domain.DirectionDown, 200))
	assert.ErrorIs(t, ms.AddStake(ctx, 99, domain.DirectionUp, 1), domain.ErrNotFound)

	got, err := ms.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), got.TotalUpStake)
	assert.Equal(t, uint64(200), got.TotalDownStake)

	at := time.Now().UTC()
	require.NoError(t, ms.SetResolved(ctx, 1, 60_000, at))
	got, err = ms.Get(ctx, 1)
	require.NoError(t, err)
	assert.True(t, got.Resolved)
	assert.Equal(t, uint64(60_000), got.EndPrice)
	require.NotNil(t, got.ResolvedAt)
	assert.Equal(t, at, *got.ResolvedAt)
}

func TestMarketStoreList(t *testing.T) {
	ctx := context.Background()
	ms := NewMarketStore(NewStore())

	for id := uint64(1); id <= 5; id++ {
		require.NoError(t, ms.Create(ctx, domain.Market{ID: id, StartPrice: 1, StartBlock: 0, EndBlock: 10}))
	}
	require.NoError(t, ms.SetResolved(ctx, 2, 2, time.Now().UTC()))
	require.NoError(t, ms.SetResolved(ctx, 4, 2, time.Now().UTC()))

	all, err := ms.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, uint64(1), all[0].ID, "ordered by id")

	resolved := true
	got, err := ms.List(ctx, domain.ListOpts{Resolved: &resolved})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint64(2), got[0].ID)
	assert.Equal(t, uint64(4), got[1].ID)

	open := false
	got, err = ms.List(ctx, domain.ListOpts{Resolved: &open})
	require.NoError(t, err)
	assert.Len(t, got, 3)

	page, err := ms.List(ctx, domain.ListOpts{Limit: 2, Offset: 3})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, uint64(4), page[0].ID)

	none, err := ms.List(ctx, domain.ListOpts{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, none)

	n, err := ms.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestMarketStoreListResolvedBefore(t *testing.T) {
	ctx := context.Background()
	ms := NewMarketStore(NewStore())
	cutoff := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, ms.Create(ctx, domain.Market{ID: 1, StartPrice: 1, EndBlock: 10}))
	require.NoError(t, ms.Create(ctx, domain.Market{ID: 2, StartPrice: 1, EndBlock: 10}))
	require.NoError(t, ms.Create(ctx, domain.Market{ID: 3, StartPrice: 1, EndBlock: 10}))
	require.NoError(t, ms.SetResolved(ctx, 1, 2, cutoff.Add(-time.Hour)))
	require.NoError(t, ms.SetResolved(ctx, 2, 2, cutoff)) // not strictly before

	got, err := ms.ListResolvedBefore(ctx, cutoff)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(1), got[0].ID)
}

func TestPredictionStore(t *testing.T) {
	ctx := context.Background()
	ps := NewPredictionStore(NewStore())

	p := domain.Prediction{MarketID: 1, Account: "alice", Direction: domain.DirectionUp, Stake: 100}
	overwrote, err := ps.Put(ctx, p)
	require.NoError(t, err)
	assert.False(t, overwrote)

	p.Direction = domain.DirectionDown
	p.Stake = 200
	overwrote, err = ps.Put(ctx, p)
	require.NoError(t, err)
	assert.True(t, overwrote)

	got, err := ps.Get(ctx, 1, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.DirectionDown, got.Direction)
	assert.Equal(t, uint64(200), got.Stake)

	_, err = ps.Get(ctx, 1, "bob")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, ps.MarkClaimed(ctx, 1, "alice"))
	got, err = ps.Get(ctx, 1, "alice")
	require.NoError(t, err)
	assert.True(t, got.Claimed)

	assert.ErrorIs(t, ps.MarkClaimed(ctx, 1, "bob"), domain.ErrNotFound)
}

func TestPredictionStoreListByMarket(t *testing.T) {
	ctx := context.Background()
	ps := NewPredictionStore(NewStore())

	for _, acct := range []domain.Address{"carol", "alice", "bob"} {
		_, err := ps.Put(ctx, domain.Prediction{MarketID: 1, Account: acct, Direction: domain.DirectionUp, Stake: 10})
		require.NoError(t, err)
	}
	_, err := ps.Put(ctx, domain.Prediction{MarketID: 2, Account: "dave", Direction: domain.DirectionDown, Stake: 10})
	require.NoError(t, err)

	got, err := ps.ListByMarket(ctx, 1, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, domain.Address("alice"), got[0].Account, "ordered by account")

	page, err := ps.ListByMarket(ctx, 1, domain.ListOpts{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, domain.Address("bob"), page[0].Account)
}

func TestParamsStore(t *testing.T) {
	ctx := context.Background()
	ps := NewParamsStore(NewStore())

	_, err := ps.Get(ctx)
	assert.ErrorIs(t, err, ErrParamsNotInitialized)
	_, err = ps.NextMarketID(ctx)
	assert.ErrorIs(t, err, ErrParamsNotInitialized)

	require.NoError(t, ps.Init(ctx, domain.ProtocolParams{Owner: "owner", Oracle: "oracle", MinStake: 10, FeePercent: 2}))

	// A second Init is ignored; the first owner is immutable.
	require.NoError(t, ps.Init(ctx, domain.ProtocolParams{Owner: "usurper"}))
	got, err := ps.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Address("owner"), got.Owner)

	id, err := ps.NextMarketID(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), id)
	id, err = ps.NextMarketID(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id)

	require.NoError(t, ps.SetOracle(ctx, "oracle2"))
	require.NoError(t, ps.SetMinStake(ctx, 50))
	require.NoError(t, ps.SetFeePercent(ctx, 7))
	got, err = ps.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.Address("oracle2"), got.Oracle)
	assert.Equal(t, uint64(50), got.MinStake)
	assert.Equal(t, uint64(7), got.FeePercent)
}

func TestAuditStore(t *testing.T) {
	ctx := context.Background()
	as := NewAuditStore(NewStore())

	require.NoError(t, as.Log(ctx, "market.created", map[string]any{"market_id": uint64(1)}))
	require.NoError(t, as.Log(ctx, "market.resolved", map[string]any{"market_id": uint64(1)}))
	require.NoError(t, as.Log(ctx, "winnings.claimed", map[string]any{"market_id": uint64(1)}))

	got, err := as.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "winnings.claimed", got[0].Event, "newest first")
	assert.Greater(t, got[0].ID, got[1].ID)

	page, err := as.List(ctx, domain.ListOpts{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "market.resolved", page[0].Event)
}
