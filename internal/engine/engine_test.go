package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	memcache "github.com/updownlabs/updownd/internal/cache/memory"
	"github.com/updownlabs/updownd/internal/domain"
	"github.com/updownlabs/updownd/internal/height"
	"github.com/updownlabs/updownd/internal/store/memory"
)

const (
	owner    = domain.Address("0x1111111111111111111111111111111111111111")
	oracle   = domain.Address("0x2222222222222222222222222222222222222222")
	alice    = domain.Address("0xAAAA111111111111111111111111111111111111")
	bob      = domain.Address("0xBBBB111111111111111111111111111111111111")
	stranger = domain.Address("0xCCCC111111111111111111111111111111111111")
)

type fixture struct {
	eng     *Engine
	bank    *memory.Bank
	heights *height.Manual
	audit   *memory.AuditStore
	markets *memory.MarketStore
	preds   *memory.PredictionStore
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st := memory.NewStore()
	params := memory.NewParamsStore(st)
	require.NoError(t, params.Init(context.Background(), domain.ProtocolParams{
		Owner:      owner,
		Oracle:     oracle,
		MinStake:   10,
		FeePercent: 2,
	}))

	f := &fixture{
		bank:    memory.NewBank(st),
		heights: height.NewManual(0),
		audit:   memory.NewAuditStore(st),
		markets: memory.NewMarketStore(st),
		preds:   memory.NewPredictionStore(st),
	}
	f.eng = New(Deps{
		Markets:     f.markets,
		Predictions: f.preds,
		Params:      params,
		Bank:        f.bank,
		Heights:     f.heights,
		Locks:       memcache.NewLockManager(),
		Audit:       f.audit,
		Bus:         memcache.NewSignalBus(),
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return f
}

func (f *fixture) fund(t *testing.T, account domain.Address, amount uint64) {
	t.Helper()
	require.NoError(t, f.bank.Credit(context.Background(), account, amount))
}

func (f *fixture) balance(t *testing.T, account domain.Address) uint64 {
	t.Helper()
	b, err := f.bank.BalanceOf(context.Background(), account)
	require.NoError(t, err)
	return b
}

func TestCreateMarket(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.eng.CreateMarket(ctx, owner, 50_000, 10, 20)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), id)

	m, err := f.eng.GetMarket(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(50_000), m.StartPrice)
	assert.Equal(t, uint64(10), m.StartBlock)
	assert.Equal(t, uint64(20), m.EndBlock)
	assert.False(t, m.Resolved)
	assert.Zero(t, m.TotalStake())

	// IDs are monotonic and never reused.
	id2, err := f.eng.CreateMarket(ctx, owner, 50_000, 10, 20)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), id2)
}

func TestCreateMarketValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.eng.CreateMarket(ctx, stranger, 50_000, 10, 20)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	// The oracle role does not imply market creation rights.
	_, err = f.eng.CreateMarket(ctx, oracle, 50_000, 10, 20)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = f.eng.CreateMarket(ctx, owner, 0, 10, 20)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)

	_, err = f.eng.CreateMarket(ctx, owner, 50_000, 20, 20)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)

	_, err = f.eng.CreateMarket(ctx, owner, 50_000, 20, 10)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestSubmitPrediction(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, alice, 1_000)

	id, err := f.eng.CreateMarket(ctx, owner, 50_000, 10, 20)
	require.NoError(t, err)

	f.heights.Advance(10)
	require.NoError(t, f.eng.SubmitPrediction(ctx, alice, id, domain.DirectionUp, 400))

	// The stake is escrowed in the pool.
	assert.Equal(t, uint64(600), f.balance(t, alice))
	assert.Equal(t, uint64(400), f.balance(t, domain.PoolAccount))

	m, err := f.eng.GetMarket(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(400), m.TotalUpStake)
	assert.Zero(t, m.TotalDownStake)

	p, err := f.eng.GetPrediction(ctx, id, alice)
	require.NoError(t, err)
	assert.Equal(t, domain.DirectionUp, p.Direction)
	assert.Equal(t, uint64(400), p.Stake)
	assert.False(t, p.Claimed)
}

func TestSubmitPredictionWindow(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, alice, 1_000)
	f.fund(t, bob, 1_000)

	id, err := f.eng.CreateMarket(ctx, owner, 50_000, 10, 20)
	require.NoError(t, err)

	// Before the window opens.
	err = f.eng.SubmitPrediction(ctx, alice, id, domain.DirectionUp, 100)
	assert.ErrorIs(t, err, domain.ErrMarketClosed)

	// First block of the window is open.
	f.heights.Advance(10)
	require.NoError(t, f.eng.SubmitPrediction(ctx, alice, id, domain.DirectionUp, 100))

	// Last block before EndBlock is open.
	require.NoError(t, f.heights.Set(19))
	require.NoError(t, f.eng.SubmitPrediction(ctx, bob, id, domain.DirectionDown, 100))

	// EndBlock itself is closed.
	require.NoError(t, f.heights.Set(20))
	err = f.eng.SubmitPrediction(ctx, alice, id, domain.DirectionUp, 100)
	assert.ErrorIs(t, err, domain.ErrMarketClosed)
}

func TestSubmitPredictionValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, alice, 50)
	f.fund(t, bob, 1_000)

	id, err := f.eng.CreateMarket(ctx, owner, 50_000, 10, 20)
	require.NoError(t, err)
	f.heights.Advance(10)

	err = f.eng.SubmitPrediction(ctx, alice, 999, domain.DirectionUp, 100)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	err = f.eng.SubmitPrediction(ctx, alice, id, domain.Direction("sideways"), 20)
	assert.ErrorIs(t, err, domain.ErrInvalidPrediction)

	// Below min stake (fixture minimum is 10).
	err = f.eng.SubmitPrediction(ctx, alice, id, domain.DirectionUp, 9)
	assert.ErrorIs(t, err, domain.ErrInvalidPrediction)

	// Insufficient balance leaves the pool untouched.
	err = f.eng.SubmitPrediction(ctx, alice, id, domain.DirectionUp, 100)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
	assert.Equal(t, uint64(50), f.balance(t, alice))
	assert.Zero(t, f.balance(t, domain.PoolAccount))

	err = f.eng.SubmitPrediction(ctx, stranger, id, domain.DirectionUp, 100)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
}

// A repeat submission replaces the prediction record while the market's
// stake totals keep both amounts.
func TestSubmitPredictionOverwrite(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, alice, 1_000)

	id, err := f.eng.CreateMarket(ctx, owner, 50_000, 10, 20)
	require.NoError(t, err)
	f.heights.Advance(10)

	require.NoError(t, f.eng.SubmitPrediction(ctx, alice, id, domain.DirectionUp, 300))
	require.NoError(t, f.eng.SubmitPrediction(ctx, alice, id, domain.DirectionDown, 200))

	p, err := f.eng.GetPrediction(ctx, id, alice)
	require.NoError(t, err)
	assert.Equal(t, domain.DirectionDown, p.Direction)
	assert.Equal(t, uint64(200), p.Stake)

	m, err := f.eng.GetMarket(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(300), m.TotalUpStake)
	assert.Equal(t, uint64(200), m.TotalDownStake)
	assert.Equal(t, uint64(500), f.balance(t, domain.PoolAccount))

	// The overwrite is surfaced in the audit trail.
	entries, err := f.audit.List(ctx, domain.ListOpts{Limit: 1})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "prediction.submitted", entries[0].Event)
	assert.Equal(t, true, entries[0].Detail["overwrote"])
}

func TestResolveMarket(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.eng.CreateMarket(ctx, owner, 50_000, 10, 20)
	require.NoError(t, err)

	// Not even the oracle can resolve while the window is open.
	f.heights.Advance(15)
	err = f.eng.ResolveMarket(ctx, oracle, id, 60_000)
	assert.ErrorIs(t, err, domain.ErrMarketNotClosed)

	require.NoError(t, f.heights.Set(20))

	err = f.eng.ResolveMarket(ctx, owner, id, 60_000)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	err = f.eng.ResolveMarket(ctx, oracle, id, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)

	require.NoError(t, f.eng.ResolveMarket(ctx, oracle, id, 60_000))

	m, err := f.eng.GetMarket(ctx, id)
	require.NoError(t, err)
	assert.True(t, m.Resolved)
	assert.Equal(t, uint64(60_000), m.EndPrice)
	assert.NotNil(t, m.ResolvedAt)
	assert.Equal(t, domain.DirectionUp, m.Winner())

	// The transition is one-way.
	err = f.eng.ResolveMarket(ctx, oracle, id, 70_000)
	assert.ErrorIs(t, err, domain.ErrAlreadyResolved)
}

// Ties resolve Down: only a strictly higher end price makes Up win.
func TestResolveMarketTie(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.eng.CreateMarket(ctx, owner, 50_000, 10, 20)
	require.NoError(t, err)
	f.heights.Advance(20)

	require.NoError(t, f.eng.ResolveMarket(ctx, oracle, id, 50_000))

	m, err := f.eng.GetMarket(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.DirectionDown, m.Winner())
	assert.Zero(t, m.WinningStake())
}

func TestClaimWinnings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, alice, 1_000_000)
	f.fund(t, bob, 3_000_000)

	id, err := f.eng.CreateMarket(ctx, owner, 50_000, 10, 20)
	require.NoError(t, err)
	f.heights.Advance(10)

	require.NoError(t, f.eng.SubmitPrediction(ctx, alice, id, domain.DirectionUp, 1_000_000))
	require.NoError(t, f.eng.SubmitPrediction(ctx, bob, id, domain.DirectionDown, 3_000_000))

	// Claims before resolution are rejected.
	_, err = f.eng.ClaimWinnings(ctx, alice, id)
	assert.ErrorIs(t, err, domain.ErrMarketNotResolved)

	require.NoError(t, f.heights.Set(20))
	require.NoError(t, f.eng.ResolveMarket(ctx, oracle, id, 60_000))

	// Alice staked the entire winning side and collects the whole pool,
	// net of the 2% fee on her gross winnings.
	payout, err := f.eng.ClaimWinnings(ctx, alice, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(3_920_000), payout)
	assert.Equal(t, uint64(3_920_000), f.balance(t, alice))
	assert.Equal(t, uint64(80_000), f.balance(t, owner))
	assert.Zero(t, f.balance(t, domain.PoolAccount))

	// Exactly once.
	_, err = f.eng.ClaimWinnings(ctx, alice, id)
	assert.ErrorIs(t, err, domain.ErrAlreadyClaimed)

	// Losers get nothing.
	_, err = f.eng.ClaimWinnings(ctx, bob, id)
	assert.ErrorIs(t, err, domain.ErrNotAWinner)
	assert.Zero(t, f.balance(t, bob))

	// No prediction, no claim.
	_, err = f.eng.ClaimWinnings(ctx, stranger, id)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

// Truncation residue from proportional payouts stays in the pool and total
// funds are conserved across the whole lifecycle.
func TestClaimWinningsConservation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	accounts := []domain.Address{alice, bob, stranger}
	stakes := []uint64{333, 334, 500}
	for i, a := range accounts {
		f.fund(t, a, stakes[i])
	}

	id, err := f.eng.CreateMarket(ctx, owner, 50_000, 10, 20)
	require.NoError(t, err)
	f.heights.Advance(10)

	require.NoError(t, f.eng.SubmitPrediction(ctx, alice, id, domain.DirectionUp, 333))
	require.NoError(t, f.eng.SubmitPrediction(ctx, bob, id, domain.DirectionUp, 334))
	require.NoError(t, f.eng.SubmitPrediction(ctx, stranger, id, domain.DirectionDown, 500))

	require.NoError(t, f.heights.Set(20))
	require.NoError(t, f.eng.ResolveMarket(ctx, oracle, id, 51_000))

	var distributed uint64
	for _, a := range []domain.Address{alice, bob} {
		payout, err := f.eng.ClaimWinnings(ctx, a, id)
		require.NoError(t, err)
		distributed += payout
	}

	total := uint64(333 + 334 + 500)
	pool := f.balance(t, domain.PoolAccount)
	fees := f.balance(t, owner)
	assert.Equal(t, total, distributed+fees+pool)
	assert.NotZero(t, pool, "expected truncation residue in the pool")
}

func TestAdminParams(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	assert.ErrorIs(t, f.eng.SetOracle(ctx, stranger, stranger), domain.ErrUnauthorized)
	assert.ErrorIs(t, f.eng.SetOracle(ctx, owner, ""), domain.ErrInvalidParameter)
	assert.ErrorIs(t, f.eng.SetMinStake(ctx, owner, 0), domain.ErrInvalidParameter)
	assert.ErrorIs(t, f.eng.SetFeePercent(ctx, owner, 101), domain.ErrInvalidParameter)

	require.NoError(t, f.eng.SetOracle(ctx, owner, stranger))
	require.NoError(t, f.eng.SetMinStake(ctx, owner, 500))
	require.NoError(t, f.eng.SetFeePercent(ctx, owner, 0))

	params, err := f.eng.Params(ctx)
	require.NoError(t, err)
	assert.Equal(t, stranger, params.Oracle)
	assert.Equal(t, uint64(500), params.MinStake)
	assert.Zero(t, params.FeePercent)

	// The replaced oracle loses resolution rights; the new one gains them.
	id, err := f.eng.CreateMarket(ctx, owner, 50_000, 10, 20)
	require.NoError(t, err)
	f.heights.Advance(20)
	assert.ErrorIs(t, f.eng.ResolveMarket(ctx, oracle, id, 60_000), domain.ErrUnauthorized)
	require.NoError(t, f.eng.ResolveMarket(ctx, stranger, id, 60_000))
}

func TestWithdrawFees(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.fund(t, alice, 1_000)

	id, err := f.eng.CreateMarket(ctx, owner, 50_000, 10, 20)
	require.NoError(t, err)
	f.heights.Advance(10)
	require.NoError(t, f.eng.SubmitPrediction(ctx, alice, id, domain.DirectionUp, 1_000))

	assert.ErrorIs(t, f.eng.WithdrawFees(ctx, stranger, 100), domain.ErrUnauthorized)
	assert.ErrorIs(t, f.eng.WithdrawFees(ctx, owner, 0), domain.ErrInvalidParameter)
	assert.ErrorIs(t, f.eng.WithdrawFees(ctx, owner, 1_001), domain.ErrInsufficientBalance)

	require.NoError(t, f.eng.WithdrawFees(ctx, owner, 1_000))
	assert.Equal(t, uint64(1_000), f.balance(t, owner))
	assert.Zero(t, f.balance(t, domain.PoolAccount))
}

func TestCredit(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	assert.ErrorIs(t, f.eng.Credit(ctx, stranger, alice, 100), domain.ErrUnauthorized)
	assert.ErrorIs(t, f.eng.Credit(ctx, owner, "", 100), domain.ErrInvalidParameter)
	assert.ErrorIs(t, f.eng.Credit(ctx, owner, alice, 0), domain.ErrInvalidParameter)

	require.NoError(t, f.eng.Credit(ctx, owner, alice, 2_500))
	assert.Equal(t, uint64(2_500), f.balance(t, alice))
}

func TestQueries(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	for i := 0; i < 3; i++ {
		_, err := f.eng.CreateMarket(ctx, owner, 50_000, 10, 20)
		require.NoError(t, err)
	}

	markets, err := f.eng.ListMarkets(ctx, domain.ListOpts{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, markets, 2)

	n, err := f.eng.CountMarkets(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	h, err := f.eng.Height(ctx)
	require.NoError(t, err)
	assert.Zero(t, h)

	pool, err := f.eng.PoolBalance(ctx)
	require.NoError(t, err)
	assert.Zero(t, pool)
}
