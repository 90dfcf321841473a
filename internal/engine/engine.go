// Package engine implements the market lifecycle state machine and the
// escrow/settlement core: market creation, time-windowed staking,
// oracle-gated resolution, and proportional payout with exactly-once claim
// semantics. All state lives behind the domain store interfaces; the engine
// only validates transitions, computes amounts, and instructs the bank.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/updownlabs/updownd/internal/domain"
)

// lockTTL bounds how long a per-key mutation lock may be held. Operations
// finish in milliseconds; the TTL only matters if a process dies mid-flight.
const lockTTL = 10 * time.Second

// Engine executes every state-mutating operation against the shared
// authoritative stores. Mutations on the same market or the same
// (market, account) claim key are serialized through the lock manager.
type Engine struct {
	markets     domain.MarketStore
	predictions domain.PredictionStore
	params      domain.ParamsStore
	bank        domain.Bank
	heights     domain.HeightSource
	locks       domain.LockManager
	audit       domain.AuditStore
	bus         domain.SignalBus
	cache       domain.MarketCache
	logger      *slog.Logger
	now         func() time.Time
}

// Deps bundles the collaborators an Engine needs. Audit, Bus, and Cache are
// optional; everything else is required.
type Deps struct {
	Markets     domain.MarketStore
	Predictions domain.PredictionStore
	Params      domain.ParamsStore
	Bank        domain.Bank
	Heights     domain.HeightSource
	Locks       domain.LockManager
	Audit       domain.AuditStore
	Bus         domain.SignalBus
	Cache       domain.MarketCache
}

// New creates an Engine from the given dependencies.
func New(deps Deps, logger *slog.Logger) *Engine {
	return &Engine{
		markets:     deps.Markets,
		predictions: deps.Predictions,
		params:      deps.Params,
		bank:        deps.Bank,
		heights:     deps.Heights,
		locks:       deps.Locks,
		audit:       deps.Audit,
		bus:         deps.Bus,
		cache:       deps.Cache,
		logger:      logger.With(slog.String("component", "engine")),
		now:         time.Now,
	}
}

// CreateMarket allocates a new market from the owner. The id comes from the
// monotonically advancing counter and is never reused.
func (e *Engine) CreateMarket(ctx context.Context, caller domain.Address, startPrice, startBlock, endBlock uint64) (uint64, error) {
	params, err := e.params.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("engine: load params: %w", err)
	}
	if caller != params.Owner {
		return 0, domain.ErrUnauthorized
	}
	if startPrice == 0 {
		return 0, fmt.Errorf("%w: start price must be positive", domain.ErrInvalidParameter)
	}
	if endBlock <= startBlock {
		return 0, fmt.Errorf("%w: end block must be after start block", domain.ErrInvalidParameter)
	}

	id, err := e.params.NextMarketID(ctx)
	if err != nil {
		return 0, fmt.Errorf("engine: allocate market id: %w", err)
	}

	m := domain.Market{
		ID:         id,
		StartPrice: startPrice,
		StartBlock: startBlock,
		EndBlock:   endBlock,
		CreatedAt:  e.now().UTC(),
	}
	if err := e.markets.Create(ctx, m); err != nil {
		return 0, fmt.Errorf("engine: create market %d: %w", id, err)
	}

	e.auditLog(ctx, "market.created", map[string]any{
		"market_id":   id,
		"start_price": startPrice,
		"start_block": startBlock,
		"end_block":   endBlock,
	})
	e.publish(ctx, domain.ChannelMarkets, domain.Event{
		Type:     domain.EventMarketCreated,
		MarketID: &m.ID,
		Account:  caller,
		Amount:   startPrice,
	})

	e.logger.InfoContext(ctx, "market created",
		slog.Uint64("market_id", id),
		slog.Uint64("start_price", startPrice),
		slog.Uint64("start_block", startBlock),
		slog.Uint64("end_block", endBlock),
	)
	return id, nil
}

// SubmitPrediction escrows the caller's stake and records the position.
// The bank transfer happens before the ledger write; a failed ledger write
// refunds the stake so the operation leaves no partial residue.
//
// A second submission by the same account for the same market replaces the
// earlier record in place while the stake totals keep both amounts. The
// totals are deliberately not offset against the replaced stake; the
// overwrite is surfaced in the audit log instead.
func (e *Engine) SubmitPrediction(ctx context.Context, caller domain.Address, marketID uint64, dir domain.Direction, stake uint64) error {
	unlock, err := e.locks.Acquire(ctx, marketKey(marketID), lockTTL)
	if err != nil {
		return fmt.Errorf("engine: lock market %d: %w", marketID, err)
	}
	defer unlock()

	m, err := e.markets.Get(ctx, marketID)
	if err != nil {
		return fmt.Errorf("engine: get market %d: %w", marketID, err)
	}

	height, err := e.heights.Height(ctx)
	if err != nil {
		return fmt.Errorf("engine: read height: %w", err)
	}
	if !m.AcceptsPredictions(height) {
		return fmt.Errorf("%w: height %d outside [%d, %d)", domain.ErrMarketClosed, height, m.StartBlock, m.EndBlock)
	}

	if !dir.Valid() {
		return fmt.Errorf("%w: unknown direction %q", domain.ErrInvalidPrediction, dir)
	}
	params, err := e.params.Get(ctx)
	if err != nil {
		return fmt.Errorf("engine: load params: %w", err)
	}
	if stake < params.MinStake {
		return fmt.Errorf("%w: stake %d below minimum %d", domain.ErrInvalidPrediction, stake, params.MinStake)
	}

	balance, err := e.bank.BalanceOf(ctx, caller)
	if err != nil {
		return fmt.Errorf("engine: balance of %s: %w", caller, err)
	}
	if balance < stake {
		return fmt.Errorf("%w: have %d, need %d", domain.ErrInsufficientBalance, balance, stake)
	}

	// Escrow first; the ledger write only happens once the collateral is in
	// the pool.
	if err := e.bank.Transfer(ctx, caller, domain.PoolAccount, stake); err != nil {
		return fmt.Errorf("engine: escrow stake: %w", err)
	}

	p := domain.Prediction{
		MarketID:  marketID,
		Account:   caller,
		Direction: dir,
		Stake:     stake,
		PlacedAt:  e.now().UTC(),
	}
	overwrote, err := e.predictions.Put(ctx, p)
	if err != nil {
		e.refund(ctx, caller, stake, "prediction write failed")
		return fmt.Errorf("engine: record prediction: %w", err)
	}
	if err := e.markets.AddStake(ctx, marketID, dir, stake); err != nil {
		e.refund(ctx, caller, stake, "stake total update failed")
		return fmt.Errorf("engine: add stake: %w", err)
	}
	e.invalidateCache(ctx, marketID)

	e.auditLog(ctx, "prediction.submitted", map[string]any{
		"market_id": marketID,
		"account":   string(caller),
		"direction": string(dir),
		"stake":     stake,
		"height":    height,
		"overwrote": overwrote,
	})
	e.publish(ctx, domain.ChannelPredictions, domain.Event{
		Type:      domain.EventPredictionSubmitted,
		MarketID:  &marketID,
		Account:   caller,
		Direction: dir,
		Amount:    stake,
		Height:    height,
	})

	if overwrote {
		e.logger.WarnContext(ctx, "prediction overwrote earlier record; stake totals keep both amounts",
			slog.Uint64("market_id", marketID),
			slog.String("account", string(caller)),
		)
	}
	return nil
}

// ResolveMarket records the terminal price from the oracle and enables
// claims. The transition is one-way; a second resolution attempt fails.
func (e *Engine) ResolveMarket(ctx context.Context, caller domain.Address, marketID, endPrice uint64) error {
	params, err := e.params.Get(ctx)
	if err != nil {
		return fmt.Errorf("engine: load params: %w", err)
	}
	if caller != params.Oracle {
		return domain.ErrUnauthorized
	}

	unlock, err := e.locks.Acquire(ctx, marketKey(marketID), lockTTL)
	if err != nil {
		return fmt.Errorf("engine: lock market %d: %w", marketID, err)
	}
	defer unlock()

	m, err := e.markets.Get(ctx, marketID)
	if err != nil {
		return fmt.Errorf("engine: get market %d: %w", marketID, err)
	}

	height, err := e.heights.Height(ctx)
	if err != nil {
		return fmt.Errorf("engine: read height: %w", err)
	}
	if !m.Closed(height) {
		return fmt.Errorf("%w: height %d before end block %d", domain.ErrMarketNotClosed, height, m.EndBlock)
	}
	if m.Resolved {
		return domain.ErrAlreadyResolved
	}
	if endPrice == 0 {
		return fmt.Errorf("%w: end price must be positive", domain.ErrInvalidParameter)
	}

	if err := e.markets.SetResolved(ctx, marketID, endPrice, e.now().UTC()); err != nil {
		return fmt.Errorf("engine: resolve market %d: %w", marketID, err)
	}
	e.invalidateCache(ctx, marketID)

	m.EndPrice = endPrice
	winner := m.Winner()

	e.auditLog(ctx, "market.resolved", map[string]any{
		"market_id": marketID,
		"end_price": endPrice,
		"winner":    string(winner),
		"height":    height,
	})
	e.publish(ctx, domain.ChannelMarkets, domain.Event{
		Type:     domain.EventMarketResolved,
		MarketID: &marketID,
		EndPrice: endPrice,
		Winner:   winner,
		Height:   height,
	})

	e.logger.InfoContext(ctx, "market resolved",
		slog.Uint64("market_id", marketID),
		slog.Uint64("end_price", endPrice),
		slog.String("winner", string(winner)),
	)
	return nil
}

// ClaimWinnings pays out the caller's stake-proportional share of the pooled
// collateral, net of the protocol fee, and marks the prediction claimed.
// Payout, fee, and the claim flag commit together: a failure at any step
// unwinds the transfers already made so a retry starts clean.
func (e *Engine) ClaimWinnings(ctx context.Context, caller domain.Address, marketID uint64) (uint64, error) {
	unlock, err := e.locks.Acquire(ctx, claimKey(marketID, caller), lockTTL)
	if err != nil {
		return 0, fmt.Errorf("engine: lock claim: %w", err)
	}
	defer unlock()

	m, err := e.markets.Get(ctx, marketID)
	if err != nil {
		return 0, fmt.Errorf("engine: get market %d: %w", marketID, err)
	}
	if !m.Resolved {
		return 0, domain.ErrMarketNotResolved
	}

	p, err := e.predictions.Get(ctx, marketID, caller)
	if err != nil {
		return 0, fmt.Errorf("engine: get prediction: %w", err)
	}
	if p.Claimed {
		return 0, domain.ErrAlreadyClaimed
	}

	winner := m.Winner()
	if p.Direction != winner {
		return 0, domain.ErrNotAWinner
	}

	params, err := e.params.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("engine: load params: %w", err)
	}

	winnings, fee, err := ComputePayout(p.Stake, m.TotalStake(), m.WinningStake(), params.FeePercent)
	if err != nil {
		return 0, err
	}
	payout := winnings - fee

	if err := e.bank.Transfer(ctx, domain.PoolAccount, caller, payout); err != nil {
		return 0, fmt.Errorf("engine: pay winner: %w", err)
	}
	if fee > 0 {
		if err := e.bank.Transfer(ctx, domain.PoolAccount, params.Owner, fee); err != nil {
			e.compensate(ctx, caller, domain.PoolAccount, payout, "fee transfer failed")
			return 0, fmt.Errorf("engine: pay fee: %w", err)
		}
	}
	if err := e.predictions.MarkClaimed(ctx, marketID, caller); err != nil {
		e.compensate(ctx, caller, domain.PoolAccount, payout, "claim mark failed")
		if fee > 0 {
			e.compensate(ctx, params.Owner, domain.PoolAccount, fee, "claim mark failed")
		}
		return 0, fmt.Errorf("engine: mark claimed: %w", err)
	}

	e.auditLog(ctx, "winnings.claimed", map[string]any{
		"market_id": marketID,
		"account":   string(caller),
		"winnings":  winnings,
		"fee":       fee,
		"payout":    payout,
	})
	e.publish(ctx, domain.ChannelSettlements, domain.Event{
		Type:     domain.EventWinningsClaimed,
		MarketID: &marketID,
		Account:  caller,
		Amount:   payout,
		Fee:      fee,
	})

	e.logger.InfoContext(ctx, "winnings claimed",
		slog.Uint64("market_id", marketID),
		slog.String("account", string(caller)),
		slog.Uint64("payout", payout),
		slog.Uint64("fee", fee),
	)
	return payout, nil
}

func marketKey(id uint64) string {
	return fmt.Sprintf("market:%d", id)
}

func claimKey(id uint64, account domain.Address) string {
	return fmt.Sprintf("claim:%d:%s", id, account)
}

// refund returns an escrowed stake to the caller after a failed ledger
// write. A refund that itself fails is logged loudly; the pool then holds
// collateral with no matching ledger record, which only an operator can fix.
func (e *Engine) refund(ctx context.Context, to domain.Address, amount uint64, reason string) {
	if err := e.bank.Transfer(ctx, domain.PoolAccount, to, amount); err != nil {
		e.logger.ErrorContext(ctx, "refund failed; pool holds unmatched collateral",
			slog.String("account", string(to)),
			slog.Uint64("amount", amount),
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
	}
}

// compensate reverses a transfer made earlier in an operation that cannot
// complete.
func (e *Engine) compensate(ctx context.Context, from, to domain.Address, amount uint64, reason string) {
	if err := e.bank.Transfer(ctx, from, to, amount); err != nil {
		e.logger.ErrorContext(ctx, "compensating transfer failed",
			slog.String("from", string(from)),
			slog.String("to", string(to)),
			slog.Uint64("amount", amount),
			slog.String("reason", reason),
			slog.String("error", err.Error()),
		)
	}
}

// invalidateCache drops the cached market after a mutation. A failed
// invalidation is tolerable: entries carry a short TTL.
func (e *Engine) invalidateCache(ctx context.Context, marketID uint64) {
	if e.cache == nil {
		return
	}
	if err := e.cache.Invalidate(ctx, marketID); err != nil {
		e.logger.WarnContext(ctx, "cache invalidate failed",
			slog.Uint64("market_id", marketID),
			slog.String("error", err.Error()),
		)
	}
}

// auditLog records a successful mutation. Audit failures never unwind the
// mutation itself.
func (e *Engine) auditLog(ctx context.Context, event string, detail map[string]any) {
	if e.audit == nil {
		return
	}
	if err := e.audit.Log(ctx, event, detail); err != nil {
		e.logger.WarnContext(ctx, "audit log failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// publish sends an event envelope on the signal bus. Publish failures are
// logged and otherwise ignored.
func (e *Engine) publish(ctx context.Context, channel string, ev domain.Event) {
	if e.bus == nil {
		return
	}
	ev.ID = uuid.New().String()
	ev.At = e.now().UTC()

	payload, err := json.Marshal(ev)
	if err != nil {
		e.logger.WarnContext(ctx, "event marshal failed", slog.String("type", ev.Type))
		return
	}
	if err := e.bus.Publish(ctx, channel, payload); err != nil && !errors.Is(err, context.Canceled) {
		e.logger.WarnContext(ctx, "event publish failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
	if err := e.bus.StreamAppend(ctx, "stream:"+channel, payload); err != nil && !errors.Is(err, context.Canceled) {
		e.logger.WarnContext(ctx, "event stream append failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
	}
}
