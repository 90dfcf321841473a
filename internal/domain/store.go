package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit    int
	Offset   int
	Resolved *bool // nil = both open and resolved markets
}

// MarketStore persists market records. Implementations must keep the stake
// totals and the resolved flag consistent under the engine's per-key
// serialization; they are never asked to mutate the same market concurrently.
type MarketStore interface {
	Create(ctx context.Context, m Market) error
	Get(ctx context.Context, id uint64) (Market, error)
	AddStake(ctx context.Context, id uint64, dir Direction, stake uint64) error
	SetResolved(ctx context.Context, id uint64, endPrice uint64, at time.Time) error
	List(ctx context.Context, opts ListOpts) ([]Market, error)
	Count(ctx context.Context) (int64, error)
}

// PredictionStore persists one record per (market, account) pair.
type PredictionStore interface {
	// Put writes the prediction, replacing any existing record for the same
	// (market, account) key. It reports whether an earlier record was
	// overwritten.
	Put(ctx context.Context, p Prediction) (overwrote bool, err error)
	Get(ctx context.Context, marketID uint64, account Address) (Prediction, error)
	// MarkClaimed flips the one-way claimed flag. A claim that fails after
	// payout is reversed with compensating transfers, so the flag never
	// needs to come back off.
	MarkClaimed(ctx context.Context, marketID uint64, account Address) error
	ListByMarket(ctx context.Context, marketID uint64, opts ListOpts) ([]Prediction, error)
}

// ParamsStore persists the protocol parameter singleton.
type ParamsStore interface {
	Get(ctx context.Context) (ProtocolParams, error)
	// Init writes the bootstrap parameters only if none exist yet. The owner
	// recorded by the first Init is immutable thereafter.
	Init(ctx context.Context, p ProtocolParams) error
	SetOracle(ctx context.Context, oracle Address) error
	SetMinStake(ctx context.Context, minStake uint64) error
	SetFeePercent(ctx context.Context, feePercent uint64) error
	// NextMarketID returns the current counter value and advances it by one.
	NextMarketID(ctx context.Context) (uint64, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists an append-only audit log of settlement activity.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

// SettledMarketStore provides read access for archival of fully settled
// markets. The postgres MarketStore satisfies it.
type SettledMarketStore interface {
	ListResolvedBefore(ctx context.Context, before time.Time) ([]Market, error)
}
