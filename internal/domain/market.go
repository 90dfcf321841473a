package domain

import "time"

// Direction is the binary side of a prediction, relative to the market's
// start price.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Valid reports whether d is one of the two recognized directions.
func (d Direction) Valid() bool {
	return d == DirectionUp || d == DirectionDown
}

// Market is a bounded-time binary-outcome contest over a reference price.
// Stake totals grow monotonically during the [StartBlock, EndBlock) window;
// EndPrice stays zero until the oracle resolves the market.
type Market struct {
	ID             uint64    `json:"id"`
	StartPrice     uint64    `json:"start_price"`
	EndPrice       uint64    `json:"end_price"`
	TotalUpStake   uint64    `json:"total_up_stake"`
	TotalDownStake uint64    `json:"total_down_stake"`
	StartBlock     uint64    `json:"start_block"`
	EndBlock       uint64    `json:"end_block"`
	Resolved       bool      `json:"resolved"`
	CreatedAt      time.Time `json:"created_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

// TotalStake returns the pooled collateral across both directions.
func (m Market) TotalStake() uint64 {
	return m.TotalUpStake + m.TotalDownStake
}

// AcceptsPredictions reports whether the staking window is open at the given
// height. Resolution status is irrelevant here: a market can only be resolved
// at or after EndBlock, so the two guards never overlap.
func (m Market) AcceptsPredictions(height uint64) bool {
	return height >= m.StartBlock && height < m.EndBlock
}

// Closed reports whether the staking window has ended at the given height.
func (m Market) Closed(height uint64) bool {
	return height >= m.EndBlock
}

// Winner returns the winning direction of a resolved market. Ties resolve to
// Down: only a strictly higher end price makes Up win.
func (m Market) Winner() Direction {
	if m.EndPrice > m.StartPrice {
		return DirectionUp
	}
	return DirectionDown
}

// WinningStake returns the aggregate stake on the winning side of a resolved
// market.
func (m Market) WinningStake() uint64 {
	if m.Winner() == DirectionUp {
		return m.TotalUpStake
	}
	return m.TotalDownStake
}
