package domain

// ProtocolParams is the singleton protocol configuration. Owner is fixed at
// bootstrap and immutable; the remaining fields mutate only through
// owner-gated admin operations.
type ProtocolParams struct {
	Owner        Address `json:"owner"`
	Oracle       Address `json:"oracle"`
	MinStake     uint64  `json:"min_stake"`
	FeePercent   uint64  `json:"fee_percent"` // 0..100
	NextMarketID uint64  `json:"next_market_id"`
}
