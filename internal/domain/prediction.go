package domain

import "time"

// Address identifies a participant account. Callers arrive already
// authenticated; the engine only ever compares addresses for equality.
// Participant addresses are canonicalized to their checksummed hex form at
// the HTTP boundary; reserved internal accounts such as PoolAccount are
// plain names.
type Address string

// PoolAccount is the reserved bank account that holds all escrowed
// collateral. It is not a participant address and never submits predictions.
const PoolAccount Address = "pool"

// Prediction is one participant's position in one market. There is at most
// one record per (market, account) pair; a later submission overwrites the
// earlier record in place.
type Prediction struct {
	MarketID  uint64    `json:"market_id"`
	Account   Address   `json:"account"`
	Direction Direction `json:"direction"`
	Stake     uint64    `json:"stake"`
	Claimed   bool      `json:"claimed"`
	PlacedAt  time.Time `json:"placed_at"`
}
