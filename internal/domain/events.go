package domain

import "time"

// Pub/sub channels carrying engine events.
const (
	ChannelMarkets     = "markets"
	ChannelPredictions = "predictions"
	ChannelSettlements = "settlements"
	ChannelStatus      = "status"
)

// Event types published on the signal bus.
const (
	EventMarketCreated       = "market_created"
	EventPredictionSubmitted = "prediction_submitted"
	EventMarketResolved      = "market_resolved"
	EventWinningsClaimed     = "winnings_claimed"
	EventParamsUpdated       = "params_updated"
	EventFeesWithdrawn       = "fees_withdrawn"
)

// Event is the JSON envelope published for every successful mutation.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	MarketID  *uint64   `json:"market_id,omitempty"`
	Account   Address   `json:"account,omitempty"`
	Direction Direction `json:"direction,omitempty"`
	Amount    uint64    `json:"amount,omitempty"`
	Fee       uint64    `json:"fee,omitempty"`
	EndPrice  uint64    `json:"end_price,omitempty"`
	Winner    Direction `json:"winner,omitempty"`
	Height    uint64    `json:"height,omitempty"`
	At        time.Time `json:"at"`
}
