package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized        = errors.New("unauthorized")
	ErrNotFound            = errors.New("not found")
	ErrInvalidParameter    = errors.New("invalid parameter")
	ErrInvalidPrediction   = errors.New("invalid prediction")
	ErrMarketClosed        = errors.New("market closed for predictions")
	ErrMarketNotClosed     = errors.New("market window still open")
	ErrMarketNotResolved   = errors.New("market not resolved")
	ErrAlreadyResolved     = errors.New("market already resolved")
	ErrAlreadyClaimed      = errors.New("winnings already claimed")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrLockHeld            = errors.New("lock already held")

	// ErrNotAWinner is returned when a loser calls claim; it is a kind of
	// invalid prediction, so errors.Is(err, ErrInvalidPrediction) also holds.
	ErrNotAWinner = fmt.Errorf("%w: not a winner", ErrInvalidPrediction)

	// ErrNoWinningStake guards the payout division when the winning side
	// carries zero stake. Unreachable through valid transitions (a winner
	// claiming implies stake on the winning side) but made explicit rather
	// than left as a divide-by-zero on inconsistent ledger data.
	ErrNoWinningStake = errors.New("no stake on winning side")
)
