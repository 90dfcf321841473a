package engine

import (
	"fmt"
	"math/bits"

	"github.com/updownlabs/updownd/internal/domain"
)

// ComputePayout returns the gross winnings and protocol fee for a winning
// stake. All arithmetic is integer with truncation toward zero, evaluated in
// 128 bits so stake*totalStake cannot overflow:
//
//	winnings = floor(stake * totalStake / winningStake)
//	fee      = floor(winnings * feePercent / 100)
//
// Because stake never exceeds winningStake and winningStake never exceeds
// totalStake, winnings fits in a uint64 and the sum of every winner's
// payout+fee never exceeds the pooled collateral.
func ComputePayout(stake, totalStake, winningStake, feePercent uint64) (winnings, fee uint64, err error) {
	if winningStake == 0 {
		return 0, 0, domain.ErrNoWinningStake
	}
	if stake > winningStake {
		return 0, 0, fmt.Errorf("%w: stake %d exceeds winning side total %d", domain.ErrInvalidParameter, stake, winningStake)
	}
	if feePercent > 100 {
		return 0, 0, fmt.Errorf("%w: fee percent %d", domain.ErrInvalidParameter, feePercent)
	}

	winnings = mulDiv(stake, totalStake, winningStake)
	fee = mulDiv(winnings, feePercent, 100)
	return winnings, fee, nil
}

// mulDiv computes floor(a*b/d) with a 128-bit intermediate. The callers
// guarantee a <= d or b <= d, so the quotient always fits in 64 bits.
func mulDiv(a, b, d uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	q, _ := bits.Div64(hi, lo, d)
	return q
}
