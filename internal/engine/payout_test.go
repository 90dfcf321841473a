package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/updownlabs/updownd/internal/domain"
)

func TestComputePayout(t *testing.T) {
	tests := []struct {
		name         string
		stake        uint64
		totalStake   uint64
		winningStake uint64
		feePercent   uint64
		wantWinnings uint64
		wantFee      uint64
	}{
		{
			name:         "sole winner takes whole pool",
			stake:        1_000_000,
			totalStake:   4_000_000,
			winningStake: 1_000_000,
			feePercent:   2,
			wantWinnings: 4_000_000,
			wantFee:      80_000,
		},
		{
			name:         "proportional split between two winners",
			stake:        300,
			totalStake:   1_000,
			winningStake: 500,
			feePercent:   10,
			wantWinnings: 600,
			wantFee:      60,
		},
		{
			name:         "no losers returns stake",
			stake:        250,
			totalStake:   1_000,
			winningStake: 1_000,
			feePercent:   0,
			wantWinnings: 250,
			wantFee:      0,
		},
		{
			name:         "winnings truncate toward zero",
			stake:        1,
			totalStake:   5,
			winningStake: 3,
			feePercent:   0,
			wantWinnings: 1,
			wantFee:      0,
		},
		{
			name:         "fee truncates toward zero",
			stake:        3,
			totalStake:   33,
			winningStake: 3,
			feePercent:   3,
			wantWinnings: 33,
			wantFee:      0, // floor(33*3/100)
		},
		{
			name:         "full fee confiscates winnings",
			stake:        100,
			totalStake:   200,
			winningStake: 100,
			feePercent:   100,
			wantWinnings: 200,
			wantFee:      200,
		},
		{
			name:         "large stakes survive the 128-bit intermediate",
			stake:        1 << 62,
			totalStake:   1 << 63,
			winningStake: 1 << 62,
			feePercent:   0,
			wantWinnings: 1 << 63,
			wantFee:      0,
		},
		{
			name:         "max pool with sole winner",
			stake:        math.MaxUint64 / 2,
			totalStake:   math.MaxUint64,
			winningStake: math.MaxUint64 / 2,
			feePercent:   1,
			wantWinnings: math.MaxUint64,
			wantFee:      math.MaxUint64 / 100,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			winnings, fee, err := ComputePayout(tt.stake, tt.totalStake, tt.winningStake, tt.feePercent)
			require.NoError(t, err)
			assert.Equal(t, tt.wantWinnings, winnings)
			assert.Equal(t, tt.wantFee, fee)
			assert.LessOrEqual(t, fee, winnings)
		})
	}
}

func TestComputePayoutErrors(t *testing.T) {
	_, _, err := ComputePayout(100, 200, 0, 2)
	assert.ErrorIs(t, err, domain.ErrNoWinningStake)

	_, _, err = ComputePayout(300, 1_000, 200, 2)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)

	_, _, err = ComputePayout(100, 1_000, 500, 101)
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

// The sum of all winners' gross winnings never exceeds the pooled
// collateral; truncation residue stays in the pool.
func TestComputePayoutConservation(t *testing.T) {
	stakes := []uint64{7, 13, 29, 101, 997}
	var winningStake uint64
	for _, s := range stakes {
		winningStake += s
	}
	totalStake := winningStake + 4_321 // losing side

	var paidOut uint64
	for _, s := range stakes {
		winnings, fee, err := ComputePayout(s, totalStake, winningStake, 5)
		require.NoError(t, err)
		require.LessOrEqual(t, fee, winnings)
		paidOut += winnings
	}
	assert.LessOrEqual(t, paidOut, totalStake)
	assert.NotZero(t, totalStake-paidOut, "expected truncation residue for these stakes")
}
