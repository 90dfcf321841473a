package height

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManual(t *testing.T) {
	ctx := context.Background()
	m := NewManual(5)

	h, err := m.Height(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), h)

	assert.Equal(t, uint64(8), m.Advance(3))
	require.NoError(t, m.Set(10))

	// Heights never go backwards.
	assert.Error(t, m.Set(9))
	h, err = m.Height(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), h)
}

func TestInterval(t *testing.T) {
	ctx := context.Background()
	genesis := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := NewInterval(genesis, 0, 0)
	assert.Error(t, err)

	i, err := NewInterval(genesis, 12*time.Second, 100)
	require.NoError(t, err)

	now := genesis
	i.now = func() time.Time { return now }

	h, err := i.Height(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), h)

	// One height per elapsed interval; partial intervals truncate.
	now = genesis.Add(25 * time.Second)
	h, err = i.Height(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(102), h)

	// Wall-clock regressions are clamped to the last observed height.
	now = genesis.Add(5 * time.Second)
	h, err = i.Height(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(102), h)

	// Pre-genesis clocks report the start height.
	j, err := NewInterval(genesis, 12*time.Second, 7)
	require.NoError(t, err)
	j.now = func() time.Time { return genesis.Add(-time.Hour) }
	h, err = j.Height(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(7), h)
}
