// Package height provides the external monotonic block height the engine
// compares against stored market windows. Two sources are available: a
// manually advanced counter for sandbox and test use, and an interval source
// that derives the height from wall-clock time elapsed since a genesis
// instant.
package height

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/updownlabs/updownd/internal/domain"
)

// Manual is a height source advanced explicitly through the admin surface.
// It never goes backwards.
type Manual struct {
	mu     sync.RWMutex
	height uint64
}

// NewManual creates a Manual source starting at the given height.
func NewManual(start uint64) *Manual {
	return &Manual{height: start}
}

// Height returns the current height.
func (m *Manual) Height(ctx context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.height, nil
}

// Advance moves the height forward by delta and returns the new value.
func (m *Manual) Advance(delta uint64) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.height += delta
	return m.height
}

// Set moves the height to h. Attempts to move backwards are rejected.
func (m *Manual) Set(h uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h < m.height {
		return fmt.Errorf("height: cannot move backwards from %d to %d", m.height, h)
	}
	m.height = h
	return nil
}

// Interval derives the height from time elapsed since genesis divided by a
// fixed block interval. It is monotonic because wall-clock regressions are
// clamped.
type Interval struct {
	genesis  time.Time
	interval time.Duration
	start    uint64

	mu   sync.Mutex
	last uint64
	now  func() time.Time
}

// NewInterval creates an Interval source. The height at the genesis instant
// is start; every elapsed interval adds one.
func NewInterval(genesis time.Time, interval time.Duration, start uint64) (*Interval, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("height: block interval must be positive, got %s", interval)
	}
	return &Interval{
		genesis:  genesis,
		interval: interval,
		start:    start,
		last:     start,
		now:      time.Now,
	}, nil
}

// Height returns the derived height.
func (i *Interval) Height(ctx context.Context) (uint64, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	elapsed := i.now().Sub(i.genesis)
	h := i.start
	if elapsed > 0 {
		h += uint64(elapsed / i.interval)
	}
	if h < i.last {
		h = i.last
	}
	i.last = h
	return h, nil
}

// Compile-time interface checks.
var (
	_ domain.HeightSource = (*Manual)(nil)
	_ domain.HeightSource = (*Interval)(nil)
)
