package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/updownlabs/updownd/internal/domain"
)

// MarketStore implements domain.MarketStore on a Store.
type MarketStore struct {
	st *Store
}

// NewMarketStore creates a MarketStore backed by the given Store.
func NewMarketStore(st *Store) *MarketStore {
	return &MarketStore{st: st}
}

// Create inserts a new market record.
func (s *MarketStore) Create(ctx context.Context, m domain.Market) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	if _, ok := s.st.markets[m.ID]; ok {
		return fmt.Errorf("memory: market %d already exists", m.ID)
	}
	s.st.markets[m.ID] = m
	return nil
}

// Get retrieves a market by id.
func (s *MarketStore) Get(ctx context.Context, id uint64) (domain.Market, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()

	m, ok := s.st.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

// AddStake adds stake to the given direction's running total.
func (s *MarketStore) AddStake(ctx context.Context, id uint64, dir domain.Direction, stake uint64) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	m, ok := s.st.markets[id]
	if !ok {
		return domain.ErrNotFound
	}
	if dir == domain.DirectionUp {
		m.TotalUpStake += stake
	} else {
		m.TotalDownStake += stake
	}
	s.st.markets[id] = m
	return nil
}

// SetResolved records the terminal price and flips the resolved flag.
func (s *MarketStore) SetResolved(ctx context.Context, id uint64, endPrice uint64, at time.Time) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	m, ok := s.st.markets[id]
	if !ok {
		return domain.ErrNotFound
	}
	m.EndPrice = endPrice
	m.Resolved = true
	m.ResolvedAt = &at
	s.st.markets[id] = m
	return nil
}

// List returns markets ordered by id with pagination and an optional
// resolved filter.
func (s *MarketStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()

	var markets []domain.Market
	for _, m := range s.st.markets {
		if opts.Resolved != nil && m.Resolved != *opts.Resolved {
			continue
		}
		markets = append(markets, m)
	}
	sort.Slice(markets, func(i, j int) bool { return markets[i].ID < markets[j].ID })

	if opts.Offset > 0 {
		if opts.Offset >= len(markets) {
			return nil, nil
		}
		markets = markets[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(markets) {
		markets = markets[:opts.Limit]
	}
	return markets, nil
}

// Count returns the total number of markets.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()
	return int64(len(s.st.markets)), nil
}

// ListResolvedBefore returns markets resolved strictly before the cutoff,
// for archival.
func (s *MarketStore) ListResolvedBefore(ctx context.Context, before time.Time) ([]domain.Market, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()

	var markets []domain.Market
	for _, m := range s.st.markets {
		if m.Resolved && m.ResolvedAt != nil && m.ResolvedAt.Before(before) {
			markets = append(markets, m)
		}
	}
	sort.Slice(markets, func(i, j int) bool { return markets[i].ID < markets[j].ID })
	return markets, nil
}

// Compile-time interface checks.
var (
	_ domain.MarketStore        = (*MarketStore)(nil)
	_ domain.SettledMarketStore = (*MarketStore)(nil)
)
