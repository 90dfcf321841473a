package memory

import (
	"context"
	"errors"

	"github.com/updownlabs/updownd/internal/domain"
)

// ErrParamsNotInitialized is returned when the parameter singleton is read
// before bootstrap.
var ErrParamsNotInitialized = errors.New("memory: protocol params not initialized")

// ParamsStore implements domain.ParamsStore on a Store.
type ParamsStore struct {
	st *Store
}

// NewParamsStore creates a ParamsStore backed by the given Store.
func NewParamsStore(st *Store) *ParamsStore {
	return &ParamsStore{st: st}
}

// Get returns the parameter singleton.
func (s *ParamsStore) Get(ctx context.Context) (domain.ProtocolParams, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()

	if s.st.params == nil {
		return domain.ProtocolParams{}, ErrParamsNotInitialized
	}
	return *s.st.params, nil
}

// Init writes the bootstrap parameters only when none exist yet.
func (s *ParamsStore) Init(ctx context.Context, p domain.ProtocolParams) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	if s.st.params != nil {
		return nil
	}
	cp := p
	s.st.params = &cp
	return nil
}

// SetOracle replaces the oracle identity.
func (s *ParamsStore) SetOracle(ctx context.Context, oracle domain.Address) error {
	return s.update(func(p *domain.ProtocolParams) { p.Oracle = oracle })
}

// SetMinStake replaces the minimum stake.
func (s *ParamsStore) SetMinStake(ctx context.Context, minStake uint64) error {
	return s.update(func(p *domain.ProtocolParams) { p.MinStake = minStake })
}

// SetFeePercent replaces the fee percentage.
func (s *ParamsStore) SetFeePercent(ctx context.Context, feePercent uint64) error {
	return s.update(func(p *domain.ProtocolParams) { p.FeePercent = feePercent })
}

// NextMarketID returns the current counter value and advances it.
func (s *ParamsStore) NextMarketID(ctx context.Context) (uint64, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	if s.st.params == nil {
		return 0, ErrParamsNotInitialized
	}
	id := s.st.params.NextMarketID
	s.st.params.NextMarketID++
	return id, nil
}

func (s *ParamsStore) update(fn func(*domain.ProtocolParams)) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	if s.st.params == nil {
		return ErrParamsNotInitialized
	}
	fn(s.st.params)
	return nil
}

// Compile-time interface check.
var _ domain.ParamsStore = (*ParamsStore)(nil)
