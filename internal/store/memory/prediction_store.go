package memory

import (
	"context"
	"sort"

	"github.com/updownlabs/updownd/internal/domain"
)

// PredictionStore implements domain.PredictionStore on a Store.
type PredictionStore struct {
	st *Store
}

// NewPredictionStore creates a PredictionStore backed by the given Store.
func NewPredictionStore(st *Store) *PredictionStore {
	return &PredictionStore{st: st}
}

// Put writes the prediction, replacing any existing record for the same
// (market, account) key.
func (s *PredictionStore) Put(ctx context.Context, p domain.Prediction) (bool, error) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	key := predictionKey{marketID: p.MarketID, account: p.Account}
	_, overwrote := s.st.predictions[key]
	s.st.predictions[key] = p
	return overwrote, nil
}

// Get retrieves the prediction for one (market, account) pair.
func (s *PredictionStore) Get(ctx context.Context, marketID uint64, account domain.Address) (domain.Prediction, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()

	p, ok := s.st.predictions[predictionKey{marketID: marketID, account: account}]
	if !ok {
		return domain.Prediction{}, domain.ErrNotFound
	}
	return p, nil
}

// MarkClaimed flips the one-way claimed flag.
func (s *PredictionStore) MarkClaimed(ctx context.Context, marketID uint64, account domain.Address) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	key := predictionKey{marketID: marketID, account: account}
	p, ok := s.st.predictions[key]
	if !ok {
		return domain.ErrNotFound
	}
	p.Claimed = true
	s.st.predictions[key] = p
	return nil
}

// ListByMarket returns all predictions for a market ordered by account.
func (s *PredictionStore) ListByMarket(ctx context.Context, marketID uint64, opts domain.ListOpts) ([]domain.Prediction, error) {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()

	var preds []domain.Prediction
	for key, p := range s.st.predictions {
		if key.marketID == marketID {
			preds = append(preds, p)
		}
	}
	sort.Slice(preds, func(i, j int) bool { return preds[i].Account < preds[j].Account })

	if opts.Offset > 0 {
		if opts.Offset >= len(preds) {
			return nil, nil
		}
		preds = preds[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(preds) {
		preds = preds[:opts.Limit]
	}
	return preds, nil
}

// Compile-time interface check.
var _ domain.PredictionStore = (*PredictionStore)(nil)
