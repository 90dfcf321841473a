// Package memory implements the domain store, bank, and audit interfaces on
// in-process map-backed state guarded by a single mutex, so every mutating
// operation commits atomically. It backs the sandbox mode and the engine's
// package tests.
package memory

import (
	"sync"

	"github.com/updownlabs/updownd/internal/domain"
)

type predictionKey struct {
	marketID uint64
	account  domain.Address
}

// Store holds the shared authoritative state for all memory-backed store
// types. One mutex serializes every mutation.
type Store struct {
	mu          sync.RWMutex
	markets     map[uint64]domain.Market
	predictions map[predictionKey]domain.Prediction
	params      *domain.ProtocolParams
	balances    map[domain.Address]uint64
	audit       []domain.AuditEntry
	auditSeq    int64
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		markets:     make(map[uint64]domain.Market),
		predictions: make(map[predictionKey]domain.Prediction),
		balances:    make(map[domain.Address]uint64),
	}
}
