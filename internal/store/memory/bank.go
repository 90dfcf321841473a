package memory

import (
	"context"
	"fmt"
	"math"

	"github.com/updownlabs/updownd/internal/domain"
)

// Bank implements domain.Bank and domain.Faucet on a Store. Each transfer
// commits atomically under the store mutex.
type Bank struct {
	st *Store
}

// NewBank creates a Bank backed by the given Store.
func NewBank(st *Store) *Bank {
	return &Bank{st: st}
}

// Transfer moves amount between accounts. Zero-amount transfers are no-ops.
func (b *Bank) Transfer(ctx context.Context, from, to domain.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}

	b.st.mu.Lock()
	defer b.st.mu.Unlock()

	if b.st.balances[from] < amount {
		return fmt.Errorf("%w: account %s holds %d, needs %d", domain.ErrInsufficientBalance, from, b.st.balances[from], amount)
	}
	if b.st.balances[to] > math.MaxUint64-amount {
		return fmt.Errorf("memory: balance overflow for account %s", to)
	}
	b.st.balances[from] -= amount
	b.st.balances[to] += amount
	return nil
}

// BalanceOf returns the account balance; unknown accounts hold zero.
func (b *Bank) BalanceOf(ctx context.Context, account domain.Address) (uint64, error) {
	b.st.mu.RLock()
	defer b.st.mu.RUnlock()
	return b.st.balances[account], nil
}

// Credit mints amount into the account.
func (b *Bank) Credit(ctx context.Context, account domain.Address, amount uint64) error {
	b.st.mu.Lock()
	defer b.st.mu.Unlock()

	if b.st.balances[account] > math.MaxUint64-amount {
		return fmt.Errorf("memory: balance overflow for account %s", account)
	}
	b.st.balances[account] += amount
	return nil
}

// Compile-time interface checks.
var (
	_ domain.Bank   = (*Bank)(nil)
	_ domain.Faucet = (*Bank)(nil)
)
