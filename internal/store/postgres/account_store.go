package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/updownlabs/updownd/internal/domain"
)

// AccountStore implements domain.Bank and domain.Faucet over the accounts
// table.
type AccountStore struct {
	pool *pgxpool.Pool
}

// NewAccountStore creates an AccountStore backed by the given pool.
func NewAccountStore(pool *pgxpool.Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

// Transfer moves amount from one account to another in a single
// transaction. The debit is conditional on sufficient balance; a zero
// amount is a no-op.
func (s *AccountStore) Transfer(ctx context.Context, from, to domain.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("postgres: begin transfer: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE accounts SET balance = balance - $2 WHERE account = $1 AND balance >= $2`,
		string(from), int64(amount))
	if err != nil {
		return fmt.Errorf("postgres: debit %s: %w", from, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrInsufficientBalance
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO accounts (account, balance) VALUES ($1, $2)
		 ON CONFLICT (account) DO UPDATE SET balance = accounts.balance + EXCLUDED.balance`,
		string(to), int64(amount))
	if err != nil {
		return fmt.Errorf("postgres: credit %s: %w", to, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit transfer: %w", err)
	}
	return nil
}

// BalanceOf returns the balance of an account, zero if unknown.
func (s *AccountStore) BalanceOf(ctx context.Context, account domain.Address) (uint64, error) {
	var balance int64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE((SELECT balance FROM accounts WHERE account = $1), 0)`,
		string(account)).Scan(&balance)
	if err != nil {
		return 0, fmt.Errorf("postgres: balance of %s: %w", account, err)
	}
	return uint64(balance), nil
}

// Credit mints amount into an account.
func (s *AccountStore) Credit(ctx context.Context, account domain.Address, amount uint64) error {
	if amount == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO accounts (account, balance) VALUES ($1, $2)
		 ON CONFLICT (account) DO UPDATE SET balance = accounts.balance + EXCLUDED.balance`,
		string(account), int64(amount))
	if err != nil {
		return fmt.Errorf("postgres: credit %s: %w", account, err)
	}
	return nil
}

var (
	_ domain.Bank   = (*AccountStore)(nil)
	_ domain.Faucet = (*AccountStore)(nil)
)
