package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/updownlabs/updownd/internal/domain"
)

// requireOwner loads the protocol parameters and rejects any caller other
// than the fixed owner.
func (e *Engine) requireOwner(ctx context.Context, caller domain.Address) (domain.ProtocolParams, error) {
	params, err := e.params.Get(ctx)
	if err != nil {
		return domain.ProtocolParams{}, fmt.Errorf("engine: load params: %w", err)
	}
	if caller != params.Owner {
		return domain.ProtocolParams{}, domain.ErrUnauthorized
	}
	return params, nil
}

// SetOracle replaces the oracle identity.
func (e *Engine) SetOracle(ctx context.Context, caller, oracle domain.Address) error {
	if _, err := e.requireOwner(ctx, caller); err != nil {
		return err
	}
	if oracle == "" {
		return fmt.Errorf("%w: oracle address must not be empty", domain.ErrInvalidParameter)
	}
	if err := e.params.SetOracle(ctx, oracle); err != nil {
		return fmt.Errorf("engine: set oracle: %w", err)
	}
	e.auditLog(ctx, "params.oracle_updated", map[string]any{"oracle": string(oracle)})
	e.publish(ctx, domain.ChannelStatus, domain.Event{Type: domain.EventParamsUpdated, Account: oracle})
	return nil
}

// SetMinStake replaces the minimum stake. Zero is rejected because it would
// allow dust predictions.
func (e *Engine) SetMinStake(ctx context.Context, caller domain.Address, minStake uint64) error {
	if _, err := e.requireOwner(ctx, caller); err != nil {
		return err
	}
	if minStake == 0 {
		return fmt.Errorf("%w: minimum stake must be positive", domain.ErrInvalidParameter)
	}
	if err := e.params.SetMinStake(ctx, minStake); err != nil {
		return fmt.Errorf("engine: set min stake: %w", err)
	}
	e.auditLog(ctx, "params.min_stake_updated", map[string]any{"min_stake": minStake})
	e.publish(ctx, domain.ChannelStatus, domain.Event{Type: domain.EventParamsUpdated, Amount: minStake})
	return nil
}

// SetFeePercent replaces the protocol fee percentage (0..100).
func (e *Engine) SetFeePercent(ctx context.Context, caller domain.Address, feePercent uint64) error {
	if _, err := e.requireOwner(ctx, caller); err != nil {
		return err
	}
	if feePercent > 100 {
		return fmt.Errorf("%w: fee percent %d exceeds 100", domain.ErrInvalidParameter, feePercent)
	}
	if err := e.params.SetFeePercent(ctx, feePercent); err != nil {
		return fmt.Errorf("engine: set fee percent: %w", err)
	}
	e.auditLog(ctx, "params.fee_percent_updated", map[string]any{"fee_percent": feePercent})
	e.publish(ctx, domain.ChannelStatus, domain.Event{Type: domain.EventParamsUpdated, Amount: feePercent})
	return nil
}

// WithdrawFees moves collected fees from the pool to the owner. The check is
// against the total pool balance only; the pool tracks no reserved-vs-free
// split, so an owner withdrawal can consume collateral still owed to
// pending claimants.
func (e *Engine) WithdrawFees(ctx context.Context, caller domain.Address, amount uint64) error {
	params, err := e.requireOwner(ctx, caller)
	if err != nil {
		return err
	}
	if amount == 0 {
		return fmt.Errorf("%w: amount must be positive", domain.ErrInvalidParameter)
	}

	balance, err := e.bank.BalanceOf(ctx, domain.PoolAccount)
	if err != nil {
		return fmt.Errorf("engine: pool balance: %w", err)
	}
	if amount > balance {
		return fmt.Errorf("%w: pool holds %d, requested %d", domain.ErrInsufficientBalance, balance, amount)
	}
	if err := e.bank.Transfer(ctx, domain.PoolAccount, params.Owner, amount); err != nil {
		return fmt.Errorf("engine: withdraw fees: %w", err)
	}

	e.auditLog(ctx, "fees.withdrawn", map[string]any{"amount": amount})
	e.publish(ctx, domain.ChannelStatus, domain.Event{Type: domain.EventFeesWithdrawn, Account: params.Owner, Amount: amount})

	e.logger.InfoContext(ctx, "fees withdrawn", slog.Uint64("amount", amount))
	return nil
}

// Credit funds an account from outside the system. Owner-gated; this is the
// deposit path for participants in deployments where the engine also keeps
// the books.
func (e *Engine) Credit(ctx context.Context, caller, account domain.Address, amount uint64) error {
	if _, err := e.requireOwner(ctx, caller); err != nil {
		return err
	}
	faucet, ok := e.bank.(domain.Faucet)
	if !ok {
		return fmt.Errorf("%w: bank does not support deposits", domain.ErrInvalidParameter)
	}
	if account == "" || amount == 0 {
		return fmt.Errorf("%w: account and amount are required", domain.ErrInvalidParameter)
	}
	if err := faucet.Credit(ctx, account, amount); err != nil {
		return fmt.Errorf("engine: credit %s: %w", account, err)
	}
	e.auditLog(ctx, "account.credited", map[string]any{"account": string(account), "amount": amount})
	return nil
}
