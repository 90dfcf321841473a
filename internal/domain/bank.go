package domain

import "context"

// Bank is the asset-transfer substrate the engine escrows collateral
// through. The engine holds no funds itself; it only computes amounts and
// instructs the bank. Each Transfer is atomic: it either moves the full
// amount or fails with no effect.
type Bank interface {
	// Transfer moves amount from one account to another. It fails with
	// ErrInsufficientBalance when the source account cannot cover it.
	Transfer(ctx context.Context, from, to Address, amount uint64) error
	BalanceOf(ctx context.Context, account Address) (uint64, error)
}

// Faucet credits collateral into an account from outside the system. It is
// how deposits enter the engine's books; exposed only through the owner-gated
// admin surface.
type Faucet interface {
	Credit(ctx context.Context, account Address, amount uint64) error
}

// HeightSource supplies the external monotonic block height the engine
// compares against stored market windows. It never goes backwards.
type HeightSource interface {
	Height(ctx context.Context) (uint64, error)
}
