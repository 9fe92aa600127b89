package wallet

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Store is the contract implemented by wallet engine backends (Postgres in
// production, in-memory for tests). Every mutating operation is atomic per
// wallet: the implementation serializes concurrent mutations on one wallet,
// validates preconditions before touching anything, updates the cached
// balances and appends the ledger entry as a single unit. Failures are
// always no-ops.
type Store interface {
	// EnsureWallet lazily creates the wallet for (tenant, currency) and
	// returns it. Repeated calls return the existing wallet.
	EnsureWallet(ctx context.Context, tenantID, currency string) (Wallet, error)
	GetWallet(ctx context.Context, walletID string) (Wallet, error)
	UpdatePolicy(ctx context.Context, walletID string, policy Policy) (Wallet, error)
	SetStatus(ctx context.Context, walletID, status string) (Wallet, error)

	// Charge debits available balance. Sufficiency is effective balance
	// covering the amount, or allow_negative on the wallet.
	Charge(ctx context.Context, walletID string, amount decimal.Decimal, ref Reference, actorID string) (Entry, error)
	// Credit increases available balance with an entry of the given type
	// (topup, refund or adjustment). Permitted on frozen wallets.
	Credit(ctx context.Context, walletID string, amount decimal.Decimal, entryType string, ref Reference, actorID string) (Entry, error)

	// CreateHold reserves funds. Idempotent on (wallet, key): a repeat with
	// the same payload returns the existing hold, a repeat with a different
	// payload is ErrIdempotencyConflict. Holds must always be fully funded;
	// allow_negative is never honored here.
	CreateHold(ctx context.Context, walletID string, amount decimal.Decimal, ref Reference, idempotencyKey string, expiresAt time.Time) (Hold, error)
	GetHold(ctx context.Context, holdID string) (Hold, error)
	// CaptureHold converts an active hold into a debit for exactly the held
	// amount.
	CaptureHold(ctx context.Context, holdID, actorID string) (Entry, error)
	// ReleaseHold returns reserved funds to availability without spending.
	ReleaseHold(ctx context.Context, holdID string) (Hold, error)
	// ExpireHolds releases every active hold whose expiry has passed,
	// processing each hold independently so a failure on one never loses
	// another. Returns the number of holds expired.
	ExpireHolds(ctx context.Context, now time.Time) (int, error)
	ActiveHolds(ctx context.Context, walletID string) ([]Hold, error)

	// CreateTopup records a pending topup without touching balances.
	// Idempotent on (wallet, key) with the same conflict semantics as holds.
	CreateTopup(ctx context.Context, t Topup) (Topup, error)
	GetTopup(ctx context.Context, topupID string) (Topup, error)
	// ConfirmTopup moves a pending topup to success and credits the wallet.
	// Confirming an already successful topup is a no-op returning the
	// original ledger entry, so gateway webhook redelivery is safe.
	ConfirmTopup(ctx context.Context, topupID, paymentReference, actorID string) (Topup, Entry, error)
	// FailTopup moves a pending topup to failed with no balance effect.
	// Failing an already failed topup is a no-op.
	FailTopup(ctx context.Context, topupID, reason string) (Topup, error)
	// ExpirePendingTopups marks pending topups created before the cutoff as
	// expired. Returns the number expired.
	ExpirePendingTopups(ctx context.Context, cutoff time.Time) (int, error)
	// TopupsSettledOn lists topups that reached success or failed on the
	// given day for one gateway, for reconciliation.
	TopupsSettledOn(ctx context.Context, gateway string, day time.Time) ([]Topup, error)

	// Refund credits back part or all of a prior charge identified by ref.
	// The cumulative refunded amount may never exceed the charge amount.
	// Idempotent on (wallet, key).
	Refund(ctx context.Context, walletID string, amount decimal.Decimal, ref Reference, reason, idempotencyKey, actorID string) (Entry, error)

	// Entries pages through the wallet's ledger in creation order.
	Entries(ctx context.Context, walletID string, limit, offset int) ([]Entry, error)
}
