package wallet

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	// StatusActive allows the full set of wallet operations.
	StatusActive = "active"
	// StatusFrozen rejects debits and holds while still accepting credits.
	StatusFrozen = "frozen"
)

// Ledger entry types. Lock and unlock entries carry a zero amount so that
// replaying signed amounts always reproduces available_balance exactly.
const (
	EntryTopup      = "topup"
	EntryDebit      = "debit"
	EntryRefund     = "refund"
	EntryAdjustment = "adjustment"
	EntryLock       = "lock"
	EntryUnlock     = "unlock"
)

// Hold lifecycle states. Captured, released and expired are terminal.
const (
	HoldActive   = "active"
	HoldCaptured = "captured"
	HoldReleased = "released"
	HoldExpired  = "expired"
)

// Topup lifecycle states. Success, failed and expired are terminal; only
// success moves money.
const (
	TopupPending = "pending"
	TopupSuccess = "success"
	TopupFailed  = "failed"
	TopupExpired = "expired"
)

// Wallet is the per-tenant, per-currency prepaid balance aggregate.
// Effective spendable funds are Available minus Reserved.
type Wallet struct {
	ID                  string
	TenantID            string
	Currency            string
	Available           decimal.Decimal
	Reserved            decimal.Decimal
	LowBalanceThreshold decimal.Decimal
	AutoTopupEnabled    bool
	AutoTopupAmount     decimal.Decimal
	AutoTopupTrigger    decimal.Decimal
	Status              string
	AllowNegative       bool
	CreatedAt           time.Time
}

// Effective returns the spendable balance: available minus reserved.
func (w Wallet) Effective() decimal.Decimal {
	return w.Available.Sub(w.Reserved)
}

// Policy carries the owner-mutable wallet settings.
type Policy struct {
	LowBalanceThreshold decimal.Decimal
	AutoTopupEnabled    bool
	AutoTopupAmount     decimal.Decimal
	AutoTopupTrigger    decimal.Decimal
	AllowNegative       bool
}

// Reference links a ledger entry, hold or refund back to the business object
// that caused it (shipment, topup, manual adjustment).
type Reference struct {
	Type string
	ID   string
}

// Entry is one immutable row of the append-only ledger. Amount is signed:
// positive for credits, negative for debits, zero for lock/unlock markers.
// RunningBalance snapshots available_balance after the entry applied.
type Entry struct {
	ID             string
	WalletID       string
	Type           string
	Amount         decimal.Decimal
	RunningBalance decimal.Decimal
	ReferenceType  string
	ReferenceID    string
	ActorID        string
	CreatedAt      time.Time
}

// Hold is a reservation of funds against a future capture. While active it
// contributes to the wallet's reserved balance; it never moves available
// funds until captured.
type Hold struct {
	ID             string
	WalletID       string
	Amount         decimal.Decimal
	ReferenceType  string
	ReferenceID    string
	IdempotencyKey string
	Status         string
	ExpiresAt      time.Time
	CreatedAt      time.Time
}

// Topup is an external-payment-backed balance increase. It stays pending
// until the gateway confirms or fails it; only success credits the wallet.
type Topup struct {
	ID               string
	WalletID         string
	Amount           decimal.Decimal
	Currency         string
	Status           string
	Gateway          string
	PaymentReference string
	CheckoutURL      string
	IdempotencyKey   string
	FailureReason    string
	ConfirmedAt      time.Time
	FailedAt         time.Time
	CreatedAt        time.Time
}

// Refund records a reversal credit against a prior debit, bounded by the
// cumulative amount of the original charge.
type Refund struct {
	ID             string
	WalletID       string
	Amount         decimal.Decimal
	ReferenceType  string
	ReferenceID    string
	EntryID        string
	Reason         string
	IdempotencyKey string
	CreatedAt      time.Time
}

// validAmount reports whether d is a positive amount with at most two
// fraction digits, the precision every balance is stored with.
func validAmount(d decimal.Decimal) bool {
	return d.Sign() > 0 && d.Equal(d.Round(2))
}
