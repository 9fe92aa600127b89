package wallet

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cargoloop/cargoloop/internal/notification"
)

const defaultCurrency = "USD"

// Service exposes wallet account operations backed by the engine store and
// emits balance threshold signals after debits.
type Service struct {
	store    Store
	notifier notification.Notifier
}

// NewService builds a wallet service instance.
func NewService(store Store, notifier notification.Notifier) *Service {
	return &Service{store: store, notifier: notifier}
}

// Ensure resolves the wallet for a tenant and currency, creating it lazily
// on first access.
func (s *Service) Ensure(ctx context.Context, tenantID, currency string) (Wallet, error) {
	if tenantID == "" {
		return Wallet{}, fmt.Errorf("tenant id is required")
	}
	if currency == "" {
		currency = defaultCurrency
	}
	return s.store.EnsureWallet(ctx, tenantID, currency)
}

// Get retrieves the wallet by identifier.
func (s *Service) Get(ctx context.Context, walletID string) (Wallet, error) {
	return s.store.GetWallet(ctx, walletID)
}

// EffectiveBalance returns available minus reserved, computed fresh.
func (s *Service) EffectiveBalance(ctx context.Context, walletID string) (decimal.Decimal, error) {
	w, err := s.store.GetWallet(ctx, walletID)
	if err != nil {
		return decimal.Zero, err
	}
	return w.Effective(), nil
}

// ChargeInput captures data required for a direct debit.
type ChargeInput struct {
	WalletID  string
	Amount    decimal.Decimal
	Reference Reference
	ActorID   string
}

// Charge debits the wallet and appends a debit ledger entry atomically,
// then runs the low-balance and auto-topup checks.
func (s *Service) Charge(ctx context.Context, input ChargeInput) (Entry, error) {
	w, err := s.store.GetWallet(ctx, input.WalletID)
	if err != nil {
		return Entry{}, err
	}
	entry, err := s.store.Charge(ctx, input.WalletID, input.Amount, input.Reference, input.ActorID)
	if err != nil {
		return Entry{}, err
	}
	s.CheckThresholds(ctx, w, entry.RunningBalance)
	return entry, nil
}

// CreditInput captures data required for a credit.
type CreditInput struct {
	WalletID  string
	Amount    decimal.Decimal
	Type      string
	Reference Reference
	ActorID   string
}

// Credit increases available balance with an entry of the given type.
// Permitted on frozen wallets.
func (s *Service) Credit(ctx context.Context, input CreditInput) (Entry, error) {
	switch input.Type {
	case EntryTopup, EntryRefund, EntryAdjustment:
	default:
		return Entry{}, fmt.Errorf("entry type %q is not a credit type", input.Type)
	}
	return s.store.Credit(ctx, input.WalletID, input.Amount, input.Type, input.Reference, input.ActorID)
}

// UpdatePolicy replaces the owner-mutable wallet settings.
func (s *Service) UpdatePolicy(ctx context.Context, walletID string, policy Policy) (Wallet, error) {
	return s.store.UpdatePolicy(ctx, walletID, policy)
}

// Freeze blocks debits and holds on the wallet. Credits still land.
func (s *Service) Freeze(ctx context.Context, walletID string) (Wallet, error) {
	return s.store.SetStatus(ctx, walletID, StatusFrozen)
}

// Unfreeze reactivates the wallet.
func (s *Service) Unfreeze(ctx context.Context, walletID string) (Wallet, error) {
	return s.store.SetStatus(ctx, walletID, StatusActive)
}

// Statement pages through the wallet's ledger in creation order.
func (s *Service) Statement(ctx context.Context, walletID string, limit, offset int) ([]Entry, error) {
	return s.store.Entries(ctx, walletID, limit, offset)
}

// ActiveHolds lists the wallet's currently active holds.
func (s *Service) ActiveHolds(ctx context.Context, walletID string) ([]Hold, error) {
	return s.store.ActiveHolds(ctx, walletID)
}

// CheckThresholds emits low-balance and auto-topup signals after a debit
// left the available balance at the given level. Signals are advisory; the
// debit that triggered them has already committed.
func (s *Service) CheckThresholds(ctx context.Context, w Wallet, available decimal.Decimal) {
	if s.notifier == nil {
		return
	}
	if w.LowBalanceThreshold.Sign() > 0 && available.LessThan(w.LowBalanceThreshold) {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:     notification.KindLowBalance,
			TenantID: w.TenantID,
			WalletID: w.ID,
			Body:     fmt.Sprintf("available balance %s %s is below threshold %s", available, w.Currency, w.LowBalanceThreshold),
		})
	}
	if w.AutoTopupEnabled && available.LessThan(w.AutoTopupTrigger) {
		_ = s.notifier.Send(ctx, notification.Message{
			Kind:     notification.KindAutoTopupRequested,
			TenantID: w.TenantID,
			WalletID: w.ID,
			Amount:   w.AutoTopupAmount.String(),
			Body:     fmt.Sprintf("available balance %s %s dropped below auto-topup trigger %s", available, w.Currency, w.AutoTopupTrigger),
		})
	}
}
