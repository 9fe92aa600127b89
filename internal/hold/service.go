package hold

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cargoloop/cargoloop/internal/wallet"
)

// Service coordinates the pre-authorization lifecycle: reserve funds ahead of
// label purchase, then capture exactly the held amount or release it.
type Service struct {
	store   wallet.Store
	wallets *wallet.Service
	ttl     time.Duration
}

// NewService builds a hold service. ttl is how long a new hold stays active
// before the sweep releases it.
func NewService(store wallet.Store, wallets *wallet.Service, ttl time.Duration) (*Service, error) {
	if wallets == nil {
		return nil, fmt.Errorf("wallet service is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("hold ttl must be positive")
	}
	return &Service{store: store, wallets: wallets, ttl: ttl}, nil
}

// CreateInput captures the data required to reserve funds.
type CreateInput struct {
	WalletID       string
	Amount         decimal.Decimal
	Reference      wallet.Reference
	IdempotencyKey string
}

// Create reserves funds for a future capture. Repeats with the same
// idempotency key return the existing hold.
func (s *Service) Create(ctx context.Context, input CreateInput) (wallet.Hold, error) {
	if input.IdempotencyKey == "" {
		return wallet.Hold{}, fmt.Errorf("idempotency key is required")
	}
	expiresAt := time.Now().UTC().Add(s.ttl)
	return s.store.CreateHold(ctx, input.WalletID, input.Amount, input.Reference, input.IdempotencyKey, expiresAt)
}

// Get fetches a hold by identifier.
func (s *Service) Get(ctx context.Context, holdID string) (wallet.Hold, error) {
	return s.store.GetHold(ctx, holdID)
}

// Capture converts an active hold into a spend of exactly the held amount
// and runs the post-debit threshold checks.
func (s *Service) Capture(ctx context.Context, holdID, actorID string) (wallet.Entry, error) {
	h, err := s.store.GetHold(ctx, holdID)
	if err != nil {
		return wallet.Entry{}, err
	}
	w, err := s.wallets.Get(ctx, h.WalletID)
	if err != nil {
		return wallet.Entry{}, err
	}
	entry, err := s.store.CaptureHold(ctx, holdID, actorID)
	if err != nil {
		return wallet.Entry{}, err
	}
	s.wallets.CheckThresholds(ctx, w, entry.RunningBalance)
	return entry, nil
}

// Release returns the reserved funds to availability without spending.
func (s *Service) Release(ctx context.Context, holdID string) (wallet.Hold, error) {
	return s.store.ReleaseHold(ctx, holdID)
}
