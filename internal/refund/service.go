package refund

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/cargoloop/cargoloop/internal/wallet"
)

// Service reverses prior charges. A refund is a credit linked to the
// original debit; the cumulative refunded amount never exceeds the charge.
type Service struct {
	store wallet.Store
}

// NewService builds a refund service.
func NewService(store wallet.Store) *Service {
	return &Service{store: store}
}

// Input captures the data required to refund a prior charge.
type Input struct {
	WalletID       string
	Amount         decimal.Decimal
	Reference      wallet.Reference
	Reason         string
	IdempotencyKey string
	ActorID        string
}

// Refund credits back part or all of the charge identified by the reference.
// Rejections leave the wallet untouched; repeats with the same idempotency
// key return the original ledger entry.
func (s *Service) Refund(ctx context.Context, input Input) (wallet.Entry, error) {
	if input.IdempotencyKey == "" {
		return wallet.Entry{}, fmt.Errorf("idempotency key is required")
	}
	if input.Reference.ID == "" {
		return wallet.Entry{}, fmt.Errorf("original charge reference is required")
	}
	return s.store.Refund(ctx, input.WalletID, input.Amount, input.Reference, input.Reason, input.IdempotencyKey, input.ActorID)
}
