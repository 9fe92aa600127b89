package topup

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cargoloop/cargoloop/internal/wallet"
)

// Service drives the external-payment-backed balance increase flow. A topup
// is pending from initiation until the gateway confirms or fails it; only a
// confirm moves money.
type Service struct {
	store   wallet.Store
	wallets *wallet.Service
	gateway Gateway
	name    string
}

// NewService builds a topup service bound to one gateway.
func NewService(store wallet.Store, wallets *wallet.Service, gateway Gateway, gatewayName string) (*Service, error) {
	if wallets == nil {
		return nil, fmt.Errorf("wallet service is required")
	}
	if gateway == nil {
		gateway = StaticGateway{}
	}
	if gatewayName == "" {
		gatewayName = "static"
	}
	return &Service{store: store, wallets: wallets, gateway: gateway, name: gatewayName}, nil
}

// InitiateInput captures the data required to start a topup.
type InitiateInput struct {
	WalletID       string
	Amount         decimal.Decimal
	IdempotencyKey string
}

// Initiate opens a checkout with the gateway and records a pending topup.
// Balances are untouched until confirmation. Repeats with the same
// idempotency key return the original topup; the fresh checkout session is
// discarded in that case.
func (s *Service) Initiate(ctx context.Context, input InitiateInput) (wallet.Topup, error) {
	if input.IdempotencyKey == "" {
		return wallet.Topup{}, fmt.Errorf("idempotency key is required")
	}

	w, err := s.wallets.Get(ctx, input.WalletID)
	if err != nil {
		return wallet.Topup{}, err
	}

	topupID := uuid.NewString()
	session, err := s.gateway.CreateCheckout(ctx, CheckoutRequest{
		Amount:    input.Amount,
		Currency:  w.Currency,
		Reference: topupID,
	})
	if err != nil {
		return wallet.Topup{}, fmt.Errorf("create checkout: %w", err)
	}

	return s.store.CreateTopup(ctx, wallet.Topup{
		ID:               topupID,
		WalletID:         w.ID,
		Amount:           input.Amount,
		Currency:         w.Currency,
		Gateway:          s.name,
		PaymentReference: session.PaymentReference,
		CheckoutURL:      session.CheckoutURL,
		IdempotencyKey:   input.IdempotencyKey,
	})
}

// Get fetches a topup by identifier.
func (s *Service) Get(ctx context.Context, topupID string) (wallet.Topup, error) {
	return s.store.GetTopup(ctx, topupID)
}

// Confirm settles a pending topup and credits the wallet. Safe against
// webhook redelivery: a second confirm returns the original ledger entry.
func (s *Service) Confirm(ctx context.Context, topupID, paymentReference, actorID string) (wallet.Topup, wallet.Entry, error) {
	return s.store.ConfirmTopup(ctx, topupID, paymentReference, actorID)
}

// Fail marks a pending topup as failed with no balance effect.
func (s *Service) Fail(ctx context.Context, topupID, reason string) (wallet.Topup, error) {
	return s.store.FailTopup(ctx, topupID, reason)
}
