package topup

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/cargoloop/cargoloop/internal/wallet"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("parse decimal %q: %v", s, err)
	}
	return d
}

func setup(t *testing.T) (*Service, wallet.Store, wallet.Wallet) {
	t.Helper()
	store := wallet.NewMemoryStore()
	wallets := wallet.NewService(store, nil)
	svc, err := NewService(store, wallets, nil, "")
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	w, err := wallets.Ensure(context.Background(), "tenant-1", "USD")
	if err != nil {
		t.Fatalf("ensure wallet: %v", err)
	}
	return svc, store, w
}

func TestInitiateOpensCheckout(t *testing.T) {
	svc, store, w := setup(t)
	ctx := context.Background()

	top, err := svc.Initiate(ctx, InitiateInput{WalletID: w.ID, Amount: dec(t, "250.00"), IdempotencyKey: "top-1"})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if top.Status != wallet.TopupPending {
		t.Fatalf("expected pending, got %s", top.Status)
	}
	if top.CheckoutURL == "" || top.PaymentReference == "" {
		t.Fatalf("expected checkout session, got %+v", top)
	}
	if top.Currency != "USD" || top.Gateway != "static" {
		t.Fatalf("unexpected topup fields: %+v", top)
	}

	mid, _ := store.GetWallet(ctx, w.ID)
	if !mid.Available.Equal(decimal.Zero) {
		t.Fatalf("initiation must not move money, balance %s", mid.Available)
	}
}

func TestInitiateRequiresIdempotencyKey(t *testing.T) {
	svc, _, w := setup(t)
	if _, err := svc.Initiate(context.Background(), InitiateInput{WalletID: w.ID, Amount: dec(t, "10.00")}); err == nil {
		t.Fatalf("expected error for missing idempotency key")
	}
}

func TestInitiateIsIdempotent(t *testing.T) {
	svc, _, w := setup(t)
	ctx := context.Background()

	first, err := svc.Initiate(ctx, InitiateInput{WalletID: w.ID, Amount: dec(t, "100.00"), IdempotencyKey: "dup"})
	if err != nil {
		t.Fatalf("first initiate: %v", err)
	}
	second, err := svc.Initiate(ctx, InitiateInput{WalletID: w.ID, Amount: dec(t, "100.00"), IdempotencyKey: "dup"})
	if err != nil {
		t.Fatalf("repeat initiate: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected original topup on repeat, got %s and %s", first.ID, second.ID)
	}

	if _, err := svc.Initiate(ctx, InitiateInput{WalletID: w.ID, Amount: dec(t, "200.00"), IdempotencyKey: "dup"}); !errors.Is(err, wallet.ErrIdempotencyConflict) {
		t.Fatalf("expected ErrIdempotencyConflict, got %v", err)
	}
}

func TestConfirmCreditsOnce(t *testing.T) {
	svc, store, w := setup(t)
	ctx := context.Background()

	top, err := svc.Initiate(ctx, InitiateInput{WalletID: w.ID, Amount: dec(t, "300.00"), IdempotencyKey: "c-1"})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}

	confirmed, entry, err := svc.Confirm(ctx, top.ID, "psp-ref-1", "webhook")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if confirmed.Status != wallet.TopupSuccess {
		t.Fatalf("expected success, got %s", confirmed.Status)
	}
	if confirmed.PaymentReference != "psp-ref-1" {
		t.Fatalf("expected gateway reference recorded, got %s", confirmed.PaymentReference)
	}

	// Redelivered webhook: same topup, same entry, no double credit.
	_, entry2, err := svc.Confirm(ctx, top.ID, "psp-ref-1", "webhook")
	if err != nil {
		t.Fatalf("repeat confirm: %v", err)
	}
	if entry2.ID != entry.ID {
		t.Fatalf("expected the original ledger entry, got %s vs %s", entry2.ID, entry.ID)
	}

	after, _ := store.GetWallet(ctx, w.ID)
	if !after.Available.Equal(dec(t, "300.00")) {
		t.Fatalf("expected single credit of 300.00, got %s", after.Available)
	}
}

func TestFailThenConfirmRejected(t *testing.T) {
	svc, store, w := setup(t)
	ctx := context.Background()

	top, err := svc.Initiate(ctx, InitiateInput{WalletID: w.ID, Amount: dec(t, "80.00"), IdempotencyKey: "f-1"})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	failed, err := svc.Fail(ctx, top.ID, "insufficient card funds")
	if err != nil {
		t.Fatalf("fail: %v", err)
	}
	if failed.Status != wallet.TopupFailed {
		t.Fatalf("expected failed, got %s", failed.Status)
	}

	if _, _, err := svc.Confirm(ctx, top.ID, "", ""); !errors.Is(err, wallet.ErrTopupNotPending) {
		t.Fatalf("expected ErrTopupNotPending, got %v", err)
	}
	after, _ := store.GetWallet(ctx, w.ID)
	if !after.Available.Equal(decimal.Zero) {
		t.Fatalf("failed topup moved money: %s", after.Available)
	}
}

func TestInitiateUnknownWallet(t *testing.T) {
	svc, _, _ := setup(t)
	if _, err := svc.Initiate(context.Background(), InitiateInput{WalletID: "missing", Amount: dec(t, "10.00"), IdempotencyKey: "x"}); !errors.Is(err, wallet.ErrWalletNotFound) {
		t.Fatalf("expected ErrWalletNotFound, got %v", err)
	}
}
