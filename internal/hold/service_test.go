package hold

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cargoloop/cargoloop/internal/notification"
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

func setup(t *testing.T) (*Service, wallet.Store, wallet.Wallet, *notification.Recorder) {
	t.Helper()
	ctx := context.Background()
	store := wallet.NewMemoryStore()
	rec := &notification.Recorder{}
	wallets := wallet.NewService(store, rec)

	svc, err := NewService(store, wallets, 30*time.Minute)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	w, err := wallets.Ensure(ctx, "tenant-1", "USD")
	if err != nil {
		t.Fatalf("ensure wallet: %v", err)
	}
	if _, err := wallets.Credit(ctx, wallet.CreditInput{
		WalletID:  w.ID,
		Amount:    dec(t, "500.00"),
		Type:      wallet.EntryTopup,
		Reference: wallet.Reference{Type: "topup", ID: "seed"},
	}); err != nil {
		t.Fatalf("seed credit: %v", err)
	}
	return svc, store, w, rec
}

func TestCreateRequiresIdempotencyKey(t *testing.T) {
	svc, _, w, _ := setup(t)

	_, err := svc.Create(context.Background(), CreateInput{WalletID: w.ID, Amount: dec(t, "10.00")})
	if err == nil {
		t.Fatalf("expected error for missing idempotency key")
	}
}

func TestCreateSetsExpiryFromTTL(t *testing.T) {
	svc, _, w, _ := setup(t)

	before := time.Now().UTC()
	h, err := svc.Create(context.Background(), CreateInput{
		WalletID:       w.ID,
		Amount:         dec(t, "50.00"),
		Reference:      wallet.Reference{Type: "shipment", ID: "s-1"},
		IdempotencyKey: "key-1",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if h.Status != wallet.HoldActive {
		t.Fatalf("expected active hold, got %s", h.Status)
	}
	if h.ExpiresAt.Before(before.Add(29*time.Minute)) || h.ExpiresAt.After(before.Add(31*time.Minute)) {
		t.Fatalf("expiry %s not within ttl window", h.ExpiresAt)
	}
}

func TestCreateIsIdempotent(t *testing.T) {
	svc, _, w, _ := setup(t)
	ctx := context.Background()

	input := CreateInput{
		WalletID:       w.ID,
		Amount:         dec(t, "75.00"),
		Reference:      wallet.Reference{Type: "shipment", ID: "s-2"},
		IdempotencyKey: "key-2",
	}
	first, err := svc.Create(ctx, input)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	second, err := svc.Create(ctx, input)
	if err != nil {
		t.Fatalf("repeat create: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected same hold on repeat, got %s and %s", first.ID, second.ID)
	}

	input.Amount = dec(t, "80.00")
	if _, err := svc.Create(ctx, input); !errors.Is(err, wallet.ErrIdempotencyConflict) {
		t.Fatalf("expected ErrIdempotencyConflict, got %v", err)
	}
}

func TestCaptureDebitsHeldAmount(t *testing.T) {
	svc, store, w, _ := setup(t)
	ctx := context.Background()

	h, err := svc.Create(ctx, CreateInput{
		WalletID:       w.ID,
		Amount:         dec(t, "120.00"),
		Reference:      wallet.Reference{Type: "shipment", ID: "s-3"},
		IdempotencyKey: "key-3",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	entry, err := svc.Capture(ctx, h.ID, "dispatcher-9")
	if err != nil {
		t.Fatalf("capture: %v", err)
	}
	if !entry.Amount.Equal(dec(t, "-120.00")) {
		t.Fatalf("expected debit of held amount, got %s", entry.Amount)
	}

	after, err := store.GetWallet(ctx, w.ID)
	if err != nil {
		t.Fatalf("get wallet: %v", err)
	}
	if !after.Available.Equal(dec(t, "380.00")) || !after.Reserved.Equal(dec(t, "0")) {
		t.Fatalf("expected 380.00 available, 0 reserved; got %s / %s", after.Available, after.Reserved)
	}
}

func TestCaptureAfterReleaseFails(t *testing.T) {
	svc, _, w, _ := setup(t)
	ctx := context.Background()

	h, err := svc.Create(ctx, CreateInput{
		WalletID:       w.ID,
		Amount:         dec(t, "60.00"),
		Reference:      wallet.Reference{Type: "shipment", ID: "s-4"},
		IdempotencyKey: "key-4",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Release(ctx, h.ID); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := svc.Capture(ctx, h.ID, ""); !errors.Is(err, wallet.ErrHoldNotActive) {
		t.Fatalf("expected ErrHoldNotActive, got %v", err)
	}
}

func TestCaptureEmitsLowBalanceSignal(t *testing.T) {
	svc, store, w, rec := setup(t)
	ctx := context.Background()

	if _, err := store.UpdatePolicy(ctx, w.ID, wallet.Policy{LowBalanceThreshold: dec(t, "200.00")}); err != nil {
		t.Fatalf("policy: %v", err)
	}
	h, err := svc.Create(ctx, CreateInput{
		WalletID:       w.ID,
		Amount:         dec(t, "400.00"),
		Reference:      wallet.Reference{Type: "shipment", ID: "s-5"},
		IdempotencyKey: "key-5",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Capture(ctx, h.ID, ""); err != nil {
		t.Fatalf("capture: %v", err)
	}

	msgs := rec.Messages()
	if len(msgs) != 1 || msgs[0].Kind != notification.KindLowBalance {
		t.Fatalf("expected one low balance signal, got %+v", msgs)
	}
}
