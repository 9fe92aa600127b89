package wallet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cargoloop/cargoloop/internal/notification"
)

func TestServiceChargeLifecycle(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, nil)
	ctx := context.Background()

	w, err := svc.Ensure(ctx, "tenant-acme", "")
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if w.Currency != "USD" {
		t.Fatalf("expected default currency USD, got %s", w.Currency)
	}

	if _, err := svc.Credit(ctx, CreditInput{WalletID: w.ID, Amount: dec("1000.00"), Type: EntryTopup, Reference: Reference{Type: "topup", ID: "t-1"}}); err != nil {
		t.Fatalf("credit: %v", err)
	}

	// Reserve, capture, then refund the captured charge.
	ref := Reference{Type: "shipment", ID: "ship-42"}
	h, err := store.CreateHold(ctx, w.ID, dec("300.00"), ref, "hold-42", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("create hold: %v", err)
	}
	if _, err := store.CaptureHold(ctx, h.ID, "dispatcher-1"); err != nil {
		t.Fatalf("capture: %v", err)
	}

	balance, err := svc.EffectiveBalance(ctx, w.ID)
	if err != nil {
		t.Fatalf("effective balance: %v", err)
	}
	if !balance.Equal(dec("700.00")) {
		t.Fatalf("expected effective 700.00, got %s", balance)
	}

	if _, err := store.Refund(ctx, w.ID, dec("300.00"), ref, "cancelled", "rf-42", "ops-1"); err != nil {
		t.Fatalf("refund: %v", err)
	}
	if _, err := store.Refund(ctx, w.ID, dec("300.00"), ref, "", "rf-43", ""); !errors.Is(err, ErrRefundExceedsOriginal) {
		t.Fatalf("expected second refund rejected, got %v", err)
	}

	entries, err := svc.Statement(ctx, w.ID, 100, 0)
	if err != nil {
		t.Fatalf("statement: %v", err)
	}
	// topup, lock, debit, refund
	if len(entries) != 4 {
		t.Fatalf("expected 4 ledger entries, got %d", len(entries))
	}
}

func TestServiceCreditRejectsDebitTypes(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, nil)
	ctx := context.Background()

	w, _ := svc.Ensure(ctx, "tenant-1", "USD")
	if _, err := svc.Credit(ctx, CreditInput{WalletID: w.ID, Amount: dec("10.00"), Type: EntryDebit}); err == nil {
		t.Fatalf("expected rejection of debit entry type on credit path")
	}
}

func TestServiceLowBalanceNotification(t *testing.T) {
	store := NewMemoryStore()
	rec := &notification.Recorder{}
	svc := NewService(store, rec)
	ctx := context.Background()

	w, _ := svc.Ensure(ctx, "tenant-1", "USD")
	if _, err := svc.Credit(ctx, CreditInput{WalletID: w.ID, Amount: dec("600.00"), Type: EntryTopup, Reference: Reference{Type: "topup", ID: "t-1"}}); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if _, err := svc.UpdatePolicy(ctx, w.ID, Policy{LowBalanceThreshold: dec("500.00")}); err != nil {
		t.Fatalf("policy: %v", err)
	}

	if _, err := svc.Charge(ctx, ChargeInput{WalletID: w.ID, Amount: dec("50.00"), Reference: Reference{Type: "shipment", ID: "s-1"}}); err != nil {
		t.Fatalf("charge above threshold: %v", err)
	}
	if got := len(rec.Messages()); got != 0 {
		t.Fatalf("no notification expected at 550.00, got %d", got)
	}

	if _, err := svc.Charge(ctx, ChargeInput{WalletID: w.ID, Amount: dec("100.00"), Reference: Reference{Type: "shipment", ID: "s-2"}}); err != nil {
		t.Fatalf("charge below threshold: %v", err)
	}
	msgs := rec.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(msgs))
	}
	if msgs[0].Kind != notification.KindLowBalance || msgs[0].WalletID != w.ID {
		t.Fatalf("unexpected notification: %+v", msgs[0])
	}
}

func TestServiceAutoTopupSignal(t *testing.T) {
	store := NewMemoryStore()
	rec := &notification.Recorder{}
	svc := NewService(store, rec)
	ctx := context.Background()

	w, _ := svc.Ensure(ctx, "tenant-1", "USD")
	if _, err := svc.Credit(ctx, CreditInput{WalletID: w.ID, Amount: dec("500.00"), Type: EntryTopup, Reference: Reference{Type: "topup", ID: "t-1"}}); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if _, err := svc.UpdatePolicy(ctx, w.ID, Policy{
		AutoTopupEnabled: true,
		AutoTopupAmount:  dec("250.00"),
		AutoTopupTrigger: dec("100.00"),
	}); err != nil {
		t.Fatalf("policy: %v", err)
	}

	if _, err := svc.Charge(ctx, ChargeInput{WalletID: w.ID, Amount: dec("450.00"), Reference: Reference{Type: "shipment", ID: "s-1"}}); err != nil {
		t.Fatalf("charge: %v", err)
	}

	msgs := rec.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(msgs))
	}
	if msgs[0].Kind != notification.KindAutoTopupRequested {
		t.Fatalf("expected auto-topup request, got %s", msgs[0].Kind)
	}
	if msgs[0].Amount != "250" && msgs[0].Amount != "250.00" {
		t.Fatalf("expected configured topup amount, got %s", msgs[0].Amount)
	}
}

func TestServiceFreezeUnfreeze(t *testing.T) {
	store := NewMemoryStore()
	svc := NewService(store, nil)
	ctx := context.Background()

	w, _ := svc.Ensure(ctx, "tenant-1", "USD")
	frozen, err := svc.Freeze(ctx, w.ID)
	if err != nil {
		t.Fatalf("freeze: %v", err)
	}
	if frozen.Status != StatusFrozen {
		t.Fatalf("expected frozen, got %s", frozen.Status)
	}
	active, err := svc.Unfreeze(ctx, w.ID)
	if err != nil {
		t.Fatalf("unfreeze: %v", err)
	}
	if active.Status != StatusActive {
		t.Fatalf("expected active, got %s", active.Status)
	}
}
