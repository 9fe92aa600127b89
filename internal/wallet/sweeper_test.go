package wallet

import (
	"context"
	"testing"
	"time"

	"github.com/cargoloop/cargoloop/internal/logging"
)

func TestSweeperReleasesExpiredWork(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	w := newFundedWallet(t, store, "100.00")

	h, err := store.CreateHold(ctx, w.ID, dec("40.00"), Reference{}, "sweep-hold", time.Now().UTC().Add(-time.Minute))
	if err != nil {
		t.Fatalf("create hold: %v", err)
	}
	top, err := store.CreateTopup(ctx, Topup{WalletID: w.ID, Amount: dec("10.00"), Currency: "USD", Gateway: "static", IdempotencyKey: "sweep-top"})
	if err != nil {
		t.Fatalf("create topup: %v", err)
	}

	sweeper := NewSweeper(store, 10*time.Millisecond, -time.Minute, logging.Discard())
	sweeper.Start()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		got, err := store.GetHold(ctx, h.ID)
		if err != nil {
			t.Fatalf("get hold: %v", err)
		}
		if got.Status == HoldExpired {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	sweeper.Stop()

	got, _ := store.GetHold(ctx, h.ID)
	if got.Status != HoldExpired {
		t.Fatalf("expected hold expired by sweeper, got %s", got.Status)
	}
	gotTop, _ := store.GetTopup(ctx, top.ID)
	if gotTop.Status != TopupExpired {
		t.Fatalf("expected pending topup expired by sweeper, got %s", gotTop.Status)
	}

	after, _ := store.GetWallet(ctx, w.ID)
	if !after.Reserved.Equal(dec("0")) {
		t.Fatalf("expected reserved released to 0, got %s", after.Reserved)
	}
}
