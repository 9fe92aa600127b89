package reconciliation

import (
	"context"
	"errors"
	"testing"
	"time"

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

func seedTopup(t *testing.T, store wallet.Store, walletID, key, amount string) wallet.Topup {
	t.Helper()
	top, err := store.CreateTopup(context.Background(), wallet.Topup{
		WalletID:       walletID,
		Amount:         dec(t, amount),
		Currency:       "USD",
		Gateway:        "static",
		IdempotencyKey: key,
	})
	if err != nil {
		t.Fatalf("create topup %s: %v", key, err)
	}
	return top
}

func TestRunCleanReport(t *testing.T) {
	ctx := context.Background()
	store := wallet.NewMemoryStore()
	w, _ := store.EnsureWallet(ctx, "tenant-1", "USD")

	top := seedTopup(t, store, w.ID, "t-1", "100.00")
	confirmed, _, err := store.ConfirmTopup(ctx, top.ID, "psp-1", "")
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}

	provider := StaticProvider{Records: []Settlement{
		{PaymentReference: confirmed.PaymentReference, Amount: dec(t, "100.00"), Currency: "USD"},
	}}
	svc, err := NewService(store, provider, NewMemoryReportStore())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	report, err := svc.Run(ctx, time.Now().UTC(), "static")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Status != StatusClean {
		t.Fatalf("expected clean report, got %s with %+v", report.Status, report.Anomalies)
	}
	if report.MatchedCount != 1 || report.LocalOnlyCount != 0 || report.GatewayOnlyCount != 0 {
		t.Fatalf("unexpected counts: %+v", report)
	}
	if !report.DiscrepancyAmount.IsZero() {
		t.Fatalf("expected zero discrepancy, got %s", report.DiscrepancyAmount)
	}
}

func TestRunClassifiesAnomalies(t *testing.T) {
	ctx := context.Background()
	store := wallet.NewMemoryStore()
	w, _ := store.EnsureWallet(ctx, "tenant-1", "USD")

	// Confirmed locally, settled for a different amount.
	mismatch := seedTopup(t, store, w.ID, "t-mismatch", "100.00")
	mismatchConfirmed, _, err := store.ConfirmTopup(ctx, mismatch.ID, "psp-mismatch", "")
	if err != nil {
		t.Fatalf("confirm mismatch: %v", err)
	}

	// Confirmed locally, absent from the gateway statement.
	localOnly := seedTopup(t, store, w.ID, "t-local", "50.00")
	if _, _, err := store.ConfirmTopup(ctx, localOnly.ID, "psp-local", ""); err != nil {
		t.Fatalf("confirm local only: %v", err)
	}

	// Failed locally, yet settled by the gateway.
	failed, err := store.CreateTopup(ctx, wallet.Topup{
		WalletID:         w.ID,
		Amount:           dec(t, "70.00"),
		Currency:         "USD",
		Gateway:          "static",
		PaymentReference: "psp-failed",
		IdempotencyKey:   "t-failed",
	})
	if err != nil {
		t.Fatalf("create failed topup: %v", err)
	}
	if _, err := store.FailTopup(ctx, failed.ID, "declined"); err != nil {
		t.Fatalf("fail: %v", err)
	}

	provider := StaticProvider{Records: []Settlement{
		{PaymentReference: mismatchConfirmed.PaymentReference, Amount: dec(t, "90.00"), Currency: "USD"},
		{PaymentReference: failed.PaymentReference, Amount: dec(t, "70.00"), Currency: "USD"},
		{PaymentReference: "psp-unknown", Amount: dec(t, "30.00"), Currency: "USD"},
	}}
	svc, err := NewService(store, provider, NewMemoryReportStore())
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	report, err := svc.Run(ctx, time.Now().UTC(), "static")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if report.Status != StatusDiscrepancies {
		t.Fatalf("expected discrepancies, got %s", report.Status)
	}

	kinds := map[string]int{}
	for _, a := range report.Anomalies {
		kinds[a.Kind]++
	}
	for _, kind := range []string{AnomalyAmountMismatch, AnomalyMissingSettlement, AnomalyFailedButSettled, AnomalyUnknownSettlement} {
		if kinds[kind] != 1 {
			t.Fatalf("expected one %s anomaly, got %d (%+v)", kind, kinds[kind], report.Anomalies)
		}
	}

	// local confirmed 150 (100 + 50) minus gateway matched-settled:
	// mismatch +10, local-only +50, unknown -30.
	if !report.DiscrepancyAmount.Equal(dec(t, "30.00")) {
		t.Fatalf("expected discrepancy 30.00, got %s", report.DiscrepancyAmount)
	}
	if report.LocalOnlyCount != 1 || report.GatewayOnlyCount != 1 || report.MatchedCount != 1 {
		t.Fatalf("unexpected counts: %+v", report)
	}
}

func TestRunNeverMutatesWallets(t *testing.T) {
	ctx := context.Background()
	store := wallet.NewMemoryStore()
	w, _ := store.EnsureWallet(ctx, "tenant-1", "USD")

	top := seedTopup(t, store, w.ID, "t-1", "100.00")
	if _, _, err := store.ConfirmTopup(ctx, top.ID, "psp-1", ""); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	before, _ := store.GetWallet(ctx, w.ID)

	svc, _ := NewService(store, StaticProvider{}, NewMemoryReportStore())
	if _, err := svc.Run(ctx, time.Now().UTC(), "static"); err != nil {
		t.Fatalf("run: %v", err)
	}

	after, _ := store.GetWallet(ctx, w.ID)
	if !after.Available.Equal(before.Available) || !after.Reserved.Equal(before.Reserved) {
		t.Fatalf("reconciliation changed balances: %s/%s -> %s/%s",
			before.Available, before.Reserved, after.Available, after.Reserved)
	}
}

func TestReviewMarksReport(t *testing.T) {
	ctx := context.Background()
	store := wallet.NewMemoryStore()
	reports := NewMemoryReportStore()
	svc, _ := NewService(store, StaticProvider{}, reports)

	report, err := svc.Run(ctx, time.Now().UTC(), "static")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if _, err := svc.Review(ctx, report.ID, "", "notes"); err == nil {
		t.Fatalf("expected error for missing reviewer")
	}

	reviewed, err := svc.Review(ctx, report.ID, "ops-lead", "all explained")
	if err != nil {
		t.Fatalf("review: %v", err)
	}
	if reviewed.Status != StatusReviewed || reviewed.ReviewedBy != "ops-lead" {
		t.Fatalf("unexpected reviewed report: %+v", reviewed)
	}

	if _, err := svc.Review(ctx, "missing", "ops-lead", ""); !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("expected ErrReportNotFound, got %v", err)
	}
}
