package reconciliation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/cargoloop/cargoloop/internal/wallet"
)

// Service cross-checks local topup records against the gateway's settlement
// statement. It reads live data but never mutates topups or the ledger; all
// discrepancies are surfaced on the report for manual resolution.
type Service struct {
	topups   wallet.Store
	provider StatementProvider
	reports  ReportStore
}

// NewService builds a reconciliation service.
func NewService(topups wallet.Store, provider StatementProvider, reports ReportStore) (*Service, error) {
	if provider == nil {
		return nil, fmt.Errorf("statement provider is required")
	}
	if reports == nil {
		return nil, fmt.Errorf("report store is required")
	}
	return &Service{topups: topups, provider: provider, reports: reports}, nil
}

// Run reconciles one day of one gateway's traffic and persists the report.
// DiscrepancyAmount is local confirmed volume minus gateway settled volume.
func (s *Service) Run(ctx context.Context, day time.Time, gateway string) (Report, error) {
	local, err := s.topups.TopupsSettledOn(ctx, gateway, day)
	if err != nil {
		return Report{}, fmt.Errorf("load local topups: %w", err)
	}
	statement, err := s.provider.Statement(ctx, gateway, day)
	if err != nil {
		return Report{}, fmt.Errorf("load gateway statement: %w", err)
	}

	settled := make(map[string]Settlement, len(statement))
	for _, rec := range statement {
		settled[rec.PaymentReference] = rec
	}

	report := Report{
		ID:                uuid.NewString(),
		ReportDate:        day.UTC().Truncate(24 * time.Hour),
		Gateway:           gateway,
		DiscrepancyAmount: decimal.Zero,
		CreatedAt:         time.Now().UTC(),
	}

	claimed := make(map[string]bool, len(statement))
	for _, t := range local {
		rec, ok := settled[t.PaymentReference]
		if ok {
			claimed[t.PaymentReference] = true
		}

		switch {
		case t.Status == wallet.TopupSuccess && ok && rec.Amount.Equal(t.Amount):
			report.MatchedCount++
			// local and gateway agree; contributes nothing to the discrepancy
		case t.Status == wallet.TopupSuccess && ok:
			report.MatchedCount++
			report.DiscrepancyAmount = report.DiscrepancyAmount.Add(t.Amount.Sub(rec.Amount))
			report.Anomalies = append(report.Anomalies, Anomaly{
				Kind:             AnomalyAmountMismatch,
				TopupID:          t.ID,
				PaymentReference: t.PaymentReference,
				LocalAmount:      t.Amount,
				GatewayAmount:    rec.Amount,
				Detail:           "settled amount differs from confirmed topup amount",
			})
		case t.Status == wallet.TopupSuccess:
			report.LocalOnlyCount++
			report.DiscrepancyAmount = report.DiscrepancyAmount.Add(t.Amount)
			report.Anomalies = append(report.Anomalies, Anomaly{
				Kind:             AnomalyMissingSettlement,
				TopupID:          t.ID,
				PaymentReference: t.PaymentReference,
				LocalAmount:      t.Amount,
				GatewayAmount:    decimal.Zero,
				Detail:           "confirmed topup has no matching gateway settlement",
			})
		case t.Status == wallet.TopupFailed && ok:
			report.Anomalies = append(report.Anomalies, Anomaly{
				Kind:             AnomalyFailedButSettled,
				TopupID:          t.ID,
				PaymentReference: t.PaymentReference,
				LocalAmount:      t.Amount,
				GatewayAmount:    rec.Amount,
				Detail:           "topup failed locally but the gateway settled it",
			})
		}
	}

	for _, rec := range statement {
		if claimed[rec.PaymentReference] {
			continue
		}
		report.GatewayOnlyCount++
		report.DiscrepancyAmount = report.DiscrepancyAmount.Sub(rec.Amount)
		report.Anomalies = append(report.Anomalies, Anomaly{
			Kind:             AnomalyUnknownSettlement,
			PaymentReference: rec.PaymentReference,
			LocalAmount:      decimal.Zero,
			GatewayAmount:    rec.Amount,
			Detail:           "gateway settlement has no local topup",
		})
	}

	if len(report.Anomalies) == 0 {
		report.Status = StatusClean
	} else {
		report.Status = StatusDiscrepancies
	}

	if err := s.reports.Save(ctx, report); err != nil {
		return Report{}, fmt.Errorf("save report: %w", err)
	}
	return report, nil
}

// Get fetches a persisted report.
func (s *Service) Get(ctx context.Context, reportID string) (Report, error) {
	return s.reports.Get(ctx, reportID)
}

// Review records the operator sign-off on a report.
func (s *Service) Review(ctx context.Context, reportID, reviewedBy, notes string) (Report, error) {
	if reviewedBy == "" {
		return Report{}, fmt.Errorf("reviewer is required")
	}
	return s.reports.Review(ctx, reportID, reviewedBy, notes)
}
