package reconciliation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// PostgresReportStore persists reconciliation reports in PostgreSQL, with
// anomalies stored as JSONB.
type PostgresReportStore struct {
	db *pgxpool.Pool
}

// NewPostgresReportStore constructs a Postgres-backed report store.
func NewPostgresReportStore(db *pgxpool.Pool) *PostgresReportStore {
	return &PostgresReportStore{db: db}
}

// Save inserts the report.
func (s *PostgresReportStore) Save(ctx context.Context, report Report) error {
	anomalies, err := json.Marshal(report.Anomalies)
	if err != nil {
		return fmt.Errorf("encode anomalies: %w", err)
	}
	_, err = s.db.Exec(ctx, `INSERT INTO reconciliation_reports
		(id, report_date, payment_gateway, matched_count, local_only_count, gateway_only_count,
		 discrepancy_amount, anomalies, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		report.ID, report.ReportDate, report.Gateway, report.MatchedCount, report.LocalOnlyCount,
		report.GatewayOnlyCount, report.DiscrepancyAmount.String(), anomalies, report.Status, report.CreatedAt)
	return err
}

const reportColumns = `id, report_date, payment_gateway, matched_count, local_only_count,
	gateway_only_count, discrepancy_amount::text, anomalies, status, reviewed_by, review_notes, created_at`

func scanReport(row pgx.Row) (Report, error) {
	var r Report
	var discrepancy string
	var anomalies []byte
	if err := row.Scan(&r.ID, &r.ReportDate, &r.Gateway, &r.MatchedCount, &r.LocalOnlyCount,
		&r.GatewayOnlyCount, &discrepancy, &anomalies, &r.Status, &r.ReviewedBy, &r.ReviewNotes,
		&r.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Report{}, ErrReportNotFound
		}
		return Report{}, err
	}
	var err error
	if r.DiscrepancyAmount, err = decimal.NewFromString(discrepancy); err != nil {
		return Report{}, fmt.Errorf("parse discrepancy amount: %w", err)
	}
	if err := json.Unmarshal(anomalies, &r.Anomalies); err != nil {
		return Report{}, fmt.Errorf("decode anomalies: %w", err)
	}
	r.ReportDate = r.ReportDate.UTC()
	r.CreatedAt = r.CreatedAt.UTC()
	return r, nil
}

// Get fetches a report by identifier.
func (s *PostgresReportStore) Get(ctx context.Context, reportID string) (Report, error) {
	row := s.db.QueryRow(ctx, `SELECT `+reportColumns+` FROM reconciliation_reports WHERE id = $1`, reportID)
	return scanReport(row)
}

// Review records the operator sign-off on a report.
func (s *PostgresReportStore) Review(ctx context.Context, reportID, reviewedBy, notes string) (Report, error) {
	tag, err := s.db.Exec(ctx, `UPDATE reconciliation_reports SET status = $2, reviewed_by = $3, review_notes = $4
		WHERE id = $1`, reportID, StatusReviewed, reviewedBy, notes)
	if err != nil {
		return Report{}, err
	}
	if tag.RowsAffected() == 0 {
		return Report{}, ErrReportNotFound
	}
	return s.Get(ctx, reportID)
}
