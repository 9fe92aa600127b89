package reconciliation

import (
	"time"

	"github.com/shopspring/decimal"
)

// Report statuses. A report is produced once and only ever mutated by an
// operator review.
const (
	StatusClean         = "clean"
	StatusDiscrepancies = "discrepancies_found"
	StatusReviewed      = "reviewed"
)

// Anomaly kinds.
const (
	AnomalyMissingSettlement = "missing_settlement" // successful topup, no gateway record
	AnomalyAmountMismatch    = "amount_mismatch"    // settled for a different amount
	AnomalyFailedButSettled  = "failed_but_settled" // we failed it, gateway settled it
	AnomalyUnknownSettlement = "unknown_settlement" // gateway record with no local topup
)

// Anomaly is one structured discrepancy surfaced for manual resolution.
type Anomaly struct {
	Kind             string          `json:"kind"`
	TopupID          string          `json:"topup_id,omitempty"`
	PaymentReference string          `json:"payment_reference,omitempty"`
	LocalAmount      decimal.Decimal `json:"local_amount"`
	GatewayAmount    decimal.Decimal `json:"gateway_amount"`
	Detail           string          `json:"detail"`
}

// Report is the outcome of one reconciliation run for a (date, gateway)
// pair. DiscrepancyAmount is the net difference between locally confirmed
// topup volume and what the gateway settled.
type Report struct {
	ID                string
	ReportDate        time.Time
	Gateway           string
	MatchedCount      int
	LocalOnlyCount    int
	GatewayOnlyCount  int
	DiscrepancyAmount decimal.Decimal
	Anomalies         []Anomaly
	Status            string
	ReviewedBy        string
	ReviewNotes       string
	CreatedAt         time.Time
}
