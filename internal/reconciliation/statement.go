package reconciliation

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Settlement is one settled payment from the gateway's side of the books.
type Settlement struct {
	PaymentReference string
	Amount           decimal.Decimal
	Currency         string
	SettledAt        time.Time
}

// StatementProvider supplies the gateway's settlement records for a day.
// In production this is an export fetched from the gateway; tests use the
// static implementation.
type StatementProvider interface {
	Statement(ctx context.Context, gateway string, day time.Time) ([]Settlement, error)
}

// StaticProvider serves a fixed set of settlement records.
type StaticProvider struct {
	Records []Settlement
}

// Statement returns the configured records regardless of gateway and day.
func (p StaticProvider) Statement(_ context.Context, _ string, _ time.Time) ([]Settlement, error) {
	return p.Records, nil
}
