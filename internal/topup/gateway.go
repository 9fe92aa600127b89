package topup

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Gateway represents a connector to an external payment processor. The
// engine only sees a checkout session at initiation and a confirm/fail
// webhook afterwards; the protocol in between is the gateway's business.
type Gateway interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (CheckoutSession, error)
}

// CheckoutRequest carries what the gateway needs to collect a payment.
type CheckoutRequest struct {
	Amount    decimal.Decimal
	Currency  string
	Reference string
}

// CheckoutSession is the gateway's handle for a started payment.
type CheckoutSession struct {
	PaymentReference string
	CheckoutURL      string
}

// StaticGateway simulates a successful payment gateway integration.
type StaticGateway struct{}

// CreateCheckout returns a synthetic session.
func (StaticGateway) CreateCheckout(_ context.Context, req CheckoutRequest) (CheckoutSession, error) {
	ref := uuid.NewString()
	return CheckoutSession{
		PaymentReference: ref,
		CheckoutURL:      "https://pay.example.test/checkout/" + ref,
	}, nil
}
