// Package payment integrates the Chapa hosted checkout with the wallet
// ledger: a deposit is recorded as pending when checkout starts and is
// credited once the gateway confirms it.
package payment

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrGateway marks failures reported by or while talking to the gateway.
var ErrGateway = errors.New("payment gateway error")

// Gateway statuses.
const (
	StatusSuccess = "success"
	StatusPending = "pending"
	StatusFailed  = "failed"
)

// CheckoutRequest describes a hosted checkout.
type CheckoutRequest struct {
	TxRef       string
	Amount      decimal.Decimal
	Currency    string
	Email       string
	FirstName   string
	LastName    string
	Phone       string
	Title       string
	Description string
}

// Checkout is where the payer completes the payment.
type Checkout struct {
	CheckoutURL string `json:"checkoutUrl"`
	TxRef       string `json:"txRef"`
}

// Verification is the gateway's view of a payment.
type Verification struct {
	TxRef    string
	Status   string
	Amount   decimal.Decimal
	Currency string
}

// Gateway starts and verifies payments.
type Gateway interface {
	Initialize(ctx context.Context, req CheckoutRequest) (*Checkout, error)
	Verify(ctx context.Context, txRef string) (*Verification, error)
}

// NewTxRef returns a fresh deposit reference.
func NewTxRef() string {
	return "deposit-" + uuid.NewString()
}
