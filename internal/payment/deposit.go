package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"telegram-bingo/internal/metrics"
	"telegram-bingo/internal/model"
	"telegram-bingo/internal/service"
)

// MethodChapa is recorded as the payment method of gateway deposits.
const MethodChapa = "chapa"

// Payer identifies who is paying.
type Payer struct {
	UserID    string
	Email     string
	FirstName string
	LastName  string
	Phone     string
}

// Deposits runs the checkout flow: record a pending deposit, open a hosted
// checkout, then settle the deposit from the gateway's verification.
type Deposits struct {
	gateway  Gateway
	wallet   *service.WalletService
	currency string
}

// NewDeposits creates a Deposits flow.
func NewDeposits(gateway Gateway, wallet *service.WalletService, currency string) *Deposits {
	if currency == "" {
		currency = model.DefaultCurrency
	}
	return &Deposits{gateway: gateway, wallet: wallet, currency: currency}
}

// Start records a pending deposit and returns the checkout to redirect the
// payer to. The deposit is failed when the gateway rejects the checkout.
func (d *Deposits) Start(ctx context.Context, payer Payer, amount decimal.Decimal) (*Checkout, *model.Transaction, error) {
	ref := NewTxRef()
	tx, err := d.wallet.InitiateDeposit(ctx, payer.UserID, amount, MethodChapa, ref)
	if err != nil {
		return nil, nil, err
	}

	checkout, err := d.gateway.Initialize(ctx, CheckoutRequest{
		TxRef:       ref,
		Amount:      tx.Amount,
		Currency:    d.currency,
		Email:       payer.Email,
		FirstName:   payer.FirstName,
		LastName:    payer.LastName,
		Phone:       payer.Phone,
		Title:       "Bingo deposit",
		Description: "Wallet top-up",
	})
	if err != nil {
		metrics.PaymentCallbacks.WithLabelValues("initialize_failed").Inc()
		if _, failErr := d.wallet.FailDeposit(ctx, ref, err.Error()); failErr != nil {
			log.Error().Err(failErr).Str("reference", ref).Msg("Failed to fail rejected deposit")
		}
		return nil, nil, fmt.Errorf("failed to start checkout: %w", err)
	}

	log.Info().
		Str("user_id", payer.UserID).
		Str("reference", ref).
		Msg("Checkout started")
	return checkout, tx, nil
}

// Confirm verifies txRef with the gateway and settles the deposit. A
// payment that is still pending leaves the deposit pending. Confirming a
// settled deposit again returns it unchanged.
func (d *Deposits) Confirm(ctx context.Context, txRef string) (*model.Transaction, error) {
	if txRef == "" {
		return nil, service.ErrWrongTransaction
	}

	v, err := d.gateway.Verify(ctx, txRef)
	if err != nil {
		metrics.PaymentCallbacks.WithLabelValues("verify_failed").Inc()
		return nil, fmt.Errorf("failed to verify payment %s: %w", txRef, err)
	}

	switch v.Status {
	case StatusSuccess:
		tx, err := d.wallet.CompleteDeposit(ctx, txRef)
		if err != nil {
			metrics.PaymentCallbacks.WithLabelValues("error").Inc()
			return nil, err
		}
		if !v.Amount.IsZero() && !v.Amount.Round(2).Equal(tx.Amount) {
			log.Warn().
				Str("reference", txRef).
				Str("recorded", tx.Amount.StringFixed(2)).
				Str("paid", v.Amount.StringFixed(2)).
				Msg("Paid amount differs from recorded deposit")
		}
		metrics.PaymentCallbacks.WithLabelValues("completed").Inc()
		return tx, nil
	case StatusFailed, "cancelled", "canceled":
		tx, err := d.wallet.FailDeposit(ctx, txRef, "payment "+v.Status)
		if err != nil && !errors.Is(err, service.ErrDepositNotPending) {
			metrics.PaymentCallbacks.WithLabelValues("error").Inc()
			return nil, err
		}
		metrics.PaymentCallbacks.WithLabelValues("failed").Inc()
		return tx, err
	default:
		metrics.PaymentCallbacks.WithLabelValues("pending").Inc()
		return nil, ErrPaymentPending
	}
}

// ErrPaymentPending is returned by Confirm while the payer has not finished.
var ErrPaymentPending = errors.New("payment is still pending")
