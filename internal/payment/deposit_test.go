package payment

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telegram-bingo/internal/model"
	"telegram-bingo/internal/repository/memory"
	"telegram-bingo/internal/service"
)

type fakeGateway struct {
	initErr error
	status  string
	amount  decimal.Decimal
	started []CheckoutRequest
}

func (g *fakeGateway) Initialize(_ context.Context, req CheckoutRequest) (*Checkout, error) {
	if g.initErr != nil {
		return nil, g.initErr
	}
	g.started = append(g.started, req)
	return &Checkout{CheckoutURL: "https://pay.example/" + req.TxRef, TxRef: req.TxRef}, nil
}

func (g *fakeGateway) Verify(_ context.Context, txRef string) (*Verification, error) {
	return &Verification{TxRef: txRef, Status: g.status, Amount: g.amount}, nil
}

func newDeposits(gw Gateway) (*Deposits, *service.WalletService) {
	store := memory.New("ETB")
	wallet := service.NewWalletService(store, nil, service.DefaultWalletLimits())
	return NewDeposits(gw, wallet, "ETB"), wallet
}

func TestDepositCompletesOnce(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{status: StatusSuccess}
	deposits, wallet := newDeposits(gw)

	checkout, tx, err := deposits.Start(ctx, Payer{UserID: "u1"}, decimal.NewFromInt(200))
	require.NoError(t, err)
	assert.Equal(t, model.TxPending, tx.Status)
	assert.Equal(t, tx.Reference, checkout.TxRef)
	require.Len(t, gw.started, 1)
	assert.Equal(t, "ETB", gw.started[0].Currency)

	bal, err := wallet.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, bal.IsZero(), "pending deposit must not credit")

	for range 3 {
		done, err := deposits.Confirm(ctx, checkout.TxRef)
		require.NoError(t, err)
		assert.Equal(t, model.TxCompleted, done.Status)
	}

	bal, err = wallet.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "200.00", bal.StringFixed(2))
}

func TestDepositPendingThenFailed(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{status: StatusPending}
	deposits, wallet := newDeposits(gw)

	checkout, _, err := deposits.Start(ctx, Payer{UserID: "u1"}, decimal.NewFromInt(50))
	require.NoError(t, err)

	_, err = deposits.Confirm(ctx, checkout.TxRef)
	require.ErrorIs(t, err, ErrPaymentPending)

	gw.status = StatusFailed
	tx, err := deposits.Confirm(ctx, checkout.TxRef)
	require.NoError(t, err)
	assert.Equal(t, model.TxFailed, tx.Status)

	gw.status = StatusSuccess
	_, err = deposits.Confirm(ctx, checkout.TxRef)
	require.ErrorIs(t, err, service.ErrDepositNotPending)

	bal, err := wallet.Balance(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, bal.IsZero())
}

func TestDepositCheckoutRejected(t *testing.T) {
	ctx := context.Background()
	gw := &fakeGateway{initErr: errors.New("boom")}
	deposits, wallet := newDeposits(gw)

	_, _, err := deposits.Start(ctx, Payer{UserID: "u1"}, decimal.NewFromInt(50))
	require.Error(t, err)

	history, err := wallet.History(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.TxFailed, history[0].Status)
}

func TestDepositOutOfRange(t *testing.T) {
	deposits, _ := newDeposits(&fakeGateway{})
	_, _, err := deposits.Start(context.Background(), Payer{UserID: "u1"}, decimal.NewFromInt(500000))
	require.Error(t, err)
}
