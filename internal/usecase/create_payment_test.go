package usecase_test

import (
	"context"
	"errors"
	"testing"

	domain "github.com/aq2208/gorder-scalapay/internal/entity"
	"github.com/aq2208/gorder-scalapay/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func checkoutOrder() *domain.Order {
	return &domain.Order{ID: "O1", State: domain.StateArrangingPayment, TotalWithTax: 10000}
}

func TestCreatePayment_StoresCheckoutURL(t *testing.T) {
	engine := newFakeEngine(checkoutOrder())
	gw := &fakeGateway{checkout: &domain.Checkout{
		Token:       "98DZ2E51FAYU",
		Expires:     "2026-10-17T10:00:00Z",
		CheckoutURL: "https://portal.integration.scalapay.com/checkout/98DZ2E51FAYU",
	}}

	out, err := usecase.NewCreatePayment(engine, gw).Execute(context.Background(), "O1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStateAuthorized, out.State)
	assert.Equal(t, "98DZ2E51FAYU", out.TransactionID)
	assert.Equal(t, "98DZ2E51FAYU", out.Token)
	assert.Equal(t, gw.checkout.CheckoutURL, domain.Deref(engine.orders["O1"].CustomFields.ScalapayCheckoutURL))
}

func TestCreatePayment_ReusesExistingCheckout(t *testing.T) {
	o := checkoutOrder()
	o.CustomFields.ScalapayCheckoutURL = domain.StringPtr("https://portal.integration.scalapay.com/checkout/ABC")
	gw := &fakeGateway{}

	out, err := usecase.NewCreatePayment(newFakeEngine(o), gw).Execute(context.Background(), "O1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStateAuthorized, out.State)
	assert.Equal(t, "ABC", out.TransactionID)
	assert.Equal(t, 0, gw.calls())
}

func TestCreatePayment_Declined(t *testing.T) {
	tests := []struct {
		name    string
		gw      *fakeGateway
		saveErr error
		msg     string
	}{
		{"remote error", &fakeGateway{checkoutErr: errors.New("502 bad gateway")}, nil,
			"An error occurred while trying to retrieve the customer checkoutUrl."},
		{"empty checkout url", &fakeGateway{checkout: &domain.Checkout{Token: "T"}}, nil,
			"An error occurred while trying to retrieve the customer checkoutUrl."},
		{"save failed", &fakeGateway{checkout: &domain.Checkout{CheckoutURL: "https://x/checkout/T"}}, errors.New("db"),
			"Unable to set order checkout url"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			engine := newFakeEngine(checkoutOrder())
			engine.saveErr = tc.saveErr

			out, err := usecase.NewCreatePayment(engine, tc.gw).Execute(context.Background(), "O1")
			require.ErrorIs(t, err, usecase.ErrDeclined)
			assert.Equal(t, domain.PaymentStateDeclined, out.State)
			assert.Equal(t, tc.msg, out.ErrorMessage)
		})
	}
}

func TestCreatePayment_OrderNotFound(t *testing.T) {
	_, err := usecase.NewCreatePayment(newFakeEngine(), &fakeGateway{}).Execute(context.Background(), "nope")
	assert.True(t, usecase.IsNotFound(err))
}
