package usecase

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/aq2208/gorder-scalapay/internal/entity"
	"github.com/aq2208/gorder-scalapay/internal/logging"
)

type CreatePaymentOutput struct {
	OrderID       string
	State         domain.PaymentState // Authorized or Declined
	CheckoutURL   string
	Token         string
	Expires       string
	TransactionID string
	ErrorMessage  string
}

// CreatePayment opens a Scalapay checkout for an order and stores its URL on the order.
type CreatePayment struct {
	engine OrderEngine
	gw     PaymentGateway
}

func NewCreatePayment(engine OrderEngine, gw PaymentGateway) *CreatePayment {
	return &CreatePayment{engine: engine, gw: gw}
}

func (uc *CreatePayment) Execute(ctx context.Context, orderID string) (CreatePaymentOutput, error) {
	l := logging.FromCtx(ctx).With("order_id", orderID)
	out := CreatePaymentOutput{OrderID: orderID}

	order, err := uc.engine.FindOrder(ctx, orderID, RelLines, RelCustomer, RelDiscounts)
	if err != nil {
		return out, err
	}

	// the checkout URL is write-once
	if u := domain.Deref(order.CustomFields.ScalapayCheckoutURL); u != "" {
		out.State = domain.PaymentStateAuthorized
		out.CheckoutURL = u
		out.TransactionID = domain.TransactionID(u)
		return out, nil
	}

	checkout, err := uc.gw.CreateCheckout(ctx, order)
	if err != nil {
		l.Error("scalapay create order failed", "err", err)
		return declined(out, "An error occurred while trying to retrieve the customer checkoutUrl."), fmt.Errorf("%w: %v", ErrDeclined, err)
	}
	if checkout.CheckoutURL == "" {
		l.Error("scalapay returned no checkout url")
		return declined(out, "An error occurred while trying to retrieve the customer checkoutUrl."), ErrDeclined
	}

	order.CustomFields.ScalapayCheckoutURL = domain.StringPtr(checkout.CheckoutURL)
	if err := uc.engine.SaveOrder(ctx, order); err != nil {
		l.Error("unable to store scalapay checkout url", "err", err)
		return declined(out, "Unable to set order checkout url"), fmt.Errorf("%w: %v", ErrDeclined, err)
	}

	out.State = domain.PaymentStateAuthorized
	out.CheckoutURL = checkout.CheckoutURL
	out.Token = checkout.Token
	out.Expires = checkout.Expires
	out.TransactionID = domain.TransactionID(checkout.CheckoutURL)
	l.Info("scalapay checkout created", "transaction_id", out.TransactionID)
	return out, nil
}

func declined(out CreatePaymentOutput, msg string) CreatePaymentOutput {
	out.State = domain.PaymentStateDeclined
	out.ErrorMessage = msg
	return out
}

// IsNotFound reports whether err means the order does not exist.
func IsNotFound(err error) bool { return errors.Is(err, ErrOrderNotFound) }
