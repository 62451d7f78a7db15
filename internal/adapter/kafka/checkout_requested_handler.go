package kafka

import (
	"context"
	"errors"

	"github.com/aq2208/gorder-scalapay/internal/logging"
	"github.com/aq2208/gorder-scalapay/internal/usecase"
)

type CheckoutCreator interface {
	Execute(ctx context.Context, orderID string) (usecase.CreatePaymentOutput, error)
}

// CheckoutRequestedHandler opens a Scalapay checkout when the storefront asks for one.
type CheckoutRequestedHandler struct {
	UC CheckoutCreator
}

func NewCheckoutRequestedHandler(uc CheckoutCreator) *CheckoutRequestedHandler {
	return &CheckoutRequestedHandler{UC: uc}
}

// Handle returns an error only when a retry could help.
func (h *CheckoutRequestedHandler) Handle(ctx context.Context, ev usecase.CheckoutRequestedMsg) error {
	l := logging.FromCtx(ctx).With("order_id", ev.OrderID)

	out, err := h.UC.Execute(ctx, ev.OrderID)
	switch {
	case usecase.IsNotFound(err):
		l.Warn("checkout requested for unknown order")
		return nil
	case errors.Is(err, usecase.ErrDeclined):
		l.Error("scalapay checkout declined", "reason", out.ErrorMessage)
		return nil
	case err != nil:
		return err
	}
	l.Info("scalapay checkout ready", "transaction_id", out.TransactionID)
	return nil
}
