package queue

import (
	"context"
	"errors"
	"fmt"

	domain "github.com/aq2208/gorder-scalapay/internal/entity"
	"github.com/aq2208/gorder-scalapay/internal/logging"
	"github.com/aq2208/gorder-scalapay/internal/usecase"
)

// Refunder is the slice of usecase.RefundPayment the consumer needs.
type Refunder interface {
	Execute(ctx context.Context, in usecase.RefundInput) (usecase.RefundOutput, error)
}

// RefundRequestedHandler turns scalapay.refund.requested commands into provider refunds.
type RefundRequestedHandler struct {
	uc Refunder
}

func NewRefundRequestedHandler(uc Refunder) *RefundRequestedHandler {
	return &RefundRequestedHandler{uc: uc}
}

// HandleRefund is intended to be used with the JSON adapter (queue.JSONHandler[RefundRequestedMsg]).
// A provider-side failure is final for this delivery; only local errors are retried.
func (h *RefundRequestedHandler) HandleRefund(ctx context.Context, msg usecase.RefundRequestedMsg) error {
	l := logging.FromCtx(ctx).With("order_id", msg.OrderID, "idempotency_key", msg.IdempotencyKey)

	out, err := h.uc.Execute(ctx, usecase.RefundInput{
		OrderID:        msg.OrderID,
		AmountCents:    msg.AmountCents,
		IdempotencyKey: msg.IdempotencyKey,
	})
	switch {
	case errors.Is(err, usecase.ErrInvalidAmount):
		return fmt.Errorf("%w: %v", ErrPoison, err)
	case errors.Is(err, usecase.ErrDuplicate):
		l.Info("refund already in flight, dropping redelivery")
		return nil
	case err != nil:
		return err
	}

	if out.State == domain.RefundFailed {
		l.Error("scalapay refund failed", "err", out.Error)
		return nil
	}
	l.Info("scalapay refund settled")
	return nil
}
