package usecase

import (
	"context"
	"encoding/json"

	domain "github.com/aq2208/gorder-scalapay/internal/entity"
	"github.com/aq2208/gorder-scalapay/internal/logging"
)

type RefundInput struct {
	OrderID        string
	AmountCents    int64
	IdempotencyKey string
}

type RefundOutput struct {
	State    domain.RefundState
	Metadata json.RawMessage
	Error    string
}

type RefundPayment struct {
	gw   PaymentGateway
	idem IdempotencyStore // optional
}

func NewRefundPayment(gw PaymentGateway, idem IdempotencyStore) *RefundPayment {
	return &RefundPayment{gw: gw, idem: idem}
}

func (uc *RefundPayment) Execute(ctx context.Context, in RefundInput) (RefundOutput, error) {
	if in.AmountCents <= 0 {
		return RefundOutput{}, ErrInvalidAmount
	}
	l := logging.FromCtx(ctx).With("order_id", in.OrderID, "amount", in.AmountCents)

	useIdem := uc.idem != nil && in.IdempotencyKey != ""
	if useIdem {
		// Fast path: idempotency recall
		if meta, ok, _ := uc.idem.Recall(ctx, in.OrderID, in.IdempotencyKey); ok {
			return RefundOutput{State: domain.RefundSettled, Metadata: json.RawMessage(meta)}, nil
		}
		ok, err := uc.idem.TryLock(ctx, in.OrderID, in.IdempotencyKey)
		if err != nil {
			return RefundOutput{}, err
		}
		if !ok {
			return RefundOutput{}, ErrDuplicate
		}
	}

	meta, err := uc.gw.Refund(ctx, in.AmountCents)
	if err != nil {
		l.Error("scalapay refund failed", "err", err)
		if useIdem {
			// let the caller try again with the same key
			_ = uc.idem.Release(ctx, in.OrderID, in.IdempotencyKey)
		}
		return RefundOutput{State: domain.RefundFailed, Error: err.Error()}, nil
	}

	if useIdem {
		_ = uc.idem.Remember(ctx, in.OrderID, in.IdempotencyKey, string(meta))
	}
	l.Info("scalapay refund issued", "idempotency_key", in.IdempotencyKey)
	return RefundOutput{State: domain.RefundSettled, Metadata: meta}, nil
}
