package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aq2208/gorder-scalapay/internal/adapter/observ"
	domain "github.com/aq2208/gorder-scalapay/internal/entity"
	"github.com/aq2208/gorder-scalapay/internal/logging"
)

// SettleInput is one provider redirect, as received on the callback.
type SettleInput struct {
	Principal         string // session id or subject of the caller
	OrderStatus       string
	OrderID           string
	OrderToken        string
	MerchantReference string
	TotalAmount       string
}

func (in SettleInput) Validate() error {
	var missing []string
	if in.Principal == "" {
		missing = append(missing, "session")
	}
	if in.OrderID == "" {
		missing = append(missing, "orderId")
	}
	if in.OrderStatus == "" {
		missing = append(missing, "status")
	}
	if in.OrderToken == "" {
		missing = append(missing, "orderToken")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrMalformedRequest, strings.Join(missing, ", "))
	}
	return nil
}

type SettlePayment struct {
	engine   OrderEngine
	methods  PaymentMethodFinder
	gw       PaymentGateway
	events   EventPublisher // optional
	cache    OrderCache     // optional
	fallback domain.OrderState
	now      func() time.Time
}

type SettleOption func(*SettlePayment)

func WithFallbackState(s domain.OrderState) SettleOption {
	return func(uc *SettlePayment) { uc.fallback = s }
}
func WithEvents(p EventPublisher) SettleOption { return func(uc *SettlePayment) { uc.events = p } }
func WithCache(c OrderCache) SettleOption      { return func(uc *SettlePayment) { uc.cache = c } }

// NewSettlePayment builds the reconciler. The fallback state defaults to AddingItems.
func NewSettlePayment(engine OrderEngine, methods PaymentMethodFinder, gw PaymentGateway, opts ...SettleOption) *SettlePayment {
	uc := &SettlePayment{
		engine:   engine,
		methods:  methods,
		gw:       gw,
		fallback: domain.StateAddingItems,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Execute reconciles one callback into the order. It reports whether the order is paid.
// The error is non-nil only for configuration problems that no retry can fix.
func (uc *SettlePayment) Execute(ctx context.Context, in SettleInput) (bool, error) {
	l := logging.FromCtx(ctx).With(
		"order_id", in.OrderID,
		"status", in.OrderStatus,
		"token_present", in.OrderToken != "",
		"token", logging.Mask(in.OrderToken),
	)

	order, outcome, err := uc.settle(ctx, in, l)
	observ.SettlementObserved(outcome)

	ok := outcome == observ.OutcomeSettled || outcome == observ.OutcomeReplayed
	if ok {
		l.Info("scalapay payment settled", "outcome", outcome)
	}
	if outcome != observ.OutcomeMalformed && outcome != observ.OutcomeFatal {
		uc.notify(ctx, l, in, order, outcome, ok)
	}
	return ok, err
}

func (uc *SettlePayment) settle(ctx context.Context, in SettleInput, l *slog.Logger) (*domain.Order, string, error) {
	// 1) shape; nothing is touched before the order is identified
	if err := in.Validate(); err != nil {
		l.Error("unable to settle scalapay payment", "err", err)
		return nil, observ.OutcomeMalformed, nil
	}

	// 2) provider decline
	if !strings.EqualFold(in.OrderStatus, "success") {
		l.Error("scalapay reported a non-success status")
		uc.toFallback(ctx, in.OrderID, l)
		return nil, observ.OutcomeDeclined, nil
	}

	// 3) load with payments so a redelivered callback can be recognised
	order, err := uc.engine.FindOrder(ctx, in.OrderID, RelPayments)
	if err != nil {
		l.Error("unable to retrieve order", "err", err)
		uc.toFallback(ctx, in.OrderID, l)
		return nil, observ.OutcomeFailed, nil
	}

	if _, done := order.PaymentByToken(in.OrderToken); done {
		if err := uc.persistToken(ctx, order, in.OrderToken); err != nil {
			l.Error("unable to re-apply scalapay token", "err", err)
			uc.toFallback(ctx, in.OrderID, l)
			return order, observ.OutcomeFailed, nil
		}
		return order, observ.OutcomeReplayed, nil
	}

	// 4) payments can only be attached while arranging payment
	if order.State != domain.StateArrangingPayment {
		if err := uc.engine.TransitionState(ctx, order.ID, domain.StateArrangingPayment); err != nil {
			l.Error("unable to transition order to ArrangingPayment", "from", order.State, "err", err)
			uc.toFallback(ctx, order.ID, l)
			return order, observ.OutcomeFailed, nil
		}
		order.State = domain.StateArrangingPayment
	}

	// 5) a missing payment method is a deployment error, not a shopper error
	method, err := uc.paymentMethod(ctx)
	if errors.Is(err, ErrPaymentMethodNotConfigured) {
		l.Error("internal error: scalapay payment method is not registered", "err", err)
		return order, observ.OutcomeFatal, err
	}
	if err != nil {
		l.Error("unable to list payment methods", "err", err)
		uc.toFallback(ctx, order.ID, l)
		return order, observ.OutcomeFailed, nil
	}

	// 6) capture remotely, then attach the payment locally
	capture, err := uc.gw.Capture(ctx, order.TotalWithTax, in.OrderToken)
	if err != nil {
		l.Error("scalapay capture failed", "amount", order.TotalWithTax, "err", err)
		uc.toFallback(ctx, order.ID, l)
		return order, observ.OutcomeDeclined, nil
	}
	if !strings.EqualFold(capture.Status, "approved") {
		l.Error("scalapay capture not approved", "capture_status", capture.Status)
		uc.toFallback(ctx, order.ID, l)
		return order, observ.OutcomeDeclined, nil
	}

	updated, err := uc.engine.AddPayment(ctx, order.ID, domain.PaymentInput{
		Method:        method.Code,
		TransactionID: uc.transactionID(order, in),
		Metadata: map[string]string{
			domain.MetaReceivedAmount: in.TotalAmount,
			domain.MetaToken:          in.OrderToken,
			domain.MetaProviderStatus: in.OrderStatus,
			domain.MetaCaptureStatus:  capture.Status,
		},
	})
	if err != nil {
		// the capture above went through: this needs a manual refund if it never recovers
		l.Error("unable to add payment to order", "captured_amount", order.TotalWithTax, "err", err)
		uc.toFallback(ctx, order.ID, l)
		return order, observ.OutcomeFailed, nil
	}
	if updated != nil {
		order = updated
	}

	// 7) token + lines for downstream consumers
	if err := uc.persistToken(ctx, order, in.OrderToken); err != nil {
		l.Error("unable to persist scalapay token", "err", err)
		uc.toFallback(ctx, order.ID, l)
		return order, observ.OutcomeFailed, nil
	}
	return order, observ.OutcomeSettled, nil
}

func (uc *SettlePayment) persistToken(ctx context.Context, o *domain.Order, token string) error {
	o.CustomFields.ScalapayToken = domain.StringPtr(token)
	if len(o.Lines) == 0 {
		if err := uc.engine.Hydrate(ctx, o, RelLines); err != nil {
			return fmt.Errorf("hydrate lines: %w", err)
		}
	}
	if err := uc.engine.SaveOrder(ctx, o); err != nil {
		return fmt.Errorf("save order: %w", err)
	}
	return nil
}

func (uc *SettlePayment) paymentMethod(ctx context.Context) (domain.PaymentMethod, error) {
	all, err := uc.methods.FindAll(ctx)
	if err != nil {
		return domain.PaymentMethod{}, err
	}
	for _, m := range all {
		if m.HandlerCode == domain.ScalapayHandler && m.Enabled {
			return m, nil
		}
	}
	return domain.PaymentMethod{}, ErrPaymentMethodNotConfigured
}

func (uc *SettlePayment) transactionID(o *domain.Order, in SettleInput) string {
	if u := domain.Deref(o.CustomFields.ScalapayCheckoutURL); u != "" {
		return domain.TransactionID(u)
	}
	return in.MerchantReference
}

// toFallback is best-effort: the engine may refuse it, e.g. for an unknown order.
// A reverted order drops its checkout URL so the next checkout opens a fresh one.
func (uc *SettlePayment) toFallback(ctx context.Context, orderID string, l *slog.Logger) {
	if err := uc.engine.TransitionState(ctx, orderID, uc.fallback); err != nil {
		l.Warn("fallback transition failed", "fallback", uc.fallback, "err", err)
		return
	}

	o, err := uc.engine.FindOrder(ctx, orderID)
	if err != nil {
		l.Warn("unable to reload order after fallback", "err", err)
		return
	}
	if o.CustomFields.ScalapayCheckoutURL == nil {
		return
	}
	o.CustomFields.ScalapayCheckoutURL = nil
	if err := uc.engine.SaveOrder(ctx, o); err != nil {
		l.Warn("unable to clear scalapay checkout url", "err", err)
	}
}

func (uc *SettlePayment) notify(ctx context.Context, l *slog.Logger, in SettleInput, o *domain.Order, outcome string, ok bool) {
	ev := SettlementEvent{
		OrderID:    in.OrderID,
		Status:     in.OrderStatus,
		Outcome:    outcome,
		Settled:    ok,
		OccurredAt: uc.now().UTC(),
	}
	if ok && o != nil {
		ev.OrderState = string(o.State)
	}

	if uc.events != nil {
		if err := uc.events.PublishSettlement(ctx, ev); err != nil {
			l.Warn("publish settlement event", "err", err)
		}
	}
	// cache best-effort; a failed attempt may have moved the order, so the next read goes to the engine
	if uc.cache == nil {
		return
	}
	if ev.OrderState != "" {
		if err := uc.cache.SetStatus(ctx, in.OrderID, ev.OrderState); err != nil {
			l.Warn("cache order status", "err", err)
		}
		return
	}
	if err := uc.cache.DelStatus(ctx, in.OrderID); err != nil {
		l.Warn("evict order status", "err", err)
	}
}
