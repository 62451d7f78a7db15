package usecase

import (
	"context"
	"encoding/json"
	"errors"

	domain "github.com/aq2208/gorder-scalapay/internal/entity"
)

var (
	ErrMalformedRequest           = errors.New("malformed settlement request")
	ErrDeclined                   = errors.New("declined by provider")
	ErrOrderNotFound              = errors.New("order not found")
	ErrTransitionRejected         = errors.New("order state transition rejected")
	ErrPaymentRejected            = errors.New("payment rejected by order engine")
	ErrPaymentMethodNotConfigured = errors.New("scalapay payment method not configured")
	ErrDuplicate                  = errors.New("duplicate idempotency key")
	ErrInvalidAmount              = errors.New("invalid amount")
)

// Relations the engine can populate on an order.
const (
	RelLines     = "lines"
	RelPayments  = "payments"
	RelCustomer  = "customer"
	RelDiscounts = "discounts"
)

// OrderEngine is the order-management platform as seen by this service.
type OrderEngine interface {
	// FindOrder returns ErrOrderNotFound when id is unknown.
	FindOrder(ctx context.Context, id string, relations ...string) (*domain.Order, error)
	// TransitionState returns ErrTransitionRejected when the engine refuses the move.
	TransitionState(ctx context.Context, id string, to domain.OrderState) error
	// AddPayment returns ErrPaymentRejected unless the order is in ArrangingPayment.
	AddPayment(ctx context.Context, id string, in domain.PaymentInput) (*domain.Order, error)
	Hydrate(ctx context.Context, o *domain.Order, relations ...string) error
	// SaveOrder persists the order's custom fields.
	SaveOrder(ctx context.Context, o *domain.Order) error
}

type PaymentMethodFinder interface {
	FindAll(ctx context.Context) ([]domain.PaymentMethod, error)
}

// PaymentGateway is the remote provider. Every error is a remote failure.
type PaymentGateway interface {
	CreateCheckout(ctx context.Context, o *domain.Order) (*domain.Checkout, error)
	Capture(ctx context.Context, amountMinor int64, token string) (*domain.Capture, error)
	Refund(ctx context.Context, amountMinor int64) (json.RawMessage, error)
}

type EventPublisher interface {
	PublishSettlement(ctx context.Context, ev SettlementEvent) error
}

type OrderCache interface {
	SetStatus(ctx context.Context, orderID string, status string) error
	GetStatus(ctx context.Context, orderID string) (string, bool, error)
	DelStatus(ctx context.Context, orderID string) error
}

type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Release(ctx context.Context, scope, key string) error
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
}
