package usecase_test

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"

	domain "github.com/aq2208/gorder-scalapay/internal/entity"
	"github.com/aq2208/gorder-scalapay/internal/usecase"
)

// fakeEngine mimics the platform's guards: transitions follow domain.CanTransition and
// payments attach only in ArrangingPayment.
type fakeEngine struct {
	orders           map[string]*domain.Order
	findCalls        int
	transitions      []domain.OrderState
	rejectTransition map[domain.OrderState]bool
	findErr          error
	addErr           error
	saveErr          error
	saves            int
	hydrates         int
}

func newFakeEngine(orders ...*domain.Order) *fakeEngine {
	f := &fakeEngine{orders: map[string]*domain.Order{}, rejectTransition: map[domain.OrderState]bool{}}
	for _, o := range orders {
		f.orders[o.ID] = o
	}
	return f
}

func (f *fakeEngine) FindOrder(_ context.Context, id string, relations ...string) (*domain.Order, error) {
	f.findCalls++
	if f.findErr != nil {
		return nil, f.findErr
	}
	o, ok := f.orders[id]
	if !ok {
		return nil, usecase.ErrOrderNotFound
	}
	c := clone(o)
	if !slices.Contains(relations, usecase.RelLines) {
		c.Lines = nil
	}
	if !slices.Contains(relations, usecase.RelPayments) {
		c.Payments = nil
	}
	return c, nil
}

func (f *fakeEngine) TransitionState(_ context.Context, id string, to domain.OrderState) error {
	f.transitions = append(f.transitions, to)
	o, ok := f.orders[id]
	if !ok {
		return usecase.ErrOrderNotFound
	}
	if f.rejectTransition[to] || !domain.CanTransition(o.State, to) {
		return fmt.Errorf("%w: %s -> %s", usecase.ErrTransitionRejected, o.State, to)
	}
	o.State = to
	return nil
}

func (f *fakeEngine) AddPayment(_ context.Context, id string, in domain.PaymentInput) (*domain.Order, error) {
	if f.addErr != nil {
		return nil, f.addErr
	}
	o := f.orders[id]
	if o.State != domain.StateArrangingPayment {
		return nil, usecase.ErrPaymentRejected
	}
	o.Payments = append(o.Payments, domain.Payment{
		ID:            fmt.Sprintf("p%d", len(o.Payments)+1),
		OrderID:       id,
		Method:        in.Method,
		Amount:        o.TotalWithTax,
		State:         domain.PaymentStateSettled,
		TransactionID: in.TransactionID,
		Metadata:      in.Metadata,
	})
	o.State = domain.StatePaymentSettled
	return clone(o), nil
}

func (f *fakeEngine) Hydrate(_ context.Context, o *domain.Order, _ ...string) error {
	f.hydrates++
	if stored, ok := f.orders[o.ID]; ok {
		o.Lines = append([]domain.OrderLine(nil), stored.Lines...)
	}
	return nil
}

func (f *fakeEngine) SaveOrder(_ context.Context, o *domain.Order) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saves++
	f.orders[o.ID].CustomFields = cloneFields(o.CustomFields)
	return nil
}

func clone(o *domain.Order) *domain.Order {
	c := *o
	c.Lines = append([]domain.OrderLine(nil), o.Lines...)
	c.Payments = append([]domain.Payment(nil), o.Payments...)
	c.CustomFields = cloneFields(o.CustomFields)
	return &c
}

func cloneFields(cf domain.CustomFields) domain.CustomFields {
	out := domain.CustomFields{}
	if cf.ScalapayCheckoutURL != nil {
		out.ScalapayCheckoutURL = domain.StringPtr(*cf.ScalapayCheckoutURL)
	}
	if cf.ScalapayToken != nil {
		out.ScalapayToken = domain.StringPtr(*cf.ScalapayToken)
	}
	return out
}

type fakeMethods struct {
	methods []domain.PaymentMethod
	err     error
}

func (f fakeMethods) FindAll(context.Context) ([]domain.PaymentMethod, error) {
	return f.methods, f.err
}

var scalapayMethod = fakeMethods{methods: []domain.PaymentMethod{
	{ID: "1", Code: "standard-payment", HandlerCode: "dummy", Enabled: true},
	{ID: "2", Code: "scalapay-payment", HandlerCode: domain.ScalapayHandler, Enabled: true},
}}

type captureCall struct {
	amount int64
	token  string
}

type fakeGateway struct {
	checkout    *domain.Checkout
	checkoutErr error
	checkouts   int

	captureStatus string
	captureErr    error
	captures      []captureCall

	refundMeta json.RawMessage
	refundErr  error
	refunds    []int64
}

func (f *fakeGateway) calls() int { return f.checkouts + len(f.captures) + len(f.refunds) }

func (f *fakeGateway) CreateCheckout(context.Context, *domain.Order) (*domain.Checkout, error) {
	f.checkouts++
	if f.checkoutErr != nil {
		return nil, f.checkoutErr
	}
	return f.checkout, nil
}

func (f *fakeGateway) Capture(_ context.Context, amount int64, token string) (*domain.Capture, error) {
	f.captures = append(f.captures, captureCall{amount: amount, token: token})
	if f.captureErr != nil {
		return nil, f.captureErr
	}
	return &domain.Capture{Token: token, Status: f.captureStatus}, nil
}

func (f *fakeGateway) Refund(_ context.Context, amount int64) (json.RawMessage, error) {
	f.refunds = append(f.refunds, amount)
	if f.refundErr != nil {
		return nil, f.refundErr
	}
	return f.refundMeta, nil
}

type fakePublisher struct {
	events []usecase.SettlementEvent
	err    error
}

func (f *fakePublisher) PublishSettlement(_ context.Context, ev usecase.SettlementEvent) error {
	f.events = append(f.events, ev)
	return f.err
}

type fakeCache struct {
	status map[string]string
}

func newFakeCache() *fakeCache { return &fakeCache{status: map[string]string{}} }

func (f *fakeCache) SetStatus(_ context.Context, id, status string) error {
	f.status[id] = status
	return nil
}

func (f *fakeCache) DelStatus(_ context.Context, id string) error {
	delete(f.status, id)
	return nil
}

func (f *fakeCache) GetStatus(_ context.Context, id string) (string, bool, error) {
	st, ok := f.status[id]
	return st, ok, nil
}

type fakeIdem struct {
	locks    map[string]bool
	values   map[string]string
	released int
}

func newFakeIdem() *fakeIdem {
	return &fakeIdem{locks: map[string]bool{}, values: map[string]string{}}
}

func (f *fakeIdem) TryLock(_ context.Context, scope, key string) (bool, error) {
	k := scope + ":" + key
	if f.locks[k] {
		return false, nil
	}
	f.locks[k] = true
	return true, nil
}

func (f *fakeIdem) Release(_ context.Context, scope, key string) error {
	f.released++
	delete(f.locks, scope+":"+key)
	return nil
}

func (f *fakeIdem) Remember(_ context.Context, scope, key, value string) error {
	f.values[scope+":"+key] = value
	return nil
}

func (f *fakeIdem) Recall(_ context.Context, scope, key string) (string, bool, error) {
	v, ok := f.values[scope+":"+key]
	return v, ok, nil
}
