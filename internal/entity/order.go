package domain

import (
	"errors"
	"strings"
)

// ScalapayHandler is the handler code of this integration's payment method.
const ScalapayHandler = "scalapay"

type OrderState string

const (
	StateAddingItems       OrderState = "AddingItems"
	StateArrangingPayment  OrderState = "ArrangingPayment"
	StatePaymentAuthorized OrderState = "PaymentAuthorized"
	StatePaymentSettled    OrderState = "PaymentSettled"
	StateCancelled         OrderState = "Cancelled"
)

var ErrInvalidState = errors.New("invalid order state")

// transitions lists the moves the order engine accepts. Anything else is rejected.
var transitions = map[OrderState][]OrderState{
	StateAddingItems:       {StateArrangingPayment, StateCancelled},
	StateArrangingPayment:  {StateAddingItems, StatePaymentAuthorized, StatePaymentSettled, StateCancelled},
	StatePaymentAuthorized: {StatePaymentSettled, StateCancelled},
	StatePaymentSettled:    {StateCancelled},
}

func ParseOrderState(s string) (OrderState, error) {
	st := OrderState(s)
	switch st {
	case StateAddingItems, StateArrangingPayment, StatePaymentAuthorized, StatePaymentSettled, StateCancelled:
		return st, nil
	}
	return "", ErrInvalidState
}

// CanTransition reports whether the engine allows moving from one state to another.
func CanTransition(from, to OrderState) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Address is stored as JSON on the order row.
type Address struct {
	FullName    *string `json:"fullName,omitempty"`
	StreetLine1 *string `json:"streetLine1,omitempty"`
	City        *string `json:"city,omitempty"`
	PostalCode  *string `json:"postalCode,omitempty"`
	CountryCode *string `json:"countryCode,omitempty"`
	PhoneNumber *string `json:"phoneNumber,omitempty"`
}

type Customer struct {
	FirstName    *string
	LastName     *string
	EmailAddress *string
	PhoneNumber  *string
}

type OrderLine struct {
	ID               string
	Quantity         int
	UnitPriceWithTax int64
	LinePriceWithTax int64
	ProductName      *string
	SKU              *string
}

type Discount struct {
	AmountWithTax int64
}

// CustomFields holds the provider attributes stored on the platform order.
type CustomFields struct {
	ScalapayCheckoutURL *string `json:"scalapayCheckoutUrl,omitempty"`
	ScalapayToken       *string `json:"scalapayToken,omitempty"`
}

type Order struct {
	ID              string
	Code            string
	State           OrderState
	Currency        string
	TotalWithTax    int64 // minor units
	ShippingWithTax int64 // minor units
	Lines           []OrderLine
	BillingAddress  *Address
	ShippingAddress *Address
	Customer        *Customer
	Discounts       []Discount
	Payments        []Payment
	CustomFields    CustomFields
}

// PaymentByToken returns the settled payment recorded for a provider token.
func (o *Order) PaymentByToken(token string) (*Payment, bool) {
	for i := range o.Payments {
		p := &o.Payments[i]
		if p.State == PaymentStateSettled && p.Metadata[MetaToken] == token {
			return p, true
		}
	}
	return nil, false
}

// Amount paid so far by settled payments.
func (o *Order) PaidAmount() int64 {
	var sum int64
	for _, p := range o.Payments {
		if p.State == PaymentStateSettled {
			sum += p.Amount
		}
	}
	return sum
}

// TransactionID extracts the provider checkout id, the last path segment of the checkout URL.
func TransactionID(checkoutURL string) string {
	u := strings.TrimRight(checkoutURL, "/")
	if i := strings.LastIndex(u, "/"); i >= 0 {
		return u[i+1:]
	}
	return u
}

func StringPtr(s string) *string { return &s }

// Deref returns the pointed value or "".
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
