package usecase

import "time"

// Published on RabbitMQ once a callback has been reconciled.
type SettlementEvent struct {
	OrderID    string    `json:"orderId"`
	Status     string    `json:"status"`  // provider status from the callback
	Outcome    string    `json:"outcome"` // e.g. "settled", "declined"
	Settled    bool      `json:"settled"`
	OrderState string    `json:"orderState,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Sent by the order platform on Kafka when a shopper picks Scalapay at checkout.
type CheckoutRequestedMsg struct {
	OrderID string `json:"orderId"`
}

// Consumed from RabbitMQ; issued by the back office.
type RefundRequestedMsg struct {
	OrderID        string `json:"orderId"`
	AmountCents    int64  `json:"amountCents"`
	IdempotencyKey string `json:"idempotencyKey"`
}
