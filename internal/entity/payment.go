package domain

type PaymentState string

const (
	PaymentStateAuthorized PaymentState = "Authorized"
	PaymentStateSettled    PaymentState = "Settled"
	PaymentStateDeclined   PaymentState = "Declined"
	PaymentStateError      PaymentState = "Error"
)

// Metadata keys written on a settled Scalapay payment.
const (
	MetaReceivedAmount = "receivedAmount"
	MetaToken          = "token"
	MetaProviderStatus = "providerStatus"
	MetaCaptureStatus  = "captureStatus"
)

type Payment struct {
	ID            string
	OrderID       string
	Method        string
	Amount        int64
	State         PaymentState
	TransactionID string
	Metadata      map[string]string
}

// PaymentInput is what the engine needs to attach a payment to an order.
type PaymentInput struct {
	Method        string
	TransactionID string
	Metadata      map[string]string
}

type RefundState string

const (
	RefundSettled RefundState = "Settled"
	RefundFailed  RefundState = "Failed"
)

type PaymentMethod struct {
	ID          string
	Code        string
	HandlerCode string
	Enabled     bool
}

// Checkout is the provider order created for a platform order.
type Checkout struct {
	Token       string
	Expires     string
	CheckoutURL string
}

type Capture struct {
	Token  string
	Status string
}
