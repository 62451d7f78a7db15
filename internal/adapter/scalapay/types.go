package scalapay

import "encoding/json"

type Environment string

const (
	Sandbox    Environment = "sandbox"
	Production Environment = "production"
)

const (
	SandboxURL    = "https://integration.api.scalapay.com"
	ProductionURL = "https://api.scalapay.com"
)

// BaseURL picks the API host; anything but production talks to the sandbox.
func (e Environment) BaseURL() string {
	if e == Production {
		return ProductionURL
	}
	return SandboxURL
}

func (e Environment) Valid() bool {
	return e == Sandbox || e == Production
}

type Consumer struct {
	PhoneNumber string `json:"phoneNumber,omitempty"`
	GivenNames  string `json:"givenNames,omitempty"`
	Surname     string `json:"surname,omitempty"`
	Email       string `json:"email,omitempty"`
}

type Address struct {
	PhoneNumber string `json:"phoneNumber,omitempty"`
	CountryCode string `json:"countryCode,omitempty"`
	Name        string `json:"name,omitempty"`
	Postcode    string `json:"postcode,omitempty"`
	Suburb      string `json:"suburb,omitempty"`
	Line1       string `json:"line1,omitempty"`
}

type OrderLine struct {
	Quantity int    `json:"quantity"`
	Price    Amount `json:"price"`
	Name     string `json:"name,omitempty"`
	SKU      string `json:"sku,omitempty"`
}

type Discount struct {
	DisplayName string `json:"displayName"`
}

type Merchant struct {
	RedirectCancelURL  string `json:"redirectCancelUrl"`
	RedirectConfirmURL string `json:"redirectConfirmUrl"`
}

// OrderRequest is the body of POST /v2/orders.
type OrderRequest struct {
	TotalAmount    Amount      `json:"totalAmount"`
	Consumer       Consumer    `json:"consumer"`
	Billing        *Address    `json:"billing,omitempty"`
	Shipping       *Address    `json:"shipping,omitempty"`
	Items          []OrderLine `json:"items"`
	Discounts      []Discount  `json:"discounts,omitempty"`
	Merchant       Merchant    `json:"merchant"`
	ShippingAmount *Amount     `json:"shippingAmount,omitempty"`
}

type OrderCreated struct {
	Token       string `json:"token"`
	Expires     string `json:"expires"`
	CheckoutURL string `json:"checkoutUrl"`
}

type captureRequest struct {
	Amount Amount `json:"amount"`
	Token  string `json:"token"`
}

type CaptureResult struct {
	Token        string          `json:"token"`
	Status       string          `json:"status"`
	TotalAmount  json.RawMessage `json:"totalAmount,omitempty"`
	OrderDetails json.RawMessage `json:"orderDetails,omitempty"`
}

type refundRequest struct {
	RefundAmount Amount `json:"refundAmount"`
}
