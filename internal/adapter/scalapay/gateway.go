package scalapay

import (
	"context"
	"encoding/json"

	domain "github.com/aq2208/gorder-scalapay/internal/entity"
	"github.com/aq2208/gorder-scalapay/internal/usecase"
)

// Gateway adapts Client to the usecase port, normalizing orders on the way out.
type Gateway struct {
	client  *Client
	baseURL string
}

// NewGateway: baseURL is the public URL of this service, used for the provider's redirects.
func NewGateway(client *Client, baseURL string) *Gateway {
	return &Gateway{client: client, baseURL: baseURL}
}

func (g *Gateway) CreateCheckout(ctx context.Context, o *domain.Order) (*domain.Checkout, error) {
	res, err := g.client.CreateOrder(ctx, Normalize(o, g.baseURL))
	if err != nil {
		return nil, err
	}
	return &domain.Checkout{Token: res.Token, Expires: res.Expires, CheckoutURL: res.CheckoutURL}, nil
}

func (g *Gateway) Capture(ctx context.Context, amountMinor int64, token string) (*domain.Capture, error) {
	res, err := g.client.CapturePayment(ctx, amountMinor, token)
	if err != nil {
		return nil, err
	}
	return &domain.Capture{Token: res.Token, Status: res.Status}, nil
}

func (g *Gateway) Refund(ctx context.Context, amountMinor int64) (json.RawMessage, error) {
	return g.client.RefundPayment(ctx, amountMinor)
}

var _ usecase.PaymentGateway = (*Gateway)(nil)
