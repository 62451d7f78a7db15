package cache

import (
	"context"
	"time"

	domain "github.com/aq2208/gorder-scalapay/internal/entity"
	"github.com/aq2208/gorder-scalapay/internal/usecase"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const allMethods = "all"

// PaymentMethods memoises the payment method list for ttl. Errors are not cached.
type PaymentMethods struct {
	next  usecase.PaymentMethodFinder
	cache *expirable.LRU[string, []domain.PaymentMethod]
}

func NewPaymentMethods(next usecase.PaymentMethodFinder, ttl time.Duration) *PaymentMethods {
	return &PaymentMethods{
		next:  next,
		cache: expirable.NewLRU[string, []domain.PaymentMethod](1, nil, ttl),
	}
}

func (p *PaymentMethods) FindAll(ctx context.Context) ([]domain.PaymentMethod, error) {
	if ms, ok := p.cache.Get(allMethods); ok {
		return ms, nil
	}
	ms, err := p.next.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	p.cache.Add(allMethods, ms)
	return ms, nil
}

var _ usecase.PaymentMethodFinder = (*PaymentMethods)(nil)
