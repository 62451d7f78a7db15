package usecase

import "context"

// OrderStatus answers "where is this order" from the cache, then the engine.
type OrderStatus struct {
	engine OrderEngine
	cache  OrderCache // optional
}

func NewOrderStatus(engine OrderEngine, cache OrderCache) *OrderStatus {
	return &OrderStatus{engine: engine, cache: cache}
}

func (uc *OrderStatus) Execute(ctx context.Context, orderID string) (string, error) {
	if uc.cache != nil {
		if st, ok, err := uc.cache.GetStatus(ctx, orderID); err == nil && ok {
			return st, nil
		}
	}
	o, err := uc.engine.FindOrder(ctx, orderID)
	if err != nil {
		return "", err
	}
	if uc.cache != nil {
		_ = uc.cache.SetStatus(ctx, orderID, string(o.State))
	}
	return string(o.State), nil
}
