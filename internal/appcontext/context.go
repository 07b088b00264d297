package appcontext

import (
	"context"
)

type DELIVERY_CONTEXT string

var (
	DeliveryKey DELIVERY_CONTEXT = "deliveryKey"
)

// WithDelivery stamps the bus delivery id a handler is currently processing.
func WithDelivery(ctx context.Context, deliveryID int64) context.Context {
	return context.WithValue(ctx, DeliveryKey, deliveryID)
}

func GetDelivery(ctx context.Context) (int64, bool) {
	deliveryID := ctx.Value(DeliveryKey)
	if deliveryID == nil {
		return 0, false
	}
	return deliveryID.(int64), true
}
