package ports

import (
	"context"

	"github.com/alejandrodnm/geobot/internal/domain"
)

// OrderExecutor places real orders on Polymarket CLOB.
type OrderExecutor interface {
	// PlaceOrder signs and submits a GTC limit BUY. Never retried.
	PlaceOrder(ctx context.Context, req domain.PlaceOrderRequest) (domain.PlacedOrder, error)

	// GetBalance returns the wallet USDC.e balance.
	GetBalance(ctx context.Context) (float64, error)
}
