package ports

import (
	"context"

	"github.com/alejandrodnm/geobot/internal/domain"
)

// BookProvider obtiene orderbooks del CLOB.
type BookProvider interface {
	// FetchOrderBook devuelve el book de un token.
	FetchOrderBook(ctx context.Context, tokenID string) (domain.OrderBook, error)

	// FetchOrderBooks usa el endpoint batch, en grupos de máx 20 ids.
	FetchOrderBooks(ctx context.Context, tokenIDs []string) (map[string]domain.OrderBook, error)
}
