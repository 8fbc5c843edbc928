package ports

import (
	"context"

	"github.com/alejandrodnm/geobot/internal/domain"
)

// MarketProvider obtiene mercados de Gamma.
type MarketProvider interface {
	// FetchOpenMarkets devuelve todos los mercados abiertos.
	// Pagina automáticamente; una página fallida cuenta como vacía.
	FetchOpenMarkets(ctx context.Context) ([]domain.Market, error)

	// FetchMarket devuelve un mercado por id, abierto o cerrado.
	// Devuelve domain.ErrNotFound si Gamma no lo conoce.
	FetchMarket(ctx context.Context, id string) (domain.Market, error)
}
