package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/geobot/internal/domain"
)

// StateStore guarda documentos opacos por clave (file, sqlite, redis, s3).
type StateStore interface {
	// Load devuelve domain.ErrNotFound si la clave no existe.
	Load(ctx context.Context, key string) ([]byte, error)

	// Save sobrescribe la clave, guardando antes una copia de seguridad.
	Save(ctx context.Context, key string, data []byte) error

	// Close cierra la conexión limpiamente.
	Close() error
}

// Repository carga y guarda el estado tipado del bot.
// Un documento ilegible nunca es un error: se devuelve estado vacío.
type Repository interface {
	LoadPortfolio(ctx context.Context, strategy string, bankroll, entryCostRate float64) (*domain.Portfolio, error)
	SavePortfolio(ctx context.Context, strategy string, p *domain.Portfolio) error

	LoadLivePortfolio(ctx context.Context) (*domain.LivePortfolio, error)
	SaveLivePortfolio(ctx context.Context, p *domain.LivePortfolio) error

	LoadProposals(ctx context.Context) ([]*domain.PendingTrade, error)
	SaveProposals(ctx context.Context, trades []*domain.PendingTrade) error
}

// Locker serializa ejecuciones entre procesos.
type Locker interface {
	// Acquire devuelve domain.ErrLockHeld si otro proceso tiene el lock.
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(context.Context) error, err error)
}
