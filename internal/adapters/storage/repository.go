package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/geobot/internal/domain"
	"github.com/alejandrodnm/geobot/internal/ports"
)

const (
	livePortfolioKey = "live_portfolio"
	proposalsKey     = "pending_trades"
)

// PortfolioKey es la clave del ledger paper de una estrategia.
func PortfolioKey(strategy string) string {
	return "portfolio_" + strategy
}

// Repository implementa ports.Repository codificando JSON sobre un StateStore.
// Un documento ilegible se copia a <key>.corrupt y se devuelve estado vacío.
type Repository struct {
	store ports.StateStore
	now   func() time.Time
}

// NewRepository envuelve el store dado.
func NewRepository(store ports.StateStore) *Repository {
	return &Repository{store: store, now: time.Now}
}

// LoadPortfolio devuelve el portfolio de la estrategia o uno nuevo si no existe.
func (r *Repository) LoadPortfolio(ctx context.Context, strategy string, bankroll, entryCostRate float64) (*domain.Portfolio, error) {
	key := PortfolioKey(strategy)
	fresh := func() *domain.Portfolio { return domain.NewPortfolio(bankroll, entryCostRate, r.now()) }

	var p domain.Portfolio
	ok, err := r.load(ctx, key, &p)
	if err != nil {
		return nil, err
	}
	if !ok {
		return fresh(), nil
	}
	if p.EntryCostRate == 0 {
		p.EntryCostRate = entryCostRate
	}
	p.Normalize()
	return &p, nil
}

// SavePortfolio persiste el portfolio de la estrategia.
func (r *Repository) SavePortfolio(ctx context.Context, strategy string, p *domain.Portfolio) error {
	return r.save(ctx, PortfolioKey(strategy), p)
}

// LoadLivePortfolio devuelve el portfolio live o uno vacío.
func (r *Repository) LoadLivePortfolio(ctx context.Context) (*domain.LivePortfolio, error) {
	var lp domain.LivePortfolio
	ok, err := r.load(ctx, livePortfolioKey, &lp)
	if err != nil {
		return nil, err
	}
	if !ok {
		return domain.NewLivePortfolio(r.now()), nil
	}
	lp.Normalize()
	return &lp, nil
}

// SaveLivePortfolio persiste el portfolio live.
func (r *Repository) SaveLivePortfolio(ctx context.Context, p *domain.LivePortfolio) error {
	return r.save(ctx, livePortfolioKey, p)
}

// LoadProposals devuelve la lista de propuestas (vacía si no hay).
func (r *Repository) LoadProposals(ctx context.Context) ([]*domain.PendingTrade, error) {
	var trades []*domain.PendingTrade
	ok, err := r.load(ctx, proposalsKey, &trades)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []*domain.PendingTrade{}, nil
	}
	out := trades[:0]
	for _, t := range trades {
		if t != nil {
			out = append(out, t)
		}
	}
	return out, nil
}

// SaveProposals persiste la lista completa de propuestas.
func (r *Repository) SaveProposals(ctx context.Context, trades []*domain.PendingTrade) error {
	if trades == nil {
		trades = []*domain.PendingTrade{}
	}
	return r.save(ctx, proposalsKey, trades)
}

// load decodifica la clave en v. Devuelve false si no existe o estaba corrupta.
func (r *Repository) load(ctx context.Context, key string, v any) (bool, error) {
	data, err := r.store.Load(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("storage.Repository.load %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		slog.Warn("storage: corrupt state, starting fresh", "key", key, "err", err)
		if qerr := r.store.Save(ctx, key+".corrupt", data); qerr != nil {
			slog.Warn("storage: quarantine failed", "key", key, "err", qerr)
		}
		return false, nil
	}
	return true, nil
}

func (r *Repository) save(ctx context.Context, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("storage.Repository.save %s: marshal: %w", key, err)
	}
	if err := r.store.Save(ctx, key, data); err != nil {
		return fmt.Errorf("storage.Repository.save %s: %w", key, err)
	}
	return nil
}
