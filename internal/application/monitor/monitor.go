package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/geobot/internal/domain"
	"github.com/alejandrodnm/geobot/internal/ports"
)

// Lookup resuelve un mercado desde el snapshot del ciclo.
type Lookup interface {
	Lookup(id string) (domain.Market, bool)
}

// Result resume una pasada del monitor sobre un portfolio.
type Result struct {
	Resolved int
	Marked   int
	Missing  int // sin datos de mercado (se reintenta el próximo ciclo)
	PnL      float64
}

// Monitor revisa las posiciones abiertas: liquida las resueltas y hace
// mark-to-market del resto. Vive un ciclo: cachea los fetch individuales
// para que varios portfolios con el mismo mercado no repitan la llamada.
type Monitor struct {
	markets ports.MarketProvider
	now     func() time.Time
	fetched map[string]fetchResult
}

type fetchResult struct {
	market domain.Market
	ok     bool
}

// New crea un monitor para un ciclo.
func New(markets ports.MarketProvider) *Monitor {
	return &Monitor{markets: markets, now: time.Now, fetched: map[string]fetchResult{}}
}

// WithClock fija el reloj (tests).
func (m *Monitor) WithClock(now func() time.Time) *Monitor {
	m.now = now
	return m
}

// Check recorre las posiciones abiertas de p. Los mercados abiertos suelen
// estar en lookup; los cerrados ya no vienen en el listado y se piden uno a uno.
func (m *Monitor) Check(ctx context.Context, p *domain.Portfolio, lookup Lookup) Result {
	var res Result
	for _, pos := range p.OpenPositions() {
		market, ok := m.market(ctx, pos.MarketID, lookup)
		if !ok {
			res.Missing++
			continue
		}

		if outcome := domain.CheckResolution(market); outcome != domain.OutcomeNone {
			pnl, err := p.Settle(pos, outcome, m.now())
			if err != nil {
				slog.Warn("monitor: settle skipped", "market_id", pos.MarketID, "err", err)
				continue
			}
			res.Resolved++
			res.PnL += pnl
			slog.Info("monitor: position settled",
				"market_id", pos.MarketID,
				"side", pos.BetSide,
				"outcome", outcome,
				"resolution", pos.Resolution,
				"pnl", fmt.Sprintf("$%.2f", pnl),
			)
			continue
		}

		if yes, ok := market.MarkYesPrice(); ok {
			pos.MarkToMarket(yes)
			res.Marked++
		}
	}
	if res.Marked > 0 || res.Resolved > 0 {
		p.LastUpdated = domain.At(m.now())
	}
	return res
}

func (m *Monitor) market(ctx context.Context, id string, lookup Lookup) (domain.Market, bool) {
	if lookup != nil {
		if market, ok := lookup.Lookup(id); ok {
			return market, true
		}
	}
	if cached, ok := m.fetched[id]; ok {
		return cached.market, cached.ok
	}

	market, err := m.markets.FetchMarket(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			slog.Debug("monitor: fetch market failed", "market_id", id, "err", err)
		}
		m.fetched[id] = fetchResult{}
		return domain.Market{}, false
	}
	m.fetched[id] = fetchResult{market: market, ok: true}
	return market, true
}
