package live

import (
	"context"
	"fmt"

	"github.com/alejandrodnm/geobot/internal/domain"
)

// Status arma la foto del trading real: modo, propuestas pendientes y
// posiciones abiertas con su PnL no realizado.
func (g *Gateway) Status(ctx context.Context, cfg Config) (domain.LiveStatus, error) {
	ids, err := g.PendingIDs(ctx)
	if err != nil {
		return domain.LiveStatus{}, err
	}
	lp, err := g.repo.LoadLivePortfolio(ctx)
	if err != nil {
		return domain.LiveStatus{}, fmt.Errorf("live.Status: load live portfolio: %w", err)
	}

	st := domain.LiveStatus{
		Enabled:       cfg.Enabled,
		Shadow:        cfg.Shadow,
		PendingIDs:    ids,
		Open:          lp.OpenPositions(),
		RealizedPnL:   lp.TotalPnL,
		Wins:          lp.Wins,
		Losses:        lp.Losses,
		TotalExecuted: lp.TotalExecuted,
	}
	st.Exposure, _ = lp.Exposure()
	for _, pos := range st.Open {
		if pnl, ok := pos.UnrealizedPnL(); ok {
			st.UnrealizedPnL += pnl
			st.Marked++
		}
	}
	return st, nil
}
