package live

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/geobot/internal/domain"
	"github.com/alejandrodnm/geobot/internal/ports"
)

// Gateway convierte candidatos seleccionados en propuestas con caducidad
// que un humano aprueba por id.
type Gateway struct {
	repo     ports.Repository
	notifier ports.Notifier
	ttl      time.Duration
	now      func() time.Time
}

// NewGateway crea el gateway. notifier puede ser nil.
func NewGateway(repo ports.Repository, notifier ports.Notifier, ttl time.Duration) *Gateway {
	if ttl <= 0 {
		ttl = DefaultProposalTTL
	}
	return &Gateway{repo: repo, notifier: notifier, ttl: ttl, now: time.Now}
}

// WithClock fija el reloj (tests).
func (g *Gateway) WithClock(now func() time.Time) *Gateway {
	g.now = now
	return g
}

// Propose añade una propuesta por candidato al store y avisa de cada una.
// Los candidatos ya traen el tamaño resuelto en BetSize.
func (g *Gateway) Propose(ctx context.Context, strategy string, candidates []domain.TradeCandidate) ([]*domain.PendingTrade, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	trades, err := g.repo.LoadProposals(ctx)
	if err != nil {
		return nil, fmt.Errorf("live.Propose: load proposals: %w", err)
	}

	ids := make(map[string]bool, len(trades))
	for _, t := range trades {
		ids[t.ID] = true
	}

	now := g.now()
	created := make([]*domain.PendingTrade, 0, len(candidates))
	for _, c := range candidates {
		t := domain.NewPendingTrade(c, strategy, c.BetSize, now, g.ttl)
		base := t.ID
		for n := 2; ids[t.ID]; n++ {
			t.ID = fmt.Sprintf("%s-%d", base, n)
		}
		ids[t.ID] = true
		trades = append(trades, t)
		created = append(created, t)
	}

	if err := g.repo.SaveProposals(ctx, trades); err != nil {
		return nil, fmt.Errorf("live.Propose: save proposals: %w", err)
	}

	for _, t := range created {
		slog.Info("live: proposal created",
			"id", t.ID,
			"strategy", strategy,
			"side", t.BetSide,
			"price", fmt.Sprintf("%.3f", t.ProposedPrice),
			"size", fmt.Sprintf("$%.2f", t.SizeUSD),
			"market", domain.TruncateQuestion(t.Question, t.MarketID, 50),
		)
		g.notify(ctx, t)
	}
	return created, nil
}

func (g *Gateway) notify(ctx context.Context, t *domain.PendingTrade) {
	if g.notifier == nil {
		return
	}
	if err := g.notifier.NotifyProposal(ctx, t); err != nil {
		slog.Warn("live: proposal notification failed", "id", t.ID, "err", err)
	}
}

// CleanupExpired pasa a expired las propuestas pendientes caducadas.
// Se conservan en el store para auditoría.
func (g *Gateway) CleanupExpired(ctx context.Context) (int, error) {
	trades, err := g.repo.LoadProposals(ctx)
	if err != nil {
		return 0, fmt.Errorf("live.CleanupExpired: load proposals: %w", err)
	}
	n := expire(trades, g.now())
	if n == 0 {
		return 0, nil
	}
	if err := g.repo.SaveProposals(ctx, trades); err != nil {
		return 0, fmt.Errorf("live.CleanupExpired: save proposals: %w", err)
	}
	slog.Info("live: proposals expired", "count", n)
	return n, nil
}

// Pending devuelve las propuestas aún ejecutables, tras caducar las vencidas.
func (g *Gateway) Pending(ctx context.Context) ([]*domain.PendingTrade, error) {
	if _, err := g.CleanupExpired(ctx); err != nil {
		return nil, err
	}
	trades, err := g.repo.LoadProposals(ctx)
	if err != nil {
		return nil, fmt.Errorf("live.Pending: %w", err)
	}
	out := make([]*domain.PendingTrade, 0, len(trades))
	for _, t := range trades {
		if t.IsPending() {
			out = append(out, t)
		}
	}
	return out, nil
}

// PendingIDs devuelve los ids ejecutables en orden de propuesta.
func (g *Gateway) PendingIDs(ctx context.Context) ([]string, error) {
	pending, err := g.Pending(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(pending))
	for i, t := range pending {
		ids[i] = t.ID
	}
	return ids, nil
}

// PendingMarkets devuelve los mercados con propuesta pendiente, para que
// el selector no los vuelva a proponer.
func (g *Gateway) PendingMarkets(ctx context.Context) (map[string]bool, error) {
	pending, err := g.Pending(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]bool, len(pending))
	for _, t := range pending {
		out[t.MarketID] = true
	}
	return out, nil
}

// expire marca expired las pendientes vencidas y devuelve cuántas.
func expire(trades []*domain.PendingTrade, now time.Time) int {
	n := 0
	for _, t := range trades {
		if t.IsPending() && t.Expired(now) && t.Transition(domain.TradeExpired, "") {
			n++
		}
	}
	return n
}
