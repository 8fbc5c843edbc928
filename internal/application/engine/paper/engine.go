package paper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/geobot/internal/application/monitor"
	"github.com/alejandrodnm/geobot/internal/application/selection"
	"github.com/alejandrodnm/geobot/internal/domain"
	"github.com/alejandrodnm/geobot/internal/ports"
)

// Input es lo que comparte el ciclo entre todas las estrategias.
type Input struct {
	Markets   []domain.Market
	Lookup    monitor.Lookup
	Evaluator *selection.Evaluator
	Monitor   *monitor.Monitor
	Held      map[string]bool // mercados ocupados fuera de este portfolio
}

// Engine ejecuta el ciclo paper de una estrategia sobre su portfolio.
type Engine struct {
	repo ports.Repository
	now  func() time.Time
}

// New crea el engine paper.
func New(repo ports.Repository) *Engine {
	return &Engine{repo: repo, now: time.Now}
}

// WithClock fija el reloj (tests).
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// RunStrategy carga el portfolio, liquida y marca posiciones, evalúa y
// selecciona candidatos, abre las posiciones y guarda. Devuelve los
// candidatos seleccionados para que una estrategia live los proponga.
func (e *Engine) RunStrategy(ctx context.Context, s domain.Strategy, in Input) (domain.StrategyRun, []domain.TradeCandidate, error) {
	run := domain.StrategyRun{Strategy: s.Name, Mode: s.Mode}

	p, err := e.repo.LoadPortfolio(ctx, s.Name, s.Bankroll, s.EntryCostRate)
	if err != nil {
		return run, nil, fmt.Errorf("paper.RunStrategy %s: load portfolio: %w", s.Name, err)
	}
	slog.Info("paper: strategy start",
		"strategy", s.Name,
		"bankroll", fmt.Sprintf("$%.2f", p.BankrollCurrent),
		"open", len(p.OpenPositions()),
	)

	if in.Monitor != nil {
		mres := in.Monitor.Check(ctx, p, in.Lookup)
		run.Resolved = mres.Resolved
		run.Marked = mres.Marked
	}

	now := e.now()
	candidates := in.Evaluator.Candidates(in.Markets, s, now)
	run.Candidates = len(candidates)

	selected := selection.Select(candidates, selection.StateOf(p, in.Held), selection.LimitsOf(s))
	run.Selected = len(selected)

	opened := make([]domain.TradeCandidate, 0, len(selected))
	for _, c := range selected {
		pos, err := p.OpenPosition(c, c.BetSize, now)
		if err != nil {
			if errors.Is(err, domain.ErrAlreadyOpen) || errors.Is(err, domain.ErrInsufficientCash) {
				slog.Debug("paper: open skipped", "strategy", s.Name, "market_id", c.MarketID, "err", err)
				continue
			}
			return run, nil, fmt.Errorf("paper.RunStrategy %s: %w", s.Name, err)
		}
		opened = append(opened, c)
		slog.Info("paper: BUY",
			"strategy", s.Name,
			"side", pos.BetSide,
			"price", fmt.Sprintf("%.2f", pos.EntryPrice),
			"size", fmt.Sprintf("$%.2f", pos.SizeUSD),
			"cluster", pos.Cluster,
			"market", domain.TruncateQuestion(pos.Question, pos.MarketID, 50),
		)
	}
	run.Opened = len(opened)

	if err := e.repo.SavePortfolio(ctx, s.Name, p); err != nil {
		return run, nil, fmt.Errorf("paper.RunStrategy %s: save portfolio: %w", s.Name, err)
	}

	fill(&run, p)
	slog.Info("paper: strategy done",
		"strategy", s.Name,
		"candidates", run.Candidates,
		"opened", run.Opened,
		"resolved", run.Resolved,
		"bankroll", fmt.Sprintf("$%.2f", run.Bankroll),
		"cash", fmt.Sprintf("$%.2f", run.Cash),
	)
	return run, opened, nil
}

// CloseMatch es una posición encontrada por búsqueda manual.
type CloseMatch struct {
	Strategy string
	Position *domain.Position
}

// FindOpen busca posiciones abiertas en los portfolios de las estrategias.
func (e *Engine) FindOpen(ctx context.Context, strategies []domain.Strategy, search string) ([]CloseMatch, error) {
	var out []CloseMatch
	for _, s := range strategies {
		p, err := e.repo.LoadPortfolio(ctx, s.Name, s.Bankroll, s.EntryCostRate)
		if err != nil {
			return nil, fmt.Errorf("paper.FindOpen %s: %w", s.Name, err)
		}
		for _, pos := range p.FindOpen(search) {
			out = append(out, CloseMatch{Strategy: s.Name, Position: pos})
		}
	}
	return out, nil
}

// CloseManual cierra las posiciones que casan con search en todos los
// portfolios, con pérdida de la mitad del tamaño.
func (e *Engine) CloseManual(ctx context.Context, strategies []domain.Strategy, search string) ([]CloseMatch, error) {
	var out []CloseMatch
	for _, s := range strategies {
		p, err := e.repo.LoadPortfolio(ctx, s.Name, s.Bankroll, s.EntryCostRate)
		if err != nil {
			return out, fmt.Errorf("paper.CloseManual %s: %w", s.Name, err)
		}
		closed := p.CloseManual(search, e.now())
		if len(closed) == 0 {
			continue
		}
		if err := e.repo.SavePortfolio(ctx, s.Name, p); err != nil {
			return out, fmt.Errorf("paper.CloseManual %s: save: %w", s.Name, err)
		}
		for _, pos := range closed {
			slog.Info("paper: manual close", "strategy", s.Name, "market_id", pos.MarketID, "pnl", fmt.Sprintf("$%.2f", *pos.PnL))
			out = append(out, CloseMatch{Strategy: s.Name, Position: pos})
		}
	}
	return out, nil
}

func fill(run *domain.StrategyRun, p *domain.Portfolio) {
	total, _ := p.Exposure()
	run.Bankroll = p.BankrollCurrent
	run.Cash = p.BankrollCurrent - total
	run.Exposure = total
	run.OpenCount = len(p.OpenPositions())
	run.Wins = p.Wins
	run.Losses = p.Losses
	run.TotalPnL = p.TotalPnL
}
