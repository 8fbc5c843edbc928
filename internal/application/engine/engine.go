package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/alejandrodnm/geobot/internal/application/engine/live"
	"github.com/alejandrodnm/geobot/internal/application/engine/paper"
	"github.com/alejandrodnm/geobot/internal/application/monitor"
	"github.com/alejandrodnm/geobot/internal/application/scanner"
	"github.com/alejandrodnm/geobot/internal/application/selection"
	"github.com/alejandrodnm/geobot/internal/domain"
	"github.com/alejandrodnm/geobot/internal/ports"
)

// ErrNoGateway indica una estrategia live sin gateway de propuestas.
var ErrNoGateway = errors.New("no proposal gateway configured")

// RunLockName es el nombre del lock que serializa los ciclos.
const RunLockName = "run"

// DefaultLockTTL acota cuánto puede vivir el lock si el proceso muere.
const DefaultLockTTL = 30 * time.Minute

// Deps agrupa los colaboradores del Runner. Locker y Notifier son opcionales.
type Deps struct {
	Markets    ports.MarketProvider
	Classifier ports.Classifier
	Repo       ports.Repository
	Gateway    *live.Gateway
	Notifier   ports.Notifier
	Locker     ports.Locker
	Workers    int
	LockTTL    time.Duration
}

// Runner ejecuta un ciclo completo: scan, estrategias paper/live, monitor
// de posiciones live y resumen.
type Runner struct {
	deps    Deps
	scanner *scanner.Scanner
	paper   *paper.Engine
	now     func() time.Time
}

// NewRunner crea el runner.
func NewRunner(deps Deps) *Runner {
	if deps.LockTTL <= 0 {
		deps.LockTTL = DefaultLockTTL
	}
	return &Runner{
		deps:    deps,
		scanner: scanner.New(deps.Markets, deps.Classifier, deps.Workers),
		paper:   paper.New(deps.Repo),
		now:     time.Now,
	}
}

// WithClock fija el reloj (tests).
func (r *Runner) WithClock(now func() time.Time) *Runner {
	r.now = now
	r.paper.WithClock(now)
	return r
}

// Run hace una pasada completa sobre las estrategias dadas. Un fallo en una
// estrategia queda registrado en su StrategyRun y no corta las demás.
func (r *Runner) Run(ctx context.Context, strategies []domain.Strategy) (domain.CycleSummary, error) {
	start := r.now()
	summary := domain.CycleSummary{StartedAt: start}

	if r.deps.Locker != nil {
		release, err := r.deps.Locker.Acquire(ctx, RunLockName, r.deps.LockTTL)
		if err != nil {
			return summary, fmt.Errorf("engine.Run: acquire lock: %w", err)
		}
		defer func() {
			if err := release(context.WithoutCancel(ctx)); err != nil {
				slog.Warn("engine: lock release failed", "err", err)
			}
		}()
	}

	snap, err := r.scanner.Scan(ctx)
	if err != nil {
		return summary, fmt.Errorf("engine.Run: %w", err)
	}
	summary.Markets = len(snap.Markets)
	summary.Geopolitical = snap.Geopolitical()

	mon := monitor.New(r.deps.Markets).WithClock(r.now)
	in := paper.Input{
		Markets:   snap.Markets,
		Lookup:    snap,
		Evaluator: selection.NewEvaluator(snap),
		Monitor:   mon,
	}

	for _, s := range strategies {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("engine.Run: %w", err)
		}
		run := r.runStrategy(ctx, s, in)
		summary.Runs = append(summary.Runs, run)
	}

	if r.deps.Gateway != nil {
		resolved, marked := r.monitorLive(ctx, mon, snap)
		summary.LiveResolved = resolved
		summary.LiveMarked = marked
		if n, err := r.deps.Gateway.CleanupExpired(ctx); err != nil {
			slog.Warn("engine: proposal cleanup failed", "err", err)
		} else if n > 0 {
			slog.Info("engine: proposals expired", "count", n)
		}
	}

	summary.Duration = r.now().Sub(start)
	opened, proposed := summary.TotalOpened()
	slog.Info("engine: cycle done",
		"strategies", len(summary.Runs),
		"failures", summary.Failures(),
		"opened", opened,
		"proposed", proposed,
		"duration", summary.Duration.Round(time.Millisecond),
	)

	if r.deps.Notifier != nil {
		if err := r.deps.Notifier.NotifySummary(ctx, summary); err != nil {
			slog.Warn("engine: summary notification failed", "err", err)
		}
	}
	return summary, nil
}

// runStrategy aísla cada estrategia: errores y panics quedan en run.Err.
func (r *Runner) runStrategy(ctx context.Context, s domain.Strategy, in paper.Input) (run domain.StrategyRun) {
	run = domain.StrategyRun{Strategy: s.Name, Mode: s.Mode}
	defer func() {
		if p := recover(); p != nil {
			run.Err = fmt.Sprintf("panic: %v", p)
			slog.Error("engine: strategy panicked", "strategy", s.Name, "panic", p, "stack", string(debug.Stack()))
		}
	}()

	res, err := r.execStrategy(ctx, s, in)
	if err != nil {
		res.Err = err.Error()
		slog.Error("engine: strategy failed", "strategy", s.Name, "err", err)
	}
	return res
}

func (r *Runner) execStrategy(ctx context.Context, s domain.Strategy, in paper.Input) (domain.StrategyRun, error) {
	if !s.IsLive() {
		run, _, err := r.paper.RunStrategy(ctx, s, in)
		return run, err
	}
	if r.deps.Gateway == nil {
		return domain.StrategyRun{Strategy: s.Name, Mode: s.Mode}, fmt.Errorf("strategy %s: %w", s.Name, ErrNoGateway)
	}

	held, err := r.liveHeld(ctx)
	if err != nil {
		return domain.StrategyRun{Strategy: s.Name, Mode: s.Mode}, err
	}
	in.Held = held

	run, selected, err := r.paper.RunStrategy(ctx, s, in)
	if err != nil {
		return run, err
	}
	created, err := r.deps.Gateway.Propose(ctx, s.Name, selected)
	if err != nil {
		return run, err
	}
	run.Proposed = len(created)
	return run, nil
}

// liveHeld son los mercados con propuesta pendiente o posición live abierta.
func (r *Runner) liveHeld(ctx context.Context) (map[string]bool, error) {
	held, err := r.deps.Gateway.PendingMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: pending markets: %w", err)
	}
	lp, err := r.deps.Repo.LoadLivePortfolio(ctx)
	if err != nil {
		return nil, fmt.Errorf("engine: load live portfolio: %w", err)
	}
	for id := range lp.OpenMarketIDs() {
		held[id] = true
	}
	return held, nil
}

// monitorLive liquida o marca las posiciones live. Los fallos se registran
// y no afectan al resultado del ciclo.
func (r *Runner) monitorLive(ctx context.Context, mon *monitor.Monitor, lookup monitor.Lookup) (resolved, marked int) {
	lp, err := r.deps.Repo.LoadLivePortfolio(ctx)
	if err != nil {
		slog.Warn("engine: live monitor skipped", "err", err)
		return 0, 0
	}
	if len(lp.OpenPositions()) == 0 {
		return 0, 0
	}
	res := mon.Check(ctx, &lp.Portfolio, lookup)
	if res.Resolved == 0 && res.Marked == 0 {
		return 0, 0
	}
	if err := r.deps.Repo.SaveLivePortfolio(ctx, lp); err != nil {
		slog.Warn("engine: save live portfolio failed", "err", err)
		return 0, 0
	}
	slog.Info("engine: live positions checked",
		"resolved", res.Resolved,
		"marked", res.Marked,
		"pnl", fmt.Sprintf("$%.2f", res.PnL),
	)
	return res.Resolved, res.Marked
}
