package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/geobot/internal/domain"
	"github.com/alejandrodnm/geobot/internal/ports"
)

// Executor valida y ejecuta propuestas aprobadas contra el venue.
// Cada trade es secuencial e independiente; nunca se reintenta una orden.
type Executor struct {
	repo     ports.Repository
	books    ports.BookProvider
	venue    ports.OrderExecutor
	notifier ports.Notifier
	cfg      Config
	now      func() time.Time
}

// NewExecutor crea el motor de ejecución. notifier puede ser nil.
func NewExecutor(repo ports.Repository, books ports.BookProvider, venue ports.OrderExecutor, notifier ports.Notifier, cfg Config) *Executor {
	return &Executor{
		repo:     repo,
		books:    books,
		venue:    venue,
		notifier: notifier,
		cfg:      cfg.WithDefaults(),
		now:      time.Now,
	}
}

// WithClock fija el reloj (tests).
func (e *Executor) WithClock(now func() time.Time) *Executor {
	e.now = now
	return e
}

// Execute procesa los ids en el orden pedido. Como mucho BatchCap trades
// llegan al venue; el resto se marca failed con "batch cap reached".
func (e *Executor) Execute(ctx context.Context, ids []string) ([]domain.ExecutionResult, error) {
	if !e.cfg.Enabled && !e.cfg.Shadow {
		return nil, fmt.Errorf("live.Execute: %w", domain.ErrLiveDisabled)
	}

	trades, err := e.repo.LoadProposals(ctx)
	if err != nil {
		return nil, fmt.Errorf("live.Execute: load proposals: %w", err)
	}
	lp, err := e.repo.LoadLivePortfolio(ctx)
	if err != nil {
		return nil, fmt.Errorf("live.Execute: load live portfolio: %w", err)
	}

	now := e.now()
	expire(trades, now)

	byID := make(map[string]*domain.PendingTrade, len(trades))
	for _, t := range trades {
		byID[t.ID] = t
	}

	books := e.prefetchBooks(ctx, ids, byID)

	results := make([]domain.ExecutionResult, 0, len(ids))
	attempted, executed := 0, 0
	var saveErr error
	for _, id := range ids {
		if saveErr != nil {
			results = append(results, domain.ExecutionResult{TradeID: id, Status: domain.ResultSkipped, Reason: "not attempted: state could not be saved"})
			continue
		}
		t, ok := byID[id]
		if !ok {
			results = append(results, domain.ExecutionResult{TradeID: id, Status: domain.ResultSkipped, Reason: "trade not found"})
			continue
		}
		if !t.IsPending() {
			results = append(results, domain.ExecutionResult{
				TradeID:  id,
				MarketID: t.MarketID,
				Status:   domain.ResultSkipped,
				Reason:   fmt.Sprintf("status is %s, not pending", t.Status),
			})
			continue
		}

		var res domain.ExecutionResult
		if attempted >= e.cfg.BatchCap {
			res = baseResult(t)
			res.Status = domain.ResultFailed
			res.Reason = fmt.Sprintf("batch cap reached (%d)", e.cfg.BatchCap)
		} else {
			attempted++
			res = e.executeOne(ctx, t, lp, books, now)
		}

		switch res.Status {
		case domain.ResultExecuted:
			executed++
			t.Transition(domain.TradeExecuted, encodeResult(res))
			// la orden ya está en el venue: se persiste antes de la siguiente
			if err := e.persist(ctx, trades, lp, true); err != nil {
				saveErr = err
				slog.Error("live: order placed but state not saved, stopping batch", "id", t.ID, "err", err)
			}
		case domain.ResultFailed:
			t.Transition(domain.TradeFailed, encodeResult(res))
		}
		results = append(results, res)
	}

	if err := e.persist(ctx, trades, lp, executed > 0); err != nil {
		saveErr = errors.Join(saveErr, err)
	}

	if e.notifier != nil {
		if err := e.notifier.NotifyExecution(ctx, results); err != nil {
			slog.Warn("live: execution notification failed", "err", err)
		}
	}
	if saveErr != nil {
		return results, fmt.Errorf("live.Execute: %w", saveErr)
	}
	return results, nil
}

// persist guarda el portfolio live (si cambió) y las propuestas. Se intentan
// las dos escrituras aunque la primera falle.
func (e *Executor) persist(ctx context.Context, trades []*domain.PendingTrade, lp *domain.LivePortfolio, liveChanged bool) error {
	var errs []error
	if liveChanged {
		if err := e.repo.SaveLivePortfolio(ctx, lp); err != nil {
			errs = append(errs, fmt.Errorf("save live portfolio: %w", err))
		}
	}
	if err := e.repo.SaveProposals(ctx, trades); err != nil {
		errs = append(errs, fmt.Errorf("save proposals: %w", err))
	}
	return errors.Join(errs...)
}

// prefetchBooks pide en un solo POST /books los libros de los trades que
// pueden llegar al venue en este batch. Un fallo no es fatal: executeOne
// cae a FetchOrderBook por token.
func (e *Executor) prefetchBooks(ctx context.Context, ids []string, byID map[string]*domain.PendingTrade) map[string]domain.OrderBook {
	tokens := make([]string, 0, e.cfg.BatchCap)
	seen := make(map[string]bool, e.cfg.BatchCap)
	for _, id := range ids {
		if len(tokens) >= e.cfg.BatchCap {
			break
		}
		t, ok := byID[id]
		if !ok || !t.IsPending() || seen[t.TokenID] {
			continue
		}
		seen[t.TokenID] = true
		tokens = append(tokens, t.TokenID)
	}
	if len(tokens) == 0 {
		return nil
	}
	books, err := e.books.FetchOrderBooks(ctx, tokens)
	if err != nil {
		slog.Warn("live: batch orderbook fetch failed, falling back to single fetch", "tokens", len(tokens), "err", err)
		return nil
	}
	return books
}

// executeOne aplica los checks de seguridad y coloca la orden.
func (e *Executor) executeOne(ctx context.Context, t *domain.PendingTrade, lp *domain.LivePortfolio, books map[string]domain.OrderBook, now time.Time) domain.ExecutionResult {
	res := baseResult(t)
	fail := func(reason string) domain.ExecutionResult {
		res.Status = domain.ResultFailed
		res.Reason = reason
		slog.Warn("live: trade failed", "id", t.ID, "reason", reason)
		return res
	}

	if lp.OpenMarketIDs()[t.MarketID] {
		return fail("market already open in live portfolio")
	}

	balance, err := e.venue.GetBalance(ctx)
	switch {
	case err != nil:
		slog.Warn("live: balance check unavailable, proceeding", "id", t.ID, "err", err)
	case balance < e.cfg.MinBalance || balance < t.SizeUSD:
		return fail(fmt.Sprintf("insufficient balance: $%.2f available, $%.2f needed", balance, math.Max(t.SizeUSD, e.cfg.MinBalance)))
	}

	book, ok := books[t.TokenID]
	if !ok {
		if book, err = e.books.FetchOrderBook(ctx, t.TokenID); err != nil {
			return fail(fmt.Sprintf("Orderbook check failed: %v", err))
		}
	}
	ask, ok := book.BestAsk()
	if !ok {
		res.BookCheck = "No asks in orderbook"
		return fail("Orderbook check failed: No asks in orderbook")
	}
	divergence := math.Abs(ask - t.ProposedPrice)
	if divergence > e.cfg.MaxDivergence+1e-9 {
		res.BookCheck = fmt.Sprintf("Price divergence too high: expected %.4f, got %.4f (diff: %.4f)",
			t.ProposedPrice, ask, divergence)
		return fail("Orderbook check failed: " + res.BookCheck)
	}
	res.BookCheck = fmt.Sprintf("Orderbook OK: best ask %.4f", ask)
	if bid, ok := book.BestBid(); ok {
		res.BookCheck += fmt.Sprintf(", best bid %.4f", bid)
	}

	limit, shares := LimitOrder(ask, t.ProposedPrice, t.SizeUSD)
	res.LimitPrice = limit
	res.Shares = shares

	if e.cfg.Shadow {
		res.Status = domain.ResultShadow
		res.Reason = "shadow mode: order not placed"
		slog.Info("live: [SHADOW] would place order",
			"id", t.ID,
			"shares", shares,
			"limit", limit,
			"market", domain.TruncateQuestion(t.Question, t.MarketID, 40),
		)
		return res
	}

	order, err := e.venue.PlaceOrder(ctx, domain.PlaceOrderRequest{
		TokenID: t.TokenID,
		Price:   limit,
		Shares:  shares,
		Side:    "BUY",
	})
	if err != nil {
		return fail(fmt.Sprintf("Order placement failed: %v", err))
	}

	if _, err := lp.RecordExecution(t, order, limit, shares, now); err != nil {
		// la orden ya está en el venue: se marca executed igualmente
		slog.Error("live: order placed but not recorded", "id", t.ID, "order_id", order.OrderID, "err", err)
	}
	res.Status = domain.ResultExecuted
	res.OrderID = order.OrderID
	slog.Info("live: ORDER PLACED",
		"id", t.ID,
		"order_id", order.OrderID,
		"side", t.BetSide,
		"shares", shares,
		"limit", limit,
		"size", fmt.Sprintf("$%.2f", t.SizeUSD),
	)
	return res
}

// LimitOrder calcula el precio límite y las shares de una compra:
// limit = clamp(round2(min(ask+0.01, proposed+0.02)), 0.01, 0.99) y
// shares = round2(size / limit).
func LimitOrder(ask, proposed, size float64) (limit, shares float64) {
	a := decimal.NewFromFloat(ask).Add(decimal.NewFromFloat(askBump))
	p := decimal.NewFromFloat(proposed).Add(decimal.NewFromFloat(proposedBump))
	l := decimal.Min(a, p).Round(2)
	l = decimal.Max(decimal.NewFromFloat(minLimitPrice), decimal.Min(decimal.NewFromFloat(maxLimitPrice), l))

	sh := decimal.NewFromFloat(size).DivRound(l, 2)
	return l.InexactFloat64(), sh.InexactFloat64()
}

func baseResult(t *domain.PendingTrade) domain.ExecutionResult {
	return domain.ExecutionResult{
		TradeID:  t.ID,
		MarketID: t.MarketID,
		Question: domain.TruncateQuestion(t.Question, t.MarketID, 60),
		SizeUSD:  t.SizeUSD,
	}
}

func encodeResult(res domain.ExecutionResult) string {
	b, err := json.Marshal(res)
	if err != nil {
		return res.Reason
	}
	return string(b)
}
