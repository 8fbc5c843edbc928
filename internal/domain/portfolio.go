package domain

import (
	"fmt"
	"strings"
	"time"
)

// Portfolio es el ledger de una estrategia: posiciones abiertas, trades
// cerrados y agregados derivados de los cerrados.
type Portfolio struct {
	BankrollInitial float64     `json:"bankroll_initial"`
	BankrollCurrent float64     `json:"bankroll_current"`
	EntryCostRate   float64     `json:"entry_cost_rate"`
	Positions       []*Position `json:"positions"`
	ClosedTrades    []*Position `json:"closed_trades"`
	TotalTrades     int         `json:"total_trades"`
	Wins            int         `json:"wins"`
	Losses          int         `json:"losses"`
	TotalPnL        float64     `json:"total_pnl"`
	CreatedAt       Timestamp   `json:"created_at"`
	LastUpdated     Timestamp   `json:"last_updated"`
}

// NewPortfolio crea un portfolio vacío con el bankroll y coste de entrada dados.
func NewPortfolio(bankroll, entryCostRate float64, now time.Time) *Portfolio {
	return &Portfolio{
		BankrollInitial: bankroll,
		BankrollCurrent: bankroll,
		EntryCostRate:   entryCostRate,
		Positions:       []*Position{},
		ClosedTrades:    []*Position{},
		CreatedAt:       At(now),
		LastUpdated:     At(now),
	}
}

// Normalize repara estado cargado de disco: slices nil y posiciones cerradas
// que quedaron en la lista de abiertas.
func (p *Portfolio) Normalize() {
	if p.Positions == nil {
		p.Positions = []*Position{}
	}
	if p.ClosedTrades == nil {
		p.ClosedTrades = []*Position{}
	}
	open := p.Positions[:0]
	for _, pos := range p.Positions {
		if pos == nil {
			continue
		}
		if pos.Status == "" {
			pos.Status = PositionOpen
		}
		if pos.IsOpen() {
			open = append(open, pos)
		} else {
			p.ClosedTrades = append(p.ClosedTrades, pos)
		}
	}
	p.Positions = open
}

// Exposure suma size de las posiciones abiertas, total y por cluster.
func (p *Portfolio) Exposure() (float64, map[string]float64) {
	var total float64
	byCluster := make(map[string]float64)
	for _, pos := range p.Positions {
		if !pos.IsOpen() {
			continue
		}
		total += pos.SizeUSD
		byCluster[pos.Cluster] += pos.SizeUSD
	}
	return total, byCluster
}

// CashAvailable is bankroll_current minus open exposure.
func (p *Portfolio) CashAvailable() float64 {
	total, _ := p.Exposure()
	return p.BankrollCurrent - total
}

// OpenMarketIDs devuelve el set de mercados con posición abierta.
func (p *Portfolio) OpenMarketIDs() map[string]bool {
	ids := make(map[string]bool, len(p.Positions))
	for _, pos := range p.Positions {
		if pos.IsOpen() {
			ids[pos.MarketID] = true
		}
	}
	return ids
}

// OpenPositions devuelve las posiciones abiertas en orden de apertura.
func (p *Portfolio) OpenPositions() []*Position {
	out := make([]*Position, 0, len(p.Positions))
	for _, pos := range p.Positions {
		if pos.IsOpen() {
			out = append(out, pos)
		}
	}
	return out
}

// OpenPosition abre una posición paper sobre el candidato.
// shares = size × (1 − entry_cost_rate) / entry_price.
func (p *Portfolio) OpenPosition(c TradeCandidate, size float64, now time.Time) (*Position, error) {
	if p.OpenMarketIDs()[c.MarketID] {
		return nil, fmt.Errorf("domain.OpenPosition %s: %w", c.MarketID, ErrAlreadyOpen)
	}
	if size > p.CashAvailable()+1e-9 {
		return nil, fmt.Errorf("domain.OpenPosition %s: size $%.2f: %w", c.MarketID, size, ErrInsufficientCash)
	}
	if c.PriceEntry <= 0 {
		return nil, fmt.Errorf("domain.OpenPosition %s: invalid entry price %.4f", c.MarketID, c.PriceEntry)
	}
	pos := &Position{
		MarketID:      c.MarketID,
		Question:      c.Question,
		TokenID:       c.TokenID,
		BetSide:       c.BetSide,
		EntryDate:     At(now),
		EntryPrice:    c.PriceEntry,
		SizeUSD:       size,
		Shares:        size * (1 - p.EntryCostRate) / c.PriceEntry,
		Cluster:       c.Cluster,
		ExpectedClose: c.ExpectedClose(),
		Status:        PositionOpen,
	}
	p.append(pos, now)
	return pos, nil
}

func (p *Portfolio) append(pos *Position, now time.Time) {
	p.Positions = append(p.Positions, pos)
	p.TotalTrades++
	p.LastUpdated = At(now)
}

// Settle cierra pos contra outcome, la mueve a closed_trades y recalcula
// los agregados. Una posición ya cerrada devuelve ErrPositionClosed sin tocar nada.
func (p *Portfolio) Settle(pos *Position, outcome Outcome, now time.Time) (float64, error) {
	pnl, err := pos.Settle(outcome, now)
	if err != nil {
		return 0, fmt.Errorf("domain.Settle %s: %w", pos.MarketID, err)
	}
	p.moveToClosed(pos, now)
	return pnl, nil
}

// CloseManual cierra manualmente todas las posiciones abiertas cuya pregunta
// contiene search (case-insensitive).
func (p *Portfolio) CloseManual(search string, now time.Time) []*Position {
	matches := p.FindOpen(search)
	for _, pos := range matches {
		if _, err := pos.ForceClose(now); err != nil {
			continue
		}
		p.moveToClosed(pos, now)
	}
	return matches
}

// FindOpen busca posiciones abiertas por market id exacto o texto en la pregunta.
func (p *Portfolio) FindOpen(search string) []*Position {
	needle := strings.ToLower(strings.TrimSpace(search))
	if needle == "" {
		return nil
	}
	var out []*Position
	for _, pos := range p.Positions {
		if !pos.IsOpen() {
			continue
		}
		if strings.EqualFold(pos.MarketID, needle) || strings.Contains(strings.ToLower(pos.Question), needle) {
			out = append(out, pos)
		}
	}
	return out
}

func (p *Portfolio) moveToClosed(pos *Position, now time.Time) {
	for i, open := range p.Positions {
		if open == pos {
			p.Positions = append(p.Positions[:i], p.Positions[i+1:]...)
			break
		}
	}
	p.ClosedTrades = append(p.ClosedTrades, pos)
	p.RecomputeStats(now)
}

// RecomputeStats recalcula wins, losses, total_pnl y bankroll_current desde
// cero a partir de closed_trades.
func (p *Portfolio) RecomputeStats(now time.Time) {
	var wins, losses int
	var total float64
	for _, t := range p.ClosedTrades {
		switch t.Resolution {
		case ResolutionWin:
			wins++
		case ResolutionLose:
			losses++
		}
		if t.PnL != nil {
			total += *t.PnL
		}
	}
	p.Wins = wins
	p.Losses = losses
	p.TotalPnL = total
	p.BankrollCurrent = p.BankrollInitial + total
	p.LastUpdated = At(now)
}

// LivePortfolio tiene la misma forma que Portfolio más el contador de
// órdenes ejecutadas. Sus posiciones llevan order_id y strategy.
type LivePortfolio struct {
	Portfolio
	TotalExecuted int `json:"total_executed"`
}

// NewLivePortfolio crea un portfolio live vacío.
func NewLivePortfolio(now time.Time) *LivePortfolio {
	return &LivePortfolio{Portfolio: *NewPortfolio(0, 0, now)}
}

// RecordExecution registra una posición live tras una orden aceptada por el venue.
// La entrada es el precio límite y las shares las efectivamente pedidas.
func (lp *LivePortfolio) RecordExecution(t *PendingTrade, order PlacedOrder, limit, shares float64, now time.Time) (*Position, error) {
	if lp.OpenMarketIDs()[t.MarketID] {
		return nil, fmt.Errorf("domain.RecordExecution %s: %w", t.MarketID, ErrAlreadyOpen)
	}
	pos := &Position{
		MarketID:      t.MarketID,
		Question:      t.Question,
		TokenID:       t.TokenID,
		BetSide:       t.BetSide,
		EntryDate:     At(now),
		EntryPrice:    limit,
		SizeUSD:       t.SizeUSD,
		Shares:        shares,
		Cluster:       t.Cluster,
		ExpectedClose: t.ExpectedClose,
		Status:        PositionOpen,
		OrderID:       order.OrderID,
		Strategy:      t.Strategy,
	}
	lp.append(pos, now)
	lp.TotalExecuted++
	return pos, nil
}
