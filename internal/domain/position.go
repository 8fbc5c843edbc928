package domain

import (
	"bytes"
	"encoding/json"
	"time"
)

// PositionStatus is one-way: open → closed.
type PositionStatus string

const (
	PositionOpen   PositionStatus = "open"
	PositionClosed PositionStatus = "closed"
)

// Resolution is how a closed position ended. Empty while open.
type Resolution string

const (
	ResolutionWin         Resolution = "win"
	ResolutionLose        Resolution = "lose"
	ResolutionManualClose Resolution = "manual_close"
)

func (r Resolution) MarshalJSON() ([]byte, error) {
	if r == "" {
		return []byte("null"), nil
	}
	return json.Marshal(string(r))
}

func (r *Resolution) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*r = Resolution(s)
	return nil
}

// Outcome is the side a market resolved to. OutcomeNone means unresolved.
type Outcome string

const (
	OutcomeNone Outcome = ""
	OutcomeYes  Outcome = "yes"
	OutcomeNo   Outcome = "no"
)

// manualCloseLoss is the fraction of size booked as loss on a manual close.
const manualCloseLoss = 0.5

// Position belongs to exactly one portfolio. Live positions also carry the
// venue order id and the strategy that proposed them.
type Position struct {
	MarketID        string         `json:"market_id"`
	Question        string         `json:"question"`
	TokenID         string         `json:"token_id"`
	BetSide         Side           `json:"bet_side"`
	EntryDate       Timestamp      `json:"entry_date"`
	EntryPrice      float64        `json:"entry_price"`
	SizeUSD         float64        `json:"size_usd"`
	Shares          float64        `json:"shares"`
	Cluster         string         `json:"cluster"`
	ExpectedClose   string         `json:"expected_close"`
	Status          PositionStatus `json:"status"`
	Resolution      Resolution     `json:"resolution"`
	CloseDate       Timestamp      `json:"close_date"`
	PnL             *float64       `json:"pnl"`
	CurrentPrice    *float64       `json:"current_price"`
	PriceYesCurrent *float64       `json:"price_yes_current"`
	OrderID         string         `json:"order_id,omitempty"`
	Strategy        string         `json:"strategy,omitempty"`
}

// IsOpen reports whether the position still carries exposure.
func (p *Position) IsOpen() bool {
	return p.Status == PositionOpen
}

// Wins reports whether outcome pays this position.
func (p *Position) Wins(outcome Outcome) bool {
	return (p.BetSide == SideNo && outcome == OutcomeNo) ||
		(p.BetSide == SideYes && outcome == OutcomeYes)
}

// MarkToMarket refreshes the current price fields from the latest YES price.
// Shares and status are untouched.
func (p *Position) MarkToMarket(priceYes float64) {
	yes := priceYes
	current := EntryPrice(p.BetSide, priceYes)
	p.PriceYesCurrent = &yes
	p.CurrentPrice = &current
}

// Settle closes the position against outcome. A closed position is never
// settled again: the call returns ErrPositionClosed and changes nothing.
func (p *Position) Settle(outcome Outcome, now time.Time) (float64, error) {
	if !p.IsOpen() {
		return 0, ErrPositionClosed
	}
	var pnl float64
	if p.Wins(outcome) {
		pnl = p.Shares*1.0 - p.SizeUSD
		p.Resolution = ResolutionWin
	} else {
		pnl = -p.SizeUSD
		p.Resolution = ResolutionLose
	}
	p.close(pnl, now)
	return pnl, nil
}

// ForceClose closes the position manually, booking half the size as loss.
func (p *Position) ForceClose(now time.Time) (float64, error) {
	if !p.IsOpen() {
		return 0, ErrPositionClosed
	}
	pnl := -p.SizeUSD * manualCloseLoss
	p.Resolution = ResolutionManualClose
	p.close(pnl, now)
	return pnl, nil
}

func (p *Position) close(pnl float64, now time.Time) {
	p.Status = PositionClosed
	p.CloseDate = At(now)
	p.PnL = &pnl
}

// UnrealizedPnL is current×shares − size. ok is false until the position was marked.
func (p *Position) UnrealizedPnL() (pnl float64, ok bool) {
	if p.CurrentPrice == nil {
		return 0, false
	}
	return *p.CurrentPrice*p.Shares - p.SizeUSD, true
}
