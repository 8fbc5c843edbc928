package domain

import (
	"fmt"
	"time"
)

// TradeStatus es el estado de una propuesta live. Solo avanza:
// pending → executed | failed | expired.
type TradeStatus string

const (
	TradePending  TradeStatus = "pending"
	TradeExecuted TradeStatus = "executed"
	TradeFailed   TradeStatus = "failed"
	TradeExpired  TradeStatus = "expired"
)

// ResultStatus es el resultado de un intento de ejecución. Además de los
// estados terminales incluye shadow (simulado) y skipped (no elegible).
type ResultStatus string

const (
	ResultExecuted ResultStatus = "executed"
	ResultFailed   ResultStatus = "failed"
	ResultShadow   ResultStatus = "shadow"
	ResultSkipped  ResultStatus = "skipped"
)

// PendingTrade is a live trade proposal waiting for human approval.
type PendingTrade struct {
	ID              string      `json:"id"`
	Strategy        string      `json:"strategy"`
	MarketID        string      `json:"market_id"`
	Question        string      `json:"question"`
	TokenID         string      `json:"token_id"`
	BetSide         Side        `json:"bet_side"`
	ProposedPrice   float64     `json:"proposed_price"`
	SizeUSD         float64     `json:"size_usd"`
	Cluster         string      `json:"cluster"`
	ExpectedClose   string      `json:"expected_close"`
	ProposedAt      Timestamp   `json:"proposed_at"`
	ExpiresAt       Timestamp   `json:"expires_at"`
	Status          TradeStatus `json:"status"`
	ExecutionResult string      `json:"execution_result,omitempty"`
}

// NewTradeID builds LT-YYYYMMDD-HHMMSS-<first 8 chars of market id>-<strategy>,
// in UTC. Two strategies proposing the same market in the same second get
// distinct ids.
func NewTradeID(strategy, marketID string, now time.Time) string {
	short := marketID
	if len(short) > 8 {
		short = short[:8]
	}
	return fmt.Sprintf("LT-%s-%s-%s", now.UTC().Format("20060102-150405"), short, strategy)
}

// NewPendingTrade snapshots the candidate into a proposal that expires after ttl.
func NewPendingTrade(c TradeCandidate, strategy string, size float64, now time.Time, ttl time.Duration) *PendingTrade {
	return &PendingTrade{
		ID:            NewTradeID(strategy, c.MarketID, now),
		Strategy:      strategy,
		MarketID:      c.MarketID,
		Question:      c.Question,
		TokenID:       c.TokenID,
		BetSide:       c.BetSide,
		ProposedPrice: c.PriceEntry,
		SizeUSD:       size,
		Cluster:       c.Cluster,
		ExpectedClose: c.ExpectedClose(),
		ProposedAt:    At(now),
		ExpiresAt:     At(now.Add(ttl)),
		Status:        TradePending,
	}
}

// IsPending reports whether the proposal can still be executed.
func (t *PendingTrade) IsPending() bool {
	return t.Status == TradePending
}

// Expired es estricto: now > expires_at.
func (t *PendingTrade) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && now.After(t.ExpiresAt.Time)
}

// Transition moves a pending proposal to a terminal status. Non-pending
// proposals are left as they are and false is returned.
func (t *PendingTrade) Transition(to TradeStatus, result string) bool {
	if !t.IsPending() || to == TradePending {
		return false
	}
	t.Status = to
	t.ExecutionResult = result
	return true
}

// ExecutionResult is the outcome of one trade id within an execution batch.
type ExecutionResult struct {
	TradeID    string       `json:"trade_id"`
	MarketID   string       `json:"market_id,omitempty"`
	Question   string       `json:"question,omitempty"`
	Status     ResultStatus `json:"status"`
	Reason     string       `json:"reason,omitempty"`
	BookCheck  string       `json:"orderbook_check,omitempty"`
	LimitPrice float64      `json:"limit_price,omitempty"`
	Shares     float64      `json:"shares,omitempty"`
	SizeUSD    float64      `json:"size_usd,omitempty"`
	OrderID    string       `json:"order_id,omitempty"`
}
