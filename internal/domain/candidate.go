package domain

import "time"

// Side is the outcome token a strategy buys.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// Valid reports whether s is YES or NO.
func (s Side) Valid() bool {
	return s == SideYes || s == SideNo
}

// EntryPrice is the price actually paid for side given the YES price.
func EntryPrice(side Side, priceYes float64) float64 {
	if side == SideNo {
		return 1 - priceYes
	}
	return priceYes
}

// TradeCandidate is a market that passed every evaluation filter for one strategy.
// Ephemeral: it lives for a single run.
type TradeCandidate struct {
	MarketID    string
	Question    string
	TokenID     string
	BetSide     Side
	PriceYes    float64
	PriceEntry  float64
	Volume      float64
	Cluster     string
	DaysToClose float64
	EndDate     time.Time
	BetSize     float64 // size resolved from the strategy sizing mode
}

// ExpectedClose formats EndDate the way positions persist it.
func (c TradeCandidate) ExpectedClose() string {
	if c.EndDate.IsZero() {
		return ""
	}
	return c.EndDate.UTC().Format(time.RFC3339)
}
