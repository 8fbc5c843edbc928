package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPriceBounds_Zones(t *testing.T) {
	s := Strategy{
		PriceMin: 0.2, PriceMax: 0.6,
		Zones: []Zone{
			{MinVolume: 10_000, MaxVolume: 50_000, PriceMin: 0.20, PriceMax: 0.40},
			{MinVolume: 100_000, PriceMin: 0.10, PriceMax: 0.30},
		},
	}
	lo, hi, ok := s.PriceBounds(20_000)
	assert.True(t, ok)
	assert.Equal(t, [2]float64{0.20, 0.40}, [2]float64{lo, hi})

	_, _, ok = s.PriceBounds(75_000) // hueco entre zonas
	assert.False(t, ok)

	lo, _, ok = s.PriceBounds(5_000_000)
	assert.True(t, ok)
	assert.Equal(t, 0.10, lo)
}

func TestBetSizeFor(t *testing.T) {
	fixed := Strategy{BetSize: 25}
	assert.Equal(t, 25.0, fixed.BetSizeFor(1_000))

	adaptive := Strategy{BetSize: 25, Sizing: SizingAdaptive}
	assert.Equal(t, 5.0, adaptive.BetSizeFor(4_999))
	assert.Equal(t, 10.0, adaptive.BetSizeFor(5_000))
	assert.Equal(t, 10.0, adaptive.BetSizeFor(49_999))
	assert.Equal(t, 25.0, adaptive.BetSizeFor(50_000))
}

func TestAllowsCluster(t *testing.T) {
	assert.True(t, Strategy{}.AllowsCluster("other"))
	s := Strategy{ClusterFilter: []string{"mideast"}}
	assert.True(t, s.AllowsCluster("mideast"))
	assert.False(t, s.AllowsCluster("ukraine"))
}

func TestPendingTrade_IDAndExpiry(t *testing.T) {
	now := time.Date(2026, 2, 9, 14, 5, 9, 0, time.UTC)
	c := TradeCandidate{MarketID: "5123456789", BetSide: SideNo, PriceYes: 0.3, PriceEntry: 0.7}
	trade := NewPendingTrade(c, "test_live", 1, now, 6*time.Hour)

	assert.Equal(t, "LT-20260209-140509-51234567-test_live", trade.ID)
	assert.NotEqual(t, trade.ID, NewPendingTrade(c, "t5_live", 1, now, 6*time.Hour).ID)
	assert.Equal(t, TradePending, trade.Status)
	assert.InDelta(t, 0.7, trade.ProposedPrice, 1e-9)

	assert.False(t, trade.Expired(now.Add(5*time.Hour+59*time.Minute)))
	assert.False(t, trade.Expired(now.Add(6*time.Hour)))
	assert.True(t, trade.Expired(now.Add(6*time.Hour+time.Second)))
}

func TestPendingTrade_TransitionsOnlyForward(t *testing.T) {
	trade := &PendingTrade{Status: TradePending}
	assert.True(t, trade.Transition(TradeFailed, "boom"))
	assert.False(t, trade.Transition(TradeExecuted, "late"))
	assert.Equal(t, TradeFailed, trade.Status)
	assert.Equal(t, "boom", trade.ExecutionResult)
}
