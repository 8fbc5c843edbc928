package paper_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/geobot/internal/application/engine/paper"
	"github.com/alejandrodnm/geobot/internal/application/monitor"
	"github.com/alejandrodnm/geobot/internal/application/selection"
	"github.com/alejandrodnm/geobot/internal/domain"
)

var now = time.Date(2026, 2, 9, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

// memRepo guarda los portfolios en memoria por estrategia.
type memRepo struct {
	portfolios map[string]*domain.Portfolio
	saves      int
}

func newMemRepo() *memRepo { return &memRepo{portfolios: map[string]*domain.Portfolio{}} }

func (r *memRepo) LoadPortfolio(_ context.Context, name string, bankroll, rate float64) (*domain.Portfolio, error) {
	if p, ok := r.portfolios[name]; ok {
		return p, nil
	}
	return domain.NewPortfolio(bankroll, rate, now), nil
}

func (r *memRepo) SavePortfolio(_ context.Context, name string, p *domain.Portfolio) error {
	r.portfolios[name] = p
	r.saves++
	return nil
}

func (r *memRepo) LoadLivePortfolio(context.Context) (*domain.LivePortfolio, error) {
	return domain.NewLivePortfolio(now), nil
}
func (r *memRepo) SaveLivePortfolio(context.Context, *domain.LivePortfolio) error { return nil }
func (r *memRepo) LoadProposals(context.Context) ([]*domain.PendingTrade, error) {
	return nil, nil
}
func (r *memRepo) SaveProposals(context.Context, []*domain.PendingTrade) error { return nil }

type classifier struct{}

func (classifier) IsGeopolitical(q string) bool { return !strings.Contains(q, "bitcoin") }
func (classifier) Cluster(string) string        { return "middle_east" }

// markets hace de snapshot y de MarketProvider a la vez.
type markets map[string]domain.Market

func (m markets) Lookup(id string) (domain.Market, bool) {
	mk, ok := m[id]
	return mk, ok
}

func (m markets) FetchOpenMarkets(context.Context) ([]domain.Market, error) { return nil, nil }

func (m markets) FetchMarket(_ context.Context, id string) (domain.Market, error) {
	if mk, ok := m[id]; ok {
		return mk, nil
	}
	return domain.Market{}, domain.ErrNotFound
}

func market(id, question string, yes, volume float64) domain.Market {
	return domain.Market{
		ID:            id,
		Question:      question,
		Outcomes:      []string{"Yes", "No"},
		OutcomePrices: []float64{yes, 1 - yes},
		ClobTokenIDs:  []string{"yes-" + id, "no-" + id},
		Volume:        volume,
		StartDate:     now.Add(-10 * 24 * time.Hour),
		EndDate:       now.Add(20 * 24 * time.Hour),
		Active:        true,
	}
}

func strategy() domain.Strategy {
	return domain.Strategy{
		Name:             "balanced",
		Mode:             domain.ModePaper,
		BetSide:          domain.SideNo,
		PriceMin:         0.20,
		PriceMax:         0.60,
		MinVolume:        10_000,
		BufferHours:      48,
		Bankroll:         1500,
		BetSize:          25,
		Sizing:           domain.SizingFixed,
		EntryCostRate:    0.03,
		MinCashPct:       0.30,
		MaxTotalExposure: 0.60,
		MaxClusterExpo:   0.20,
	}
}

func input(list ...domain.Market) paper.Input {
	idx := markets{}
	for _, m := range list {
		idx[m.ID] = m
	}
	return paper.Input{
		Markets:   list,
		Lookup:    idx,
		Evaluator: selection.NewEvaluator(classifier{}),
		Monitor:   monitor.New(idx).WithClock(clock),
	}
}

func TestRunStrategy_OpensSelectedPositions(t *testing.T) {
	repo := newMemRepo()
	eng := paper.New(repo).WithClock(clock)

	in := input(
		market("m1", "Will Iran strike Israel?", 0.30, 80_000),
		market("m2", "Will bitcoin hit 200k?", 0.30, 80_000),
		market("m3", "Will Israel annex Gaza?", 0.90, 80_000),
	)
	run, opened, err := eng.RunStrategy(context.Background(), strategy(), in)
	require.NoError(t, err)

	assert.Equal(t, 1, run.Candidates)
	assert.Equal(t, 1, run.Opened)
	require.Len(t, opened, 1)
	assert.Equal(t, "m1", opened[0].MarketID)

	p := repo.portfolios["balanced"]
	require.NotNil(t, p)
	require.Len(t, p.Positions, 1)
	pos := p.Positions[0]
	assert.Equal(t, domain.SideNo, pos.BetSide)
	assert.InDelta(t, 0.70, pos.EntryPrice, 1e-9)
	assert.InDelta(t, 25*0.97/0.70, pos.Shares, 1e-9)
	assert.InDelta(t, 1475.0, run.Cash, 1e-9)
	assert.Equal(t, 1, run.OpenCount)
}

func TestRunStrategy_SecondCycleDoesNotDuplicate(t *testing.T) {
	repo := newMemRepo()
	eng := paper.New(repo).WithClock(clock)
	in := input(market("m1", "Will Iran strike Israel?", 0.30, 80_000))

	_, _, err := eng.RunStrategy(context.Background(), strategy(), in)
	require.NoError(t, err)
	run, _, err := eng.RunStrategy(context.Background(), strategy(), in)
	require.NoError(t, err)

	assert.Equal(t, 0, run.Opened)
	assert.Equal(t, 1, run.Marked)
	assert.Len(t, repo.portfolios["balanced"].Positions, 1)
}

func TestRunStrategy_RespectsExternallyHeldMarkets(t *testing.T) {
	repo := newMemRepo()
	eng := paper.New(repo).WithClock(clock)
	in := input(market("m1", "Will Iran strike Israel?", 0.30, 80_000))
	in.Held = map[string]bool{"m1": true}

	run, opened, err := eng.RunStrategy(context.Background(), strategy(), in)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Candidates)
	assert.Empty(t, opened)
}

func TestRunStrategy_SettlesResolvedPositions(t *testing.T) {
	repo := newMemRepo()
	eng := paper.New(repo).WithClock(clock)
	open := market("m1", "Will Iran strike Israel?", 0.30, 80_000)

	_, _, err := eng.RunStrategy(context.Background(), strategy(), input(open))
	require.NoError(t, err)

	resolved := open
	resolved.Closed = true
	resolved.OutcomePrices = []float64{0, 1}
	in := input()
	in.Lookup = markets{"m1": resolved}
	in.Monitor = monitor.New(markets{"m1": resolved}).WithClock(clock)

	run, _, err := eng.RunStrategy(context.Background(), strategy(), in)
	require.NoError(t, err)
	assert.Equal(t, 1, run.Resolved)
	assert.Equal(t, 1, run.Wins)
	assert.Equal(t, 0, run.OpenCount)
	assert.Greater(t, run.TotalPnL, 0.0)

	p := repo.portfolios["balanced"]
	assert.Empty(t, p.Positions)
	require.Len(t, p.ClosedTrades, 1)
	assert.Equal(t, domain.ResolutionWin, p.ClosedTrades[0].Resolution)
}

func TestCloseManual_AcrossPortfolios(t *testing.T) {
	repo := newMemRepo()
	eng := paper.New(repo).WithClock(clock)

	a := strategy()
	b := strategy()
	b.Name = "aggressive"
	in := input(market("m1", "Will Iran strike Israel?", 0.30, 80_000))
	for _, s := range []domain.Strategy{a, b} {
		_, _, err := eng.RunStrategy(context.Background(), s, in)
		require.NoError(t, err)
	}

	found, err := eng.FindOpen(context.Background(), []domain.Strategy{a, b}, "iran strike")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	closed, err := eng.CloseManual(context.Background(), []domain.Strategy{a, b}, "m1")
	require.NoError(t, err)
	require.Len(t, closed, 2)
	for _, c := range closed {
		require.NotNil(t, c.Position.PnL)
		assert.InDelta(t, -12.5, *c.Position.PnL, 1e-9)
	}
	assert.Empty(t, repo.portfolios["aggressive"].Positions)
	assert.InDelta(t, -12.5, repo.portfolios["aggressive"].TotalPnL, 1e-9)
}

func TestCloseManual_NoMatchDoesNotSave(t *testing.T) {
	repo := newMemRepo()
	eng := paper.New(repo).WithClock(clock)

	closed, err := eng.CloseManual(context.Background(), []domain.Strategy{strategy()}, "nothing")
	require.NoError(t, err)
	assert.Empty(t, closed)
	assert.Zero(t, repo.saves)
}
