package live_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/geobot/internal/adapters/storage"
	"github.com/alejandrodnm/geobot/internal/application/engine/live"
	"github.com/alejandrodnm/geobot/internal/domain"
	"github.com/alejandrodnm/geobot/internal/ports"
)

var t0 = time.Date(2026, 2, 9, 14, 5, 9, 0, time.UTC)

// memRepo implementa ports.Repository en memoria.
type memRepo struct {
	proposals []*domain.PendingTrade
	live      *domain.LivePortfolio
	saves     int
}

func newMemRepo() *memRepo {
	return &memRepo{live: domain.NewLivePortfolio(t0)}
}

func (r *memRepo) LoadPortfolio(_ context.Context, _ string, bankroll, rate float64) (*domain.Portfolio, error) {
	return domain.NewPortfolio(bankroll, rate, t0), nil
}
func (r *memRepo) SavePortfolio(context.Context, string, *domain.Portfolio) error { return nil }
func (r *memRepo) LoadLivePortfolio(context.Context) (*domain.LivePortfolio, error) {
	return r.live, nil
}
func (r *memRepo) SaveLivePortfolio(_ context.Context, p *domain.LivePortfolio) error {
	r.live = p
	return nil
}
func (r *memRepo) LoadProposals(context.Context) ([]*domain.PendingTrade, error) {
	return append([]*domain.PendingTrade(nil), r.proposals...), nil
}
func (r *memRepo) SaveProposals(_ context.Context, trades []*domain.PendingTrade) error {
	r.saves++
	r.proposals = append([]*domain.PendingTrade(nil), trades...)
	return nil
}

type fakeBooks struct {
	asks map[string]float64
	err  error

	batchErr    error
	batchMiss   map[string]bool
	batchCalls  int
	singleCalls int
}

func (f *fakeBooks) book(token string) (domain.OrderBook, error) {
	if f.err != nil {
		return domain.OrderBook{}, f.err
	}
	ob := domain.OrderBook{TokenID: token}
	if ask, ok := f.asks[token]; ok {
		ob.Asks = []domain.BookEntry{{Price: ask, Size: 500}}
	}
	return ob, nil
}

func (f *fakeBooks) FetchOrderBook(_ context.Context, token string) (domain.OrderBook, error) {
	f.singleCalls++
	return f.book(token)
}

func (f *fakeBooks) FetchOrderBooks(_ context.Context, tokens []string) (map[string]domain.OrderBook, error) {
	f.batchCalls++
	if f.batchErr != nil {
		return nil, f.batchErr
	}
	out := map[string]domain.OrderBook{}
	for _, tk := range tokens {
		if f.batchMiss[tk] {
			continue
		}
		ob, err := f.book(tk)
		if err != nil {
			return nil, err
		}
		out[tk] = ob
	}
	return out, nil
}

// memStore es un ports.StateStore en memoria; failKey hace fallar Save
// para esa clave (failLeft veces, o siempre si es negativo).
type memStore struct {
	docs     map[string][]byte
	failKey  string
	failLeft int
}

func (m *memStore) Load(_ context.Context, key string) ([]byte, error) {
	b, ok := m.docs[key]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return b, nil
}

func (m *memStore) Save(_ context.Context, key string, data []byte) error {
	if key == m.failKey && m.failLeft != 0 {
		m.failLeft--
		return errors.New("disk full")
	}
	m.docs[key] = append([]byte(nil), data...)
	return nil
}

func (m *memStore) Close() error { return nil }

type fakeVenue struct {
	balance    float64
	balanceErr error
	placeErr   error
	placed     []domain.PlaceOrderRequest
}

func (v *fakeVenue) PlaceOrder(_ context.Context, req domain.PlaceOrderRequest) (domain.PlacedOrder, error) {
	if v.placeErr != nil {
		return domain.PlacedOrder{}, v.placeErr
	}
	v.placed = append(v.placed, req)
	return domain.PlacedOrder{OrderID: "0xorder" + req.TokenID, Status: "live"}, nil
}

func (v *fakeVenue) GetBalance(context.Context) (float64, error) {
	return v.balance, v.balanceErr
}

type fakeNotifier struct {
	proposals  int
	executions [][]domain.ExecutionResult
}

func (n *fakeNotifier) NotifyProposal(context.Context, *domain.PendingTrade) error {
	n.proposals++
	return errors.New("telegram down")
}
func (n *fakeNotifier) NotifyExecution(_ context.Context, r []domain.ExecutionResult) error {
	n.executions = append(n.executions, r)
	return nil
}
func (n *fakeNotifier) NotifySummary(context.Context, domain.CycleSummary) error { return nil }

func candidate(id string, priceEntry float64) domain.TradeCandidate {
	return domain.TradeCandidate{
		MarketID:   id,
		Question:   "Will " + id + " happen?",
		TokenID:    "tok-" + id,
		BetSide:    domain.SideNo,
		PriceYes:   1 - priceEntry,
		PriceEntry: priceEntry,
		Cluster:    "middle_east",
		EndDate:    t0.Add(30 * 24 * time.Hour),
		BetSize:    10,
	}
}

func clock(t time.Time) func() time.Time { return func() time.Time { return t } }

func propose(t *testing.T, repo *memRepo, cands ...domain.TradeCandidate) []*domain.PendingTrade {
	t.Helper()
	g := live.NewGateway(repo, nil, 6*time.Hour).WithClock(clock(t0))
	trades, err := g.Propose(context.Background(), "test_live", cands)
	require.NoError(t, err)
	return trades
}

func TestGateway_ProposeNotifiesAndPersists(t *testing.T) {
	repo := newMemRepo()
	n := &fakeNotifier{}
	g := live.NewGateway(repo, n, 6*time.Hour).WithClock(clock(t0))

	trades, err := g.Propose(context.Background(), "test_live", []domain.TradeCandidate{candidate("512345678901", 0.40)})
	require.NoError(t, err, "a failing notifier does not fail the proposal")
	require.Len(t, trades, 1)

	tr := trades[0]
	assert.Equal(t, "LT-20260209-140509-51234567-test_live", tr.ID)
	assert.Equal(t, domain.TradePending, tr.Status)
	assert.InDelta(t, 0.40, tr.ProposedPrice, 1e-9)
	assert.Equal(t, 10.0, tr.SizeUSD)
	assert.True(t, tr.ExpiresAt.Equal(t0.Add(6*time.Hour)))
	assert.Len(t, repo.proposals, 1)
	assert.Equal(t, 1, n.proposals)
}

func TestGateway_IDsStayUnique(t *testing.T) {
	repo := newMemRepo()
	propose(t, repo, candidate("abcdefgh-1", 0.4))
	trades := propose(t, repo, candidate("abcdefgh-2", 0.4))
	assert.Equal(t, "LT-20260209-140509-abcdefgh-test_live-2", trades[0].ID)
}

func TestGateway_CleanupExpired(t *testing.T) {
	tests := []struct {
		name    string
		at      time.Time
		expired int
	}{
		{"before ttl", t0.Add(5*time.Hour + 59*time.Minute), 0},
		{"exactly at ttl", t0.Add(6 * time.Hour), 0},
		{"after ttl", t0.Add(6*time.Hour + time.Second), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemRepo()
			propose(t, repo, candidate("m1", 0.4))

			g := live.NewGateway(repo, nil, 6*time.Hour).WithClock(clock(tt.at))
			n, err := g.CleanupExpired(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.expired, n)

			ids, err := g.PendingIDs(context.Background())
			require.NoError(t, err)
			assert.Len(t, ids, 1-tt.expired)
			require.Len(t, repo.proposals, 1, "expired proposals are kept for audit")
			if tt.expired == 1 {
				assert.Equal(t, domain.TradeExpired, repo.proposals[0].Status)
			}
		})
	}
}

func TestGateway_PendingMarkets(t *testing.T) {
	repo := newMemRepo()
	propose(t, repo, candidate("m1", 0.4), candidate("m2", 0.4))
	g := live.NewGateway(repo, nil, 6*time.Hour).WithClock(clock(t0.Add(time.Hour)))

	markets, err := g.PendingMarkets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"m1": true, "m2": true}, markets)
}

func newExecutor(repo *memRepo, books *fakeBooks, venue *fakeVenue, n *fakeNotifier, cfg live.Config) *live.Executor {
	var notifier ports.Notifier
	if n != nil {
		notifier = n
	}
	ex := live.NewExecutor(repo, books, venue, notifier, cfg)
	return ex.WithClock(clock(t0.Add(time.Hour)))
}

func TestExecutor_KillSwitch(t *testing.T) {
	repo := newMemRepo()
	trades := propose(t, repo, candidate("m1", 0.4))
	ex := newExecutor(repo, &fakeBooks{}, &fakeVenue{balance: 100}, &fakeNotifier{}, live.Config{})

	_, err := ex.Execute(context.Background(), []string{trades[0].ID})
	require.ErrorIs(t, err, domain.ErrLiveDisabled)
	assert.Equal(t, domain.TradePending, repo.proposals[0].Status)
}

func TestExecutor_Executes(t *testing.T) {
	repo := newMemRepo()
	trades := propose(t, repo, candidate("m1", 0.65))
	venue := &fakeVenue{balance: 100}
	n := &fakeNotifier{}
	ex := newExecutor(repo, &fakeBooks{asks: map[string]float64{"tok-m1": 0.66}}, venue, n, live.Config{Enabled: true})

	results, err := ex.Execute(context.Background(), []string{trades[0].ID})
	require.NoError(t, err)
	require.Len(t, results, 1)

	res := results[0]
	assert.Equal(t, domain.ResultExecuted, res.Status)
	assert.InDelta(t, 0.67, res.LimitPrice, 1e-9)
	assert.InDelta(t, 14.93, res.Shares, 1e-9)
	assert.Equal(t, "0xordertok-m1", res.OrderID)

	require.Len(t, venue.placed, 1)
	assert.Equal(t, "BUY", venue.placed[0].Side)

	assert.Equal(t, domain.TradeExecuted, repo.proposals[0].Status)
	assert.Contains(t, repo.proposals[0].ExecutionResult, `"order_id":"0xordertok-m1"`)
	assert.Equal(t, 1, repo.live.TotalExecuted)
	require.Len(t, repo.live.Positions, 1)
	assert.InDelta(t, 0.67, repo.live.Positions[0].EntryPrice, 1e-9)
	assert.Equal(t, "test_live", repo.live.Positions[0].Strategy)
	require.Len(t, n.executions, 1)
}

func TestExecutor_RejectsPriceDivergence(t *testing.T) {
	repo := newMemRepo()
	trades := propose(t, repo, candidate("m1", 0.40))
	venue := &fakeVenue{balance: 100}
	ex := newExecutor(repo, &fakeBooks{asks: map[string]float64{"tok-m1": 0.45}}, venue, nil, live.Config{Enabled: true})

	results, err := ex.Execute(context.Background(), []string{trades[0].ID})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.ResultFailed, results[0].Status)
	assert.Contains(t, results[0].Reason, "divergence")
	assert.Contains(t, results[0].Reason, "expected 0.4000, got 0.4500")
	assert.Empty(t, venue.placed)
	assert.Equal(t, domain.TradeFailed, repo.proposals[0].Status)
}

func TestExecutor_DivergenceAtThresholdPasses(t *testing.T) {
	repo := newMemRepo()
	trades := propose(t, repo, candidate("m1", 0.40))
	ex := newExecutor(repo, &fakeBooks{asks: map[string]float64{"tok-m1": 0.43}}, &fakeVenue{balance: 100}, nil, live.Config{Enabled: true})

	results, err := ex.Execute(context.Background(), []string{trades[0].ID})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultExecuted, results[0].Status)
	// min(0.43+0.01, 0.40+0.02) = 0.42
	assert.InDelta(t, 0.42, results[0].LimitPrice, 1e-9)
}

func TestExecutor_ShadowKeepsProposalPending(t *testing.T) {
	repo := newMemRepo()
	trades := propose(t, repo, candidate("m1", 0.40))
	venue := &fakeVenue{balance: 100}
	ex := newExecutor(repo, &fakeBooks{asks: map[string]float64{"tok-m1": 0.41}}, venue, nil, live.Config{Shadow: true})

	results, err := ex.Execute(context.Background(), []string{trades[0].ID})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultShadow, results[0].Status)
	assert.InDelta(t, 0.42, results[0].LimitPrice, 1e-9)
	assert.Empty(t, venue.placed)
	assert.Equal(t, domain.TradePending, repo.proposals[0].Status)
	assert.Zero(t, repo.live.TotalExecuted)
}

func TestExecutor_VenueErrorIsTerminal(t *testing.T) {
	repo := newMemRepo()
	trades := propose(t, repo, candidate("m1", 0.40))
	venue := &fakeVenue{balance: 100, placeErr: errors.New("not enough allowance")}
	ex := newExecutor(repo, &fakeBooks{asks: map[string]float64{"tok-m1": 0.40}}, venue, nil, live.Config{Enabled: true})

	results, err := ex.Execute(context.Background(), []string{trades[0].ID})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultFailed, results[0].Status)
	assert.Contains(t, results[0].Reason, "not enough allowance")
	assert.Equal(t, domain.TradeFailed, repo.proposals[0].Status)

	// reenviar el mismo id no vuelve a tocar el venue
	venue.placeErr = nil
	results, err = ex.Execute(context.Background(), []string{trades[0].ID})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultSkipped, results[0].Status)
	assert.Equal(t, "status is failed, not pending", results[0].Reason)
	assert.Empty(t, venue.placed)
}

func TestExecutor_BatchCap(t *testing.T) {
	repo := newMemRepo()
	var cands []domain.TradeCandidate
	asks := map[string]float64{}
	for _, id := range []string{"m1", "m2", "m3", "m4", "m5", "m6", "m7"} {
		cands = append(cands, candidate(id, 0.40))
		asks["tok-"+id] = 0.40
	}
	trades := propose(t, repo, cands...)
	ids := make([]string, len(trades))
	for i, tr := range trades {
		ids[i] = tr.ID
	}
	venue := &fakeVenue{balance: 1000}
	ex := newExecutor(repo, &fakeBooks{asks: asks}, venue, nil, live.Config{Enabled: true})

	results, err := ex.Execute(context.Background(), ids)
	require.NoError(t, err)
	require.Len(t, results, 7)
	assert.Len(t, venue.placed, 5)
	for _, r := range results[5:] {
		assert.Equal(t, domain.ResultFailed, r.Status)
		assert.Contains(t, r.Reason, "batch cap reached")
	}
}

func TestExecutor_InsufficientBalance(t *testing.T) {
	repo := newMemRepo()
	trades := propose(t, repo, candidate("m1", 0.40))
	venue := &fakeVenue{balance: 4}
	ex := newExecutor(repo, &fakeBooks{asks: map[string]float64{"tok-m1": 0.40}}, venue, nil, live.Config{Enabled: true})

	results, err := ex.Execute(context.Background(), []string{trades[0].ID})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultFailed, results[0].Status)
	assert.Contains(t, results[0].Reason, "insufficient balance")
}

func TestExecutor_BalanceErrorProceeds(t *testing.T) {
	repo := newMemRepo()
	trades := propose(t, repo, candidate("m1", 0.40))
	venue := &fakeVenue{balanceErr: errors.New("no rpc")}
	ex := newExecutor(repo, &fakeBooks{asks: map[string]float64{"tok-m1": 0.40}}, venue, nil, live.Config{Enabled: true})

	results, err := ex.Execute(context.Background(), []string{trades[0].ID})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultExecuted, results[0].Status)
}

func TestExecutor_NoAsksAndUnknownIDs(t *testing.T) {
	repo := newMemRepo()
	trades := propose(t, repo, candidate("m1", 0.40))
	ex := newExecutor(repo, &fakeBooks{}, &fakeVenue{balance: 100}, nil, live.Config{Enabled: true})

	results, err := ex.Execute(context.Background(), []string{"LT-nope", trades[0].ID})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, domain.ResultSkipped, results[0].Status)
	assert.Equal(t, domain.ResultFailed, results[1].Status)
	assert.Contains(t, results[1].Reason, "No asks")
}

func TestExecutor_ExpiredProposalIsSkipped(t *testing.T) {
	repo := newMemRepo()
	trades := propose(t, repo, candidate("m1", 0.40))
	ex := live.NewExecutor(repo, &fakeBooks{asks: map[string]float64{"tok-m1": 0.40}}, &fakeVenue{balance: 100}, nil, live.Config{Enabled: true}).
		WithClock(clock(t0.Add(7 * time.Hour)))

	results, err := ex.Execute(context.Background(), []string{trades[0].ID})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultSkipped, results[0].Status)
	assert.Equal(t, domain.TradeExpired, repo.proposals[0].Status)
}

func TestExecutor_MarketAlreadyOpen(t *testing.T) {
	repo := newMemRepo()
	first := propose(t, repo, candidate("m1", 0.40))
	ex := newExecutor(repo, &fakeBooks{asks: map[string]float64{"tok-m1": 0.40}}, &fakeVenue{balance: 100}, nil, live.Config{Enabled: true})
	_, err := ex.Execute(context.Background(), []string{first[0].ID})
	require.NoError(t, err)

	second := live.NewGateway(repo, nil, 6*time.Hour).WithClock(clock(t0.Add(time.Minute)))
	trades, err := second.Propose(context.Background(), "other", []domain.TradeCandidate{candidate("m1", 0.40)})
	require.NoError(t, err)

	results, err := ex.Execute(context.Background(), []string{trades[0].ID})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultFailed, results[0].Status)
	assert.Contains(t, results[0].Reason, "already open")
}

func TestLimitOrder(t *testing.T) {
	tests := []struct {
		ask, proposed, size float64
		limit, shares       float64
	}{
		{0.66, 0.65, 10, 0.67, 14.93},
		{0.40, 0.40, 10, 0.41, 24.39},
		{0.995, 0.99, 10, 0.99, 10.10},
		{0.001, 0.001, 1, 0.01, 100},
	}
	for _, tt := range tests {
		limit, shares := live.LimitOrder(tt.ask, tt.proposed, tt.size)
		assert.InDelta(t, tt.limit, limit, 1e-9)
		assert.InDelta(t, tt.shares, shares, 1e-9)
	}
}

func TestGateway_Status(t *testing.T) {
	repo := newMemRepo()
	trades := propose(t, repo, candidate("m1", 0.40), candidate("m2", 0.40))
	ex := newExecutor(repo, &fakeBooks{asks: map[string]float64{"tok-m1": 0.40}}, &fakeVenue{balance: 100}, nil, live.Config{Enabled: true})
	_, err := ex.Execute(context.Background(), []string{trades[0].ID})
	require.NoError(t, err)
	repo.live.Positions[0].MarkToMarket(0.50)

	g := live.NewGateway(repo, nil, 6*time.Hour).WithClock(clock(t0.Add(2 * time.Hour)))
	st, err := g.Status(context.Background(), live.Config{Enabled: true})
	require.NoError(t, err)
	assert.True(t, st.Enabled)
	assert.Equal(t, []string{trades[1].ID}, st.PendingIDs)
	require.Len(t, st.Open, 1)
	assert.InDelta(t, 10.0, st.Exposure, 1e-9)
	assert.Equal(t, 1, st.Marked)
	// NO a 0.50: 24.39 shares × 0.50 − 10
	assert.InDelta(t, 24.39*0.5-10, st.UnrealizedPnL, 1e-9)
	assert.Equal(t, 1, st.TotalExecuted)
}

func TestExecutor_PrefetchesBooksInOneBatch(t *testing.T) {
	repo := newMemRepo()
	trades := propose(t, repo, candidate("m1", 0.40), candidate("m2", 0.40), candidate("m3", 0.40))
	books := &fakeBooks{asks: map[string]float64{"tok-m1": 0.40, "tok-m2": 0.41, "tok-m3": 0.40}}
	venue := &fakeVenue{balance: 100}
	ex := newExecutor(repo, books, venue, nil, live.Config{Enabled: true})

	results, err := ex.Execute(context.Background(), []string{trades[0].ID, trades[1].ID, trades[2].ID})
	require.NoError(t, err)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.Equal(t, domain.ResultExecuted, r.Status)
	}
	assert.Equal(t, 1, books.batchCalls)
	assert.Equal(t, 0, books.singleCalls)
	assert.Len(t, venue.placed, 3)
}

func TestExecutor_BookMissFallsBackToSingleFetch(t *testing.T) {
	repo := newMemRepo()
	trades := propose(t, repo, candidate("m1", 0.40), candidate("m2", 0.40))
	books := &fakeBooks{
		asks:      map[string]float64{"tok-m1": 0.40, "tok-m2": 0.40},
		batchMiss: map[string]bool{"tok-m2": true},
	}
	ex := newExecutor(repo, books, &fakeVenue{balance: 100}, nil, live.Config{Enabled: true})

	results, err := ex.Execute(context.Background(), []string{trades[0].ID, trades[1].ID})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultExecuted, results[0].Status)
	assert.Equal(t, domain.ResultExecuted, results[1].Status)
	assert.Equal(t, 1, books.batchCalls)
	assert.Equal(t, 1, books.singleCalls)
}

func TestExecutor_BatchBookErrorFallsBack(t *testing.T) {
	repo := newMemRepo()
	trades := propose(t, repo, candidate("m1", 0.40))
	books := &fakeBooks{asks: map[string]float64{"tok-m1": 0.40}, batchErr: errors.New("503")}
	ex := newExecutor(repo, books, &fakeVenue{balance: 100}, nil, live.Config{Enabled: true})

	results, err := ex.Execute(context.Background(), []string{trades[0].ID})
	require.NoError(t, err)
	assert.Equal(t, domain.ResultExecuted, results[0].Status)
	assert.Equal(t, 1, books.singleCalls)
}

func TestExecutor_PlacedOrderIsNeverResubmitted(t *testing.T) {
	cases := []struct {
		name     string
		failLeft int
	}{
		{"proposals save fails once", 1},
		{"proposals save always fails", -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			store := &memStore{docs: map[string][]byte{}}
			repo := storage.NewRepository(store)

			g := live.NewGateway(repo, nil, 6*time.Hour).WithClock(clock(t0))
			trades, err := g.Propose(ctx, "test_live", []domain.TradeCandidate{candidate("m1", 0.40)})
			require.NoError(t, err)

			store.failKey, store.failLeft = "pending_trades", tc.failLeft
			venue := &fakeVenue{balance: 100}
			ex := live.NewExecutor(repo, &fakeBooks{asks: map[string]float64{"tok-m1": 0.40}}, venue, nil, live.Config{Enabled: true}).
				WithClock(clock(t0.Add(time.Hour)))

			results, err := ex.Execute(ctx, []string{trades[0].ID})
			require.Error(t, err)
			assert.Equal(t, domain.ResultExecuted, results[0].Status)
			require.Len(t, venue.placed, 1)

			lp, err := repo.LoadLivePortfolio(ctx)
			require.NoError(t, err)
			require.Len(t, lp.Positions, 1)
			assert.Equal(t, "m1", lp.Positions[0].MarketID)

			results, _ = ex.Execute(ctx, []string{trades[0].ID})
			require.Len(t, results, 1)
			assert.NotEqual(t, domain.ResultExecuted, results[0].Status)
			assert.Len(t, venue.placed, 1)
			if tc.failLeft < 0 {
				assert.Equal(t, domain.ResultFailed, results[0].Status)
				assert.Contains(t, results[0].Reason, "already open")
			}
		})
	}
}
