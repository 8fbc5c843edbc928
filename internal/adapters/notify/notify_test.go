package notify_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/geobot/internal/adapters/notify"
	"github.com/alejandrodnm/geobot/internal/domain"
)

type recordingSender struct {
	name string
	err  error
	sent []string
}

func (s *recordingSender) Send(_ context.Context, title, _ string) error {
	s.sent = append(s.sent, title)
	return s.err
}

func (s *recordingSender) Name() string { return s.name }

var now = time.Date(2026, 2, 9, 14, 5, 9, 0, time.UTC)

func proposal() *domain.PendingTrade {
	c := domain.TradeCandidate{
		MarketID:   "512345678901",
		Question:   "Will Israel and Hamas agree to a ceasefire by March 31?",
		TokenID:    "tok-no",
		BetSide:    domain.SideNo,
		PriceYes:   0.35,
		PriceEntry: 0.65,
		Cluster:    "middle_east",
		EndDate:    now.Add(40 * 24 * time.Hour),
	}
	return domain.NewPendingTrade(c, "test_live", 10, now, 6*time.Hour)
}

func TestDispatcher_FansOutAndCollectsErrors(t *testing.T) {
	ok := &recordingSender{name: "ok"}
	bad := &recordingSender{name: "bad", err: errors.New("boom")}
	d := notify.NewDispatcher([]notify.Sender{bad, ok}, nil)

	err := d.Notify(context.Background(), notify.EventSummary, "title", "msg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad: boom")
	assert.Equal(t, []string{"title"}, ok.sent, "a failing sender does not block the others")
}

func TestDispatcher_FiltersEvents(t *testing.T) {
	s := &recordingSender{name: "s"}
	d := notify.NewDispatcher([]notify.Sender{s}, []string{notify.EventProposal})

	require.NoError(t, d.Notify(context.Background(), notify.EventSummary, "summary", ""))
	require.NoError(t, d.Notify(context.Background(), notify.EventProposal, "proposal", ""))
	assert.Equal(t, []string{"proposal"}, s.sent)
}

func TestTelegram_Send(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	tg := notify.NewTelegram("TOKEN", "42").WithBaseURL(srv.URL)
	require.NoError(t, tg.Send(context.Background(), "Hello", "world"))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "*Hello*\nworld", got["text"])
}

func TestTelegram_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "chat not found", http.StatusBadRequest)
	}))
	defer srv.Close()

	err := notify.NewTelegram("TOKEN", "42").WithBaseURL(srv.URL).Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestTelegram_MissingCredentials(t *testing.T) {
	err := notify.NewTelegram("", "").Send(context.Background(), "t", "m")
	require.Error(t, err)
}

func TestProposalMessage(t *testing.T) {
	title, msg := notify.ProposalMessage(proposal())
	assert.Equal(t, "NEW TRADE PROPOSAL", title)
	assert.Contains(t, msg, "LT-20260209-140509-51234567")
	assert.Contains(t, msg, "NO @ 65.0%")
	assert.Contains(t, msg, "$10.00")
	assert.Contains(t, msg, "2026-02-09 20:05Z")
}

func TestExecutionMessage_GroupsByStatus(t *testing.T) {
	_, msg := notify.ExecutionMessage([]domain.ExecutionResult{
		{TradeID: "LT-1", Question: "Q1", Status: domain.ResultExecuted, LimitPrice: 0.66, Shares: 15.15},
		{TradeID: "LT-2", Status: domain.ResultFailed, Reason: "insufficient balance"},
		{TradeID: "LT-3", Question: "Q3", Status: domain.ResultShadow, LimitPrice: 0.5},
	})
	assert.Contains(t, msg, "1 executed")
	assert.Contains(t, msg, "15.15 shares @ 0.66")
	assert.Contains(t, msg, "LT-2: insufficient balance")
	assert.Contains(t, msg, "1 shadow")
}

func TestSummaryMessage(t *testing.T) {
	_, msg := notify.SummaryMessage(domain.CycleSummary{
		StartedAt: now,
		Markets:   800,
		Runs: []domain.StrategyRun{
			{Strategy: "base", Mode: domain.ModePaper, Bankroll: 1512, OpenCount: 7, Opened: 2},
			{Strategy: "t3", Err: "boom"},
			{Strategy: "test_live", Mode: domain.ModeLive, Proposed: 1},
		},
	})
	assert.Contains(t, msg, "base: $1512 (7 pos, 2 new)")
	assert.Contains(t, msg, "t3: ERROR boom")
	assert.Contains(t, msg, "test_live: 1 proposed")
}

func TestConsole_Reports(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf)

	c.PrintSummary(domain.CycleSummary{
		StartedAt: now,
		Runs:      []domain.StrategyRun{{Strategy: "balanced", Mode: domain.ModePaper, Opened: 3}},
	})
	assert.Contains(t, buf.String(), "balanced")

	buf.Reset()
	c.PrintProposals([]*domain.PendingTrade{proposal()}, now.Add(time.Hour))
	assert.Contains(t, buf.String(), "LT-20260209-140509-51234567")
	assert.Contains(t, buf.String(), "5h0m0s")

	buf.Reset()
	c.PrintProposals(nil, now)
	assert.Contains(t, buf.String(), "No pending proposals")

	buf.Reset()
	c.PrintLiveStatus(domain.LiveStatus{Shadow: true, PendingIDs: []string{"LT-1"}})
	assert.Contains(t, buf.String(), "SHADOW")
	assert.Contains(t, buf.String(), "LT-1")
	assert.Contains(t, buf.String(), "n/a")
}

func TestDispatcher_TypedEvents(t *testing.T) {
	s := &recordingSender{name: "s"}
	d := notify.NewDispatcher([]notify.Sender{s}, nil)
	ctx := context.Background()

	require.NoError(t, d.NotifyProposal(ctx, proposal()))
	require.NoError(t, d.NotifyExecution(ctx, nil))
	require.NoError(t, d.NotifyExecution(ctx, []domain.ExecutionResult{{TradeID: "LT-1", Status: domain.ResultShadow}}))
	require.NoError(t, d.NotifySummary(ctx, domain.CycleSummary{}))
	assert.Equal(t, []string{"NEW TRADE PROPOSAL", "TRADE EXECUTION REPORT"}, s.sent)
}
