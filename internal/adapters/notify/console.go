package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/geobot/internal/domain"
)

// Console imprime reportes en tablas y actúa también como Sender.
type Console struct {
	out io.Writer
}

// NewConsole escribe a stdout.
func NewConsole() *Console {
	return &Console{out: os.Stdout}
}

// NewConsoleWriter escribe al writer dado (tests).
func NewConsoleWriter(w io.Writer) *Console {
	return &Console{out: w}
}

// Send imprime la notificación con una cabecera.
func (c *Console) Send(_ context.Context, title, message string) error {
	fmt.Fprintf(c.out, "\n── %s ──\n%s\n", title, message)
	return nil
}

// Name identifica al sender.
func (c *Console) Name() string { return "console" }

// PrintSummary imprime el resultado del ciclo, una fila por estrategia.
func (c *Console) PrintSummary(s domain.CycleSummary) {
	fmt.Fprintf(c.out, "\n[%s] %d markets | %d geo | %d strategies | %d failed | %s\n",
		s.StartedAt.Format("15:04:05"), s.Markets, s.Geopolitical, len(s.Runs), s.Failures(),
		s.Duration.Round(time.Millisecond))

	if len(s.Runs) == 0 {
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Strategy", "Mode", "Cand", "Sel", "New", "Resolved", "Open", "Bankroll", "Cash", "Expo", "W/L", "PnL", "Status")
	for _, r := range s.Runs {
		status := "ok"
		if r.Failed() {
			status = "ERROR: " + compact(r.Err, 40)
		}
		newCount := r.Opened
		if r.Mode == domain.ModeLive {
			newCount = r.Proposed
		}
		table.Append(
			r.Strategy,
			string(r.Mode),
			fmt.Sprintf("%d", r.Candidates),
			fmt.Sprintf("%d", r.Selected),
			fmt.Sprintf("%d", newCount),
			fmt.Sprintf("%d", r.Resolved),
			fmt.Sprintf("%d", r.OpenCount),
			fmt.Sprintf("$%.2f", r.Bankroll),
			fmt.Sprintf("$%.2f", r.Cash),
			fmt.Sprintf("$%.2f", r.Exposure),
			fmt.Sprintf("%d/%d", r.Wins, r.Losses),
			fmt.Sprintf("%+.2f", r.TotalPnL),
			status,
		)
	}
	table.Render()

	if s.LiveResolved > 0 || s.LiveMarked > 0 {
		fmt.Fprintf(c.out, "  live: %d resolved, %d marked\n", s.LiveResolved, s.LiveMarked)
	}
}

// PrintLiveStatus imprime el estado del trading real.
func (c *Console) PrintLiveStatus(st domain.LiveStatus) {
	mode := "DISABLED"
	switch {
	case st.Enabled:
		mode = "ENABLED"
	case st.Shadow:
		mode = "SHADOW (dry run)"
	}
	if st.Enabled && st.Shadow {
		mode = "ENABLED + SHADOW (dry run)"
	}

	fmt.Fprintf(c.out, "\n══ LIVE STATUS ══\n")
	fmt.Fprintf(c.out, "  Mode:           %s\n", mode)
	fmt.Fprintf(c.out, "  Pending:        %d", len(st.PendingIDs))
	if len(st.PendingIDs) > 0 {
		fmt.Fprintf(c.out, " (%s)", strings.Join(st.PendingIDs, ", "))
	}
	fmt.Fprintln(c.out)
	fmt.Fprintf(c.out, "  Open positions: %d\n", len(st.Open))
	fmt.Fprintf(c.out, "  Exposure:       $%.2f\n", st.Exposure)
	if st.Marked > 0 {
		fmt.Fprintf(c.out, "  Unrealized PnL: %+.2f (%d marked)\n", st.UnrealizedPnL, st.Marked)
	} else {
		fmt.Fprintf(c.out, "  Unrealized PnL: n/a\n")
	}
	fmt.Fprintf(c.out, "  Realized PnL:   %+.2f\n", st.RealizedPnL)
	fmt.Fprintf(c.out, "  Record:         %dW / %dL\n", st.Wins, st.Losses)
	fmt.Fprintf(c.out, "  Executed:       %d\n", st.TotalExecuted)

	if len(st.Open) > 0 {
		c.PrintPositions(st.Open)
	}
}

// PrintPositions lista posiciones con su precio actual si se conoce.
func (c *Console) PrintPositions(positions []*domain.Position) {
	table := tablewriter.NewWriter(c.out)
	table.Header("Market", "Strategy", "Side", "Entry", "Size", "Shares", "Now", "uPnL", "Cluster")
	for _, p := range positions {
		now, upnl := "-", "-"
		if p.CurrentPrice != nil {
			now = fmt.Sprintf("%.3f", *p.CurrentPrice)
		}
		if v, ok := p.UnrealizedPnL(); ok {
			upnl = fmt.Sprintf("%+.2f", v)
		}
		table.Append(
			domain.TruncateQuestion(p.Question, p.MarketID, 45),
			p.Strategy,
			string(p.BetSide),
			fmt.Sprintf("%.3f", p.EntryPrice),
			fmt.Sprintf("$%.2f", p.SizeUSD),
			fmt.Sprintf("%.2f", p.Shares),
			now,
			upnl,
			p.Cluster,
		)
	}
	table.Render()
}

// PrintProposals lista propuestas con el tiempo que les queda.
func (c *Console) PrintProposals(trades []*domain.PendingTrade, now time.Time) {
	if len(trades) == 0 {
		fmt.Fprintln(c.out, "  No pending proposals.")
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("ID", "Strategy", "Market", "Side", "Price", "Size", "Status", "Expires in")
	for _, t := range trades {
		left := "expired"
		if !t.Expired(now) {
			left = t.ExpiresAt.Sub(now).Truncate(time.Minute).String()
		}
		table.Append(
			t.ID,
			t.Strategy,
			domain.TruncateQuestion(t.Question, t.MarketID, 40),
			string(t.BetSide),
			fmt.Sprintf("%.3f", t.ProposedPrice),
			fmt.Sprintf("$%.2f", t.SizeUSD),
			string(t.Status),
			left,
		)
	}
	table.Render()
}

// PrintExecution imprime el resultado de un batch de ejecución.
func (c *Console) PrintExecution(results []domain.ExecutionResult) {
	if len(results) == 0 {
		fmt.Fprintln(c.out, "  Nothing to execute.")
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("Trade", "Status", "Limit", "Shares", "Size", "Order", "Reason")
	for _, r := range results {
		limit, shares := "-", "-"
		if r.LimitPrice > 0 {
			limit = fmt.Sprintf("%.2f", r.LimitPrice)
			shares = fmt.Sprintf("%.2f", r.Shares)
		}
		table.Append(
			r.TradeID,
			string(r.Status),
			limit,
			shares,
			fmt.Sprintf("$%.2f", r.SizeUSD),
			r.OrderID,
			compact(r.Reason, 60),
		)
	}
	table.Render()
}

// PrintStrategies lista el catálogo de estrategias.
func (c *Console) PrintStrategies(strategies []domain.Strategy) {
	table := tablewriter.NewWriter(c.out)
	table.Header("Name", "Mode", "Side", "YES price", "Volume", "Bet", "Bankroll", "Description")
	for _, s := range strategies {
		price := fmt.Sprintf("%.2f-%.2f", s.PriceMin, s.PriceMax)
		if len(s.Zones) > 0 {
			price = fmt.Sprintf("%d zones", len(s.Zones))
		}
		vol := fmt.Sprintf(">=%s", shortUSD(s.MinVolume))
		if s.MaxVolume > 0 {
			vol = fmt.Sprintf("%s-%s", shortUSD(s.MinVolume), shortUSD(s.MaxVolume))
		}
		bet := fmt.Sprintf("$%.0f", s.BetSize)
		if s.Sizing == domain.SizingAdaptive {
			bet = "adaptive"
		}
		table.Append(
			s.Name,
			string(s.Mode),
			string(s.BetSide),
			price,
			vol,
			bet,
			fmt.Sprintf("$%.0f", s.Bankroll),
			compact(s.Description, 50),
		)
	}
	table.Render()
}

func shortUSD(v float64) string {
	switch {
	case v >= 1_000_000:
		return fmt.Sprintf("$%.1fM", v/1_000_000)
	case v >= 1_000:
		return fmt.Sprintf("$%.0fk", v/1_000)
	default:
		return fmt.Sprintf("$%.0f", v)
	}
}

// compact corta s a n runas añadiendo "…".
func compact(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
