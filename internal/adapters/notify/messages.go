package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/alejandrodnm/geobot/internal/domain"
)

// ProposalMessage formatea el aviso de una nueva propuesta live.
func ProposalMessage(t *domain.PendingTrade) (title, message string) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "ID: %s\n", t.ID)
	fmt.Fprintf(&sb, "Strategy: %s\n", t.Strategy)
	fmt.Fprintf(&sb, "Market: %s\n", domain.TruncateQuestion(t.Question, t.MarketID, 80))
	fmt.Fprintf(&sb, "Side: %s @ %.1f%%\n", t.BetSide, t.ProposedPrice*100)
	fmt.Fprintf(&sb, "Size: $%.2f\n", t.SizeUSD)
	fmt.Fprintf(&sb, "Cluster: %s\n", t.Cluster)
	fmt.Fprintf(&sb, "Expires: %s\n\n", t.ExpiresAt.UTC().Format("2006-01-02 15:04Z"))
	fmt.Fprintf(&sb, "Approve with: geobot live execute %s", t.ID)
	return "NEW TRADE PROPOSAL", sb.String()
}

// ExecutionMessage agrupa los resultados de un batch por estado.
func ExecutionMessage(results []domain.ExecutionResult) (title, message string) {
	var executed, failed, shadow, skipped []domain.ExecutionResult
	for _, r := range results {
		switch r.Status {
		case domain.ResultExecuted:
			executed = append(executed, r)
		case domain.ResultShadow:
			shadow = append(shadow, r)
		case domain.ResultSkipped:
			skipped = append(skipped, r)
		default:
			failed = append(failed, r)
		}
	}

	var sb strings.Builder
	if len(executed) > 0 {
		fmt.Fprintf(&sb, "%d executed:\n", len(executed))
		for _, r := range executed {
			fmt.Fprintf(&sb, "  • %s\n    %.2f shares @ %.2f\n", r.Question, r.Shares, r.LimitPrice)
		}
	}
	if len(failed) > 0 {
		fmt.Fprintf(&sb, "%d failed:\n", len(failed))
		for _, r := range failed {
			fmt.Fprintf(&sb, "  • %s: %s\n", r.TradeID, r.Reason)
		}
	}
	if len(shadow) > 0 {
		fmt.Fprintf(&sb, "%d shadow (dry run):\n", len(shadow))
		for _, r := range shadow {
			fmt.Fprintf(&sb, "  • %s @ %.2f\n", r.Question, r.LimitPrice)
		}
	}
	if len(skipped) > 0 {
		fmt.Fprintf(&sb, "%d skipped:\n", len(skipped))
		for _, r := range skipped {
			fmt.Fprintf(&sb, "  • %s: %s\n", r.TradeID, r.Reason)
		}
	}
	if sb.Len() == 0 {
		sb.WriteString("no trades processed\n")
	}
	return "TRADE EXECUTION REPORT", strings.TrimRight(sb.String(), "\n")
}

// SummaryMessage resume un ciclo, una línea por estrategia.
func SummaryMessage(s domain.CycleSummary) (title, message string) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Date: %s\n", s.StartedAt.Format("2006-01-02 15:04"))
	fmt.Fprintf(&sb, "Markets: %d (%d geo)\n\n", s.Markets, s.Geopolitical)
	for _, r := range s.Runs {
		if r.Failed() {
			fmt.Fprintf(&sb, "%s: ERROR %s\n", r.Strategy, r.Err)
			continue
		}
		switch r.Mode {
		case domain.ModeLive:
			fmt.Fprintf(&sb, "%s: %d proposed\n", r.Strategy, r.Proposed)
		default:
			fmt.Fprintf(&sb, "%s: $%.0f (%d pos, %d new)\n", r.Strategy, r.Bankroll, r.OpenCount, r.Opened)
		}
	}
	if s.LiveResolved > 0 {
		fmt.Fprintf(&sb, "\nLive resolved: %d\n", s.LiveResolved)
	}
	fmt.Fprintf(&sb, "\nDone in %s", s.Duration.Round(time.Second))
	return "Paper Trading Update", sb.String()
}
