package selection

import (
	"context"
	"log/slog"
	"time"

	"github.com/alejandrodnm/geobot/internal/domain"
	"github.com/alejandrodnm/geobot/internal/ports"
)

// Reject es el motivo por el que un mercado no llega a candidato.
// No es un error: el evaluador nunca falla.
type Reject string

const (
	RejectNotGeo      Reject = "not_geopolitical"
	RejectNoDates     Reject = "missing_dates"
	RejectTooNew      Reject = "too_new"
	RejectTooLate     Reject = "too_close_to_end"
	RejectDeadline    Reject = "deadline"
	RejectVolume      Reject = "volume"
	RejectNoPrice     Reject = "no_price"
	RejectPriceRange  Reject = "price_out_of_range"
	RejectNoToken     Reject = "no_token"
	RejectClusterRule Reject = "cluster_filter"
)

const questionMaxLen = 100

// Evaluator convierte un mercado + estrategia en candidato o lo descarta.
type Evaluator struct {
	classifier ports.Classifier
}

// NewEvaluator crea el evaluador con el clasificador dado.
func NewEvaluator(classifier ports.Classifier) *Evaluator {
	return &Evaluator{classifier: classifier}
}

// Evaluate aplica el pipeline en orden y corta en el primer fallo.
// Devuelve Reject vacío cuando el mercado es candidato.
func (e *Evaluator) Evaluate(m domain.Market, s domain.Strategy, now time.Time) (domain.TradeCandidate, Reject) {
	if !e.classifier.IsGeopolitical(m.Question) {
		return domain.TradeCandidate{}, RejectNotGeo
	}

	start, end := m.StartTime(), m.CloseTime()
	if start.IsZero() || end.IsZero() {
		return domain.TradeCandidate{}, RejectNoDates
	}

	buffer := time.Duration(s.BufferHours * float64(time.Hour))
	if now.Sub(start) < buffer {
		return domain.TradeCandidate{}, RejectTooNew
	}
	if end.Sub(now) < buffer {
		return domain.TradeCandidate{}, RejectTooLate
	}

	days := end.Sub(now).Hours() / 24
	if s.DeadlineMinDays > 0 && days < s.DeadlineMinDays {
		return domain.TradeCandidate{}, RejectDeadline
	}
	if s.DeadlineMaxDays > 0 && days > s.DeadlineMaxDays {
		return domain.TradeCandidate{}, RejectDeadline
	}

	if m.Volume < s.MinVolume || (s.MaxVolume > 0 && m.Volume > s.MaxVolume) {
		return domain.TradeCandidate{}, RejectVolume
	}

	yes, ok := m.YesPrice()
	if !ok {
		return domain.TradeCandidate{}, RejectNoPrice
	}
	lo, hi, ok := s.PriceBounds(m.Volume)
	if !ok || yes < lo || yes > hi {
		return domain.TradeCandidate{}, RejectPriceRange
	}

	token, ok := m.TokenIDs()[s.BetSide]
	if !ok || token == "" {
		return domain.TradeCandidate{}, RejectNoToken
	}

	cluster := e.classifier.Cluster(m.Question)
	if !s.AllowsCluster(cluster) {
		return domain.TradeCandidate{}, RejectClusterRule
	}

	return domain.TradeCandidate{
		MarketID:    m.ID,
		Question:    domain.TruncateQuestion(m.Question, m.ID, questionMaxLen),
		TokenID:     token,
		BetSide:     s.BetSide,
		PriceYes:    yes,
		PriceEntry:  domain.EntryPrice(s.BetSide, yes),
		Volume:      m.Volume,
		Cluster:     cluster,
		DaysToClose: days,
		EndDate:     end,
		BetSize:     s.BetSizeFor(m.Volume),
	}, ""
}

// Candidates evalúa todos los mercados y devuelve los que pasan, en el
// orden de entrada. Los descartes solo se cuentan a nivel debug.
func (e *Evaluator) Candidates(markets []domain.Market, s domain.Strategy, now time.Time) []domain.TradeCandidate {
	out := make([]domain.TradeCandidate, 0)
	rejects := make(map[Reject]int)
	for _, m := range markets {
		c, reason := e.Evaluate(m, s, now)
		if reason != "" {
			rejects[reason]++
			continue
		}
		out = append(out, c)
	}

	if slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		args := []any{"strategy", s.Name, "markets", len(markets), "candidates", len(out)}
		for r, n := range rejects {
			args = append(args, string(r), n)
		}
		slog.Debug("selection: evaluated", args...)
	}
	return out
}
