package scanner

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/geobot/internal/domain"
	"github.com/alejandrodnm/geobot/internal/ports"
)

// Scanner hace un único fetch de mercados por ciclo y los clasifica.
// Todas las estrategias del ciclo evalúan el mismo Snapshot.
type Scanner struct {
	markets    ports.MarketProvider
	classifier ports.Classifier
	workers    int
	now        func() time.Time
}

// New crea un Scanner. workers <= 0 usa NumCPU×2.
func New(markets ports.MarketProvider, classifier ports.Classifier, workers int) *Scanner {
	return &Scanner{markets: markets, classifier: classifier, workers: workers, now: time.Now}
}

// Scan descarga los mercados abiertos y construye el snapshot del ciclo.
func (s *Scanner) Scan(ctx context.Context) (*Snapshot, error) {
	start := s.now()
	markets, err := s.markets.FetchOpenMarkets(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanner.Scan: fetch markets: %w", err)
	}

	snap := NewSnapshot(markets, s.classifier, start)
	snap.labels = classifyConcurrent(ctx, s.classifier, markets, s.workers)

	slog.Info("scanner: snapshot ready",
		"markets", len(markets),
		"geopolitical", snap.Geopolitical(),
		"duration", time.Since(start).Round(time.Millisecond),
	)
	return snap, nil
}

// Snapshot son los mercados de un ciclo, indexados por id, con la
// clasificación ya calculada. Implementa ports.Classifier.
type Snapshot struct {
	FetchedAt time.Time
	Markets   []domain.Market

	byID       map[string]domain.Market
	labels     map[string]label
	classifier ports.Classifier
}

// NewSnapshot indexa los mercados. Sin labels precalculadas delega en classifier.
func NewSnapshot(markets []domain.Market, classifier ports.Classifier, fetchedAt time.Time) *Snapshot {
	byID := make(map[string]domain.Market, len(markets)*2)
	for _, m := range markets {
		if m.ID != "" {
			byID[m.ID] = m
		}
		if m.ConditionID != "" {
			if _, dup := byID[m.ConditionID]; !dup {
				byID[m.ConditionID] = m
			}
		}
	}
	return &Snapshot{
		FetchedAt:  fetchedAt,
		Markets:    markets,
		byID:       byID,
		labels:     map[string]label{},
		classifier: classifier,
	}
}

// Lookup busca un mercado por id o condition id.
func (s *Snapshot) Lookup(id string) (domain.Market, bool) {
	m, ok := s.byID[id]
	return m, ok
}

// IsGeopolitical usa la clasificación cacheada.
func (s *Snapshot) IsGeopolitical(question string) bool {
	if lb, ok := s.labels[question]; ok {
		return lb.geo
	}
	return s.classifier.IsGeopolitical(question)
}

// Cluster usa la clasificación cacheada.
func (s *Snapshot) Cluster(question string) string {
	if lb, ok := s.labels[question]; ok && lb.geo {
		return lb.cluster
	}
	return s.classifier.Cluster(question)
}

// Geopolitical cuenta los mercados clasificados como geopolíticos.
func (s *Snapshot) Geopolitical() int {
	n := 0
	for _, m := range s.Markets {
		if s.labels[m.Question].geo {
			n++
		}
	}
	return n
}
