package scanner

// concurrent.go: worker pool para clasificar los mercados del ciclo.
// El clasificador compila sus regex una vez y es seguro en paralelo; con
// 800+ mercados por ciclo clasificar en serie domina el tiempo de CPU.

import (
	"context"
	"log/slog"
	"runtime"
	"sync"

	"github.com/alejandrodnm/geobot/internal/domain"
	"github.com/alejandrodnm/geobot/internal/ports"
)

// label es la clasificación cacheada de una pregunta.
type label struct {
	geo     bool
	cluster string
}

// classifyConcurrent clasifica cada pregunta distinta una sola vez.
// Si workers <= 0 usa runtime.NumCPU() × 2.
func classifyConcurrent(
	ctx context.Context,
	classifier ports.Classifier,
	markets []domain.Market,
	workers int,
) map[string]label {
	if workers <= 0 {
		workers = runtime.NumCPU() * 2
	}

	type result struct {
		question string
		label    label
	}

	workCh := make(chan string, len(markets))
	resultCh := make(chan result, len(markets))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for q := range workCh {
				if ctx.Err() != nil {
					continue
				}
				lb := label{geo: classifier.IsGeopolitical(q)}
				if lb.geo {
					lb.cluster = classifier.Cluster(q)
				}
				resultCh <- result{question: q, label: lb}
			}
		}()
	}

	seen := make(map[string]bool, len(markets))
	for _, m := range markets {
		if seen[m.Question] {
			continue
		}
		seen[m.Question] = true
		workCh <- m.Question
	}
	close(workCh)

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	labels := make(map[string]label, len(seen))
	for r := range resultCh {
		labels[r.question] = r.label
	}

	slog.Debug("scanner: classification complete",
		"questions", len(seen),
		"classified", len(labels),
		"workers", workers,
	)
	return labels
}
