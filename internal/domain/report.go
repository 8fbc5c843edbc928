package domain

import "time"

// StrategyRun resume lo que hizo una estrategia en un ciclo.
type StrategyRun struct {
	Strategy   string
	Mode       Mode
	Candidates int // pasaron el evaluador
	Selected   int // aceptados por el selector
	Opened     int // posiciones paper abiertas
	Proposed   int // propuestas live creadas
	Resolved   int
	Marked     int
	Bankroll   float64
	Cash       float64
	Exposure   float64
	OpenCount  int
	Wins       int
	Losses     int
	TotalPnL   float64
	Err        string
}

// Failed indica si la estrategia terminó con error.
func (r StrategyRun) Failed() bool { return r.Err != "" }

// CycleSummary agrega el resultado de un ciclo completo.
type CycleSummary struct {
	StartedAt    time.Time
	Duration     time.Duration
	Markets      int // mercados abiertos recibidos
	Geopolitical int
	Runs         []StrategyRun
	LiveResolved int
	LiveMarked   int
}

// Failures cuenta las estrategias que fallaron.
func (s CycleSummary) Failures() int {
	n := 0
	for _, r := range s.Runs {
		if r.Failed() {
			n++
		}
	}
	return n
}

// TotalOpened suma posiciones abiertas y propuestas creadas.
func (s CycleSummary) TotalOpened() (opened, proposed int) {
	for _, r := range s.Runs {
		opened += r.Opened
		proposed += r.Proposed
	}
	return opened, proposed
}

// LiveStatus es la foto del estado live para `live status`.
type LiveStatus struct {
	Enabled       bool
	Shadow        bool
	PendingIDs    []string
	Open          []*Position
	Exposure      float64
	UnrealizedPnL float64
	Marked        int // posiciones con precio actual
	RealizedPnL   float64
	Wins          int
	Losses        int
	TotalExecuted int
}
