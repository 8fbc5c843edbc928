package selection

import (
	"sort"

	"github.com/alejandrodnm/geobot/internal/domain"
)

// State es la foto de capital sobre la que trabaja el selector.
// Select no la modifica.
type State struct {
	Cash      float64
	Exposure  float64
	ByCluster map[string]float64
	Held      map[string]bool
}

// StateOf construye el State a partir de un portfolio. extraHeld añade
// mercados que cuentan como ocupados (propuestas pendientes, posiciones live).
func StateOf(p *domain.Portfolio, extraHeld ...map[string]bool) State {
	total, byCluster := p.Exposure()
	held := p.OpenMarketIDs()
	for _, extra := range extraHeld {
		for id := range extra {
			held[id] = true
		}
	}
	return State{
		Cash:      p.BankrollCurrent - total,
		Exposure:  total,
		ByCluster: byCluster,
		Held:      held,
	}
}

// Limits son los topes de la estrategia.
type Limits struct {
	Bankroll      float64
	MaxTotalPct   float64
	MaxClusterPct float64
	MinCashPct    float64
	BetSize       float64 // si el candidato no trae tamaño propio
}

// LimitsOf extrae los topes de una estrategia.
func LimitsOf(s domain.Strategy) Limits {
	return Limits{
		Bankroll:      s.Bankroll,
		MaxTotalPct:   s.MaxTotalExposure,
		MaxClusterPct: s.MaxClusterExpo,
		MinCashPct:    s.MinCashPct,
		BetSize:       s.BetSize,
	}
}

// Select elige candidatos de forma greedy y determinista; no es un óptimo global.
//
// Con poca caja (cash/bankroll < MinCashPct) prioriza los que cierran antes
// para reciclar capital; si no, los de más volumen. La ordenación es estable.
// El recorrido para del todo cuando la caja simulada no cubre la apuesta y
// salta (sin parar) los que romperían el tope total o de cluster.
func Select(candidates []domain.TradeCandidate, st State, lim Limits) []domain.TradeCandidate {
	if len(candidates) == 0 || lim.Bankroll <= 0 {
		return nil
	}

	sorted := make([]domain.TradeCandidate, len(candidates))
	copy(sorted, candidates)
	if st.Cash/lim.Bankroll < lim.MinCashPct {
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].DaysToClose < sorted[j].DaysToClose })
	} else {
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Volume > sorted[j].Volume })
	}

	cash := st.Cash
	total := st.Exposure
	byCluster := make(map[string]float64, len(st.ByCluster))
	for k, v := range st.ByCluster {
		byCluster[k] = v
	}
	held := make(map[string]bool, len(st.Held))
	for k := range st.Held {
		held[k] = true
	}

	maxTotal := lim.Bankroll * lim.MaxTotalPct
	maxCluster := lim.Bankroll * lim.MaxClusterPct

	var out []domain.TradeCandidate
	for _, c := range sorted {
		if held[c.MarketID] {
			continue
		}
		size := c.BetSize
		if size <= 0 {
			size = lim.BetSize
		}
		if cash < size {
			break
		}
		if total+size > maxTotal+1e-9 {
			continue
		}
		if byCluster[c.Cluster]+size > maxCluster+1e-9 {
			continue
		}

		c.BetSize = size
		out = append(out, c)
		cash -= size
		total += size
		byCluster[c.Cluster] += size
		held[c.MarketID] = true
	}
	return out
}
