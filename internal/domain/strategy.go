package domain

// Mode decide qué hace el runner con los candidatos seleccionados.
type Mode string

const (
	ModePaper Mode = "paper"
	ModeLive  Mode = "live"
)

// Sizing selects how the bet size is derived for a candidate.
type Sizing string

const (
	SizingFixed    Sizing = "fixed"
	SizingAdaptive Sizing = "adaptive"
)

// Zone is a YES price band applied to markets whose volume falls in
// [MinVolume, MaxVolume). MaxVolume 0 means unbounded.
type Zone struct {
	MinVolume float64
	MaxVolume float64
	PriceMin  float64
	PriceMax  float64
}

func (z Zone) contains(volume float64) bool {
	if volume < z.MinVolume {
		return false
	}
	return z.MaxVolume <= 0 || volume < z.MaxVolume
}

// Strategy es la configuración canónica de una estrategia, ya normalizada.
type Strategy struct {
	Name        string
	Description string
	Mode        Mode

	BetSide  Side
	PriceMin float64 // sobre el precio YES, inclusive
	PriceMax float64
	Zones    []Zone // si hay zonas, sustituyen a PriceMin/PriceMax

	MinVolume float64
	MaxVolume float64 // 0 = sin límite

	BufferHours     float64
	DeadlineMinDays float64 // 0 = sin filtro
	DeadlineMaxDays float64
	ClusterFilter   []string

	Bankroll         float64
	BetSize          float64
	Sizing           Sizing
	EntryCostRate    float64
	MinCashPct       float64
	MaxTotalExposure float64 // fracción del bankroll
	MaxClusterExpo   float64
}

// PriceBounds devuelve el rango de precio YES aplicable al volumen dado.
// ok=false cuando hay zonas y el volumen cae en un hueco entre ellas.
func (s Strategy) PriceBounds(volume float64) (lo, hi float64, ok bool) {
	if len(s.Zones) == 0 {
		return s.PriceMin, s.PriceMax, true
	}
	for _, z := range s.Zones {
		if z.contains(volume) {
			return z.PriceMin, z.PriceMax, true
		}
	}
	return 0, 0, false
}

// BetSizeFor devuelve el tamaño de apuesta para un mercado con ese volumen.
func (s Strategy) BetSizeFor(volume float64) float64 {
	if s.Sizing != SizingAdaptive {
		return s.BetSize
	}
	switch {
	case volume < 5_000:
		return 5
	case volume < 50_000:
		return 10
	default:
		return 25
	}
}

// AllowsCluster reports whether the cluster passes the strategy filter.
func (s Strategy) AllowsCluster(cluster string) bool {
	if len(s.ClusterFilter) == 0 {
		return true
	}
	for _, c := range s.ClusterFilter {
		if c == cluster {
			return true
		}
	}
	return false
}

// IsLive reports whether selected candidates become proposals instead of paper positions.
func (s Strategy) IsLive() bool {
	return s.Mode == ModeLive
}
