package config

import (
	"strings"

	"github.com/alejandrodnm/geobot/internal/domain"
)

// defaults son los parámetros globales del bot; cualquier estrategia parte de aquí.
func defaults() domain.Strategy {
	return domain.Strategy{
		Mode:             domain.ModePaper,
		BetSide:          domain.SideNo,
		PriceMin:         0.20,
		PriceMax:         0.60,
		MinVolume:        10_000,
		BufferHours:      48,
		Bankroll:         1500,
		BetSize:          25,
		Sizing:           domain.SizingFixed,
		EntryCostRate:    0.03,
		MinCashPct:       0.30,
		MaxTotalExposure: 0.60,
		MaxClusterExpo:   0.20,
	}
}

type option func(*domain.Strategy)

func band(lo, hi float64) option {
	return func(s *domain.Strategy) { s.PriceMin, s.PriceMax = lo, hi }
}

// zones fija las bandas y deja PriceMin/PriceMax como envolvente.
func zones(zs ...domain.Zone) option {
	return func(s *domain.Strategy) {
		s.Zones = zs
		s.PriceMin, s.PriceMax = 1, 0
		for _, z := range zs {
			s.PriceMin = min(s.PriceMin, z.PriceMin)
			s.PriceMax = max(s.PriceMax, z.PriceMax)
		}
	}
}

func zone(volMin, volMax, lo, hi float64) domain.Zone {
	return domain.Zone{MinVolume: volMin, MaxVolume: volMax, PriceMin: lo, PriceMax: hi}
}

func adaptive() option { return func(s *domain.Strategy) { s.Sizing = domain.SizingAdaptive } }

func bet(size float64) option { return func(s *domain.Strategy) { s.BetSize = size } }

func volume(lo, hi float64) option {
	return func(s *domain.Strategy) { s.MinVolume, s.MaxVolume = lo, hi }
}

func deadlineMax(days float64) option { return func(s *domain.Strategy) { s.DeadlineMaxDays = days } }

// base construye una de las cuatro estrategias originales.
func base(name, desc string, lo, hi float64, opts ...option) domain.Strategy {
	s := defaults()
	s.Name, s.Description = name, desc
	s.Bankroll = 5000
	s.PriceMin, s.PriceMax = lo, hi
	s.DeadlineMinDays = 3
	for _, o := range opts {
		o(&s)
	}
	return s
}

// tiered construye una estrategia de los tiers de validación: exposición
// alta para recoger datos y coste de entrada de orden límite.
func tiered(name, desc string, bankroll float64, opts ...option) domain.Strategy {
	s := defaults()
	s.Name, s.Description = name, desc
	s.Bankroll = bankroll
	s.MinVolume = 0
	s.EntryCostRate = 0.005
	s.MaxTotalExposure = 0.90
	s.MaxClusterExpo = 0.30
	s.DeadlineMinDays = 3
	for _, o := range opts {
		o(&s)
	}
	return s
}

var (
	threeBucket = zones(
		zone(0, 25_000, 0.30, 0.60),
		zone(25_000, 250_000, 0.40, 0.70),
		zone(250_000, 0, 0.50, 0.80),
	)
	twoBucketSkipLarge = zones(
		zone(0, 50_000, 0.30, 0.65),
		zone(50_000, 250_000, 0.40, 0.75),
	)
)

func builtinStrategies() []domain.Strategy {
	testLive := base("test_live", "Micro $1 trades to validate the live pipeline. Max 4 positions.", 0.20, 0.60)
	testLive.Mode = domain.ModeLive
	testLive.Bankroll = 4
	testLive.BetSize = 1
	testLive.MaxTotalExposure = 1
	testLive.MaxClusterExpo = 1

	return []domain.Strategy{
		base("conservative", "NO on 10-25% YES markets. Small frequent wins.", 0.10, 0.25),
		base("balanced", "NO on 20-60% YES markets. Reference zone.", 0.20, 0.60),
		base("aggressive", "NO on 30-60% YES markets. Riskier zone, better return per trade.", 0.30, 0.60,
			bet(30), func(s *domain.Strategy) { s.MaxTotalExposure, s.MaxClusterExpo = 0.75, 0.25 }),
		base("volume_sweet", "NO on 20-60% YES, volume 15k-100k only.", 0.20, 0.60, volume(15_000, 100_000)),

		tiered("t1_baseline_flat", "Control: 40-80% YES, flat $25.", 1000, band(0.40, 0.80)),
		tiered("t1_baseline_v1_zone", "Control: old 20-60% zone.", 1000, band(0.20, 0.60)),
		tiered("t1_baseline_volume_high", "Negative control: >250k volume only.", 1000, band(0.50, 0.80), volume(250_000, 0)),
		tiered("t1_baseline_contrarian", "Control: ultra-safe 10-35% zone.", 1000, band(0.10, 0.35)),

		tiered("t2_small_vol", "40-80% YES, volume <100k, adaptive sizing.", 1000, band(0.40, 0.80), volume(0, 100_000), adaptive()),
		tiered("t2_micro_vol", "30-65% YES, volume <50k, adaptive sizing.", 1000, band(0.30, 0.65), volume(0, 50_000), adaptive()),

		tiered("t3_mb_simple", "Two zones: <100k 30-65%, >100k 50-80%.", 1000, adaptive(), zones(
			zone(0, 100_000, 0.30, 0.65),
			zone(100_000, 0, 0.50, 0.80),
		)),
		tiered("t3_mb_3bucket", "Three zones by volume.", 1000, adaptive(), threeBucket),
		tiered("t3_mb_4bucket_skip", "Three zones with a 100k-250k dead zone.", 1000, adaptive(), zones(
			zone(0, 25_000, 0.30, 0.60),
			zone(25_000, 100_000, 0.40, 0.70),
			zone(250_000, 0, 0.50, 0.80),
		)),
		tiered("t3_mb_aggressive", "Four fine zones by volume.", 1000, adaptive(), zones(
			zone(0, 5_000, 0.30, 0.65),
			zone(5_000, 50_000, 0.35, 0.70),
			zone(50_000, 250_000, 0.40, 0.80),
			zone(250_000, 0, 0.50, 0.80),
		)),

		tiered("t4_cstr_baseline", "$500 bankroll, $50 bets, no deadline filter.", 500, band(0.40, 0.80), bet(50)),
		tiered("t4_cstr_dl60", "$500 bankroll, $50 bets, deadline 60d.", 500, band(0.40, 0.80), bet(50), deadlineMax(60)),
		tiered("t4_cstr_adaptive_dl90", "Adaptive sizing, deadline 90d.", 1000, band(0.40, 0.80), adaptive(), deadlineMax(90)),
		tiered("t4_cstr_mb3_dl90", "Three zones, adaptive, deadline 90d.", 1000, threeBucket, adaptive(), deadlineMax(90)),

		tiered("t5_deploy_conservative", "Two zones, skips >250k, adaptive.", 1000, twoBucketSkipLarge, adaptive()),
		tiered("t5_deploy_balanced", "Three zones, deadline 90d, adaptive.", 1000, threeBucket, adaptive(), deadlineMax(90)),
		tiered("t5_deploy_speed", "$500 bankroll, two zones, deadline 60d.", 500, twoBucketSkipLarge, adaptive(), deadlineMax(60)),
		tiered("t5_deploy_max_growth", "Three zones, $50 flat, deadline 90d.", 1000, threeBucket, bet(50), deadlineMax(90)),

		testLive,
	}
}

func builtinCatalog() *Catalog {
	cat := &Catalog{strategies: map[string]domain.Strategy{}, groups: map[string][]string{}}
	for _, s := range builtinStrategies() {
		cat.order = append(cat.order, s.Name)
		cat.strategies[s.Name] = s
	}

	prefixed := func(p string) []string {
		var out []string
		for _, name := range cat.order {
			if strings.HasPrefix(name, p) {
				out = append(out, name)
			}
		}
		return out
	}
	add := func(name string, members []string) {
		cat.groupOrder = append(cat.groupOrder, name)
		cat.groups[name] = members
	}

	originals := []string{"conservative", "balanced", "aggressive", "volume_sweet"}
	add("base", originals)
	add("standard", originals)
	add("tier1", prefixed("t1_"))
	add("tier2", prefixed("t2_"))
	add("tier3", prefixed("t3_"))
	add("tier4", prefixed("t4_"))
	add("tier5", prefixed("t5_"))
	add("controls", prefixed("t1_"))
	add("deployable", prefixed("t5_"))
	add("quick", []string{"balanced", "t1_baseline_flat"})
	add("live", []string{"test_live"})
	add("all", nil)
	return cat
}
