package config

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/alejandrodnm/geobot/internal/domain"
)

// RawStrategy es una estrategia tal como viene del YAML. Acepta las claves
// antiguas (side, price_min, max_total_exposure_pct...) además de las
// nuevas; normalize las resuelve una sola vez a domain.Strategy.
type RawStrategy struct {
	Description string `yaml:"description"`
	Mode        string `yaml:"mode"`

	Side    string `yaml:"side"`
	BetSide string `yaml:"bet_side"`

	PriceMin    *float64  `yaml:"price_min"`
	PriceYesMin *float64  `yaml:"price_yes_min"`
	PriceMax    *float64  `yaml:"price_max"`
	PriceYesMax *float64  `yaml:"price_yes_max"`
	Zones       []RawZone `yaml:"zones"`

	MinVolume *float64 `yaml:"min_volume"`
	MaxVolume *float64 `yaml:"max_volume"`

	BufferHours     *float64 `yaml:"buffer_hours"`
	DeadlineMin     *float64 `yaml:"deadline_min"`
	DeadlineMinDays *float64 `yaml:"deadline_min_days"`
	DeadlineMax     *float64 `yaml:"deadline_max"`
	DeadlineMaxDays *float64 `yaml:"deadline_max_days"`
	ClusterFilter   []string `yaml:"cluster_filter"`

	Bankroll              *float64 `yaml:"bankroll"`
	BetSize               *float64 `yaml:"bet_size"`
	Sizing                string   `yaml:"sizing"`
	EntryCostRate         *float64 `yaml:"entry_cost_rate"`
	MinCashPct            *float64 `yaml:"min_cash_pct"`
	MaxTotalExposure      *float64 `yaml:"max_total_exposure"`
	MaxTotalExposurePct   *float64 `yaml:"max_total_exposure_pct"`
	MaxClusterExposure    *float64 `yaml:"max_cluster_exposure"`
	MaxClusterExposurePct *float64 `yaml:"max_cluster_exposure_pct"`
}

// RawZone es una banda de precio por volumen. vol_max vacío = sin límite.
type RawZone struct {
	VolMin      float64  `yaml:"vol_min"`
	VolMax      *float64 `yaml:"vol_max"`
	PriceMin    *float64 `yaml:"price_min"`
	PriceYesMin *float64 `yaml:"price_yes_min"`
	PriceMax    *float64 `yaml:"price_max"`
	PriceYesMax *float64 `yaml:"price_yes_max"`
}

// Catalog son las estrategias y grupos disponibles, ya normalizados.
type Catalog struct {
	order      []string
	strategies map[string]domain.Strategy
	groupOrder []string
	groups     map[string][]string
}

// Catalog combina el catálogo incorporado con las estrategias y grupos del
// YAML. Una estrategia del YAML con el nombre de una incorporada la sobreescribe
// campo a campo.
func (c *Config) Catalog() (*Catalog, error) {
	cat := builtinCatalog()

	names := make([]string, 0, len(c.Strategies))
	for name := range c.Strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		base, ok := cat.strategies[name]
		if !ok {
			base = defaults()
			cat.order = append(cat.order, name)
		}
		s, err := normalize(name, base, c.Strategies[name])
		if err != nil {
			return nil, fmt.Errorf("config.Catalog: %w", err)
		}
		cat.strategies[name] = s
	}

	groups := make([]string, 0, len(c.Groups))
	for g := range c.Groups {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	for _, g := range groups {
		if _, clash := cat.strategies[g]; clash {
			return nil, fmt.Errorf("config.Catalog: group %q shadows a strategy", g)
		}
		for _, member := range c.Groups[g] {
			if _, ok := cat.strategies[member]; !ok {
				return nil, fmt.Errorf("config.Catalog: group %q: strategy %q: %w", g, member, domain.ErrUnknownStrategy)
			}
		}
		if _, exists := cat.groups[g]; !exists {
			cat.groupOrder = append(cat.groupOrder, g)
		}
		cat.groups[g] = append([]string(nil), c.Groups[g]...)
	}
	cat.groups["all"] = append([]string(nil), cat.order...)
	return cat, nil
}

// Resolve devuelve la estrategia o las estrategias del grupo, en orden.
func (c *Catalog) Resolve(nameOrGroup string) ([]domain.Strategy, error) {
	key := strings.ToLower(strings.TrimSpace(nameOrGroup))
	if s, ok := c.strategies[key]; ok {
		return []domain.Strategy{s}, nil
	}
	members, ok := c.groups[key]
	if !ok {
		return nil, fmt.Errorf("config.Resolve %q: %w (groups: %s)", nameOrGroup, domain.ErrUnknownStrategy, strings.Join(c.groupOrder, ", "))
	}
	out := make([]domain.Strategy, 0, len(members))
	for _, name := range members {
		out = append(out, c.strategies[name])
	}
	return out, nil
}

// Get devuelve una estrategia por nombre.
func (c *Catalog) Get(name string) (domain.Strategy, bool) {
	s, ok := c.strategies[name]
	return s, ok
}

// Strategies devuelve todas las estrategias en orden de catálogo.
func (c *Catalog) Strategies() []domain.Strategy {
	out := make([]domain.Strategy, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.strategies[name])
	}
	return out
}

// Groups devuelve los grupos en orden de declaración.
func (c *Catalog) Groups() (names []string, members map[string][]string) {
	return append([]string(nil), c.groupOrder...), c.groups
}

func normalize(name string, s domain.Strategy, raw RawStrategy) (domain.Strategy, error) {
	s.Name = name
	if raw.Description != "" {
		s.Description = raw.Description
	}
	if raw.Mode != "" {
		s.Mode = domain.Mode(strings.ToLower(raw.Mode))
	}
	if side := firstNonEmpty(raw.BetSide, raw.Side); side != "" {
		s.BetSide = domain.Side(strings.ToUpper(side))
	}

	setF(&s.PriceMin, raw.PriceYesMin, raw.PriceMin)
	setF(&s.PriceMax, raw.PriceYesMax, raw.PriceMax)
	if raw.Zones != nil {
		s.Zones = make([]domain.Zone, 0, len(raw.Zones))
		for _, z := range raw.Zones {
			zone := domain.Zone{MinVolume: z.VolMin}
			if z.VolMax != nil && !math.IsInf(*z.VolMax, 1) {
				zone.MaxVolume = *z.VolMax
			}
			setF(&zone.PriceMin, z.PriceYesMin, z.PriceMin)
			setF(&zone.PriceMax, z.PriceYesMax, z.PriceMax)
			s.Zones = append(s.Zones, zone)
		}
	}

	setF(&s.MinVolume, raw.MinVolume)
	setF(&s.MaxVolume, raw.MaxVolume)
	if math.IsInf(s.MaxVolume, 1) {
		s.MaxVolume = 0
	}
	setF(&s.BufferHours, raw.BufferHours)
	setF(&s.DeadlineMinDays, raw.DeadlineMinDays, raw.DeadlineMin)
	setF(&s.DeadlineMaxDays, raw.DeadlineMaxDays, raw.DeadlineMax)
	if raw.ClusterFilter != nil {
		s.ClusterFilter = append([]string(nil), raw.ClusterFilter...)
	}

	setF(&s.Bankroll, raw.Bankroll)
	setF(&s.BetSize, raw.BetSize)
	if raw.Sizing != "" {
		s.Sizing = domain.Sizing(strings.ToLower(raw.Sizing))
	}
	setF(&s.EntryCostRate, raw.EntryCostRate)
	setF(&s.MinCashPct, raw.MinCashPct)
	setF(&s.MaxTotalExposure, raw.MaxTotalExposure, raw.MaxTotalExposurePct)
	setF(&s.MaxClusterExpo, raw.MaxClusterExposure, raw.MaxClusterExposurePct)

	if err := validateStrategy(s); err != nil {
		return domain.Strategy{}, fmt.Errorf("strategy %q: %w", name, err)
	}
	return s, nil
}

func validateStrategy(s domain.Strategy) error {
	switch {
	case s.Mode != domain.ModePaper && s.Mode != domain.ModeLive:
		return fmt.Errorf("invalid mode %q", s.Mode)
	case s.BetSide != domain.SideYes && s.BetSide != domain.SideNo:
		return fmt.Errorf("invalid bet side %q", s.BetSide)
	case s.Sizing != domain.SizingFixed && s.Sizing != domain.SizingAdaptive:
		return fmt.Errorf("invalid sizing %q", s.Sizing)
	case s.Bankroll <= 0:
		return fmt.Errorf("bankroll must be positive")
	case s.Sizing == domain.SizingFixed && s.BetSize <= 0:
		return fmt.Errorf("bet_size must be positive")
	case s.PriceMin > s.PriceMax:
		return fmt.Errorf("price range %.2f-%.2f is empty", s.PriceMin, s.PriceMax)
	case s.MaxVolume > 0 && s.MaxVolume < s.MinVolume:
		return fmt.Errorf("volume range %.0f-%.0f is empty", s.MinVolume, s.MaxVolume)
	case s.EntryCostRate < 0 || s.EntryCostRate >= 1:
		return fmt.Errorf("entry_cost_rate %.3f out of [0,1)", s.EntryCostRate)
	}
	for i, z := range s.Zones {
		if z.PriceMin > z.PriceMax {
			return fmt.Errorf("zone %d: price range %.2f-%.2f is empty", i, z.PriceMin, z.PriceMax)
		}
	}
	return nil
}

// setF asigna el primer valor presente.
func setF(dst *float64, vals ...*float64) {
	for _, v := range vals {
		if v != nil {
			*dst = *v
			return
		}
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
