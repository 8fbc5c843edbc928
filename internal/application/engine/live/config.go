package live

import "time"

const (
	DefaultProposalTTL   = 6 * time.Hour
	DefaultBatchCap      = 5
	DefaultMaxDivergence = 0.03
	DefaultMinBalance    = 5.0
	askBump              = 0.01 // sobre el mejor ask
	proposedBump         = 0.02 // tope sobre el precio propuesto
	minLimitPrice        = 0.01
	maxLimitPrice        = 0.99
)

// Config controla el gate de ejecución real.
type Config struct {
	Enabled       bool // kill switch: sin Enabled ni Shadow no se ejecuta nada
	Shadow        bool // valida todo pero no envía órdenes
	ProposalTTL   time.Duration
	BatchCap      int
	MaxDivergence float64
	MinBalance    float64
}

// WithDefaults rellena los valores a cero.
func (c Config) WithDefaults() Config {
	if c.ProposalTTL <= 0 {
		c.ProposalTTL = DefaultProposalTTL
	}
	if c.BatchCap <= 0 {
		c.BatchCap = DefaultBatchCap
	}
	if c.MaxDivergence <= 0 {
		c.MaxDivergence = DefaultMaxDivergence
	}
	if c.MinBalance <= 0 {
		c.MinBalance = DefaultMinBalance
	}
	return c
}
