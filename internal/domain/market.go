package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Market es el snapshot de un mercado binario tal como lo devuelve Gamma,
// ya parseado (outcomes, precios y token ids vienen como JSON-strings en la API).
type Market struct {
	ID               string
	ConditionID      string
	Question         string
	Slug             string
	Outcomes         []string  // "Yes" | "No" normalmente
	OutcomePrices    []float64 // mismo orden que Outcomes
	ClobTokenIDs     []string  // mismo orden que Outcomes
	Volume           float64
	StartDate        time.Time
	CreatedAt        time.Time
	EndDate          time.Time
	ClosedTime       time.Time
	Active           bool
	Closed           bool
	Resolved         bool
	Outcome          string // campo explícito de resolución, si existe
	ResolutionSource string
}

// StartTime devuelve startDate o, si no existe, createdAt.
func (m Market) StartTime() time.Time {
	if !m.StartDate.IsZero() {
		return m.StartDate
	}
	return m.CreatedAt
}

// CloseTime devuelve closedTime o, si no existe, endDate.
func (m Market) CloseTime() time.Time {
	if !m.ClosedTime.IsZero() {
		return m.ClosedTime
	}
	return m.EndDate
}

// YesPrice resuelve el precio YES: primero busca el outcome "Yes" explícito,
// y en mercados binarios sin etiqueta usa el primer precio.
func (m Market) YesPrice() (float64, bool) {
	if p, ok := m.labelledYes(); ok {
		return p, true
	}
	if len(m.Outcomes) == 2 && len(m.OutcomePrices) >= 1 {
		return m.OutcomePrices[0], true
	}
	return 0, false
}

// MarkYesPrice es la variante usada para mark-to-market: label "Yes" o,
// si no hay, el primer precio disponible.
func (m Market) MarkYesPrice() (float64, bool) {
	if p, ok := m.labelledYes(); ok {
		return p, true
	}
	if len(m.OutcomePrices) >= 1 {
		return m.OutcomePrices[0], true
	}
	return 0, false
}

func (m Market) labelledYes() (float64, bool) {
	for i, o := range m.Outcomes {
		if strings.EqualFold(o, "yes") && i < len(m.OutcomePrices) {
			return m.OutcomePrices[i], true
		}
	}
	return 0, false
}

// TokenIDs mapea YES/NO a su token id del CLOB.
// Fallback: mercados binarios sin etiquetas Yes/No usan [YES, NO] en orden.
func (m Market) TokenIDs() map[Side]string {
	tokens := make(map[Side]string, 2)
	for i, o := range m.Outcomes {
		if i >= len(m.ClobTokenIDs) {
			break
		}
		switch strings.ToLower(o) {
		case "yes":
			tokens[SideYes] = m.ClobTokenIDs[i]
		case "no":
			tokens[SideNo] = m.ClobTokenIDs[i]
		}
	}
	if len(tokens) == 0 && len(m.ClobTokenIDs) == 2 {
		tokens[SideYes] = m.ClobTokenIDs[0]
		tokens[SideNo] = m.ClobTokenIDs[1]
	}
	return tokens
}

// TruncateQuestion corta la pregunta a maxLen caracteres, nunca a mitad de
// una runa. Si la pregunta está vacía usa el id como fallback.
func TruncateQuestion(question, id string, maxLen int) string {
	q := question
	if q == "" {
		if len(id) > 20 {
			q = id[:20] + "..."
		} else {
			q = id
		}
	}
	if utf8.RuneCountInString(q) > maxLen {
		q = string([]rune(q)[:maxLen])
	}
	return q
}
