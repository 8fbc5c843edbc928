package domain

import (
	"strings"
	"unicode"
)

const (
	resolvedHigh = 0.99
	resolvedLow  = 0.01
)

// CheckResolution decide si un mercado está resuelto y hacia qué lado.
// Solo mira mercados closed/resolved. Orden: campo outcome explícito,
// texto de resolución, y por último precios (uno ≥0.99 y el otro ≤0.01).
func CheckResolution(m Market) Outcome {
	if !m.Closed && !m.Resolved {
		return OutcomeNone
	}

	switch strings.ToLower(strings.TrimSpace(m.Outcome)) {
	case "yes", "1", "true":
		return OutcomeYes
	case "no", "0", "false":
		return OutcomeNo
	}

	if words := resolutionWords(m.ResolutionSource); len(words) > 0 {
		if words["yes"] {
			return OutcomeYes
		}
		if words["no"] {
			return OutcomeNo
		}
	}

	if len(m.OutcomePrices) < 2 {
		return OutcomeNone
	}
	p0, p1 := m.OutcomePrices[0], m.OutcomePrices[1]
	label := func(i int) string {
		if i < len(m.Outcomes) {
			return strings.ToLower(m.Outcomes[i])
		}
		return ""
	}
	switch {
	case p0 >= resolvedHigh && p1 <= resolvedLow:
		if len(m.Outcomes) == 0 || label(0) == "yes" {
			return OutcomeYes
		}
		return OutcomeNo
	case p1 >= resolvedHigh && p0 <= resolvedLow:
		if len(m.Outcomes) == 0 || label(1) == "no" {
			return OutcomeNo
		}
		return OutcomeYes
	}
	return OutcomeNone
}

// resolutionWords tokeniza el texto en palabras; "no" tiene que aparecer como
// palabra para que "november" o "unknown" no cuenten.
func resolutionWords(text string) map[string]bool {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r)
	})
	words := make(map[string]bool, len(fields))
	for _, f := range fields {
		words[f] = true
	}
	return words
}
