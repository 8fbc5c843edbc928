package polymarket

import (
	"encoding/json"
	"strconv"
	"strings"
)

// DTOs raw de la API de Polymarket. Solo se usan dentro de este paquete.
// La conversión a domain entities se hace en mapping.go.

// --- CLOB API ---

// orderBookRequest es el body del POST /books batch.
type orderBookRequest struct {
	TokenID string `json:"token_id"`
}

// orderBookResponse es la respuesta de GET /book y de cada item en POST /books.
type orderBookResponse struct {
	AssetID string         `json:"asset_id"`
	Bids    []bookEntryRaw `json:"bids"`
	Asks    []bookEntryRaw `json:"asks"`
}

// bookEntryRaw es un nivel de precio raw de la API (strings para mayor precisión).
type bookEntryRaw struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// --- Gamma API ---

// gammaMarket es un mercado de GET /markets. Gamma mezcla tipos: los arrays
// llegan como JSON-strings, los números como strings y los bools a veces también.
type gammaMarket struct {
	ID               string      `json:"id"`
	ConditionID      string      `json:"conditionId"`
	Question         string      `json:"question"`
	Slug             string      `json:"slug"`
	Outcomes         flexStrings `json:"outcomes"`
	OutcomePrices    flexStrings `json:"outcomePrices"`
	ClobTokenIDs     flexStrings `json:"clobTokenIds"`
	Volume           flexFloat   `json:"volume"`
	VolumeNum        flexFloat   `json:"volumeNum"`
	StartDate        string      `json:"startDate"`
	CreatedAt        string      `json:"createdAt"`
	EndDate          string      `json:"endDate"`
	EndDateISO       string      `json:"endDateIso"`
	ClosedTime       string      `json:"closedTime"`
	Active           flexBool    `json:"active"`
	Closed           flexBool    `json:"closed"`
	Resolved         flexBool    `json:"resolved"`
	Outcome          flexString  `json:"outcome"`
	Resolution       flexString  `json:"resolution"`
	ResolutionSource string      `json:"resolutionSource"`
}

// flexBool acepta bool o string ("true"/"false").
type flexBool bool

func (f *flexBool) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = flexBool(b)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	*f = flexBool(strings.EqualFold(s, "true") || s == "1")
	return nil
}

// flexFloat acepta número o string numérico. Valores ilegibles quedan en 0.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			*f = flexFloat(v)
		}
	}
	return nil
}

// flexStrings acepta un array JSON o un array JSON codificado como string
// (`"[\"Yes\", \"No\"]"`). Los elementos numéricos se convierten a string.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(data []byte) error {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		var s string
		if err := json.Unmarshal(data, &s); err != nil || s == "" {
			*f = nil
			return nil
		}
		if err := json.Unmarshal([]byte(s), &raw); err != nil {
			*f = nil
			return nil
		}
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		switch x := v.(type) {
		case string:
			out = append(out, x)
		case float64:
			out = append(out, strconv.FormatFloat(x, 'f', -1, 64))
		case bool:
			out = append(out, strconv.FormatBool(x))
		}
	}
	*f = out
	return nil
}

// flexString acepta string, número o bool y lo guarda como texto.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil
	}
	switch x := v.(type) {
	case string:
		*f = flexString(x)
	case float64:
		*f = flexString(strconv.FormatFloat(x, 'f', -1, 64))
	case bool:
		*f = flexString(strconv.FormatBool(x))
	default:
		*f = ""
	}
	return nil
}
