package polymarket

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/geobot/internal/domain"
)

// Polymarket usa varios formatos de fecha; intentamos los más comunes.
var gammaTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05-07",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseGammaTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range gammaTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// mapGammaMarkets convierte los DTOs de Gamma a domain.Market.
func mapGammaMarkets(raw []gammaMarket) []domain.Market {
	markets := make([]domain.Market, 0, len(raw))
	for _, r := range raw {
		markets = append(markets, mapGammaMarket(r))
	}
	return markets
}

// mapGammaMarket convierte un gammaMarket DTO a domain.Market.
func mapGammaMarket(r gammaMarket) domain.Market {
	m := domain.Market{
		ID:            r.ID,
		ConditionID:   r.ConditionID,
		Question:      r.Question,
		Slug:          r.Slug,
		Outcomes:      []string(r.Outcomes),
		OutcomePrices: parsePrices(r.OutcomePrices),
		ClobTokenIDs:  []string(r.ClobTokenIDs),
		Volume:        float64(r.Volume),
		StartDate:     parseGammaTime(r.StartDate),
		CreatedAt:     parseGammaTime(r.CreatedAt),
		EndDate:       parseGammaTime(r.EndDate),
		ClosedTime:    parseGammaTime(r.ClosedTime),
		Active:        bool(r.Active),
		Closed:        bool(r.Closed),
		Resolved:      bool(r.Resolved),
		Outcome:       string(r.Outcome),
	}
	if m.Volume == 0 {
		m.Volume = float64(r.VolumeNum)
	}
	if m.EndDate.IsZero() {
		m.EndDate = parseGammaTime(r.EndDateISO)
	}
	m.ResolutionSource = r.ResolutionSource
	if m.ResolutionSource == "" {
		m.ResolutionSource = string(r.Resolution)
	}
	return m
}

// parsePrices convierte los precios a float. Si alguno no parsea el array
// entero se descarta: un precio a medias no sirve para decidir.
func parsePrices(raw []string) []float64 {
	if len(raw) == 0 {
		return nil
	}
	prices := make([]float64, 0, len(raw))
	for _, s := range raw {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil
		}
		prices = append(prices, v)
	}
	return prices
}

// mapOrderBooks convierte la respuesta batch de /books a un map tokenID→OrderBook.
func mapOrderBooks(raw []orderBookResponse) map[string]domain.OrderBook {
	result := make(map[string]domain.OrderBook, len(raw))
	for _, r := range raw {
		result[r.AssetID] = mapOrderBook(r)
	}
	return result
}

func mapOrderBook(r orderBookResponse) domain.OrderBook {
	return domain.OrderBook{
		TokenID: r.AssetID,
		Bids:    mapBookEntries(r.Bids, false),
		Asks:    mapBookEntries(r.Asks, true),
	}
}

// mapBookEntries convierte entries raw a domain.BookEntry y los ordena.
// ascending=true → menor a mayor (asks), ascending=false → mayor a menor (bids).
func mapBookEntries(raw []bookEntryRaw, ascending bool) []domain.BookEntry {
	entries := make([]domain.BookEntry, 0, len(raw))
	for _, r := range raw {
		price := domain.ParsePrice(r.Price)
		size := domain.ParsePrice(r.Size)
		if price <= 0 || size <= 0 {
			continue
		}
		entries = append(entries, domain.BookEntry{Price: price, Size: size})
	}

	sort.Slice(entries, func(i, j int) bool {
		if ascending {
			return entries[i].Price < entries[j].Price
		}
		return entries[i].Price > entries[j].Price
	})

	return entries
}
