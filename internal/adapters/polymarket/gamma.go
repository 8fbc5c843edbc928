package polymarket

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"golang.org/x/sync/errgroup"

	"github.com/alejandrodnm/geobot/internal/domain"
)

const (
	gammaMarketsPath = "/markets"
	gammaPageSize    = 100
	// Máximo de páginas en vuelo a la vez.
	gammaWorkers = 5
	// Tope de páginas por ciclo (50k mercados).
	gammaMaxPages = 500
)

// FetchOpenMarkets devuelve todos los mercados abiertos de Gamma.
//
// La primera página se pide sola; si viene llena se piden el resto en
// paralelo en rondas de gammaWorkers páginas. Cada worker es dueño de su
// offset y escribe en su propio slot, así que no hay estado compartido.
// Una página que falla se loguea y cuenta como vacía.
func (c *Client) FetchOpenMarkets(ctx context.Context) ([]domain.Market, error) {
	first, err := c.fetchMarketsPage(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("gamma.FetchOpenMarkets: first page: %w", err)
	}
	all := mapGammaMarkets(first)
	if len(first) < gammaPageSize {
		slog.Info("gamma: markets fetched", "total", len(all), "pages", 1)
		return all, nil
	}

	pages := 1
	for start := 1; start < gammaMaxPages; start += gammaWorkers {
		results := make([][]gammaMarket, gammaWorkers)
		failed := make([]bool, gammaWorkers)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(gammaWorkers)
		for i := 0; i < gammaWorkers; i++ {
			i, offset := i, (start+i)*gammaPageSize
			g.Go(func() error {
				page, err := c.fetchMarketsPage(gctx, offset)
				if err != nil {
					if ctx.Err() != nil {
						return ctx.Err()
					}
					slog.Warn("gamma: page failed, treating as empty", "offset", offset, "err", err)
					failed[i] = true
					return nil
				}
				results[i] = page
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("gamma.FetchOpenMarkets: %w", err)
		}

		done, allFailed := false, true
		for i, page := range results {
			pages++
			all = append(all, mapGammaMarkets(page)...)
			if failed[i] {
				continue
			}
			allFailed = false
			if len(page) < gammaPageSize {
				done = true
			}
		}
		if done || allFailed {
			break
		}
	}

	slog.Info("gamma: markets fetched", "total", len(all), "pages", pages)
	return all, nil
}

func (c *Client) fetchMarketsPage(ctx context.Context, offset int) ([]gammaMarket, error) {
	ctx, cancel := context.WithTimeout(ctx, pageTimeout)
	defer cancel()

	q := url.Values{}
	q.Set("closed", "false")
	q.Set("limit", fmt.Sprint(gammaPageSize))
	q.Set("offset", fmt.Sprint(offset))
	u := c.gammaBase + gammaMarketsPath + "?" + q.Encode()

	var page []gammaMarket
	if err := c.get(ctx, c.gammaLimiter, u, &page); err != nil {
		return nil, fmt.Errorf("offset %d: %w", offset, err)
	}
	return page, nil
}

// FetchMarket devuelve un mercado por id (abierto o cerrado).
func (c *Client) FetchMarket(ctx context.Context, id string) (domain.Market, error) {
	ctx, cancel := context.WithTimeout(ctx, marketTimeout)
	defer cancel()

	u := fmt.Sprintf("%s%s/%s", c.gammaBase, gammaMarketsPath, url.PathEscape(id))
	var gm gammaMarket
	if err := c.get(ctx, c.gammaLimiter, u, &gm); err != nil {
		if isNotFound(err) {
			return domain.Market{}, fmt.Errorf("gamma.FetchMarket %s: %w", id, domain.ErrNotFound)
		}
		return domain.Market{}, fmt.Errorf("gamma.FetchMarket %s: %w", id, err)
	}
	return mapGammaMarket(gm), nil
}
