// Package pricing resolves current prices for a set of positions by
// consulting the cache, fanning out to the upstream feeds, and substituting
// the position's own average cost when live pricing is unavailable.
//
// A pricing outage must never prevent the user from seeing a valuation:
// Resolve always returns a price for every input ticker.
package pricing

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockfolio/portfolio-engine/internal/marketdata"
	"github.com/stockfolio/portfolio-engine/internal/metrics"
	"github.com/stockfolio/portfolio-engine/internal/model"
	"github.com/stockfolio/portfolio-engine/internal/pricecache"
	"github.com/stockfolio/portfolio-engine/internal/ticker"
)

const (
	// cacheTTL is how long a live price stays valid in the cache.
	cacheTTL = 60 * time.Second
	// joinTimeout caps the whole fan-out; a fetch that has not settled by
	// then is treated as failed for that ticker only.
	joinTimeout = 10 * time.Second
)

// Resolver resolves tickers to current prices.
type Resolver struct {
	cache         pricecache.Cache
	domestic      marketdata.Source
	international marketdata.Source
}

// NewResolver creates a resolver over the given cache and feeds.
func NewResolver(cache pricecache.Cache, domestic, international marketdata.Source) *Resolver {
	return &Resolver{
		cache:         cache,
		domestic:      domestic,
		international: international,
	}
}

type fetchResult struct {
	symbol string
	price  decimal.Decimal
	err    error
}

// Resolve returns a price for every distinct ticker among the positions.
// Cache hits are served directly; the rest fan out concurrently to the
// routed feed. Tickers whose fetch fails, times out, or returns a
// non-positive price fall back to the position's average cost.
func (r *Resolver) Resolve(ctx context.Context, positions []model.Position) map[string]model.ResolvedPrice {
	resolved := make(map[string]model.ResolvedPrice, len(positions))

	// Fallback prices double as the dedup set: first-seen average cost wins.
	fallback := make(map[string]decimal.Decimal, len(positions))
	var order []string
	for _, p := range positions {
		if _, seen := fallback[p.Ticker]; !seen {
			fallback[p.Ticker] = p.AverageCost
			order = append(order, p.Ticker)
		}
	}

	// Partition into cached and uncached.
	var uncached []string
	for _, sym := range order {
		if price, ok := r.cache.Get(ctx, sym); ok {
			metrics.PriceCacheHits.Inc()
			resolved[sym] = model.ResolvedPrice{Ticker: sym, Price: price, Source: model.SourceCache}
			continue
		}
		metrics.PriceCacheMisses.Inc()
		uncached = append(uncached, sym)
	}

	if len(uncached) == 0 {
		return resolved
	}

	// Fan out. Each fetch carries its own timeout and retry budget; the
	// join ceiling bounds the batch so one hung fetch cannot stall the
	// response.
	fetchCtx, cancel := context.WithTimeout(ctx, joinTimeout)
	defer cancel()

	results := make(chan fetchResult, len(uncached))
	for _, sym := range uncached {
		go func(sym string) {
			price, err := r.fetchLive(fetchCtx, sym)
			results <- fetchResult{symbol: sym, price: price, err: err}
		}(sym)
	}

	pending := len(uncached)
	for pending > 0 {
		select {
		case res := <-results:
			pending--
			if res.err != nil {
				slog.Warn("price fetch failed", "ticker", res.symbol, "err", res.err)
				continue
			}
			if res.price.LessThanOrEqual(decimal.Zero) {
				slog.Warn("price fetch returned non-positive price", "ticker", res.symbol)
				continue
			}
			r.cache.Set(ctx, res.symbol, res.price, cacheTTL)
			resolved[res.symbol] = model.ResolvedPrice{Ticker: res.symbol, Price: res.price, Source: model.SourceLive}
		case <-fetchCtx.Done():
			pending = 0
		}
	}

	// Every remaining ticker degrades to its average cost (0% return for
	// that position rather than an error).
	for _, sym := range uncached {
		if _, ok := resolved[sym]; ok {
			continue
		}
		metrics.PriceFallbacks.Inc()
		resolved[sym] = model.ResolvedPrice{Ticker: sym, Price: fallback[sym], Source: model.SourceFallback}
	}

	return resolved
}

// fetchLive routes one symbol to its feed and records outcome metrics.
func (r *Resolver) fetchLive(ctx context.Context, sym string) (decimal.Decimal, error) {
	feed := "international"
	source := r.international
	if ticker.RouteFor(sym) == ticker.MarketDomestic {
		feed = "domestic"
		source = r.domestic
	}

	start := time.Now()
	price, err := source.FetchPrice(ctx, sym)
	metrics.PriceFetchLatency.WithLabelValues(feed).Observe(time.Since(start).Seconds())

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.PriceFetches.WithLabelValues(feed, outcome).Inc()

	return price, err
}

// SnapshotFor builds the priced snapshot for a set of positions.
func (r *Resolver) SnapshotFor(ctx context.Context, positions []model.Position) model.Snapshot {
	return model.Snapshot{
		Positions: positions,
		Prices:    r.Resolve(ctx, positions),
	}
}
