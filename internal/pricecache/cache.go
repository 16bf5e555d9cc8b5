// Package pricecache is the ticker → last-known-price store with a TTL.
// Redis backs it in production; a cache outage degrades to misses, never
// to errors, so pricing keeps working without it.
package pricecache

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Cache maps tickers to their last fetched price.
type Cache interface {
	// Get returns the cached price for a ticker, or false on miss (including
	// expiry and any backend failure).
	Get(ctx context.Context, symbol string) (decimal.Decimal, bool)

	// Set stores a price under the given TTL. Failures are swallowed.
	Set(ctx context.Context, symbol string, price decimal.Decimal, ttl time.Duration)
}
