// Package ticker handles exchange-symbol normalization, validation, and
// routing between the domestic and international price feeds.
package ticker

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Market identifies which upstream price feed serves a ticker.
type Market string

const (
	// MarketDomestic is the domestic feed (6-digit numeric symbols).
	MarketDomestic Market = "DOMESTIC"
	// MarketInternational is the international feed (everything else).
	MarketInternational Market = "INTERNATIONAL"
)

// domesticRegex matches domestic exchange symbols: exactly six digits.
// Example: 005930.
var domesticRegex = regexp.MustCompile(`^\d{6}$`)

// symbolRegex bounds what we accept as a ticker at all: uppercase
// alphanumerics with the separators real symbols use (BRK.B, BTC-USD).
var symbolRegex = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-]{0,19}$`)

var ErrInvalidTicker = errors.New("ticker: invalid symbol")

// Normalize validates a raw symbol and returns its canonical uppercase form.
func Normalize(raw string) (string, error) {
	sym := strings.ToUpper(strings.TrimSpace(raw))
	if !symbolRegex.MatchString(sym) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTicker, raw)
	}
	return sym, nil
}

// RouteFor returns the feed that serves the given (normalized) symbol.
// Six-digit all-numeric symbols belong to the domestic exchange; everything
// else goes to the international feed.
func RouteFor(sym string) Market {
	if domesticRegex.MatchString(sym) {
		return MarketDomestic
	}
	return MarketInternational
}
