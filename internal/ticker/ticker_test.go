package ticker_test

import (
	"errors"
	"testing"

	"github.com/stockfolio/portfolio-engine/internal/ticker"
)

func TestNormalize_Valid(t *testing.T) {
	cases := map[string]string{
		"AAPL":    "AAPL",
		"aapl":    "AAPL",
		" tsla ":  "TSLA",
		"005930":  "005930",
		"BRK.B":   "BRK.B",
		"btc-usd": "BTC-USD",
		"GOOGL":   "GOOGL",
	}
	for raw, want := range cases {
		got, err := ticker.Normalize(raw)
		if err != nil {
			t.Errorf("Normalize(%q) unexpected error: %v", raw, err)
			continue
		}
		if got != want {
			t.Errorf("Normalize(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestNormalize_Invalid(t *testing.T) {
	for _, raw := range []string{"", "   ", ".AAPL", "-TSLA", "HAS SPACE", "TOOLONGTOOLONGTOOLONGX", "bad$char"} {
		_, err := ticker.Normalize(raw)
		if !errors.Is(err, ticker.ErrInvalidTicker) {
			t.Errorf("Normalize(%q) expected ErrInvalidTicker, got %v", raw, err)
		}
	}
}

func TestRouteFor(t *testing.T) {
	domestic := []string{"005930", "035720", "000660"}
	for _, sym := range domestic {
		if got := ticker.RouteFor(sym); got != ticker.MarketDomestic {
			t.Errorf("RouteFor(%q) = %s, want DOMESTIC", sym, got)
		}
	}

	international := []string{"AAPL", "BTC-USD", "BRK.B", "12345", "1234567", "00593A"}
	for _, sym := range international {
		if got := ticker.RouteFor(sym); got != ticker.MarketInternational {
			t.Errorf("RouteFor(%q) = %s, want INTERNATIONAL", sym, got)
		}
	}
}
