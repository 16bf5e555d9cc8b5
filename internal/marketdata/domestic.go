package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
)

// DomesticClient talks to the crawler service serving six-digit domestic
// tickers.
type DomesticClient struct {
	baseURL string
	client  *http.Client
}

// NewDomesticClient creates a client for the domestic quote feed.
func NewDomesticClient(baseURL string) *DomesticClient {
	return &DomesticClient{
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

// domesticQuote is the crawler's quote payload. Only the current price is
// used here; the rest is documentation of the wire shape.
type domesticQuote struct {
	Ticker        string  `json:"ticker"`
	Name          string  `json:"name"`
	CurrentPrice  float64 `json:"current_price"`
	PreviousClose float64 `json:"previous_close"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"`
	Currency      string  `json:"currency"`
}

// FetchPrice fetches the current quote for a domestic symbol.
// GET /api/crawler/kr-stock/quote/{ticker}; 404 means no data (terminal).
func (c *DomesticClient) FetchPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s/api/crawler/kr-stock/quote/%s", c.baseURL, url.PathEscape(symbol))

	var quote domesticQuote
	err := withRetry(ctx, symbol, func() error {
		return fetchJSON(ctx, c.client, endpoint, &quote)
	})
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromFloat(quote.CurrentPrice), nil
}
