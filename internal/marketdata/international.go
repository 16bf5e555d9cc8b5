package marketdata

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/shopspring/decimal"
)

// InternationalClient talks to the market-data service serving every symbol
// the domestic feed does not.
type InternationalClient struct {
	baseURL string
	client  *http.Client
}

// NewInternationalClient creates a client for the international price feed.
func NewInternationalClient(baseURL string) *InternationalClient {
	return &InternationalClient{
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

type internationalPrice struct {
	Ticker      string  `json:"ticker"`
	Price       float64 `json:"price"`
	Currency    string  `json:"currency"`
	LastUpdated string  `json:"last_updated"`
}

// FetchPrice fetches the current price for an international symbol.
// GET /api/market/price?ticker={ticker}; 404 means no data (terminal).
func (c *InternationalClient) FetchPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	endpoint := fmt.Sprintf("%s/api/market/price?ticker=%s", c.baseURL, url.QueryEscape(symbol))

	var price internationalPrice
	err := withRetry(ctx, symbol, func() error {
		return fetchJSON(ctx, c.client, endpoint, &price)
	})
	if err != nil {
		return decimal.Decimal{}, err
	}
	return decimal.NewFromFloat(price.Price), nil
}
