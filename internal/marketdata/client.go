// Package marketdata provides the clients for the two upstream price feeds:
// the domestic quote crawler and the international market-data service.
//
// Both share one failure policy: transport errors and 5xx responses are
// retried a bounded number of times with a short fixed backoff; 4xx responses
// (e.g. unknown ticker) are terminal and never retried.
package marketdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

const (
	requestTimeout = 5 * time.Second
	maxAttempts    = 2
	retryBackoff   = 500 * time.Millisecond
)

// Source fetches the current price for one symbol.
type Source interface {
	FetchPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// StatusError is a non-2xx upstream response. 5xx are retryable; 4xx are
// terminal.
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("marketdata: %s returned status %d", e.URL, e.Code)
}

// Retryable reports whether an error should be retried: anything that is not
// a terminal HTTP status (transport failures, timeouts, 5xx).
func Retryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code >= 500
	}
	return true
}

// fetchJSON performs one GET with the per-request timeout and decodes the
// body into out.
func fetchJSON(ctx context.Context, client *http.Client, url string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("marketdata: build request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("marketdata: request %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return &StatusError{Code: resp.StatusCode, URL: url}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("marketdata: decode %s: %w", url, err)
	}
	return nil
}

// withRetry runs fn up to maxAttempts times, sleeping retryBackoff between
// attempts. Terminal errors and context cancellation stop the loop early.
func withRetry(ctx context.Context, symbol string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = fn()
		if err == nil || !Retryable(err) {
			return err
		}
		if attempt == maxAttempts {
			break
		}
		slog.Debug("retrying price fetch", "ticker", symbol, "attempt", attempt, "err", err)
		select {
		case <-time.After(retryBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
