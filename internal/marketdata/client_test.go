package marketdata_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/stockfolio/portfolio-engine/internal/marketdata"
)

func TestDomesticClient_FetchPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/crawler/kr-stock/quote/005930" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ticker":"005930","name":"Samsung Electronics","current_price":71500,"currency":"KRW"}`))
	}))
	defer srv.Close()

	c := marketdata.NewDomesticClient(srv.URL)
	price, err := c.FetchPrice(context.Background(), "005930")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !price.Equal(decimal.NewFromInt(71500)) {
		t.Errorf("expected 71500, got %s", price)
	}
}

func TestInternationalClient_FetchPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("ticker"); got != "AAPL" {
			t.Errorf("unexpected ticker param: %s", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ticker":"AAPL","price":189.25,"currency":"USD","last_updated":"2026-03-01T12:00:00Z"}`))
	}))
	defer srv.Close()

	c := marketdata.NewInternationalClient(srv.URL)
	price, err := c.FetchPrice(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !price.Equal(decimal.NewFromFloat(189.25)) {
		t.Errorf("expected 189.25, got %s", price)
	}
}

func TestFetchPrice_NotFoundIsTerminal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := marketdata.NewInternationalClient(srv.URL)
	_, err := c.FetchPrice(context.Background(), "NOPE")
	if err == nil {
		t.Fatal("expected error for 404")
	}

	var se *marketdata.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Fatalf("expected StatusError 404, got %v", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("404 should not be retried: %d calls", got)
	}
}

func TestFetchPrice_ServerErrorIsRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ticker":"AAPL","price":190,"currency":"USD"}`))
	}))
	defer srv.Close()

	c := marketdata.NewInternationalClient(srv.URL)
	price, err := c.FetchPrice(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("expected retry to recover, got %v", err)
	}
	if !price.Equal(decimal.NewFromInt(190)) {
		t.Errorf("expected 190, got %s", price)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("expected 2 calls (retry once), got %d", got)
	}
}

func TestFetchPrice_RetryBudgetExhausted(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := marketdata.NewInternationalClient(srv.URL)
	if _, err := c.FetchPrice(context.Background(), "AAPL"); err == nil {
		t.Fatal("expected error after retries exhausted")
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("expected exactly 2 attempts, got %d", got)
	}
}

func TestRetryable(t *testing.T) {
	if marketdata.Retryable(&marketdata.StatusError{Code: 404}) {
		t.Error("404 should not be retryable")
	}
	if !marketdata.Retryable(&marketdata.StatusError{Code: 503}) {
		t.Error("503 should be retryable")
	}
	if !marketdata.Retryable(errors.New("connection refused")) {
		t.Error("transport errors should be retryable")
	}
}
