package analytics_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/stockfolio/portfolio-engine/internal/analytics"
	"github.com/stockfolio/portfolio-engine/internal/model"
)

func testAssets() []analytics.Asset {
	return []analytics.Asset{
		{Ticker: "AAPL", AssetType: "STOCK", Name: "Apple", Quantity: 10, CurrentPrice: 190, ChangePercent: 26.67},
	}
}

func TestSubmit_ReturnsJobID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/analytics/risk" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"job_id":"job-123","status":"PENDING","message":"queued"}`))
	}))
	defer srv.Close()

	c := analytics.NewClient(srv.URL)
	jobID, err := c.Submit(context.Background(), testAssets())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if jobID != "job-123" {
		t.Errorf("expected job-123, got %q", jobID)
	}
}

func TestSubmit_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := analytics.NewClient(srv.URL)
	_, err := c.Submit(context.Background(), testAssets())
	if !errors.Is(err, analytics.ErrJobSubmissionFailed) {
		t.Errorf("expected ErrJobSubmissionFailed, got %v", err)
	}
}

func TestSubmit_MissingJobID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"PENDING"}`))
	}))
	defer srv.Close()

	c := analytics.NewClient(srv.URL)
	_, err := c.Submit(context.Background(), testAssets())
	if !errors.Is(err, analytics.ErrJobSubmissionFailed) {
		t.Errorf("expected ErrJobSubmissionFailed for empty job_id, got %v", err)
	}
}

func TestPoll_StillProcessing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/analytics/risk/job-123" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := analytics.NewClient(srv.URL)
	result, err := c.Poll(context.Background(), "job-123")
	if err != nil {
		t.Fatalf("202 is not an error: %v", err)
	}
	if result.Status != analytics.StatusPending {
		t.Errorf("expected PENDING, got %s", result.Status)
	}
}

func TestPoll_Completed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"volatility":0.24,"mdd":0.12,"beta":1.1,"sharpe_ratio":0.8,"risk_level":"medium","recommendation":"hold"}`))
	}))
	defer srv.Close()

	c := analytics.NewClient(srv.URL)
	result, err := c.Poll(context.Background(), "job-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != analytics.StatusCompleted {
		t.Fatalf("expected COMPLETED, got %s", result.Status)
	}
	if result.Metrics.Beta != 1.1 || result.Metrics.RiskLevel != "medium" {
		t.Errorf("unexpected metrics: %+v", result.Metrics)
	}
}

func TestPoll_UpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("computation diverged"))
	}))
	defer srv.Close()

	c := analytics.NewClient(srv.URL)
	result, err := c.Poll(context.Background(), "job-123")
	if err != nil {
		t.Fatalf("upstream failure is a domain state, not an error: %v", err)
	}
	if result.Status != analytics.StatusFailed {
		t.Fatalf("expected FAILED, got %s", result.Status)
	}
	if result.Reason != "computation diverged" {
		t.Errorf("unexpected reason: %q", result.Reason)
	}
}

func TestComputeSync_DegradesToNeutralDefault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := analytics.NewClient(srv.URL)
	m := c.ComputeSync(context.Background(), testAssets())

	want := analytics.NeutralRiskMetrics()
	if m != want {
		t.Errorf("expected neutral default %+v, got %+v", want, m)
	}
}

func TestComputeSync_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/analytics/risk/sync" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"volatility":0.3,"mdd":0.2,"beta":0.9,"sharpe_ratio":1.2,"risk_level":"high","recommendation":"rebalance"}`))
	}))
	defer srv.Close()

	c := analytics.NewClient(srv.URL)
	m := c.ComputeSync(context.Background(), testAssets())
	if m.RiskLevel != "high" || m.SharpeRatio != 1.2 {
		t.Errorf("unexpected metrics: %+v", m)
	}
}

func TestAssetsFromSnapshot(t *testing.T) {
	snapshot := model.Snapshot{
		Positions: []model.Position{{
			ID:          "p1",
			Ticker:      "AAPL",
			AssetKind:   model.KindStock,
			Name:        "Apple",
			Quantity:    decimal.NewFromInt(10),
			AverageCost: decimal.NewFromInt(100),
		}},
		Prices: map[string]model.ResolvedPrice{
			"AAPL": {Ticker: "AAPL", Price: decimal.NewFromInt(120), Source: model.SourceLive},
		},
	}

	assets := analytics.AssetsFromSnapshot(snapshot)
	if len(assets) != 1 {
		t.Fatalf("expected 1 asset, got %d", len(assets))
	}
	a := assets[0]
	if a.Ticker != "AAPL" || a.AssetType != "STOCK" {
		t.Errorf("unexpected identity: %+v", a)
	}
	if a.CurrentPrice != 120 || a.Quantity != 10 {
		t.Errorf("unexpected pricing: %+v", a)
	}
	if a.ChangePercent != 20 {
		t.Errorf("expected 20%% change, got %v", a.ChangePercent)
	}
}
