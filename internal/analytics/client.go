// Package analytics drives the risk-computation protocol against the slow
// external analytics service.
//
// The async path is a three-state protocol: submit a snapshot, then poll
// until the job settles. "Still computing" is a domain-level pending state,
// never an error. The sync path blocks, and on total failure degrades to a
// neutral default because risk metrics are advisory, not critical-path.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockfolio/portfolio-engine/internal/metrics"
	"github.com/stockfolio/portfolio-engine/internal/model"
)

const syncTimeout = 30 * time.Second

var hundred = decimal.NewFromInt(100)

// ErrJobSubmissionFailed means the analytics service did not issue a job ID.
// Not retried automatically; the caller decides.
var ErrJobSubmissionFailed = errors.New("analytics: job submission failed")

// JobStatus tags a poll result.
type JobStatus string

const (
	StatusPending   JobStatus = "PENDING"
	StatusCompleted JobStatus = "COMPLETED"
	StatusFailed    JobStatus = "FAILED"
)

// PollResult is the tagged outcome of one poll. Metrics is set only when
// Status is COMPLETED; Reason only when FAILED.
type PollResult struct {
	Status  JobStatus
	Metrics model.RiskMetrics
	Reason  string
}

// Asset is the per-position payload the analytics service expects.
type Asset struct {
	Ticker        string  `json:"ticker"`
	AssetType     string  `json:"assetType"`
	Name          string  `json:"name"`
	Quantity      float64 `json:"quantity"`
	CurrentPrice  float64 `json:"currentPrice"`
	ChangePercent float64 `json:"changePercent"`
}

// AssetsFromSnapshot converts a priced snapshot into the analytics payload.
// ChangePercent is measured against the position's average cost.
func AssetsFromSnapshot(snapshot model.Snapshot) []Asset {
	assets := make([]Asset, 0, len(snapshot.Positions))
	for _, p := range snapshot.Positions {
		current := snapshot.PriceFor(p)
		changePercent := 0.0
		if !p.AverageCost.IsZero() {
			changePercent, _ = current.Sub(p.AverageCost).
				Div(p.AverageCost).Mul(hundred).Float64()
		}
		quantity, _ := p.Quantity.Float64()
		price, _ := current.Float64()
		assets = append(assets, Asset{
			Ticker:        p.Ticker,
			AssetType:     string(p.AssetKind),
			Name:          p.Name,
			Quantity:      quantity,
			CurrentPrice:  price,
			ChangePercent: changePercent,
		})
	}
	return assets
}

// Client calls the analytics service.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates an analytics client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{},
	}
}

type submitResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Submit posts a snapshot for async risk computation and returns the job ID.
// POST /api/analytics/risk.
func (c *Client) Submit(ctx context.Context, assets []Asset) (string, error) {
	var resp submitResponse
	status, err := c.postJSON(ctx, c.baseURL+"/api/analytics/risk", assets, &resp)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrJobSubmissionFailed, err)
	}
	if status >= http.StatusBadRequest || resp.JobID == "" {
		return "", fmt.Errorf("%w: status %d, job_id %q", ErrJobSubmissionFailed, status, resp.JobID)
	}

	metrics.RiskJobsSubmitted.Inc()
	return resp.JobID, nil
}

// Poll checks one job. GET /api/analytics/risk/{jobID}; 202 is the reserved
// "not ready yet" signal and maps to StatusPending. An upstream failure body
// maps to StatusFailed. Polling is caller-driven: abandoning a job is fine,
// the service expires it on its own retention schedule.
func (c *Client) Poll(ctx context.Context, jobID string) (PollResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/analytics/risk/"+jobID, nil)
	if err != nil {
		return PollResult{}, fmt.Errorf("analytics: build poll request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return PollResult{}, fmt.Errorf("analytics: poll job %s: %w", jobID, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusAccepted:
		io.Copy(io.Discard, resp.Body)
		return PollResult{Status: StatusPending}, nil

	case resp.StatusCode == http.StatusOK:
		var m model.RiskMetrics
		if err := json.NewDecoder(resp.Body).Decode(&m); err != nil {
			return PollResult{}, fmt.Errorf("analytics: decode job %s result: %w", jobID, err)
		}
		return PollResult{Status: StatusCompleted, Metrics: m}, nil

	case resp.StatusCode == http.StatusInternalServerError:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return PollResult{Status: StatusFailed, Reason: string(body)}, nil

	default:
		io.Copy(io.Discard, resp.Body)
		return PollResult{}, fmt.Errorf("analytics: poll job %s: unexpected status %d", jobID, resp.StatusCode)
	}
}

// ComputeSync computes risk metrics synchronously, for callers that do not
// want polling overhead. POST /api/analytics/risk/sync. On any failure it
// returns the neutral default instead of an error.
func (c *Client) ComputeSync(ctx context.Context, assets []Asset) model.RiskMetrics {
	ctx, cancel := context.WithTimeout(ctx, syncTimeout)
	defer cancel()

	var m model.RiskMetrics
	status, err := c.postJSON(ctx, c.baseURL+"/api/analytics/risk/sync", assets, &m)
	if err != nil || status != http.StatusOK {
		slog.Warn("sync risk computation failed, using neutral default",
			"status", status, "err", err)
		return NeutralRiskMetrics()
	}
	return m
}

// NeutralRiskMetrics is the defined degradation value for risk reads.
func NeutralRiskMetrics() model.RiskMetrics {
	return model.RiskMetrics{
		Volatility:     0,
		MDD:            0,
		Beta:           1,
		SharpeRatio:    0,
		RiskLevel:      "low",
		Recommendation: "insufficient data",
	}
}

func (c *Client) postJSON(ctx context.Context, url string, in, out any) (int, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return 0, fmt.Errorf("analytics: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("analytics: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("analytics: request %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("analytics: decode %s: %w", url, err)
	}
	return resp.StatusCode, nil
}
