// Package dashboard provides the HTTP handlers and business logic for
// portfolio management, valuation, risk jobs, and reward history.
//
// All monetary values use shopspring/decimal — never float64 for money.
package dashboard

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockfolio/portfolio-engine/internal/achievements"
	"github.com/stockfolio/portfolio-engine/internal/analytics"
	"github.com/stockfolio/portfolio-engine/internal/model"
	"github.com/stockfolio/portfolio-engine/internal/pricing"
	"github.com/stockfolio/portfolio-engine/internal/rewards"
	"github.com/stockfolio/portfolio-engine/internal/stats"
	"github.com/stockfolio/portfolio-engine/internal/store"
	"github.com/stockfolio/portfolio-engine/internal/ticker"
)

// walletHeader carries the caller's wallet address. Optional: requests
// without it still work, they just never earn rewards.
const walletHeader = "X-Wallet-Address"

// Service handles portfolio operations.
type Service struct {
	store     store.Store
	resolver  *pricing.Resolver
	analytics *analytics.Client
	rewards   *rewards.Service
	detector  *achievements.Detector
	chain     *rewards.BlockchainClient
}

// NewService creates a new dashboard service.
func NewService(st store.Store, resolver *pricing.Resolver, ac *analytics.Client, rw *rewards.Service, det *achievements.Detector, chain *rewards.BlockchainClient) *Service {
	return &Service{
		store:     st,
		resolver:  resolver,
		analytics: ac,
		rewards:   rw,
		detector:  det,
		chain:     chain,
	}
}

// --- Request/Response types ---

// CreatePortfolioRequest is the JSON body for portfolio creation.
type CreatePortfolioRequest struct {
	Name string `json:"name"`
}

// AddAssetRequest is the JSON body for adding a position.
type AddAssetRequest struct {
	PortfolioID string          `json:"portfolio_id"`
	Ticker      string          `json:"ticker"`
	AssetKind   model.AssetKind `json:"asset_kind"`
	Name        string          `json:"name"`
	Quantity    decimal.Decimal `json:"quantity"`
	AverageCost decimal.Decimal `json:"average_cost"`
}

// UpdateAssetRequest is the JSON body for updating a position.
type UpdateAssetRequest struct {
	Name        string          `json:"name"`
	Quantity    decimal.Decimal `json:"quantity"`
	AverageCost decimal.Decimal `json:"average_cost"`
}

// StatsResponse is the dashboard valuation payload: aggregate stats plus
// the per-ticker price provenance.
type StatsResponse struct {
	model.PortfolioStats
	Prices map[string]model.ResolvedPrice `json:"prices"`
}

// RiskSubmitResponse is the 202 body for an accepted risk job.
type RiskSubmitResponse struct {
	JobID   string `json:"job_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// --- HTTP Handlers ---

// CreatePortfolio handles POST /api/v1/users/{userID}/portfolios
func (s *Service) CreatePortfolio(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req CreatePortfolioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		writeError(w, "name is required", http.StatusBadRequest)
		return
	}

	portfolio := &model.Portfolio{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      req.Name,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.store.CreatePortfolio(r.Context(), portfolio); err != nil {
		writeError(w, "failed to create portfolio", http.StatusInternalServerError)
		return
	}

	slog.Info("portfolio created", "id", portfolio.ID, "user", userID, "name", req.Name)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(portfolio)
}

// ListPortfolios handles GET /api/v1/users/{userID}/portfolios
func (s *Service) ListPortfolios(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	portfolios, err := s.store.ListPortfoliosByUser(r.Context(), userID)
	if err != nil {
		writeError(w, "failed to list portfolios", http.StatusInternalServerError)
		return
	}
	if portfolios == nil {
		portfolios = []model.Portfolio{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(portfolios)
}

// AddAsset handles POST /api/v1/users/{userID}/assets
func (s *Service) AddAsset(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	var req AddAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	// --- Input validation ---
	if req.PortfolioID == "" {
		writeError(w, "portfolio_id is required", http.StatusBadRequest)
		return
	}
	if !req.Quantity.IsPositive() {
		writeError(w, "quantity must be positive", http.StatusBadRequest)
		return
	}
	if !req.AverageCost.IsPositive() {
		writeError(w, "average_cost must be positive", http.StatusBadRequest)
		return
	}

	sym, err := ticker.Normalize(req.Ticker)
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	kind := req.AssetKind
	if kind == "" {
		kind = model.KindStock
	}

	position := &model.Position{
		ID:          uuid.New().String(),
		PortfolioID: req.PortfolioID,
		UserID:      userID,
		Ticker:      sym,
		AssetKind:   kind,
		Name:        req.Name,
		Quantity:    req.Quantity,
		AverageCost: req.AverageCost,
		CreatedAt:   time.Now().UTC(),
	}

	ctx := r.Context()
	if err := s.store.InsertPosition(ctx, position); err != nil {
		writeError(w, "failed to add asset", http.StatusInternalServerError)
		return
	}

	slog.Info("asset added",
		"id", position.ID,
		"user", userID,
		"ticker", sym,
		"quantity", req.Quantity.String(),
	)

	// Reward and achievement checks run detached: the asset is saved whether
	// or not the chain is reachable.
	if wallet := r.Header.Get(walletHeader); wallet != "" {
		positions, err := s.store.ListPositionsByUser(ctx, userID)
		if err == nil {
			s.rewards.DispatchActivityReward(userID, wallet, rewards.ActivityAssetAdded, positions)
		}
		s.detector.Dispatch(userID, wallet)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(position)
}

// UpdateAsset handles PUT /api/v1/assets/{assetID}
func (s *Service) UpdateAsset(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "assetID")

	var req UpdateAssetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !req.Quantity.IsPositive() {
		writeError(w, "quantity must be positive", http.StatusBadRequest)
		return
	}
	if !req.AverageCost.IsPositive() {
		writeError(w, "average_cost must be positive", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	if err := s.store.UpdatePosition(ctx, assetID, req.Name, req.Quantity, req.AverageCost); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, "asset not found", http.StatusNotFound)
			return
		}
		writeError(w, "failed to update asset", http.StatusInternalServerError)
		return
	}

	position, err := s.store.GetPosition(ctx, assetID)
	if err != nil {
		writeError(w, "failed to load asset", http.StatusInternalServerError)
		return
	}

	slog.Info("asset updated", "id", assetID, "quantity", req.Quantity.String())

	if wallet := r.Header.Get(walletHeader); wallet != "" {
		positions, err := s.store.ListPositionsByUser(ctx, position.UserID)
		if err == nil {
			s.rewards.DispatchActivityReward(position.UserID, wallet, rewards.ActivityPortfolioUpdated, positions)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(position)
}

// GetStats handles GET /api/v1/users/{userID}/dashboard/stats
// Prices every position (cache, live feeds, or fallback) and aggregates.
func (s *Service) GetStats(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	ctx := r.Context()

	positions, err := s.store.ListPositionsByUser(ctx, userID)
	if err != nil {
		writeError(w, "failed to load positions", http.StatusInternalServerError)
		return
	}

	snapshot := s.resolver.SnapshotFor(ctx, positions)
	result := stats.Compute(snapshot)
	if result.Allocations == nil {
		result.Allocations = []model.Allocation{}
	}
	if result.AssetReturns == nil {
		result.AssetReturns = []model.AssetReturn{}
	}

	if wallet := r.Header.Get(walletHeader); wallet != "" {
		s.rewards.DispatchActivityReward(userID, wallet, rewards.ActivityDashboardAnalysis, positions)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(StatsResponse{
		PortfolioStats: result,
		Prices:         snapshot.Prices,
	})
}

// SubmitRisk handles POST /api/v1/users/{userID}/risk
// Prices the portfolio, submits it for async risk computation, and returns
// 202 with the job ID to poll.
func (s *Service) SubmitRisk(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	ctx := r.Context()

	positions, err := s.store.ListPositionsByUser(ctx, userID)
	if err != nil {
		writeError(w, "failed to load positions", http.StatusInternalServerError)
		return
	}
	if len(positions) == 0 {
		writeError(w, "no assets to analyze", http.StatusBadRequest)
		return
	}

	snapshot := s.resolver.SnapshotFor(ctx, positions)
	jobID, err := s.analytics.Submit(ctx, analytics.AssetsFromSnapshot(snapshot))
	if err != nil {
		slog.Warn("risk job submission failed", "user", userID, "err", err)
		writeError(w, "risk analysis service unavailable", http.StatusBadGateway)
		return
	}

	slog.Info("risk job submitted", "user", userID, "job_id", jobID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(RiskSubmitResponse{
		JobID:   jobID,
		Status:  string(analytics.StatusPending),
		Message: "risk analysis started",
	})
}

// PollRisk handles GET /api/v1/risk/{jobID}
// Mirrors the job state: still computing → 202, done → 200 with metrics,
// upstream failure → 502.
func (s *Service) PollRisk(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")

	result, err := s.analytics.Poll(r.Context(), jobID)
	if err != nil {
		writeError(w, "failed to check risk job", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch result.Status {
	case analytics.StatusPending:
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{
			"job_id": jobID,
			"status": string(analytics.StatusPending),
		})
	case analytics.StatusFailed:
		w.WriteHeader(http.StatusBadGateway)
		json.NewEncoder(w).Encode(map[string]string{
			"job_id": jobID,
			"status": string(analytics.StatusFailed),
			"error":  result.Reason,
		})
	default:
		json.NewEncoder(w).Encode(result.Metrics)
	}
}

// GetRiskSync handles GET /api/v1/users/{userID}/risk/sync
// Blocking risk computation; degrades to the neutral default on failure.
func (s *Service) GetRiskSync(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	ctx := r.Context()

	positions, err := s.store.ListPositionsByUser(ctx, userID)
	if err != nil {
		writeError(w, "failed to load positions", http.StatusInternalServerError)
		return
	}

	var metrics model.RiskMetrics
	if len(positions) == 0 {
		metrics = analytics.NeutralRiskMetrics()
	} else {
		snapshot := s.resolver.SnapshotFor(ctx, positions)
		metrics = s.analytics.ComputeSync(ctx, analytics.AssetsFromSnapshot(snapshot))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(metrics)
}

// ListRewards handles GET /api/v1/users/{userID}/rewards
func (s *Service) ListRewards(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	entries, err := s.rewards.ListRewards(r.Context(), userID)
	if err != nil {
		writeError(w, "failed to list rewards", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []model.RewardEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// ListAchievements handles GET /api/v1/users/{userID}/achievements
func (s *Service) ListAchievements(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	entries, err := s.rewards.ListAchievements(r.Context(), userID)
	if err != nil {
		writeError(w, "failed to list achievements", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []model.AchievementEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

// GetWalletBalance handles GET /api/v1/wallet/{address}/balance
func (s *Service) GetWalletBalance(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	if !rewards.ValidWallet(address) {
		writeError(w, "invalid wallet address", http.StatusBadRequest)
		return
	}

	balance, err := s.chain.TokenBalance(r.Context(), address)
	if err != nil {
		writeError(w, "blockchain service unavailable", http.StatusBadGateway)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(balance)
}

// GetWalletNFTs handles GET /api/v1/wallet/{address}/nfts
func (s *Service) GetWalletNFTs(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	if !rewards.ValidWallet(address) {
		writeError(w, "invalid wallet address", http.StatusBadRequest)
		return
	}

	owned, err := s.chain.OwnedNFTs(r.Context(), address)
	if err != nil {
		writeError(w, "blockchain service unavailable", http.StatusBadGateway)
		return
	}
	if owned == nil {
		owned = []rewards.OwnedNFT{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(owned)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
