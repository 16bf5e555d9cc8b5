// Package model defines the core domain types shared across the portfolio
// engine. All monetary values use shopspring/decimal — never float64 for money.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AssetKind classifies a position for allocation breakdowns.
type AssetKind string

const (
	KindStock      AssetKind = "STOCK"
	KindCoin       AssetKind = "COIN"
	KindStablecoin AssetKind = "STABLECOIN"
	KindDefi       AssetKind = "DEFI"
	KindNFT        AssetKind = "NFT"
	KindOther      AssetKind = "OTHER"
)

// Position is one holding inside a portfolio. Identity (ID, ticker) is
// immutable; name, quantity and cost change only through validated updates.
type Position struct {
	ID          string          `json:"id" db:"id"`
	PortfolioID string          `json:"portfolio_id" db:"portfolio_id"`
	UserID      string          `json:"user_id" db:"user_id"`
	Ticker      string          `json:"ticker" db:"ticker"`
	AssetKind   AssetKind       `json:"asset_kind" db:"asset_kind"`
	Name        string          `json:"name" db:"name"`
	Quantity    decimal.Decimal `json:"quantity" db:"quantity"`
	AverageCost decimal.Decimal `json:"average_cost" db:"average_cost"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
}

// Portfolio groups positions for one user.
type Portfolio struct {
	ID        string    `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// PriceSource records where a resolved price came from.
type PriceSource string

const (
	SourceCache    PriceSource = "CACHE"
	SourceLive     PriceSource = "LIVE"
	SourceFallback PriceSource = "FALLBACK"
)

// ResolvedPrice is the per-request price for one ticker. Ephemeral; never
// persisted.
type ResolvedPrice struct {
	Ticker string          `json:"ticker"`
	Price  decimal.Decimal `json:"price"`
	Source PriceSource     `json:"source"`
}

// Snapshot is the priced view of a user's positions, the input to stats and
// risk computation. Built fresh per call.
type Snapshot struct {
	Positions []Position
	Prices    map[string]ResolvedPrice
}

// PriceFor returns the resolved price for a position, falling back to its
// average cost so a snapshot is always fully priced.
func (s Snapshot) PriceFor(p Position) decimal.Decimal {
	if rp, ok := s.Prices[p.Ticker]; ok {
		return rp.Price
	}
	return p.AverageCost
}

// Allocation is one slice of the asset-kind breakdown.
type Allocation struct {
	AssetKind  AssetKind       `json:"asset_kind"`
	Value      decimal.Decimal `json:"value"`
	Percentage decimal.Decimal `json:"percentage"`
}

// AssetReturn is the per-position row of the stats response.
type AssetReturn struct {
	PositionID  string          `json:"position_id"`
	Ticker      string          `json:"ticker"`
	Name        string          `json:"name"`
	AssetKind   AssetKind       `json:"asset_kind"`
	Cost        decimal.Decimal `json:"cost"`
	MarketValue decimal.Decimal `json:"market_value"`
	GainLoss    decimal.Decimal `json:"gain_loss"`
	ReturnRate  decimal.Decimal `json:"return_rate"`
}

// PortfolioStats is the derived, stateless aggregate. Recomputed every call.
type PortfolioStats struct {
	TotalMarketValue decimal.Decimal `json:"total_market_value"`
	TotalCost        decimal.Decimal `json:"total_cost"`
	TotalGainLoss    decimal.Decimal `json:"total_gain_loss"`
	TotalReturnRate  decimal.Decimal `json:"total_return_rate"`
	Allocations      []Allocation    `json:"allocations"`
	AssetReturns     []AssetReturn   `json:"asset_returns"`
}

// RiskMetrics are advisory risk indicators from the analytics service.
// Volatility, MDD, beta and sharpe are analytic ratios, not money.
type RiskMetrics struct {
	Volatility     float64 `json:"volatility"`
	MDD            float64 `json:"mdd"`
	Beta           float64 `json:"beta"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	RiskLevel      string  `json:"risk_level"`
	Recommendation string  `json:"recommendation"`
	LastUpdated    string  `json:"last_updated,omitempty"`
}

// RewardEntry is an immutable record of a successful activity-reward mint.
// One row per mint; the same-day duplicate check is a query over these rows.
type RewardEntry struct {
	ID             string          `json:"id" db:"id"`
	UserID         string          `json:"user_id" db:"user_id"`
	WalletAddress  string          `json:"wallet_address" db:"wallet_address"`
	ActivityKind   string          `json:"activity_kind" db:"activity_kind"`
	Amount         decimal.Decimal `json:"amount" db:"amount"`
	TxHash         string          `json:"tx_hash" db:"tx_hash"`
	DiversityScore float64         `json:"diversity_score" db:"diversity_score"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
}

// AchievementEntry is an immutable record of a minted achievement NFT.
// Any row for (UserID, AchievementKind) makes that kind permanently
// ineligible for re-minting.
type AchievementEntry struct {
	ID              string         `json:"id" db:"id"`
	UserID          string         `json:"user_id" db:"user_id"`
	WalletAddress   string         `json:"wallet_address" db:"wallet_address"`
	AchievementKind string         `json:"achievement_kind" db:"achievement_kind"`
	TokenID         string         `json:"token_id" db:"token_id"`
	TxHash          string         `json:"tx_hash" db:"tx_hash"`
	Metadata        map[string]any `json:"metadata" db:"metadata"`
	CreatedAt       time.Time      `json:"created_at" db:"created_at"`
}
