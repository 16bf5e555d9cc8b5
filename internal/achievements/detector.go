// Package achievements detects milestone conditions over a user's portfolio
// and mints the matching NFTs. Detection is re-runnable: the achievement
// ledger makes every kind once-ever, so evaluating twice is harmless.
package achievements

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stockfolio/portfolio-engine/internal/pricing"
	"github.com/stockfolio/portfolio-engine/internal/rewards"
	"github.com/stockfolio/portfolio-engine/internal/stats"
	"github.com/stockfolio/portfolio-engine/internal/store"
)

// KindPortfolioMaintained90Days marks 90 days since the user's first
// portfolio was created.
const KindPortfolioMaintained90Days = "portfolio_maintained_90days"

const maintenanceDays = 90

// returnTiers are the total-return thresholds, in percent, that earn an NFT.
// Each tier is its own once-ever achievement.
var returnTiers = []int{10, 20, 50, 100}

// ReturnRateKind names the achievement for a return threshold, e.g.
// "return_rate_20percent".
func ReturnRateKind(threshold int) string {
	return fmt.Sprintf("return_rate_%dpercent", threshold)
}

const evaluateTimeout = 30 * time.Second

// Detector evaluates achievement conditions for a user.
type Detector struct {
	store    store.Store
	resolver *pricing.Resolver
	rewards  *rewards.Service

	now func() time.Time
}

// NewDetector creates an achievement detector.
func NewDetector(st store.Store, resolver *pricing.Resolver, rw *rewards.Service) *Detector {
	return &Detector{
		store:    st,
		resolver: resolver,
		rewards:  rw,
		now:      time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (d *Detector) SetClock(now func() time.Time) { d.now = now }

// Evaluate checks every achievement condition for the user and mints the
// NFTs for the ones newly met. Users without a valid wallet or without any
// portfolio are skipped silently. Individual mint failures are logged and
// do not stop the remaining checks.
func (d *Detector) Evaluate(ctx context.Context, userID, wallet string) error {
	if !rewards.ValidWallet(wallet) {
		return nil
	}

	portfolios, err := d.store.ListPortfoliosByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("list portfolios: %w", err)
	}
	if len(portfolios) == 0 {
		return nil
	}

	d.checkMaintenance(ctx, userID, wallet, len(portfolios))
	d.checkReturnTiers(ctx, userID, wallet)
	return nil
}

// checkMaintenance mints the 90-day achievement once the user's oldest
// portfolio is old enough.
func (d *Detector) checkMaintenance(ctx context.Context, userID, wallet string, portfolioCount int) {
	earliest, err := d.store.EarliestPortfolioCreation(ctx, userID)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			slog.Warn("maintenance check failed", "user_id", userID, "err", err)
		}
		return
	}

	daysSince := int(d.now().UTC().Sub(earliest).Hours() / 24)
	if daysSince < maintenanceDays {
		return
	}

	metadata := map[string]any{
		"period":            maintenanceDays,
		"daysSinceCreation": daysSince,
		"portfolioCount":    portfolioCount,
	}
	if _, err := d.rewards.MintAchievementNFT(ctx, userID, wallet, KindPortfolioMaintained90Days, metadata); err != nil {
		slog.Warn("maintenance achievement mint failed", "user_id", userID, "err", err)
	}
}

// checkReturnTiers prices the user's positions once and mints every return
// tier the total return rate has crossed.
func (d *Detector) checkReturnTiers(ctx context.Context, userID, wallet string) {
	positions, err := d.store.ListPositionsByUser(ctx, userID)
	if err != nil {
		slog.Warn("return tier check failed", "user_id", userID, "err", err)
		return
	}
	if len(positions) == 0 {
		return
	}

	snapshot := d.resolver.SnapshotFor(ctx, positions)
	st := stats.Compute(snapshot)
	returnRate, _ := st.TotalReturnRate.Float64()

	for _, tier := range returnTiers {
		if returnRate < float64(tier) {
			continue
		}
		metadata := map[string]any{
			"returnRate":       returnRate,
			"threshold":        tier,
			"totalMarketValue": st.TotalMarketValue.String(),
			"gainLoss":         st.TotalGainLoss.String(),
		}
		if _, err := d.rewards.MintAchievementNFT(ctx, userID, wallet, ReturnRateKind(tier), metadata); err != nil {
			slog.Warn("return achievement mint failed", "user_id", userID, "tier", tier, "err", err)
		}
	}
}

// Dispatch runs Evaluate in the background, detached from the request that
// triggered it.
func (d *Detector) Dispatch(userID, wallet string) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("achievement dispatch panic", "user_id", userID, "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), evaluateTimeout)
		defer cancel()

		if err := d.Evaluate(ctx, userID, wallet); err != nil {
			slog.Warn("achievement evaluation failed", "user_id", userID, "err", err)
		}
	}()
}
