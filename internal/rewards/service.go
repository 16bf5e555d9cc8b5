package rewards

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockfolio/portfolio-engine/internal/metrics"
	"github.com/stockfolio/portfolio-engine/internal/model"
	"github.com/stockfolio/portfolio-engine/internal/store"
)

// Activity kinds that earn token rewards.
const (
	ActivityAssetAdded        = "asset_added"
	ActivityPortfolioUpdated  = "portfolio_updated"
	ActivityDashboardAnalysis = "dashboard_analysis"
)

// dailyCapped lists the activity kinds limited to one reward per UTC
// calendar day. The rest mint on every occurrence.
var dailyCapped = map[string]bool{
	ActivityDashboardAnalysis: true,
}

const dispatchTimeout = 30 * time.Second

var (
	baseReward = decimal.NewFromInt(10)
	one        = decimal.NewFromInt(1)

	// An EVM address: 0x followed by exactly 40 hex digits.
	walletRegex = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
)

// ValidWallet reports whether addr is a well-formed wallet address.
func ValidWallet(addr string) bool {
	return walletRegex.MatchString(addr)
}

// DiversityScore rewards holding multiple asset kinds. The kind component
// saturates at five distinct kinds; the constant 0.3 keeps even a
// single-asset portfolio above zero. Result is in [0.3, 0.8] before the
// final cap at 1.0.
func DiversityScore(positions []model.Position) float64 {
	kinds := make(map[model.AssetKind]bool)
	for _, p := range positions {
		kinds[p.AssetKind] = true
	}

	score := float64(len(kinds)) / 5.0
	if score > 0.5 {
		score = 0.5
	}
	score += 0.3
	if score > 1.0 {
		score = 1.0
	}
	return score
}

// RewardAmount computes the token amount for a mint: base 10, scaled by
// (1 + diversity score), so always in [10, 20].
func RewardAmount(score float64) decimal.Decimal {
	return baseReward.Mul(one.Add(decimal.NewFromFloat(score)))
}

// Chain is the subset of the blockchain gateway the service needs.
type Chain interface {
	MintToken(ctx context.Context, wallet string, amount decimal.Decimal, activity, idempotencyKey string) (*TokenReceipt, error)
	MintNFT(ctx context.Context, wallet, achievementKind string, metadata map[string]any, idempotencyKey string) (*NFTReceipt, error)
}

// Service mints rewards and achievements and maintains their ledgers.
type Service struct {
	store store.Store
	chain Chain
	hub   *Hub

	now func() time.Time
}

// NewService creates a rewards service. hub may be nil when real-time
// notifications are disabled.
func NewService(st store.Store, chain Chain, hub *Hub) *Service {
	return &Service{
		store: st,
		chain: chain,
		hub:   hub,
		now:   time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// MintActivityReward runs the reward pipeline for one user activity:
// validate the wallet, enforce the daily cap, score the portfolio, mint on
// chain, then append to the ledger. A nil entry with nil error means the
// mint was skipped, not failed.
//
// The ledger write happens after the chain call succeeds. If the process
// dies between the two, the worst case is a reward minted but not recorded;
// the idempotency key on the mint request keeps a retry from paying twice.
func (s *Service) MintActivityReward(ctx context.Context, userID, wallet, activityKind string, positions []model.Position) (*model.RewardEntry, error) {
	if !ValidWallet(wallet) {
		metrics.RewardsSkipped.WithLabelValues("invalid_wallet").Inc()
		slog.Debug("reward skipped: no valid wallet", "user_id", userID, "activity", activityKind)
		return nil, nil
	}

	now := s.now().UTC()
	if dailyCapped[activityKind] {
		already, err := s.store.HasRewardOn(ctx, userID, activityKind, now)
		if err != nil {
			return nil, fmt.Errorf("check daily cap: %w", err)
		}
		if already {
			metrics.RewardsSkipped.WithLabelValues("daily_cap").Inc()
			slog.Debug("reward skipped: daily cap reached", "user_id", userID, "activity", activityKind)
			return nil, nil
		}
	}

	score := DiversityScore(positions)
	amount := RewardAmount(score)
	key := fmt.Sprintf("%s:%s:%s", userID, activityKind, now.Format("2006-01-02"))

	receipt, err := s.chain.MintToken(ctx, wallet, amount, activityKind, key)
	if err != nil {
		metrics.RewardsSkipped.WithLabelValues("chain_error").Inc()
		return nil, fmt.Errorf("mint activity reward: %w", err)
	}

	entry := &model.RewardEntry{
		ID:             uuid.New().String(),
		UserID:         userID,
		WalletAddress:  wallet,
		ActivityKind:   activityKind,
		Amount:         amount,
		TxHash:         receipt.TransactionHash,
		DiversityScore: score,
		CreatedAt:      now,
	}
	if err := s.store.InsertRewardEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("record reward: %w", err)
	}

	metrics.RewardsMinted.WithLabelValues(activityKind).Inc()
	slog.Info("activity reward minted",
		"user_id", userID, "activity", activityKind,
		"amount", amount.String(), "tx", receipt.TransactionHash)

	if s.hub != nil {
		s.hub.Broadcast(Notification{
			Type:     "reward_minted",
			UserID:   userID,
			Kind:     activityKind,
			Amount:   amount.String(),
			TxHash:   receipt.TransactionHash,
			MintedAt: now.Format(time.RFC3339),
		})
	}
	return entry, nil
}

// MintAchievementNFT mints an achievement NFT once per (user, kind), ever.
// An existing ledger row makes the kind permanently ineligible.
func (s *Service) MintAchievementNFT(ctx context.Context, userID, wallet, achievementKind string, metadata map[string]any) (*model.AchievementEntry, error) {
	if !ValidWallet(wallet) {
		slog.Debug("achievement skipped: no valid wallet", "user_id", userID, "kind", achievementKind)
		return nil, nil
	}

	earned, err := s.store.HasAchievement(ctx, userID, achievementKind)
	if err != nil {
		return nil, fmt.Errorf("check achievement: %w", err)
	}
	if earned {
		return nil, nil
	}

	key := fmt.Sprintf("%s:%s", userID, achievementKind)
	receipt, err := s.chain.MintNFT(ctx, wallet, achievementKind, metadata, key)
	if err != nil {
		return nil, fmt.Errorf("mint achievement nft: %w", err)
	}

	entry := &model.AchievementEntry{
		ID:              uuid.New().String(),
		UserID:          userID,
		WalletAddress:   wallet,
		AchievementKind: achievementKind,
		TokenID:         receipt.TokenID,
		TxHash:          receipt.TransactionHash,
		Metadata:        metadata,
		CreatedAt:       s.now().UTC(),
	}
	if err := s.store.InsertAchievementEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("record achievement: %w", err)
	}

	metrics.AchievementsMinted.WithLabelValues(achievementKind).Inc()
	slog.Info("achievement nft minted",
		"user_id", userID, "kind", achievementKind,
		"token_id", receipt.TokenID, "tx", receipt.TransactionHash)

	if s.hub != nil {
		s.hub.Broadcast(Notification{
			Type:     "achievement_minted",
			UserID:   userID,
			Kind:     achievementKind,
			TxHash:   receipt.TransactionHash,
			MintedAt: entry.CreatedAt.Format(time.RFC3339),
		})
	}
	return entry, nil
}

// DispatchActivityReward runs MintActivityReward in the background, detached
// from the request that triggered it. Failures are logged and dropped: the
// reward is a side effect, never part of the user-facing result.
func (s *Service) DispatchActivityReward(userID, wallet, activityKind string, positions []model.Position) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("reward dispatch panic", "user_id", userID, "activity", activityKind, "panic", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), dispatchTimeout)
		defer cancel()

		if _, err := s.MintActivityReward(ctx, userID, wallet, activityKind, positions); err != nil {
			slog.Warn("reward dispatch failed", "user_id", userID, "activity", activityKind, "err", err)
		}
	}()
}

// ListRewards returns a user's reward history, newest first.
func (s *Service) ListRewards(ctx context.Context, userID string) ([]model.RewardEntry, error) {
	return s.store.ListRewardsByUser(ctx, userID)
}

// ListAchievements returns a user's achievements, newest first.
func (s *Service) ListAchievements(ctx context.Context, userID string) ([]model.AchievementEntry, error) {
	return s.store.ListAchievementsByUser(ctx, userID)
}
