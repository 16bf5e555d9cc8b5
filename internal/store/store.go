// Package store defines the persistence interface for the portfolio engine.
// Implementations include PostgreSQL (source of truth) and in-memory (for
// testing and cache-less development).
package store

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockfolio/portfolio-engine/internal/model"
)

// ErrNotFound means the requested row does not exist.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence interface.
type Store interface {
	// --- Portfolios ---

	// CreatePortfolio persists a new portfolio.
	CreatePortfolio(ctx context.Context, p *model.Portfolio) error

	// ListPortfoliosByUser returns a user's portfolios, oldest first.
	ListPortfoliosByUser(ctx context.Context, userID string) ([]model.Portfolio, error)

	// EarliestPortfolioCreation returns the creation time of the user's
	// oldest portfolio, or ErrNotFound if they have none.
	EarliestPortfolioCreation(ctx context.Context, userID string) (time.Time, error)

	// --- Positions ---

	// InsertPosition persists a new position.
	InsertPosition(ctx context.Context, p *model.Position) error

	// GetPosition retrieves a position by ID.
	GetPosition(ctx context.Context, id string) (*model.Position, error)

	// UpdatePosition updates the mutable fields of a position.
	UpdatePosition(ctx context.Context, id, name string, quantity, averageCost decimal.Decimal) error

	// ListPositionsByUser returns all of a user's positions across
	// portfolios, in insertion order.
	ListPositionsByUser(ctx context.Context, userID string) ([]model.Position, error)

	// --- Reward ledger (append-only) ---

	// InsertRewardEntry appends an immutable reward record.
	InsertRewardEntry(ctx context.Context, e *model.RewardEntry) error

	// HasRewardOn reports whether the user already has a reward entry for
	// the activity kind on the given calendar day (UTC). This query is the
	// sole source of truth for the daily cap.
	HasRewardOn(ctx context.Context, userID, activityKind string, day time.Time) (bool, error)

	// ListRewardsByUser returns the user's reward history, newest first.
	ListRewardsByUser(ctx context.Context, userID string) ([]model.RewardEntry, error)

	// --- Achievement ledger (append-only) ---

	// InsertAchievementEntry appends an immutable achievement record.
	InsertAchievementEntry(ctx context.Context, e *model.AchievementEntry) error

	// HasAchievement reports whether the user ever earned the achievement
	// kind. Existence makes the kind permanently ineligible for re-minting.
	HasAchievement(ctx context.Context, userID, achievementKind string) (bool, error)

	// ListAchievementsByUser returns the user's achievements, newest first.
	ListAchievementsByUser(ctx context.Context, userID string) ([]model.AchievementEntry, error)
}
