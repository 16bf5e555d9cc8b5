package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockfolio/portfolio-engine/internal/model"
	"github.com/stockfolio/portfolio-engine/internal/store"
)

func newPosition(id, userID, tick string, createdAt time.Time) *model.Position {
	return &model.Position{
		ID:          id,
		PortfolioID: "pf1",
		UserID:      userID,
		Ticker:      tick,
		AssetKind:   model.KindStock,
		Name:        tick,
		Quantity:    decimal.NewFromInt(1),
		AverageCost: decimal.NewFromInt(100),
		CreatedAt:   createdAt,
	}
}

func TestMemoryStore_PositionLifecycle(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	if err := ms.InsertPosition(ctx, newPosition("p1", "user1", "AAPL", now)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := ms.GetPosition(ctx, "p1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Ticker != "AAPL" {
		t.Errorf("expected AAPL, got %s", got.Ticker)
	}

	err = ms.UpdatePosition(ctx, "p1", "Apple Inc.", decimal.NewFromInt(5), decimal.NewFromInt(120))
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	got, _ = ms.GetPosition(ctx, "p1")
	if got.Name != "Apple Inc." || !got.Quantity.Equal(decimal.NewFromInt(5)) {
		t.Errorf("update not applied: %+v", got)
	}
	// Identity is immutable through updates.
	if got.Ticker != "AAPL" || got.UserID != "user1" {
		t.Errorf("identity fields changed: %+v", got)
	}
}

func TestMemoryStore_UpdateMissingPosition(t *testing.T) {
	ms := store.NewMemoryStore()

	err := ms.UpdatePosition(context.Background(), "nope", "x", decimal.NewFromInt(1), decimal.NewFromInt(1))
	if !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()
	ms.InsertPosition(ctx, newPosition("p1", "user1", "AAPL", time.Now().UTC()))

	got, _ := ms.GetPosition(ctx, "p1")
	got.Name = "mutated"

	again, _ := ms.GetPosition(ctx, "p1")
	if again.Name == "mutated" {
		t.Error("stored position must not be affected by caller mutation")
	}
}

func TestMemoryStore_ListPositionsInsertionOrder(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()

	for _, tick := range []string{"AAPL", "TSLA", "005930"} {
		ms.InsertPosition(ctx, newPosition("p-"+tick, "user1", tick, now))
	}
	ms.InsertPosition(ctx, newPosition("p-other", "user2", "MSFT", now))

	positions, err := ms.ListPositionsByUser(ctx, "user1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(positions) != 3 {
		t.Fatalf("expected 3 positions, got %d", len(positions))
	}
	for i, want := range []string{"AAPL", "TSLA", "005930"} {
		if positions[i].Ticker != want {
			t.Errorf("position %d: expected %s, got %s", i, want, positions[i].Ticker)
		}
	}
}

func TestMemoryStore_EarliestPortfolioCreation(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()

	if _, err := ms.EarliestPortfolioCreation(ctx, "user1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound without portfolios, got %v", err)
	}

	older := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ms.CreatePortfolio(ctx, &model.Portfolio{ID: "pf1", UserID: "user1", Name: "a", CreatedAt: newer})
	ms.CreatePortfolio(ctx, &model.Portfolio{ID: "pf2", UserID: "user1", Name: "b", CreatedAt: older})

	got, err := ms.EarliestPortfolioCreation(ctx, "user1")
	if err != nil {
		t.Fatalf("earliest: %v", err)
	}
	if !got.Equal(older) {
		t.Errorf("expected %s, got %s", older, got)
	}
}

func TestMemoryStore_HasRewardOn_DayBoundary(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()

	at := time.Date(2026, 3, 1, 23, 50, 0, 0, time.UTC)
	ms.InsertRewardEntry(ctx, &model.RewardEntry{
		ID:           "r1",
		UserID:       "user1",
		ActivityKind: "dashboard_analysis",
		Amount:       decimal.NewFromInt(15),
		CreatedAt:    at,
	})

	sameDay, err := ms.HasRewardOn(ctx, "user1", "dashboard_analysis", time.Date(2026, 3, 1, 0, 5, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("has reward: %v", err)
	}
	if !sameDay {
		t.Error("entry at 23:50 should count for the same UTC day")
	}

	nextDay, _ := ms.HasRewardOn(ctx, "user1", "dashboard_analysis", time.Date(2026, 3, 2, 0, 5, 0, 0, time.UTC))
	if nextDay {
		t.Error("entry should not count for the next UTC day")
	}

	otherKind, _ := ms.HasRewardOn(ctx, "user1", "asset_added", at)
	if otherKind {
		t.Error("cap is per activity kind")
	}
}

func TestMemoryStore_LedgersNewestFirst(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		ms.InsertRewardEntry(ctx, &model.RewardEntry{
			ID:           string(rune('a' + i)),
			UserID:       "user1",
			ActivityKind: "asset_added",
			Amount:       decimal.NewFromInt(15),
			CreatedAt:    base.Add(time.Duration(i) * time.Hour),
		})
	}

	entries, err := ms.ListRewardsByUser(ctx, "user1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].ID != "c" || entries[2].ID != "a" {
		t.Errorf("expected newest first, got %s..%s", entries[0].ID, entries[2].ID)
	}
}

func TestMemoryStore_HasAchievement(t *testing.T) {
	ms := store.NewMemoryStore()
	ctx := context.Background()

	has, err := ms.HasAchievement(ctx, "user1", "return_rate_10percent")
	if err != nil || has {
		t.Fatalf("expected no achievement yet: has=%v err=%v", has, err)
	}

	ms.InsertAchievementEntry(ctx, &model.AchievementEntry{
		ID:              "a1",
		UserID:          "user1",
		AchievementKind: "return_rate_10percent",
		CreatedAt:       time.Now().UTC(),
	})

	has, _ = ms.HasAchievement(ctx, "user1", "return_rate_10percent")
	if !has {
		t.Error("expected achievement after insert")
	}

	other, _ := ms.HasAchievement(ctx, "user2", "return_rate_10percent")
	if other {
		t.Error("achievements are per user")
	}
}
