package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockfolio/portfolio-engine/internal/model"
)

// MemoryStore implements Store with in-memory maps. Used for testing
// and development. Not suitable for production (no persistence).
type MemoryStore struct {
	mu                sync.RWMutex
	portfolios        map[string]*model.Portfolio
	positions         map[string]*model.Position
	positionOrder     []string
	rewardLedger      []model.RewardEntry
	achievementLedger []model.AchievementEntry
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		portfolios: make(map[string]*model.Portfolio),
		positions:  make(map[string]*model.Position),
	}
}

func (s *MemoryStore) CreatePortfolio(_ context.Context, p *model.Portfolio) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Store a copy to avoid external mutation.
	copy := *p
	s.portfolios[p.ID] = &copy
	return nil
}

func (s *MemoryStore) ListPortfoliosByUser(_ context.Context, userID string) ([]model.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var portfolios []model.Portfolio
	for _, p := range s.portfolios {
		if p.UserID == userID {
			portfolios = append(portfolios, *p)
		}
	}
	// Oldest first, matching the SQL ordering.
	sort.Slice(portfolios, func(i, j int) bool {
		return portfolios[i].CreatedAt.Before(portfolios[j].CreatedAt)
	})
	return portfolios, nil
}

func (s *MemoryStore) EarliestPortfolioCreation(_ context.Context, userID string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var earliest time.Time
	found := false
	for _, p := range s.portfolios {
		if p.UserID != userID {
			continue
		}
		if !found || p.CreatedAt.Before(earliest) {
			earliest = p.CreatedAt
			found = true
		}
	}
	if !found {
		return time.Time{}, ErrNotFound
	}
	return earliest, nil
}

func (s *MemoryStore) InsertPosition(_ context.Context, p *model.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *p
	s.positions[p.ID] = &copy
	s.positionOrder = append(s.positionOrder, p.ID)
	return nil
}

func (s *MemoryStore) GetPosition(_ context.Context, id string) (*model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.positions[id]
	if !ok {
		return nil, ErrNotFound
	}
	copy := *p
	return &copy, nil
}

func (s *MemoryStore) UpdatePosition(_ context.Context, id, name string, quantity, averageCost decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.positions[id]
	if !ok {
		return ErrNotFound
	}
	p.Name = name
	p.Quantity = quantity
	p.AverageCost = averageCost
	return nil
}

func (s *MemoryStore) ListPositionsByUser(_ context.Context, userID string) ([]model.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var positions []model.Position
	for _, id := range s.positionOrder {
		p := s.positions[id]
		if p.UserID == userID {
			positions = append(positions, *p)
		}
	}
	return positions, nil
}

func (s *MemoryStore) InsertRewardEntry(_ context.Context, e *model.RewardEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rewardLedger = append(s.rewardLedger, *e)
	return nil
}

func (s *MemoryStore) HasRewardOn(_ context.Context, userID, activityKind string, day time.Time) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dayStart := day.UTC().Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)

	for _, e := range s.rewardLedger {
		if e.UserID != userID || e.ActivityKind != activityKind {
			continue
		}
		at := e.CreatedAt.UTC()
		if !at.Before(dayStart) && at.Before(dayEnd) {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) ListRewardsByUser(_ context.Context, userID string) ([]model.RewardEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Newest first: walk the append-only ledger backwards.
	var entries []model.RewardEntry
	for i := len(s.rewardLedger) - 1; i >= 0; i-- {
		if s.rewardLedger[i].UserID == userID {
			entries = append(entries, s.rewardLedger[i])
		}
	}
	return entries, nil
}

func (s *MemoryStore) InsertAchievementEntry(_ context.Context, e *model.AchievementEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.achievementLedger = append(s.achievementLedger, *e)
	return nil
}

func (s *MemoryStore) HasAchievement(_ context.Context, userID, achievementKind string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, e := range s.achievementLedger {
		if e.UserID == userID && e.AchievementKind == achievementKind {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) ListAchievementsByUser(_ context.Context, userID string) ([]model.AchievementEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var entries []model.AchievementEntry
	for i := len(s.achievementLedger) - 1; i >= 0; i-- {
		if s.achievementLedger[i].UserID == userID {
			entries = append(entries, s.achievementLedger[i])
		}
	}
	return entries, nil
}
