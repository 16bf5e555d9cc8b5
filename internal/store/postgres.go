package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/stockfolio/portfolio-engine/internal/model"
)

// PostgresStore implements Store using PostgreSQL as the source of truth.
// All monetary values are stored as NUMERIC for exact decimal precision.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// --- Portfolios ---

func (s *PostgresStore) CreatePortfolio(ctx context.Context, p *model.Portfolio) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO portfolios (id, user_id, name, created_at)
		 VALUES ($1, $2, $3, $4)`,
		p.ID, p.UserID, p.Name, p.CreatedAt,
	)
	return err
}

func (s *PostgresStore) ListPortfoliosByUser(ctx context.Context, userID string) ([]model.Portfolio, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, name, created_at
		 FROM portfolios WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var portfolios []model.Portfolio
	for rows.Next() {
		var p model.Portfolio
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.CreatedAt); err != nil {
			return nil, err
		}
		portfolios = append(portfolios, p)
	}
	return portfolios, rows.Err()
}

func (s *PostgresStore) EarliestPortfolioCreation(ctx context.Context, userID string) (time.Time, error) {
	var created time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT created_at FROM portfolios
		 WHERE user_id = $1 ORDER BY created_at LIMIT 1`, userID).
		Scan(&created)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return time.Time{}, ErrNotFound
		}
		return time.Time{}, err
	}
	return created, nil
}

// --- Positions ---

func (s *PostgresStore) InsertPosition(ctx context.Context, p *model.Position) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO positions (id, portfolio_id, user_id, ticker, asset_kind, name, quantity, average_cost, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::NUMERIC, $8::NUMERIC, $9)`,
		p.ID, p.PortfolioID, p.UserID, p.Ticker, p.AssetKind, p.Name,
		p.Quantity.String(), p.AverageCost.String(), p.CreatedAt,
	)
	return err
}

func (s *PostgresStore) GetPosition(ctx context.Context, id string) (*model.Position, error) {
	var p model.Position
	var qty, cost string

	err := s.pool.QueryRow(ctx,
		`SELECT id, portfolio_id, user_id, ticker, asset_kind, name,
		        quantity::TEXT, average_cost::TEXT, created_at
		 FROM positions WHERE id = $1`, id).
		Scan(&p.ID, &p.PortfolioID, &p.UserID, &p.Ticker, &p.AssetKind, &p.Name,
			&qty, &cost, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get position %s: %w", id, err)
	}

	p.Quantity, _ = decimal.NewFromString(qty)
	p.AverageCost, _ = decimal.NewFromString(cost)
	return &p, nil
}

func (s *PostgresStore) UpdatePosition(ctx context.Context, id, name string, quantity, averageCost decimal.Decimal) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE positions
		 SET name = $2, quantity = $3::NUMERIC, average_cost = $4::NUMERIC
		 WHERE id = $1`,
		id, name, quantity.String(), averageCost.String(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListPositionsByUser(ctx context.Context, userID string) ([]model.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, portfolio_id, user_id, ticker, asset_kind, name,
		        quantity::TEXT, average_cost::TEXT, created_at
		 FROM positions WHERE user_id = $1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var positions []model.Position
	for rows.Next() {
		var p model.Position
		var qty, cost string
		if err := rows.Scan(&p.ID, &p.PortfolioID, &p.UserID, &p.Ticker, &p.AssetKind, &p.Name,
			&qty, &cost, &p.CreatedAt); err != nil {
			return nil, err
		}
		p.Quantity, _ = decimal.NewFromString(qty)
		p.AverageCost, _ = decimal.NewFromString(cost)
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// --- Reward ledger ---

func (s *PostgresStore) InsertRewardEntry(ctx context.Context, e *model.RewardEntry) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO reward_ledger (id, user_id, wallet_address, activity_kind, amount, tx_hash, diversity_score, created_at)
		 VALUES ($1, $2, $3, $4, $5::NUMERIC, $6, $7, $8)`,
		e.ID, e.UserID, e.WalletAddress, e.ActivityKind,
		e.Amount.String(), e.TxHash, e.DiversityScore, e.CreatedAt,
	)
	return err
}

func (s *PostgresStore) HasRewardOn(ctx context.Context, userID, activityKind string, day time.Time) (bool, error) {
	dayStart := day.UTC().Truncate(24 * time.Hour)
	dayEnd := dayStart.Add(24 * time.Hour)

	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM reward_ledger
		 WHERE user_id = $1 AND activity_kind = $2
		   AND created_at >= $3 AND created_at < $4`,
		userID, activityKind, dayStart, dayEnd).
		Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *PostgresStore) ListRewardsByUser(ctx context.Context, userID string) ([]model.RewardEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, wallet_address, activity_kind,
		        amount::TEXT, tx_hash, diversity_score, created_at
		 FROM reward_ledger WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.RewardEntry
	for rows.Next() {
		var e model.RewardEntry
		var amount string
		if err := rows.Scan(&e.ID, &e.UserID, &e.WalletAddress, &e.ActivityKind,
			&amount, &e.TxHash, &e.DiversityScore, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Amount, _ = decimal.NewFromString(amount)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// --- Achievement ledger ---

func (s *PostgresStore) InsertAchievementEntry(ctx context.Context, e *model.AchievementEntry) error {
	metadata, err := json.Marshal(e.Metadata)
	if err != nil {
		return fmt.Errorf("encode achievement metadata: %w", err)
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO achievement_ledger (id, user_id, wallet_address, achievement_kind, token_id, tx_hash, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.ID, e.UserID, e.WalletAddress, e.AchievementKind,
		e.TokenID, e.TxHash, metadata, e.CreatedAt,
	)
	return err
}

func (s *PostgresStore) HasAchievement(ctx context.Context, userID, achievementKind string) (bool, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM achievement_ledger
		 WHERE user_id = $1 AND achievement_kind = $2`,
		userID, achievementKind).
		Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *PostgresStore) ListAchievementsByUser(ctx context.Context, userID string) ([]model.AchievementEntry, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, wallet_address, achievement_kind, token_id, tx_hash, metadata, created_at
		 FROM achievement_ledger WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.AchievementEntry
	for rows.Next() {
		var e model.AchievementEntry
		var metadata []byte
		if err := rows.Scan(&e.ID, &e.UserID, &e.WalletAddress, &e.AchievementKind,
			&e.TokenID, &e.TxHash, &metadata, &e.CreatedAt); err != nil {
			return nil, err
		}
		if len(metadata) > 0 {
			json.Unmarshal(metadata, &e.Metadata)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
