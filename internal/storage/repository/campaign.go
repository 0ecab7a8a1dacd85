package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/kirillm/ads-engine/internal/domain"
)

// CampaignRepository реализует работу с кампаниями движка
type CampaignRepository struct {
	db *sql.DB
}

// NewCampaignRepository создает новый репозиторий кампаний
func NewCampaignRepository(db *sql.DB) *CampaignRepository {
	return &CampaignRepository{db: db}
}

// Get получает кампанию по пользователю, цели и роли
func (r *CampaignRepository) Get(userID int64, goalKey, role string) (*domain.Campaign, error) {
	query := `
		SELECT id, user_id, goal_key, role, platform_campaign_id, daily_budget,
		       status, created_at, last_scaled_at
		FROM campaigns
		WHERE user_id = $1 AND goal_key = $2 AND role = $3
	`
	var campaign domain.Campaign
	var lastScaledAt sql.NullTime
	err := r.db.QueryRow(query, userID, goalKey, role).Scan(
		&campaign.ID,
		&campaign.UserID,
		&campaign.GoalKey,
		&campaign.Role,
		&campaign.PlatformCampaignID,
		&campaign.DailyBudget,
		&campaign.Status,
		&campaign.CreatedAt,
		&lastScaledAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if lastScaledAt.Valid {
		campaign.LastScaledAt = lastScaledAt.Time
	}
	return &campaign, nil
}

// Save сохраняет новую кампанию
func (r *CampaignRepository) Save(campaign *domain.Campaign) error {
	query := `
		INSERT INTO campaigns (user_id, goal_key, role, platform_campaign_id, daily_budget, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`
	return r.db.QueryRow(
		query,
		campaign.UserID,
		campaign.GoalKey,
		campaign.Role,
		campaign.PlatformCampaignID,
		campaign.DailyBudget,
		campaign.Status,
		campaign.CreatedAt,
	).Scan(&campaign.ID)
}

// UpdateBudget обновляет дневной бюджет и время последнего масштабирования
func (r *CampaignRepository) UpdateBudget(id int64, dailyBudget float64, scaledAt time.Time) error {
	query := `
		UPDATE campaigns
		SET daily_budget = $1, last_scaled_at = $2
		WHERE id = $3
	`
	result, err := r.db.Exec(query, dailyBudget, scaledAt, id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// UpdateStatus обновляет статус кампании
func (r *CampaignRepository) UpdateStatus(id int64, status string) error {
	query := `UPDATE campaigns SET status = $1 WHERE id = $2`
	result, err := r.db.Exec(query, status, id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// requireAffected возвращает ErrNotFound, если UPDATE не затронул ни одной строки
func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
