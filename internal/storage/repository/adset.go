package repository

import (
	"database/sql"

	"github.com/kirillm/ads-engine/internal/domain"
)

// AdSetRepository реализует работу с реестром ad-set'ов
type AdSetRepository struct {
	db *sql.DB
}

// NewAdSetRepository создает новый репозиторий ad-set'ов
func NewAdSetRepository(db *sql.DB) *AdSetRepository {
	return &AdSetRepository{db: db}
}

// Save сохраняет новый ad-set
func (r *AdSetRepository) Save(adSet *domain.AdSet) error {
	query := `
		INSERT INTO ad_sets (campaign_id, creative_id, platform_adset_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	return r.db.QueryRow(
		query,
		adSet.CampaignID,
		adSet.CreativeID,
		adSet.PlatformAdSetID,
		adSet.Status,
		adSet.CreatedAt,
	).Scan(&adSet.ID)
}

// GetByCampaign получает все ad-set'ы кампании
func (r *AdSetRepository) GetByCampaign(campaignID int64) ([]domain.AdSet, error) {
	query := `
		SELECT id, campaign_id, creative_id, platform_adset_id, status, created_at
		FROM ad_sets
		WHERE campaign_id = $1
		ORDER BY created_at
	`
	rows, err := r.db.Query(query, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var adSets []domain.AdSet
	for rows.Next() {
		var adSet domain.AdSet
		err := rows.Scan(
			&adSet.ID,
			&adSet.CampaignID,
			&adSet.CreativeID,
			&adSet.PlatformAdSetID,
			&adSet.Status,
			&adSet.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		adSets = append(adSets, adSet)
	}

	return adSets, rows.Err()
}

// UpdateStatus обновляет статус ad-set'а
func (r *AdSetRepository) UpdateStatus(id int64, status string) error {
	query := `UPDATE ad_sets SET status = $1 WHERE id = $2`
	result, err := r.db.Exec(query, status, id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}
