package repository

import (
	"database/sql"

	"github.com/kirillm/ads-engine/internal/domain"
)

// CreativeRepository реализует чтение загруженных креативов
type CreativeRepository struct {
	db *sql.DB
}

// NewCreativeRepository создает новый репозиторий креативов
func NewCreativeRepository(db *sql.DB) *CreativeRepository {
	return &CreativeRepository{db: db}
}

// GetReady получает готовые к использованию креативы пользователя для цели
func (r *CreativeRepository) GetReady(userID int64, goalKey string) ([]domain.Creative, error) {
	query := `
		SELECT id, user_id, goal_key, type, url, status, created_at
		FROM creatives
		WHERE user_id = $1 AND goal_key = $2 AND status = $3
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(query, userID, goalKey, domain.CreativeReady)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var creatives []domain.Creative
	for rows.Next() {
		var creative domain.Creative
		err := rows.Scan(
			&creative.ID,
			&creative.UserID,
			&creative.GoalKey,
			&creative.Type,
			&creative.URL,
			&creative.Status,
			&creative.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		creatives = append(creatives, creative)
	}

	return creatives, rows.Err()
}
