package repository

import (
	"database/sql"

	"github.com/kirillm/ads-engine/internal/domain"
)

// GoalSettingsRepository реализует чтение настроек целей пользователей
type GoalSettingsRepository struct {
	db *sql.DB
}

// NewGoalSettingsRepository создает новый репозиторий настроек целей
func NewGoalSettingsRepository(db *sql.DB) *GoalSettingsRepository {
	return &GoalSettingsRepository{db: db}
}

// GetActive получает активные цели пользователя, отсортированные по приоритету
func (r *GoalSettingsRepository) GetActive(userID int64) ([]domain.GoalSettings, error) {
	query := `
		SELECT id, user_id, goal_key, is_active, priority, COALESCE(budget_hint, 0),
		       auto_scale, testing_enabled, scaling_enabled, updated_at
		FROM goal_settings
		WHERE user_id = $1 AND is_active = true
		ORDER BY priority DESC, goal_key
	`
	rows, err := r.db.Query(query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settings []domain.GoalSettings
	for rows.Next() {
		var s domain.GoalSettings
		err := rows.Scan(
			&s.ID,
			&s.UserID,
			&s.GoalKey,
			&s.IsActive,
			&s.Priority,
			&s.BudgetHint,
			&s.AutoScale,
			&s.TestingEnabled,
			&s.ScalingEnabled,
			&s.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		settings = append(settings, s)
	}

	return settings, rows.Err()
}

// UsersWithActiveGoals получает пользователей, у которых есть хотя бы одна активная цель
func (r *GoalSettingsRepository) UsersWithActiveGoals() ([]int64, error) {
	query := `
		SELECT DISTINCT user_id
		FROM goal_settings
		WHERE is_active = true
		ORDER BY user_id
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []int64
	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		users = append(users, userID)
	}

	return users, rows.Err()
}
