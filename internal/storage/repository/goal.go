package repository

import (
	"database/sql"
	"errors"

	"github.com/kirillm/ads-engine/internal/domain"
)

// GoalRepository реализует чтение каталога целей
type GoalRepository struct {
	db *sql.DB
}

// NewGoalRepository создает новый репозиторий каталога целей
func NewGoalRepository(db *sql.DB) *GoalRepository {
	return &GoalRepository{db: db}
}

// Get получает цель по ключу
func (r *GoalRepository) Get(key string) (*domain.Goal, error) {
	query := `
		SELECT key, title, core_signal, asset_requirements
		FROM goals
		WHERE key = $1
	`
	var goal domain.Goal
	err := r.db.QueryRow(query, key).Scan(
		&goal.Key,
		&goal.Title,
		&goal.CoreSignal,
		&goal.AssetRequirements,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &goal, nil
}

// GetAll получает весь каталог целей
func (r *GoalRepository) GetAll() ([]domain.Goal, error) {
	query := `
		SELECT key, title, core_signal, asset_requirements
		FROM goals
		ORDER BY key
	`
	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var goals []domain.Goal
	for rows.Next() {
		var goal domain.Goal
		err := rows.Scan(
			&goal.Key,
			&goal.Title,
			&goal.CoreSignal,
			&goal.AssetRequirements,
		)
		if err != nil {
			return nil, err
		}
		goals = append(goals, goal)
	}

	return goals, rows.Err()
}
