package repository

import (
	"database/sql"
	"errors"

	"github.com/kirillm/ads-engine/internal/domain"
)

// UserRepository реализует чтение профилей пользователей
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository создает новый репозиторий профилей
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetMode получает выбранный операционный режим пользователя
func (r *UserRepository) GetMode(userID int64) (string, error) {
	query := `SELECT mode FROM user_profiles WHERE user_id = $1`

	var mode string
	err := r.db.QueryRow(query, userID).Scan(&mode)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return mode, nil
}
