package repository

import (
	"database/sql"
	"errors"

	"github.com/kirillm/ads-engine/internal/domain"
)

// CredentialRepository реализует чтение токенов рекламной платформы
type CredentialRepository struct {
	db *sql.DB
}

// NewCredentialRepository создает новый репозиторий токенов
func NewCredentialRepository(db *sql.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Get получает токен пользователя
func (r *CredentialRepository) Get(userID int64) (*domain.PlatformCredential, error) {
	query := `
		SELECT user_id, account_id, access_token, COALESCE(expires_at, '0001-01-01'::timestamptz), updated_at
		FROM platform_credentials
		WHERE user_id = $1
	`
	var cred domain.PlatformCredential
	err := r.db.QueryRow(query, userID).Scan(
		&cred.UserID,
		&cred.AccountID,
		&cred.AccessToken,
		&cred.ExpiresAt,
		&cred.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNoCredential
	}
	if err != nil {
		return nil, err
	}
	return &cred, nil
}
