package repository

import (
	"database/sql"
)

// LogRepository реализует запись системных логов
type LogRepository struct {
	db *sql.DB
}

// NewLogRepository создает новый репозиторий логов
func NewLogRepository(db *sql.DB) *LogRepository {
	return &LogRepository{db: db}
}

// Save сохраняет запись лога
func (r *LogRepository) Save(level, message, data string) error {
	query := `
		INSERT INTO logs (level, message, data)
		VALUES ($1, $2, NULLIF($3, ''))
	`
	_, err := r.db.Exec(query, level, message, data)
	return err
}
