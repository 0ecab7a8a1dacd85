package domain

import "errors"

var (
	// ErrNotFound возвращается когда запись не найдена
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput возвращается при некорректных входных данных
	ErrInvalidInput = errors.New("invalid input")

	// ErrAlreadyRunning возвращается когда прогон для пользователя уже идет
	ErrAlreadyRunning = errors.New("orchestration already running for user")

	// ErrNoCredential возвращается когда у пользователя нет токена платформы
	ErrNoCredential = errors.New("no ad platform credential")

	// ErrCredentialExpired возвращается когда токен платформы истек
	ErrCredentialExpired = errors.New("ad platform credential expired")

	// ErrPlatformAPI возвращается при ошибке API рекламной платформы
	ErrPlatformAPI = errors.New("ad platform API error")

	// ErrRateLimited возвращается когда платформа ограничила частоту запросов
	ErrRateLimited = errors.New("ad platform rate limited")

	// ErrEngineStopped возвращается когда движок выключен оператором
	ErrEngineStopped = errors.New("engine is stopped")

	// ErrDatabaseConnection возвращается при ошибке подключения к БД
	ErrDatabaseConnection = errors.New("database connection error")
)
