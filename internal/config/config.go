package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config содержит все настройки приложения
type Config struct {
	AdPlatform AdPlatformConfig
	Telegram   TelegramConfig
	Database   DatabaseConfig
	Engine     EngineConfig
	API        APIConfig
	Scheduler  SchedulerConfig
	LogLevel   string
}

type AdPlatformConfig struct {
	BaseURL        string
	RequestTimeout time.Duration
	MaxAttempts    int
	RetryBaseDelay time.Duration
	RateLimitRPS   float64
}

type TelegramConfig struct {
	BotToken string
	ChatID   int64
}

type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// EngineConfig содержит глобальные пороги движка и выбор операционного режима
type EngineConfig struct {
	MinSpend       float64
	MinImpressions int64
	ImprovementPct float64
	LookbackWindow time.Duration
	AutoPause      bool
	DefaultMode    string
	ModesPath      string // путь к YAML с профилями режимов, "" = встроенные дефолты
}

type APIConfig struct {
	Port int
}

type SchedulerConfig struct {
	Enabled  bool
	Interval time.Duration
}

// Load загружает конфигурацию из .env файла
func Load() (*Config, error) {
	// Загружаем .env файл (если есть)
	if err := godotenv.Load(); err != nil {
		fmt.Println("Warning: .env file not found, using environment variables")
	}

	chatID, err := strconv.ParseInt(getEnv("TELEGRAM_CHAT_ID", "0"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
	}

	dbPort, err := strconv.Atoi(getEnv("DB_PORT", "5432"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_PORT: %w", err)
	}

	maxOpenConns, err := strconv.Atoi(getEnv("DB_MAX_OPEN_CONNS", "25"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_OPEN_CONNS: %w", err)
	}

	maxIdleConns, err := strconv.Atoi(getEnv("DB_MAX_IDLE_CONNS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_MAX_IDLE_CONNS: %w", err)
	}

	connMaxLifetime, err := time.ParseDuration(getEnv("DB_CONN_MAX_LIFETIME", "5m"))
	if err != nil {
		return nil, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME: %w", err)
	}

	requestTimeout, err := time.ParseDuration(getEnv("ADPLATFORM_REQUEST_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid ADPLATFORM_REQUEST_TIMEOUT: %w", err)
	}

	maxAttempts, err := strconv.Atoi(getEnv("ADPLATFORM_MAX_ATTEMPTS", "4"))
	if err != nil {
		return nil, fmt.Errorf("invalid ADPLATFORM_MAX_ATTEMPTS: %w", err)
	}

	retryBaseDelay, err := time.ParseDuration(getEnv("ADPLATFORM_RETRY_BASE_DELAY", "500ms"))
	if err != nil {
		return nil, fmt.Errorf("invalid ADPLATFORM_RETRY_BASE_DELAY: %w", err)
	}

	rateLimitRPS, err := strconv.ParseFloat(getEnv("ADPLATFORM_RATE_LIMIT_RPS", "5"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid ADPLATFORM_RATE_LIMIT_RPS: %w", err)
	}

	minSpend, err := strconv.ParseFloat(getEnv("MIN_SPEND", "10"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MIN_SPEND: %w", err)
	}

	minImpressions, err := strconv.ParseInt(getEnv("MIN_IMPRESSIONS", "1000"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid MIN_IMPRESSIONS: %w", err)
	}

	improvementPct, err := strconv.ParseFloat(getEnv("IMPROVEMENT_PCT", "15"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid IMPROVEMENT_PCT: %w", err)
	}

	lookbackWindow, err := time.ParseDuration(getEnv("LOOKBACK_WINDOW", "168h"))
	if err != nil {
		return nil, fmt.Errorf("invalid LOOKBACK_WINDOW: %w", err)
	}

	autoPause, err := strconv.ParseBool(getEnv("AUTO_PAUSE_ENABLED", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid AUTO_PAUSE_ENABLED: %w", err)
	}

	apiPort, err := strconv.Atoi(getEnv("API_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid API_PORT: %w", err)
	}

	schedulerEnabled, err := strconv.ParseBool(getEnv("SCHEDULER_ENABLED", "true"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_ENABLED: %w", err)
	}

	schedulerInterval, err := time.ParseDuration(getEnv("SCHEDULER_INTERVAL", "6h"))
	if err != nil {
		return nil, fmt.Errorf("invalid SCHEDULER_INTERVAL: %w", err)
	}

	config := &Config{
		AdPlatform: AdPlatformConfig{
			BaseURL:        getEnv("ADPLATFORM_BASE_URL", "https://ads-api.example.com"),
			RequestTimeout: requestTimeout,
			MaxAttempts:    maxAttempts,
			RetryBaseDelay: retryBaseDelay,
			RateLimitRPS:   rateLimitRPS,
		},
		Telegram: TelegramConfig{
			BotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
			ChatID:   chatID,
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            dbPort,
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", ""),
			DBName:          getEnv("DB_NAME", "ads_engine"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    maxOpenConns,
			MaxIdleConns:    maxIdleConns,
			ConnMaxLifetime: connMaxLifetime,
		},
		Engine: EngineConfig{
			MinSpend:       minSpend,
			MinImpressions: minImpressions,
			ImprovementPct: improvementPct,
			LookbackWindow: lookbackWindow,
			AutoPause:      autoPause,
			DefaultMode:    getEnv("DEFAULT_MODE", "pulse"),
			ModesPath:      getEnv("MODES_CONFIG_PATH", ""),
		},
		API: APIConfig{
			Port: apiPort,
		},
		Scheduler: SchedulerConfig{
			Enabled:  schedulerEnabled,
			Interval: schedulerInterval,
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate проверяет обязательные поля конфигурации
func (c *Config) Validate() error {
	if c.AdPlatform.BaseURL == "" {
		return fmt.Errorf("ADPLATFORM_BASE_URL is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Engine.MinSpend <= 0 {
		return fmt.Errorf("MIN_SPEND must be positive")
	}
	if c.Engine.MinImpressions <= 0 {
		return fmt.Errorf("MIN_IMPRESSIONS must be positive")
	}
	if c.Engine.DefaultMode != "pulse" && c.Engine.DefaultMode != "momentum" {
		return fmt.Errorf("DEFAULT_MODE must be pulse or momentum, got %q", c.Engine.DefaultMode)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
