package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/kirillm/ads-engine/internal/domain"
	"github.com/kirillm/ads-engine/internal/storage/repository"
)

// PostgresStorage является фасадом для работы с PostgreSQL через репозитории
type PostgresStorage struct {
	db          *sql.DB
	goals       *repository.GoalRepository
	settings    *repository.GoalSettingsRepository
	creatives   *repository.CreativeRepository
	campaigns   *repository.CampaignRepository
	adSets      *repository.AdSetRepository
	credentials *repository.CredentialRepository
	users       *repository.UserRepository
	runs        *repository.RunRepository
	logs        *repository.LogRepository
}

func NewPostgresStorage(host string, port int, user, password, dbname, sslmode string, maxOpenConns, maxIdleConns int, connMaxLifetime time.Duration) (*PostgresStorage, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, password, dbname, sslmode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Настройка connection pool из конфигурации
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	storage := &PostgresStorage{
		db:          db,
		goals:       repository.NewGoalRepository(db),
		settings:    repository.NewGoalSettingsRepository(db),
		creatives:   repository.NewCreativeRepository(db),
		campaigns:   repository.NewCampaignRepository(db),
		adSets:      repository.NewAdSetRepository(db),
		credentials: repository.NewCredentialRepository(db),
		users:       repository.NewUserRepository(db),
		runs:        repository.NewRunRepository(db),
		logs:        repository.NewLogRepository(db),
	}

	// Запускаем миграции
	if err := storage.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return storage, nil
}

func (s *PostgresStorage) migrate() error {
	migrations := []string{
		// Каталог целей (read-only для движка, сидится миграцией)
		`CREATE TABLE IF NOT EXISTS goals (
			key VARCHAR(50) PRIMARY KEY,
			title VARCHAR(200) NOT NULL,
			core_signal VARCHAR(100) NOT NULL,
			asset_requirements TEXT NOT NULL DEFAULT ''
		)`,
		// Настройки целей по пользователям (пишет только внешний UI)
		`CREATE TABLE IF NOT EXISTS goal_settings (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			goal_key VARCHAR(50) NOT NULL REFERENCES goals(key),
			is_active BOOLEAN NOT NULL DEFAULT false,
			priority INTEGER NOT NULL DEFAULT 3,
			budget_hint DECIMAL(20, 2),
			auto_scale BOOLEAN NOT NULL DEFAULT true,
			testing_enabled BOOLEAN NOT NULL DEFAULT true,
			scaling_enabled BOOLEAN NOT NULL DEFAULT true,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (user_id, goal_key)
		)`,
		// Креативы (создаются внешним аплоадом)
		`CREATE TABLE IF NOT EXISTS creatives (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			goal_key VARCHAR(50) NOT NULL REFERENCES goals(key),
			type VARCHAR(10) NOT NULL,
			url TEXT NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'ready',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		// Кампании движка: не больше одной на (user, goal, role)
		`CREATE TABLE IF NOT EXISTS campaigns (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL,
			goal_key VARCHAR(50) NOT NULL REFERENCES goals(key),
			role VARCHAR(10) NOT NULL,
			platform_campaign_id VARCHAR(100) NOT NULL,
			daily_budget DECIMAL(20, 2) NOT NULL DEFAULT 0,
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			last_scaled_at TIMESTAMPTZ,
			UNIQUE (user_id, goal_key, role)
		)`,
		// Реестр ad-set'ов: креатив не тестируется дважды одновременно
		`CREATE TABLE IF NOT EXISTS ad_sets (
			id BIGSERIAL PRIMARY KEY,
			campaign_id BIGINT NOT NULL REFERENCES campaigns(id),
			creative_id BIGINT NOT NULL REFERENCES creatives(id),
			platform_adset_id VARCHAR(100) NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (campaign_id, creative_id)
		)`,
		// Токены рекламной платформы
		`CREATE TABLE IF NOT EXISTS platform_credentials (
			user_id BIGINT PRIMARY KEY,
			account_id VARCHAR(100) NOT NULL,
			access_token TEXT NOT NULL,
			expires_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		// Профиль пользователя: выбранный операционный режим
		`CREATE TABLE IF NOT EXISTS user_profiles (
			user_id BIGINT PRIMARY KEY,
			mode VARCHAR(20) NOT NULL DEFAULT 'pulse',
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		// Журнал прогонов
		`CREATE TABLE IF NOT EXISTS orchestrator_runs (
			id UUID PRIMARY KEY,
			user_id BIGINT NOT NULL,
			run_type VARCHAR(20) NOT NULL,
			status VARCHAR(30) NOT NULL,
			started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			completed_at TIMESTAMPTZ,
			campaigns_created INTEGER NOT NULL DEFAULT 0,
			winners_promoted INTEGER NOT NULL DEFAULT 0,
			budgets_scaled INTEGER NOT NULL DEFAULT 0,
			adsets_paused INTEGER NOT NULL DEFAULT 0,
			errors_count INTEGER NOT NULL DEFAULT 0
		)`,
		// Решения прогонов, append-only
		`CREATE TABLE IF NOT EXISTS actions (
			id BIGSERIAL PRIMARY KEY,
			run_id UUID NOT NULL REFERENCES orchestrator_runs(id),
			action_type VARCHAR(40) NOT NULL,
			goal_key VARCHAR(50) NOT NULL DEFAULT '',
			status VARCHAR(20) NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			details JSONB,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS logs (
			id SERIAL PRIMARY KEY,
			level VARCHAR(10) NOT NULL,
			message TEXT NOT NULL,
			data TEXT,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		// Run lock: не больше одного running-прогона на пользователя
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_runs_one_running_per_user
			ON orchestrator_runs(user_id) WHERE status = 'running'`,
		// Индексы
		`CREATE INDEX IF NOT EXISTS idx_goal_settings_user ON goal_settings(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_creatives_user_goal ON creatives(user_id, goal_key)`,
		`CREATE INDEX IF NOT EXISTS idx_campaigns_user_goal ON campaigns(user_id, goal_key)`,
		`CREATE INDEX IF NOT EXISTS idx_ad_sets_campaign ON ad_sets(campaign_id)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_user_started ON orchestrator_runs(user_id, started_at)`,
		`CREATE INDEX IF NOT EXISTS idx_actions_run ON actions(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_logs_created_at ON logs(created_at)`,
		// Сидим каталог целей, если пуст
		`INSERT INTO goals (key, title, core_signal, asset_requirements)
		 SELECT 'streams', 'Stream growth', 'stream_play', 'square video or cover image, 9:16 preferred'
		 WHERE NOT EXISTS (SELECT 1 FROM goals WHERE key = 'streams')`,
		`INSERT INTO goals (key, title, core_signal, asset_requirements)
		 SELECT 'followers', 'Follower growth', 'profile_follow', 'short vertical video with artist face'
		 WHERE NOT EXISTS (SELECT 1 FROM goals WHERE key = 'followers')`,
		`INSERT INTO goals (key, title, core_signal, asset_requirements)
		 SELECT 'site_traffic', 'Website traffic', 'landing_view', 'static image or video, landing link required'
		 WHERE NOT EXISTS (SELECT 1 FROM goals WHERE key = 'site_traffic')`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// ==================== GOALS ====================

func (s *PostgresStorage) Goal(key string) (*domain.Goal, error) {
	return s.goals.Get(key)
}

func (s *PostgresStorage) AllGoals() ([]domain.Goal, error) {
	return s.goals.GetAll()
}

// ==================== GOAL SETTINGS ====================

func (s *PostgresStorage) ActiveGoalSettings(userID int64) ([]domain.GoalSettings, error) {
	return s.settings.GetActive(userID)
}

func (s *PostgresStorage) UsersWithActiveGoals() ([]int64, error) {
	return s.settings.UsersWithActiveGoals()
}

// ==================== CREATIVES ====================

func (s *PostgresStorage) ReadyCreatives(userID int64, goalKey string) ([]domain.Creative, error) {
	return s.creatives.GetReady(userID, goalKey)
}

// ==================== CAMPAIGNS ====================

func (s *PostgresStorage) Campaign(userID int64, goalKey, role string) (*domain.Campaign, error) {
	return s.campaigns.Get(userID, goalKey, role)
}

func (s *PostgresStorage) SaveCampaign(campaign *domain.Campaign) error {
	return s.campaigns.Save(campaign)
}

func (s *PostgresStorage) UpdateCampaignBudget(id int64, dailyBudget float64, scaledAt time.Time) error {
	return s.campaigns.UpdateBudget(id, dailyBudget, scaledAt)
}

func (s *PostgresStorage) UpdateCampaignStatus(id int64, status string) error {
	return s.campaigns.UpdateStatus(id, status)
}

// ==================== AD SETS ====================

func (s *PostgresStorage) SaveAdSet(adSet *domain.AdSet) error {
	return s.adSets.Save(adSet)
}

func (s *PostgresStorage) AdSetsByCampaign(campaignID int64) ([]domain.AdSet, error) {
	return s.adSets.GetByCampaign(campaignID)
}

func (s *PostgresStorage) UpdateAdSetStatus(id int64, status string) error {
	return s.adSets.UpdateStatus(id, status)
}

// ==================== CREDENTIALS / USERS ====================

func (s *PostgresStorage) Credential(userID int64) (*domain.PlatformCredential, error) {
	return s.credentials.Get(userID)
}

func (s *PostgresStorage) UserMode(userID int64) (string, error) {
	return s.users.GetMode(userID)
}

// ==================== RUN LEDGER ====================

func (s *PostgresStorage) StartRun(run *domain.OrchestratorRun) error {
	return s.runs.Start(run)
}

func (s *PostgresStorage) FinishRun(run *domain.OrchestratorRun) error {
	return s.runs.Finish(run)
}

func (s *PostgresStorage) AppendAction(action *domain.Action) error {
	return s.runs.AppendAction(action)
}

func (s *PostgresStorage) RecentRuns(userID int64, limit int) ([]domain.OrchestratorRun, error) {
	return s.runs.GetRecent(userID, limit)
}

func (s *PostgresStorage) RunActions(runID string) ([]domain.Action, error) {
	return s.runs.GetActions(runID)
}

// ==================== LOGS ====================

func (s *PostgresStorage) SaveLog(level, message, data string) error {
	return s.logs.Save(level, message, data)
}

// Close закрывает соединение с базой данных
func (s *PostgresStorage) Close() error {
	return s.db.Close()
}

// DB возвращает указатель на *sql.DB
func (s *PostgresStorage) DB() *sql.DB {
	return s.db
}
