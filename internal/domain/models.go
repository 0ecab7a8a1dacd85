package domain

import "time"

// Goal представляет маркетинговую цель из каталога
type Goal struct {
	Key               string `db:"key"`
	Title             string `db:"title"`
	CoreSignal        string `db:"core_signal"` // событие-конверсия для этой цели
	AssetRequirements string `db:"asset_requirements"`
}

// GoalSettings представляет настройки цели для пользователя
type GoalSettings struct {
	ID             int64     `db:"id"`
	UserID         int64     `db:"user_id"`
	GoalKey        string    `db:"goal_key"`
	IsActive       bool      `db:"is_active"`
	Priority       int       `db:"priority"`    // 1..5, выше = важнее
	BudgetHint     float64   `db:"budget_hint"` // 0 = не задан
	AutoScale      bool      `db:"auto_scale"`
	TestingEnabled bool      `db:"testing_enabled"`
	ScalingEnabled bool      `db:"scaling_enabled"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// Creative представляет загруженный рекламный креатив
type Creative struct {
	ID        int64     `db:"id"`
	UserID    int64     `db:"user_id"`
	GoalKey   string    `db:"goal_key"`
	Type      string    `db:"type"`   // "image" or "video"
	URL       string    `db:"url"`
	Status    string    `db:"status"` // "ready" or "archived"
	CreatedAt time.Time `db:"created_at"`
}

// Campaign представляет кампанию на рекламной платформе
type Campaign struct {
	ID                 int64     `db:"id"`
	UserID             int64     `db:"user_id"`
	GoalKey            string    `db:"goal_key"`
	Role               string    `db:"role"` // "testing" or "scaling"
	PlatformCampaignID string    `db:"platform_campaign_id"`
	DailyBudget        float64   `db:"daily_budget"`
	Status             string    `db:"status"` // "active" or "paused"
	CreatedAt          time.Time `db:"created_at"`
	LastScaledAt       time.Time `db:"last_scaled_at"` // zero value = never scaled
}

// AdSet представляет ad-set внутри кампании, привязанный к одному креативу
type AdSet struct {
	ID              int64     `db:"id"`
	CampaignID      int64     `db:"campaign_id"`
	CreativeID      int64     `db:"creative_id"`
	PlatformAdSetID string    `db:"platform_adset_id"`
	Status          string    `db:"status"` // "active" or "paused"
	CreatedAt       time.Time `db:"created_at"`
}

// AdSetMetric представляет метрики ad-set за окно наблюдения.
// Не персистится: запрашивается у платформы на каждый прогон.
type AdSetMetric struct {
	AdSetID         string
	CreativeID      int64
	Spend           float64
	Impressions     int64
	CoreSignalCount int64
}

// PlatformCredential представляет токен доступа к рекламной платформе
type PlatformCredential struct {
	UserID      int64     `db:"user_id"`
	AccountID   string    `db:"account_id"`
	AccessToken string    `db:"access_token"`
	ExpiresAt   time.Time `db:"expires_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// OrchestratorRun представляет один прогон движка оркестрации
type OrchestratorRun struct {
	ID               string    `db:"id"`
	UserID           int64     `db:"user_id"`
	RunType          string    `db:"run_type"` // "scheduled", "manual", "dry_run"
	Status           string    `db:"status"`   // "running", "completed", "completed_with_errors", "failed"
	StartedAt        time.Time `db:"started_at"`
	CompletedAt      time.Time `db:"completed_at"`
	CampaignsCreated int       `db:"campaigns_created"`
	WinnersPromoted  int       `db:"winners_promoted"`
	BudgetsScaled    int       `db:"budgets_scaled"`
	AdSetsPaused     int       `db:"adsets_paused"`
	ErrorsCount      int       `db:"errors_count"`
}

// Action представляет одно атомарное решение внутри прогона.
// Append-only: одна запись на решение, в хронологическом порядке.
type Action struct {
	ID         int64     `db:"id"`
	RunID      string    `db:"run_id"`
	ActionType string    `db:"action_type"`
	GoalKey    string    `db:"goal_key"`
	Status     string    `db:"status"` // "success", "failed", "skipped"
	Message    string    `db:"message"`
	Details    string    `db:"details"` // JSON
	CreatedAt  time.Time `db:"created_at"`
}
