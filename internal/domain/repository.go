package domain

import "time"

// GoalRepository определяет интерфейс для чтения каталога целей
type GoalRepository interface {
	Get(key string) (*Goal, error)
	GetAll() ([]Goal, error)
}

// GoalSettingsRepository определяет интерфейс для чтения настроек целей.
// Настройки мутируются только внешним UI, движок их не пишет.
type GoalSettingsRepository interface {
	GetActive(userID int64) ([]GoalSettings, error)
	UsersWithActiveGoals() ([]int64, error)
}

// CreativeRepository определяет интерфейс для чтения креативов
type CreativeRepository interface {
	GetReady(userID int64, goalKey string) ([]Creative, error)
}

// CampaignRepository определяет интерфейс для работы с кампаниями
type CampaignRepository interface {
	Get(userID int64, goalKey, role string) (*Campaign, error)
	Save(campaign *Campaign) error
	UpdateBudget(id int64, dailyBudget float64, scaledAt time.Time) error
	UpdateStatus(id int64, status string) error
}

// AdSetRepository определяет интерфейс для работы с ad-set'ами
type AdSetRepository interface {
	Save(adSet *AdSet) error
	GetByCampaign(campaignID int64) ([]AdSet, error)
	UpdateStatus(id int64, status string) error
}

// CredentialRepository определяет интерфейс для чтения токенов платформы
type CredentialRepository interface {
	Get(userID int64) (*PlatformCredential, error)
}

// UserRepository определяет интерфейс для чтения профиля пользователя
type UserRepository interface {
	GetMode(userID int64) (string, error)
}

// RunRepository определяет интерфейс для журнала прогонов.
// Start атомарно захватывает run lock пользователя: при активном прогоне
// возвращает ErrAlreadyRunning и не пишет новую запись.
type RunRepository interface {
	Start(run *OrchestratorRun) error
	Finish(run *OrchestratorRun) error
	AppendAction(action *Action) error
	GetRecent(userID int64, limit int) ([]OrchestratorRun, error)
	GetActions(runID string) ([]Action, error)
}

// LogRepository определяет интерфейс для записи системных событий
type LogRepository interface {
	Save(level, message, data string) error
}
