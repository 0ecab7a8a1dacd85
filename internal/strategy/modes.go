package strategy

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kirillm/ads-engine/internal/domain"
)

// Thresholds содержит глобальные пороги оценки (не зависят от режима)
type Thresholds struct {
	MinSpend       float64
	MinImpressions int64
	ImprovementPct float64
}

// ModeSettings настройки операционного режима (Pulse или Momentum).
// Закрытый sum type: Budget Scaler обязан разобрать его исчерпывающим
// type switch и не может молча взять дефолты чужого режима.
type ModeSettings interface {
	Name() string
	isModeSettings()
}

// PulseSettings консервативный режим: малый бюджет, ограниченная доля
// на тестирование, периодическая ротация креативов
type PulseSettings struct {
	DefaultDailyBudget float64 `yaml:"default_daily_budget"`
	ScaleStepPct       float64 `yaml:"scale_step_pct"`
	CooldownHours      float64 `yaml:"cooldown_hours"`
	MaxDailyBudget     float64 `yaml:"max_daily_budget"`
	TestBudgetShare    float64 `yaml:"test_budget_share"`
	RotationDays       int     `yaml:"rotation_days"`
}

func (PulseSettings) Name() string    { return domain.ModePulse }
func (PulseSettings) isModeSettings() {}

// MomentumSettings агрессивный режим: выше стартовый бюджет, крупнее шаг
// масштабирования, короче cooldown, выше потолок
type MomentumSettings struct {
	DefaultDailyBudget float64 `yaml:"default_daily_budget"`
	ScaleStepPct       float64 `yaml:"scale_step_pct"`
	CooldownHours      float64 `yaml:"cooldown_hours"`
	MaxDailyBudget     float64 `yaml:"max_daily_budget"`
}

func (MomentumSettings) Name() string    { return domain.ModeMomentum }
func (MomentumSettings) isModeSettings() {}

type rawMode struct {
	DefaultDailyBudget float64 `yaml:"default_daily_budget"`
	ScaleStepPct       float64 `yaml:"scale_step_pct"`
	CooldownHours      float64 `yaml:"cooldown_hours"`
	MaxDailyBudget     float64 `yaml:"max_daily_budget"`
	TestBudgetShare    float64 `yaml:"test_budget_share"`
	RotationDays       int     `yaml:"rotation_days"`
}

type modesFile struct {
	Modes map[string]rawMode `yaml:"modes"`
}

// DefaultModes возвращает встроенные профили режимов
func DefaultModes() map[string]ModeSettings {
	return map[string]ModeSettings{
		domain.ModePulse: PulseSettings{
			DefaultDailyBudget: 20,
			ScaleStepPct:       15,
			CooldownHours:      48,
			MaxDailyBudget:     200,
			TestBudgetShare:    0.3,
			RotationDays:       14,
		},
		domain.ModeMomentum: MomentumSettings{
			DefaultDailyBudget: 50,
			ScaleStepPct:       30,
			CooldownHours:      24,
			MaxDailyBudget:     1000,
		},
	}
}

// LoadModes загружает профили режимов из YAML.
// Пустой путь означает встроенные дефолты.
func LoadModes(path string) (map[string]ModeSettings, error) {
	if path == "" {
		return DefaultModes(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read modes config: %w", err)
	}

	var file modesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse modes config: %w", err)
	}

	modes := make(map[string]ModeSettings, len(file.Modes))
	for name, raw := range file.Modes {
		switch name {
		case domain.ModePulse:
			modes[name] = PulseSettings{
				DefaultDailyBudget: raw.DefaultDailyBudget,
				ScaleStepPct:       raw.ScaleStepPct,
				CooldownHours:      raw.CooldownHours,
				MaxDailyBudget:     raw.MaxDailyBudget,
				TestBudgetShare:    raw.TestBudgetShare,
				RotationDays:       raw.RotationDays,
			}
		case domain.ModeMomentum:
			modes[name] = MomentumSettings{
				DefaultDailyBudget: raw.DefaultDailyBudget,
				ScaleStepPct:       raw.ScaleStepPct,
				CooldownHours:      raw.CooldownHours,
				MaxDailyBudget:     raw.MaxDailyBudget,
			}
		default:
			return nil, fmt.Errorf("unknown operating mode %q in modes config", name)
		}
	}

	if _, ok := modes[domain.ModePulse]; !ok {
		return nil, fmt.Errorf("modes config must define the pulse mode")
	}
	if _, ok := modes[domain.ModeMomentum]; !ok {
		return nil, fmt.Errorf("modes config must define the momentum mode")
	}

	return modes, nil
}

// TestingBudget возвращает дневной бюджет тестовой кампании:
// budget_hint пользователя либо дефолт режима. Pulse дополнительно
// ограничивает тестовый бюджет долей от потолка.
func TestingBudget(mode ModeSettings, budgetHint float64) float64 {
	budget := budgetHint
	switch m := mode.(type) {
	case PulseSettings:
		if budget <= 0 {
			budget = m.DefaultDailyBudget
		}
		if m.TestBudgetShare > 0 {
			limit := m.MaxDailyBudget * m.TestBudgetShare
			if budget > limit {
				budget = limit
			}
		}
	case MomentumSettings:
		if budget <= 0 {
			budget = m.DefaultDailyBudget
		}
	}
	return budget
}

// ScalingBudget возвращает стартовый дневной бюджет scaling-кампании
func ScalingBudget(mode ModeSettings) float64 {
	switch m := mode.(type) {
	case PulseSettings:
		return m.DefaultDailyBudget
	case MomentumSettings:
		return m.DefaultDailyBudget
	}
	return 0
}

// RotationPeriod возвращает окно ротации креативов для режимов, где она есть
func RotationPeriod(mode ModeSettings) (time.Duration, bool) {
	if m, ok := mode.(PulseSettings); ok && m.RotationDays > 0 {
		return time.Duration(m.RotationDays) * 24 * time.Hour, true
	}
	return 0, false
}
