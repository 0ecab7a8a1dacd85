package strategy

import (
	"time"

	"github.com/kirillm/ads-engine/internal/domain"
)

// VerdictKind исход решения о масштабировании бюджета
type VerdictKind string

const (
	VerdictNone    VerdictKind = "none"
	VerdictScale   VerdictKind = "scale"
	VerdictBlocked VerdictKind = "blocked"
)

// ScaleVerdict вердикт Budget Scaler'а
type ScaleVerdict struct {
	Kind      VerdictKind
	NewBudget float64
	Reason    string // "cooldown" or "at_cap" for blocked verdicts
}

// Decide решает, масштабировать ли бюджет scaling-кампании.
// currentRate агрегированный rate scaling-кампании за окно наблюдения,
// baselineRate медиана квалифицированных тестовых ad-set'ов (0 = базы нет).
// Чистая функция: запись new budget и last_scaled_at, дело вызывающего.
func Decide(campaign *domain.Campaign, currentRate, baselineRate float64, th Thresholds, mode ModeSettings, now time.Time) ScaleVerdict {
	var stepPct, cooldownHours, maxBudget float64
	switch m := mode.(type) {
	case PulseSettings:
		stepPct = m.ScaleStepPct
		cooldownHours = m.CooldownHours
		maxBudget = m.MaxDailyBudget
	case MomentumSettings:
		stepPct = m.ScaleStepPct
		cooldownHours = m.CooldownHours
		maxBudget = m.MaxDailyBudget
	default:
		return ScaleVerdict{Kind: VerdictNone}
	}

	cooldown := time.Duration(cooldownHours * float64(time.Hour))
	if !campaign.LastScaledAt.IsZero() && now.Sub(campaign.LastScaledAt) < cooldown {
		return ScaleVerdict{Kind: VerdictBlocked, Reason: domain.ReasonCooldown}
	}

	// Sustained performance: тот же improvement-порог, что и при выборе
	// победителя. Без базы для сравнения не масштабируем.
	if baselineRate <= 0 {
		return ScaleVerdict{Kind: VerdictNone}
	}
	if currentRate < baselineRate*(1+th.ImprovementPct/100) {
		return ScaleVerdict{Kind: VerdictNone}
	}

	newBudget := campaign.DailyBudget * (1 + stepPct/100)
	if newBudget > maxBudget {
		newBudget = maxBudget
	}
	if newBudget <= campaign.DailyBudget {
		return ScaleVerdict{Kind: VerdictBlocked, Reason: domain.ReasonAtCap}
	}

	return ScaleVerdict{Kind: VerdictScale, NewBudget: newBudget}
}
