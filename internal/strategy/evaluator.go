package strategy

import (
	"sort"

	"github.com/kirillm/ads-engine/internal/domain"
)

// rateEpsilon защищает от деления на ноль при нулевом spend
const rateEpsilon = 1e-9

// ScoredAdSet ad-set, прошедший квалификацию, с вычисленным signal rate
type ScoredAdSet struct {
	Metric domain.AdSetMetric
	Rate   float64
}

// WinnerVerdict описывает выбранного победителя
type WinnerVerdict struct {
	CreativeID int64
	AdSetID    string
	Rate       float64
	MedianRate float64
}

// Rate вычисляет signal rate ad-set'а: конверсии на единицу потраченного
func Rate(m domain.AdSetMetric) float64 {
	spend := m.Spend
	if spend < rateEpsilon {
		spend = rateEpsilon
	}
	return float64(m.CoreSignalCount) / spend
}

// Qualify отбирает ad-set'ы с достаточным spend и показами для сравнения
func Qualify(metrics []domain.AdSetMetric, th Thresholds) []ScoredAdSet {
	var qualified []ScoredAdSet
	for _, m := range metrics {
		if m.Spend >= th.MinSpend && m.Impressions >= th.MinImpressions {
			qualified = append(qualified, ScoredAdSet{Metric: m, Rate: Rate(m)})
		}
	}
	return qualified
}

// Baseline возвращает медианный rate квалифицированных ad-set'ов.
// Второе значение false, когда квалифицировалось меньше двух: без базы
// для сравнения решения о победителе и масштабировании не принимаются.
func Baseline(metrics []domain.AdSetMetric, th Thresholds) (float64, bool) {
	qualified := Qualify(metrics, th)
	if len(qualified) < 2 {
		return 0, false
	}
	return medianRate(qualified), true
}

// Evaluate выбирает победителя среди ad-set'ов тестовой кампании.
// Победитель должен превзойти медиану на improvement_pct; при равных rate
// выше spend, затем меньший creative id, для детерминизма.
func Evaluate(metrics []domain.AdSetMetric, th Thresholds) *WinnerVerdict {
	qualified := Qualify(metrics, th)
	if len(qualified) < 2 {
		return nil
	}

	median := medianRate(qualified)

	best := qualified[0]
	for _, candidate := range qualified[1:] {
		if beats(candidate, best) {
			best = candidate
		}
	}

	required := median * (1 + th.ImprovementPct/100)
	if best.Rate < required {
		return nil
	}

	return &WinnerVerdict{
		CreativeID: best.Metric.CreativeID,
		AdSetID:    best.Metric.AdSetID,
		Rate:       best.Rate,
		MedianRate: median,
	}
}

// beats сравнивает кандидатов: rate, затем spend, затем меньший creative id
func beats(a, b ScoredAdSet) bool {
	if a.Rate != b.Rate {
		return a.Rate > b.Rate
	}
	if a.Metric.Spend != b.Metric.Spend {
		return a.Metric.Spend > b.Metric.Spend
	}
	return a.Metric.CreativeID < b.Metric.CreativeID
}

func medianRate(qualified []ScoredAdSet) float64 {
	rates := make([]float64, len(qualified))
	for i, q := range qualified {
		rates[i] = q.Rate
	}
	sort.Float64s(rates)

	n := len(rates)
	if n%2 == 1 {
		return rates[n/2]
	}
	return (rates[n/2-1] + rates[n/2]) / 2
}
