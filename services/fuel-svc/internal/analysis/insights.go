package analysis

import (
	"fmt"

	"fueltracker/pkg/domain"
)

// Goals цели пользователя
type Goals struct {
	EfficiencyGoal float64 `json:"efficiencyGoal"` // км/л
	MonthlyBudget  float64 `json:"monthlyBudget"`  // иен
}

// AlertType уровень предупреждения
type AlertType string

const (
	AlertInfo    AlertType = "info"
	AlertWarning AlertType = "warning"
	AlertDanger  AlertType = "danger"
)

// Alert предупреждение для пользователя
type Alert struct {
	Type    AlertType `json:"type"`
	Message string    `json:"message"`
}

// Insights оценки достижения целей, предупреждения и рекомендации
type Insights struct {
	Goals                 Goals        `json:"goals"`
	EfficiencyAchievement float64      `json:"efficiencyAchievement"`
	BudgetAchievement     float64      `json:"budgetAchievement"`
	EfficiencyGrade       string       `json:"efficiencyGrade"`
	BudgetGrade           string       `json:"budgetGrade"`
	OverallGrade          string       `json:"overallGrade"`
	RecentTrend           *RecentTrend `json:"recentTrend"`
	Alerts                []Alert      `json:"alerts"`
	Recommendations       []string     `json:"recommendations"`
}

// BuildInsights сопоставляет снимок статистики с целями
func BuildInsights(stats StatisticsData, records []domain.FuelRecord, goals Goals) Insights {
	in := Insights{
		Goals:                 goals,
		EfficiencyAchievement: safeDiv(stats.AverageFuelEfficiency, goals.EfficiencyGoal),
		BudgetAchievement:     safeDiv(goals.MonthlyBudget, stats.AverageCostPerMonth),
		EfficiencyGrade:       domain.EfficiencyGrade(stats.AverageFuelEfficiency),
		Alerts:                []Alert{},
		Recommendations:       []string{},
	}
	in.BudgetGrade = budgetGrade(in.BudgetAchievement)

	if trend, ok := RecentTrendOf(records); ok {
		in.RecentTrend = &trend
	}

	belowGoal := stats.AverageFuelEfficiency < goals.EfficiencyGoal

	// Предупреждения
	if belowGoal {
		in.Alerts = append(in.Alerts, Alert{
			Type:    AlertWarning,
			Message: fmt.Sprintf("燃費が目標を%.1fkm/L下回っています", goals.EfficiencyGoal-stats.AverageFuelEfficiency),
		})
	}
	if stats.AverageCostPerMonth > goals.MonthlyBudget {
		in.Alerts = append(in.Alerts, Alert{
			Type:    AlertDanger,
			Message: fmt.Sprintf("月間コストが予算を%s超過しています", domain.FormatCurrency(stats.AverageCostPerMonth-goals.MonthlyBudget)),
		})
	}
	if in.RecentTrend != nil && !in.RecentTrend.IsEfficiencyImproving {
		in.Alerts = append(in.Alerts, Alert{Type: AlertInfo, Message: "最近の燃費が悪化傾向にあります"})
	}

	// Рекомендации
	if belowGoal {
		in.Recommendations = append(in.Recommendations,
			"エコドライブを心がけましょう（急発進・急ブレーキを避ける）",
			"タイヤの空気圧をチェックしましょう",
			"定期的なメンテナンスを実施しましょう",
		)
	}
	if stats.ExpensivePrice-stats.CheapestPrice > domain.PriceSpreadThreshold {
		in.Recommendations = append(in.Recommendations, "価格差の大きいスタンドがあります。安いスタンドを活用しましょう")
	}
	if len(stats.StationStats) > domain.ManyStationsCount {
		in.Recommendations = append(in.Recommendations, "利用頻度の高いスタンドでの割引サービスを確認しましょう")
	}

	switch {
	case len(in.Alerts) == 0:
		in.OverallGrade = "A"
	case len(in.Alerts) <= 2:
		in.OverallGrade = "B"
	default:
		in.OverallGrade = "C"
	}

	return in
}

func budgetGrade(achievement float64) string {
	switch {
	case achievement >= 1:
		return "A"
	case achievement >= 0.8:
		return "B"
	default:
		return "C"
	}
}
