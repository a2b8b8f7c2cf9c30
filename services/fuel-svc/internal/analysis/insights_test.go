package analysis

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fueltracker/pkg/domain"
)

// steady n заправок с постоянным расходом eff и ценой price
func steady(n int, start float64, eff, price float64) []domain.FuelRecord {
	out := make([]domain.FuelRecord, 0, n)
	mileage := start
	for i := 0; i < n; i++ {
		amount := 40.0
		out = append(out, domain.FuelRecord{
			ID:      fmt.Sprintf("r%d", i),
			Date:    fmt.Sprintf("2024-%02d-%02d", 1+i/3, 1+(i%3)*9),
			Amount:  amount,
			Cost:    int64(price * amount),
			Mileage: mileage,
			Station: "A",
		})
		mileage += eff * amount
	}
	return out
}

func TestRecentTrendOf_NotEnoughData(t *testing.T) {
	_, ok := RecentTrendOf(nil)
	assert.False(t, ok)

	// 6 записей: в старшем окне одна запись
	_, ok = RecentTrendOf(steady(6, 1000, 12, 150))
	assert.False(t, ok)

	_, ok = RecentTrendOf(steady(7, 1000, 12, 150))
	assert.True(t, ok)
}

func TestRecentTrendOf_DetectsDecline(t *testing.T) {
	records := steady(10, 1000, 15, 150)
	// последние пять заправок с худшим расходом
	mileage := records[4].Mileage
	for i := 5; i < 10; i++ {
		mileage += 10 * 40
		records[i].Mileage = mileage
	}
	// пара 4->5 попадает только в пограничную зону и не учитывается

	trend, ok := RecentTrendOf(records)

	require.True(t, ok)
	assert.False(t, trend.IsEfficiencyImproving)
	assert.InDelta(t, -5, trend.EfficiencyImprovement, 1e-9)
	assert.False(t, trend.IsPriceIncreasing)
}

func TestBuildInsights_BelowGoalAndOverBudget(t *testing.T) {
	records := scenarioA()
	stats := CalculateStatistics(records)

	in := BuildInsights(stats, records, Goals{EfficiencyGoal: 15, MonthlyBudget: 5000})

	require.Len(t, in.Alerts, 2)
	assert.Equal(t, AlertWarning, in.Alerts[0].Type)
	assert.Equal(t, "燃費が目標を2.5km/L下回っています", in.Alerts[0].Message)
	assert.Equal(t, AlertDanger, in.Alerts[1].Type)
	assert.Equal(t, "月間コストが予算を¥1,100超過しています", in.Alerts[1].Message)

	assert.Equal(t, []string{
		"エコドライブを心がけましょう（急発進・急ブレーキを避ける）",
		"タイヤの空気圧をチェックしましょう",
		"定期的なメンテナンスを実施しましょう",
	}, in.Recommendations)

	assert.InDelta(t, 12.5/15, in.EfficiencyAchievement, 1e-9)
	assert.InDelta(t, 5000.0/6100.0, in.BudgetAchievement, 1e-9)
	assert.Equal(t, "B", in.BudgetGrade)
	assert.Equal(t, "C+", in.EfficiencyGrade)
	assert.Equal(t, "B", in.OverallGrade)
	assert.Nil(t, in.RecentTrend)
}

func TestBuildInsights_AllGood(t *testing.T) {
	records := scenarioA()
	stats := CalculateStatistics(records)

	in := BuildInsights(stats, records, Goals{EfficiencyGoal: 10, MonthlyBudget: 10000})

	assert.Empty(t, in.Alerts)
	assert.Empty(t, in.Recommendations)
	assert.Equal(t, "A", in.OverallGrade)
	assert.Equal(t, "A", in.BudgetGrade)
}

func TestBuildInsights_StationRecommendations(t *testing.T) {
	records := []domain.FuelRecord{
		rec("1", "2024-01-01", 40, 4000, 1000, "A"),
		rec("2", "2024-01-10", 40, 6000, 1600, "B"),
		rec("3", "2024-01-20", 40, 6000, 2200, "C"),
		rec("4", "2024-01-28", 40, 6000, 2800, "D"),
	}
	stats := CalculateStatistics(records)

	in := BuildInsights(stats, records, Goals{EfficiencyGoal: 10, MonthlyBudget: 100000})

	assert.Contains(t, in.Recommendations, "価格差の大きいスタンドがあります。安いスタンドを活用しましょう")
	assert.Contains(t, in.Recommendations, "利用頻度の高いスタンドでの割引サービスを確認しましょう")
}

func TestBuildInsights_ZeroGoalsDoNotDivideByZero(t *testing.T) {
	stats := CalculateStatistics(nil)

	in := BuildInsights(stats, nil, Goals{})

	assert.Zero(t, in.EfficiencyAchievement)
	assert.Zero(t, in.BudgetAchievement)
	assert.NotNil(t, in.Alerts)
	assert.NotNil(t, in.Recommendations)
}
