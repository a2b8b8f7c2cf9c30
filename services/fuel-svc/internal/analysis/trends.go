package analysis

import "fueltracker/pkg/domain"

// TrendData изменение последнего месяца относительно предыдущего
type TrendData struct {
	PriceChange           float64 `json:"priceChange"`      // иен/л
	EfficiencyChange      float64 `json:"efficiencyChange"` // км/л
	CostChange            float64 `json:"costChange"`       // иен
	IsImprovingEfficiency bool    `json:"isImprovingEfficiency"`
	IsPriceIncreasing     bool    `json:"isPriceIncreasing"`
}

// Trends сравнивает два последних месяца (вход по возрастанию).
// Меньше двух месяцев - нулевой результат.
func Trends(monthly []MonthlyStats) TrendData {
	if len(monthly) < 2 {
		return TrendData{}
	}

	latest := monthly[len(monthly)-1]
	previous := monthly[len(monthly)-2]

	t := TrendData{
		PriceChange:      latest.AveragePrice - previous.AveragePrice,
		EfficiencyChange: latest.AverageFuelEfficiency - previous.AverageFuelEfficiency,
		CostChange:       float64(latest.TotalCost - previous.TotalCost),
	}
	// строгое сравнение: равенство не считается ни ростом, ни улучшением
	t.IsImprovingEfficiency = t.EfficiencyChange > 0
	t.IsPriceIncreasing = t.PriceChange > 0
	return t
}

// RecentTrend сравнение последних заправок с предыдущими
type RecentTrend struct {
	EfficiencyImprovement float64 `json:"efficiencyImprovement"`
	PriceChange           float64 `json:"priceChange"`
	IsEfficiencyImproving bool    `json:"isEfficiencyImproving"`
	IsPriceIncreasing     bool    `json:"isPriceIncreasing"`
}

// RecentTrendOf сравнивает окно из последних domain.RecentWindow заправок
// с таким же окном перед ним. ok=false, если в каком-то окне меньше двух записей.
func RecentTrendOf(records []domain.FuelRecord) (RecentTrend, bool) {
	if len(records) < 2 {
		return RecentTrend{}, false
	}

	sorted := domain.SortByDate(records)
	n := len(sorted)
	recent := sorted[max(0, n-domain.RecentWindow):]
	older := sorted[max(0, n-2*domain.RecentWindow):max(0, n-domain.RecentWindow)]

	if len(recent) < 2 || len(older) < 2 {
		return RecentTrend{}, false
	}

	recentEff := mean(domain.PairEfficiencies(recent))
	olderEff := mean(domain.PairEfficiencies(older))
	recentPrice := windowPrice(recent)
	olderPrice := windowPrice(older)

	return RecentTrend{
		EfficiencyImprovement: recentEff - olderEff,
		PriceChange:           recentPrice - olderPrice,
		IsEfficiencyImproving: recentEff > olderEff,
		IsPriceIncreasing:     recentPrice > olderPrice,
	}, true
}

func windowPrice(window []domain.FuelRecord) float64 {
	prices := make([]float64, 0, len(window))
	for _, r := range window {
		prices = append(prices, domain.PricePerLiter(r))
	}
	return mean(prices)
}
