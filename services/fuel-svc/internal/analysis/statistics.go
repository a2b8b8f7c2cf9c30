package analysis

import "fueltracker/pkg/domain"

// StatisticsData единый снимок статистики по набору записей
type StatisticsData struct {
	TotalRecords           int                `json:"totalRecords"`
	TotalCost              int64              `json:"totalCost"`
	TotalAmount            float64            `json:"totalAmount"`
	TotalDistance          float64            `json:"totalDistance"`
	AverageFuelEfficiency  float64            `json:"averageFuelEfficiency"`
	AveragePrice           float64            `json:"averagePrice"`
	AverageCostPerMonth    float64            `json:"averageCostPerMonth"`
	AverageAmountPerFillup float64            `json:"averageAmountPerFillup"`
	BestFuelEfficiency     float64            `json:"bestFuelEfficiency"`
	WorstFuelEfficiency    float64            `json:"worstFuelEfficiency"`
	CheapestPrice          float64            `json:"cheapestPrice"`
	ExpensivePrice         float64            `json:"expensivePrice"`
	FirstRecord            *domain.FuelRecord `json:"firstRecord,omitempty"`
	LatestRecord           *domain.FuelRecord `json:"latestRecord,omitempty"`
	MonthlyStats           []MonthlyStats     `json:"monthlyStats"`
	StationStats           []StationStats     `json:"stationStats"`
	Trends                 TrendData          `json:"trends"`
}

// CalculateStatistics собирает снимок. Чистая функция, на пустом
// входе возвращает нулевой снимок с пустыми (не nil) списками.
func CalculateStatistics(records []domain.FuelRecord) StatisticsData {
	if len(records) == 0 {
		return StatisticsData{
			MonthlyStats: []MonthlyStats{},
			StationStats: []StationStats{},
		}
	}

	sorted := domain.SortByDate(records)
	agg := Aggregate(sorted)
	t := agg.Totals

	months := len(agg.Monthly)
	if months == 0 {
		months = 1
	}

	first := sorted[0]
	latest := sorted[len(sorted)-1]

	return StatisticsData{
		TotalRecords:           t.TotalRecords,
		TotalCost:              t.TotalCost,
		TotalAmount:            t.TotalAmount,
		TotalDistance:          t.TotalDistance,
		AverageFuelEfficiency:  mean(domain.PairEfficiencies(sorted)),
		AveragePrice:           t.AveragePrice,
		AverageCostPerMonth:    float64(t.TotalCost) / float64(months),
		AverageAmountPerFillup: t.AverageAmountPerFillup,
		BestFuelEfficiency:     t.BestFuelEfficiency,
		WorstFuelEfficiency:    t.WorstFuelEfficiency,
		CheapestPrice:          t.CheapestPrice,
		ExpensivePrice:         t.ExpensivePrice,
		FirstRecord:            &first,
		LatestRecord:           &latest,
		MonthlyStats:           agg.Monthly,
		StationStats:           agg.Stations,
		Trends:                 Trends(agg.Monthly),
	}
}

// Series данные для графиков
type Series struct {
	Points  []domain.EfficiencyPoint `json:"points"`
	Monthly []MonthlyStats           `json:"monthly"`
}

// BuildSeries ряд по записям в хронологическом порядке и помесячные точки
func BuildSeries(records []domain.FuelRecord) Series {
	sorted := domain.SortByDate(records)
	return Series{
		Points:  domain.EfficiencySeries(sorted),
		Monthly: Aggregate(sorted).Monthly,
	}
}
