package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fueltracker/pkg/domain"
)

const tol = 1e-9

func rec(id, date string, amount float64, cost int64, mileage float64, station string) domain.FuelRecord {
	return domain.FuelRecord{ID: id, Date: date, Amount: amount, Cost: cost, Mileage: mileage, Station: station}
}

func scenarioA() []domain.FuelRecord {
	return []domain.FuelRecord{
		rec("1", "2024-01-01", 40, 6000, 1000, "X"),
		rec("2", "2024-02-01", 40, 6200, 1500, "Y"),
	}
}

func TestCalculateStatistics_ScenarioA(t *testing.T) {
	stats := CalculateStatistics(scenarioA())

	assert.Equal(t, 2, stats.TotalRecords)
	assert.InDelta(t, 12.5, stats.AverageFuelEfficiency, tol)
	assert.InDelta(t, 12.5, stats.BestFuelEfficiency, tol)
	assert.InDelta(t, 12.5, stats.WorstFuelEfficiency, tol)
	assert.InDelta(t, 500, stats.TotalDistance, tol)

	require.Len(t, stats.MonthlyStats, 2)
	assert.Equal(t, "2024-01", stats.MonthlyStats[0].Month)
	assert.Equal(t, "2024年01月", stats.MonthlyStats[0].DisplayMonth)
	assert.Equal(t, 1, stats.MonthlyStats[0].RecordCount)
	assert.Equal(t, 1, stats.MonthlyStats[1].RecordCount)

	assert.InDelta(t, 5, stats.Trends.PriceChange, tol)
	assert.True(t, stats.Trends.IsPriceIncreasing)
	assert.True(t, stats.Trends.IsImprovingEfficiency)
	assert.InDelta(t, 200, stats.Trends.CostChange, tol)

	require.NotNil(t, stats.FirstRecord)
	require.NotNil(t, stats.LatestRecord)
	assert.Equal(t, "1", stats.FirstRecord.ID)
	assert.Equal(t, "2", stats.LatestRecord.ID)
	assert.InDelta(t, 6100, stats.AverageCostPerMonth, tol)
	assert.InDelta(t, 40, stats.AverageAmountPerFillup, tol)
	assert.InDelta(t, 150, stats.CheapestPrice, tol)
	assert.InDelta(t, 155, stats.ExpensivePrice, tol)
}

func TestCalculateStatistics_Empty(t *testing.T) {
	stats := CalculateStatistics(nil)

	assert.Equal(t, 0, stats.TotalRecords)
	assert.Zero(t, stats.AverageFuelEfficiency)
	assert.NotNil(t, stats.MonthlyStats)
	assert.Empty(t, stats.MonthlyStats)
	assert.NotNil(t, stats.StationStats)
	assert.Empty(t, stats.StationStats)
	assert.Equal(t, TrendData{}, stats.Trends)
	assert.Nil(t, stats.FirstRecord)
	assert.Nil(t, stats.LatestRecord)
}

func TestCalculateStatistics_UnsortedInput(t *testing.T) {
	records := []domain.FuelRecord{
		rec("3", "2024-03-01", 50, 8000, 2000, "Y"),
		rec("1", "2024-01-01", 40, 6000, 1000, "X"),
		rec("2", "2024-02-01", 40, 6200, 1500, "Y"),
	}

	stats := CalculateStatistics(records)

	// пары (1->2)=12.5, (2->3)=10, среднее 11.25
	assert.InDelta(t, 11.25, stats.AverageFuelEfficiency, tol)
	assert.InDelta(t, 12.5, stats.BestFuelEfficiency, tol)
	assert.InDelta(t, 10, stats.WorstFuelEfficiency, tol)
	assert.Equal(t, "1", stats.FirstRecord.ID)
	assert.Equal(t, "3", stats.LatestRecord.ID)
	assert.Equal(t, "3", records[0].ID, "input must stay untouched")
}

func TestAggregate_SumsMatchTotals(t *testing.T) {
	records := []domain.FuelRecord{
		rec("1", "2024-01-03", 35.2, 5400, 10000, "A"),
		rec("2", "2024-01-20", 30.1, 4700, 10420, "B"),
		rec("3", "2024-02-11", 41.7, 6500, 10900, "A"),
		rec("4", "2024-02-25", 28.4, 4450, 10890, "C"),
		rec("5", "2024-04-02", 38.0, 6100, 11400, "A"),
	}

	agg := Aggregate(records)

	var amount float64
	var cost int64
	for _, m := range agg.Monthly {
		amount += m.TotalAmount
		cost += m.TotalCost
	}
	assert.InDelta(t, agg.Totals.TotalAmount, amount, 1e-6)
	assert.Equal(t, agg.Totals.TotalCost, cost)
}

func TestAggregate_MonthlyDistanceUsesChronologicalPredecessor(t *testing.T) {
	records := []domain.FuelRecord{
		rec("1", "2024-01-25", 40, 6000, 1000, "A"),
		rec("2", "2024-02-05", 40, 6000, 1400, "A"),
		rec("3", "2024-02-20", 40, 6000, 1900, "A"),
	}

	agg := Aggregate(records)

	require.Len(t, agg.Monthly, 2)
	jan, feb := agg.Monthly[0], agg.Monthly[1]
	assert.Zero(t, jan.TotalDistance)
	assert.Zero(t, jan.AverageFuelEfficiency)
	assert.Zero(t, jan.CostPerKm)
	// февральская первая запись считается от январской
	assert.InDelta(t, 900, feb.TotalDistance, tol)
	assert.InDelta(t, 900.0/80.0, feb.AverageFuelEfficiency, tol)
	assert.InDelta(t, 12000.0/900.0, feb.CostPerKm, tol)
}

func TestAggregate_StationEfficiencyIsForwardLooking(t *testing.T) {
	records := []domain.FuelRecord{
		rec("1", "2024-01-01", 40, 6000, 1000, "A"),
		rec("2", "2024-01-15", 40, 6000, 1600, "B"),
		rec("3", "2024-02-01", 50, 7500, 2000, "A"),
	}

	agg := Aggregate(records)

	byName := map[string]StationStats{}
	for _, s := range agg.Stations {
		byName[s.Station] = s
	}

	// A: 600км после первой заправки, последняя заправка A без следующей
	assert.InDelta(t, 600.0/90.0, byName["A"].FuelEfficiency, tol)
	assert.Equal(t, "2024-02-01", byName["A"].LastVisit)
	// B: 400км до следующей записи
	assert.InDelta(t, 400.0/40.0, byName["B"].FuelEfficiency, tol)
}

func TestAggregate_StationOrdering(t *testing.T) {
	records := []domain.FuelRecord{
		rec("1", "2024-01-01", 40, 6000, 1000, "B"),
		rec("2", "2024-01-05", 40, 6000, 1100, "A"),
		rec("3", "2024-01-10", 40, 6000, 1200, "C"),
		rec("4", "2024-01-15", 40, 6000, 1300, "C"),
		rec("5", "2024-01-20", 40, 6000, 1400, "A"),
	}

	agg := Aggregate(records)

	var names []string
	for _, s := range agg.Stations {
		names = append(names, s.Station)
	}
	// A и C по 2, A встретилась раньше; B одна
	assert.Equal(t, []string{"A", "C", "B"}, names)
}

func TestAggregate_CaseSensitiveStations(t *testing.T) {
	agg := Aggregate([]domain.FuelRecord{
		rec("1", "2024-01-01", 40, 6000, 1000, "Shell"),
		rec("2", "2024-01-05", 40, 6000, 1100, "shell"),
	})
	assert.Len(t, agg.Stations, 2)
}

func TestAggregate_RollbackIgnored(t *testing.T) {
	agg := Aggregate([]domain.FuelRecord{
		rec("1", "2024-01-01", 40, 6000, 1000, "A"),
		rec("2", "2024-01-10", 40, 6000, 900, "A"),
	})

	assert.Zero(t, agg.Totals.TotalDistance)
	assert.Zero(t, agg.Totals.BestFuelEfficiency)
	assert.Zero(t, agg.Totals.WorstFuelEfficiency)
}

func TestTrends_Boundaries(t *testing.T) {
	assert.Equal(t, TrendData{}, Trends(nil))
	assert.Equal(t, TrendData{}, Trends([]MonthlyStats{{Month: "2024-01", AveragePrice: 150}}))
}

func TestTrends_StrictComparison(t *testing.T) {
	got := Trends([]MonthlyStats{
		{Month: "2024-01", AveragePrice: 150, AverageFuelEfficiency: 12},
		{Month: "2024-02", AveragePrice: 150, AverageFuelEfficiency: 12},
	})

	assert.False(t, got.IsPriceIncreasing)
	assert.False(t, got.IsImprovingEfficiency)
}

func TestTrends_UsesLastTwoMonths(t *testing.T) {
	got := Trends([]MonthlyStats{
		{Month: "2024-01", AveragePrice: 100, TotalCost: 1000},
		{Month: "2024-02", AveragePrice: 160, TotalCost: 5000},
		{Month: "2024-03", AveragePrice: 150, TotalCost: 4000},
	})

	assert.InDelta(t, -10, got.PriceChange, tol)
	assert.InDelta(t, -1000, got.CostChange, tol)
	assert.False(t, got.IsPriceIncreasing)
}

func TestBuildSeries(t *testing.T) {
	s := BuildSeries([]domain.FuelRecord{scenarioA()[1], scenarioA()[0]})

	require.Len(t, s.Points, 2)
	assert.Equal(t, "2024-01-01", s.Points[0].Date)
	assert.Nil(t, s.Points[0].Efficiency)
	require.NotNil(t, s.Points[1].Efficiency)
	assert.InDelta(t, 12.5, *s.Points[1].Efficiency, tol)
	assert.Len(t, s.Monthly, 2)
}
