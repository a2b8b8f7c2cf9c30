package analysis

import (
	"math"
	"sort"

	"fueltracker/pkg/domain"
)

// MonthlyStats агрегаты за календарный месяц
type MonthlyStats struct {
	Month                 string  `json:"month"`
	DisplayMonth          string  `json:"displayMonth"`
	RecordCount           int     `json:"recordCount"`
	TotalCost             int64   `json:"totalCost"`
	TotalAmount           float64 `json:"totalAmount"`
	TotalDistance         float64 `json:"totalDistance"`
	AverageFuelEfficiency float64 `json:"averageFuelEfficiency"`
	AveragePrice          float64 `json:"averagePrice"`
	CostPerKm             float64 `json:"costPerKm"`
}

// StationStats агрегаты по станции
type StationStats struct {
	Station        string  `json:"station"`
	RecordCount    int     `json:"recordCount"`
	TotalCost      int64   `json:"totalCost"`
	TotalAmount    float64 `json:"totalAmount"`
	AveragePrice   float64 `json:"averagePrice"`
	LastVisit      string  `json:"lastVisit"`
	FuelEfficiency float64 `json:"fuelEfficiency"`
}

// Totals итоги по всему набору
type Totals struct {
	TotalRecords           int     `json:"totalRecords"`
	TotalCost              int64   `json:"totalCost"`
	TotalAmount            float64 `json:"totalAmount"`
	TotalDistance          float64 `json:"totalDistance"`
	AveragePrice           float64 `json:"averagePrice"`
	AverageAmountPerFillup float64 `json:"averageAmountPerFillup"`
	BestFuelEfficiency     float64 `json:"bestFuelEfficiency"`
	WorstFuelEfficiency    float64 `json:"worstFuelEfficiency"`
	CheapestPrice          float64 `json:"cheapestPrice"`
	ExpensivePrice         float64 `json:"expensivePrice"`
}

// Aggregates результат Aggregate
type Aggregates struct {
	Monthly  []MonthlyStats `json:"monthlyStats"`
	Stations []StationStats `json:"stationStats"`
	Totals   Totals         `json:"totals"`
}

type group struct {
	key      string
	order    int
	count    int
	cost     int64
	amount   float64
	distance float64
	last     string
}

// Aggregate считает месячные, станционные и общие агрегаты.
// Записи сортируются по дате; "предыдущая" всегда берётся в полном
// хронологическом порядке, а не внутри группы.
func Aggregate(records []domain.FuelRecord) Aggregates {
	sorted := domain.SortByDate(records)

	var (
		months   = make(map[string]*group)
		stations = make(map[string]*group)
		totals   = Totals{TotalRecords: len(sorted)}
		prices   = make([]float64, 0, len(sorted))
	)

	for i, r := range sorted {
		totals.TotalCost += r.Cost
		totals.TotalAmount += r.Amount
		if r.Amount > 0 {
			prices = append(prices, domain.PricePerLiter(r))
		}

		// Месяц: пробег от хронологически предыдущей записи
		m := groupFor(months, domain.MonthKey(r.Date))
		m.count++
		m.cost += r.Cost
		m.amount += r.Amount
		if i > 0 {
			if d, ok := domain.Distance(r, &sorted[i-1]); ok {
				m.distance += d
				totals.TotalDistance += d
			}
		}

		// Станция: пробег до следующей заправки засчитывается ей
		s := groupFor(stations, r.Station)
		s.count++
		s.cost += r.Cost
		s.amount += r.Amount
		s.last = r.Date
		if i < len(sorted)-1 {
			if d, ok := domain.Distance(sorted[i+1], &sorted[i]); ok {
				s.distance += d
			}
		}
	}

	totals.AveragePrice = safeDiv(float64(totals.TotalCost), totals.TotalAmount)
	totals.AverageAmountPerFillup = safeDiv(totals.TotalAmount, float64(totals.TotalRecords))

	effs := domain.PairEfficiencies(sorted)
	totals.BestFuelEfficiency, totals.WorstFuelEfficiency = maxOf(effs), minOf(effs)
	totals.CheapestPrice, totals.ExpensivePrice = minOf(prices), maxOf(prices)

	return Aggregates{
		Monthly:  buildMonthly(months),
		Stations: buildStations(stations),
		Totals:   totals,
	}
}

func groupFor(m map[string]*group, key string) *group {
	g, ok := m[key]
	if !ok {
		g = &group{key: key, order: len(m)}
		m[key] = g
	}
	return g
}

func buildMonthly(months map[string]*group) []MonthlyStats {
	out := make([]MonthlyStats, 0, len(months))
	for _, g := range months {
		out = append(out, MonthlyStats{
			Month:                 g.key,
			DisplayMonth:          domain.DisplayMonth(g.key),
			RecordCount:           g.count,
			TotalCost:             g.cost,
			TotalAmount:           g.amount,
			TotalDistance:         g.distance,
			AverageFuelEfficiency: groupEfficiency(g),
			AveragePrice:          safeDiv(float64(g.cost), g.amount),
			CostPerKm:             safeDiv(float64(g.cost), g.distance),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

func buildStations(stations map[string]*group) []StationStats {
	groups := make([]*group, 0, len(stations))
	for _, g := range stations {
		groups = append(groups, g)
	}
	// по убыванию числа заправок, при равенстве - в порядке первого появления
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].count != groups[j].count {
			return groups[i].count > groups[j].count
		}
		return groups[i].order < groups[j].order
	})

	out := make([]StationStats, 0, len(groups))
	for _, g := range groups {
		out = append(out, StationStats{
			Station:        g.key,
			RecordCount:    g.count,
			TotalCost:      g.cost,
			TotalAmount:    g.amount,
			AveragePrice:   safeDiv(float64(g.cost), g.amount),
			LastVisit:      g.last,
			FuelEfficiency: groupEfficiency(g),
		})
	}
	return out
}

// groupEfficiency сумма пробега / сумма литров, 0 без пробега
func groupEfficiency(g *group) float64 {
	if g.amount <= 0 || g.distance <= 0 {
		return 0
	}
	return g.distance / g.amount
}

func safeDiv(a, b float64) float64 {
	if b == 0 || math.IsNaN(b) {
		return 0
	}
	return a / b
}

func minOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := xs[0]
	for _, x := range xs[1:] {
		m = math.Min(m, x)
	}
	return m
}

func maxOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := xs[0]
	for _, x := range xs[1:] {
		m = math.Max(m, x)
	}
	return m
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}
