package domain

import "math"

// Математические константы
const (
	Epsilon = 1e-9
)

// Границы проверки ручного ввода
const (
	MinAmount         = 1.0   // л
	MaxAmount         = 200.0 // л
	MinCost           = 100   // иен
	MaxCost           = 50000 // иен
	MinPricePerLiter  = 80.0
	MaxPricePerLiter  = 300.0
	MaxMileage        = 1_000_000.0 // км
	MaxStationLength  = 50          // символов
	MaxDistancePerDay = 1000.0      // км
	SuspiciousAgeDays = 365
)

// Ограничения импорта
const (
	MaxImportErrors = 20
)

// Пороги рекомендаций
const (
	RecentWindow         = 5    // заправок в окне тренда
	PriceSpreadThreshold = 20.0 // иен/л
	ManyStationsCount    = 3
)

// FloatEquals сравнивает два float64 с учётом Epsilon
func FloatEquals(a, b float64) bool {
	return math.Abs(a-b) < Epsilon
}

// FloatEqualsTol сравнение с заданной точностью
func FloatEqualsTol(a, b, tol float64) bool {
	return math.Abs(a-b) < tol
}
