package domain

// PricePerLiter цена за литр; 0 при нулевом объёме
func PricePerLiter(r FuelRecord) float64 {
	if r.Amount == 0 {
		return 0
	}
	return float64(r.Cost) / r.Amount
}

// Distance пробег от предыдущей заправки.
// ok=false если предыдущей нет или разница показаний не положительна.
func Distance(current FuelRecord, previous *FuelRecord) (float64, bool) {
	if previous == nil {
		return 0, false
	}
	d := current.Mileage - previous.Mileage
	if d <= 0 {
		return 0, false
	}
	return d, true
}

// Efficiency расход км/л для пары соседних по дате записей.
// Не определён (ok=false) для первой записи и при откате одометра.
func Efficiency(current FuelRecord, previous *FuelRecord) (float64, bool) {
	d, ok := Distance(current, previous)
	if !ok || current.Amount <= 0 {
		return 0, false
	}
	return d / current.Amount, true
}

// EfficiencyPoint точка ряда для графиков
type EfficiencyPoint struct {
	Date          string   `json:"date"`
	Station       string   `json:"station"`
	PricePerLiter float64  `json:"pricePerLiter"`
	Efficiency    *float64 `json:"efficiency"`
	Distance      *float64 `json:"distance"`
}

// EfficiencySeries строит ряд по уже отсортированным записям,
// предыдущей считается соседняя запись в переданном порядке.
func EfficiencySeries(sorted []FuelRecord) []EfficiencyPoint {
	points := make([]EfficiencyPoint, 0, len(sorted))
	for i, r := range sorted {
		p := EfficiencyPoint{
			Date:          r.Date,
			Station:       r.Station,
			PricePerLiter: PricePerLiter(r),
		}
		var prev *FuelRecord
		if i > 0 {
			prev = &sorted[i-1]
		}
		if d, ok := Distance(r, prev); ok {
			p.Distance = &d
		}
		if e, ok := Efficiency(r, prev); ok {
			p.Efficiency = &e
		}
		points = append(points, p)
	}
	return points
}

// PairEfficiencies эффективность всех соседних пар с положительным пробегом
func PairEfficiencies(sorted []FuelRecord) []float64 {
	out := make([]float64, 0, len(sorted))
	for i := 1; i < len(sorted); i++ {
		if e, ok := Efficiency(sorted[i], &sorted[i-1]); ok {
			out = append(out, e)
		}
	}
	return out
}
