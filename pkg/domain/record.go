package domain

import (
	"math"
	"sort"
	"time"
)

// DateLayout формат даты записи (без времени)
const DateLayout = "2006-01-02"

// FuelRecord запись о заправке
type FuelRecord struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Date      string    `json:"date"`    // YYYY-MM-DD
	Amount    float64   `json:"amount"`  // литры
	Cost      int64     `json:"cost"`    // иены, целое
	Mileage   float64   `json:"mileage"` // показания одометра, км
	Station   string    `json:"station"`
	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// FormInput сырые значения формы до разбора
type FormInput struct {
	Date    string `json:"date"`
	Amount  string `json:"amount"`
	Cost    string `json:"cost"`
	Mileage string `json:"mileage"`
	Station string `json:"station"`
}

// ImportRow строка импорта после нормализации.
// nil в числовом поле означает, что значение отсутствовало в источнике.
type ImportRow struct {
	Date    string   `json:"date"`
	Amount  *float64 `json:"amount"`
	Cost    *float64 `json:"cost"`
	Mileage *float64 `json:"mileage"`
	Station string   `json:"station"`
}

// ToRecord переводит проверенную строку импорта в запись
func (r ImportRow) ToRecord() FuelRecord {
	rec := FuelRecord{Date: r.Date, Station: r.Station}
	if r.Amount != nil {
		rec.Amount = *r.Amount
	}
	if r.Cost != nil {
		rec.Cost = int64(math.Round(*r.Cost))
	}
	if r.Mileage != nil {
		rec.Mileage = *r.Mileage
	}
	return rec
}

// ParseDate разбирает дату записи
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// SortByDate возвращает копию, стабильно отсортированную по возрастанию даты.
// Исходный срез не меняется.
func SortByDate(records []FuelRecord) []FuelRecord {
	sorted := make([]FuelRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date < sorted[j].Date
	})
	return sorted
}

// Latest возвращает хронологически последнюю запись (max по дате)
func Latest(records []FuelRecord) (FuelRecord, bool) {
	if len(records) == 0 {
		return FuelRecord{}, false
	}
	sorted := SortByDate(records)
	return sorted[len(sorted)-1], true
}

// Stations возвращает отсортированный список уникальных названий станций.
// Сравнение точное, с учётом регистра.
func Stations(records []FuelRecord) []string {
	seen := make(map[string]struct{}, len(records))
	out := make([]string, 0)
	for _, r := range records {
		if r.Station == "" {
			continue
		}
		if _, ok := seen[r.Station]; ok {
			continue
		}
		seen[r.Station] = struct{}{}
		out = append(out, r.Station)
	}
	sort.Strings(out)
	return out
}

// FilterByPeriod оставляет записи с from <= date <= to.
// Пустая граница не ограничивает.
func FilterByPeriod(records []FuelRecord, from, to string) []FuelRecord {
	out := make([]FuelRecord, 0, len(records))
	for _, r := range records {
		if from != "" && r.Date < from {
			continue
		}
		if to != "" && r.Date > to {
			continue
		}
		out = append(out, r)
	}
	return out
}
