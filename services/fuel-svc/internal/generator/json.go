// services/fuel-svc/internal/generator/json.go

package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fueltracker/pkg/domain"
)

// exportDateLayout ISO-8601 с миллисекундами в UTC
const exportDateLayout = "2006-01-02T15:04:05.000Z07:00"

// JSONExport корневой объект JSON выгрузки
type JSONExport struct {
	ExportDate   string         `json:"exportDate"`
	TotalRecords int            `json:"totalRecords"`
	Records      []ExportRecord `json:"records"`
}

// ExportRecord запись с производными полями, округлёнными до 0.1
type ExportRecord struct {
	ID                   string    `json:"id,omitempty"`
	Date                 string    `json:"date"`
	Amount               float64   `json:"amount"`
	Cost                 int64     `json:"cost"`
	Mileage              float64   `json:"mileage"`
	Station              string    `json:"station"`
	CreatedAt            time.Time `json:"created_at,omitzero"`
	PricePerLiter        float64   `json:"pricePerLiter"`
	FuelEfficiency       *float64  `json:"fuelEfficiency"`
	DistanceFromPrevious *float64  `json:"distanceFromPrevious"`
}

// JSONGenerator генератор JSON выгрузки
type JSONGenerator struct {
	BaseGenerator
}

// NewJSONGenerator создаёт новый генератор
func NewJSONGenerator() *JSONGenerator {
	return &JSONGenerator{}
}

// Format возвращает формат генератора
func (g *JSONGenerator) Format() Format {
	return FormatJSON
}

// Generate генерирует JSON с отступом в два пробела
func (g *JSONGenerator) Generate(ctx context.Context, data *ExportData) ([]byte, error) {
	if len(data.Records) == 0 {
		return nil, errEmpty("エクスポートするデータがありません")
	}

	out := JSONExport{
		ExportDate:   g.Now(data).UTC().Format(exportDateLayout),
		TotalRecords: len(data.Records),
		Records:      make([]ExportRecord, 0, len(data.Records)),
	}

	for i, r := range data.Records {
		prev := previous(data.Records, i)
		er := ExportRecord{
			ID:            r.ID,
			Date:          r.Date,
			Amount:        r.Amount,
			Cost:          r.Cost,
			Mileage:       r.Mileage,
			Station:       r.Station,
			CreatedAt:     r.CreatedAt,
			PricePerLiter: domain.RoundTenth(domain.PricePerLiter(r)),
		}
		if e, ok := domain.Efficiency(r, prev); ok {
			v := domain.RoundTenth(e)
			er.FuelEfficiency = &v
		}
		if d, ok := domain.Distance(r, prev); ok {
			v := domain.RoundTenth(d)
			er.DistanceFromPrevious = &v
		}
		out.Records = append(out.Records, er)
	}

	b, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("json marshal error: %w", err)
	}
	return b, nil
}
