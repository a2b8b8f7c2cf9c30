// services/fuel-svc/internal/generator/generator.go

package generator

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	pkgerrors "fueltracker/pkg/apperror"
	"fueltracker/pkg/config"
	"fueltracker/pkg/domain"
	"fueltracker/services/fuel-svc/internal/analysis"
)

// Format формат экспорта
type Format string

const (
	FormatCSV    Format = "csv"
	FormatJSON   Format = "json"
	FormatReport Format = "report"
	FormatExcel  Format = "xlsx"
	FormatPDF    Format = "pdf"
)

// ParseFormat разбирает формат из строки запроса ("excel" == "xlsx", "txt"/"markdown" == "report")
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv":
		return FormatCSV, nil
	case "json":
		return FormatJSON, nil
	case "report", "txt", "markdown", "md":
		return FormatReport, nil
	case "xlsx", "excel":
		return FormatExcel, nil
	case "pdf":
		return FormatPDF, nil
	default:
		return "", pkgerrors.New(pkgerrors.CodeUnsupported, fmt.Sprintf("unsupported export format %q", s))
	}
}

// ContentType MIME-тип результата
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	case FormatJSON:
		return "application/json; charset=utf-8"
	case FormatReport:
		return "text/plain; charset=utf-8"
	case FormatExcel:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	default:
		return "application/octet-stream"
	}
}

// Filename имя файла для скачивания
func Filename(f Format, now time.Time) string {
	day := now.UTC().Format(domain.DateLayout)
	switch f {
	case FormatReport:
		return fmt.Sprintf("燃費月次レポート_%s.txt", day)
	default:
		return fmt.Sprintf("燃費記録_%s.%s", day, f)
	}
}

// ExportData данные для экспорта.
// Records уже отсортированы и отфильтрованы вызывающей стороной,
// генераторы табличных форматов не пересортировывают их.
type ExportData struct {
	Records     []domain.FuelRecord
	Statistics  *analysis.StatisticsData
	GeneratedAt time.Time
	Title       string
}

// Generator интерфейс генератора экспорта
type Generator interface {
	Generate(ctx context.Context, data *ExportData) ([]byte, error)
	Format() Format
}

// BaseGenerator базовые утилиты для генераторов
type BaseGenerator struct{}

// GetTitle возвращает заголовок отчёта
func (b *BaseGenerator) GetTitle(data *ExportData) string {
	if data.Title != "" {
		return data.Title
	}
	return "Fuel Efficiency Report"
}

// Now время генерации (фиксируется в тестах через GeneratedAt)
func (b *BaseGenerator) Now(data *ExportData) time.Time {
	if data.GeneratedAt.IsZero() {
		return time.Now()
	}
	return data.GeneratedAt
}

// Stats возвращает переданный снимок или считает его
func (b *BaseGenerator) Stats(data *ExportData) analysis.StatisticsData {
	if data.Statistics != nil {
		return *data.Statistics
	}
	return analysis.CalculateStatistics(data.Records)
}

// FormatFloat форматирует число с заданной точностью.
// Половина округляется от нуля, как в domain.RoundTenth и JSON-экспорте.
func (b *BaseGenerator) FormatFloat(v float64, precision int) string {
	p := math.Pow10(precision)
	return fmt.Sprintf("%.*f", precision, math.Round(v*p)/p)
}

// FormatTimestamp форматирует время
func (b *BaseGenerator) FormatTimestamp(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

// previous возвращает предыдущую запись в порядке массива
func previous(records []domain.FuelRecord, i int) *domain.FuelRecord {
	if i == 0 {
		return nil
	}
	return &records[i-1]
}

func errEmpty(msg string) error {
	return pkgerrors.New(pkgerrors.CodeExportEmpty, msg)
}

// Registry набор генераторов по форматам
type Registry struct {
	generators map[Format]Generator
}

// NewRegistry регистрирует все поддерживаемые генераторы
func NewRegistry(pdfCfg config.PDFConfig) *Registry {
	r := &Registry{generators: make(map[Format]Generator)}
	for _, g := range []Generator{
		NewCSVGenerator(),
		NewJSONGenerator(),
		NewReportGenerator(),
		NewExcelGenerator(),
		NewPDFGenerator(pdfCfg),
	} {
		r.generators[g.Format()] = g
	}
	return r
}

// Get возвращает генератор формата
func (r *Registry) Get(f Format) (Generator, error) {
	g, ok := r.generators[f]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnsupported, fmt.Sprintf("no generator for format %q", f))
	}
	return g, nil
}

// ColName преобразует индекс колонки в буквенное обозначение (0 -> A, 25 -> Z, 26 -> AA)
func ColName(index int) string {
	result := ""
	for {
		result = string(rune('A'+index%26)) + result
		index = index/26 - 1
		if index < 0 {
			break
		}
	}
	return result
}

// CellByIndex возвращает адрес ячейки по индексам
func CellByIndex(colIndex, rowIndex int) string {
	return fmt.Sprintf("%s%d", ColName(colIndex), rowIndex)
}
