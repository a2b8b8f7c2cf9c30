// services/fuel-svc/internal/generator/excel.go

package generator

import (
	"bytes"
	"context"
	"fmt"

	"github.com/xuri/excelize/v2"

	"fueltracker/pkg/domain"
)

const (
	sheetRecords = "燃費記録"
	sheetMonthly = "月別集計"
	sheetStation = "スタンド別"
	sheetSummary = "サマリー"
)

// ExcelGenerator генератор XLSX книги
type ExcelGenerator struct {
	BaseGenerator
}

// NewExcelGenerator создаёт новый генератор
func NewExcelGenerator() *ExcelGenerator {
	return &ExcelGenerator{}
}

// Format возвращает формат генератора
func (g *ExcelGenerator) Format() Format {
	return FormatExcel
}

// Generate собирает книгу из четырёх листов
func (g *ExcelGenerator) Generate(ctx context.Context, data *ExportData) ([]byte, error) {
	if len(data.Records) == 0 {
		return nil, errEmpty("エクスポートするデータがありません")
	}

	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		return nil, fmt.Errorf("excel style error: %w", err)
	}

	stats := g.Stats(data)

	steps := []func(*excelize.File, int) error{
		func(f *excelize.File, hs int) error { return g.writeSummary(f, hs, data) },
		func(f *excelize.File, hs int) error { return g.writeRecords(f, hs, data.Records) },
		func(f *excelize.File, hs int) error {
			rows := make([][]any, 0, len(stats.MonthlyStats))
			for _, m := range stats.MonthlyStats {
				rows = append(rows, []any{
					m.DisplayMonth, m.RecordCount, domain.RoundTenth(m.TotalAmount), m.TotalCost,
					domain.RoundTenth(m.AveragePrice), domain.RoundTenth(m.TotalDistance),
					domain.RoundTenth(m.AverageFuelEfficiency), domain.RoundTenth(m.CostPerKm),
				})
			}
			return writeTable(f, sheetMonthly, hs,
				[]string{"月", "給油回数", "給油量(L)", "金額(円)", "平均単価(円/L)", "走行距離(km)", "平均燃費(km/L)", "円/km"}, rows)
		},
		func(f *excelize.File, hs int) error {
			rows := make([][]any, 0, len(stats.StationStats))
			for _, s := range stats.StationStats {
				rows = append(rows, []any{
					s.Station, s.RecordCount, domain.RoundTenth(s.TotalAmount), s.TotalCost,
					domain.RoundTenth(s.AveragePrice), s.LastVisit, domain.RoundTenth(s.FuelEfficiency),
				})
			}
			return writeTable(f, sheetStation, hs,
				[]string{"スタンド名", "給油回数", "給油量(L)", "金額(円)", "平均単価(円/L)", "最終利用日", "燃費(km/L)"}, rows)
		},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := step(f, headerStyle); err != nil {
			return nil, fmt.Errorf("excel write error: %w", err)
		}
	}

	// Удаляем дефолтный лист, первым остаётся сводка
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return nil, fmt.Errorf("excel write error: %w", err)
	}
	if idx, err := f.GetSheetIndex(sheetSummary); err == nil {
		f.SetActiveSheet(idx)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *ExcelGenerator) writeSummary(f *excelize.File, headerStyle int, data *ExportData) error {
	if _, err := f.NewSheet(sheetSummary); err != nil {
		return err
	}
	stats := g.Stats(data)

	if err := f.SetCellValue(sheetSummary, "A1", g.GetTitle(data)); err != nil {
		return err
	}
	if err := f.MergeCell(sheetSummary, "A1", "B1"); err != nil {
		return err
	}
	if err := f.SetCellStyle(sheetSummary, "A1", "B1", headerStyle); err != nil {
		return err
	}

	rows := [][]any{
		{"生成日時", g.FormatTimestamp(g.Now(data))},
		{"給油回数", stats.TotalRecords},
		{"総費用(円)", stats.TotalCost},
		{"総給油量(L)", domain.RoundTenth(stats.TotalAmount)},
		{"総走行距離(km)", domain.RoundTenth(stats.TotalDistance)},
		{"平均燃費(km/L)", domain.RoundTenth(stats.AverageFuelEfficiency)},
		{"燃費評価", domain.EfficiencyGrade(stats.AverageFuelEfficiency)},
		{"平均単価(円/L)", domain.RoundTenth(stats.AveragePrice)},
		{"月平均費用(円)", domain.RoundTenth(stats.AverageCostPerMonth)},
		{"最高燃費(km/L)", domain.RoundTenth(stats.BestFuelEfficiency)},
		{"最低燃費(km/L)", domain.RoundTenth(stats.WorstFuelEfficiency)},
		{"最安単価(円/L)", domain.RoundTenth(stats.CheapestPrice)},
		{"最高単価(円/L)", domain.RoundTenth(stats.ExpensivePrice)},
	}
	for i, row := range rows {
		if err := f.SetSheetRow(sheetSummary, CellByIndex(0, i+3), &row); err != nil {
			return err
		}
	}
	return f.SetColWidth(sheetSummary, "A", "B", 22)
}

func (g *ExcelGenerator) writeRecords(f *excelize.File, headerStyle int, records []domain.FuelRecord) error {
	rows := make([][]any, 0, len(records))
	for i, r := range records {
		var efficiency any = "-"
		if e, ok := domain.Efficiency(r, previous(records, i)); ok {
			efficiency = domain.RoundTenth(e)
		}
		rows = append(rows, []any{
			r.Date, r.Station, r.Amount, r.Cost,
			domain.RoundTenth(domain.PricePerLiter(r)), r.Mileage, efficiency,
		})
	}
	return writeTable(f, sheetRecords, headerStyle, CSVHeader, rows)
}

// writeTable создаёт лист с заголовком и строками данных
func writeTable(f *excelize.File, sheet string, headerStyle int, headers []string, rows [][]any) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	for i, h := range headers {
		if err := f.SetCellValue(sheet, CellByIndex(i, 1), h); err != nil {
			return err
		}
	}
	last := CellByIndex(len(headers)-1, 1)
	if err := f.SetCellStyle(sheet, "A1", last, headerStyle); err != nil {
		return err
	}

	for i, row := range rows {
		if err := f.SetSheetRow(sheet, CellByIndex(0, i+2), &row); err != nil {
			return err
		}
	}

	if err := f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", ColName(len(headers)-1), 14)
}
