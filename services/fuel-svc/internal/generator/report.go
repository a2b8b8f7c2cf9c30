// services/fuel-svc/internal/generator/report.go

package generator

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"fueltracker/pkg/domain"
	"fueltracker/services/fuel-svc/internal/analysis"
)

// ReportGenerator месячный отчёт в текстовом Markdown
type ReportGenerator struct {
	BaseGenerator
}

// NewReportGenerator создаёт новый генератор
func NewReportGenerator() *ReportGenerator {
	return &ReportGenerator{}
}

// Format возвращает формат генератора
func (g *ReportGenerator) Format() Format {
	return FormatReport
}

// Generate пишет месяцы от новых к старым, затем итоги за весь период
func (g *ReportGenerator) Generate(ctx context.Context, data *ExportData) ([]byte, error) {
	if len(data.Records) == 0 {
		return nil, errEmpty("レポートを生成するデータがありません")
	}

	agg := analysis.Aggregate(data.Records)
	sorted := domain.SortByDate(data.Records)

	var lines []string
	lines = append(lines,
		"# 燃費月次レポート",
		fmt.Sprintf("生成日時: %s", g.Now(data).Format("2006/1/2 15:04:05")),
		fmt.Sprintf("対象期間: %s ～ %s", sorted[0].Date, sorted[len(sorted)-1].Date),
		"",
		"## 月別サマリー",
		"",
	)

	for i := len(agg.Monthly) - 1; i >= 0; i-- {
		m := agg.Monthly[i]
		lines = append(lines,
			fmt.Sprintf("### %s", m.DisplayMonth),
			fmt.Sprintf("- 給油回数: %d回", m.RecordCount),
			fmt.Sprintf("- 総給油量: %.1fL", m.TotalAmount),
			fmt.Sprintf("- 総費用: %s", domain.FormatCurrency(float64(m.TotalCost))),
			fmt.Sprintf("- 平均単価: %s", domain.FormatPrice(m.AveragePrice)),
			fmt.Sprintf("- 走行距離: %s", domain.FormatDistance(m.TotalDistance)),
		)
		if m.AverageFuelEfficiency > 0 {
			lines = append(lines, fmt.Sprintf("- 平均燃費: %s", domain.FormatEfficiency(m.AverageFuelEfficiency)))
		}
		lines = append(lines, "")
	}

	t := agg.Totals
	lines = append(lines,
		"## 全期間統計",
		fmt.Sprintf("- 総給油回数: %d回", t.TotalRecords),
		fmt.Sprintf("- 総給油量: %.1fL", t.TotalAmount),
		fmt.Sprintf("- 総費用: %s", domain.FormatCurrency(float64(t.TotalCost))),
		fmt.Sprintf("- 全期間平均単価: %s", domain.FormatPrice(t.AveragePrice)),
	)

	var buf bytes.Buffer
	buf.WriteString(strings.Join(lines, "\n"))
	return buf.Bytes(), nil
}
