// services/fuel-svc/internal/generator/pdf.go

package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	marotoconfig "github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/border"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"fueltracker/pkg/config"
	"fueltracker/pkg/domain"
	"fueltracker/services/fuel-svc/internal/analysis"
)

// PDFGenerator генератор PDF отчёта.
// Встроенные шрифты PDF покрывают только Latin-1, поэтому подписи на английском,
// а символы вне Latin-1 в названиях станций заменяются на '?'.
type PDFGenerator struct {
	BaseGenerator
	cfg config.PDFConfig
}

// NewPDFGenerator создаёт новый генератор
func NewPDFGenerator(cfg config.PDFConfig) *PDFGenerator {
	if cfg.MaxRowsInTable <= 0 {
		cfg.MaxRowsInTable = 30
	}
	return &PDFGenerator{cfg: cfg}
}

// Format возвращает формат генератора
func (g *PDFGenerator) Format() Format {
	return FormatPDF
}

// Стили
var (
	primaryColor   = &props.Color{Red: 52, Green: 152, Blue: 219}  // #3498db
	headerBgColor  = &props.Color{Red: 44, Green: 62, Blue: 80}    // #2c3e50
	successColor   = &props.Color{Red: 39, Green: 174, Blue: 96}   // #27ae60
	dangerColor    = &props.Color{Red: 231, Green: 76, Blue: 60}   // #e74c3c
	lightGrayColor = &props.Color{Red: 236, Green: 240, Blue: 241} // #ecf0f1
	darkGrayColor  = &props.Color{Red: 127, Green: 140, Blue: 141} // #7f8c8d

	titleStyle = props.Text{
		Size:  24,
		Style: fontstyle.Bold,
		Align: align.Center,
		Color: headerBgColor,
	}

	h2Style = props.Text{
		Size:  16,
		Style: fontstyle.Bold,
		Color: headerBgColor,
		Top:   5,
	}

	normalStyle = props.Text{
		Size: 10,
	}

	boldStyle = props.Text{
		Size:  10,
		Style: fontstyle.Bold,
	}

	smallStyle = props.Text{
		Size:  8,
		Color: darkGrayColor,
	}

	metricValueStyle = props.Text{
		Size:  14,
		Style: fontstyle.Bold,
		Align: align.Center,
		Color: primaryColor,
	}

	metricLabelStyle = props.Text{
		Size:  9,
		Align: align.Center,
		Color: darkGrayColor,
	}

	tableHeaderStyle = &props.Cell{
		BackgroundColor: primaryColor,
	}

	tableHeaderTextStyle = props.Text{
		Size:  9,
		Style: fontstyle.Bold,
		Color: &props.Color{Red: 255, Green: 255, Blue: 255},
		Align: align.Center,
	}

	tableCellStyle = &props.Cell{
		BorderType:  border.Bottom,
		BorderColor: lightGrayColor,
	}

	tableCellTextStyle = props.Text{
		Size:  9,
		Align: align.Center,
	}
)

// Generate генерирует PDF отчёт
func (g *PDFGenerator) Generate(ctx context.Context, data *ExportData) ([]byte, error) {
	if len(data.Records) == 0 {
		return nil, errEmpty("エクスポートするデータがありません")
	}

	builder := marotoconfig.NewBuilder().
		WithLeftMargin(g.cfg.MarginLeft).
		WithTopMargin(g.cfg.MarginTop).
		WithRightMargin(g.cfg.MarginRight)
	if g.cfg.EnablePageNumbers {
		builder = builder.WithPageNumber()
	}

	m := maroto.New(builder.Build())
	stats := g.Stats(data)

	g.addHeader(m, data)
	g.addSummary(m, stats)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	g.addMonthlyTable(m, stats.MonthlyStats)
	g.addStationTable(m, stats.StationStats)
	g.addRecordsTable(m, data.Records)
	g.addFooter(m, data)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}

	return doc.GetBytes(), nil
}

func (g *PDFGenerator) addHeader(m core.Maroto, data *ExportData) {
	m.AddRow(15,
		text.NewCol(12, pdfSafe(g.GetTitle(data)), titleStyle),
	)

	m.AddRow(5,
		line.NewCol(12),
	)

	sorted := domain.SortByDate(data.Records)
	m.AddRow(6,
		text.NewCol(6, fmt.Sprintf("Period: %s - %s", sorted[0].Date, sorted[len(sorted)-1].Date), smallStyle),
		text.NewCol(6, fmt.Sprintf("Generated: %s", g.FormatTimestamp(g.Now(data))),
			props.Text{Size: 8, Color: darkGrayColor, Align: align.Right}),
	)

	m.AddRow(8)
}

func (g *PDFGenerator) addSummary(m core.Maroto, stats analysis.StatisticsData) {
	g.addSection(m, "Summary")
	g.addMetricCards(m, []metricCard{
		{Label: "Fill-ups", Value: fmt.Sprintf("%d", stats.TotalRecords)},
		{Label: "Total Cost (JPY)", Value: fmt.Sprintf("%d", stats.TotalCost)},
		{Label: "Total Fuel (L)", Value: g.FormatFloat(stats.TotalAmount, 1)},
		{Label: "Avg km/L", Value: g.FormatFloat(stats.AverageFuelEfficiency, 1), Highlight: true},
	})

	items := []keyValue{
		{Key: "Total Distance", Value: fmt.Sprintf("%s km", g.FormatFloat(stats.TotalDistance, 1))},
		{Key: "Average Price", Value: fmt.Sprintf("%s JPY/L", g.FormatFloat(stats.AveragePrice, 1))},
		{Key: "Average Cost per Month", Value: fmt.Sprintf("%.0f JPY", stats.AverageCostPerMonth)},
		{Key: "Best / Worst Efficiency", Value: fmt.Sprintf("%s / %s km/L",
			g.FormatFloat(stats.BestFuelEfficiency, 1), g.FormatFloat(stats.WorstFuelEfficiency, 1))},
		{Key: "Cheapest / Most Expensive", Value: fmt.Sprintf("%s / %s JPY/L",
			g.FormatFloat(stats.CheapestPrice, 1), g.FormatFloat(stats.ExpensivePrice, 1))},
	}
	g.addKeyValueTable(m, items)

	trend := "stable"
	color := darkGrayColor
	switch {
	case stats.Trends.IsImprovingEfficiency:
		trend = fmt.Sprintf("improving (%+.1f km/L)", stats.Trends.EfficiencyChange)
		color = successColor
	case stats.Trends.EfficiencyChange < 0:
		trend = fmt.Sprintf("declining (%+.1f km/L)", stats.Trends.EfficiencyChange)
		color = dangerColor
	}
	m.AddRow(6,
		text.NewCol(6, "Efficiency Trend", boldStyle),
		text.NewCol(6, trend, props.Text{Size: 10, Color: color}),
	)
}

func (g *PDFGenerator) addMonthlyTable(m core.Maroto, monthly []analysis.MonthlyStats) {
	if len(monthly) == 0 {
		return
	}
	g.addSection(m, "Monthly Statistics")
	g.addTableHeader(m, []tableColumn{
		{"Month", 2}, {"Fill-ups", 2}, {"Fuel (L)", 2}, {"Cost", 2}, {"JPY/L", 2}, {"km/L", 2},
	})

	rows := g.limitRows(len(monthly))
	for _, ms := range monthly[:rows] {
		g.addTableRow(m, []tableCell{
			{ms.Month, 2},
			{fmt.Sprintf("%d", ms.RecordCount), 2},
			{g.FormatFloat(ms.TotalAmount, 1), 2},
			{fmt.Sprintf("%d", ms.TotalCost), 2},
			{g.FormatFloat(ms.AveragePrice, 1), 2},
			{g.FormatFloat(ms.AverageFuelEfficiency, 1), 2},
		})
	}
	g.addOverflowNote(m, len(monthly), rows)
}

func (g *PDFGenerator) addStationTable(m core.Maroto, stations []analysis.StationStats) {
	if len(stations) == 0 {
		return
	}
	g.addSection(m, "Stations")
	g.addTableHeader(m, []tableColumn{
		{"Station", 4}, {"Visits", 2}, {"JPY/L", 2}, {"km/L", 2}, {"Last Visit", 2},
	})

	rows := g.limitRows(len(stations))
	for _, s := range stations[:rows] {
		g.addTableRow(m, []tableCell{
			{pdfSafe(s.Station), 4},
			{fmt.Sprintf("%d", s.RecordCount), 2},
			{g.FormatFloat(s.AveragePrice, 1), 2},
			{g.FormatFloat(s.FuelEfficiency, 1), 2},
			{s.LastVisit, 2},
		})
	}
	g.addOverflowNote(m, len(stations), rows)
}

func (g *PDFGenerator) addRecordsTable(m core.Maroto, records []domain.FuelRecord) {
	g.addSection(m, "Fuel Records")
	g.addTableHeader(m, []tableColumn{
		{"Date", 2}, {"Station", 3}, {"Fuel (L)", 1}, {"Cost", 2}, {"Odometer", 2}, {"km/L", 2},
	})

	rows := g.limitRows(len(records))
	for i, r := range records[:rows] {
		efficiency := "-"
		if e, ok := domain.Efficiency(r, previous(records, i)); ok {
			efficiency = g.FormatFloat(e, 1)
		}
		g.addTableRow(m, []tableCell{
			{r.Date, 2},
			{pdfSafe(r.Station), 3},
			{g.FormatFloat(r.Amount, 1), 1},
			{fmt.Sprintf("%d", r.Cost), 2},
			{g.FormatFloat(r.Mileage, 1), 2},
			{efficiency, 2},
		})
	}
	g.addOverflowNote(m, len(records), rows)
}

type metricCard struct {
	Label     string
	Value     string
	Highlight bool
}

func (g *PDFGenerator) addMetricCards(m core.Maroto, cards []metricCard) {
	colSize := 12 / len(cards)

	var cols []core.Col
	for _, card := range cards {
		valueStyle := metricValueStyle
		if card.Highlight {
			valueStyle.Size = 20
		}

		cols = append(cols,
			col.New(colSize).Add(
				text.New(card.Value, valueStyle),
				text.New(card.Label, metricLabelStyle),
			),
		)
	}

	m.AddRow(20, cols...)
}

type keyValue struct {
	Key   string
	Value string
}

func (g *PDFGenerator) addKeyValueTable(m core.Maroto, items []keyValue) {
	for _, item := range items {
		m.AddRow(6,
			text.NewCol(6, item.Key, boldStyle),
			text.NewCol(6, item.Value, normalStyle),
		)
	}
}

type tableColumn struct {
	Title string
	Size  int
}

type tableCell struct {
	Value string
	Size  int
}

func (g *PDFGenerator) addTableHeader(m core.Maroto, columns []tableColumn) {
	cols := make([]core.Col, 0, len(columns))
	for _, c := range columns {
		cols = append(cols, text.NewCol(c.Size, c.Title, tableHeaderTextStyle).WithStyle(tableHeaderStyle))
	}
	m.AddRow(8, cols...)
}

func (g *PDFGenerator) addTableRow(m core.Maroto, cells []tableCell) {
	cols := make([]core.Col, 0, len(cells))
	for _, c := range cells {
		cols = append(cols, text.NewCol(c.Size, c.Value, tableCellTextStyle).WithStyle(tableCellStyle))
	}
	m.AddRow(6, cols...)
}

func (g *PDFGenerator) limitRows(total int) int {
	return min(total, g.cfg.MaxRowsInTable)
}

func (g *PDFGenerator) addOverflowNote(m core.Maroto, total, shown int) {
	if total > shown {
		m.AddRow(6,
			text.NewCol(12, fmt.Sprintf("... and %d more rows", total-shown), smallStyle),
		)
	}
}

func (g *PDFGenerator) addSection(m core.Maroto, title string) {
	m.AddRow(10,
		text.NewCol(12, title, h2Style),
	)
	m.AddRow(2,
		line.NewCol(12, props.Line{Color: primaryColor}),
	)
	m.AddRow(5)
}

func (g *PDFGenerator) addFooter(m core.Maroto, data *ExportData) {
	m.AddRow(10)
	m.AddRow(2,
		line.NewCol(12, props.Line{Color: lightGrayColor}),
	)
	m.AddRow(6,
		text.NewCol(12,
			fmt.Sprintf("Generated by Fuel Tracker | %s", g.FormatTimestamp(g.Now(data))),
			props.Text{Size: 8, Color: darkGrayColor, Align: align.Center},
		),
	)
}

// pdfSafe заменяет символы вне Latin-1
func pdfSafe(s string) string {
	return strings.Map(func(r rune) rune {
		if r > 0xFF {
			return '?'
		}
		return r
	}, s)
}
