// services/fuel-svc/internal/generator/csv.go

package generator

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"

	"fueltracker/pkg/domain"
)

// BOM для корректного открытия в Excel
const utf8BOM = "\uFEFF"

// CSVHeader заголовок выгрузки, порядок колонок фиксирован
var CSVHeader = []string{"日付", "スタンド名", "給油量(L)", "金額(円)", "単価(円/L)", "走行距離(km)", "燃費(km/L)"}

// CSVGenerator генератор CSV выгрузки
type CSVGenerator struct {
	BaseGenerator
}

// NewCSVGenerator создаёт новый генератор
func NewCSVGenerator() *CSVGenerator {
	return &CSVGenerator{}
}

// Format возвращает формат генератора
func (g *CSVGenerator) Format() Format {
	return FormatCSV
}

// Generate пишет записи в порядке массива. Станция всегда в кавычках,
// поэтому encoding/csv (кавычит только при необходимости) здесь не подходит.
func (g *CSVGenerator) Generate(ctx context.Context, data *ExportData) ([]byte, error) {
	if len(data.Records) == 0 {
		return nil, errEmpty("エクスポートするデータがありません")
	}

	var buf bytes.Buffer
	buf.WriteString(utf8BOM)
	buf.WriteString(strings.Join(CSVHeader, ","))

	for i, r := range data.Records {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		efficiency := "-"
		if e, ok := domain.Efficiency(r, previous(data.Records, i)); ok {
			efficiency = g.FormatFloat(e, 1)
		}

		buf.WriteByte('\n')
		buf.WriteString(strings.Join([]string{
			r.Date,
			quote(r.Station),
			g.FormatFloat(r.Amount, 1),
			strconv.FormatInt(r.Cost, 10),
			g.FormatFloat(domain.PricePerLiter(r), 1),
			g.FormatFloat(r.Mileage, 1),
			efficiency,
		}, ","))
	}

	return buf.Bytes(), nil
}

func quote(s string) string {
	return fmt.Sprintf(`"%s"`, strings.ReplaceAll(s, `"`, `""`))
}
