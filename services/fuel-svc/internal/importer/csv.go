package importer

import (
	"encoding/csv"
	"fmt"
	"strings"

	pkgerrors "fueltracker/pkg/apperror"
	"fueltracker/pkg/domain"
	"fueltracker/services/fuel-svc/internal/validators"
)

// SampleFilename имя файла шаблона
const SampleFilename = "サンプル燃費データ.csv"

// requiredColumns фрагменты, которые должны встречаться в заголовке
var requiredColumns = []string{"日付", "給油量", "金額", "走行距離", "スタンド名"}

var sampleLines = []string{
	"日付,スタンド名,給油量(L),金額(円),走行距離(km)",
	"2024-01-15,エネオス田中店,40.5,6075,50250.0",
	"2024-02-01,出光セルフ山田SS,38.2,5730,50680.5",
	"2024-02-18,コスモ石油佐藤店,42.1,6315,51120.8",
}

// SampleCSV шаблон для импорта с BOM
func SampleCSV() []byte {
	return []byte("\uFEFF" + strings.Join(sampleLines, "\n"))
}

// ParseCSV разбирает CSV. Колонки ищутся по вхождению фрагмента в заголовок,
// строки с другим числом полей и строки с пустыми значениями пропускаются.
func ParseCSV(content string) *Result {
	content = strings.TrimSpace(strings.TrimPrefix(content, "\uFEFF"))

	r := csv.NewReader(strings.NewReader(content))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	lines, err := r.ReadAll()
	if err != nil {
		return failure(pkgerrors.CodeImportFormat, fmt.Sprintf("CSVファイルの解析中にエラーが発生しました: %v", err))
	}
	if len(lines) < 2 {
		return failure(pkgerrors.CodeImportEmpty, "CSVファイルにデータが含まれていません")
	}

	headers := make([]string, len(lines[0]))
	for i, h := range lines[0] {
		headers[i] = strings.TrimSpace(h)
	}

	var missing []string
	for _, col := range requiredColumns {
		if !containsFragment(headers, col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return failure(pkgerrors.CodeImportColumns, fmt.Sprintf("必要なカラムが不足しています: %s", strings.Join(missing, ", ")))
	}

	var rows []domain.ImportRow
	for _, values := range lines[1:] {
		if len(values) != len(headers) {
			continue
		}
		if row, ok := mapRow(headers, values); ok {
			rows = append(rows, row)
		}
	}

	if len(rows) == 0 {
		return failure(pkgerrors.CodeImportEmpty, "有効なデータが見つかりませんでした")
	}

	return finish(rows)
}

func containsFragment(headers []string, fragment string) bool {
	for _, h := range headers {
		if strings.Contains(h, fragment) {
			return true
		}
	}
	return false
}

// numberCleaner убирает разделители тысяч и знак иены перед разбором чисел
var numberCleaner = strings.NewReplacer(",", "", "¥", "")

// mapRow сопоставляет значения колонкам. Нулевые количество и сумма
// отбрасывают строку, пробег 0 допустим только если он явно записан.
func mapRow(headers, values []string) (domain.ImportRow, bool) {
	var (
		row                   domain.ImportRow
		amount, cost, mileage float64
		mileageOK             bool
	)

	for i, header := range headers {
		value := strings.TrimSpace(values[i])

		switch {
		case strings.Contains(header, "日付"):
			row.Date = value
		case strings.Contains(header, "給油量"):
			amount, _ = validators.ParseLeadingFloat(numberCleaner.Replace(value))
		case strings.Contains(header, "金額"):
			v, _ := validators.ParseLeadingInt(numberCleaner.Replace(value))
			cost = float64(v)
		case strings.Contains(header, "走行距離"):
			mileage, mileageOK = validators.ParseLeadingFloat(numberCleaner.Replace(value))
		case strings.Contains(header, "スタンド"):
			row.Station = value
		}
	}

	if row.Date == "" || amount == 0 || cost == 0 || !mileageOK || row.Station == "" {
		return domain.ImportRow{}, false
	}

	row.Amount, row.Cost, row.Mileage = &amount, &cost, &mileage
	return row, true
}
