package importer

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	pkgerrors "fueltracker/pkg/apperror"
	"fueltracker/pkg/domain"
)

var (
	dateKeys    = []string{"date", "給油日"}
	amountKeys  = []string{"amount", "給油量", "給油量(L)"}
	costKeys    = []string{"cost", "金額", "金額(円)"}
	mileageKeys = []string{"mileage", "走行距離", "走行距離(km)"}
	stationKeys = []string{"station", "スタンド名", "スタンド"}
)

// ParseJSON разбирает массив записей, либо объект с полем records или data
func ParseJSON(content string) *Result {
	var parsed any
	if err := json.Unmarshal([]byte(strings.TrimPrefix(content, "\uFEFF")), &parsed); err != nil {
		return failure(pkgerrors.CodeImportFormat, fmt.Sprintf("JSONファイルの解析中にエラーが発生しました: %v", err))
	}

	items, ok := recordList(parsed)
	if !ok {
		return failure(pkgerrors.CodeImportFormat, "JSONファイルの形式が正しくありません")
	}
	if len(items) == 0 {
		return failure(pkgerrors.CodeImportEmpty, "インポートするデータがありません")
	}

	rows := make([]domain.ImportRow, 0, len(items))
	for _, item := range items {
		obj, _ := item.(map[string]any)

		amount := toNumber(pick(obj, amountKeys))
		cost := toNumber(pick(obj, costKeys))
		mileage := toNumber(pick(obj, mileageKeys))

		rows = append(rows, domain.ImportRow{
			Date:    toString(pick(obj, dateKeys)),
			Amount:  &amount,
			Cost:    &cost,
			Mileage: &mileage,
			Station: toString(pick(obj, stationKeys)),
		})
	}

	return finish(rows)
}

func recordList(parsed any) ([]any, bool) {
	switch v := parsed.(type) {
	case []any:
		return v, true
	case map[string]any:
		if list, ok := v["records"].([]any); ok {
			return list, true
		}
		if list, ok := v["data"].([]any); ok {
			return list, true
		}
	}
	return nil, false
}

// pick возвращает первое непустое значение по списку синонимов ключа
func pick(obj map[string]any, keys []string) any {
	for _, k := range keys {
		if v, ok := obj[k]; ok && truthy(v) {
			return v
		}
	}
	return nil
}

func truthy(v any) bool {
	switch x := v.(type) {
	case nil:
		return false
	case bool:
		return x
	case float64:
		return x != 0 && !math.IsNaN(x)
	case string:
		return x != ""
	default:
		return true
	}
}

// toNumber отсутствующее значение даёт 0, нечисловое NaN
func toNumber(v any) float64 {
	switch x := v.(type) {
	case nil:
		return 0
	case float64:
		return x
	case bool:
		return 1
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return 0
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN()
		}
		return f
	default:
		return math.NaN()
	}
}

func toString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return fmt.Sprint(x)
	}
}
