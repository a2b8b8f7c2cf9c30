package validators

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	pkgerrors "fueltracker/pkg/apperror"
	"fueltracker/pkg/domain"
)

var isoDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ValidateImport проверяет нормализованные строки импорта.
// Только наличие и знак полей, без диапазонов и монотонности пробега.
// Сообщений не больше domain.MaxImportErrors.
func ValidateImport(rows []domain.ImportRow) *pkgerrors.ValidationErrors {
	v := pkgerrors.NewValidationErrors()

	if len(rows) == 0 {
		v.AddError(pkgerrors.CodeImportEmpty, "インポートするデータがありません")
		return v
	}

	for i, row := range rows {
		n := i + 1
		field := func(name string) string { return fmt.Sprintf("rows[%d].%s", n, name) }

		switch {
		case row.Date == "":
			v.AddErrorWithField(pkgerrors.CodeImportRow, fmt.Sprintf("%d行目: 給油日が不足しています", n), field("date"))
		case !isoDate.MatchString(row.Date):
			v.AddErrorWithField(pkgerrors.CodeImportRow,
				fmt.Sprintf("%d行目: 給油日の形式が正しくありません（YYYY-MM-DD形式で入力してください）", n), field("date"))
		}

		checkNumber(v, row.Amount, n, "給油量", field("amount"), func(x float64) bool { return x > 0 })
		checkNumber(v, row.Cost, n, "金額", field("cost"), func(x float64) bool { return x > 0 })
		checkNumber(v, row.Mileage, n, "走行距離", field("mileage"), func(x float64) bool { return x >= 0 })

		if strings.TrimSpace(row.Station) == "" {
			v.AddErrorWithField(pkgerrors.CodeImportRow, fmt.Sprintf("%d行目: スタンド名が不足しています", n), field("station"))
		}
	}

	if len(v.Errors) > domain.MaxImportErrors {
		v.Errors = v.Errors[:domain.MaxImportErrors]
	}
	return v
}

func checkNumber(v *pkgerrors.ValidationErrors, val *float64, row int, label, field string, valid func(float64) bool) {
	if val == nil {
		v.AddErrorWithField(pkgerrors.CodeImportRow, fmt.Sprintf("%d行目: %sが不足しています", row, label), field)
		return
	}
	if math.IsNaN(*val) || math.IsInf(*val, 0) || !valid(*val) {
		v.AddErrorWithField(pkgerrors.CodeImportRow, fmt.Sprintf("%d行目: %sが正しくありません", row, label), field)
	}
}
