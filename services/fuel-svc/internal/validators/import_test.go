package validators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "fueltracker/pkg/apperror"
	"fueltracker/pkg/domain"
)

func f64(v float64) *float64 { return &v }

func goodRow() domain.ImportRow {
	return domain.ImportRow{
		Date:    "2024-01-15",
		Amount:  f64(40.5),
		Cost:    f64(6075),
		Mileage: f64(50250),
		Station: "エネオス田中店",
	}
}

func TestValidateImport_Empty(t *testing.T) {
	res := ValidateImport(nil)

	require.False(t, res.IsValid())
	assert.Equal(t, []string{"インポートするデータがありません"}, res.ErrorMessages())
	assert.Equal(t, pkgerrors.CodeImportEmpty, res.Errors[0].Code)
}

func TestValidateImport_Valid(t *testing.T) {
	zero := goodRow()
	zero.Mileage = f64(0)

	res := ValidateImport([]domain.ImportRow{goodRow(), zero})
	assert.True(t, res.IsValid(), res.ErrorMessages())
}

func TestValidateImport_RowMessages(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *domain.ImportRow)
		want   string
	}{
		{"missing date", func(r *domain.ImportRow) { r.Date = "" }, "1行目: 給油日が不足しています"},
		{"bad date", func(r *domain.ImportRow) { r.Date = "2024/1/15" }, "1行目: 給油日の形式が正しくありません（YYYY-MM-DD形式で入力してください）"},
		{"missing amount", func(r *domain.ImportRow) { r.Amount = nil }, "1行目: 給油量が不足しています"},
		{"zero amount", func(r *domain.ImportRow) { r.Amount = f64(0) }, "1行目: 給油量が正しくありません"},
		{"missing cost", func(r *domain.ImportRow) { r.Cost = nil }, "1行目: 金額が不足しています"},
		{"negative cost", func(r *domain.ImportRow) { r.Cost = f64(-1) }, "1行目: 金額が正しくありません"},
		{"missing mileage", func(r *domain.ImportRow) { r.Mileage = nil }, "1行目: 走行距離が不足しています"},
		{"negative mileage", func(r *domain.ImportRow) { r.Mileage = f64(-0.1) }, "1行目: 走行距離が正しくありません"},
		{"blank station", func(r *domain.ImportRow) { r.Station = "  " }, "1行目: スタンド名が不足しています"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := goodRow()
			tt.mutate(&row)

			res := ValidateImport([]domain.ImportRow{row})

			require.False(t, res.IsValid())
			assert.Equal(t, []string{tt.want}, res.ErrorMessages())
		})
	}
}

func TestValidateImport_CapsMessages(t *testing.T) {
	rows := make([]domain.ImportRow, 10)
	for i := range rows {
		rows[i] = domain.ImportRow{} // 5 ошибок на строку
	}

	res := ValidateImport(rows)

	require.False(t, res.IsValid())
	assert.Len(t, res.Errors, domain.MaxImportErrors)
	assert.Equal(t, "1行目: 給油日が不足しています", res.Errors[0].Message)
	assert.Equal(t, "4行目: スタンド名が不足しています", res.Errors[19].Message)
}

func TestValidateImport_ReportsEveryRow(t *testing.T) {
	bad := goodRow()
	bad.Cost = nil

	res := ValidateImport([]domain.ImportRow{goodRow(), bad, goodRow(), bad})

	assert.Equal(t, []string{"2行目: 金額が不足しています", "4行目: 金額が不足しています"}, res.ErrorMessages())
}
