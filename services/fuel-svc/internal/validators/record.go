package validators

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	pkgerrors "fueltracker/pkg/apperror"
	"fueltracker/pkg/domain"
)

// ведущий числовой префикс, как у parseFloat/parseInt в формах
var (
	floatPrefix = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)
	intPrefix   = regexp.MustCompile(`^[+-]?\d+`)
)

// ParseLeadingFloat разбирает число из начала строки ("12.5L" -> 12.5)
func ParseLeadingFloat(s string) (float64, bool) {
	m := floatPrefix.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ParseLeadingInt разбирает целое из начала строки ("6000.9" -> 6000)
func ParseLeadingInt(s string) (int64, bool) {
	m := intPrefix.FindString(strings.TrimSpace(s))
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseInt(m, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// ValidateRecord проверяет запись перед сохранением.
// Никогда не завершается ошибкой: результат всегда возвращается,
// блокирующие нарушения в Errors, подозрительные значения в Warnings.
func ValidateRecord(in domain.FormInput, existing []domain.FuelRecord, now time.Time) *pkgerrors.ValidationErrors {
	v := pkgerrors.NewValidationErrors()

	// 1. Дата
	date, dateOK := validateDate(v, in.Date, now)

	// 2. Объём
	amount, amountOK := validateAmount(v, in.Amount)

	// 3. Сумма и цена за литр. Цена проверяется только при корректных
	// объёме и сумме: иначе поле уже отклонено, а цена бесконечна или отрицательна.
	cost, costOK := validateCost(v, in.Cost)
	if amountOK && costOK && amount > 0 {
		price := float64(cost) / amount
		if price > domain.MaxPricePerLiter {
			v.AddErrorWithField(pkgerrors.CodePriceOutOfRange,
				fmt.Sprintf("単価が%.1f円/Lと高額です。正しい値か確認してください", price), "cost")
		} else if price < domain.MinPricePerLiter {
			v.AddErrorWithField(pkgerrors.CodePriceOutOfRange,
				fmt.Sprintf("単価が%.1f円/Lと安すぎます。正しい値か確認してください", price), "cost")
		}
	}

	// 4. Пробег и согласованность с последней записью
	if mileage, ok := validateMileage(v, in.Mileage); ok && dateOK {
		checkAgainstLatest(v, date, mileage, existing)
	}

	// 5. Станция
	station := strings.TrimSpace(in.Station)
	switch {
	case station == "":
		v.AddErrorWithField(pkgerrors.CodeRequired, "スタンド名を入力してください", "station")
	case utf8.RuneCountInString(station) > domain.MaxStationLength:
		v.AddErrorWithField(pkgerrors.CodeStationTooLong,
			fmt.Sprintf("スタンド名は%d文字以内で入力してください", domain.MaxStationLength), "station")
	}

	return v
}

func validateDate(v *pkgerrors.ValidationErrors, raw string, now time.Time) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		v.AddErrorWithField(pkgerrors.CodeRequired, "給油日を入力してください", "date")
		return time.Time{}, false
	}

	date, err := time.ParseInLocation(domain.DateLayout, raw, now.Location())
	if err != nil {
		v.AddErrorWithField(pkgerrors.CodeInvalidDate,
			"給油日の形式が正しくありません（YYYY-MM-DD形式で入力してください）", "date")
		return time.Time{}, false
	}

	today := startOfDay(now)
	// сегодняшний день допускается целиком
	if date.After(today) {
		v.AddErrorWithField(pkgerrors.CodeFutureDate, "未来の日付は入力できません", "date")
	}

	if date.Before(startOfDay(now.AddDate(-1, 0, 0))) {
		v.AddWarningWithField(pkgerrors.CodeOldDate,
			"1年以上前の日付が入力されています。正しい日付か確認してください", "date")
	}

	return date, true
}

func validateAmount(v *pkgerrors.ValidationErrors, raw string) (float64, bool) {
	if strings.TrimSpace(raw) == "" {
		v.AddErrorWithField(pkgerrors.CodeRequired, "給油量を入力してください", "amount")
		return 0, false
	}

	amount, ok := ParseLeadingFloat(raw)
	switch {
	case !ok || amount <= 0:
		v.AddErrorWithField(pkgerrors.CodeInvalidAmount, "給油量は正の数値で入力してください", "amount")
		return 0, false
	case amount > domain.MaxAmount:
		v.AddErrorWithField(pkgerrors.CodeAmountOutOfRange,
			"給油量が200Lを超えています。正しい値か確認してください", "amount")
	case amount < domain.MinAmount:
		v.AddErrorWithField(pkgerrors.CodeAmountOutOfRange,
			"給油量が1L未満です。正しい値か確認してください", "amount")
	}
	return amount, true
}

func validateCost(v *pkgerrors.ValidationErrors, raw string) (int64, bool) {
	if strings.TrimSpace(raw) == "" {
		v.AddErrorWithField(pkgerrors.CodeRequired, "金額を入力してください", "cost")
		return 0, false
	}

	cost, ok := ParseLeadingInt(raw)
	switch {
	case !ok || cost <= 0:
		v.AddErrorWithField(pkgerrors.CodeInvalidCost, "金額は正の整数で入力してください", "cost")
		return 0, false
	case cost > domain.MaxCost:
		v.AddErrorWithField(pkgerrors.CodeCostOutOfRange,
			"金額が50,000円を超えています。正しい値か確認してください", "cost")
	case cost < domain.MinCost:
		v.AddErrorWithField(pkgerrors.CodeCostOutOfRange,
			"金額が100円未満です。正しい値か確認してください", "cost")
	}
	return cost, true
}

func validateMileage(v *pkgerrors.ValidationErrors, raw string) (float64, bool) {
	if strings.TrimSpace(raw) == "" {
		v.AddErrorWithField(pkgerrors.CodeRequired, "走行距離を入力してください", "mileage")
		return 0, false
	}

	mileage, ok := ParseLeadingFloat(raw)
	switch {
	case !ok || mileage < 0:
		v.AddErrorWithField(pkgerrors.CodeInvalidMileage, "走行距離は0以上の数値で入力してください", "mileage")
		return 0, false
	case mileage > domain.MaxMileage:
		v.AddErrorWithField(pkgerrors.CodeMileageTooHigh,
			"走行距離が100万kmを超えています。正しい値か確認してください", "mileage")
	}
	return mileage, true
}

func checkAgainstLatest(v *pkgerrors.ValidationErrors, date time.Time, mileage float64, existing []domain.FuelRecord) {
	latest, ok := domain.Latest(existing)
	if !ok {
		return
	}
	latestDate, err := time.ParseInLocation(domain.DateLayout, latest.Date, date.Location())
	if err != nil {
		return
	}

	if !date.Before(latestDate) && mileage < latest.Mileage {
		v.AddErrorWithField(pkgerrors.CodeMileageRegressed,
			fmt.Sprintf("走行距離が前回（%.1fkm）より少なくなっています", latest.Mileage), "mileage")
	}

	if date.After(latestDate) {
		days := math.Ceil(date.Sub(latestDate).Hours() / 24)
		perDay := (mileage - latest.Mileage) / days
		if days > 0 && perDay > domain.MaxDistancePerDay {
			v.AddWarningWithField(pkgerrors.CodeDistancePerDay,
				fmt.Sprintf("1日あたり%.0fkmと異常に長距離です。正しい値か確認してください", perDay), "mileage")
		}
	}
}

// BuildRecord собирает запись из формы, прошедшей ValidateRecord
func BuildRecord(in domain.FormInput) domain.FuelRecord {
	amount, _ := ParseLeadingFloat(in.Amount)
	cost, _ := ParseLeadingInt(in.Cost)
	mileage, _ := ParseLeadingFloat(in.Mileage)
	return domain.FuelRecord{
		Date:    strings.TrimSpace(in.Date),
		Amount:  amount,
		Cost:    cost,
		Mileage: mileage,
		Station: strings.TrimSpace(in.Station),
	}
}

// ExcludeRecord возвращает набор без записи id (для проверки при редактировании)
func ExcludeRecord(records []domain.FuelRecord, id string) []domain.FuelRecord {
	out := make([]domain.FuelRecord, 0, len(records))
	for _, r := range records {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
