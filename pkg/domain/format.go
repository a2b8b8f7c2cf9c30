package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MonthKey ключ месяца YYYY-MM
func MonthKey(date string) string {
	if len(date) < 7 {
		return date
	}
	return date[:7]
}

// DisplayMonth "2024-03" -> "2024年03月"
func DisplayMonth(month string) string {
	return strings.Replace(month, "-", "年", 1) + "月"
}

// RoundTenth округляет до одного знака после запятой
func RoundTenth(x float64) float64 {
	return math.Round(x*10) / 10
}

// FormatCurrency "¥12,345"; дробная часть округляется до целой иены
func FormatCurrency(amount float64) string {
	n := int64(math.Round(amount))
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	return "¥" + sign + groupThousands(strconv.FormatInt(n, 10))
}

func groupThousands(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// FormatDistance "123.4km"
func FormatDistance(d float64) string {
	return fmt.Sprintf("%.1fkm", d)
}

// FormatEfficiency "12.5km/L"
func FormatEfficiency(e float64) string {
	return fmt.Sprintf("%.1fkm/L", e)
}

// FormatPrice "¥150.0/L"
func FormatPrice(p float64) string {
	return fmt.Sprintf("¥%.1f/L", p)
}

// EfficiencyGrade буквенная оценка расхода
func EfficiencyGrade(e float64) string {
	switch {
	case e >= 20:
		return "A+"
	case e >= 18:
		return "A"
	case e >= 16:
		return "B+"
	case e >= 14:
		return "B"
	case e >= 12:
		return "C+"
	case e >= 10:
		return "C"
	default:
		return "D"
	}
}
