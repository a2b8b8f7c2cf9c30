package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"

	"fueltracker/pkg/domain"
)

// Fingerprint вычисляет хеш набора записей для использования как ключ кэша.
// Порядок записей не влияет на результат, изменение любого поля меняет хеш.
func Fingerprint(records []domain.FuelRecord) string {
	hash := sha256.Sum256(recordsToCanonical(records))
	return hex.EncodeToString(hash[:16])
}

// recordsToCanonical создаёт детерминированное представление набора записей
func recordsToCanonical(records []domain.FuelRecord) []byte {
	sorted := make([]domain.FuelRecord, len(records))
	copy(sorted, records)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Date != sorted[j].Date {
			return sorted[i].Date < sorted[j].Date
		}
		return sorted[i].ID < sorted[j].ID
	})

	result := fmt.Appendf(nil, "n:%d;", len(sorted))
	for _, r := range sorted {
		result = fmt.Appendf(result, "r:%s:%s:%.6f:%d:%.6f:%q;",
			r.ID, r.Date, r.Amount, r.Cost, r.Mileage, r.Station)
	}
	return result
}

// UserPrefix префикс всех ключей статистики пользователя
func UserPrefix(userID string) string {
	return fmt.Sprintf("stats:%s:", userID)
}

// BuildSnapshotKey строит ключ снимка конкретного вида
func BuildSnapshotKey(userID, kind, fingerprint string) string {
	return fmt.Sprintf("%s%s:%s", UserPrefix(userID), kind, fingerprint)
}
