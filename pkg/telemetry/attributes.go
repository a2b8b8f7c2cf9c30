package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Стандартные ключи атрибутов
const (
	// Записи
	AttrUserID      = "fuel.user_id"
	AttrRecordID    = "fuel.record_id"
	AttrRecordCount = "fuel.record_count"
	AttrStation     = "fuel.station"

	// Обмен данными
	AttrFormat      = "exchange.format"
	AttrImportRows  = "exchange.import_rows"
	AttrDryRun      = "exchange.dry_run"
	AttrOutputBytes = "exchange.output_bytes"

	// Валидация
	AttrValidationErrors   = "validation.errors"
	AttrValidationWarnings = "validation.warnings"
	AttrValidationPassed   = "validation.passed"

	// Статистика
	AttrCacheHit    = "statistics.cache_hit"
	AttrFingerprint = "statistics.fingerprint"

	// База данных
	AttrDBSystem    = "db.system"
	AttrDBOperation = "db.operation"
)

// RecordAttributes возвращает атрибуты операции над записями
func RecordAttributes(userID string, count int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrUserID, userID),
		attribute.Int(AttrRecordCount, count),
	}
}

// ExchangeAttributes возвращает атрибуты импорта или экспорта
func ExchangeAttributes(format string, rows int, dryRun bool) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrFormat, format),
		attribute.Int(AttrImportRows, rows),
		attribute.Bool(AttrDryRun, dryRun),
	}
}

// ValidationAttributes возвращает атрибуты валидации
func ValidationAttributes(errorsCount, warningsCount int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrValidationErrors, errorsCount),
		attribute.Int(AttrValidationWarnings, warningsCount),
		attribute.Bool(AttrValidationPassed, errorsCount == 0),
	}
}

// DBAttributes возвращает атрибуты запроса к хранилищу
func DBAttributes(system, operation string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(AttrDBSystem, system),
		attribute.String(AttrDBOperation, operation),
	}
}
