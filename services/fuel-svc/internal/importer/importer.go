// Package importer разбирает CSV и JSON файлы с записями о заправках.
package importer

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	pkgerrors "fueltracker/pkg/apperror"
	"fueltracker/pkg/domain"
	"fueltracker/services/fuel-svc/internal/validators"
)

// Result результат разбора файла импорта
type Result struct {
	Records []domain.ImportRow `json:"records,omitempty"`
	Errors  []string           `json:"errors,omitempty"`
	Message string             `json:"message,omitempty"`

	code pkgerrors.ErrorCode
}

// Success true, если файл разобран и прошёл проверку
func (r *Result) Success() bool {
	return len(r.Errors) == 0
}

// Err переводит неуспешный результат в ошибку приложения
func (r *Result) Err() error {
	if r.Success() {
		return nil
	}
	code := r.code
	if code == "" {
		code = pkgerrors.CodeImportRow
	}
	return pkgerrors.New(code, r.Errors[0]).WithDetails("errors", r.Errors)
}

func failure(code pkgerrors.ErrorCode, msg string) *Result {
	return &Result{Errors: []string{msg}, code: code}
}

// finish сортирует строки по дате и прогоняет проверку импорта
func finish(rows []domain.ImportRow) *Result {
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date < rows[j].Date })

	if v := validators.ValidateImport(rows); !v.IsValid() {
		code := pkgerrors.CodeImportRow
		if len(v.Errors) > 0 {
			code = v.Errors[0].Code
		}
		return &Result{Errors: v.ErrorMessages(), code: code}
	}

	return &Result{
		Records: rows,
		Message: fmt.Sprintf("%d件のレコードを読み込みました", len(rows)),
	}
}

// Parse выбирает парсер по расширению файла
func Parse(filename string, content []byte) (*Result, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".csv":
		return ParseCSV(string(content)), nil
	case ".json":
		return ParseJSON(string(content)), nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeUnsupported,
			"サポートされていないファイル形式です（CSV または JSON を選択してください）").
			WithDetails("filename", filename)
	}
}
