// Package service связывает хранилище, проверки, аналитику и экспорт
// в операции, которые вызывают HTTP обработчики и CLI.
package service

import (
	"context"
	"errors"
	"fmt"

	pkgerrors "fueltracker/pkg/apperror"
	"fueltracker/pkg/audit"
	"fueltracker/pkg/domain"
	"fueltracker/pkg/logger"
	"fueltracker/services/fuel-svc/internal/analysis"
	"fueltracker/services/fuel-svc/internal/repository"
)

const serviceName = "fuel-svc"

// Publisher получает свежий снимок статистики после каждой записи
type Publisher interface {
	Publish(userID string, stats analysis.StatisticsData)
}

type noopPublisher struct{}

func (noopPublisher) Publish(string, analysis.StatisticsData) {}

// ListOptions параметры выборки записей
type ListOptions struct {
	From     string   `json:"from,omitempty"`
	To       string   `json:"to,omitempty"`
	Stations []string `json:"stations,omitempty"`
	Limit    int      `json:"limit,omitempty"`
	Offset   int      `json:"offset,omitempty"`
}

// filter проверяет параметры и переводит их в фильтр репозитория
func (o ListOptions) filter() (repository.ListFilter, error) {
	for field, v := range map[string]string{"from": o.From, "to": o.To} {
		if v == "" {
			continue
		}
		if _, err := domain.ParseDate(v); err != nil {
			return repository.ListFilter{}, pkgerrors.NewWithField(pkgerrors.CodeInvalidArgument,
				fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", v), field)
		}
	}
	if o.From != "" && o.To != "" && o.From > o.To {
		return repository.ListFilter{}, pkgerrors.NewWithField(pkgerrors.CodeInvalidArgument,
			"from must not be after to", "from")
	}
	if o.Limit < 0 || o.Offset < 0 {
		return repository.ListFilter{}, pkgerrors.New(pkgerrors.CodeInvalidPagination,
			"limit and offset must be non-negative")
	}
	return repository.ListFilter{
		From:     o.From,
		To:       o.To,
		Stations: o.Stations,
		Limit:    o.Limit,
		Offset:   o.Offset,
	}, nil
}

// mapRepoError переводит ошибки репозитория в ошибки приложения
func mapRepoError(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return pkgerrors.New(pkgerrors.CodeNotFound, "fuel record not found")
	case errors.Is(err, repository.ErrUserNotFound):
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	case errors.Is(err, repository.ErrUserAlreadyExists):
		return pkgerrors.New(pkgerrors.CodeAlreadyExists, "user already exists")
	case errors.Is(err, context.DeadlineExceeded):
		return pkgerrors.Wrap(err, pkgerrors.CodeTimeout, msg)
	default:
		return pkgerrors.Wrap(err, pkgerrors.CodeInternal, msg)
	}
}

// auditLog пишет запись аудита, ошибки аудита не прерывают операцию
func auditLog(ctx context.Context, l audit.Logger, b *audit.Builder) {
	if l == nil {
		return
	}
	entry := b.Service(serviceName).FromContext(ctx).Build()
	if err := l.Log(ctx, entry); err != nil {
		logger.FromContext(ctx).Warn("Audit log failed", "action", entry.Action, "error", err)
	}
}

func outcomeOf(err error) audit.Outcome {
	if err == nil {
		return audit.OutcomeSuccess
	}
	switch pkgerrors.Code(err) {
	case pkgerrors.CodeUnauthenticated, pkgerrors.CodePermissionDenied:
		return audit.OutcomeDenied
	}
	return audit.OutcomeFailure
}

func withError(b *audit.Builder, err error) *audit.Builder {
	if err == nil {
		return b
	}
	appErr := pkgerrors.From(err)
	return b.Error(string(appErr.Code), appErr.Message)
}
