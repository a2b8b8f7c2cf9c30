package service

import (
	"context"
	"time"

	pkgerrors "fueltracker/pkg/apperror"
	"fueltracker/pkg/audit"
	"fueltracker/pkg/domain"
	"fueltracker/pkg/logger"
	"fueltracker/pkg/metrics"
	"fueltracker/pkg/telemetry"
	"fueltracker/services/fuel-svc/internal/repository"
	"fueltracker/services/fuel-svc/internal/validators"
)

// WriteResult сохранённая запись и нефатальные предупреждения проверки
type WriteResult struct {
	Record   domain.FuelRecord `json:"record"`
	Warnings []string          `json:"warnings"`
}

// CheckResult результат проверки формы без сохранения
type CheckResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// RecordService операции над записями о заправках
type RecordService struct {
	repo  repository.RecordRepository
	stats *StatisticsService
	audit audit.Logger
	now   func() time.Time
}

// NewRecordService создаёт сервис записей
func NewRecordService(repo repository.RecordRepository, stats *StatisticsService, auditLogger audit.Logger) *RecordService {
	if auditLogger == nil {
		auditLogger = audit.Get()
	}
	return &RecordService{
		repo:  repo,
		stats: stats,
		audit: auditLogger,
		now:   time.Now,
	}
}

// List записи пользователя по возрастанию даты
func (s *RecordService) List(ctx context.Context, userID string, opts ListOptions) ([]domain.FuelRecord, error) {
	ctx, span := telemetry.StartSpan(ctx, "RecordService.List")
	defer span.End()

	filter, err := opts.filter()
	if err != nil {
		return nil, err
	}

	records, err := s.repo.List(ctx, userID, filter)
	if err != nil {
		telemetry.SetError(ctx, err)
		return nil, mapRepoError(err, "failed to list records")
	}

	telemetry.SetAttributes(ctx, telemetry.RecordAttributes(userID, len(records))...)
	return records, nil
}

// Get одна запись пользователя
func (s *RecordService) Get(ctx context.Context, userID, id string) (*domain.FuelRecord, error) {
	rec, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, mapRepoError(err, "failed to get record")
	}
	return rec, nil
}

// Stations список станций пользователя
func (s *RecordService) Stations(ctx context.Context, userID string) ([]string, error) {
	stations, err := s.repo.Stations(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err, "failed to list stations")
	}
	return stations, nil
}

// Check проверяет форму против записей пользователя без сохранения.
// excludeID исключает редактируемую запись из сравнения.
func (s *RecordService) Check(ctx context.Context, userID string, in domain.FormInput, excludeID string) (*CheckResult, error) {
	v, err := s.validate(ctx, userID, in, excludeID)
	if err != nil {
		return nil, err
	}
	return &CheckResult{
		Valid:    v.IsValid(),
		Errors:   v.ErrorMessages(),
		Warnings: v.WarningMessages(),
	}, nil
}

// Create проверяет и сохраняет новую запись
func (s *RecordService) Create(ctx context.Context, userID string, in domain.FormInput) (result *WriteResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "RecordService.Create")
	defer span.End()

	start := time.Now()
	b := audit.NewEntry().Action(audit.ActionCreate).Resource(audit.ResourceRecord, "").User(userID, "")
	defer func() {
		metrics.Get().RecordWrite("create", err == nil)
		auditLog(ctx, s.audit, withError(b.Outcome(outcomeOf(err)).Duration(time.Since(start)), err))
	}()

	v, err := s.validate(ctx, userID, in, "")
	if err != nil {
		return nil, err
	}
	if appErr := v.AsError(); appErr != nil {
		return nil, appErr
	}

	rec := validators.BuildRecord(in)
	rec.UserID = userID
	if err := s.repo.Create(ctx, &rec); err != nil {
		telemetry.SetError(ctx, err)
		return nil, mapRepoError(err, "failed to create record")
	}

	b.Resource(audit.ResourceRecord, rec.ID).Meta("record", audit.RecordSnapshot(rec))
	logger.FromContext(ctx).Info("Record created", "user_id", userID, "record_id", rec.ID, "warnings", len(v.Warnings))

	s.afterWrite(ctx, userID, v)
	return &WriteResult{Record: rec, Warnings: v.WarningMessages()}, nil
}

// Update проверяет форму (без учёта самой записи) и перезаписывает запись
func (s *RecordService) Update(ctx context.Context, userID, id string, in domain.FormInput) (result *WriteResult, err error) {
	ctx, span := telemetry.StartSpan(ctx, "RecordService.Update")
	defer span.End()

	start := time.Now()
	b := audit.NewEntry().Action(audit.ActionUpdate).Resource(audit.ResourceRecord, id).User(userID, "")
	defer func() {
		metrics.Get().RecordWrite("update", err == nil)
		auditLog(ctx, s.audit, withError(b.Outcome(outcomeOf(err)).Duration(time.Since(start)), err))
	}()

	before, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		return nil, mapRepoError(err, "failed to get record")
	}

	v, err := s.validate(ctx, userID, in, id)
	if err != nil {
		return nil, err
	}
	if appErr := v.AsError(); appErr != nil {
		return nil, appErr
	}

	rec := validators.BuildRecord(in)
	rec.ID = id
	rec.UserID = userID
	if err := s.repo.Update(ctx, &rec); err != nil {
		telemetry.SetError(ctx, err)
		return nil, mapRepoError(err, "failed to update record")
	}

	b.Changes(audit.RecordChanges(*before, rec))
	logger.FromContext(ctx).Info("Record updated", "user_id", userID, "record_id", id)

	s.afterWrite(ctx, userID, v)
	return &WriteResult{Record: rec, Warnings: v.WarningMessages()}, nil
}

// Delete удаляет запись пользователя
func (s *RecordService) Delete(ctx context.Context, userID, id string) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "RecordService.Delete")
	defer span.End()

	start := time.Now()
	b := audit.NewEntry().Action(audit.ActionDelete).Resource(audit.ResourceRecord, id).User(userID, "")
	defer func() {
		metrics.Get().RecordWrite("delete", err == nil)
		auditLog(ctx, s.audit, withError(b.Outcome(outcomeOf(err)).Duration(time.Since(start)), err))
	}()

	if err := s.repo.Delete(ctx, userID, id); err != nil {
		return mapRepoError(err, "failed to delete record")
	}

	logger.FromContext(ctx).Info("Record deleted", "user_id", userID, "record_id", id)
	s.afterWrite(ctx, userID, nil)
	return nil
}

func (s *RecordService) validate(ctx context.Context, userID string, in domain.FormInput, excludeID string) (*pkgerrors.ValidationErrors, error) {
	existing, err := s.repo.List(ctx, userID, repository.ListFilter{})
	if err != nil {
		return nil, mapRepoError(err, "failed to load records")
	}
	if excludeID != "" {
		existing = validators.ExcludeRecord(existing, excludeID)
	}

	v := validators.ValidateRecord(in, existing, s.now())
	telemetry.SetAttributes(ctx, telemetry.ValidationAttributes(len(v.Errors), len(v.Warnings))...)
	return v, nil
}

func (s *RecordService) afterWrite(ctx context.Context, userID string, v *pkgerrors.ValidationErrors) {
	if v != nil && v.HasWarnings() {
		codes := make([]string, len(v.Warnings))
		for i, w := range v.Warnings {
			codes[i] = string(w.Code)
		}
		metrics.Get().RecordWarnings(codes...)
	}
	if s.stats != nil {
		s.stats.Refresh(ctx, userID)
	}
}
