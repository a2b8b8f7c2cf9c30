package service

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	pkgerrors "fueltracker/pkg/apperror"
	"fueltracker/pkg/audit"
	"fueltracker/pkg/config"
	"fueltracker/pkg/domain"
	"fueltracker/pkg/logger"
	"fueltracker/pkg/metrics"
	"fueltracker/pkg/telemetry"
	"fueltracker/services/fuel-svc/internal/generator"
	"fueltracker/services/fuel-svc/internal/importer"
	"fueltracker/services/fuel-svc/internal/repository"
)

// File готовый к отдаче файл
type File struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ImportReport итог импорта
type ImportReport struct {
	DryRun   bool               `json:"dryRun"`
	Imported int                `json:"imported"`
	Records  []domain.ImportRow `json:"records,omitempty"`
	Message  string             `json:"message"`
}

// ExchangeService экспорт и импорт записей
type ExchangeService struct {
	repo     repository.RecordRepository
	registry *generator.Registry
	stats    *StatisticsService
	audit    audit.Logger
	limits   config.ImportConfig
	now      func() time.Time
}

// NewExchangeService создаёт сервис обмена
func NewExchangeService(
	repo repository.RecordRepository,
	registry *generator.Registry,
	stats *StatisticsService,
	auditLogger audit.Logger,
	limits config.ImportConfig,
) *ExchangeService {
	if auditLogger == nil {
		auditLogger = audit.Get()
	}
	return &ExchangeService{
		repo:     repo,
		registry: registry,
		stats:    stats,
		audit:    auditLogger,
		limits:   limits,
		now:      time.Now,
	}
}

// Export выгружает записи пользователя в указанном формате
func (s *ExchangeService) Export(ctx context.Context, userID, format string, opts ListOptions) (file *File, err error) {
	ctx, span := telemetry.StartSpan(ctx, "ExchangeService.Export")
	defer span.End()

	f, err := generator.ParseFormat(format)
	if err != nil {
		return nil, err
	}

	b := audit.NewEntry().Action(audit.ActionExport).Resource(audit.ResourceRecord, "").
		User(userID, "").Meta("format", string(f))
	defer func() {
		size := 0
		if file != nil {
			size = len(file.Data)
		}
		metrics.Get().RecordExport(string(f), err == nil, size)
		auditLog(ctx, s.audit, withError(b.Outcome(outcomeOf(err)).Meta("bytes", size), err))
	}()

	gen, err := s.registry.Get(f)
	if err != nil {
		return nil, err
	}

	filter, err := opts.filter()
	if err != nil {
		return nil, err
	}
	records, err := s.repo.List(ctx, userID, filter)
	if err != nil {
		return nil, mapRepoError(err, "failed to load records")
	}
	telemetry.SetAttributes(ctx, telemetry.ExchangeAttributes(string(f), len(records), false)...)

	now := s.now()
	data := &generator.ExportData{Records: records, GeneratedAt: now}
	if s.stats != nil && len(records) > 0 {
		stats := s.stats.compute(ctx, userID, records)
		data.Statistics = &stats
	}

	out, err := gen.Generate(ctx, data)
	if err != nil {
		if pkgerrors.Code(err) == pkgerrors.CodeInternal {
			return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "export failed")
		}
		return nil, err
	}

	logger.FromContext(ctx).Info("Records exported", "user_id", userID, "format", f, "records", len(records), "bytes", len(out))

	return &File{
		Filename:    generator.Filename(f, now),
		ContentType: f.ContentType(),
		Data:        out,
	}, nil
}

// Import разбирает файл и сохраняет все строки одной транзакцией.
// При dryRun строки только проверяются.
func (s *ExchangeService) Import(ctx context.Context, userID, filename string, content []byte, dryRun bool) (report *ImportReport, err error) {
	ctx, span := telemetry.StartSpan(ctx, "ExchangeService.Import")
	defer span.End()

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
	b := audit.NewEntry().Action(audit.ActionImport).Resource(audit.ResourceRecord, "").
		User(userID, "").Meta("filename", filename).Meta("dry_run", dryRun)
	defer func() {
		n := 0
		if report != nil {
			n = report.Imported
		}
		if !dryRun {
			metrics.Get().RecordImport(format, err == nil, n)
			auditLog(ctx, s.audit, withError(b.Outcome(outcomeOf(err)).Meta("records", n), err))
		}
	}()

	if s.limits.MaxFileBytes > 0 && int64(len(content)) > s.limits.MaxFileBytes {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument,
			fmt.Sprintf("file is too large: %d bytes, limit %d", len(content), s.limits.MaxFileBytes))
	}

	res, err := importer.Parse(filename, content)
	if err != nil {
		return nil, err
	}
	if !res.Success() {
		return nil, res.Err()
	}
	if s.limits.MaxRecords > 0 && len(res.Records) > s.limits.MaxRecords {
		return nil, pkgerrors.New(pkgerrors.CodeInvalidArgument,
			fmt.Sprintf("too many records: %d, limit %d", len(res.Records), s.limits.MaxRecords))
	}
	telemetry.SetAttributes(ctx, telemetry.ExchangeAttributes(format, len(res.Records), dryRun)...)

	if dryRun {
		return &ImportReport{DryRun: true, Records: res.Records, Message: res.Message}, nil
	}

	records := make([]domain.FuelRecord, len(res.Records))
	for i, row := range res.Records {
		records[i] = row.ToRecord()
		records[i].UserID = userID
	}

	n, err := s.repo.CreateBatch(ctx, records)
	if err != nil {
		telemetry.SetError(ctx, err)
		return nil, mapRepoError(err, "failed to import records")
	}

	logger.FromContext(ctx).Info("Records imported", "user_id", userID, "format", format, "records", n)
	if s.stats != nil {
		s.stats.Refresh(ctx, userID)
	}

	return &ImportReport{
		Imported: n,
		Message:  fmt.Sprintf("%d件のレコードをインポートしました", n),
	}, nil
}

// Sample шаблон CSV для импорта
func (s *ExchangeService) Sample() *File {
	return &File{
		Filename:    importer.SampleFilename,
		ContentType: generator.FormatCSV.ContentType(),
		Data:        importer.SampleCSV(),
	}
}
