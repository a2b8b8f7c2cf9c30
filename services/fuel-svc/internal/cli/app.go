package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"fueltracker/pkg/audit"
	"fueltracker/pkg/config"
	"fueltracker/services/fuel-svc/internal/analysis"
	"fueltracker/services/fuel-svc/internal/generator"
	"fueltracker/services/fuel-svc/internal/repository"
	"fueltracker/services/fuel-svc/internal/service"
)

// App сервисы поверх локального SQLite
type App struct {
	Owner    OwnerConfig
	Records  *service.RecordService
	Stats    *service.StatisticsService
	Exchange *service.ExchangeService

	repos *repository.Repositories
	audit audit.Logger
}

// Open открывает базу (создавая каталог) и собирает сервисы
func Open(ctx context.Context, cfg FileConfig) (*App, error) {
	cfg = cfg.withDefaults()

	if err := os.MkdirAll(filepath.Dir(cfg.Store.Path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	repos, err := repository.NewSQLiteRepositories(ctx, cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	auditCfg := audit.DefaultConfig()
	auditCfg.Enabled = cfg.Audit.Enabled
	auditCfg.Backend = "file"
	auditCfg.FilePath = cfg.Audit.Path
	auditLog, err := audit.New(auditCfg)
	if err != nil {
		_ = repos.Close()
		return nil, fmt.Errorf("failed to open audit log: %w", err)
	}

	// как stats.default_* в конфиге сервера
	goals := analysis.Goals{EfficiencyGoal: 15, MonthlyBudget: 15000}
	if cfg.Goals.Efficiency != nil {
		goals.EfficiencyGoal = *cfg.Goals.Efficiency
	}
	if cfg.Goals.MonthlyBudget != nil {
		goals.MonthlyBudget = *cfg.Goals.MonthlyBudget
	}

	stats := service.NewStatisticsService(repos.Records, service.WithGoals(goals))
	return &App{
		Owner:   cfg.Owner,
		Records: service.NewRecordService(repos.Records, stats, auditLog),
		Stats:   stats,
		Exchange: service.NewExchangeService(repos.Records, generator.NewRegistry(config.PDFConfig{}), stats, auditLog,
			config.ImportConfig{MaxFileBytes: 10 << 20, MaxRecords: 10000}),
		repos: repos,
		audit: auditLog,
	}, nil
}

// Close закрывает журнал и базу
func (a *App) Close() error {
	aerr := a.audit.Close()
	if err := a.repos.Close(); err != nil {
		return err
	}
	return aerr
}
