// Package cli команды fuelctl поверх локальной базы SQLite
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	pkgerrors "fueltracker/pkg/apperror"
	"fueltracker/pkg/domain"
	"fueltracker/pkg/logger"
	"fueltracker/services/fuel-svc/internal/analysis"
	"fueltracker/services/fuel-svc/internal/importer"
	"fueltracker/services/fuel-svc/internal/service"
)

// errInvalid validate нашёл ошибки; сообщения уже напечатаны
var errInvalid = errors.New("record is invalid")

type rootOptions struct {
	configPath string
	dbPath     string
	owner      string
	logLevel   string

	cfg FileConfig
}

// NewRootCmd собирает дерево команд fuelctl
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "fuelctl",
		Short:         "Fuel expense tracker",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			logger.Log = logger.New(logger.Config{Level: opts.logLevel, Format: "text"}, cmd.ErrOrStderr())

			cfg, err := LoadConfig(opts.configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if opts.dbPath != "" {
				cfg.Store.Path = opts.dbPath
			}
			if opts.owner != "" {
				cfg.Owner.ID = opts.owner
			}
			opts.cfg = cfg
			return nil
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", DefaultConfigPath(), "path to config.toml")
	flags.StringVar(&opts.dbPath, "db", "", "path to the SQLite database (overrides config)")
	flags.StringVar(&opts.owner, "user", "", "owner id of the records (overrides config)")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "log level: debug, info, warn, error")

	rootCmd.AddCommand(
		newAddCmd(opts),
		newListCmd(opts),
		newDeleteCmd(opts),
		newStatsCmd(opts),
		newImportCmd(opts),
		newExportCmd(opts),
		newReportCmd(opts),
		newSampleCmd(),
		newValidateCmd(opts),
		newConfigCmd(opts),
	)
	return rootCmd
}

// withApp открывает базу на время выполнения команды
func (o *rootOptions) withApp(cmd *cobra.Command, fn func(ctx context.Context, app *App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := Open(ctx, o.cfg)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := app.Close(); cerr != nil {
			logger.Log.Warn("Failed to close store", "error", cerr)
		}
	}()
	return fn(ctx, app)
}

type formFlags struct {
	date, amount, cost, mileage, station string
}

func (f *formFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.date, "date", time.Now().Format(domain.DateLayout), "fill-up date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.amount, "amount", "", "litres")
	cmd.Flags().StringVar(&f.cost, "cost", "", "total cost in yen")
	cmd.Flags().StringVar(&f.mileage, "mileage", "", "odometer reading in km")
	cmd.Flags().StringVar(&f.station, "station", "", "station name")
}

func (f *formFlags) input() domain.FormInput {
	return domain.FormInput{Date: f.date, Amount: f.amount, Cost: f.cost, Mileage: f.mileage, Station: f.station}
}

func newAddCmd(opts *rootOptions) *cobra.Command {
	var form formFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a fill-up record",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				res, err := app.Records.Create(ctx, app.Owner.ID, form.input())
				if err != nil {
					return printValidation(cmd.OutOrStdout(), err)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "追加しました: %s %s %s\n", res.Record.ID, res.Record.Date, res.Record.Station)
				printMessages(out, warnStyle, res.Warnings)
				return nil
			})
		},
	}
	form.bind(cmd)
	return cmd
}

type periodFlags struct {
	from, to string
	stations []string
}

func (p *periodFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.from, "from", "", "start date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&p.to, "to", "", "end date (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&p.stations, "station", nil, "station filter (repeatable)")
}

func (p *periodFlags) options() service.ListOptions {
	return service.ListOptions{From: p.from, To: p.to, Stations: p.stations}
}

func newListCmd(opts *rootOptions) *cobra.Command {
	var (
		period periodFlags
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List records in date order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				lo := period.options()
				lo.Limit = limit
				records, err := app.Records.List(ctx, app.Owner.ID, lo)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(records) == 0 {
					fmt.Fprintln(out, mutedStyle.Render("記録がありません"))
					return nil
				}
				for _, line := range recordTable(records) {
					fmt.Fprintln(out, line)
				}
				return nil
			})
		},
	}
	period.bind(cmd)
	cmd.Flags().IntVar(&limit, "limit", 0, "show at most N records")
	return cmd
}

func recordTable(records []domain.FuelRecord) []string {
	rows := make([][]string, 0, len(records))
	for i, r := range records {
		var prev *domain.FuelRecord
		if i > 0 {
			prev = &records[i-1]
		}
		efficiency := "-"
		if e, ok := domain.Efficiency(r, prev); ok {
			efficiency = fmt.Sprintf("%.1f", e)
		}
		rows = append(rows, []string{
			shortID(r.ID), r.Date, r.Station,
			fmt.Sprintf("%.1f", r.Amount),
			domain.FormatCurrency(float64(r.Cost)),
			fmt.Sprintf("%.1f", domain.PricePerLiter(r)),
			fmt.Sprintf("%.0f", r.Mileage),
			efficiency,
		})
	}
	return formatTable(
		[]string{"ID", "日付", "スタンド名", "給油量(L)", "金額", "単価(円/L)", "走行距離(km)", "燃費(km/L)"},
		rows,
		map[int]bool{3: true, 4: true, 5: true, 6: true, 7: true},
	)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func newDeleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a record (full id or unique prefix from list)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				id, err := resolveID(ctx, app, args[0])
				if err != nil {
					return err
				}
				if err := app.Records.Delete(ctx, app.Owner.ID, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "削除しました: %s\n", id)
				return nil
			})
		},
	}
}

// resolveID раскрывает короткий префикс из list в полный id
func resolveID(ctx context.Context, app *App, prefix string) (string, error) {
	records, err := app.Records.List(ctx, app.Owner.ID, service.ListOptions{})
	if err != nil {
		return "", err
	}
	var matches []string
	for _, r := range records {
		if r.ID == prefix {
			return r.ID, nil
		}
		if strings.HasPrefix(r.ID, prefix) {
			matches = append(matches, r.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("record %q not found", prefix))
	case 1:
		return matches[0], nil
	default:
		return "", pkgerrors.New(pkgerrors.CodeInvalidArgument,
			fmt.Sprintf("id prefix %q matches %d records", prefix, len(matches)))
	}
}

func newStatsCmd(opts *rootOptions) *cobra.Command {
	var (
		period     periodFlags
		noInsights bool
	)
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show statistics, monthly summary and goal insights",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				stats, err := app.Stats.Statistics(ctx, app.Owner.ID, period.options())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if stats.TotalRecords == 0 {
					fmt.Fprintln(out, mutedStyle.Render("記録がありません"))
					return nil
				}
				printStatistics(out, stats)

				if noInsights {
					return nil
				}
				in, err := app.Stats.Insights(ctx, app.Owner.ID, analysis.Goals{})
				if err != nil {
					return err
				}
				printInsights(out, in)
				return nil
			})
		},
	}
	period.bind(cmd)
	cmd.Flags().BoolVar(&noInsights, "no-insights", false, "skip goal insights")
	return cmd
}

func printStatistics(out io.Writer, s analysis.StatisticsData) {
	fmt.Fprintln(out, heading("統計"))
	for _, line := range keyValues([][2]string{
		{"給油回数", fmt.Sprintf("%d回", s.TotalRecords)},
		{"総費用", domain.FormatCurrency(float64(s.TotalCost))},
		{"総給油量", fmt.Sprintf("%.1fL", s.TotalAmount)},
		{"総走行距離", domain.FormatDistance(s.TotalDistance)},
		{"平均燃費", domain.FormatEfficiency(s.AverageFuelEfficiency) + " (" + domain.EfficiencyGrade(s.AverageFuelEfficiency) + ")"},
		{"平均単価", domain.FormatPrice(s.AveragePrice)},
		{"月平均費用", domain.FormatCurrency(s.AverageCostPerMonth)},
		{"最高/最低燃費", domain.FormatEfficiency(s.BestFuelEfficiency) + " / " + domain.FormatEfficiency(s.WorstFuelEfficiency)},
	}) {
		fmt.Fprintln(out, line)
	}

	if len(s.MonthlyStats) == 0 {
		return
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, heading("月別"))
	rows := make([][]string, 0, len(s.MonthlyStats))
	for _, m := range s.MonthlyStats {
		rows = append(rows, []string{
			m.DisplayMonth,
			fmt.Sprintf("%d", m.RecordCount),
			fmt.Sprintf("%.1f", m.TotalAmount),
			domain.FormatCurrency(float64(m.TotalCost)),
			fmt.Sprintf("%.1f", m.AverageFuelEfficiency),
		})
	}
	for _, line := range formatTable(
		[]string{"月", "回数", "給油量(L)", "金額", "燃費(km/L)"},
		rows, map[int]bool{1: true, 2: true, 3: true, 4: true},
	) {
		fmt.Fprintln(out, line)
	}
}

func printInsights(out io.Writer, in analysis.Insights) {
	fmt.Fprintln(out)
	fmt.Fprintln(out, heading("目標"))
	for _, line := range keyValues([][2]string{
		{"燃費目標", fmt.Sprintf("%s (%.0f%%, %s)", domain.FormatEfficiency(in.Goals.EfficiencyGoal), in.EfficiencyAchievement*100, in.EfficiencyGrade)},
		{"月予算", fmt.Sprintf("%s (%.0f%%, %s)", domain.FormatCurrency(in.Goals.MonthlyBudget), in.BudgetAchievement*100, in.BudgetGrade)},
		{"総合評価", in.OverallGrade},
	}) {
		fmt.Fprintln(out, line)
	}
	for _, a := range in.Alerts {
		style := mutedStyle
		switch a.Type {
		case analysis.AlertWarning:
			style = warnStyle
		case analysis.AlertDanger:
			style = errorStyle
		}
		fmt.Fprintln(out, style.Render("! "+a.Message))
	}
	for _, r := range in.Recommendations {
		fmt.Fprintln(out, "- "+r)
	}
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import records from a CSV or JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				report, err := app.Exchange.Import(ctx, app.Owner.ID, filepath.Base(args[0]), content, dryRun)
				if err != nil {
					return printValidation(cmd.OutOrStdout(), err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), report.Message)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "parse and validate without saving")
	return cmd
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		period periodFlags
		output string
	)
	cmd := &cobra.Command{
		Use:   "export FORMAT",
		Short: "Export records as csv, json, xlsx, pdf or report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				file, err := app.Exchange.Export(ctx, app.Owner.ID, args[0], period.options())
				if err != nil {
					return err
				}
				path := output
				if path == "" {
					path = file.Filename
				}
				return writeOutput(cmd, path, file.Data)
			})
		},
	}
	period.bind(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file, - for stdout (default: generated name)")
	return cmd
}

func newReportCmd(opts *rootOptions) *cobra.Command {
	var (
		period periodFlags
		output string
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print the monthly report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				file, err := app.Exchange.Export(ctx, app.Owner.ID, "report", period.options())
				if err != nil {
					return err
				}
				return writeOutput(cmd, output, file.Data)
			})
		},
	}
	period.bind(cmd)
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file, - for stdout")
	return cmd
}

func newSampleCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Write the CSV import template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return writeOutput(cmd, output, importer.SampleCSV())
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "-", "output file, - for stdout")
	return cmd
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	var (
		form    formFlags
		exclude string
	)
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a record against existing data without saving it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withApp(cmd, func(ctx context.Context, app *App) error {
				res, err := app.Records.Check(ctx, app.Owner.ID, form.input(), exclude)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				printMessages(out, errorStyle, res.Errors)
				printMessages(out, warnStyle, res.Warnings)
				if !res.Valid {
					return errInvalid
				}
				fmt.Fprintln(out, "OK")
				return nil
			})
		},
	}
	form.bind(cmd)
	cmd.Flags().StringVar(&exclude, "exclude", "", "record id to ignore (when checking an edit)")
	return cmd
}

func newConfigCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create the config file if missing and print its path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := opts.configPath
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("failed to create config directory: %w", err)
			}
			if _, err := os.Stat(path); err != nil {
				if !os.IsNotExist(err) {
					return fmt.Errorf("failed to stat config: %w", err)
				}
				if err := os.WriteFile(path, []byte(configTemplate), 0o644); err != nil {
					return fmt.Errorf("failed to write config: %w", err)
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%d bytes)\n", path, len(data))
	return nil
}

// printValidation печатает сообщения ошибки валидации и возвращает её дальше
func printValidation(out io.Writer, err error) error {
	appErr := pkgerrors.From(err)
	if msgs, ok := appErr.Details["errors"].([]string); ok {
		printMessages(out, errorStyle, msgs)
	}
	if msgs, ok := appErr.Details["warnings"].([]string); ok {
		printMessages(out, warnStyle, msgs)
	}
	return err
}

func printMessages(out io.Writer, style lipgloss.Style, msgs []string) {
	for _, m := range msgs {
		fmt.Fprintln(out, style.Render(m))
	}
}
