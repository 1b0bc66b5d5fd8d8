package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// Paths contains the resolved locations of every artifact of a run.
// This is the single source of truth for file paths in the application.
type Paths struct {
	InputFile string
	OutputDir string

	CleanedCSV  string
	FilteredCSV string
	DailyCSV    string
	WeeklyCSV   string

	Workbook         string
	QualityReport    string
	BottleneckReport string
	StressReport     string
	CompoundReport   string
	Summary          string

	SQLiteDB    string
	MetricsFile string
	TraceFile   string
	LogFile     string
}

// ResolvePaths resolves artifact names against the output directory. Absolute
// names are kept as they are and empty optional names stay empty.
func (c *Config) ResolvePaths() (*Paths, error) {
	outputDir, err := filepath.Abs(c.Paths.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve output directory: %w", err)
	}
	input, err := filepath.Abs(c.Paths.InputFile)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve input file: %w", err)
	}

	resolve := func(name string) string {
		if name == "" || filepath.IsAbs(name) {
			return name
		}
		return filepath.Join(outputDir, name)
	}

	return &Paths{
		InputFile:        input,
		OutputDir:        outputDir,
		CleanedCSV:       resolve(c.Paths.CleanedFile),
		FilteredCSV:      resolve(c.Paths.FilteredFile),
		DailyCSV:         resolve(c.Paths.DailyFile),
		WeeklyCSV:        resolve(c.Paths.WeeklyFile),
		Workbook:         resolve(c.Paths.WorkbookFile),
		QualityReport:    resolve(c.Paths.QualityReportFile),
		BottleneckReport: resolve(c.Paths.BottleneckReportFile),
		StressReport:     resolve(c.Paths.StressReportFile),
		CompoundReport:   resolve(c.Paths.CompoundReportFile),
		Summary:          resolve(c.Paths.SummaryFile),
		SQLiteDB:         resolve(c.Paths.SQLiteFile),
		MetricsFile:      resolve(c.Paths.MetricsFile),
		TraceFile:        resolve(c.Paths.TraceFile),
		LogFile:          c.Logging.FilePath,
	}, nil
}

// EnsureDirectories creates the output directory and the parent directory of
// every artifact that lives outside it.
func (p *Paths) EnsureDirectories() error {
	dirs := map[string]struct{}{p.OutputDir: {}}
	for _, file := range []string{
		p.CleanedCSV, p.FilteredCSV, p.DailyCSV, p.WeeklyCSV, p.Workbook,
		p.QualityReport, p.BottleneckReport, p.StressReport, p.CompoundReport, p.Summary,
		p.SQLiteDB, p.MetricsFile, p.TraceFile,
	} {
		if file != "" {
			dirs[filepath.Dir(file)] = struct{}{}
		}
	}

	for dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// FileExists checks if a file exists
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// LogPathResolution logs the resolved paths at debug level.
func (p *Paths) LogPathResolution(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("Resolved paths",
		slog.String("input", p.InputFile),
		slog.String("output_dir", p.OutputDir),
		slog.String("cleaned_csv", p.CleanedCSV),
		slog.String("filtered_csv", p.FilteredCSV),
		slog.String("daily_csv", p.DailyCSV),
		slog.String("weekly_csv", p.WeeklyCSV),
		slog.String("workbook", p.Workbook),
		slog.String("sqlite", p.SQLiteDB))
}
