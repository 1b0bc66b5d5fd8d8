package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment override, e.g. SUPPLYCHAIN_LOGGING_LEVEL.
const EnvPrefix = "SUPPLYCHAIN"

// DateLayout is the layout of declared range bounds.
const DateLayout = "2006-01-02"

// Config represents the complete application configuration
type Config struct {
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Pipeline  PipelineConfig  `yaml:"pipeline" envconfig:"PIPELINE"`
	Quality   QualityConfig   `yaml:"quality" envconfig:"QUALITY"`
	Analysis  AnalysisConfig  `yaml:"analysis" envconfig:"ANALYSIS"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PathsConfig names the input file and the output artifacts of a run.
// Relative artifact names are resolved against OutputDir.
type PathsConfig struct {
	InputFile            string `yaml:"input_file" envconfig:"INPUT_FILE" validate:"required"`
	OutputDir            string `yaml:"output_dir" envconfig:"OUTPUT_DIR" validate:"required"`
	CleanedFile          string `yaml:"cleaned_file" envconfig:"CLEANED_FILE" validate:"required"`
	FilteredFile         string `yaml:"filtered_file" envconfig:"FILTERED_FILE" validate:"required"`
	DailyFile            string `yaml:"daily_file" envconfig:"DAILY_FILE" validate:"required"`
	WeeklyFile           string `yaml:"weekly_file" envconfig:"WEEKLY_FILE" validate:"required"`
	WorkbookFile         string `yaml:"workbook_file" envconfig:"WORKBOOK_FILE"`
	QualityReportFile    string `yaml:"quality_report_file" envconfig:"QUALITY_REPORT_FILE" validate:"required"`
	BottleneckReportFile string `yaml:"bottleneck_report_file" envconfig:"BOTTLENECK_REPORT_FILE"`
	StressReportFile     string `yaml:"stress_report_file" envconfig:"STRESS_REPORT_FILE"`
	CompoundReportFile   string `yaml:"compound_report_file" envconfig:"COMPOUND_REPORT_FILE"`
	SummaryFile          string `yaml:"summary_file" envconfig:"SUMMARY_FILE"`
	SQLiteFile           string `yaml:"sqlite_file" envconfig:"SQLITE_FILE"`
	MetricsFile          string `yaml:"metrics_file" envconfig:"METRICS_FILE"`
	TraceFile            string `yaml:"trace_file" envconfig:"TRACE_FILE"`
}

// PipelineConfig controls validation, resolution and temporal filtering.
type PipelineConfig struct {
	TimestampColumn   string   `yaml:"timestamp_column" envconfig:"TIMESTAMP_COLUMN" validate:"required"`
	DeclaredStart     string   `yaml:"declared_start" envconfig:"DECLARED_START" validate:"required,datetime=2006-01-02"`
	DeclaredEnd       string   `yaml:"declared_end" envconfig:"DECLARED_END" validate:"required,datetime=2006-01-02"`
	RequireGeo        bool     `yaml:"require_geo" envconfig:"REQUIRE_GEO"`
	ModeTieBreak      string   `yaml:"mode_tie_break" envconfig:"MODE_TIE_BREAK" validate:"oneof=first lexical"`
	CategoricalFields []string `yaml:"categorical_fields" envconfig:"CATEGORICAL_FIELDS"`
}

// QualityConfig holds the scoring policy of the quality report.
type QualityConfig struct {
	Weights       QualityWeights  `yaml:"weights" envconfig:"WEIGHTS"`
	OutlierK      float64         `yaml:"outlier_k" envconfig:"OUTLIER_K" validate:"gt=0"`
	OutlierFields []string        `yaml:"outlier_fields" envconfig:"OUTLIER_FIELDS" validate:"min=1"`
	Consistency   ConsistencyRule `yaml:"consistency" envconfig:"CONSISTENCY"`
}

// QualityWeights are the composite score weights. They must sum to 1.
type QualityWeights struct {
	Completeness float64 `yaml:"completeness" envconfig:"COMPLETENESS" validate:"gte=0,lte=1"`
	Uniqueness   float64 `yaml:"uniqueness" envconfig:"UNIQUENESS" validate:"gte=0,lte=1"`
	Validity     float64 `yaml:"validity" envconfig:"VALIDITY" validate:"gte=0,lte=1"`
	Consistency  float64 `yaml:"consistency" envconfig:"CONSISTENCY" validate:"gte=0,lte=1"`
	Outliers     float64 `yaml:"outliers" envconfig:"OUTLIERS" validate:"gte=0,lte=1"`
}

// ConsistencyRule flags a record as contradictory when FlagField equals
// FlagValue while ScoreField exceeds Threshold.
type ConsistencyRule struct {
	FlagField  string  `yaml:"flag_field" envconfig:"FLAG_FIELD" validate:"required"`
	FlagValue  float64 `yaml:"flag_value" envconfig:"FLAG_VALUE"`
	ScoreField string  `yaml:"score_field" envconfig:"SCORE_FIELD" validate:"required"`
	Threshold  float64 `yaml:"threshold" envconfig:"THRESHOLD"`
}

// AnalysisConfig parameterizes the bottleneck, stress and compound analyses.
// Thresholds maps a column to either a fixed value ("7") or a percentile
// of that column ("p75").
type AnalysisConfig struct {
	Thresholds         map[string]string `yaml:"thresholds" envconfig:"THRESHOLDS"`
	SevereDelayHours   float64           `yaml:"severe_delay_hours" envconfig:"SEVERE_DELAY_HOURS" validate:"gte=0"`
	HighDelayRisk      float64           `yaml:"high_delay_risk" envconfig:"HIGH_DELAY_RISK" validate:"gte=0,lte=1"`
	HighCostPercentile float64           `yaml:"high_cost_percentile" envconfig:"HIGH_COST_PERCENTILE" validate:"gt=0,lt=1"`
	FuelHighRate       float64           `yaml:"fuel_high_rate" envconfig:"FUEL_HIGH_RATE" validate:"gte=0"`
	FuelPricePerLiter  float64           `yaml:"fuel_price_per_liter" envconfig:"FUEL_PRICE_PER_LITER" validate:"gte=0"`
	LateRule           string            `yaml:"late_rule" envconfig:"LATE_RULE" validate:"oneof=positive median"`
}

// TelemetryConfig controls tracing and metrics for a batch run.
type TelemetryConfig struct {
	ServiceName    string  `yaml:"service_name" envconfig:"SERVICE_NAME" validate:"required"`
	Environment    string  `yaml:"environment" envconfig:"ENVIRONMENT"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=none stdout file"`
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER" validate:"oneof=none prometheus"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" validate:"gte=0,lte=1"`
}

// Load builds the configuration from defaults, an optional YAML file and
// environment variables, in increasing order of precedence. A .env file in
// the working directory is loaded into the environment first when present;
// a .env that exists but cannot be parsed is logged and skipped.
// An empty configFile falls back to the well-known locations.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("Failed to load .env file", slog.String("error", err.Error()))
	}

	cfg := Default()

	if configFile == "" {
		configFile = getConfigFilePath()
	}
	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file %s: %w", configFile, err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays a YAML file onto cfg. Keys absent from the file keep
// their current values.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks field constraints and the cross-field rules that struct
// tags cannot express.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	start, end, err := c.Pipeline.DeclaredRange()
	if err != nil {
		return err
	}
	if end.Before(start) {
		return fmt.Errorf("declared_end %s precedes declared_start %s", c.Pipeline.DeclaredEnd, c.Pipeline.DeclaredStart)
	}

	w := c.Quality.Weights
	sum := w.Completeness + w.Uniqueness + w.Validity + w.Consistency + w.Outliers
	if sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("quality weights must sum to 1, got %.3f", sum)
	}

	if c.Logging.Output != "console" && c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/supplychain.log"
	}

	return nil
}

// DeclaredRange parses the declared start and end dates in UTC.
func (p PipelineConfig) DeclaredRange() (time.Time, time.Time, error) {
	start, err := time.Parse(DateLayout, p.DeclaredStart)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse declared_start: %w", err)
	}
	end, err := time.Parse(DateLayout, p.DeclaredEnd)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("parse declared_end: %w", err)
	}
	return start, end, nil
}

// formatValidationErrors flattens validator errors into one message.
func formatValidationErrors(err error) error {
	validationErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(validationErrs))
	for _, fe := range validationErrs {
		msgs = append(msgs, fmt.Sprintf("%s failed '%s' (value: %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	locations := []string{
		"supplychain.yaml",
		"config.yaml",
		"configs/config.yaml",
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/supplychain.log",
		},
		Paths: PathsConfig{
			InputFile:            "dynamic_supply_chain_logistics_dataset.csv",
			OutputDir:            ".",
			CleanedFile:          "cleaned_supply_chain_data.csv",
			FilteredFile:         "filtered_supply_chain_data.csv",
			DailyFile:            "daily_supply_chain_metrics.csv",
			WeeklyFile:           "weekly_supply_chain_metrics.csv",
			WorkbookFile:         "supply_chain_metrics.xlsx",
			QualityReportFile:    "data_quality_report.txt",
			BottleneckReportFile: "bottleneck_analysis_report.txt",
			StressReportFile:     "operational_stress_summary.txt",
			CompoundReportFile:   "compound_effects_report.txt",
			SummaryFile:          "run_summary.json",
			MetricsFile:          "metrics.prom",
			TraceFile:            "traces.json",
		},
		Pipeline: PipelineConfig{
			TimestampColumn:   "timestamp",
			DeclaredStart:     "2021-01-01",
			DeclaredEnd:       "2024-01-31",
			RequireGeo:        true,
			ModeTieBreak:      "lexical",
			CategoricalFields: []string{"risk_classification"},
		},
		Quality: QualityConfig{
			Weights: QualityWeights{
				Completeness: 0.25,
				Uniqueness:   0.20,
				Validity:     0.25,
				Consistency:  0.20,
				Outliers:     0.10,
			},
			OutlierK: 3,
			OutlierFields: []string{
				"fuel_consumption_rate",
				"shipping_costs",
				"warehouse_inventory_level",
				"historical_demand",
				"loading_unloading_time",
			},
			Consistency: ConsistencyRule{
				FlagField:  "order_fulfillment_status",
				FlagValue:  1,
				ScoreField: "delay_probability",
				Threshold:  0.8,
			},
		},
		Analysis: AnalysisConfig{
			Thresholds: map[string]string{
				"loading_unloading_time":   "p75",
				"customs_clearance_time":   "p75",
				"lead_time_days":           "p75",
				"traffic_congestion_level": "7",
				"port_congestion_level":    "7",
				"route_risk_level":         "7",
			},
			SevereDelayHours:   3,
			HighDelayRisk:      0.7,
			HighCostPercentile: 0.9,
			FuelHighRate:       15,
			FuelPricePerLiter:  3,
			LateRule:           "positive",
		},
		Telemetry: TelemetryConfig{
			ServiceName:    "supplychain",
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1.0,
		},
	}
}
