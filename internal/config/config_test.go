package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplychain/internal/shared/testutil"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "supplychain.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		file        string
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "info", cfg.Logging.Level)
				assert.Equal(t, "timestamp", cfg.Pipeline.TimestampColumn)
				assert.Equal(t, "2021-01-01", cfg.Pipeline.DeclaredStart)
				assert.Equal(t, "2024-01-31", cfg.Pipeline.DeclaredEnd)
				assert.Equal(t, "lexical", cfg.Pipeline.ModeTieBreak)
				assert.Equal(t, []string{"risk_classification"}, cfg.Pipeline.CategoricalFields)
				assert.InDelta(t, 0.25, cfg.Quality.Weights.Completeness, 1e-9)
				assert.InDelta(t, 0.10, cfg.Quality.Weights.Outliers, 1e-9)
				assert.Equal(t, 3.0, cfg.Quality.OutlierK)
				assert.Equal(t, "delay_probability", cfg.Quality.Consistency.ScoreField)
				assert.Equal(t, "p75", cfg.Analysis.Thresholds["lead_time_days"])
			},
		},
		{
			name: "yaml file overlays defaults",
			file: `
logging:
  level: debug
pipeline:
  declared_end: "2023-12-31"
  mode_tie_break: first
analysis:
  thresholds:
    route_risk_level: "8"
`,
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.Logging.Level)
				assert.Equal(t, "2023-12-31", cfg.Pipeline.DeclaredEnd)
				assert.Equal(t, "first", cfg.Pipeline.ModeTieBreak)
				assert.Equal(t, "8", cfg.Analysis.Thresholds["route_risk_level"])
				assert.Equal(t, "p75", cfg.Analysis.Thresholds["lead_time_days"])
				assert.Equal(t, "2021-01-01", cfg.Pipeline.DeclaredStart)
			},
		},
		{
			name: "environment wins over file",
			file: "logging:\n  level: debug\n",
			env: map[string]string{
				"SUPPLYCHAIN_LOGGING_LEVEL":                 "warn",
				"SUPPLYCHAIN_PATHS_OUTPUT_DIR":              "out",
				"SUPPLYCHAIN_QUALITY_OUTLIER_FIELDS":        "shipping_costs,lead_time_days",
				"SUPPLYCHAIN_PIPELINE_REQUIRE_GEO":          "false",
				"SUPPLYCHAIN_QUALITY_CONSISTENCY_THRESHOLD": "0.9",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "warn", cfg.Logging.Level)
				assert.Equal(t, "out", cfg.Paths.OutputDir)
				assert.Equal(t, []string{"shipping_costs", "lead_time_days"}, cfg.Quality.OutlierFields)
				assert.False(t, cfg.Pipeline.RequireGeo)
				assert.Equal(t, 0.9, cfg.Quality.Consistency.Threshold)
			},
		},
		{
			name:    "weights not summing to one",
			env:     map[string]string{"SUPPLYCHAIN_QUALITY_WEIGHTS_VALIDITY": "0.5"},
			wantErr: true,
		},
		{
			name:    "end before start",
			file:    "pipeline:\n  declared_start: \"2024-02-01\"\n  declared_end: \"2024-01-31\"\n",
			wantErr: true,
		},
		{
			name:    "malformed date",
			env:     map[string]string{"SUPPLYCHAIN_PIPELINE_DECLARED_START": "01/01/2021"},
			wantErr: true,
		},
		{
			name:    "unknown tie break",
			env:     map[string]string{"SUPPLYCHAIN_PIPELINE_MODE_TIE_BREAK": "random"},
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			file:    "logging: [unclosed",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			configFile := ""
			if tt.file != "" {
				configFile = writeConfigFile(t, tt.file)
			}

			cfg, err := Load(configFile)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.validateCfg != nil {
				tt.validateCfg(t, cfg)
			}
		})
	}
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SUPPLYCHAIN_TELEMETRY_TRACE_EXPORTER=stdout\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("SUPPLYCHAIN_TELEMETRY_TRACE_EXPORTER") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "stdout", cfg.Telemetry.TraceExporter)
}

func TestLoad_MalformedDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("SUPPLYCHAIN_LOGGING_LEVEL=\"debug\n"), 0644))

	logger, logs := testutil.NewTestLogger(t)
	previous := slog.Default()
	slog.SetDefault(logger)
	t.Cleanup(func() { slog.SetDefault(previous) })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Logging.Level, cfg.Logging.Level)

	rec := testutil.AssertLogged(t, logs, slog.LevelWarn, "Failed to load .env file")
	assert.Contains(t, rec.Attrs["error"], "unterminated")
}

func TestLoad_MissingDotEnvIsQuiet(t *testing.T) {
	t.Chdir(t.TempDir())

	logger, logs := testutil.NewTestLogger(t)
	previous := slog.Default()
	slog.SetDefault(logger)
	t.Cleanup(func() { slog.SetDefault(previous) })

	_, err := Load("")
	require.NoError(t, err)
	testutil.AssertNoErrors(t, logs)
	assert.Empty(t, logs.Records())
}

func TestPipelineConfig_DeclaredRange(t *testing.T) {
	start, end, err := Default().Pipeline.DeclaredRange()
	require.NoError(t, err)
	assert.Equal(t, 2021, start.Year())
	assert.Equal(t, 31, end.Day())

	_, _, err = PipelineConfig{DeclaredStart: "x", DeclaredEnd: "2024-01-31"}.DeclaredRange()
	assert.Error(t, err)
}

func TestValidate_FillsLogFilePath(t *testing.T) {
	cfg := Default()
	cfg.Logging.Output = "both"
	cfg.Logging.FilePath = ""

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "logs/supplychain.log", cfg.Logging.FilePath)
}
