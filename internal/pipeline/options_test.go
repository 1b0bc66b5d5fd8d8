package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplychain/internal/bottleneck"
	"supplychain/internal/config"
	"supplychain/internal/dataset"
	apperrors "supplychain/internal/errors"
	"supplychain/internal/stats"
)

func TestSchema(t *testing.T) {
	cfg := config.Default()
	cfg.Pipeline.TimestampColumn = "recorded_at"
	cfg.Pipeline.CategoricalFields = []string{"carrier"}

	s := Schema(cfg)
	assert.Equal(t, "recorded_at", s.TimestampColumn)
	assert.Equal(t, dataset.Timestamp, s.KindOf("recorded_at"))
	assert.Equal(t, dataset.Categorical, s.KindOf("carrier"))
}

func TestResolverOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Pipeline.RequireGeo = false
	cfg.Pipeline.ModeTieBreak = "first"

	opts := ResolverOptions(cfg)
	assert.False(t, opts.RequireGeo)
	assert.Equal(t, stats.TieBreakFirst, opts.TieBreak)
	assert.Equal(t, "timestamp", opts.TimestampColumn)
}

func TestDeclaredRange(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
		wantErr    bool
	}{
		{name: "default window", start: "2021-01-01", end: "2024-01-31"},
		{name: "single day", start: "2022-05-05", end: "2022-05-05"},
		{name: "reversed", start: "2024-01-31", end: "2021-01-01", wantErr: true},
		{name: "malformed", start: "2021/01/01", end: "2024-01-31", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			cfg.Pipeline.DeclaredStart = tt.start
			cfg.Pipeline.DeclaredEnd = tt.end

			r, err := DeclaredRange(cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, apperrors.IsType(err, apperrors.ErrTypeConfig))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.start, r.Start.Format(time.DateOnly))
			assert.Equal(t, tt.end, r.End.Format(time.DateOnly))
		})
	}
}

func TestAnalysisOptions(t *testing.T) {
	cfg := config.Default()
	cfg.Analysis.LateRule = "median"
	cfg.Analysis.Thresholds = map[string]string{"lead_time_days": "p90"}

	opts, err := AnalysisOptions(cfg)
	require.NoError(t, err)
	assert.Equal(t, bottleneck.LateRule("median"), opts.LateRule)
	assert.Equal(t, bottleneck.Pct(0.9), opts.Thresholds["lead_time_days"])
	assert.Equal(t, cfg.Analysis.SevereDelayHours, opts.SevereDelayHours)

	cfg.Analysis.Thresholds = map[string]string{"lead_time_days": "high"}
	_, err = AnalysisOptions(cfg)
	assert.Error(t, err)
}
