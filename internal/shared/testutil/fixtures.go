package testutil

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"supplychain/internal/dataset"
)

// Cells overrides cells of a fixture row by column name.
type Cells map[string]string

// BaseCells returns one in-range logistics record.
func BaseCells() Cells {
	return Cells{
		dataset.ColTimestamp:             "2021-01-01 10:00:00",
		dataset.ColLatitude:              "40.37",
		dataset.ColLongitude:             "-77.02",
		dataset.ColFuelConsumption:       "5",
		dataset.ColETAVariation:          "1.5",
		dataset.ColTrafficCongestion:     "4",
		dataset.ColWarehouseInventory:    "500",
		dataset.ColLoadingTime:           "2",
		dataset.ColEquipmentAvailability: "1",
		dataset.ColOrderFulfillment:      "1",
		dataset.ColWeatherSeverity:       "0.3",
		dataset.ColPortCongestion:        "5",
		dataset.ColShippingCosts:         "300",
		dataset.ColSupplierReliability:   "0.8",
		dataset.ColLeadTime:              "5",
		dataset.ColHistoricalDemand:      "200",
		dataset.ColIoTTemperature:        "20",
		dataset.ColCargoCondition:        "1",
		dataset.ColRouteRisk:             "3",
		dataset.ColCustomsClearance:      "1",
		dataset.ColDriverBehavior:        "0.7",
		dataset.ColFatigueMonitoring:     "0.4",
		dataset.ColDisruptionLikelihood:  "0.2",
		dataset.ColDelayProbability:      "0.5",
		dataset.ColRiskClassification:    "Moderate Risk",
		dataset.ColDeliveryTimeDeviation: "2",
	}
}

// Fixture builds a logistics CSV row by row.
type Fixture struct {
	header []string
	rows   [][]string
}

// NewFixture starts a fixture carrying every logistics column.
func NewFixture() *Fixture {
	s := dataset.LogisticsSchema()
	header := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		header[i] = f.Name
	}
	return &Fixture{header: header}
}

// Columns restricts the header to names, in that order.
func (f *Fixture) Columns(names ...string) *Fixture {
	f.header = append([]string(nil), names...)
	return f
}

// Row appends BaseCells with overrides applied.
func (f *Fixture) Row(overrides Cells) *Fixture {
	cells := BaseCells()
	for k, v := range overrides {
		cells[k] = v
	}
	row := make([]string, len(f.header))
	for i, name := range f.header {
		row[i] = cells[name]
	}
	f.rows = append(f.rows, row)
	return f
}

// Rows appends n rows built by fn. A nil fn appends base rows.
func (f *Fixture) Rows(n int, fn func(i int) Cells) *Fixture {
	for i := 0; i < n; i++ {
		var cells Cells
		if fn != nil {
			cells = fn(i)
		}
		f.Row(cells)
	}
	return f
}

// CSV renders the fixture.
func (f *Fixture) CSV() string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(f.header)
	_ = w.WriteAll(f.rows)
	return buf.String()
}

// Table parses the fixture into a raw table.
func (f *Fixture) Table(t *testing.T) *dataset.RawTable {
	t.Helper()
	table, err := dataset.ReadCSV(strings.NewReader(f.CSV()), "fixture.csv")
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}
	return table
}

// WriteFile writes the fixture under dir and returns the path.
func (f *Fixture) WriteFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(f.CSV()), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}
