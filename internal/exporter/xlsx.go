package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"supplychain/internal/aggregate"
	apperrors "supplychain/internal/errors"
	"supplychain/internal/quality"
	"supplychain/internal/temporal"
)

// Sheet names of the metrics workbook.
const (
	SheetDaily   = "Daily"
	SheetWeekly  = "Weekly"
	SheetQuality = "Quality"
)

// Workbook is the content of the metrics workbook. Nil parts are skipped,
// but the workbook always has at least the Daily sheet.
type Workbook struct {
	Daily       *aggregate.Table
	Weekly      *aggregate.Table
	Quality     *quality.Report
	Discrepancy *temporal.Discrepancy
	Metrics     *aggregate.KeyMetrics
}

// WorkbookWriter exports aggregated tables and run quality to xlsx.
type WorkbookWriter struct {
	logger *slog.Logger
}

// NewWorkbookWriter creates a workbook writer.
func NewWorkbookWriter(logger *slog.Logger) *WorkbookWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkbookWriter{logger: logger}
}

// Write builds the workbook and saves it to filePath.
func (w *WorkbookWriter) Write(ctx context.Context, filePath string, wb Workbook) error {
	f := excelize.NewFile()
	defer f.Close()

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return apperrors.NewExportError("failed to create header style", err)
	}

	// The default sheet becomes Daily.
	if err := f.SetSheetName(f.GetSheetName(0), SheetDaily); err != nil {
		return apperrors.NewExportError("failed to rename default sheet", err)
	}
	if wb.Daily != nil {
		if err := writeTableSheet(f, SheetDaily, wb.Daily, header); err != nil {
			return err
		}
	}

	if wb.Weekly != nil {
		if _, err := f.NewSheet(SheetWeekly); err != nil {
			return apperrors.NewExportError("failed to add weekly sheet", err)
		}
		if err := writeTableSheet(f, SheetWeekly, wb.Weekly, header); err != nil {
			return err
		}
	}

	if wb.Quality != nil || wb.Discrepancy != nil || wb.Metrics != nil {
		if _, err := f.NewSheet(SheetQuality); err != nil {
			return apperrors.NewExportError("failed to add quality sheet", err)
		}
		if err := writeQualitySheet(f, wb, header); err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return apperrors.NewExportError("failed to create directory", err).WithContext("path", filePath)
	}
	if err := f.SaveAs(filePath); err != nil {
		return apperrors.NewExportError("failed to save workbook", err).WithContext("path", filePath)
	}

	w.logger.InfoContext(ctx, "Workbook written",
		slog.String("file_path", filePath),
		slog.Int("sheets", f.SheetCount))
	return nil
}

// writeTableSheet writes the header in bold on row 1 followed by one row per
// bucket. Keys are written as text in KeyLayout so they sort and read the
// same as in the CSV output.
func writeTableSheet(f *excelize.File, sheet string, table *aggregate.Table, headerStyle int) error {
	headers := table.Header()
	row := make([]any, len(headers))
	for i, h := range headers {
		row[i] = h
	}
	if err := setRow(f, sheet, 1, row); err != nil {
		return err
	}

	last, err := excelize.ColumnNumberToName(len(headers))
	if err != nil {
		return apperrors.NewExportError("invalid column count", err)
	}
	if err := f.SetCellStyle(sheet, "A1", last+"1", headerStyle); err != nil {
		return apperrors.NewExportError("failed to style header", err)
	}
	if err := f.SetColWidth(sheet, "A", last, 18); err != nil {
		return apperrors.NewExportError("failed to set column width", err)
	}

	for i, b := range table.Buckets {
		row := make([]any, 0, len(b.Values)+1)
		row = append(row, b.Key.Format(aggregate.KeyLayout))
		for _, v := range b.Values {
			row = append(row, cellValue(v))
		}
		if err := setRow(f, sheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writeQualitySheet(f *excelize.File, wb Workbook, headerStyle int) error {
	rows := [][]any{{"Metric", "Value"}}

	if q := wb.Quality; q != nil {
		rows = append(rows,
			[]any{"Completeness (%)", percentCell(q.Completeness)},
			[]any{"Uniqueness (%)", percentCell(q.Uniqueness)},
			[]any{"Validity (%)", percentCell(q.Validity)},
			[]any{"Consistency (%)", percentCell(q.Consistency)},
			[]any{"Outliers (%)", percentCell(q.OutlierPct)},
			[]any{"Composite Score (%)", percentCell(q.Composite)},
			[]any{"Total Cells", q.TotalCells},
			[]any{"Null Cells", q.NullCells},
			[]any{"Corrections", q.Corrections},
			[]any{"Duplicates Removed", q.DuplicatesRemoved},
			[]any{"Contradictions", q.Contradictions},
		)
	}

	if d := wb.Discrepancy; d != nil {
		rows = append(rows,
			[]any{"Records Before Range", d.Before},
			[]any{"Records Within Range", d.Within},
			[]any{"Records Beyond Range", d.Beyond},
			[]any{"Months Beyond Range", d.MonthsBeyond},
		)
	}

	if m := wb.Metrics; m != nil {
		rows = append(rows,
			[]any{"Records Analyzed", m.Records},
			[]any{"Order Fulfillment Rate (%)", percentCell(m.FulfillmentRate)},
			[]any{"Avg Fuel Consumption", cellValue(m.AvgFuelConsumption)},
			[]any{"Total Shipping Costs", cellValue(m.TotalShippingCosts)},
			[]any{"Avg Delay Probability (%)", percentCell(m.AvgDelayProbability)},
			[]any{"Good Cargo Rate (%)", percentCell(m.GoodCargoRate)},
		)
	}

	for i, row := range rows {
		if err := setRow(f, SheetQuality, i+1, row); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(SheetQuality, "A1", "B1", headerStyle); err != nil {
		return apperrors.NewExportError("failed to style header", err)
	}
	if err := f.SetColWidth(SheetQuality, "A", "A", 30); err != nil {
		return apperrors.NewExportError("failed to set column width", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, rowNum int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return apperrors.NewExportError("invalid cell reference", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return apperrors.NewExportError(fmt.Sprintf("failed to write %s row %d", sheet, rowNum), err)
	}
	return nil
}
