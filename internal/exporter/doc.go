// Package exporter writes pipeline outputs to disk.
//
// CSVWriter writes record frames and aggregated tables as CSV, with an
// optional UTF-8 BOM for spreadsheet tools. Frames are streamed row by row
// through StreamWriter.
//
// WorkbookWriter writes the daily and weekly tables together with the run's
// quality scores into one xlsx workbook.
//
// Example usage:
//
//	w := exporter.NewCSVWriter(logger)
//	err := w.WriteTable(ctx, "out/daily_supply_chain_metrics.csv", daily)
//
//	err = exporter.NewWorkbookWriter(logger).Write(ctx, "out/supply_chain_metrics.xlsx",
//		exporter.Workbook{Daily: daily, Weekly: weekly, Quality: q})
package exporter
