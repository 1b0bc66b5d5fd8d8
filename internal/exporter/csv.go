package exporter

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"supplychain/internal/aggregate"
	"supplychain/internal/dataset"
	apperrors "supplychain/internal/errors"
)

// CSVWriter provides CSV export functionality
type CSVWriter struct {
	logger *slog.Logger
}

// NewCSVWriter creates a new CSV writer instance
func NewCSVWriter(logger *slog.Logger) *CSVWriter {
	if logger == nil {
		logger = slog.Default()
	}
	return &CSVWriter{logger: logger}
}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	Headers   []string
	Records   [][]string
	Append    bool
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteCSV writes data to a CSV file with the given options
func (w *CSVWriter) WriteCSV(ctx context.Context, filePath string, options WriteOptions) error {
	w.logger.InfoContext(ctx, "Writing CSV file",
		slog.String("file_path", filePath),
		slog.Int("record_count", len(options.Records)))

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return apperrors.NewExportError("failed to create directory", err).WithContext("path", filePath)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if options.Append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	file, err := os.OpenFile(filePath, flags, 0644)
	if err != nil {
		return apperrors.NewExportError("failed to open file", err).WithContext("path", filePath)
	}
	defer file.Close()

	// BOM helps Excel recognize UTF-8
	if options.BOMPrefix && !options.Append {
		if _, err := file.Write(utf8BOM); err != nil {
			return apperrors.NewExportError("failed to write BOM", err).WithContext("path", filePath)
		}
	}

	writer := csv.NewWriter(file)

	if !options.Append && len(options.Headers) > 0 {
		if err := writer.Write(options.Headers); err != nil {
			return apperrors.NewExportError("failed to write headers", err).WithContext("path", filePath)
		}
	}

	for i, record := range options.Records {
		if err := writer.Write(record); err != nil {
			return apperrors.NewExportError(fmt.Sprintf("failed to write record %d", i), err).WithContext("path", filePath)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return apperrors.NewExportError("failed to flush CSV", err).WithContext("path", filePath)
	}
	return file.Close()
}

// AppendToCSV appends records to an existing CSV file
func (w *CSVWriter) AppendToCSV(ctx context.Context, filePath string, records [][]string) error {
	return w.WriteCSV(ctx, filePath, WriteOptions{
		Records: records,
		Append:  true,
	})
}

// WriteFrame streams a frame to filePath, header first. Null cells are
// written empty.
func (w *CSVWriter) WriteFrame(ctx context.Context, filePath string, frame *dataset.Frame) error {
	stream, err := w.CreateStreamWriter(ctx, filePath, frame.Header())
	if err != nil {
		return err
	}

	for i := 0; i < frame.Len(); i++ {
		if err := ctx.Err(); err != nil {
			stream.Close()
			return err
		}
		if err := stream.WriteRecord(frame.Row(i)); err != nil {
			stream.Close()
			return apperrors.NewExportError(fmt.Sprintf("failed to write row %d", i), err).WithContext("path", filePath)
		}
	}

	if err := stream.Close(); err != nil {
		return apperrors.NewExportError("failed to close CSV", err).WithContext("path", filePath)
	}
	w.logger.InfoContext(ctx, "Frame written",
		slog.String("file_path", filePath),
		slog.Int("rows", frame.Len()),
		slog.Int("columns", len(frame.Columns())))
	return nil
}

// WriteTable writes an aggregated table, one row per bucket.
func (w *CSVWriter) WriteTable(ctx context.Context, filePath string, table *aggregate.Table) error {
	return w.WriteCSV(ctx, filePath, WriteOptions{
		Headers: table.Header(),
		Records: table.Records(),
	})
}

// StreamWriter provides streaming CSV writing for large datasets
type StreamWriter struct {
	file   *os.File
	writer *csv.Writer
}

// CreateStreamWriter creates a new streaming CSV writer
func (w *CSVWriter) CreateStreamWriter(ctx context.Context, filePath string, headers []string) (*StreamWriter, error) {
	w.logger.DebugContext(ctx, "Creating CSV stream writer",
		slog.String("file_path", filePath),
		slog.Int("header_count", len(headers)))

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, apperrors.NewExportError("failed to create directory", err).WithContext("path", filePath)
	}

	file, err := os.Create(filePath)
	if err != nil {
		return nil, apperrors.NewExportError("failed to create file", err).WithContext("path", filePath)
	}

	writer := csv.NewWriter(file)

	if len(headers) > 0 {
		if err := writer.Write(headers); err != nil {
			file.Close()
			return nil, apperrors.NewExportError("failed to write headers", err).WithContext("path", filePath)
		}
	}

	return &StreamWriter{
		file:   file,
		writer: writer,
	}, nil
}

// WriteRecord writes a single record to the stream
func (s *StreamWriter) WriteRecord(record []string) error {
	return s.writer.Write(record)
}

// Close flushes and closes the stream writer
func (s *StreamWriter) Close() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}
