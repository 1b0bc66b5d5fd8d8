package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "supplychain/internal/errors"
)

// TimeLayout formats timestamps in report headers.
const TimeLayout = "2006-01-02 15:04:05"

// printer accumulates formatted output and keeps the first write error.
type printer struct {
	w   *bufio.Writer
	err error
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: bufio.NewWriter(w)}
}

func (p *printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

// title writes a report banner underlined with '='.
func (p *printer) title(text string) {
	p.printf("%s\n%s\n\n", text, strings.Repeat("=", len(text)))
}

// section writes a heading underlined with '-'.
func (p *printer) section(text string) {
	p.printf("%s\n%s\n", text, strings.Repeat("-", len(text)))
}

func (p *printer) blank() { p.printf("\n") }

func (p *printer) flush() error {
	if p.err != nil {
		return p.err
	}
	return p.w.Flush()
}

func isUndefined(v float64) bool { return math.IsNaN(v) || math.IsInf(v, 0) }

// pct formats a percentage, or "n/a" when undefined.
func pct(v float64) string {
	if isUndefined(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", v)
}

// num formats a value with the given decimals, or "n/a" when undefined.
func num(v float64, decimals int) string {
	if isUndefined(v) {
		return "n/a"
	}
	return fmt.Sprintf("%.*f", decimals, v)
}

// signed formats a change with an explicit sign.
func signed(v float64, unit string) string {
	if isUndefined(v) {
		return "n/a"
	}
	return fmt.Sprintf("%+.2f%s", v, unit)
}

func day(t time.Time) string {
	if t.IsZero() {
		return "n/a"
	}
	return t.Format("2006-01-02")
}

// Save creates path, including missing parent directories, and fills it
// with write.
func Save(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperrors.NewExportError("create report directory", err).WithContext("path", path)
	}

	file, err := os.Create(path)
	if err != nil {
		return apperrors.NewExportError("create report file", err).WithContext("path", path)
	}

	if err := write(file); err != nil {
		file.Close()
		return apperrors.NewExportError("write report", err).WithContext("path", path)
	}
	if err := file.Close(); err != nil {
		return apperrors.NewExportError("close report file", err).WithContext("path", path)
	}
	return nil
}

// SaveJSON writes v as indented JSON. Encoding fails on NaN or infinite
// floats.
func SaveJSON(path string, v any) error {
	return Save(path, func(w io.Writer) error {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(v); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	})
}
