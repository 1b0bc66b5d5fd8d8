package dataset

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	apperrors "supplychain/internal/errors"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// RawTable is an untyped CSV table. Every row has exactly len(Header) cells.
type RawTable struct {
	Header []string
	Rows   [][]string
	Source string
}

// ReadCSV reads a header row followed by data rows. Short rows are padded
// with empty cells and long rows truncated, so a ragged line degrades to
// missing values instead of failing the read. A line of delimiters only is
// kept as an all-missing row; whitespace-only lines are skipped.
func ReadCSV(r io.Reader, source string) (*RawTable, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to read %s", source), err)
	}
	data = bytes.TrimPrefix(data, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, apperrors.NewParsingError(fmt.Sprintf("%s has no header row", source), err)
	}
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to parse header of %s", source), err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	table := &RawTable{Header: header, Source: source}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.NewParsingError(fmt.Sprintf("failed to parse %s", source), err).
				WithContext("row", len(table.Rows)+1)
		}
		if isBlankLine(record) {
			continue
		}
		table.Rows = append(table.Rows, normalizeRow(record, len(header)))
	}
	return table, nil
}

// LoadCSV opens and reads a CSV file.
func LoadCSV(path string) (*RawTable, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFoundError(path)
		}
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to open %s", path), err)
	}
	defer file.Close()
	return ReadCSV(file, path)
}

// ColumnIndex returns the position of a header, or -1.
func (t *RawTable) ColumnIndex(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Len returns the number of data rows.
func (t *RawTable) Len() int { return len(t.Rows) }

func normalizeRow(record []string, width int) []string {
	row := make([]string, width)
	copy(row, record)
	return row
}

func isBlankLine(record []string) bool {
	return len(record) == 1 && strings.TrimSpace(record[0]) == ""
}
