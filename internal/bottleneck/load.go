package bottleneck

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"

	"supplychain/internal/cleaning"
	"supplychain/internal/dataset"
	apperrors "supplychain/internal/errors"
)

// nullTokens are read as missing cells.
var nullTokens = []string{"", "NA", "NaN", "nan", "null", "<nil>"}

// LoadFrame reads an already cleaned CSV into a typed frame. Columns are
// typed by schema; unknown columns are kept as text.
func LoadFrame(r io.Reader, source string, schema *dataset.Schema) (*dataset.Frame, error) {
	df := dataframe.ReadCSV(r,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(nullTokens),
	)
	if df.Err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to read %s", source), df.Err)
	}

	cols := make([]*dataset.Column, 0, df.Ncol())
	for _, name := range df.Names() {
		s := df.Col(name)
		kind := schema.KindOf(name)
		switch {
		case kind == dataset.Timestamp:
			raw := s.Records()
			values := make([]time.Time, len(raw))
			for i, v := range raw {
				values[i], _ = cleaning.ParseTimestamp(v)
			}
			cols = append(cols, dataset.NewTimeColumn(name, values))
		case kind.IsNumeric():
			cols = append(cols, dataset.NewNumericColumn(name, kind, s.Float()))
		default:
			raw := s.Records()
			for i := range raw {
				if s.Elem(i).IsNA() {
					raw[i] = ""
				}
			}
			cols = append(cols, dataset.NewStringColumn(name, kind, raw))
		}
	}

	frame, err := dataset.NewFrame(cols...)
	if err != nil {
		return nil, apperrors.NewParsingError(fmt.Sprintf("failed to build frame from %s", source), err)
	}
	return frame, nil
}

// LoadFile opens path and reads it with LoadFrame.
func LoadFile(path string, schema *dataset.Schema) (*dataset.Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperrors.NewNotFoundError(path)
		}
		return nil, apperrors.NewStorageError(fmt.Sprintf("failed to open %s", path), err)
	}
	defer file.Close()
	return LoadFrame(file, path, schema)
}
