package l2tcsv

import (
	"encoding/csv"
	"io"

	"github.com/sketchmill/sketchmill/internal/errors"
	"github.com/sketchmill/sketchmill/internal/schema"
	"github.com/sketchmill/sketchmill/pkg/types"
)

// Writer emits enriched records as rectangular CSV.
type Writer struct {
	csv     *csv.Writer
	columns types.Header
}

// NewWriter writes the header row and prepares to project records onto the
// given output columns.
func NewWriter(w io.Writer, columns types.Header) (*Writer, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return nil, errors.NewStorageError(errors.CodeWriteFailed, "write header row", err)
	}
	return &Writer{csv: cw, columns: columns}, nil
}

// Columns returns the output column order.
func (w *Writer) Columns() types.Header {
	return w.columns
}

// WriteRecord writes one enriched record. Absent columns become empty cells,
// keys outside the output columns are dropped.
func (w *Writer) WriteRecord(record types.Record) error {
	if err := w.csv.Write(schema.ProjectRow(record, w.columns)); err != nil {
		return errors.NewStorageError(errors.CodeWriteFailed, "write row", err)
	}
	return nil
}

// Flush drains buffered rows to the underlying writer.
func (w *Writer) Flush() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return errors.NewStorageError(errors.CodeWriteFailed, "flush output", err)
	}
	return nil
}
