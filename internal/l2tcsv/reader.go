// Package l2tcsv reads the l2tcsv timeline format produced by plaso and
// writes the enriched rectangular output.
package l2tcsv

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"io"
	"strings"

	"github.com/sketchmill/sketchmill/internal/errors"
	"github.com/sketchmill/sketchmill/internal/schema"
	"github.com/sketchmill/sketchmill/pkg/types"
)

// Columns the pipeline cares about. extra is required, short is optional.
const (
	ColumnExtra = schema.ColumnExtra
	ColumnShort = "short"
)

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

// Reader streams records from an l2tcsv input.
type Reader struct {
	csv    *csv.Reader
	header types.Header
}

// NewReader wraps r as an l2tcsv stream and consumes the header row. A UTF-8
// byte order mark before the header is tolerated. Quoting is lenient and row
// widths are not enforced, matching the tools that produce the format. The
// extra column must be present; the returned error carries the available
// columns so the caller can report them.
func NewReader(r io.Reader) (*Reader, error) {
	br := bufio.NewReader(r)
	if lead, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(lead, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, errors.NewInputError(errors.CodeEmptyInput, "input has no header row")
	}
	if err != nil {
		return nil, errors.NewParseError("malformed header row", err)
	}

	h := types.Header(header)
	if !h.Contains(ColumnExtra) {
		return nil, errors.NewInputError(errors.CodeMissingColumn, "column \"extra\" not found in input").
			WithDetails(map[string]interface{}{
				"available_columns": strings.Join(header, ", "),
			})
	}

	return &Reader{csv: cr, header: h}, nil
}

// Header returns the input column names in source order.
func (r *Reader) Header() types.Header {
	return r.header
}

// Read returns the next record. Rows shorter than the header are padded with
// empty cells, cells beyond the header are dropped. Returns io.EOF after the
// last row.
func (r *Reader) Read() (types.Record, error) {
	row, err := r.csv.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, errors.NewParseError("malformed csv row", err)
	}

	record := make(types.Record, len(r.header))
	for i, name := range r.header {
		if i < len(row) {
			record[name] = row[i]
		} else {
			record[name] = ""
		}
	}
	return record, nil
}

// ReadAll reads every remaining record in order.
func (r *Reader) ReadAll() ([]types.Record, error) {
	var records []types.Record
	for {
		record, err := r.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
}
