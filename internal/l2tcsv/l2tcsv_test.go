package l2tcsv

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sketchErrors "github.com/sketchmill/sketchmill/internal/errors"
	"github.com/sketchmill/sketchmill/pkg/types"
)

const sampleInput = "date,time,timezone,MACB,source,sourcetype,type,user,host,short,desc,version,filename,inode,notes,format,extra\n" +
	"01/02/2024,03:04:05,UTC,M...,EVT,WinEVTX,Creation Time,-,HOST,\"[4688 / 0x1250]\",\"A new process\",2,file.evtx,-,-,winevtx,\"xml_string: <Event xmlns='ns'/>\"\n"

func TestNewReader_Header(t *testing.T) {
	r, err := NewReader(strings.NewReader(sampleInput))
	require.NoError(t, err)

	header := r.Header()
	assert.Equal(t, 17, len(header))
	assert.Equal(t, "date", header[0])
	assert.Equal(t, "extra", header[16])
	assert.True(t, header.Contains(ColumnShort))
}

func TestNewReader_StripsBOM(t *testing.T) {
	input := "\xef\xbb\xbf" + sampleInput

	r, err := NewReader(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, "date", r.Header()[0], "BOM must not stick to the first column name")
}

func TestNewReader_MissingExtraColumn(t *testing.T) {
	input := "datetime,timestamp_desc,message\n2024,Creation Time,hello\n"

	_, err := NewReader(strings.NewReader(input))
	require.Error(t, err)
	assert.Equal(t, sketchErrors.CodeMissingColumn, sketchErrors.GetCode(err))

	var se *sketchErrors.SketchmillError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "datetime, timestamp_desc, message", se.Details["available_columns"])
}

func TestNewReader_EmptyInput(t *testing.T) {
	_, err := NewReader(strings.NewReader(""))
	require.Error(t, err)
	assert.Equal(t, sketchErrors.CodeEmptyInput, sketchErrors.GetCode(err))
}

func TestReader_Read(t *testing.T) {
	r, err := NewReader(strings.NewReader(sampleInput))
	require.NoError(t, err)

	record, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, "01/02/2024", record["date"])
	assert.Equal(t, "[4688 / 0x1250]", record["short"])
	assert.Equal(t, "xml_string: <Event xmlns='ns'/>", record["extra"])

	_, err = r.Read()
	assert.Equal(t, io.EOF, err)
}

func TestReader_RaggedRows(t *testing.T) {
	input := "date,short,extra\n" +
		"01/02/2024\n" +
		"01/03/2024,s,e,overflow,cells\n"

	r, err := NewReader(strings.NewReader(input))
	require.NoError(t, err)

	first, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, "01/02/2024", first["date"])
	assert.Equal(t, "", first["short"], "short rows are padded")
	assert.Equal(t, "", first["extra"])

	second, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, "e", second["extra"], "cells beyond the header are dropped")
	assert.Equal(t, 3, len(second))
}

func TestReader_QuotedNewlines(t *testing.T) {
	input := "date,extra\n" +
		"01/02/2024,\"first line\nsecond line\"\n"

	r, err := NewReader(strings.NewReader(input))
	require.NoError(t, err)

	record, err := r.Read()
	require.NoError(t, err)
	assert.Equal(t, "first line\nsecond line", record["extra"])
}

func TestReader_ReadAllPreservesOrder(t *testing.T) {
	input := "date,extra\nr1,e1\nr2,e2\nr3,e3\n"

	r, err := NewReader(strings.NewReader(input))
	require.NoError(t, err)

	records, err := r.ReadAll()
	require.NoError(t, err)
	require.Equal(t, 3, len(records))
	assert.Equal(t, "r1", records[0]["date"])
	assert.Equal(t, "r3", records[2]["date"])
}

func TestWriter_RectangularOutput(t *testing.T) {
	var buf bytes.Buffer
	columns := types.Header{"datetime", "message", "4688_NewProcessName", "event_id"}

	w, err := NewWriter(&buf, columns)
	require.NoError(t, err)

	require.NoError(t, w.WriteRecord(types.Record{
		"datetime": "01/02/2024 03:04:05",
		"message":  "A new process",
		"event_id": "4688",
		"stray":    "dropped",
	}))
	require.NoError(t, w.WriteRecord(types.Record{
		"datetime": "01/03/2024 04:05:06",
	}))
	require.NoError(t, w.Flush())

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Equal(t, 3, len(rows))
	assert.Equal(t, []string{"datetime", "message", "4688_NewProcessName", "event_id"}, rows[0])
	assert.Equal(t, []string{"01/02/2024 03:04:05", "A new process", "", "4688"}, rows[1])
	assert.Equal(t, []string{"01/03/2024 04:05:06", "", "", ""}, rows[2])
}

func TestWriter_QuotesWhenNeeded(t *testing.T) {
	var buf bytes.Buffer
	columns := types.Header{"message", "xml_string"}

	w, err := NewWriter(&buf, columns)
	require.NoError(t, err)
	require.NoError(t, w.WriteRecord(types.Record{
		"message":    "comma, inside",
		"xml_string": "<Event xmlns='ns'><Data Name=\"X\">v</Data></Event>",
	}))
	require.NoError(t, w.Flush())

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "comma, inside", rows[1][0])
	assert.Equal(t, "<Event xmlns='ns'><Data Name=\"X\">v</Data></Event>", rows[1][1])
}
