package schema

import (
	"testing"

	"github.com/sketchmill/sketchmill/pkg/types"
)

var l2tHeader = types.Header{"date", "time", "timezone", "MACB", "source", "short", "desc", "extra"}

func sampleRecord() types.Record {
	return types.Record{
		"date":     "01/02/2024",
		"time":     "03:04:05",
		"timezone": "UTC",
		"MACB":     "M...",
		"source":   "EVT",
		"short":    "[4688 / 0x1250]",
		"desc":     "A new process has been created.",
		"extra":    "xml_string: <Event xmlns='ns'/>",
	}
}

func TestMergeRow_RenamesAndJoins(t *testing.T) {
	out := MergeRow(l2tHeader, sampleRecord(), nil)

	if out["datetime"] != "01/02/2024 03:04:05" {
		t.Errorf("datetime = %q, want joined value", out["datetime"])
	}
	if out["timestamp_desc"] != "03:04:05" {
		t.Errorf("timestamp_desc = %q, want original time kept", out["timestamp_desc"])
	}
	if out["message"] != "A new process has been created." {
		t.Errorf("message = %q", out["message"])
	}
	if _, ok := out["date"]; ok {
		t.Error("renamed source column date must not survive")
	}
	if _, ok := out["desc"]; ok {
		t.Error("renamed source column desc must not survive")
	}
	if out["timezone"] != "UTC" {
		t.Errorf("timezone = %q, want carried through", out["timezone"])
	}
}

func TestMergeRow_JoinSkippedWhenEmbedded(t *testing.T) {
	record := sampleRecord()
	record["date"] = "01/02/2024 03:04:05"
	record["time"] = "03:04:05"

	out := MergeRow(l2tHeader, record, nil)

	if out["datetime"] != "01/02/2024 03:04:05" {
		t.Errorf("datetime = %q, join must not duplicate the time", out["datetime"])
	}
}

func TestMergeRow_JoinSkippedWhenEitherEmpty(t *testing.T) {
	record := sampleRecord()
	record["time"] = ""
	out := MergeRow(l2tHeader, record, nil)
	if out["datetime"] != "01/02/2024" {
		t.Errorf("datetime = %q, want unjoined date", out["datetime"])
	}

	record = sampleRecord()
	record["date"] = ""
	out = MergeRow(l2tHeader, record, nil)
	if out["datetime"] != "" {
		t.Errorf("datetime = %q, want empty", out["datetime"])
	}
	if out["timestamp_desc"] != "03:04:05" {
		t.Errorf("timestamp_desc = %q, want kept", out["timestamp_desc"])
	}
}

func TestMergeRow_FieldsOverlayLast(t *testing.T) {
	fields := types.FieldSet{
		"4688_NewProcessName": "cmd.exe",
		"xml_string":          "<Event xmlns='ns'/>",
		"event_id":            "4688",
	}

	out := MergeRow(l2tHeader, sampleRecord(), fields)

	if out["4688_NewProcessName"] != "cmd.exe" {
		t.Errorf("derived field missing: %q", out["4688_NewProcessName"])
	}
	if out["event_id"] != "4688" {
		t.Errorf("event_id = %q", out["event_id"])
	}
	if _, ok := out["extra"]; ok {
		t.Error("consumed extra column must not survive")
	}
}

func TestMergeRow_SourceRecordUntouched(t *testing.T) {
	record := sampleRecord()
	_ = MergeRow(l2tHeader, record, types.FieldSet{"1_X": "v"})

	if record["date"] != "01/02/2024" {
		t.Errorf("source record mutated: date = %q", record["date"])
	}
	if _, ok := record["1_X"]; ok {
		t.Error("source record gained a derived field")
	}
}

func TestMergeRow_MissingCellsBecomeEmpty(t *testing.T) {
	record := types.Record{"date": "01/02/2024"}

	out := MergeRow(l2tHeader, record, nil)

	if out["source"] != "" {
		t.Errorf("source = %q, want empty for missing cell", out["source"])
	}
	if out["timestamp_desc"] != "" {
		t.Errorf("timestamp_desc = %q, want empty", out["timestamp_desc"])
	}
}

func TestOutputColumns_Order(t *testing.T) {
	derived := []string{"4104_Path", "4688_NewProcessName", "event_id", "xml_string"}

	columns := OutputColumns(l2tHeader, derived)

	want := types.Header{
		"datetime", "timestamp_desc", "timezone", "MACB", "source", "short", "message",
		"4104_Path", "4688_NewProcessName", "event_id", "xml_string",
	}
	if len(columns) != len(want) {
		t.Fatalf("len = %d, want %d", len(columns), len(want))
	}
	for i := range want {
		if columns[i] != want[i] {
			t.Errorf("columns[%d] = %q, want %q", i, columns[i], want[i])
		}
	}
}

func TestProjectRow(t *testing.T) {
	columns := types.Header{"datetime", "message", "event_id"}
	record := types.Record{
		"datetime": "01/02/2024 03:04:05",
		"message":  "hello",
		"event_id": "4688",
		"stray":    "dropped",
	}

	cells := ProjectRow(record, columns)

	want := []string{"01/02/2024 03:04:05", "hello", "4688"}
	for i := range want {
		if cells[i] != want[i] {
			t.Errorf("cells[%d] = %q, want %q", i, cells[i], want[i])
		}
	}

	// Missing columns become empty cells.
	cells = ProjectRow(types.Record{}, columns)
	for i, c := range cells {
		if c != "" {
			t.Errorf("cells[%d] = %q, want empty", i, c)
		}
	}
}
