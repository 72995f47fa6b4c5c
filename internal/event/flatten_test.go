package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sketchmill/sketchmill/pkg/types"
)

func TestParseEventData_Basic(t *testing.T) {
	fields := ParseEventData(sampleEventXML, "4688")

	want := types.FieldSet{
		"4688_SubjectUserSid": "S-1-5-18",
		"4688_NewProcessName": "C:\\Windows\\System32\\cmd.exe",
	}
	assert.Equal(t, want, fields)
}

func TestParseEventData_DataWithoutName(t *testing.T) {
	fragment := "<Event xmlns='ns'><EventData>" +
		"<Data>anonymous</Data>" +
		"<Data Name=''>unnamed</Data>" +
		"<Data Name='Kept'>yes</Data>" +
		"</EventData></Event>"

	fields := ParseEventData(fragment, "1")

	assert.Equal(t, types.FieldSet{"1_Kept": "yes"}, fields)
}

func TestParseEventData_DuplicateNameLastWins(t *testing.T) {
	fragment := "<Event xmlns='ns'><EventData>" +
		"<Data Name='Path'>first</Data>" +
		"<Data Name='Path'>second</Data>" +
		"</EventData></Event>"

	fields := ParseEventData(fragment, "7")

	assert.Equal(t, types.FieldSet{"7_Path": "second"}, fields)
}

func TestParseEventData_NestedDataCollected(t *testing.T) {
	fragment := "<Event xmlns='ns'><EventData>" +
		"<Group><Data Name='Inner'>deep</Data></Group>" +
		"<Data Name='Outer'>shallow</Data>" +
		"</EventData></Event>"

	fields := ParseEventData(fragment, "9")

	want := types.FieldSet{
		"9_Inner": "deep",
		"9_Outer": "shallow",
	}
	assert.Equal(t, want, fields)
}

func TestParseEventData_EmptyValue(t *testing.T) {
	fragment := "<Event xmlns='ns'><EventData><Data Name='Empty'></Data><Data Name='SelfClosed'/></EventData></Event>"

	fields := ParseEventData(fragment, "3")

	want := types.FieldSet{
		"3_Empty":      "",
		"3_SelfClosed": "",
	}
	assert.Equal(t, want, fields)
}

func TestParseEventData_ValueKeepsWhitespace(t *testing.T) {
	fragment := "<Event xmlns='ns'><EventData><Data Name='Cmd'>  cmd.exe /c  </Data></EventData></Event>"

	fields := ParseEventData(fragment, "4688")

	assert.Equal(t, types.FieldSet{"4688_Cmd": "  cmd.exe /c  "}, fields)
}

func TestParseEventData_HeadTextOnly(t *testing.T) {
	fragment := "<Event xmlns='ns'><EventData>" +
		"<Data Name='Mixed'>head<Sub>nested</Sub>tail</Data>" +
		"</EventData></Event>"

	fields := ParseEventData(fragment, "2")

	assert.Equal(t, "head", fields["2_Mixed"], "only text before the first child counts")
}

func TestParseEventData_MalformedXML(t *testing.T) {
	fields := ParseEventData("<Event xmlns='ns'><EventData><Data Name='X'>v</Event>", "1")
	assert.Empty(t, fields)
}

func TestParseEventData_NoEventData(t *testing.T) {
	fields := ParseEventData("<Event xmlns='ns'><System><EventID>1</EventID></System></Event>", "1")
	assert.Empty(t, fields)
}

func TestParseEventData_BlankInputs(t *testing.T) {
	assert.Empty(t, ParseEventData("", "4688"))
	assert.Empty(t, ParseEventData("   ", "4688"))
	assert.Empty(t, ParseEventData(sampleEventXML, ""))
}

func TestBuildFieldSet_FourKeyShape(t *testing.T) {
	fragment := "<Event xmlns='ns'><System><EventID>4104</EventID></System>" +
		"<EventData><Data Name='ScriptBlockText'>Get-Process</Data><Data Name='Path'>script.ps1</Data></EventData></Event>"

	fields, hadData := BuildFieldSet(fragment, "4104")

	require.True(t, hadData)
	want := types.FieldSet{
		"4104_ScriptBlockText": "Get-Process",
		"4104_Path":            "script.ps1",
		"xml_string":           fragment,
		"event_id":             "4104",
	}
	assert.Equal(t, want, fields)
}

func TestBuildFieldSet_FixedEntriesWithoutData(t *testing.T) {
	// Identifier resolved elsewhere, fragment carries no readable EventData.
	fragment := "<Event xmlns='ns'><System><Channel>Security</Channel></System></Event>"

	fields, hadData := BuildFieldSet(fragment, "4688")

	assert.False(t, hadData)
	want := types.FieldSet{
		"xml_string": fragment,
		"event_id":   "4688",
	}
	assert.Equal(t, want, fields)
}

func TestBuildFieldSet_MalformedFragmentKeepsFixedEntries(t *testing.T) {
	fragment := "<Event xmlns='ns'><EventData><Data Name='X'>v</Event>"

	fields, hadData := BuildFieldSet(fragment, "1")

	assert.False(t, hadData)
	assert.Equal(t, types.FieldSet{"xml_string": fragment, "event_id": "1"}, fields)
}

func TestBuildFieldSet_AbsentInputs(t *testing.T) {
	fields, hadData := BuildFieldSet("", "4688")
	assert.False(t, hadData)
	assert.Nil(t, fields)

	fields, hadData = BuildFieldSet("  \n ", "4688")
	assert.False(t, hadData)
	assert.Nil(t, fields)

	fields, hadData = BuildFieldSet(sampleEventXML, "")
	assert.False(t, hadData)
	assert.Nil(t, fields)
}
