package event

import "testing"

func TestResolveEventID(t *testing.T) {
	withID := "<Event xmlns='ns'><System><EventID>4688</EventID></System></Event>"
	withEmptyID := "<Event xmlns='ns'><System><EventID></EventID></System></Event>"
	withBlankID := "<Event xmlns='ns'><System><EventID>   </EventID></System></Event>"
	withoutID := "<Event xmlns='ns'><System><Channel>Security</Channel></System></Event>"
	malformed := "<Event xmlns='ns'><System><EventID>4688</System></Event>"

	tests := []struct {
		name     string
		fragment string
		short    string
		blob     string
		want     string
		wantOK   bool
	}{
		{
			name:     "xml wins over short and blob",
			fragment: withID,
			short:    "[4104 / 0x1008]",
			blob:     "message_identifier: 9999",
			want:     "4688",
			wantOK:   true,
		},
		{
			name:     "empty element falls through to short",
			fragment: withEmptyID,
			short:    "[4104 / 0x1008]",
			want:     "4104",
			wantOK:   true,
		},
		{
			name:     "whitespace element falls through to short",
			fragment: withBlankID,
			short:    "[4104 / 0x1008]",
			want:     "4104",
			wantOK:   true,
		},
		{
			name:     "missing element falls through to short",
			fragment: withoutID,
			short:    "[4688 / 0x1250]",
			want:     "4688",
			wantOK:   true,
		},
		{
			name:     "malformed fragment falls through to short",
			fragment: malformed,
			short:    "[4688 / 0x1250]",
			want:     "4688",
			wantOK:   true,
		},
		{
			name:   "short without fragment",
			short:  "[4688 / 0x1250] A new process has been created.",
			want:   "4688",
			wantOK: true,
		},
		{
			name:   "short pattern must anchor at start",
			short:  "prefix [4688 / 0x1250]",
			blob:   "message_identifier: 4104",
			want:   "4104",
			wantOK: true,
		},
		{
			name:   "short without hex part rejected",
			short:  "[4688] A new process",
			wantOK: false,
		},
		{
			name:   "uppercase hex accepted",
			short:  "[20 / 0xAB14]",
			want:   "20",
			wantOK: true,
		},
		{
			name:   "spacing inside brackets tolerated",
			short:  "[4688/0x1250]",
			want:   "4688",
			wantOK: true,
		},
		{
			name:   "blob fallback",
			blob:   "source_name: Microsoft-Windows-PowerShell; message_identifier: 4104; recovered: True",
			want:   "4104",
			wantOK: true,
		},
		{
			name:   "nothing resolvable",
			short:  "A new process has been created.",
			blob:   "recovered: True",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveEventID(tt.fragment, tt.short, tt.blob)
			if ok != tt.wantOK {
				t.Fatalf("ResolveEventID() ok = %v, want %v", ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("ResolveEventID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveEventID_TrimsElementText(t *testing.T) {
	fragment := "<Event xmlns='ns'><System><EventID>\n  4688\t</EventID></System></Event>"

	got, ok := ResolveEventID(fragment, "", "")
	if !ok || got != "4688" {
		t.Errorf("ResolveEventID() = %q, %v, want \"4688\", true", got, ok)
	}
}

func TestResolveEventID_QualifiedEventID(t *testing.T) {
	// The System children inherit the default namespace, so the exact
	// unnamespaced lookup alone would miss them.
	fragment := "<Event xmlns='http://schemas.microsoft.com/win/2004/08/events/event'>" +
		"<System><EventID Qualifiers='16384'>7036</EventID></System></Event>"

	got, ok := ResolveEventID(fragment, "", "")
	if !ok || got != "7036" {
		t.Errorf("ResolveEventID() = %q, %v, want \"7036\", true", got, ok)
	}
}
