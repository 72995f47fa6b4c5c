package schema

import "testing"

func TestRenameColumn(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{"date", "datetime"},
		{"time", "timestamp_desc"},
		{"desc", "message"},
		{"extra", "extra"},
		{"short", "short"},
		{"Date", "Date"},
		{"description", "description"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := RenameColumn(tt.name); got != tt.expected {
			t.Errorf("RenameColumn(%q) = %q, want %q", tt.name, got, tt.expected)
		}
	}
}
