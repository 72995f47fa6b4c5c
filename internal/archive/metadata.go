package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sketchmill/sketchmill/internal/bloom"
)

// Sidecar is the .meta.json companion of an archive database. It carries
// enough to answer "does this archive hold event X" and "what time range
// does it cover" without opening SQLite.
type Sidecar struct {
	ArchiveID        string         `json:"archive_id"`
	RunID            string         `json:"run_id"`
	RowCount         int64          `json:"row_count"`
	SizeBytes        int64          `json:"size_bytes"`
	MinDatetime      string         `json:"min_datetime,omitempty"`
	MaxDatetime      string         `json:"max_datetime,omitempty"`
	DistinctEventIDs int            `json:"distinct_event_ids"`
	EventIDFilter    *bloom.Encoded `json:"event_id_filter,omitempty"`
	CreatedAt        int64          `json:"created_at"`
}

// MetadataPath returns the sidecar path for an archive database path.
func MetadataPath(dbPath string) string {
	dir := filepath.Dir(dbPath)
	base := filepath.Base(dbPath)
	ext := filepath.Ext(base)
	name := base[:len(base)-len(ext)]
	return filepath.Join(dir, name+".meta.json")
}

// WriteToFile writes the sidecar as indented JSON.
func (s *Sidecar) WriteToFile(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("archive: failed to marshal sidecar: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("archive: failed to write sidecar file: %w", err)
	}

	return nil
}

// ReadSidecarFromFile reads a sidecar from a JSON file.
func ReadSidecarFromFile(path string) (*Sidecar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("archive: failed to read sidecar file: %w", err)
	}
	return FromJSON(data)
}

// ToJSON serializes the sidecar to compact JSON.
func (s *Sidecar) ToJSON() ([]byte, error) {
	return json.Marshal(s)
}

// FromJSON deserializes a sidecar from JSON bytes.
func FromJSON(data []byte) (*Sidecar, error) {
	var sidecar Sidecar
	if err := json.Unmarshal(data, &sidecar); err != nil {
		return nil, fmt.Errorf("archive: failed to unmarshal sidecar: %w", err)
	}
	return &sidecar, nil
}

// CreatedAtTime returns the creation time as time.Time.
func (s *Sidecar) CreatedAtTime() time.Time {
	return time.Unix(s.CreatedAt, 0)
}

// MightContainEvent answers the event filter for one identifier. True means
// the archive may hold the event; false is definite absence. A sidecar
// without a filter cannot rule anything out and answers true.
func (s *Sidecar) MightContainEvent(eventID string) (bool, error) {
	if s.EventIDFilter == nil {
		return true, nil
	}

	filter, err := bloom.Decode(s.EventIDFilter)
	if err != nil {
		return false, fmt.Errorf("archive: failed to decode event filter: %w", err)
	}
	return filter.Contains(eventID), nil
}
