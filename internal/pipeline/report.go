package pipeline

import (
	"time"

	"github.com/sketchmill/sketchmill/internal/observability"
)

// Report summarizes one completed run.
type Report struct {
	RunID       string
	InputPath   string
	OutputPath  string
	ArchivePath string
	PublishedTo string

	InputRows      int64
	Fragments      int64
	ResolvedIDs    int64
	ParsedEvents   int64
	DerivedColumns int
	OutputColumns  int

	// Datetime bounds as the cells appeared in the input, "" when no cell
	// parsed.
	MinDatetime string
	MaxDatetime string

	SampleFields []string
	TopEventIDs  []observability.FieldStats
	CacheHits    uint64
	CacheMisses  uint64

	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns the wall-clock length of the run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
