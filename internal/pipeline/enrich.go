package pipeline

import (
	"context"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/sketchmill/sketchmill/internal/event"
	"github.com/sketchmill/sketchmill/internal/l2tcsv"
	"github.com/sketchmill/sketchmill/internal/observability"
	"github.com/sketchmill/sketchmill/internal/schema"
	"github.com/sketchmill/sketchmill/pkg/types"
)

// rowOutcome is the per-row derivation, computed independently of every
// other row so the stage can fan out.
type rowOutcome struct {
	fragment string
	eventID  string
	resolved bool
	fields   types.FieldSet
	hadData  bool
}

// enrichRecord derives one row's outcome: extract the fragment, resolve the
// identifier, flatten the event data. Per-row failures degrade to absence,
// never to errors.
func (p *Pipeline) enrichRecord(record types.Record) rowOutcome {
	var out rowOutcome
	blob := record[l2tcsv.ColumnExtra]

	var digest event.Digest
	if fragment, ok := event.ExtractFragment(blob); ok {
		out.fragment = fragment
		digest = p.cache.Digest(fragment)
	}

	if eventID, ok := digest.ResolveEventID(record[l2tcsv.ColumnShort], blob); ok {
		out.eventID = eventID
		out.resolved = true
	}

	out.fields, out.hadData = digest.FieldSet(out.fragment, out.eventID)
	return out
}

// enrichAll computes every row's outcome, fanning out to a worker pool when
// more than one worker is configured. Outcomes land at their row's index, so
// downstream stages observe the same values in the same order for any worker
// count.
func (p *Pipeline) enrichAll(ctx context.Context, records []types.Record) ([]rowOutcome, error) {
	outcomes := make([]rowOutcome, len(records))

	workers := p.cfg.Workers
	if workers > len(records) {
		workers = len(records)
	}
	if workers <= 1 {
		for i, record := range records {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			outcomes[i] = p.enrichRecord(record)
		}
		return outcomes, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	indexes := make(chan int)

	g.Go(func() error {
		defer close(indexes)
		for i := range records {
			select {
			case indexes <- i:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := range indexes {
				outcomes[i] = p.enrichRecord(records[i])
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outcomes, nil
}

// foldOutcomes walks the outcomes in row order, updating statistics and the
// schema accumulator and building the enriched rows. This is the serialized
// half of the read pass; it alone touches the accumulator.
func (p *Pipeline) foldOutcomes(log *logrus.Entry, header types.Header, records []types.Record, outcomes []rowOutcome, acc *schema.Accumulator, stats *observability.RunStats) ([]types.Record, error) {
	enriched := make([]types.Record, len(records))
	for i, record := range records {
		out := outcomes[i]

		stats.RecordRow()
		if out.fragment != "" {
			stats.RecordFragment()
		}
		if out.resolved {
			stats.RecordResolved(out.eventID)
		}
		if out.hadData {
			stats.RecordParsed()
		}
		stats.RecordFields(out.fields)

		if err := acc.Add(out.fields); err != nil {
			return nil, err
		}

		merged := schema.MergeRow(header, record, out.fields)
		stats.RecordDatetime(merged[schema.ColumnDatetime])
		enriched[i] = merged

		if n := i + 1; n%progressInterval == 0 {
			log.WithField("rows", n).Debug("pipeline: processed rows")
		}
	}
	return enriched, nil
}
