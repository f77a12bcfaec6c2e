package orchestrator

import (
	"fmt"

	"github.com/user/mediadupe/internal/events"
)

// RunSummary accumulates a Scan run's Metrics stream into final counters
// (SPEC_FULL.md "Accounting/invariant validation"), grounded on the
// teacher's AccountingSummary (pipeline.go): every enumerated file must
// land in exactly one terminal bucket.
type RunSummary struct {
	Enumerated int
	Indexed    int
	Skipped    int
	Errored    int
	Groups     int
}

// Observe folds one event into the running summary.
func (rs *RunSummary) Observe(e events.Event) {
	switch e.Kind {
	case events.KindItem:
		rs.Indexed++
	case events.KindSkipped:
		rs.Skipped++
	case events.KindError:
		rs.Errored++
	case events.KindGroupFormed:
		rs.Groups++
	case events.KindFinished:
		if e.Metrics != nil {
			if e.Metrics.FilesEnumerated > 0 {
				rs.Enumerated += e.Metrics.FilesEnumerated
			}
			if e.Metrics.GroupsFormed > 0 {
				rs.Groups += e.Metrics.GroupsFormed
			}
		}
	}
}

// Validate reports a programming-error mismatch: every enumerated file must
// resolve to exactly one of indexed/skipped/errored (teacher's
// AccountingSummary.Validate).
func (rs *RunSummary) Validate() error {
	if rs.Enumerated == 0 {
		return nil
	}
	accounted := rs.Indexed + rs.Skipped + rs.Errored
	if accounted != rs.Enumerated {
		return fmt.Errorf("orchestrator: accounting mismatch: enumerated %d files but accounted for %d", rs.Enumerated, accounted)
	}
	return nil
}
