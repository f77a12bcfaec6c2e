// Package report renders a plain-text/JSON run summary at the end of scan
// or merge (SPEC_FULL.md "HTML/terminal session report"). The teacher's
// reporting.go builds a full HTML report with personalized quotes and
// badges; the host UI this module hands events to can re-derive anything
// richer from the event stream, so this package keeps only the numbers a
// standalone CLI run needs to show.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// RunSummary is the plain-data shape rendered by Write, mirroring
// orchestrator.RunSummary plus run-level framing the CLI cares about.
type RunSummary struct {
	Roots         []string      `json:"roots"`
	StartedAt     time.Time     `json:"startedAt"`
	Duration      time.Duration `json:"durationNanos"`
	Enumerated    int           `json:"enumerated"`
	Indexed       int           `json:"indexed"`
	Skipped       int           `json:"skipped"`
	Errored       int           `json:"errored"`
	GroupsFormed  int           `json:"groupsFormed"`
	BytesReclaim  int64         `json:"bytesReclaimable"`
	TransactionID int64         `json:"transactionId,omitempty"`
}

// WriteText renders a human-readable summary, grounded on the teacher's
// writeSummaryBadges (reporting.go) but without the colored terminal
// badges — internal/cli owns terminal color, this package stays
// presentation-agnostic so WriteJSON can serve the --json flag alongside it.
func WriteText(w io.Writer, s RunSummary) error {
	_, err := fmt.Fprintf(w, `mediadupe run summary
  roots:          %v
  started:        %s
  duration:       %s
  enumerated:     %d
  indexed:        %d
  skipped:        %d
  errored:        %d
  groups formed:  %d
  bytes reclaimable: %d
`, s.Roots, s.StartedAt.Format(time.RFC3339), s.Duration, s.Enumerated, s.Indexed, s.Skipped, s.Errored, s.GroupsFormed, s.BytesReclaim)
	return err
}

// WriteJSON renders s as indented JSON, for host applications that want to
// parse the run summary rather than scrape terminal output.
func WriteJSON(w io.Writer, s RunSummary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
