package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/user/mediadupe/internal/events"
)

// NewProgressBar renders a progress bar in the teacher's style (backup.go's
// planningBar/execBar) for a known total. No mediadupe command calls it;
// the CLI reports progress through RenderEvent's status lines.
func NewProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetWidth(50),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[blue]=[reset]",
			SaucerHead:    "[blue]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
	)
}

// RenderEvent prints one status line for e, colored by severity. Host UIs
// consume the raw event channel directly (spec.md §9); this is only the
// CLI's own terminal rendering.
func RenderEvent(e events.Event) {
	switch e.Kind {
	case events.KindStarted:
		color.New(color.FgCyan).Printf("scanning %s\n", e.Path)
	case events.KindError:
		color.New(color.FgRed).Printf("error: %s: %s\n", e.Path, e.Reason)
	case events.KindSkipped:
		color.New(color.FgYellow).Printf("skip: %s (%s)\n", e.Path, e.Reason)
	case events.KindGroupFormed:
		color.New(color.FgGreen).Printf("group formed: %s\n", e.GroupID)
	case events.KindMergeCommitted:
		color.New(color.FgGreen, color.Bold).Printf("merged group %s (tx %s)\n", e.GroupID, e.TransactionID)
	case events.KindMergeUndone:
		color.New(color.FgMagenta).Printf("undone transaction %s\n", e.TransactionID)
	case events.KindFinished:
		if e.Metrics != nil {
			color.New(color.FgCyan, color.Bold).Println(summarizeMetrics(*e.Metrics))
		}
	}
}

func summarizeMetrics(m events.Metrics) string {
	return fmt.Sprintf("done: %d enumerated, %d indexed, %d skipped, %d errored, %d groups",
		m.FilesEnumerated, m.FilesIndexed, m.FilesSkipped, m.FilesErrored, m.GroupsFormed)
}
