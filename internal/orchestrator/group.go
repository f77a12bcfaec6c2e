package orchestrator

import (
	"context"

	"github.com/user/mediadupe/internal/events"
	"github.com/user/mediadupe/internal/fileindex"
	"github.com/user/mediadupe/internal/group"
	"github.com/user/mediadupe/internal/model"
)

// BuildGroups runs GroupBuilder (spec.md §4.6, component C6) over every
// indexed file of class and persists the resulting groups, emitting one
// GroupFormed event per group (spec.md §4.9 "Events").
func (o *Orchestrator) BuildGroups(ctx context.Context, class model.MediaClass, criteria fileindex.CandidateCriteria, opts DetectOptions) (<-chan events.Event, error) {
	rows, errc := o.Index.FetchCandidates(ctx, class, criteria)

	var candidates []group.Candidate
	for row := range rows {
		candidates = append(candidates, group.Candidate{
			File:           row.File,
			Metadata:       row.Metadata,
			HasMetadata:    row.HasMetadata,
			ImageSignature: row.ImageSignature,
			HasImageSig:    row.HasImageSig,
			VideoSignature: row.VideoSignature,
			HasVideoSig:    row.HasVideoSig,
		})
	}
	if err := <-errc; err != nil {
		return nil, err
	}

	groups := group.Build(candidates, opts.GroupWeights, opts.GroupThresholds)

	out := make(chan events.Event, len(groups)+1)
	go func() {
		defer close(out)
		for _, g := range groups {
			if err := o.Index.SaveGroup(ctx, g); err != nil {
				o.logPerFileIssue(g.ID, "save-group", err)
				continue
			}
			select {
			case out <- events.Event{Kind: events.KindGroupFormed, GroupID: g.ID}:
			case <-ctx.Done():
				return
			}
		}
		select {
		case out <- events.Event{Kind: events.KindFinished, Metrics: &events.Metrics{GroupsFormed: len(groups)}}:
		case <-ctx.Done():
		}
	}()

	return out, nil
}
