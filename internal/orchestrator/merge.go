package orchestrator

import (
	"context"
	"fmt"

	"github.com/user/mediadupe/internal/merge"
	"github.com/user/mediadupe/internal/model"
)

// PlanGroup resolves a persisted DuplicateGroup's members into merge.Members,
// runs KeeperSelector, and builds a MergePlan (spec.md §4.7, components
// C7). Group membership and file/metadata rows are re-read from FileIndex
// rather than threaded through from BuildGroups, keeping planning
// re-runnable against the persisted state (spec.md §4.1 "single source of
// truth").
func (o *Orchestrator) PlanGroup(ctx context.Context, groupID string, members []model.GroupMember) (merge.Plan, error) {
	resolved := make([]merge.Member, 0, len(members))
	for _, gm := range members {
		f, ok, err := o.Index.GetFile(ctx, gm.FileID)
		if err != nil {
			return merge.Plan{}, err
		}
		if !ok {
			return merge.Plan{}, fmt.Errorf("orchestrator: group %s references unknown file %s", groupID, gm.FileID)
		}
		meta, _, err := o.Index.GetMetadata(ctx, gm.FileID)
		if err != nil {
			return merge.Plan{}, err
		}
		resolved = append(resolved, merge.Member{File: f, Metadata: meta})
	}
	if len(resolved) == 0 {
		return merge.Plan{}, fmt.Errorf("orchestrator: group %s has no resolvable members", groupID)
	}

	keeper := merge.SelectKeeper(resolved)
	return merge.BuildPlan(groupID, keeper, resolved), nil
}

// ExecuteMerge runs MergeExecutor against plan, marking the source group
// Merged on success (spec.md §4.6 state machine, §4.8).
func (o *Orchestrator) ExecuteMerge(ctx context.Context, plan merge.Plan, dryRun bool) (merge.Result, error) {
	result, err := o.Executor.Execute(ctx, plan, o.resolvePath(ctx), dryRun)
	if err != nil {
		return merge.Result{}, err
	}
	if !dryRun && !result.Failed {
		if err := o.Index.SetGroupState(ctx, plan.GroupID, model.GroupMerged); err != nil {
			o.logPerFileIssue(plan.GroupID, "set-group-state", err)
		}
	}
	return result, nil
}

// Undo reverses the most recent eligible merge transaction (spec.md §4.8
// undo, §9 open-question resolution on undo depth/deadline).
func (o *Orchestrator) Undo(ctx context.Context) (merge.Result, error) {
	return o.Executor.Undo(ctx, o.resolvePath(ctx))
}
