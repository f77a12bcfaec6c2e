// mediadupe: identifies duplicate and near-duplicate photos/videos under
// user-selected directory trees and, under explicit confirmation,
// consolidates each duplicate group into a single keeper with merged
// metadata, moving redundant copies to a reversible trash staging area.
//
// The cobra command tree mirrors the teacher's bozobackup CLI (a root
// command, colored status lines via fatih/color, and a promptui fallback
// when no roots are given),
// generalized from a single incremental-backup run into the
// scan/plan/merge/undo stages spec.md's pipeline describes.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/user/mediadupe/internal/cli"
	"github.com/user/mediadupe/internal/events"
	"github.com/user/mediadupe/internal/fileindex"
	"github.com/user/mediadupe/internal/group"
	"github.com/user/mediadupe/internal/imagehash"
	"github.com/user/mediadupe/internal/merge"
	"github.com/user/mediadupe/internal/model"
	"github.com/user/mediadupe/internal/orchestrator"
	"github.com/user/mediadupe/internal/report"
	"github.com/user/mediadupe/internal/trash"
	"github.com/user/mediadupe/internal/videofp"
)

// cliFlags binds directly to DetectOptions fields (SPEC_FULL.md "CLI
// surface"), one struct shared by scan/plan/merge so every subcommand
// assembles the same orchestrator.DetectOptions shape.
type cliFlags struct {
	dbPath              string
	imageDistance       int
	imageNearDistance   int
	videoFrameDistance  int
	confidenceDuplicate float64
	confidenceSimilar   float64
	maxGroupSize        int
	incremental         bool
	incrementalLookback int
	followSymlinks      bool
	moveToTrash         bool
	requireConfirmation bool
	interactive         bool
	dryRun              bool
	jsonOutput          bool
}

func main() {
	var flags cliFlags

	root := &cobra.Command{
		Use:   "mediadupe",
		Short: "Find and merge duplicate photos and videos",
	}
	root.PersistentFlags().StringVar(&flags.dbPath, "db", "mediadupe.db", "path to the FileIndex database")
	root.PersistentFlags().IntVar(&flags.imageDistance, "image-distance", imagehash.DefaultThresholds().Duplicate, "Hamming cutoff for image duplicate signal")
	root.PersistentFlags().IntVar(&flags.imageNearDistance, "image-near-distance", imagehash.DefaultThresholds().NearDuplicate, "Hamming cutoff for image near-duplicate signal")
	root.PersistentFlags().IntVar(&flags.videoFrameDistance, "video-frame-distance", videofp.DefaultComparisonOptions().PerFrameMatchThreshold, "per-frame Hamming cutoff for video matches")
	root.PersistentFlags().Float64Var(&flags.confidenceDuplicate, "confidence-duplicate", group.DefaultThresholds().ConfidenceDuplicate, "minimum aggregate score for a duplicate verdict")
	root.PersistentFlags().Float64Var(&flags.confidenceSimilar, "confidence-similar", group.DefaultThresholds().ConfidenceSimilar, "minimum aggregate score to union two files into a group")
	root.PersistentFlags().IntVar(&flags.maxGroupSize, "max-group-size", 0, "cap on duplicate group size; 0 = unbounded")
	root.PersistentFlags().BoolVar(&flags.incremental, "incremental", false, "skip files already indexed and unchanged since the lookback window")
	root.PersistentFlags().IntVar(&flags.incrementalLookback, "incremental-lookback", 24, "incremental skip lookback window, in hours")
	root.PersistentFlags().BoolVar(&flags.followSymlinks, "follow-symlinks", false, "follow symlinks while enumerating")
	root.PersistentFlags().BoolVar(&flags.moveToTrash, "move-to-trash", true, "move losers to the trash staging area instead of permanent delete")
	root.PersistentFlags().BoolVar(&flags.requireConfirmation, "require-confirmation", true, "block merge execution without explicit confirmation")
	root.PersistentFlags().BoolVar(&flags.interactive, "interactive", false, "prompt for roots and merge confirmation instead of reading flags/args")
	root.PersistentFlags().BoolVar(&flags.jsonOutput, "json", false, "emit the run summary as JSON instead of text")

	root.AddCommand(scanCmd(&flags))
	root.AddCommand(planCmd(&flags))
	root.AddCommand(mergeCmd(&flags))
	root.AddCommand(undoCmd(&flags))

	if err := root.Execute(); err != nil {
		color.New(color.FgRed, color.Bold).Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// cancellableContext wires SIGINT/SIGTERM into the single cancellation
// token every orchestration run honors (spec.md §5 "Cancellation"),
// generalizing the teacher's signal.Notify setup in main.go's backup().
func cancellableContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()
	return ctx, func() {
		signal.Stop(sig)
		cancel()
	}
}

func (f *cliFlags) detectOptions(roots []string) orchestrator.DetectOptions {
	opts := orchestrator.DefaultDetectOptions()
	opts.Roots = roots

	opts.Enumerator.FollowSymlinks = f.followSymlinks
	opts.Enumerator.Incremental = f.incremental
	opts.Enumerator.IncrementalLookback = time.Duration(f.incrementalLookback) * time.Hour

	opts.GroupThresholds.ImageDistance = f.imageDistance
	opts.GroupThresholds.ImageNearDistance = f.imageNearDistance
	opts.GroupThresholds.VideoComparison.PerFrameMatchThreshold = f.videoFrameDistance
	opts.GroupThresholds.ConfidenceDuplicate = f.confidenceDuplicate
	opts.GroupThresholds.ConfidenceSimilar = f.confidenceSimilar
	opts.GroupThresholds.MaxGroupSize = f.maxGroupSize

	opts.MergePolicies.MoveToTrash = f.moveToTrash
	opts.MergePolicies.RequireConfirmation = f.requireConfirmation

	return opts
}

// openServices wires the default production implementations of every stage
// (FileIndex, trash staging) behind explicit constructor calls, following
// spec.md §9's "explicitly constructed services passed into the
// orchestrator" — there is no module-level state here. The merge.Executor
// is constructed separately per-command since its Policies vary with
// --move-to-trash/--require-confirmation.
func openServices(ctx context.Context, dbPath string, roots []string, logger *slog.Logger) (*fileindex.FileIndex, *trash.Staging, func(), error) {
	idx, err := fileindex.Open(ctx, dbPath, fileindex.DefaultConfig(), logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("opening file index: %w", err)
	}

	var stageRoot string
	if len(roots) > 0 {
		stageRoot = roots[0]
	} else {
		stageRoot = filepath.Dir(dbPath)
	}
	staging, err := trash.New(stageRoot)
	if err != nil {
		idx.Close()
		return nil, nil, nil, fmt.Errorf("preparing trash staging: %w", err)
	}

	cleanup := func() { idx.Close() }
	return idx, staging, cleanup, nil
}

func resolveRoots(flags *cliFlags, args []string) ([]string, error) {
	if flags.interactive && len(args) == 0 {
		cli.PrintBanner()
		return cli.PromptRoots()
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("no roots given: pass one or more directories or use --interactive")
	}
	return args, nil
}

func newOrchestrator(idx *fileindex.FileIndex, staging *trash.Staging, executor *merge.Executor, logger *slog.Logger, opts orchestrator.DetectOptions) *orchestrator.Orchestrator {
	return orchestrator.NewWithRealServices(idx, staging, executor, logger,
		func(path string) ([]model.ImageSignature, error) { return imagehash.Compute(path, opts.ImageHash) },
		func(ctx context.Context, path string) (model.VideoSignature, error) { return videofp.Fingerprint(ctx, path, opts.Video) },
	)
}

func scanCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "scan [roots...]",
		Short: "Enumerate, extract metadata, and hash files (no grouping or mutation)",
		RunE: func(cmd *cobra.Command, args []string) error {
			started := time.Now()
			roots, err := resolveRoots(flags, args)
			if err != nil {
				return err
			}
			ctx, cancelFn := cancellableContext()
			defer cancelFn()

			logger := cli.NewLogger(os.Stderr, slog.LevelWarn)
			idx, staging, cleanup, err := openServices(ctx, flags.dbPath, roots, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			opts := flags.detectOptions(roots)
			executor := merge.NewExecutor(idx, staging, merge.Policies{MoveToTrash: flags.moveToTrash, RetentionDays: merge.DefaultPolicies().RetentionDays, RequireConfirmation: flags.requireConfirmation})
			orch := newOrchestrator(idx, staging, executor, logger, opts)

			summary := orchestrator.RunSummary{}
			for e := range orch.Scan(ctx, opts) {
				cli.RenderEvent(e)
				summary.Observe(e)
			}
			if err := summary.Validate(); err != nil {
				return err
			}

			return writeRunSummary(flags, report.RunSummary{
				Roots:      roots,
				StartedAt:  started,
				Duration:   time.Since(started),
				Enumerated: summary.Enumerated,
				Indexed:    summary.Indexed,
				Skipped:    summary.Skipped,
				Errored:    summary.Errored,
			})
		},
	}
}

func planCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "plan [roots...]",
		Short: "Group indexed files into duplicate groups and compute merge plans (dry-run)",
		RunE: func(cmd *cobra.Command, args []string) error {
			started := time.Now()
			roots, err := resolveRoots(flags, args)
			if err != nil {
				return err
			}
			ctx, cancelFn := cancellableContext()
			defer cancelFn()

			logger := cli.NewLogger(os.Stderr, slog.LevelWarn)
			idx, staging, cleanup, err := openServices(ctx, flags.dbPath, roots, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			opts := flags.detectOptions(roots)
			executor := merge.NewExecutor(idx, staging, merge.Policies{MoveToTrash: flags.moveToTrash, RetentionDays: merge.DefaultPolicies().RetentionDays, RequireConfirmation: flags.requireConfirmation})
			orch := newOrchestrator(idx, staging, executor, logger, opts)

			groupsFormed := 0
			for _, class := range []model.MediaClass{model.ClassPhoto, model.ClassVideo} {
				ev, err := orch.BuildGroups(ctx, class, fileindex.CandidateCriteria{}, opts)
				if err != nil {
					return err
				}
				for e := range ev {
					cli.RenderEvent(e)
					if e.Kind == events.KindGroupFormed {
						groupsFormed++
					}
				}
			}

			groups, err := idx.ListGroupsByState(ctx, model.GroupComplete)
			if err != nil {
				return fmt.Errorf("listing groups: %w", err)
			}

			var bytesReclaimable int64
			for _, g := range groups {
				plan, err := orch.PlanGroup(ctx, g.ID, g.Members)
				if err != nil {
					color.New(color.FgRed).Printf("group %s: %v\n", g.ID, err)
					continue
				}
				printPlan(g, plan)
				for _, loserID := range plan.TrashList {
					if f, ok, _ := idx.GetFile(ctx, loserID); ok {
						bytesReclaimable += f.Size
					}
				}
			}

			return writeRunSummary(flags, report.RunSummary{
				Roots:        roots,
				StartedAt:    started,
				Duration:     time.Since(started),
				GroupsFormed: groupsFormed,
				BytesReclaim: bytesReclaimable,
			})
		},
	}
}

func printPlan(g model.DuplicateGroup, plan merge.Plan) {
	color.New(color.FgGreen, color.Bold).Printf("\ngroup %s (confidence %.2f)\n", g.ID, g.Confidence)
	for _, line := range g.Rationale {
		fmt.Printf("  - %s\n", line)
	}
	fmt.Printf("  keeper: %s\n", plan.KeeperFileID)
	fmt.Printf("  trash:  %d file(s)\n", len(plan.TrashList))
	for _, fc := range plan.FieldChanges {
		fmt.Printf("  field %-12s %v -> %v (%s)\n", fc.Field, fc.Old, fc.New, fc.Source)
	}
}

func mergeCmd(flags *cliFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge [roots...]",
		Short: "Execute merge plans for every Complete group (moves losers to trash, writes keeper metadata)",
		RunE: func(cmd *cobra.Command, args []string) error {
			started := time.Now()
			roots, err := resolveRoots(flags, args)
			if err != nil {
				return err
			}
			ctx, cancelFn := cancellableContext()
			defer cancelFn()

			logger := cli.NewLogger(os.Stderr, slog.LevelWarn)
			idx, staging, cleanup, err := openServices(ctx, flags.dbPath, roots, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			opts := flags.detectOptions(roots)
			executor := merge.NewExecutor(idx, staging, merge.Policies{
				MoveToTrash:         flags.moveToTrash,
				RetentionDays:       merge.DefaultPolicies().RetentionDays,
				RequireConfirmation: flags.requireConfirmation,
			})
			orch := newOrchestrator(idx, staging, executor, logger, opts)

			groups, err := idx.ListGroupsByState(ctx, model.GroupComplete)
			if err != nil {
				return fmt.Errorf("listing groups: %w", err)
			}

			merged := 0
			var bytesReclaimed int64
			for _, g := range groups {
				plan, err := orch.PlanGroup(ctx, g.ID, g.Members)
				if err != nil {
					color.New(color.FgRed).Printf("group %s: %v\n", g.ID, err)
					continue
				}

				if flags.requireConfirmation && !flags.dryRun {
					printPlan(g, plan)
					ok, err := cli.ConfirmMergePlan(fmt.Sprintf("apply merge for group %s?", g.ID))
					if err != nil {
						return err
					}
					if !ok {
						continue
					}
				}

				for _, loserID := range plan.TrashList {
					if f, ok, _ := idx.GetFile(ctx, loserID); ok {
						bytesReclaimed += f.Size
					}
				}

				result, err := orch.ExecuteMerge(ctx, plan, flags.dryRun)
				if err != nil {
					color.New(color.FgRed).Printf("group %s: merge failed: %v\n", g.ID, err)
					continue
				}
				if result.Failed {
					color.New(color.FgRed).Printf("group %s: merge failed: %s\n", g.ID, result.FailureReason)
					continue
				}
				merged++
				color.New(color.FgGreen, color.Bold).Printf("merged group %s (tx %d)\n", g.ID, result.TransactionID)
			}

			return writeRunSummary(flags, report.RunSummary{
				Roots:        roots,
				StartedAt:    started,
				Duration:     time.Since(started),
				GroupsFormed: merged,
				BytesReclaim: bytesReclaimed,
			})
		},
	}
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "compute merge plans and preflight only; no filesystem mutation")
	return cmd
}

func undoCmd(flags *cliFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "undo",
		Short: "Reverse the most recent eligible merge transaction",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancelFn := cancellableContext()
			defer cancelFn()

			logger := cli.NewLogger(os.Stderr, slog.LevelWarn)
			idx, staging, cleanup, err := openServices(ctx, flags.dbPath, nil, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			executor := merge.NewExecutor(idx, staging, merge.Policies{
				MoveToTrash:         flags.moveToTrash,
				RetentionDays:       merge.DefaultPolicies().RetentionDays,
				RequireConfirmation: flags.requireConfirmation,
			})
			orch := orchestrator.New(idx, nil, nil, nil, staging, executor, logger)
			result, err := orch.Undo(ctx)
			if err != nil {
				return err
			}

			if result.Partial {
				color.New(color.FgYellow).Printf("undone transaction %d (partial: files were permanently deleted, metadata restored only)\n", result.TransactionID)
			} else {
				color.New(color.FgGreen, color.Bold).Printf("undone transaction %d for group %s\n", result.TransactionID, result.GroupID)
			}
			return nil
		},
	}
}

func writeRunSummary(flags *cliFlags, s report.RunSummary) error {
	if flags.jsonOutput {
		return report.WriteJSON(os.Stdout, s)
	}
	return report.WriteText(os.Stdout, s)
}
