// Package orchestrator drives the deduplication pipeline end to end
// (spec.md §4.9, component C9): Enumerator -> MetadataExtractor ->
// (ImageHasher | VideoFingerprinter) -> FileIndex upsert -> GroupBuilder ->
// KeeperSelector -> MergePlanner -> (user confirmation) -> MergeExecutor.
//
// Concurrency is modeled with golang.org/x/sync/errgroup-bounded worker
// pools over the enumerator's channel, matching the DOMAIN STACK wiring in
// SPEC_FULL.md; a single context.Context is this module's cancellation
// token (spec.md §5 "one token per orchestration"), generalizing the
// teacher's signal.Notify-driven context in main.go's backup().
package orchestrator

import (
	"runtime"

	"github.com/user/mediadupe/internal/enumerator"
	"github.com/user/mediadupe/internal/group"
	"github.com/user/mediadupe/internal/imagehash"
	"github.com/user/mediadupe/internal/merge"
	"github.com/user/mediadupe/internal/videofp"
)

// DetectOptions aggregates every recognized configuration key from spec.md
// §6 into the per-stage option types each component already defines.
type DetectOptions struct {
	Roots []string

	Enumerator enumerator.Options
	ImageHash  imagehash.Options
	Video      videofp.Options

	GroupThresholds group.Thresholds
	GroupWeights    group.Weights

	MergePolicies merge.Policies

	// MaxWorkers bounds the hashing/fingerprinting worker pool; 0 means
	// "use all available cores" (spec.md §5 "bound to the available core
	// count"). Memory-pressure monitors may reduce this at runtime but
	// never below 1 (spec.md §5); this module takes a static snapshot
	// rather than reacting to pressure mid-run, noted in DESIGN.md.
	MaxWorkers int
}

// DefaultDetectOptions assembles the documented default for every key in
// spec.md §6's DetectOptions table.
func DefaultDetectOptions() DetectOptions {
	return DetectOptions{
		Enumerator:      enumerator.DefaultOptions(),
		ImageHash:       imagehash.DefaultOptions(),
		Video:           videofp.DefaultOptions(),
		GroupThresholds: group.DefaultThresholds(),
		GroupWeights:    group.DefaultWeights(),
		MergePolicies:   merge.DefaultPolicies(),
		MaxWorkers:      workerCount(0),
	}
}

func workerCount(requested int) int {
	if requested > 0 {
		return requested
	}
	n := runtime.NumCPU()
	if n < 1 {
		return 1
	}
	return n
}
