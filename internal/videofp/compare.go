package videofp

import (
	"math"

	"github.com/user/mediadupe/internal/imagehash"
	"github.com/user/mediadupe/internal/model"
)

// Verdict is the outcome of comparing two VideoSignatures (spec.md §4.5).
type Verdict int

const (
	VerdictInsufficientData Verdict = iota
	VerdictDifferent
	VerdictSimilar
	VerdictDuplicate
)

// ComparisonOptions bounds per-frame and duration tolerances (spec.md §4.5, §6).
type ComparisonOptions struct {
	PerFrameMatchThreshold       int     // default 5
	DurationToleranceSeconds     float64 // default per spec: small absolute floor
	DurationToleranceFraction    float64 // default per spec: fractional tolerance
	MaxMismatchedFramesForDuplicate int  // default 1
}

func DefaultComparisonOptions() ComparisonOptions {
	return ComparisonOptions{
		PerFrameMatchThreshold:          5,
		DurationToleranceSeconds:        0.5,
		DurationToleranceFraction:       0.02,
		MaxMismatchedFramesForDuplicate: 1,
	}
}

func durationWithinTolerance(a, b float64, opts ComparisonOptions) bool {
	tol := math.Max(opts.DurationToleranceSeconds, opts.DurationToleranceFraction*math.Min(a, b))
	return math.Abs(a-b) <= tol
}

// Compare classifies a pair of VideoSignatures (spec.md §4.5).
func Compare(a, b model.VideoSignature, opts ComparisonOptions) Verdict {
	if len(a.FrameHashes) == 0 || len(b.FrameHashes) == 0 {
		return VerdictInsufficientData
	}
	if !durationWithinTolerance(a.DurationSec, b.DurationSec, opts) {
		return VerdictDifferent
	}

	n := minInt(len(a.FrameHashes), len(b.FrameHashes))
	matched := 0
	for i := 0; i < n; i++ {
		if imagehash.Hamming(a.FrameHashes[i], b.FrameHashes[i]) <= opts.PerFrameMatchThreshold {
			matched++
		}
	}
	mismatched := n - matched

	switch {
	case mismatched <= opts.MaxMismatchedFramesForDuplicate:
		return VerdictDuplicate
	case matched > 0:
		return VerdictSimilar
	default:
		return VerdictDifferent
	}
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
