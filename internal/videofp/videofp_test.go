package videofp

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/user/mediadupe/internal/model"
)

func TestSamplePointsShortClipBoundary(t *testing.T) {
	opts := DefaultOptions()

	// duration == short_threshold takes the single-sample path (spec.md §8).
	pts := samplePoints(2.0, opts)
	require.Equal(t, []float64{1.0}, pts)

	pts = samplePoints(2.01, opts)
	require.Len(t, pts, 3)
	require.Equal(t, 0.0, pts[0])
	require.InDelta(t, 1.005, pts[1], 1e-9)
	require.InDelta(t, 1.01, pts[2], 1e-9)
}

func TestCompareDuplicateVerdict(t *testing.T) {
	opts := DefaultComparisonOptions()

	a := model.VideoSignature{DurationSec: 30.05, FrameHashes: []uint64{0, 0, 0}}
	b := model.VideoSignature{DurationSec: 29.98, FrameHashes: bitOffsets(2, 3, 4)}

	require.Equal(t, VerdictDuplicate, Compare(a, b, opts))
}

func TestCompareInsufficientData(t *testing.T) {
	opts := DefaultComparisonOptions()
	a := model.VideoSignature{DurationSec: 10, FrameHashes: nil}
	b := model.VideoSignature{DurationSec: 10, FrameHashes: []uint64{1}}
	require.Equal(t, VerdictInsufficientData, Compare(a, b, opts))
}

func TestCompareDifferentDuration(t *testing.T) {
	opts := DefaultComparisonOptions()
	a := model.VideoSignature{DurationSec: 10, FrameHashes: []uint64{0}}
	b := model.VideoSignature{DurationSec: 30, FrameHashes: []uint64{0}}
	require.Equal(t, VerdictDifferent, Compare(a, b, opts))
}

func bitOffsets(n ...int) []uint64 {
	out := make([]uint64, len(n))
	for i, k := range n {
		out[i] = (uint64(1) << uint(k)) - 1
	}
	return out
}
