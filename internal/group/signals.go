package group

import (
	"math"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/user/mediadupe/internal/imagehash"
	"github.com/user/mediadupe/internal/model"
	"github.com/user/mediadupe/internal/videofp"
)

// Weights holds per-signal and per-penalty scores (spec.md §6 "weights.*").
// Values are not prescribed by the spec beyond relative "high/medium" labels
// (§4.6); the defaults below preserve that ordering.
type Weights struct {
	ExactBytes           float64
	DHashCloseDuplicate  float64
	DHashCloseNear       float64
	VideoFrameDuplicate  float64
	VideoFrameSimilar    float64
	Dimensions           float64
	DurationMatch        float64
	CaptureTimeClose     float64
	FilenameSimilar      float64
	AspectRatioDivergence float64
	HugeSizeDelta        float64
}

func DefaultWeights() Weights {
	return Weights{
		ExactBytes:            10,
		DHashCloseDuplicate:   5,
		DHashCloseNear:        2,
		VideoFrameDuplicate:   5,
		VideoFrameSimilar:     2,
		Dimensions:            0.5,
		DurationMatch:         1,
		CaptureTimeClose:      1,
		FilenameSimilar:       0.5,
		AspectRatioDivergence: 2,
		HugeSizeDelta:         2,
	}
}

// pairScore evaluates every signal and penalty for a candidate pair and
// returns the signals/penalties that fired, along with whether a
// hard-veto penalty (MediaClassMismatch) forbids union outright.
func pairScore(a, b Candidate, w Weights, th Thresholds) (signals []model.Signal, penalties []model.Penalty, forbidden bool) {
	if a.File.Class != b.File.Class {
		penalties = append(penalties, model.Penalty{Kind: model.PenaltyMediaClassMismatch, Weight: math.Inf(1), With: b.File.ID})
		return nil, penalties, true
	}

	if a.File.Size == b.File.Size && a.ContentHash != "" && a.ContentHash == b.ContentHash {
		signals = append(signals, model.Signal{Kind: model.SignalExactBytes, Weight: w.ExactBytes, With: b.File.ID})
	}

	if a.HasImageSig && b.HasImageSig {
		d := imagehash.Hamming(a.ImageSignature.Hash, b.ImageSignature.Hash)
		switch {
		case d <= th.ImageDistance:
			signals = append(signals, model.Signal{Kind: model.SignalDHashClose, Weight: w.DHashCloseDuplicate, With: b.File.ID})
		case d <= th.ImageNearDistance:
			signals = append(signals, model.Signal{Kind: model.SignalDHashClose, Weight: w.DHashCloseNear, With: b.File.ID})
		}
	}

	if a.HasVideoSig && b.HasVideoSig {
		verdict := videofp.Compare(a.VideoSignature, b.VideoSignature, th.VideoComparison)
		switch verdict {
		case videofp.VerdictDuplicate:
			signals = append(signals, model.Signal{Kind: model.SignalVideoFrameMatch, Weight: w.VideoFrameDuplicate, With: b.File.ID})
		case videofp.VerdictSimilar:
			signals = append(signals, model.Signal{Kind: model.SignalVideoFrameMatch, Weight: w.VideoFrameSimilar, With: b.File.ID})
		}
	}

	if a.HasMetadata && b.HasMetadata {
		if a.Metadata.Width == b.Metadata.Width && a.Metadata.Height == b.Metadata.Height && a.Metadata.Width > 0 {
			signals = append(signals, model.Signal{Kind: model.SignalDimensions, Weight: w.Dimensions, With: b.File.ID})
		}

		if a.Metadata.DurationSec > 0 && b.Metadata.DurationSec > 0 &&
			durationClose(a.Metadata.DurationSec, b.Metadata.DurationSec, th.VideoComparison) {
			signals = append(signals, model.Signal{Kind: model.SignalDurationMatch, Weight: w.DurationMatch, With: b.File.ID})
		}

		if !a.Metadata.CaptureDate.IsZero() && !b.Metadata.CaptureDate.IsZero() {
			delta := a.Metadata.CaptureDate.Sub(b.Metadata.CaptureDate)
			if delta < 0 {
				delta = -delta
			}
			if delta.Seconds() <= 2 {
				signals = append(signals, model.Signal{Kind: model.SignalCaptureTimeClose, Weight: w.CaptureTimeClose, With: b.File.ID})
			}
		}

		if aspectDiverges(a.Metadata.Width, a.Metadata.Height, b.Metadata.Width, b.Metadata.Height) {
			penalties = append(penalties, model.Penalty{Kind: model.PenaltyAspectRatioDivergence, Weight: w.AspectRatioDivergence, With: b.File.ID})
		}
	}

	if filenameSimilar(a.File.Path, b.File.Path) {
		signals = append(signals, model.Signal{Kind: model.SignalFilenameSimilar, Weight: w.FilenameSimilar, With: b.File.ID})
	}

	if minMaxRatio(a.File.Size, b.File.Size) < 0.5 {
		penalties = append(penalties, model.Penalty{Kind: model.PenaltyHugeSizeDelta, Weight: w.HugeSizeDelta, With: b.File.ID})
	}

	return signals, penalties, false
}

func durationClose(a, b float64, opts videofp.ComparisonOptions) bool {
	tol := math.Max(opts.DurationToleranceSeconds, opts.DurationToleranceFraction*math.Min(a, b))
	return math.Abs(a-b) <= tol
}

func aspectDiverges(w1, h1, w2, h2 int) bool {
	if w1 == 0 || h1 == 0 || w2 == 0 || h2 == 0 {
		return false
	}
	a1 := float64(w1) / float64(h1)
	a2 := float64(w2) / float64(h2)
	return math.Abs(a1-a2) > 0.05
}

func minMaxRatio(a, b int64) float64 {
	if a == 0 || b == 0 {
		return 1
	}
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	return float64(lo) / float64(hi)
}

var trailingCounterSuffix = regexp.MustCompile(`(?i)[ _-]?(copy|\(\d+\)|\d+)$`)

// filenameSimilar compares case-insensitive basenames, with trailing counter
// suffixes stripped, by Levenshtein edit distance (spec.md §4.6).
func filenameSimilar(pathA, pathB string) bool {
	a := stripCounterSuffix(filepath.Base(pathA))
	b := stripCounterSuffix(filepath.Base(pathB))
	return levenshtein(strings.ToLower(a), strings.ToLower(b)) <= 2
}

func stripCounterSuffix(name string) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	stem = trailingCounterSuffix.ReplaceAllString(stem, "")
	return stem + ext
}

func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = minInt3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

func minInt3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}
