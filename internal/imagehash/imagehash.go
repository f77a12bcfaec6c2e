package imagehash

import (
	"fmt"
	"image"
	"math/bits"
	"os"

	"github.com/corona10/goimagehash"
	"github.com/disintegration/imaging"

	"github.com/user/mediadupe/internal/model"
	"github.com/user/mediadupe/internal/pipelineerr"
)

// Options configures hashing thresholds (spec.md §4.4, §6 thresholds.*).
type Options struct {
	MinImageDimension int  // shorter side below this is skipped; default 32
	ComputePHash      bool // opt-in per spec.md §9 design note
}

func DefaultOptions() Options {
	return Options{MinImageDimension: 32, ComputePHash: false}
}

// Verdict is the outcome of comparing two image signatures by Hamming
// distance (spec.md §4.4).
type Verdict int

const (
	VerdictDifferent Verdict = iota
	VerdictNearDuplicate
	VerdictDuplicate
)

// Thresholds bounds the Hamming-distance cutoffs for Compare (spec.md §6).
type Thresholds struct {
	Duplicate    int // default 0
	NearDuplicate int // default 5
}

func DefaultThresholds() Thresholds {
	return Thresholds{Duplicate: 0, NearDuplicate: 5}
}

// Compute decodes path and returns its dHash (and pHash, if opted in),
// skipping images whose shorter side is below MinImageDimension.
func Compute(path string, opts Options) ([]model.ImageSignature, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, pipelineerr.AccessDenied(path, err)
	}
	defer f.Close()

	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		return nil, pipelineerr.DecodeFailure(path, "imagehash", err)
	}

	width, height := img.Bounds().Dx(), img.Bounds().Dy()
	if shorterSide(width, height) < opts.MinImageDimension {
		return nil, pipelineerr.UnsupportedMedia(path)
	}

	sigs := make([]model.ImageSignature, 0, 2)

	dhash, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return nil, pipelineerr.DecodeFailure(path, "dHash", err)
	}
	sigs = append(sigs, model.ImageSignature{
		Algorithm: model.AlgorithmDHash,
		Hash:      dhash.GetHash(),
		Width:     width,
		Height:    height,
	})

	if opts.ComputePHash {
		phash, err := goimagehash.PerceptionHash(img)
		if err != nil {
			return nil, pipelineerr.DecodeFailure(path, "pHash", err)
		}
		sigs = append(sigs, model.ImageSignature{
			Algorithm: model.AlgorithmPHash,
			Hash:      phash.GetHash(),
			Width:     width,
			Height:    height,
		})
	}

	return sigs, nil
}

// HashImage computes the dHash of an already-decoded image, used by
// VideoFingerprinter to hash sampled frames without re-reading a file.
func HashImage(img image.Image) (uint64, error) {
	h, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return 0, fmt.Errorf("imagehash: dhash: %w", err)
	}
	return h.GetHash(), nil
}

func shorterSide(w, h int) int {
	if w < h {
		return w
	}
	return h
}

// Hamming returns the number of differing bits between two 64-bit hashes
// (spec.md GLOSSARY, §4.4).
func Hamming(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Compare classifies a pair of same-algorithm hashes against t.
func Compare(a, b uint64, t Thresholds) Verdict {
	d := Hamming(a, b)
	switch {
	case d <= t.Duplicate:
		return VerdictDuplicate
	case d <= t.NearDuplicate:
		return VerdictNearDuplicate
	default:
		return VerdictDifferent
	}
}
