package imagehash

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/user/mediadupe/internal/model"
	"github.com/user/mediadupe/internal/pipelineerr"
)

func writePNG(t *testing.T, dir, name string, w, h int, fill func(x, y int) color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, fill(x, y))
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func gradient(x, y int) color.Color {
	return color.Gray{Y: uint8((x * 7) % 256)}
}

func TestComputeSkipsBelowMinDimension(t *testing.T) {
	dir := t.TempDir()

	tooSmall := writePNG(t, dir, "small.png", 31, 31, gradient)
	_, err := Compute(tooSmall, DefaultOptions())
	require.Error(t, err)
	require.True(t, pipelineerr.Is(err, pipelineerr.CodeUnsupportedMedia))

	justRight := writePNG(t, dir, "ok.png", 32, 32, gradient)
	sigs, err := Compute(justRight, DefaultOptions())
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	require.Equal(t, model.AlgorithmDHash, sigs[0].Algorithm)
}

func TestComputeOptionalPHash(t *testing.T) {
	dir := t.TempDir()
	path := writePNG(t, dir, "a.png", 64, 64, gradient)

	opts := DefaultOptions()
	opts.ComputePHash = true
	sigs, err := Compute(path, opts)
	require.NoError(t, err)
	require.Len(t, sigs, 2)
}

func TestHammingAndCompare(t *testing.T) {
	require.Equal(t, 0, Hamming(0xFF00, 0xFF00))
	require.Equal(t, 8, Hamming(0x00, 0xFF))

	th := DefaultThresholds()
	require.Equal(t, VerdictDuplicate, Compare(0xABCD, 0xABCD, th))
	require.Equal(t, VerdictDifferent, Compare(0x0000, 0xFFFF, th))
}

func TestCompareNearDuplicateBoundary(t *testing.T) {
	th := Thresholds{Duplicate: 0, NearDuplicate: 5}
	// exactly 5 differing bits -> near duplicate, not duplicate
	a := uint64(0)
	b := uint64(0b11111)
	require.Equal(t, 5, Hamming(a, b))
	require.Equal(t, VerdictNearDuplicate, Compare(a, b, th))
}
