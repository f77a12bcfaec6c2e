package metadata

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/user/mediadupe/internal/model"
)

func TestInferContentTypeMagicNumberJPEG(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mystery.bin")
	require.NoError(t, os.WriteFile(path, []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10}, 0o644))

	require.Equal(t, "image/jpeg", InferContentType(path, model.ClassPhoto))
}

func TestInferContentTypePNGMagicNumber(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "noext")
	require.NoError(t, os.WriteFile(path, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A}, 0o644))

	require.Equal(t, "image/png", InferContentType(path, model.ClassPhoto))
}

func TestInferContentTypeExtensionOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mkv")
	require.NoError(t, os.WriteFile(path, []byte{0x1A, 0x45, 0xDF, 0xA3}, 0o644))

	require.Equal(t, "video/x-matroska", InferContentType(path, model.ClassVideo))
}

func TestInferContentTypeFallsBackToClass(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "unknown.zzq9")
	require.NoError(t, os.WriteFile(path, []byte{0x01, 0x02, 0x03}, 0o644))

	require.Equal(t, "video/octet-stream", InferContentType(path, model.ClassVideo))
}

func TestRoundTo6(t *testing.T) {
	require.InDelta(t, 12.345678, roundTo6(12.3456781234), 1e-9)
	require.InDelta(t, -98.765432, roundTo6(-98.7654321), 1e-9)
}

func TestUniqueSortedDedupesAndSorts(t *testing.T) {
	require.Equal(t, []string{"alpha", "beta"}, uniqueSorted([]string{"beta", "alpha", "beta", ""}))
	require.Nil(t, uniqueSorted(nil))
}

func TestSplitCommaTrimsEmpties(t *testing.T) {
	require.Equal(t, []string{"beach", "sunset"}, splitComma(" beach ,, sunset"))
}

func TestParseDurationField(t *testing.T) {
	require.Equal(t, 3.5, parseDurationField("3.5"))
	require.Equal(t, 3.5, parseDurationField("3.5 s"))
	require.InDelta(t, 3725.0, parseDurationField("1:02:05"), 1e-9)
	require.Equal(t, 0.0, parseDurationField(nil))
}

func TestNormalizeCaptureDateKeepsAnAlreadyFoundDate(t *testing.T) {
	found := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	meta := &model.MediaMetadata{CaptureDate: found, CreatedAt: time.Now()}
	normalizeCaptureDate(meta)
	require.Equal(t, found, meta.CaptureDate)
}

func TestNormalizeCaptureDateFallsBackToCreatedAtThenModifiedAt(t *testing.T) {
	createdAt := time.Date(2019, 6, 1, 0, 0, 0, 0, time.UTC)
	meta := &model.MediaMetadata{CreatedAt: createdAt}
	normalizeCaptureDate(meta)
	require.Equal(t, createdAt, meta.CaptureDate)

	modifiedAt := time.Date(2021, 3, 4, 0, 0, 0, 0, time.UTC)
	meta = &model.MediaMetadata{ModifiedAt: modifiedAt}
	normalizeCaptureDate(meta)
	require.Equal(t, modifiedAt, meta.CaptureDate)
}
