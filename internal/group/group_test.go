package group

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/user/mediadupe/internal/model"
)

func photoCandidate(name string, size int64, hash uint64, w, h int, captured time.Time) Candidate {
	id := uuid.New()
	return Candidate{
		File: model.File{ID: id, Path: name, Size: size, Class: model.ClassPhoto},
		Metadata: model.MediaMetadata{
			FileID: id, FileName: name, Width: w, Height: h, CaptureDate: captured,
		},
		HasMetadata:    true,
		ImageSignature: model.ImageSignature{FileID: id, Algorithm: model.AlgorithmDHash, Hash: hash, Width: w, Height: h},
		HasImageSig:    true,
	}
}

func TestBuildUnionsCloseHashesIntoOneGroup(t *testing.T) {
	now := time.Now()
	a := photoCandidate("IMG_0001.jpg", 4_000_000, 0x0F0F0F0F0F0F0F0F, 4000, 3000, now)
	b := photoCandidate("IMG_0001 (1).jpg", 4_000_000, 0x0F0F0F0F0F0F0F0F, 4000, 3000, now)

	groups := Build([]Candidate{a, b}, DefaultWeights(), DefaultThresholds())
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Members, 2)
	require.Equal(t, model.ClassPhoto, groups[0].MediaClass)
}

func TestBuildMediaClassMismatchForbidsUnion(t *testing.T) {
	now := time.Now()
	a := photoCandidate("IMG_0001.jpg", 4_000_000, 0x0F0F0F0F0F0F0F0F, 4000, 3000, now)
	b := a
	b.File.ID = uuid.New()
	b.File.Class = model.ClassVideo

	groups := Build([]Candidate{a, b}, DefaultWeights(), DefaultThresholds())
	require.Len(t, groups, 0)
}

func TestBuildLeavesUnrelatedFilesUngrouped(t *testing.T) {
	now := time.Now()
	a := photoCandidate("vacation1.jpg", 1_000_000, 0x00000000FFFFFFFF, 1920, 1080, now)
	b := photoCandidate("unrelated.jpg", 9_000_000, 0xFFFFFFFF00000000, 640, 480, now.Add(72*time.Hour))

	groups := Build([]Candidate{a, b}, DefaultWeights(), DefaultThresholds())
	require.Len(t, groups, 0)
}

func TestFilenameSimilarStripsCounterSuffix(t *testing.T) {
	require.True(t, filenameSimilar("/a/photo.jpg", "/b/photo (1).jpg"))
	require.True(t, filenameSimilar("/a/photo.jpg", "/b/photo_copy.jpg"))
	require.False(t, filenameSimilar("/a/photo.jpg", "/b/completely-different.jpg"))
}
