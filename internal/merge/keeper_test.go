package merge

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/user/mediadupe/internal/model"
)

func memberOf(path string, size int64, w, h int, captured time.Time, camera string) Member {
	return Member{
		File: model.File{ID: uuid.New(), Path: path, Size: size},
		Metadata: model.MediaMetadata{
			FileName: path, Width: w, Height: h, CaptureDate: captured, CameraModel: camera,
		},
	}
}

func TestSelectKeeperPrefersMorePixels(t *testing.T) {
	now := time.Now()
	small := memberOf("/a/small.jpg", 1_000_000, 1920, 1080, now, "")
	large := memberOf("/a/large.jpg", 1_000_000, 4000, 3000, now, "")

	got := SelectKeeper([]Member{small, large})
	require.Equal(t, large.File.ID, got.File.ID)
}

func TestSelectKeeperFallsBackToFileSize(t *testing.T) {
	now := time.Now()
	a := memberOf("/a/photo.jpg", 1_000_000, 1920, 1080, now, "")
	b := memberOf("/b/photo.jpg", 2_000_000, 1920, 1080, now, "")

	got := SelectKeeper([]Member{a, b})
	require.Equal(t, b.File.ID, got.File.ID)
}

func TestSelectKeeperPrefersRawFormat(t *testing.T) {
	now := time.Now()
	jpeg := memberOf("/a/photo.jpg", 2_000_000, 1920, 1080, now, "")
	raw := memberOf("/a/photo.cr2", 2_000_000, 1920, 1080, now, "")

	got := SelectKeeper([]Member{jpeg, raw})
	require.Equal(t, raw.File.ID, got.File.ID)
}

func TestSelectKeeperIsDeterministicAcrossOrdering(t *testing.T) {
	now := time.Now()
	a := memberOf("/a/photo.jpg", 1_000_000, 1920, 1080, now, "")
	b := memberOf("/b/photo.jpg", 1_000_000, 1920, 1080, now, "")

	first := SelectKeeper([]Member{a, b})
	second := SelectKeeper([]Member{b, a})
	require.Equal(t, first.File.ID, second.File.ID)
}

func TestSelectKeeperEarliestCaptureDateNullsLast(t *testing.T) {
	now := time.Now()
	withDate := memberOf("/a/photo.jpg", 1_000_000, 1920, 1080, now, "")
	noDate := memberOf("/b/photo.jpg", 1_000_000, 1920, 1080, time.Time{}, "")

	got := SelectKeeper([]Member{noDate, withDate})
	require.Equal(t, withDate.File.ID, got.File.ID)
}

func TestCompletenessScoreCountsAllFourFields(t *testing.T) {
	lat, lon := 1.0, 2.0
	full := model.MediaMetadata{CaptureDate: time.Now(), GPSLat: &lat, GPSLon: &lon, CameraModel: "x", Keywords: []string{"k"}}
	require.Equal(t, 1.0, completenessScore(full))
	require.Equal(t, 0.0, completenessScore(model.MediaMetadata{}))
}

func TestFormatPreferenceTable(t *testing.T) {
	require.Equal(t, 1.0, formatPreference("", "/a.cr2"))
	require.Equal(t, 0.9, formatPreference("", "/a.png"))
	require.Equal(t, 0.7, formatPreference("", "/a.jpg"))
	require.Equal(t, 0.5, formatPreference("", "/a.heic"))
	require.Equal(t, 0.0, formatPreference("", "/a.txt"))
}
