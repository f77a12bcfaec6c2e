package merge

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/user/mediadupe/internal/model"
)

func TestBuildPlanFillsMissingGPSFromLoser(t *testing.T) {
	lat, lon := 40.7, -74.0
	keeper := Member{File: model.File{ID: uuid.New()}, Metadata: model.MediaMetadata{}}
	loser := Member{File: model.File{ID: uuid.New()}, Metadata: model.MediaMetadata{GPSLat: &lat, GPSLon: &lon}}

	plan := BuildPlan("grp-1", keeper, []Member{keeper, loser})
	require.NotNil(t, plan.MergedMetadata.GPSLat)
	require.Equal(t, lat, *plan.MergedMetadata.GPSLat)
	require.Contains(t, plan.ExifWrites, "GPSLatitude")
}

func TestBuildPlanNeverOverwritesKeeperGPS(t *testing.T) {
	keepLat, keepLon := 1.0, 2.0
	loseLat, loseLon := 9.0, 9.0
	keeper := Member{File: model.File{ID: uuid.New()}, Metadata: model.MediaMetadata{GPSLat: &keepLat, GPSLon: &keepLon}}
	loser := Member{File: model.File{ID: uuid.New()}, Metadata: model.MediaMetadata{GPSLat: &loseLat, GPSLon: &loseLon}}

	plan := BuildPlan("grp-1", keeper, []Member{keeper, loser})
	require.Equal(t, keepLat, *plan.MergedMetadata.GPSLat)
	require.NotContains(t, plan.ExifWrites, "GPSLatitude")
}

func TestBuildPlanUnionsKeywordsUniqueSorted(t *testing.T) {
	keeper := Member{File: model.File{ID: uuid.New()}, Metadata: model.MediaMetadata{Keywords: []string{"beach"}}}
	loser := Member{File: model.File{ID: uuid.New()}, Metadata: model.MediaMetadata{Keywords: []string{"beach", "sunset"}}}

	plan := BuildPlan("grp-1", keeper, []Member{keeper, loser})
	require.Equal(t, []string{"beach", "sunset"}, plan.MergedMetadata.Keywords)
}

func TestBuildPlanCaptureDateTakesEarliestLoserWhenKeeperMissing(t *testing.T) {
	early := time.Now().Add(-48 * time.Hour)
	late := time.Now().Add(-1 * time.Hour)
	keeper := Member{File: model.File{ID: uuid.New()}, Metadata: model.MediaMetadata{}}
	loserEarly := Member{File: model.File{ID: uuid.New()}, Metadata: model.MediaMetadata{CaptureDate: early}}
	loserLate := Member{File: model.File{ID: uuid.New()}, Metadata: model.MediaMetadata{CaptureDate: late}}

	plan := BuildPlan("grp-1", keeper, []Member{keeper, loserEarly, loserLate})
	require.True(t, plan.MergedMetadata.CaptureDate.Equal(early))
}

// TestBuildPlanExactCopyProducesNoFieldChanges exercises spec.md §8
// scenario 1: two byte-identical files with the same non-zero captureDate
// and no other distinguishing metadata produce an empty FieldChanges —
// "keep" is the absence of a change, not a change whose old/new happen to
// be equal.
func TestBuildPlanExactCopyProducesNoFieldChanges(t *testing.T) {
	when := time.Now().Add(-24 * time.Hour)
	meta := model.MediaMetadata{CaptureDate: when}
	keeper := Member{File: model.File{ID: uuid.New()}, Metadata: meta}
	loser := Member{File: model.File{ID: uuid.New()}, Metadata: meta}

	plan := BuildPlan("grp-1", keeper, []Member{keeper, loser})
	require.Empty(t, plan.FieldChanges)
}

func TestBuildPlanTrashListExcludesKeeper(t *testing.T) {
	keeper := Member{File: model.File{ID: uuid.New()}}
	loser := Member{File: model.File{ID: uuid.New()}}

	plan := BuildPlan("grp-1", keeper, []Member{keeper, loser})
	require.Len(t, plan.TrashList, 1)
	require.Equal(t, loser.File.ID, plan.TrashList[0])
	require.NotContains(t, plan.TrashList, keeper.File.ID)
}
