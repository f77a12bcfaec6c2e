package merge

import (
	"sort"
	"strconv"

	"github.com/google/uuid"

	"github.com/user/mediadupe/internal/model"
)

// FieldSource names where a merged field's value came from (spec.md §4.7).
type FieldSource int

const (
	SourceKeep FieldSource = iota
	SourceFill
	SourceMergeFrom
)

func (s FieldSource) String() string {
	switch s {
	case SourceKeep:
		return "Keep"
	case SourceFill:
		return "Fill"
	case SourceMergeFrom:
		return "MergeFrom"
	default:
		return "Unknown"
	}
}

// FieldChange is one entry in the plan's audit trail (spec.md §4.7 fieldChanges).
type FieldChange struct {
	Field    string
	Old      any
	New      any
	Source   FieldSource
	FromFile uuid.UUID // set for captureDate, gps and cameraModel entries; zero for the keywords/tags unions
}

// Plan is the immutable description of what a merge will do (GLOSSARY
// "Merge plan"); dry-run returns one without executing (spec.md §4.8).
type Plan struct {
	GroupID        string
	KeeperFileID   uuid.UUID
	KeeperMetadata model.MediaMetadata
	MergedMetadata model.MediaMetadata
	ExifWrites     map[string]string
	TrashList      []uuid.UUID
	FieldChanges   []FieldChange
}

// BuildPlan computes a MergePlan for a group given its keeper and the full
// member list (spec.md §4.7 "Merge planning").
func BuildPlan(groupID string, keeper Member, members []Member) Plan {
	merged := keeper.Metadata
	var changes []FieldChange

	losers := make([]Member, 0, len(members)-1)
	for _, m := range members {
		if m.File.ID != keeper.File.ID {
			losers = append(losers, m)
		}
	}
	sort.Slice(losers, func(i, j int) bool { return losers[i].File.ID.String() < losers[j].File.ID.String() })

	// captureDate: keep keeper if set (no entry — nothing changed), else
	// fill from the earliest among sources that has one.
	if keeper.Metadata.CaptureDate.IsZero() {
		var earliest *Member
		for i := range losers {
			if losers[i].Metadata.CaptureDate.IsZero() {
				continue
			}
			if earliest == nil || losers[i].Metadata.CaptureDate.Before(earliest.Metadata.CaptureDate) {
				earliest = &losers[i]
			}
		}
		if earliest != nil {
			changes = append(changes, FieldChange{Field: "captureDate", Old: keeper.Metadata.CaptureDate, New: earliest.Metadata.CaptureDate, Source: SourceMergeFrom, FromFile: earliest.File.ID})
			merged.CaptureDate = earliest.Metadata.CaptureDate
		}
	}

	// GPS: keep keeper if set (no entry), else fill from the first
	// non-null source.
	if keeper.Metadata.GPSLat == nil || keeper.Metadata.GPSLon == nil {
		for i := range losers {
			if losers[i].Metadata.GPSLat != nil && losers[i].Metadata.GPSLon != nil {
				changes = append(changes, FieldChange{Field: "gps", Old: nil, New: [2]float64{*losers[i].Metadata.GPSLat, *losers[i].Metadata.GPSLon}, Source: SourceFill, FromFile: losers[i].File.ID})
				merged.GPSLat = losers[i].Metadata.GPSLat
				merged.GPSLon = losers[i].Metadata.GPSLon
				break
			}
		}
	}

	// cameraModel: keep keeper if set (no entry), else fill from the first
	// non-empty source.
	if keeper.Metadata.CameraModel == "" {
		for i := range losers {
			if losers[i].Metadata.CameraModel != "" {
				changes = append(changes, FieldChange{Field: "cameraModel", Old: "", New: losers[i].Metadata.CameraModel, Source: SourceFill, FromFile: losers[i].File.ID})
				merged.CameraModel = losers[i].Metadata.CameraModel
				break
			}
		}
	}

	// keywords/tags: union, unique-sorted.
	mergedKeywords := unionSorted(keeper.Metadata.Keywords, collectKeywords(losers))
	if !equalStrings(mergedKeywords, keeper.Metadata.Keywords) {
		changes = append(changes, FieldChange{Field: "keywords", Old: keeper.Metadata.Keywords, New: mergedKeywords, Source: SourceMergeFrom})
		merged.Keywords = mergedKeywords
	}
	mergedTags := unionSorted(keeper.Metadata.Tags, collectTags(losers))
	if !equalStrings(mergedTags, keeper.Metadata.Tags) {
		changes = append(changes, FieldChange{Field: "tags", Old: keeper.Metadata.Tags, New: mergedTags, Source: SourceMergeFrom})
		merged.Tags = mergedTags
	}

	exifWrites := buildExifWrites(keeper.Metadata, merged)

	trashList := make([]uuid.UUID, len(losers))
	for i, l := range losers {
		trashList[i] = l.File.ID
	}

	return Plan{
		GroupID:        groupID,
		KeeperFileID:   keeper.File.ID,
		KeeperMetadata: keeper.Metadata,
		MergedMetadata: merged,
		ExifWrites:     exifWrites,
		TrashList:      trashList,
		FieldChanges:   changes,
	}
}

// buildExifWrites limits writes to fields newly added — no overwrites
// (spec.md §4.7 exifWrites).
func buildExifWrites(keeper, merged model.MediaMetadata) map[string]string {
	writes := make(map[string]string)
	if keeper.GPSLat == nil && merged.GPSLat != nil {
		writes["GPSLatitude"] = formatFloat(*merged.GPSLat)
		writes["GPSLongitude"] = formatFloat(*merged.GPSLon)
	}
	if keeper.CameraModel == "" && merged.CameraModel != "" {
		writes["Model"] = merged.CameraModel
	}
	if added := newKeywords(keeper.Keywords, merged.Keywords); len(added) > 0 {
		writes["Keywords"] = joinComma(merged.Keywords)
	}
	return writes
}

func collectKeywords(members []Member) []string {
	var out []string
	for _, m := range members {
		out = append(out, m.Metadata.Keywords...)
	}
	return out
}

func collectTags(members []Member) []string {
	var out []string
	for _, m := range members {
		out = append(out, m.Metadata.Tags...)
	}
	return out
}

func unionSorted(a, b []string) []string {
	set := make(map[string]bool)
	for _, s := range a {
		set[s] = true
	}
	for _, s := range b {
		set[s] = true
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func newKeywords(old, merged []string) []string {
	oldSet := make(map[string]bool, len(old))
	for _, s := range old {
		oldSet[s] = true
	}
	var added []string
	for _, s := range merged {
		if !oldSet[s] {
			added = append(added, s)
		}
	}
	return added
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func joinComma(ss []string) string {
	out := ""
	for i, s := range ss {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', 6, 64)
}
