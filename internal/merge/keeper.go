// Package merge implements KeeperSelector, MergePlanner, and MergeExecutor
// (spec.md §4.7, §4.8, components C7/C8). EXIF/IPTC writes go through
// go-exiftool (one exiftool process per write), grounded on
// bleemesser-photosort's import.go; atomic temp-copy-then-replace is
// grounded on the teacher's copyFileAtomic in main.go.
package merge

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/user/mediadupe/internal/model"
)

// formatPreference scores a file by the spec's fixed table (spec.md §4.7
// criterion 3), keyed on path's extension; contentType is not consulted.
func formatPreference(contentType, path string) float64 {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	switch {
	case isRawExtension(ext):
		return 1.0
	case ext == "png":
		return 0.9
	case ext == "jpg", ext == "jpeg":
		return 0.7
	case ext == "heic", ext == "heif":
		return 0.5
	default:
		return 0.0
	}
}

var rawExtensions = map[string]bool{
	"raw": true, "cr2": true, "cr3": true, "nef": true, "nrw": true, "arw": true,
	"dng": true, "orf": true, "pef": true, "rw2": true, "sr2": true, "x3f": true,
	"erf": true, "raf": true, "dcr": true, "kdc": true, "mrw": true, "srw": true,
	"fff": true,
}

func isRawExtension(ext string) bool { return rawExtensions[ext] }

// completenessScore is the fraction of {captureDate, GPS, camera, keywords-or-tags}
// present (spec.md §4.7 criterion 4).
func completenessScore(m model.MediaMetadata) float64 {
	var present int
	const total = 4
	if !m.CaptureDate.IsZero() {
		present++
	}
	if m.GPSLat != nil && m.GPSLon != nil {
		present++
	}
	if m.CameraModel != "" {
		present++
	}
	if len(m.Keywords) > 0 || len(m.Tags) > 0 {
		present++
	}
	return float64(present) / total
}

// Member pairs a File with its MediaMetadata for keeper selection and
// planning; a value copy per spec.md §3 ownership rules.
type Member struct {
	File     model.File
	Metadata model.MediaMetadata
}

// SelectKeeper applies the six-criterion lexicographic total order
// (spec.md §4.7): given the same member set, the result is identical across
// runs (spec.md §8 property 4).
func SelectKeeper(members []Member) Member {
	best := members[0]
	for _, m := range members[1:] {
		if keeperLess(best, m) {
			best = m
		}
	}
	return best
}

// keeperLess reports whether candidate b should replace the current best a,
// i.e. b ranks strictly ahead of a by the lexicographic criteria.
func keeperLess(a, b Member) bool {
	if pa, pb := pixelCount(a.Metadata), pixelCount(b.Metadata); pa != pb {
		return pb > pa
	}
	if a.File.Size != b.File.Size {
		return b.File.Size > a.File.Size
	}
	if fa, fb := formatPreference(a.Metadata.ContentType, a.File.Path), formatPreference(b.Metadata.ContentType, b.File.Path); fa != fb {
		return fb > fa
	}
	if ca, cb := completenessScore(a.Metadata), completenessScore(b.Metadata); ca != cb {
		return cb > ca
	}
	if !a.Metadata.CaptureDate.Equal(b.Metadata.CaptureDate) {
		// Earliest wins; nulls (zero time) sort last.
		switch {
		case a.Metadata.CaptureDate.IsZero():
			return !b.Metadata.CaptureDate.IsZero()
		case b.Metadata.CaptureDate.IsZero():
			return false
		default:
			return b.Metadata.CaptureDate.Before(a.Metadata.CaptureDate)
		}
	}
	return b.File.Path < a.File.Path
}

func pixelCount(m model.MediaMetadata) int {
	return m.Width * m.Height
}

// SortedMemberIDs returns member file ids sorted for deterministic display,
// used by the audit trail and tests.
func SortedMemberIDs(members []Member) []string {
	ids := make([]string, len(members))
	for i, m := range members {
		ids[i] = m.File.ID.String()
	}
	sort.Strings(ids)
	return ids
}
