// media.go implements MetadataExtractor (spec.md §4.3, component C3): given
// a path and media class it produces a fully-populated model.MediaMetadata,
// including captureDate (EXIF for photos, ffprobe container tags for
// video), pixel dimensions, camera model, GPS, keywords/tags, and
// content-type inference — grounded on ruvido-anduril/internal/copy.go's
// global *exiftool.Exiftool reuse pattern, bleemesser-photosort's import.go
// for IPTC keyword handling, and the teacher's getExifDate/
// getVideoCreationDate for the per-class date cascade, folded here into the
// same class-dispatch Extract already performs rather than a separate
// extension-keyed extractor registry.
package metadata

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	exiftool "github.com/barasher/go-exiftool"
	"github.com/rwcarlsen/goexif/exif"

	"github.com/user/mediadupe/internal/model"
	"github.com/user/mediadupe/internal/pipelineerr"
	"github.com/user/mediadupe/internal/videofp"
)

// contentTypeOverrides is the fixed extension override table (spec.md §4.3
// step 2) for containers whose extension doesn't map cleanly through
// mime.TypeByExtension.
var contentTypeOverrides = map[string]string{
	".webp":   "image/webp",
	".mkv":    "video/x-matroska",
	".flv":    "video/x-flv",
	".dnxhd":  "video/x-dnxhd",
	".xavc":   "video/x-xavc",
	".r3d":    "video/x-red-r3d",
	".ari":    "video/x-arriraw",
}

// magicTable is the contractual first-bytes table from spec.md §4.3 step 3.
// Entries are checked in order; the first whose prefix matches wins.
var magicTable = []struct {
	prefixes [][]byte
	mime     string
}{
	{[][]byte{{0xFF, 0xD8, 0xFF}}, "image/jpeg"},
	{[][]byte{{0x89, 0x50, 0x4E, 0x47}}, "image/png"},
	{[][]byte{{0x47, 0x49, 0x46, 0x38}}, "image/gif"},
	{[][]byte{{0x42, 0x4D}}, "image/bmp"},
	{[][]byte{{0x49, 0x49, 0x2A, 0x00}, {0x4D, 0x4D, 0x00, 0x2A}}, "image/tiff"},
	{[][]byte{{0x00, 0x00, 0x00, 0x18}, {0x00, 0x00, 0x00, 0x20}}, "video/quicktime"},
	{[][]byte{{0x1A, 0x45, 0xDF, 0xA3}}, "video/x-matroska"},
	{[][]byte{{0x00, 0x00, 0x01, 0xBA}, {0x00, 0x00, 0x01, 0xB3}}, "video/mpeg"},
	{[][]byte{{0x46, 0x4C, 0x56, 0x01}}, "video/x-flv"},
	{[][]byte{{0xFF, 0xFB}, {0xFF, 0xF3}, {0xFF, 0xF2}}, "audio/mpeg"},
	{[][]byte{{0x4F, 0x67, 0x67, 0x53}}, "audio/ogg"},
}

// genericSentinels are content-type strings so vague they're treated as "no
// hit" and the cascade moves to the next step (spec.md §4.3 step 1).
var genericSentinels = map[string]bool{"data": true, "item": true, "content": true, "octet-stream": true}

var (
	exifToolOnce sync.Once
	exifToolInst *exiftool.Exiftool
	exifToolErr  error
)

// sharedExiftool lazily starts a single exiftool subprocess for the life of
// the process, matching ruvido-anduril's getOrCreateExifToolLocked — a new
// process per file would dominate runtime on large trees.
func sharedExiftool() (*exiftool.Exiftool, error) {
	exifToolOnce.Do(func() {
		exifToolInst, exifToolErr = exiftool.NewExiftool()
	})
	return exifToolInst, exifToolErr
}

// Extractor produces MediaMetadata for scanned files (spec.md §4.3). It
// reuses the shared exiftool subprocess for IPTC fields; merge.Executor's
// EXIF/IPTC writes start their own exiftool process.
type Extractor struct{}

func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract reads path's filesystem attributes and format-specific metadata
// and returns a normalized model.MediaMetadata (spec.md §4.3, §3
// "MediaMetadata"). Reads are purely functional: nothing is mutated.
func (e *Extractor) Extract(ctx context.Context, path string, class model.MediaClass) (model.MediaMetadata, error) {
	info, err := os.Stat(path)
	if err != nil {
		return model.MediaMetadata{}, pipelineerr.NotFound(path)
	}

	meta := model.MediaMetadata{
		FileName:    filepath.Base(path),
		FileSize:    info.Size(),
		MediaClass:  class,
		CreatedAt:   info.ModTime(),
		ModifiedAt:  info.ModTime(),
		ContentType: InferContentType(path, class),
	}

	switch class {
	case model.ClassPhoto:
		e.extractPhoto(path, &meta)
	case model.ClassVideo:
		e.extractVideo(ctx, path, &meta)
	case model.ClassAudio:
		e.extractAudio(path, &meta)
	}

	normalizeCaptureDate(&meta)
	roundGPS(&meta)
	return meta, nil
}

// extractPhoto fills pixel dimensions, EXIF camera model, GPS, capture
// date, and IPTC keywords/categories (spec.md §4.3 "Photo path").
func (e *Extractor) extractPhoto(path string, meta *model.MediaMetadata) {
	if f, err := os.Open(path); err == nil {
		if x, err := exif.Decode(f); err == nil {
			if tag, err := x.Get(exif.Model); err == nil {
				if s, err := tag.StringVal(); err == nil {
					meta.CameraModel = strings.TrimSpace(s)
				}
			}
			if lat, lon, err := x.LatLong(); err == nil {
				meta.GPSLat = &lat
				meta.GPSLon = &lon
			}
			if w, h, ok := exifPixelDims(x); ok {
				meta.Width, meta.Height = w, h
			}
			if t, ok := exifCaptureDate(x); ok {
				meta.CaptureDate = t
			}
		}
		f.Close()
	}

	if meta.Width == 0 || meta.Height == 0 {
		if w, h, ok := decodeDims(path); ok {
			meta.Width, meta.Height = w, h
		}
	}

	keywords, tags := e.exiftoolKeywordsAndTags(path)
	meta.Keywords = keywords
	meta.Tags = tags
}

// exifCaptureDate tries EXIF date fields in order of reliability (spec.md
// §4.3 "Photo path"): DateTimeOriginal (when the photo was taken),
// DateTimeDigitized, then DateTime, falling back to the exif package's own
// legacy DateTime() accessor.
func exifCaptureDate(x *exif.Exif) (time.Time, bool) {
	for _, field := range []exif.FieldName{exif.DateTimeOriginal, exif.DateTimeDigitized, exif.DateTime} {
		tag, err := x.Get(field)
		if err != nil {
			continue
		}
		s, err := tag.StringVal()
		if err != nil {
			continue
		}
		if t, err := time.Parse("2006:01:02 15:04:05", s); err == nil {
			return t, true
		}
	}
	if t, err := x.DateTime(); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// extractVideo fills duration, natural dimensions, capture date, and
// comma-split keywords/category tags (spec.md §4.3 "Video path").
func (e *Extractor) extractVideo(ctx context.Context, path string, meta *model.MediaMetadata) {
	duration, width, height, err := videofp.Probe(ctx, path)
	if err == nil && duration > 0 {
		meta.DurationSec = duration
		meta.Width, meta.Height = width, height
	}
	if t, ok := videofp.CreationTime(ctx, path); ok {
		meta.CaptureDate = t
	}

	keywords, tags := e.exiftoolKeywordsAndTags(path)
	meta.Keywords = keywords
	meta.Tags = tags
}

// extractAudio folds title/artist/album into tags and parses
// comma-separated keywords (spec.md §4.3 "Audio path").
func (e *Extractor) extractAudio(path string, meta *model.MediaMetadata) {
	et, err := sharedExiftool()
	if err != nil {
		return
	}
	fms := et.ExtractMetadata(path)
	if len(fms) != 1 || fms[0].Err != nil {
		return
	}
	fields := fms[0].Fields

	meta.DurationSec = parseDurationField(fields["Duration"])

	var tags []string
	for _, key := range []string{"Title", "Artist", "Album"} {
		if v, ok := stringField(fields, key); ok {
			tags = append(tags, v)
		}
	}
	meta.Tags = uniqueSorted(tags)

	if kw, ok := stringField(fields, "Keywords"); ok {
		meta.Keywords = uniqueSorted(splitComma(kw))
	}
}

// exiftoolKeywordsAndTags merges IPTC Keywords, Category, and
// SupplementalCategory into unique-sorted keyword/tag sets (spec.md §4.3).
func (e *Extractor) exiftoolKeywordsAndTags(path string) (keywords, tags []string) {
	et, err := sharedExiftool()
	if err != nil {
		return nil, nil
	}
	fms := et.ExtractMetadata(path)
	if len(fms) != 1 || fms[0].Err != nil {
		return nil, nil
	}
	fields := fms[0].Fields

	var kw []string
	if v, ok := stringField(fields, "Keywords"); ok {
		kw = append(kw, splitComma(v)...)
	}

	var tg []string
	if v, ok := stringField(fields, "Category"); ok {
		tg = append(tg, splitComma(v)...)
	}
	if v, ok := stringField(fields, "SupplementalCategories"); ok {
		tg = append(tg, splitComma(v)...)
	}

	return uniqueSorted(kw), uniqueSorted(tg)
}

func stringField(fields map[string]interface{}, key string) (string, bool) {
	v, ok := fields[key]
	if !ok || v == nil {
		return "", false
	}
	switch t := v.(type) {
	case string:
		if t == "" {
			return "", false
		}
		return t, true
	case []interface{}:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			parts = append(parts, fmt.Sprintf("%v", e))
		}
		joined := strings.Join(parts, ", ")
		return joined, joined != ""
	default:
		s := fmt.Sprintf("%v", t)
		return s, s != ""
	}
}

func splitComma(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func uniqueSorted(ss []string) []string {
	seen := make(map[string]bool, len(ss))
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	sort.Strings(out)
	if len(out) == 0 {
		return nil
	}
	return out
}

func parseDurationField(v interface{}) float64 {
	if v == nil {
		return 0
	}
	s := fmt.Sprintf("%v", v)
	if d, err := strconv.ParseFloat(s, 64); err == nil {
		return d
	}
	// exiftool often renders audio Duration as "3.45 s" or "0:03:45".
	s = strings.TrimSuffix(strings.TrimSpace(s), " s")
	if d, err := strconv.ParseFloat(s, 64); err == nil {
		return d
	}
	if parts := strings.Split(s, ":"); len(parts) == 3 {
		h, _ := strconv.ParseFloat(parts[0], 64)
		m, _ := strconv.ParseFloat(parts[1], 64)
		sec, _ := strconv.ParseFloat(parts[2], 64)
		return h*3600 + m*60 + sec
	}
	return 0
}

// exifPixelDims reads EXIF PixelXDimension/PixelYDimension when present,
// avoiding a full image decode for the common JPEG case.
func exifPixelDims(x *exif.Exif) (int, int, bool) {
	wTag, errW := x.Get(exif.PixelXDimension)
	hTag, errH := x.Get(exif.PixelYDimension)
	if errW != nil || errH != nil {
		return 0, 0, false
	}
	w, errW := wTag.Int(0)
	h, errH := hTag.Int(0)
	if errW != nil || errH != nil || w == 0 || h == 0 {
		return 0, 0, false
	}
	return w, h, true
}

// decodeDims falls back to image.DecodeConfig for formats without usable
// EXIF pixel-dimension tags. The wider codec set (webp/tiff/bmp) is
// registered by internal/imagehash's blank imports, which this binary
// always links alongside metadata extraction.
func decodeDims(path string) (int, int, bool) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, false
	}
	defer f.Close()
	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, 0, false
	}
	return cfg.Width, cfg.Height, true
}

// normalizeCaptureDate applies spec.md §4.3's fallback rule: a missing
// captureDate (extractPhoto/extractVideo found no reliable EXIF/ffprobe
// date — true for PNGs, audio, and any photo/video without embedded
// timestamps) falls back to createdAt, else modifiedAt.
func normalizeCaptureDate(meta *model.MediaMetadata) {
	if !meta.CaptureDate.IsZero() {
		return
	}
	if !meta.CreatedAt.IsZero() {
		meta.CaptureDate = meta.CreatedAt
		return
	}
	meta.CaptureDate = meta.ModifiedAt
}

// roundGPS rounds coordinates to 6 decimal places (spec.md §3 "MediaMetadata").
func roundGPS(meta *model.MediaMetadata) {
	if meta.GPSLat != nil {
		v := roundTo6(*meta.GPSLat)
		meta.GPSLat = &v
	}
	if meta.GPSLon != nil {
		v := roundTo6(*meta.GPSLon)
		meta.GPSLon = &v
	}
}

func roundTo6(f float64) float64 {
	const scale = 1e6
	if f >= 0 {
		return float64(int64(f*scale+0.5)) / scale
	}
	return float64(int64(f*scale-0.5)) / scale
}

// InferContentType runs the cascading content-type inference from spec.md
// §4.3: extension lookup with the fixed override table, then a magic-number
// scan of the first 16 bytes, then a decoder-probe fallback. Step 1 ("system
// provided identifier") has no cross-platform equivalent in Go's standard
// library — the core never has a host-supplied UTI to consult here, so the
// cascade begins at step 2.
func InferContentType(path string, class model.MediaClass) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ct, ok := contentTypeOverrides[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" && !isGenericSentinel(ct) {
		return ct
	}
	if ct, ok := sniffMagicNumber(path); ok {
		return ct
	}
	return probeContentType(path, class)
}

func isGenericSentinel(ct string) bool {
	_, sub, ok := strings.Cut(ct, "/")
	if !ok {
		sub = ct
	}
	return genericSentinels[strings.ToLower(sub)]
}

func sniffMagicNumber(path string) (string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return "", false
	}
	defer f.Close()
	buf := make([]byte, 16)
	n, _ := f.Read(buf)
	buf = buf[:n]

	if n >= 12 && bytes.Equal(buf[0:4], []byte("RIFF")) && bytes.Equal(buf[8:12], []byte("WEBP")) {
		return "image/webp", true
	}

	for _, entry := range magicTable {
		for _, prefix := range entry.prefixes {
			if len(buf) >= len(prefix) && bytes.Equal(buf[:len(prefix)], prefix) {
				return entry.mime, true
			}
		}
	}
	return "", false
}

// probeContentType is the last-resort step: try an image decode, then fall
// back to a class-derived generic type (spec.md §4.3 step 4).
func probeContentType(path string, class model.MediaClass) string {
	if f, err := os.Open(path); err == nil {
		defer f.Close()
		if _, format, err := image.DecodeConfig(f); err == nil {
			return "image/" + format
		}
	}
	switch class {
	case model.ClassVideo:
		return "video/octet-stream"
	case model.ClassAudio:
		return "audio/octet-stream"
	default:
		return "application/octet-stream"
	}
}
