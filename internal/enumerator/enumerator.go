// Package enumerator walks an authorized root directory and emits candidate
// media files (spec.md §4.2, component C2). It decides nothing about
// authorization — the host's folder-permission prompt subsystem supplies an
// already-validated root (spec.md §1, §9) — but it does decide exclusion,
// media-class detection, and incremental skip.
//
// Grounded on the teacher's getAllFiles (files.go), generalized from a
// single filepath.Walk pass over a fixed extension map into a rule-ordered
// exclusion pipeline over three media classes, and on the teacher's
// allowedExtensions set (utils.go), widened to spec.md §6's closed
// extension lists.
package enumerator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/user/mediadupe/internal/events"
	"github.com/user/mediadupe/internal/model"
	"github.com/user/mediadupe/internal/pipelineerr"
	"github.com/user/mediadupe/metadata"
)

// CandidateFile is the lazy sequence element spec.md §4.2 describes.
type CandidateFile struct {
	Path  string
	Class model.MediaClass
	Size  int64
	Mtime time.Time
	Ctime time.Time
	Inode uint64
}

// Rule is one composable, ordered exclusion test (spec.md §4.2 "Exclusion
// rules (composable, ordered)"). It receives the path and the base name and
// reports whether the path should be excluded.
type Rule func(path, base string) bool

// PrefixRule excludes paths with the given prefix.
func PrefixRule(prefix string) Rule {
	return func(path, base string) bool { return strings.HasPrefix(path, prefix) }
}

// SuffixRule excludes paths with the given suffix.
func SuffixRule(suffix string) Rule {
	return func(path, base string) bool { return strings.HasSuffix(path, suffix) }
}

// ContainsRule excludes paths containing substr.
func ContainsRule(substr string) Rule {
	return func(path, base string) bool { return strings.Contains(path, substr) }
}

// GlobRule excludes paths whose base name matches a shell glob pattern.
func GlobRule(pattern string) Rule {
	return func(path, base string) bool {
		ok, _ := filepath.Match(pattern, base)
		return ok
	}
}

// HiddenFileRule excludes dotfiles (spec.md §4.2 "hidden-file flag").
func HiddenFileRule() Rule {
	return func(path, base string) bool { return strings.HasPrefix(base, ".") }
}

var bundleExtensions = map[string]bool{".app": true, ".framework": true, ".bundle": true}

// isPackageBundle reports whether a directory name carries one of the
// package-bundle extensions the walk must never recurse into (spec.md §4.2).
func isPackageBundle(name string) bool {
	return bundleExtensions[strings.ToLower(filepath.Ext(name))]
}

var cloudSyncMarkers = []string{"icloud", "dropbox", "google drive", "onedrive", "box"}

// CloudSyncRootRule excludes known cloud-sync roots (spec.md §4.2).
func CloudSyncRootRule() Rule {
	return func(path, base string) bool {
		lower := strings.ToLower(path)
		for _, marker := range cloudSyncMarkers {
			if strings.Contains(lower, marker) {
				return true
			}
		}
		return false
	}
}

var managedLibraryMarkers = []string{"photos library.photoslibrary", ".lightroom", ".aperture", ".iphoto"}

// managedLibraryGuidance returns non-empty guidance text when path falls
// under a managed photo library the core refuses to touch (spec.md §1 "never
// modifies managed photo libraries", §4.2 "Managed-library refusal").
func managedLibraryGuidance(path string) string {
	lower := strings.ToLower(path)
	for _, marker := range managedLibraryMarkers {
		if strings.Contains(lower, marker) {
			return "this path is inside a managed photo library; point the scan at a plain folder of exported files instead"
		}
	}
	return ""
}

// DefaultRules returns the standard composable exclusion set (spec.md §4.2),
// in the order they're evaluated.
func DefaultRules() []Rule {
	return []Rule{HiddenFileRule(), CloudSyncRootRule()}
}

var photoExtensions = extensionSet(
	"jpg", "jpeg", "png", "heic", "heif", "tiff", "tif", "webp", "gif", "bmp",
	"raw", "cr2", "cr3", "nef", "nrw", "arw", "dng", "orf", "pef", "rw2", "sr2",
	"x3f", "erf", "raf", "dcr", "kdc", "mrw", "mos", "srw", "fff", "psd", "ai",
	"eps", "svg",
)

var videoExtensions = extensionSet(
	"mp4", "mov", "avi", "mkv", "wmv", "flv", "webm", "m4v", "3gp", "mts",
	"m2ts", "ogv", "prores", "dnxhd", "xdcam", "xavc", "r3d", "ari", "arri",
)

var audioExtensions = extensionSet(
	"mp3", "wav", "aac", "m4a", "flac", "ogg", "oga", "opus", "alac", "ape",
	"wv", "tak", "tta", "aiff", "aif", "au", "ra", "rm", "wma", "ac3", "dts",
	"mpc", "spx", "vorbis", "amr", "3ga",
)

func extensionSet(exts ...string) map[string]bool {
	m := make(map[string]bool, len(exts))
	for _, e := range exts {
		m["."+e] = true
	}
	return m
}

// ClassifyExtension maps a file extension to its media class by the closed
// sets in spec.md §6, primary detection per spec.md §4.2.
func ClassifyExtension(ext string) (model.MediaClass, bool) {
	ext = strings.ToLower(ext)
	switch {
	case photoExtensions[ext]:
		return model.ClassPhoto, true
	case videoExtensions[ext]:
		return model.ClassVideo, true
	case audioExtensions[ext]:
		return model.ClassAudio, true
	default:
		return model.ClassUnknown, false
	}
}

// classifyByContentType is the fallback detection path spec.md §4.2
// describes: a file whose extension misses every closed set (a renamed
// export, a missing/unknown suffix) is still accepted when its sniffed
// content-type conforms to the image/movie/audio hierarchy. It reuses
// metadata's extension-override, magic-number, and decode-probe cascade
// rather than duplicating that table here.
func classifyByContentType(path string) (model.MediaClass, bool) {
	ct := metadata.InferContentType(path, model.ClassUnknown)
	switch {
	case strings.HasPrefix(ct, "image/"):
		return model.ClassPhoto, true
	case strings.HasPrefix(ct, "video/"):
		return model.ClassVideo, true
	case strings.HasPrefix(ct, "audio/"):
		return model.ClassAudio, true
	default:
		return model.ClassUnknown, false
	}
}

// SkipChecker matches FileIndex.ShouldSkip (spec.md §4.1) without importing
// the fileindex package directly, keeping Enumerator decoupled from how the
// index is stored.
type SkipChecker func(ctx context.Context, path string, cutoff time.Time, size int64, mtime time.Time) (bool, error)

// Options configures a single Walk call (spec.md §4.2, §6).
type Options struct {
	Rules               []Rule
	FollowSymlinks      bool
	Incremental         bool
	IncrementalLookback time.Duration
	SkipCheck           SkipChecker // required when Incremental is true
}

func DefaultOptions() Options {
	return Options{
		Rules:               DefaultRules(),
		FollowSymlinks:      false,
		Incremental:         false,
		IncrementalLookback: 24 * time.Hour,
	}
}

// Walk enumerates root and streams results on the returned channels: ev
// carries the lifecycle events (Started/Progress/Skipped/Error/Finished),
// files carries each CandidateFile that passed every filter (spec.md §4.2
// "Events emitted"). Both channels close when the walk finishes or ctx is
// cancelled. Single-producer per root (spec.md §4.2 "Concurrency"); callers
// enumerating multiple roots call Walk once per root, concurrently if
// desired — this package imposes no cross-root ordering.
func Walk(ctx context.Context, root string, opts Options) (<-chan CandidateFile, <-chan events.Event) {
	files := make(chan CandidateFile, 64)
	ev := make(chan events.Event, 64)

	go func() {
		defer close(files)
		defer close(ev)

		emit := func(e events.Event) {
			e.At = time.Now()
			select {
			case ev <- e:
			case <-ctx.Done():
			}
		}

		emit(events.Event{Kind: events.KindStarted, Path: root})

		var metrics events.Metrics
		cutoff := time.Now().Add(-opts.IncrementalLookback)

		walkErr := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if err != nil {
				metrics.FilesErrored++
				emit(events.Event{Kind: events.KindError, Path: path, Reason: err.Error(), Err: pipelineerr.AccessDenied(path, err)})
				return nil
			}

			base := info.Name()

			if info.IsDir() {
				if path != root && isPackageBundle(base) {
					return filepath.SkipDir
				}
				if guidance := managedLibraryGuidance(path); guidance != "" {
					emit(events.Event{Kind: events.KindError, Path: path, Reason: guidance,
						Err: pipelineerr.ManagedLibraryRefusal(path, guidance)})
					return filepath.SkipDir
				}
				return nil
			}

			if info.Mode()&os.ModeSymlink != 0 && !opts.FollowSymlinks {
				return nil
			}

			for _, rule := range opts.Rules {
				if rule(path, base) {
					metrics.FilesSkipped++
					emit(events.Event{Kind: events.KindSkipped, Path: path, Reason: "excluded by rule"})
					return nil
				}
			}

			class, ok := ClassifyExtension(filepath.Ext(base))
			if !ok {
				class, ok = classifyByContentType(path)
			}
			if !ok {
				metrics.FilesSkipped++
				emit(events.Event{Kind: events.KindSkipped, Path: path, Reason: "unsupported media type"})
				return nil
			}

			metrics.FilesEnumerated++
			if metrics.FilesEnumerated%100 == 0 {
				emit(events.Event{Kind: events.KindProgress, Count: metrics.FilesEnumerated})
			}

			if opts.Incremental && opts.SkipCheck != nil {
				skip, err := opts.SkipCheck(ctx, path, cutoff, info.Size(), info.ModTime())
				if err != nil {
					metrics.FilesErrored++
					emit(events.Event{Kind: events.KindError, Path: path, Reason: err.Error(), Err: pipelineerr.IndexConflict(err)})
					return nil
				}
				if skip {
					metrics.FilesSkipped++
					emit(events.Event{Kind: events.KindSkipped, Path: path, Reason: "unchanged since last scan"})
					return nil
				}
			}

			cand := CandidateFile{
				Path:  path,
				Class: class,
				Size:  info.Size(),
				Mtime: info.ModTime(),
				Ctime: creationTime(info),
				Inode: inodeOf(info),
			}

			metrics.FilesIndexed++
			emit(events.Event{Kind: events.KindItem, Path: path})
			select {
			case files <- cand:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		})

		if walkErr != nil && ctx.Err() == nil {
			emit(events.Event{Kind: events.KindError, Path: root, Reason: walkErr.Error(), Err: walkErr})
		}

		emit(events.Event{Kind: events.KindFinished, Metrics: &metrics})
	}()

	return files, ev
}
