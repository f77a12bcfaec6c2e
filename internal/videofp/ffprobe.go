// Package videofp samples and fingerprints video files (spec.md §4.5,
// component C5). No Go-native video decoder appeared anywhere in the
// retrieved example pack, so frame sampling shells out to ffmpeg/ffprobe via
// os/exec exactly as the teacher's getVideoCreationDate does for container
// metadata — the one ambient concern in this module that stays on the
// standard library plus external binaries, documented in DESIGN.md.
package videofp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"time"

	"github.com/user/mediadupe/internal/pipelineerr"
)

type probeFormat struct {
	Duration string            `json:"duration"`
	Tags     map[string]string `json:"tags"`
}

type probeStream struct {
	CodecType string            `json:"codec_type"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Rotation  string            `json:"rotation"`
	Tags      map[string]string `json:"tags"`
}

type probeResult struct {
	Format  probeFormat   `json:"format"`
	Streams []probeStream `json:"streams"`
}

// Probe exposes the duration/dimensions probe for callers outside this
// package (metadata.Extract uses it for VideoMetadata's duration and pixel
// dimensions, so both components shell out to ffprobe the same way instead
// of each parsing its JSON independently).
func Probe(ctx context.Context, path string) (durationSec float64, width, height int, err error) {
	return probe(ctx, path)
}

// probe shells to `ffprobe -show_format -show_streams -print_format json`,
// the same invocation shape as the teacher's getVideoCreationDate.
func probe(ctx context.Context, path string) (durationSec float64, width, height int, err error) {
	result, err := rawProbe(ctx, path)
	if err != nil {
		return 0, 0, 0, err
	}

	durationSec, _ = strconv.ParseFloat(result.Format.Duration, 64)
	if durationSec <= 0 {
		return 0, 0, 0, pipelineerr.DecodeFailure(path, "ffprobe-duration", fmt.Errorf("non-positive duration"))
	}

	for _, s := range result.Streams {
		if s.CodecType == "video" {
			width, height = absDims(s.Width, s.Height, s.Rotation)
			break
		}
	}
	if width == 0 || height == 0 {
		return 0, 0, 0, pipelineerr.DecodeFailure(path, "ffprobe-dims", fmt.Errorf("no video stream"))
	}

	return durationSec, width, height, nil
}

// rawProbe runs the ffprobe invocation probe and CreationTime both need and
// decodes its JSON output once.
func rawProbe(ctx context.Context, path string) (probeResult, error) {
	cmd := exec.CommandContext(ctx, "ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format", "-show_streams",
		path,
	)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if runErr := cmd.Run(); runErr != nil {
		return probeResult{}, pipelineerr.DecodeFailure(path, "ffprobe", runErr)
	}

	var result probeResult
	if jsonErr := json.Unmarshal(stdout.Bytes(), &result); jsonErr != nil {
		return probeResult{}, pipelineerr.DecodeFailure(path, "ffprobe-json", jsonErr)
	}
	return result, nil
}

// creationTimeTags are the container/stream tag keys that carry a capture
// timestamp, tried in order of reliability (spec.md §4.3 "Video path").
var creationTimeTags = []string{"creation_time", "com.apple.quicktime.creationdate", "date"}

// creationTimeLayouts are the date formats seen across container formats
// (ISO 8601 with/without offset, space-separated, and the legacy EXIF-style
// stamp some muxers copy through from source cameras).
var creationTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006:01:02 15:04:05",
}

// CreationTime extracts the best available capture timestamp from a video
// container's format/stream tags (spec.md §4.3 "Video path"), generalizing
// the teacher's getVideoCreationDate multi-field, multi-format date parse
// into this package's own ffprobe invocation.
func CreationTime(ctx context.Context, path string) (time.Time, bool) {
	result, err := rawProbe(ctx, path)
	if err != nil {
		return time.Time{}, false
	}

	for _, key := range creationTimeTags {
		if t, ok := parseTagDate(result.Format.Tags[key]); ok {
			return t, true
		}
	}
	for _, s := range result.Streams {
		for _, key := range creationTimeTags {
			if t, ok := parseTagDate(s.Tags[key]); ok {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func parseTagDate(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range creationTimeLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// absDims applies the video track's preferred rotation transform and
// returns absolute (width, height), per spec.md §4.3 "natural dimensions of
// the first video track after applying preferred transform (absolute
// values)".
func absDims(w, h int, rotation string) (int, int) {
	switch rotation {
	case "90", "-90", "270", "-270":
		return h, w
	default:
		return w, h
	}
}

// extractFrame shells to ffmpeg to decode a single frame at timeSec, scaled
// to maxDim on its longest side, emitted as a PNG on stdout.
func extractFrame(ctx context.Context, path string, timeSec float64, maxDim int) ([]byte, error) {
	scale := fmt.Sprintf("scale='if(gt(iw,ih),%d,-2)':'if(gt(iw,ih),-2,%d)'", maxDim, maxDim)
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-ss", strconv.FormatFloat(timeSec, 'f', 3, 64),
		"-i", path,
		"-frames:v", "1",
		"-vf", scale,
		"-f", "image2pipe",
		"-vcodec", "png",
		"-loglevel", "quiet",
		"-",
	)
	var stdout bytes.Buffer
	cmd.Stdout = &stdout

	if err := cmd.Run(); err != nil {
		return nil, pipelineerr.DecodeFailure(path, "ffmpeg-frame", err)
	}
	if stdout.Len() == 0 {
		return nil, pipelineerr.DecodeFailure(path, "ffmpeg-frame", fmt.Errorf("empty frame at t=%.3f", timeSec))
	}
	return stdout.Bytes(), nil
}
