package videofp

import (
	"bytes"
	"context"
	"image"
	_ "image/png"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/user/mediadupe/internal/imagehash"
	"github.com/user/mediadupe/internal/model"
	"github.com/user/mediadupe/internal/pipelineerr"
)

// Options configures sampling (spec.md §4.5, §6).
type Options struct {
	ShortThresholdSec float64 // default 2.0
	EndOffsetSec      float64 // default 1.0
	MaxFrameDimension int     // default 720
	FrameDecodeTimeout time.Duration // default 5s, spec.md §5 timeouts
}

func DefaultOptions() Options {
	return Options{
		ShortThresholdSec:  2.0,
		EndOffsetSec:       1.0,
		MaxFrameDimension:  720,
		FrameDecodeTimeout: 5 * time.Second,
	}
}

// samplePoints implements the sampling policy in spec.md §4.5: a single
// midpoint frame for short clips (duration == threshold counts as short,
// spec.md §8 boundary case), else start/middle/end.
func samplePoints(duration float64, opts Options) []float64 {
	if duration <= opts.ShortThresholdSec {
		return []float64{duration / 2}
	}
	end := duration - opts.EndOffsetSec
	if end < 0 {
		end = 0
	}
	return []float64{0, duration / 2, end}
}

// Fingerprint samples and hashes path's frames, returning a VideoSignature.
// Each frame decode is bounded by FrameDecodeTimeout; a frame that times out
// or fails to decode contributes no hash and marks the signature incomplete
// (spec.md §5).
func Fingerprint(ctx context.Context, path string, opts Options) (model.VideoSignature, error) {
	duration, width, height, err := probe(ctx, path)
	if err != nil {
		return model.VideoSignature{}, err
	}

	times := samplePoints(duration, opts)
	hashes := make([]uint64, len(times))
	ok := make([]bool, len(times))

	g, gctx := errgroup.WithContext(ctx)
	for i, t := range times {
		i, t := i, t
		g.Go(func() error {
			frameCtx, cancel := context.WithTimeout(gctx, opts.FrameDecodeTimeout)
			defer cancel()

			png, err := extractFrame(frameCtx, path, t, opts.MaxFrameDimension)
			if err != nil {
				return nil // recorded as incomplete below, not fatal to the group
			}
			img, _, err := image.Decode(bytes.NewReader(png))
			if err != nil {
				return nil
			}
			h, err := imagehash.HashImage(img)
			if err != nil {
				return nil
			}
			hashes[i] = h
			ok[i] = true
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.VideoSignature{}, pipelineerr.DecodeFailure(path, "videofp", err)
	}

	var outHashes []uint64
	var outTimes []float64
	incomplete := false
	for i := range times {
		if ok[i] {
			outHashes = append(outHashes, hashes[i])
			outTimes = append(outTimes, times[i])
		} else {
			incomplete = true
		}
	}

	return model.VideoSignature{
		DurationSec:    duration,
		Width:          width,
		Height:         height,
		FrameHashes:    outHashes,
		SampleTimesSec: outTimes,
		Incomplete:     incomplete || len(outHashes) == 0,
	}, nil
}
