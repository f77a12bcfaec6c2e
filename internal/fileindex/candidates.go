package fileindex

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/user/mediadupe/internal/model"
)

// CandidateRow is one row streamed to GroupBuilder: a file joined with
// whatever signature/metadata rows it has (spec.md §4.1 fetch_candidates).
type CandidateRow struct {
	File           model.File
	Metadata       model.MediaMetadata
	HasMetadata    bool
	ImageSignature model.ImageSignature
	HasImageSig    bool
	VideoSignature model.VideoSignature
	HasVideoSig    bool
}

// CandidateCriteria narrows fetch_candidates (spec.md §4.1): dimension and
// duration ranges, and a dHash-prefix bucket for the coarse grouping key.
type CandidateCriteria struct {
	MinWidth, MaxWidth   int
	MinHeight, MaxHeight int
	MinDuration          float64
	MaxDuration          float64
	DHashPrefix          *uint16 // top 16 bits of dHash, when bucketing by it
}

// FetchCandidates streams rows of the given class matching criteria. The
// spec models this as an iterator; here it is a channel fed by a background
// goroutine so callers can range over it and stop early by cancelling ctx.
func (fi *FileIndex) FetchCandidates(ctx context.Context, class model.MediaClass, criteria CandidateCriteria) (<-chan CandidateRow, <-chan error) {
	out := make(chan CandidateRow, 64)
	errc := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errc)

		rows, err := fi.db.QueryContext(ctx, `
			SELECT f.id, f.path, f.size, f.inode, f.created_at, f.modified_at, f.class, f.content_type, f.last_scanned
			FROM files f WHERE f.class = ? ORDER BY f.id`, class.String())
		if err != nil {
			errc <- fmt.Errorf("fileindex: fetch_candidates: %w", err)
			return
		}
		defer rows.Close()

		for rows.Next() {
			if ctx.Err() != nil {
				errc <- ctx.Err()
				return
			}

			var (
				f                     model.File
				classStr              string
				createdAt, modifiedAt int64
				lastScanned           int64
				idStr                 string
			)
			if err := rows.Scan(&idStr, &f.Path, &f.Size, &f.Inode, &createdAt, &modifiedAt, &classStr, &f.ContentType, &lastScanned); err != nil {
				errc <- fmt.Errorf("fileindex: scanning candidate row: %w", err)
				return
			}
			f.ID = uuid.MustParse(idStr)
			f.Class = parseMediaClass(classStr)

			row := CandidateRow{File: f}

			if meta, ok, err := fi.GetMetadata(ctx, f.ID); err == nil && ok {
				if !withinRange(meta.Width, criteria.MinWidth, criteria.MaxWidth) ||
					!withinRange(meta.Height, criteria.MinHeight, criteria.MaxHeight) ||
					!withinRangeF(meta.DurationSec, criteria.MinDuration, criteria.MaxDuration) {
					continue
				}
				row.Metadata = meta
				row.HasMetadata = true
			}

			if sig, ok, err := fi.getImageSignature(ctx, f.ID, model.AlgorithmDHash); err == nil && ok {
				if criteria.DHashPrefix != nil && uint16(sig.Hash>>48) != *criteria.DHashPrefix {
					continue
				}
				row.ImageSignature = sig
				row.HasImageSig = true
			}

			if sig, ok, err := fi.getVideoSignature(ctx, f.ID); err == nil && ok {
				row.VideoSignature = sig
				row.HasVideoSig = true
			}

			select {
			case out <- row:
			case <-ctx.Done():
				errc <- ctx.Err()
				return
			}
		}
		if err := rows.Err(); err != nil {
			errc <- fmt.Errorf("fileindex: iterating candidates: %w", err)
		}
	}()

	return out, errc
}

func withinRange(v, lo, hi int) bool {
	if lo == 0 && hi == 0 {
		return true
	}
	return v >= lo && (hi == 0 || v <= hi)
}

func withinRangeF(v, lo, hi float64) bool {
	if lo == 0 && hi == 0 {
		return true
	}
	return v >= lo && (hi == 0 || v <= hi)
}

func (fi *FileIndex) getImageSignature(ctx context.Context, fileID uuid.UUID, algo model.HashAlgorithm) (model.ImageSignature, bool, error) {
	var (
		sig        model.ImageSignature
		hash       int64
		computedAt int64
	)
	err := fi.db.QueryRowContext(ctx, `
		SELECT hash, width, height, computed_at FROM image_signatures WHERE file_id = ? AND algorithm = ?`,
		fileID.String(), algo.String(),
	).Scan(&hash, &sig.Width, &sig.Height, &computedAt)
	if err != nil {
		return model.ImageSignature{}, false, nil
	}
	sig.FileID = fileID
	sig.Algorithm = algo
	sig.Hash = uint64(hash)
	return sig, true, nil
}

func (fi *FileIndex) getVideoSignature(ctx context.Context, fileID uuid.UUID) (model.VideoSignature, bool, error) {
	var (
		sig            model.VideoSignature
		frames, times  string
		incompleteFlag int
	)
	err := fi.db.QueryRowContext(ctx, `
		SELECT duration_sec, width, height, frame_hashes, sample_times, incomplete
		FROM video_signatures WHERE file_id = ?`, fileID.String(),
	).Scan(&sig.DurationSec, &sig.Width, &sig.Height, &frames, &times, &incompleteFlag)
	if err != nil {
		return model.VideoSignature{}, false, nil
	}
	sig.FileID = fileID
	sig.Incomplete = incompleteFlag != 0
	_ = json.Unmarshal([]byte(frames), &sig.FrameHashes)
	_ = json.Unmarshal([]byte(times), &sig.SampleTimesSec)
	return sig, true, nil
}
