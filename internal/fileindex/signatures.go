package fileindex

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/user/mediadupe/internal/model"
)

// SaveImageSignature is an idempotent upsert keyed by (fileId, algorithm)
// (spec.md §3 ImageSignature invariant, §4.1).
func (fi *FileIndex) SaveImageSignature(ctx context.Context, fileID uuid.UUID, sig model.ImageSignature) error {
	return withRetry(ctx, func() error {
		_, err := fi.db.ExecContext(ctx, `
			INSERT INTO image_signatures (file_id, algorithm, hash, width, height, computed_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(file_id, algorithm) DO UPDATE SET
				hash = excluded.hash,
				width = excluded.width,
				height = excluded.height,
				computed_at = excluded.computed_at
		`, fileID.String(), sig.Algorithm.String(), int64(sig.Hash), sig.Width, sig.Height, time.Now().Unix())
		if err != nil {
			return fmt.Errorf("fileindex: save_image_signature %s: %w", fileID, err)
		}
		return nil
	})
}

// SaveVideoSignature is an idempotent upsert keyed by fileId.
func (fi *FileIndex) SaveVideoSignature(ctx context.Context, fileID uuid.UUID, sig model.VideoSignature) error {
	frames, err := json.Marshal(sig.FrameHashes)
	if err != nil {
		return fmt.Errorf("fileindex: encoding frame hashes: %w", err)
	}
	times, err := json.Marshal(sig.SampleTimesSec)
	if err != nil {
		return fmt.Errorf("fileindex: encoding sample times: %w", err)
	}

	return withRetry(ctx, func() error {
		_, err := fi.db.ExecContext(ctx, `
			INSERT INTO video_signatures (file_id, duration_sec, width, height, frame_hashes, sample_times, incomplete)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(file_id) DO UPDATE SET
				duration_sec = excluded.duration_sec,
				width = excluded.width,
				height = excluded.height,
				frame_hashes = excluded.frame_hashes,
				sample_times = excluded.sample_times,
				incomplete = excluded.incomplete
		`, fileID.String(), sig.DurationSec, sig.Width, sig.Height, string(frames), string(times), boolToInt(sig.Incomplete))
		if err != nil {
			return fmt.Errorf("fileindex: save_video_signature %s: %w", fileID, err)
		}
		return nil
	})
}

// SaveMetadata replaces the metadata row for fileID (spec.md §4.1).
func (fi *FileIndex) SaveMetadata(ctx context.Context, fileID uuid.UUID, meta model.MediaMetadata) error {
	keywords, err := json.Marshal(meta.Keywords)
	if err != nil {
		return fmt.Errorf("fileindex: encoding keywords: %w", err)
	}
	tags, err := json.Marshal(meta.Tags)
	if err != nil {
		return fmt.Errorf("fileindex: encoding tags: %w", err)
	}

	return withRetry(ctx, func() error {
		_, err := fi.db.ExecContext(ctx, `
			INSERT INTO metadata (
				file_id, file_name, file_size, media_class, created_at, modified_at, capture_date,
				width, height, duration_sec, camera_model, gps_lat, gps_lon, keywords, tags, content_type
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(file_id) DO UPDATE SET
				file_name = excluded.file_name,
				file_size = excluded.file_size,
				media_class = excluded.media_class,
				created_at = excluded.created_at,
				modified_at = excluded.modified_at,
				capture_date = excluded.capture_date,
				width = excluded.width,
				height = excluded.height,
				duration_sec = excluded.duration_sec,
				camera_model = excluded.camera_model,
				gps_lat = excluded.gps_lat,
				gps_lon = excluded.gps_lon,
				keywords = excluded.keywords,
				tags = excluded.tags,
				content_type = excluded.content_type
		`, fileID.String(), meta.FileName, meta.FileSize, meta.MediaClass.String(),
			meta.CreatedAt.Unix(), meta.ModifiedAt.Unix(), meta.CaptureDate.Unix(),
			meta.Width, meta.Height, meta.DurationSec, meta.CameraModel,
			nullableFloat(meta.GPSLat), nullableFloat(meta.GPSLon),
			string(keywords), string(tags), meta.ContentType)
		if err != nil {
			return fmt.Errorf("fileindex: save_metadata %s: %w", fileID, err)
		}
		return nil
	})
}

// GetMetadata returns the metadata row for fileID, if any.
func (fi *FileIndex) GetMetadata(ctx context.Context, fileID uuid.UUID) (model.MediaMetadata, bool, error) {
	var (
		meta                  model.MediaMetadata
		classStr              string
		createdAt, modifiedAt int64
		captureDate           int64
		gpsLat, gpsLon        *float64
		keywords, tags        string
	)
	err := fi.db.QueryRowContext(ctx, `
		SELECT file_name, file_size, media_class, created_at, modified_at, capture_date,
			width, height, duration_sec, camera_model, gps_lat, gps_lon, keywords, tags, content_type
		FROM metadata WHERE file_id = ?`, fileID.String(),
	).Scan(&meta.FileName, &meta.FileSize, &classStr, &createdAt, &modifiedAt, &captureDate,
		&meta.Width, &meta.Height, &meta.DurationSec, &meta.CameraModel, &gpsLat, &gpsLon, &keywords, &tags, &meta.ContentType)
	if err != nil {
		return model.MediaMetadata{}, false, nil
	}
	meta.FileID = fileID
	meta.MediaClass = parseMediaClass(classStr)
	meta.CreatedAt = time.Unix(createdAt, 0).UTC()
	meta.ModifiedAt = time.Unix(modifiedAt, 0).UTC()
	meta.CaptureDate = time.Unix(captureDate, 0).UTC()
	meta.GPSLat = gpsLat
	meta.GPSLon = gpsLon
	_ = json.Unmarshal([]byte(keywords), &meta.Keywords)
	_ = json.Unmarshal([]byte(tags), &meta.Tags)
	return meta, true, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
