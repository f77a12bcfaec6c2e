package fileindex

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/user/mediadupe/internal/model"
)

// UpsertFile matches an existing row by path first, then by (inode, size),
// updates mutable fields, and returns the stable id (spec.md §4.1).
func (fi *FileIndex) UpsertFile(ctx context.Context, path string, size int64, inode uint64, mtime, ctime time.Time, class model.MediaClass, contentType string) (uuid.UUID, error) {
	var id uuid.UUID
	err := withRetry(ctx, func() error {
		tx, err := fi.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		var existing string
		err = tx.QueryRowContext(ctx, `SELECT id FROM files WHERE path = ?`, path).Scan(&existing)
		switch {
		case err == nil:
			id = uuid.MustParse(existing)
		case errors.Is(err, sql.ErrNoRows):
			if inode != 0 {
				err = tx.QueryRowContext(ctx, `SELECT id FROM files WHERE inode = ? AND size = ?`, inode, size).Scan(&existing)
			}
			switch {
			case err == nil:
				id = uuid.MustParse(existing)
			case errors.Is(err, sql.ErrNoRows), inode == 0:
				id = uuid.New()
			default:
				return err
			}
		default:
			return err
		}

		now := time.Now()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO files (id, path, size, inode, created_at, modified_at, class, content_type, last_scanned)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				path = excluded.path,
				size = excluded.size,
				inode = excluded.inode,
				modified_at = excluded.modified_at,
				class = excluded.class,
				content_type = excluded.content_type,
				last_scanned = excluded.last_scanned
		`, id.String(), path, size, inode, ctime.Unix(), mtime.Unix(), class.String(), contentType, now.Unix())
		if err != nil {
			return err
		}

		return tx.Commit()
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("fileindex: upsert_file %s: %w", path, err)
	}
	return id, nil
}

// ShouldSkip reports whether path has a row whose last-scanned timestamp is
// at or after cutoff and whose mtime/size are unchanged (spec.md §4.1).
// A last-scanned timestamp exactly equal to cutoff is a skip; mtime and size
// are only compared for equality with the stored row, never against cutoff.
func (fi *FileIndex) ShouldSkip(ctx context.Context, path string, cutoff time.Time, size int64, mtime time.Time) (bool, error) {
	var lastScanned, rowSize, rowMtime int64
	err := fi.db.QueryRowContext(ctx,
		`SELECT last_scanned, size, modified_at FROM files WHERE path = ?`, path,
	).Scan(&lastScanned, &rowSize, &rowMtime)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("fileindex: should_skip %s: %w", path, err)
	}
	if lastScanned < cutoff.Unix() {
		return false, nil
	}
	return rowSize == size && rowMtime == mtime.Unix(), nil
}

// ResolveURL is the reverse lookup from a file id to its current path
// (spec.md §4.1 resolve_url).
func (fi *FileIndex) ResolveURL(ctx context.Context, id uuid.UUID) (string, bool, error) {
	var path string
	err := fi.db.QueryRowContext(ctx, `SELECT path FROM files WHERE id = ?`, id.String()).Scan(&path)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("fileindex: resolve_url %s: %w", id, err)
	}
	return path, true, nil
}

// GetFile returns the File row for id.
func (fi *FileIndex) GetFile(ctx context.Context, id uuid.UUID) (model.File, bool, error) {
	var (
		f                      model.File
		classStr               string
		createdAt, modifiedAt  int64
		lastScanned            int64
	)
	err := fi.db.QueryRowContext(ctx, `
		SELECT id, path, size, inode, created_at, modified_at, class, content_type, last_scanned
		FROM files WHERE id = ?`, id.String(),
	).Scan(&f.ID, &f.Path, &f.Size, &f.Inode, &createdAt, &modifiedAt, &classStr, &f.ContentType, &lastScanned)
	if errors.Is(err, sql.ErrNoRows) {
		return model.File{}, false, nil
	}
	if err != nil {
		return model.File{}, false, fmt.Errorf("fileindex: get_file %s: %w", id, err)
	}
	f.ID = id
	f.CreatedAt = time.Unix(createdAt, 0).UTC()
	f.ModifiedAt = time.Unix(modifiedAt, 0).UTC()
	f.LastScanned = time.Unix(lastScanned, 0).UTC()
	f.Class = parseMediaClass(classStr)
	return f, true, nil
}

func parseMediaClass(s string) model.MediaClass {
	switch s {
	case "photo":
		return model.ClassPhoto
	case "video":
		return model.ClassVideo
	case "audio":
		return model.ClassAudio
	default:
		return model.ClassUnknown
	}
}
