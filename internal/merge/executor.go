package merge

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	exiftool "github.com/barasher/go-exiftool"
	"github.com/google/uuid"

	"github.com/user/mediadupe/internal/diskspace"
	"github.com/user/mediadupe/internal/fileindex"
	"github.com/user/mediadupe/internal/model"
	"github.com/user/mediadupe/internal/pipelineerr"
	"github.com/user/mediadupe/internal/trash"
)

// Policies bounds how Execute mutates the filesystem (spec.md §6 policies.*).
type Policies struct {
	MoveToTrash         bool
	RetentionDays       int
	RequireConfirmation bool
}

func DefaultPolicies() Policies {
	return Policies{MoveToTrash: true, RetentionDays: 30, RequireConfirmation: true}
}

// Result mirrors the spec's MergeResult shape, returned identically whether
// or not the run was a dry-run (spec.md §4.8 "returns the same MergeResult
// shape with wasDryRun = true").
type Result struct {
	TransactionID int64
	GroupID       string
	KeeperFileID  uuid.UUID
	TrashedFiles  map[uuid.UUID]string // fileID -> trash path, empty on permanent delete
	MergedFields  []FieldChange
	WasDryRun     bool
	Partial       bool
	Failed        bool
	FailureReason string
}

// Executor runs a validated Plan against the filesystem and the index
// (spec.md §4.8, component C8).
type Executor struct {
	index    *fileindex.FileIndex
	staging  *trash.Staging
	policies Policies
}

func NewExecutor(index *fileindex.FileIndex, staging *trash.Staging, policies Policies) *Executor {
	return &Executor{index: index, staging: staging, policies: policies}
}

// Execute runs plan's preflight checks and, unless dryRun, performs the
// atomic EXIF write, trash moves, and transaction recording described in
// spec.md §4.8's "single hardest invariant" sequence.
func (e *Executor) Execute(ctx context.Context, plan Plan, resolvePath func(uuid.UUID) (string, error), dryRun bool) (Result, error) {
	keeperPath, err := resolvePath(plan.KeeperFileID)
	if err != nil {
		return Result{}, pipelineerr.NotFound(keeperPath)
	}
	if err := preflight(plan, keeperPath, resolvePath); err != nil {
		return Result{}, err
	}

	if dryRun {
		return Result{
			GroupID:      plan.GroupID,
			KeeperFileID: plan.KeeperFileID,
			MergedFields: plan.FieldChanges,
			WasDryRun:    true,
		}, nil
	}

	snapshot, err := json.Marshal(plan.KeeperMetadata)
	if err != nil {
		return Result{}, fmt.Errorf("merge: snapshotting keeper metadata: %w", err)
	}

	if len(plan.ExifWrites) > 0 {
		if err := atomicExifWrite(keeperPath, plan.ExifWrites); err != nil {
			return Result{}, pipelineerr.AtomicWriteFailed(keeperPath, err)
		}
	}

	trashed := make(map[uuid.UUID]string, len(plan.TrashList))
	var firstFailure error
	for _, loserID := range plan.TrashList {
		if firstFailure != nil {
			break // spec.md §4.8 step 3: abort remaining deletions after a failure
		}
		loserPath, err := resolvePath(loserID)
		if err != nil {
			firstFailure = pipelineerr.NotFound(loserPath)
			continue
		}

		if e.policies.MoveToTrash {
			dest, err := e.staging.Move(loserPath)
			if err != nil {
				firstFailure = err
				continue
			}
			trashed[loserID] = dest
		} else {
			if err := trash.PermanentlyDelete(loserPath); err != nil {
				firstFailure = err
				continue
			}
		}
	}

	now := time.Now()
	state := model.TxCommitted
	if firstFailure != nil {
		state = model.TxFailed
	}

	txID, recErr := e.index.RecordTransaction(ctx, model.MergeTransaction{
		GroupID:              plan.GroupID,
		KeeperFileID:         plan.KeeperFileID,
		RemovedFileIDs:       mapKeys(trashed),
		CreatedAt:            now,
		UndoDeadline:         now.Add(time.Duration(e.policies.RetentionDays) * 24 * time.Hour),
		MetadataSnapshotJSON: string(snapshot),
		State:                state,
		MovedToTrash:         e.policies.MoveToTrash,
	})
	if recErr != nil {
		return Result{}, recErr
	}

	return Result{
		TransactionID: txID,
		GroupID:       plan.GroupID,
		KeeperFileID:  plan.KeeperFileID,
		TrashedFiles:  trashed,
		MergedFields:  plan.FieldChanges,
		Failed:        firstFailure != nil,
		FailureReason: errString(firstFailure),
	}, nil
}

// Undo restores the keeper's pre-merge metadata and reports the trashed
// losers as still staged for manual recovery (spec.md §4.8 undo).
func (e *Executor) Undo(ctx context.Context, resolvePath func(uuid.UUID) (string, error)) (Result, error) {
	mt, err := e.index.UndoLastTransaction(ctx)
	if err != nil {
		return Result{}, err
	}
	if mt == nil {
		return Result{}, pipelineerr.TransactionNotFound()
	}

	var meta model.MediaMetadata
	if err := json.Unmarshal([]byte(mt.MetadataSnapshotJSON), &meta); err != nil {
		return Result{}, pipelineerr.IncompleteTransaction("metadata snapshot unreadable")
	}

	keeperPath, err := resolvePath(mt.KeeperFileID)
	if err != nil {
		return Result{}, pipelineerr.NotFound(keeperPath)
	}

	writes := restoreWrites(meta)
	if len(writes) > 0 {
		if err := atomicExifWrite(keeperPath, writes); err != nil {
			return Result{}, pipelineerr.AtomicWriteFailed(keeperPath, err)
		}
	}

	partial := !mt.MovedToTrash

	return Result{
		TransactionID: mt.ID,
		GroupID:       mt.GroupID,
		KeeperFileID:  mt.KeeperFileID,
		Partial:       partial,
	}, nil
}

func restoreWrites(meta model.MediaMetadata) map[string]string {
	writes := make(map[string]string)
	if meta.GPSLat != nil && meta.GPSLon != nil {
		writes["GPSLatitude"] = formatFloat(*meta.GPSLat)
		writes["GPSLongitude"] = formatFloat(*meta.GPSLon)
	}
	if meta.CameraModel != "" {
		writes["Model"] = meta.CameraModel
	}
	return writes
}

// preflight checks keeper path writable, every loser path readable, no loser
// is the keeper, and (when the plan will touch EXIF) the keeper's volume has
// headroom for the atomic write's temp copy (spec.md §4.8).
func preflight(plan Plan, keeperPath string, resolvePath func(uuid.UUID) (string, error)) error {
	if f, err := os.OpenFile(keeperPath, os.O_WRONLY, 0); err != nil {
		return pipelineerr.AccessDenied(keeperPath, err)
	} else {
		f.Close()
	}

	if len(plan.ExifWrites) > 0 {
		if err := checkHeadroom(keeperPath); err != nil {
			return err
		}
	}

	for _, loserID := range plan.TrashList {
		if loserID == plan.KeeperFileID {
			return pipelineerr.StateMismatch("loser equals keeper")
		}
		loserPath, err := resolvePath(loserID)
		if err != nil {
			return pipelineerr.NotFound(loserPath)
		}
		if f, err := os.Open(loserPath); err != nil {
			return pipelineerr.AccessDenied(loserPath, err)
		} else {
			f.Close()
		}
	}
	return nil
}

// checkHeadroom confirms the keeper's volume has room for atomicExifWrite's
// full temp copy of the keeper before any bytes are written (spec.md §4.8:
// the atomic write needs headroom for a full temp copy of the keeper on its
// own volume).
func checkHeadroom(keeperPath string) error {
	info, err := os.Stat(keeperPath)
	if err != nil {
		return pipelineerr.AccessDenied(keeperPath, err)
	}
	free, err := diskspace.FreeBytes(filepath.Dir(keeperPath))
	if err != nil {
		return pipelineerr.InsufficientSpace(keeperPath, err)
	}
	if free < uint64(info.Size()) {
		return pipelineerr.InsufficientSpace(keeperPath, fmt.Errorf("need %d bytes, have %d free", info.Size(), free))
	}
	return nil
}

// atomicExifWrite copies keeperPath to a uniquely-named temp file in the
// same directory, applies writes to the copy via exiftool, then atomically
// replaces the original (spec.md §4.8 step 2). Grounded on the teacher's
// copyFileAtomic (main.go) for the temp-then-rename shape.
func atomicExifWrite(path string, writes map[string]string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".mediadupe-exif-*"+filepath.Ext(path))
	if err != nil {
		return fmt.Errorf("merge: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	src, err := os.Open(path)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("merge: opening source: %w", err)
	}
	if _, err := io.Copy(tmp, src); err != nil {
		src.Close()
		tmp.Close()
		return fmt.Errorf("merge: copying to temp: %w", err)
	}
	src.Close()
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("merge: syncing temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("merge: closing temp: %w", err)
	}

	et, err := exiftool.NewExiftool()
	if err != nil {
		return fmt.Errorf("merge: exiftool unavailable: %w", err)
	}
	defer et.Close()

	metas := et.ExtractMetadata(tmpPath)
	if len(metas) != 1 || metas[0].Err != nil {
		return fmt.Errorf("merge: reading temp metadata: %v", metas)
	}
	fm := metas[0]
	for k, v := range writes {
		fm.SetString(k, v)
	}
	written := []exiftool.FileMetadata{fm}
	et.WriteMetadata(written)
	if written[0].Err != nil {
		return fmt.Errorf("merge: writing exif to temp: %w", written[0].Err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("merge: atomic replace: %w", err)
	}
	return nil
}

func mapKeys(m map[uuid.UUID]string) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
