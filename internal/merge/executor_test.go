package merge

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/user/mediadupe/internal/fileindex"
	"github.com/user/mediadupe/internal/model"
	"github.com/user/mediadupe/internal/trash"
)

func openTestIndex(t *testing.T) *fileindex.FileIndex {
	t.Helper()
	dir := t.TempDir()
	idx, err := fileindex.Open(context.Background(), filepath.Join(dir, "index.db"), fileindex.DefaultConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

// TestExecuteExactCopyHasNoExifWritesAndTrashesLoser exercises spec.md §8
// scenario 1 (exact copies, mergedFields = []): the plan has no new EXIF
// fields to write, so Execute must skip the exiftool round trip entirely
// and only move the loser to trash and record a committed transaction.
func TestExecuteExactCopyHasNoExifWritesAndTrashesLoser(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	root := t.TempDir()
	staging, err := trash.New(root)
	require.NoError(t, err)

	keeperPath := filepath.Join(root, "a.jpg")
	loserPath := filepath.Join(root, "b.jpg")
	require.NoError(t, os.WriteFile(keeperPath, []byte("same-bytes"), 0o644))
	require.NoError(t, os.WriteFile(loserPath, []byte("same-bytes"), 0o644))

	now := time.Now()
	meta := model.MediaMetadata{FileName: "a.jpg", CaptureDate: now}
	keeperID, err := idx.UpsertFile(ctx, keeperPath, 10, 1, now, now, model.ClassPhoto, "image/jpeg")
	require.NoError(t, err)
	require.NoError(t, idx.SaveMetadata(ctx, keeperID, meta))
	loserID, err := idx.UpsertFile(ctx, loserPath, 10, 2, now, now, model.ClassPhoto, "image/jpeg")
	require.NoError(t, err)
	require.NoError(t, idx.SaveMetadata(ctx, loserID, meta))

	keeper := Member{File: model.File{ID: keeperID, Path: keeperPath, Size: 10}, Metadata: meta}
	loser := Member{File: model.File{ID: loserID, Path: loserPath, Size: 10}, Metadata: meta}
	plan := BuildPlan("g1", keeper, []Member{keeper, loser})
	require.Empty(t, plan.ExifWrites)

	paths := map[uuid.UUID]string{keeperID: keeperPath, loserID: loserPath}
	resolve := func(id uuid.UUID) (string, error) { return paths[id], nil }

	executor := NewExecutor(idx, staging, Policies{MoveToTrash: true, RetentionDays: 30})
	result, err := executor.Execute(ctx, plan, resolve, false)
	require.NoError(t, err)
	require.False(t, result.Failed)
	require.Empty(t, result.MergedFields)
	require.NoFileExists(t, loserPath)
	require.FileExists(t, filepath.Join(staging.Dir(), "b.jpg"))
}

func TestExecuteDryRunPerformsNoMutation(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	root := t.TempDir()
	staging, err := trash.New(root)
	require.NoError(t, err)

	keeperPath := filepath.Join(root, "a.jpg")
	loserPath := filepath.Join(root, "b.jpg")
	require.NoError(t, os.WriteFile(keeperPath, []byte("same-bytes"), 0o644))
	require.NoError(t, os.WriteFile(loserPath, []byte("same-bytes"), 0o644))

	keeperID, loserID := uuid.New(), uuid.New()
	keeper := Member{File: model.File{ID: keeperID, Path: keeperPath, Size: 10}}
	loser := Member{File: model.File{ID: loserID, Path: loserPath, Size: 10}}
	plan := BuildPlan("g2", keeper, []Member{keeper, loser})

	paths := map[uuid.UUID]string{keeperID: keeperPath, loserID: loserPath}
	resolve := func(id uuid.UUID) (string, error) { return paths[id], nil }

	executor := NewExecutor(idx, staging, Policies{MoveToTrash: true, RetentionDays: 30})
	result, err := executor.Execute(ctx, plan, resolve, true)
	require.NoError(t, err)
	require.True(t, result.WasDryRun)
	require.FileExists(t, keeperPath)
	require.FileExists(t, loserPath)

	latest, err := idx.LatestTransaction(ctx)
	require.NoError(t, err)
	require.Nil(t, latest)
}

func TestExecutePreflightRejectsLoserEqualToKeeper(t *testing.T) {
	idx := openTestIndex(t)
	ctx := context.Background()
	root := t.TempDir()
	staging, err := trash.New(root)
	require.NoError(t, err)

	keeperPath := filepath.Join(root, "a.jpg")
	require.NoError(t, os.WriteFile(keeperPath, []byte("x"), 0o644))

	keeperID := uuid.New()
	plan := Plan{
		GroupID:      "g3",
		KeeperFileID: keeperID,
		TrashList:    []uuid.UUID{keeperID},
	}
	resolve := func(id uuid.UUID) (string, error) { return keeperPath, nil }

	executor := NewExecutor(idx, staging, DefaultPolicies())
	_, err = executor.Execute(ctx, plan, resolve, false)
	require.Error(t, err)
}
