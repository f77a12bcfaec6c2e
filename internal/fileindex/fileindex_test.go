package fileindex

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/user/mediadupe/internal/model"
)

func openTestIndex(t *testing.T) *FileIndex {
	t.Helper()
	dir := t.TempDir()
	fi, err := Open(context.Background(), filepath.Join(dir, "index.db"), DefaultConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { fi.Close() })
	return fi
}

func TestUpsertFileIsStableByPath(t *testing.T) {
	fi := openTestIndex(t)
	ctx := context.Background()
	now := time.Now()

	id1, err := fi.UpsertFile(ctx, "/a/b.jpg", 100, 42, now, now, model.ClassPhoto, "image/jpeg")
	require.NoError(t, err)

	id2, err := fi.UpsertFile(ctx, "/a/b.jpg", 101, 42, now.Add(time.Second), now.Add(time.Second), model.ClassPhoto, "image/jpeg")
	require.NoError(t, err)

	require.Equal(t, id1, id2)

	f, ok, err := fi.GetFile(ctx, id1)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, int64(101), f.Size)
}

func TestShouldSkipBoundary(t *testing.T) {
	fi := openTestIndex(t)
	ctx := context.Background()
	mtime := time.Now().Add(-time.Hour).Truncate(time.Second)

	_, err := fi.UpsertFile(ctx, "/a/c.jpg", 10, 1, mtime, mtime, model.ClassPhoto, "image/jpeg")
	require.NoError(t, err)

	// last_scanned == now by construction; a cutoff one minute earlier is a
	// "skip" since the invariant is last_scanned >= cutoff.
	skip, err := fi.ShouldSkip(ctx, "/a/c.jpg", time.Now().Add(-time.Minute), 10, mtime)
	require.NoError(t, err)
	require.True(t, skip)

	// Changed size must never be skipped.
	skip, err = fi.ShouldSkip(ctx, "/a/c.jpg", time.Now().Add(-time.Minute), 11, mtime)
	require.NoError(t, err)
	require.False(t, skip)

	// Unknown path is never skipped.
	skip, err = fi.ShouldSkip(ctx, "/a/unknown.jpg", time.Now().Add(-time.Minute), 10, mtime)
	require.NoError(t, err)
	require.False(t, skip)
}

func TestSaveImageSignatureIsIdempotent(t *testing.T) {
	fi := openTestIndex(t)
	ctx := context.Background()
	now := time.Now()

	id, err := fi.UpsertFile(ctx, "/a/d.jpg", 10, 1, now, now, model.ClassPhoto, "image/jpeg")
	require.NoError(t, err)

	sig := model.ImageSignature{FileID: id, Algorithm: model.AlgorithmDHash, Hash: 0xDEADBEEF, Width: 100, Height: 100}
	require.NoError(t, fi.SaveImageSignature(ctx, id, sig))
	require.NoError(t, fi.SaveImageSignature(ctx, id, sig))

	got, ok, err := fi.getImageSignature(ctx, id, model.AlgorithmDHash)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, sig.Hash, got.Hash)
}

func TestTransactionRecordAndUndo(t *testing.T) {
	fi := openTestIndex(t)
	ctx := context.Background()
	now := time.Now()

	keeper := uuid.New()
	loser := uuid.New()

	txID, err := fi.RecordTransaction(ctx, model.MergeTransaction{
		GroupID:              "g1",
		KeeperFileID:         keeper,
		RemovedFileIDs:       []uuid.UUID{loser},
		CreatedAt:            now,
		UndoDeadline:         now.Add(24 * time.Hour),
		MetadataSnapshotJSON: `{"fileName":"keeper.jpg"}`,
		State:                model.TxCommitted,
		MovedToTrash:         true,
	})
	require.NoError(t, err)
	require.NotZero(t, txID)

	undone, err := fi.UndoLastTransaction(ctx)
	require.NoError(t, err)
	require.NotNil(t, undone)
	require.Equal(t, model.TxUndone, undone.State)
	require.Equal(t, keeper, undone.KeeperFileID)
	require.ElementsMatch(t, []uuid.UUID{loser}, undone.RemovedFileIDs)

	// A second undo has nothing eligible left.
	undone, err = fi.UndoLastTransaction(ctx)
	require.NoError(t, err)
	require.Nil(t, undone)
}

func TestSaveGroupAndListGroupsByState(t *testing.T) {
	fi := openTestIndex(t)
	ctx := context.Background()
	now := time.Now()

	keeperID, err := fi.UpsertFile(ctx, "/a/keeper.jpg", 100, 1, now, now, model.ClassPhoto, "image/jpeg")
	require.NoError(t, err)
	loserID, err := fi.UpsertFile(ctx, "/a/loser.jpg", 90, 2, now, now, model.ClassPhoto, "image/jpeg")
	require.NoError(t, err)

	g := model.DuplicateGroup{
		ID:         "g1",
		MediaClass: model.ClassPhoto,
		Confidence: 0.9,
		Rationale:  []string{"dHashClose"},
		State:      model.GroupComplete,
		Members: []model.GroupMember{
			{FileID: keeperID, Confidence: 1, KeeperSuggestion: true},
			{FileID: loserID, Confidence: 0.8},
		},
	}
	require.NoError(t, fi.SaveGroup(ctx, g))

	groups, err := fi.ListGroupsByState(ctx, model.GroupComplete)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Equal(t, "g1", groups[0].ID)
	require.Len(t, groups[0].Members, 2)

	require.NoError(t, fi.SetGroupState(ctx, "g1", model.GroupMerged))

	groups, err = fi.ListGroupsByState(ctx, model.GroupComplete)
	require.NoError(t, err)
	require.Empty(t, groups)

	groups, err = fi.ListGroupsByState(ctx, model.GroupMerged)
	require.NoError(t, err)
	require.Len(t, groups, 1)
}
