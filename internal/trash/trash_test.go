package trash

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMoveStagesFileUnderTrashDir(t *testing.T) {
	root := t.TempDir()
	staging, err := New(root)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "trash"), staging.Dir())

	src := filepath.Join(root, "photo.jpg")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0o644))

	dest, err := staging.Move(src)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "trash", "photo.jpg"), dest)
	require.NoFileExists(t, src)
	require.FileExists(t, dest)
}

func TestMoveHandlesNameCollisionWithNumericSuffix(t *testing.T) {
	root := t.TempDir()
	staging, err := New(root)
	require.NoError(t, err)

	first := filepath.Join(root, "a", "dup.jpg")
	second := filepath.Join(root, "b", "dup.jpg")
	require.NoError(t, os.MkdirAll(filepath.Dir(first), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Dir(second), 0o755))
	require.NoError(t, os.WriteFile(first, []byte("one"), 0o644))
	require.NoError(t, os.WriteFile(second, []byte("two"), 0o644))

	dest1, err := staging.Move(first)
	require.NoError(t, err)
	dest2, err := staging.Move(second)
	require.NoError(t, err)

	require.NotEqual(t, dest1, dest2)
	require.Equal(t, filepath.Join(root, "trash", "dup 2.jpg"), dest2)
}

func TestRestoreMovesFileBackToDestination(t *testing.T) {
	root := t.TempDir()
	staging, err := New(root)
	require.NoError(t, err)

	src := filepath.Join(root, "video.mov")
	require.NoError(t, os.WriteFile(src, []byte("data"), 0o644))

	trashPath, err := staging.Move(src)
	require.NoError(t, err)

	restoredPath := filepath.Join(root, "restored", "video.mov")
	require.NoError(t, staging.Restore(trashPath, restoredPath))
	require.NoFileExists(t, trashPath)
	require.FileExists(t, restoredPath)
}

func TestPermanentlyDeleteRemovesFileOutright(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "gone.jpg")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	require.NoError(t, PermanentlyDelete(path))
	require.NoFileExists(t, path)
}
