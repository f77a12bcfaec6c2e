package enumerator

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/user/mediadupe/internal/model"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestClassifyExtension(t *testing.T) {
	cases := []struct {
		ext   string
		class model.MediaClass
		ok    bool
	}{
		{".JPG", model.ClassPhoto, true},
		{".heic", model.ClassPhoto, true},
		{".mp4", model.ClassVideo, true},
		{".flac", model.ClassAudio, true},
		{".txt", model.ClassUnknown, false},
	}
	for _, c := range cases {
		class, ok := ClassifyExtension(c.ext)
		require.Equal(t, c.ok, ok, c.ext)
		if ok {
			require.Equal(t, c.class, class, c.ext)
		}
	}
}

func TestWalkSkipsHiddenAndBundlesAndUnsupported(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.jpg"))
	writeFile(t, filepath.Join(dir, ".hidden.jpg"))
	writeFile(t, filepath.Join(dir, "notes.txt"))
	writeFile(t, filepath.Join(dir, "Thing.app", "inner.jpg"))

	opts := DefaultOptions()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	files, ev := Walk(ctx, dir, opts)
	go func() {
		for range ev {
		}
	}()

	var got []string
	for f := range files {
		got = append(got, filepath.Base(f.Path))
	}
	require.Equal(t, []string{"a.jpg"}, got)
}

func TestWalkRefusesManagedLibrary(t *testing.T) {
	dir := t.TempDir()
	libDir := filepath.Join(dir, "Photos Library.photoslibrary")
	writeFile(t, filepath.Join(libDir, "masters", "a.jpg"))
	writeFile(t, filepath.Join(dir, "b.jpg"))

	opts := DefaultOptions()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	files, ev := Walk(ctx, dir, opts)
	var sawRefusal bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		for e := range ev {
			if e.Reason != "" && e.Kind.String() == "Error" {
				sawRefusal = true
			}
		}
	}()

	var got []string
	for f := range files {
		got = append(got, filepath.Base(f.Path))
	}
	<-done

	require.Equal(t, []string{"b.jpg"}, got)
	require.True(t, sawRefusal)
}

func TestWalkIncrementalSkipsViaSkipCheck(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.jpg"))
	writeFile(t, filepath.Join(dir, "b.jpg"))

	opts := DefaultOptions()
	opts.Incremental = true
	opts.SkipCheck = func(ctx context.Context, path string, cutoff time.Time, size int64, mtime time.Time) (bool, error) {
		return filepath.Base(path) == "a.jpg", nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	files, ev := Walk(ctx, dir, opts)
	go func() {
		for range ev {
		}
	}()

	var got []string
	for f := range files {
		got = append(got, filepath.Base(f.Path))
	}
	require.Equal(t, []string{"b.jpg"}, got)
}
