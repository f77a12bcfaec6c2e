package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/user/mediadupe/internal/events"
	"github.com/user/mediadupe/internal/fileindex"
	"github.com/user/mediadupe/internal/merge"
	"github.com/user/mediadupe/internal/model"
	"github.com/user/mediadupe/internal/trash"
)

// fakeExtractor stands in for metadata.Extractor so this test never shells
// out to exiftool/ffprobe (mirrors the Extractor interface seam this
// package defines for exactly that reason).
type fakeExtractor struct{}

func (fakeExtractor) Extract(ctx context.Context, path string, class model.MediaClass) (model.MediaMetadata, error) {
	return model.MediaMetadata{FileName: filepath.Base(path), ContentType: "image/jpeg"}, nil
}

func openTestIndex(t *testing.T) *fileindex.FileIndex {
	t.Helper()
	dir := t.TempDir()
	idx, err := fileindex.Open(context.Background(), filepath.Join(dir, "index.db"), fileindex.DefaultConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

// TestScanIndexesEveryEnumeratedFileAndBalancesAccounting exercises spec.md
// §4.9's control flow end to end (enumerate -> extract -> hash -> upsert)
// and the RunSummary.Validate() accounting invariant from spec.md §8:
// enumerated == indexed + skipped + errored.
func TestScanIndexesEveryEnumeratedFileAndBalancesAccounting(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.jpg"), []byte("one"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.jpg"), []byte("two"), 0o644))

	idx := openTestIndex(t)
	staging, err := trash.New(root)
	require.NoError(t, err)
	executor := merge.NewExecutor(idx, staging, merge.DefaultPolicies())

	hashCalls := 0
	orch := New(idx, fakeExtractor{}, func(path string) ([]model.ImageSignature, error) {
		hashCalls++
		return []model.ImageSignature{{Algorithm: model.AlgorithmDHash, Hash: uint64(len(path))}}, nil
	}, nil, staging, executor, nil)

	opts := DefaultDetectOptions()
	opts.Roots = []string{root}
	opts.MaxWorkers = 2

	summary := RunSummary{}
	for e := range orch.Scan(context.Background(), opts) {
		summary.Observe(e)
		if e.Kind == events.KindFinished {
			require.NotNil(t, e.Metrics)
		}
	}

	require.NoError(t, summary.Validate())
	require.Equal(t, 2, summary.Indexed)
	require.Equal(t, 2, hashCalls)
}

// TestScanStopsEnumeratingWhenContextIsCancelled exercises spec.md §5's
// single-cancellation-token contract: once ctx is cancelled, Scan's event
// channel still closes.
func TestScanStopsEnumeratingWhenContextIsCancelled(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.jpg"), []byte("one"), 0o644))

	idx := openTestIndex(t)
	staging, err := trash.New(root)
	require.NoError(t, err)
	executor := merge.NewExecutor(idx, staging, merge.DefaultPolicies())

	orch := New(idx, fakeExtractor{}, func(string) ([]model.ImageSignature, error) {
		return nil, nil
	}, nil, staging, executor, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := DefaultDetectOptions()
	opts.Roots = []string{root}

	for range orch.Scan(ctx, opts) {
	}
	// No assertion beyond "the channel closed promptly" — cancellation is a
	// best-effort stop, not a guaranteed zero-work contract, matching Scan's
	// ctx.Err() check between roots.
}
