package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/user/mediadupe/internal/enumerator"
	"github.com/user/mediadupe/internal/events"
	"github.com/user/mediadupe/internal/fileindex"
	"github.com/user/mediadupe/internal/merge"
	"github.com/user/mediadupe/internal/model"
	"github.com/user/mediadupe/internal/pipelineerr"
	"github.com/user/mediadupe/internal/trash"
	"github.com/user/mediadupe/metadata"
)

// Extractor is the subset of metadata.Extractor the orchestrator depends
// on, so tests can substitute a fake without shelling out to exiftool/ffprobe.
type Extractor interface {
	Extract(ctx context.Context, path string, class model.MediaClass) (model.MediaMetadata, error)
}

// Hasher computes image signatures for a photo path.
type Hasher func(path string) ([]model.ImageSignature, error)

// Fingerprinter computes a video signature for a video path.
type Fingerprinter func(ctx context.Context, path string) (model.VideoSignature, error)

// Orchestrator owns the services every pipeline stage needs and exposes the
// upward event stream spec.md §4.9 describes. It holds no package-level
// singletons (spec.md §9): every dependency is constructed by the caller
// and passed in via New.
type Orchestrator struct {
	Index       *fileindex.FileIndex
	Extractor   Extractor
	Hasher      Hasher
	Fingerprint Fingerprinter
	Staging     *trash.Staging
	Executor    *merge.Executor
	Logger      *slog.Logger

	// Checkpoint, when set, lets Scan resume a prior interrupted run
	// without re-processing already-completed paths (SPEC_FULL.md
	// "Resume/interrupt bookkeeping"). Nil disables checkpointing.
	Checkpoint *Checkpoint
}

// New constructs an Orchestrator from explicitly built services (spec.md §9
// "explicitly constructed services passed into the orchestrator").
func New(index *fileindex.FileIndex, extractor Extractor, hasher Hasher, fp Fingerprinter, staging *trash.Staging, executor *merge.Executor, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		Index:       index,
		Extractor:   extractor,
		Hasher:      hasher,
		Fingerprint: fp,
		Staging:     staging,
		Executor:    executor,
		Logger:      logger,
	}
}

// NewWithRealServices wires the default metadata.Extractor, imagehash, and
// videofp implementations — the composition main.go's cmd layer uses.
func NewWithRealServices(index *fileindex.FileIndex, staging *trash.Staging, executor *merge.Executor, logger *slog.Logger, imgOpts func(string) ([]model.ImageSignature, error), vidOpts func(context.Context, string) (model.VideoSignature, error)) *Orchestrator {
	return New(index, metadata.NewExtractor(), imgOpts, vidOpts, staging, executor, logger)
}

// Scan drives Enumerator -> MetadataExtractor -> (ImageHasher |
// VideoFingerprinter) -> FileIndex upsert across every root in opts.Roots
// (spec.md §4.9 "Control flow"). It returns a single merged event channel;
// the caller ranges over it until it closes (either all roots finished or
// ctx was cancelled). Per-root enumeration is single-producer (spec.md
// §4.2); hashing/fingerprinting fans out across a bounded worker pool
// (spec.md §5).
func (o *Orchestrator) Scan(ctx context.Context, opts DetectOptions) <-chan events.Event {
	out := make(chan events.Event, 256)

	go func() {
		defer close(out)

		enumOpts := opts.Enumerator
		if enumOpts.Incremental && enumOpts.SkipCheck == nil {
			enumOpts.SkipCheck = o.Index.ShouldSkip
		}

		for _, root := range opts.Roots {
			if ctx.Err() != nil {
				return
			}
			o.scanRoot(ctx, root, enumOpts, opts, out)
		}
	}()

	return out
}

func (o *Orchestrator) scanRoot(ctx context.Context, root string, enumOpts enumerator.Options, opts DetectOptions, out chan<- events.Event) {
	files, ev := enumerator.Walk(ctx, root, enumOpts)

	forward := make(chan struct{})
	go func() {
		defer close(forward)
		for e := range ev {
			select {
			case out <- e:
			case <-ctx.Done():
				return
			}
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workerCount(opts.MaxWorkers))

	for f := range files {
		f := f
		g.Go(func() error {
			o.processFile(gctx, f, opts, out)
			return nil
		})
	}
	_ = g.Wait()
	<-forward
}

// processFile runs the per-file portion of the pipeline: metadata
// extraction, signature computation, and FileIndex upsert. Per-file errors
// are never propagated (spec.md §7 "Propagation policy"). Upsert, extraction
// and metadata-save failures are logged and emitted as Error events;
// hashing, fingerprinting, signature-save and content-type re-upsert
// failures are only logged, and the file stays indexed without them.
func (o *Orchestrator) processFile(ctx context.Context, f enumerator.CandidateFile, opts DetectOptions, out chan<- events.Event) {
	if o.Checkpoint != nil && o.Checkpoint.IsDone(f.Path) {
		return
	}

	fileID, err := o.Index.UpsertFile(ctx, f.Path, f.Size, f.Inode, f.Mtime, f.Ctime, f.Class, "")
	if err != nil {
		o.emitError(ctx, out, f.Path, err)
		return
	}

	meta, err := o.Extractor.Extract(ctx, f.Path, f.Class)
	if err != nil {
		o.emitError(ctx, out, f.Path, err)
		return
	}
	meta.FileID = fileID
	if err := o.Index.UpsertFile(ctx, f.Path, f.Size, f.Inode, f.Mtime, f.Ctime, f.Class, meta.ContentType); err != nil {
		o.logPerFileIssue(f.Path, "reindex-content-type", err)
	}
	if err := o.Index.SaveMetadata(ctx, fileID, meta); err != nil {
		o.emitError(ctx, out, f.Path, err)
		return
	}

	switch f.Class {
	case model.ClassPhoto:
		sigs, err := o.Hasher(f.Path)
		if err != nil {
			o.logPerFileIssue(f.Path, "imagehash", err)
			break
		}
		for _, sig := range sigs {
			if err := o.Index.SaveImageSignature(ctx, fileID, sig); err != nil {
				o.logPerFileIssue(f.Path, "save-image-signature", err)
			}
		}
	case model.ClassVideo:
		sig, err := o.Fingerprint(ctx, f.Path)
		if err != nil {
			o.logPerFileIssue(f.Path, "videofp", err)
			break
		}
		if err := o.Index.SaveVideoSignature(ctx, fileID, sig); err != nil {
			o.logPerFileIssue(f.Path, "save-video-signature", err)
		}
	}

	if o.Checkpoint != nil {
		if err := o.Checkpoint.MarkDone(f.Path); err != nil {
			o.logPerFileIssue(f.Path, "checkpoint", err)
		}
	}
}

func (o *Orchestrator) emitError(ctx context.Context, out chan<- events.Event, path string, err error) {
	o.logPerFileIssue(path, "pipeline", err)
	select {
	case out <- events.Event{Kind: events.KindError, Path: path, Reason: err.Error(), Err: err}:
	case <-ctx.Done():
	}
}

func (o *Orchestrator) logPerFileIssue(path, stage string, err error) {
	var code string
	if pe, ok := err.(*pipelineerr.Error); ok {
		code = pe.Code.String()
	}
	o.Logger.Warn("pipeline issue", slog.String("path", path), slog.String("stage", stage), slog.String("code", code), slog.Any("error", err))
}

// resolvePath adapts FileIndex.ResolveURL to the func(uuid.UUID)(string,
// error) shape merge.Executor expects.
func (o *Orchestrator) resolvePath(ctx context.Context) func(uuid.UUID) (string, error) {
	return func(id uuid.UUID) (string, error) {
		path, ok, err := o.Index.ResolveURL(ctx, id)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", fmt.Errorf("orchestrator: no file indexed for id %s", id)
		}
		return path, nil
	}
}
