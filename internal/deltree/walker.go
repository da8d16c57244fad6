package deltree

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"dirsweep/internal/fsops"
)

// DefaultMaxDepth bounds recursion for trees without a configured limit.
const DefaultMaxDepth = 4096

// Observer is notified as entries are deleted. Implementations must be safe
// for concurrent use when the walker runs with more than one worker.
type Observer interface {
	EntryDeleted(entry fsops.Info)
	ReadOnlyCleared(path string)
}

// Walker deletes directory trees depth-first, post-order
type Walker struct {
	fs          fsops.FileSystem
	opts        DeleteOptions
	logger      *logrus.Entry
	observer    Observer
	throttle    func()
	concurrency int
	maxDepth    int
}

// NewWalker creates a sequential walker over fsys
func NewWalker(fsys fsops.FileSystem, opts DeleteOptions) *Walker {
	quiet := logrus.New()
	quiet.Out = io.Discard
	return &Walker{
		fs:          fsys,
		opts:        opts,
		logger:      logrus.NewEntry(quiet),
		concurrency: 1,
		maxDepth:    DefaultMaxDepth,
	}
}

// SetLogger sets the logger used for per-entry debug output and walk summaries
func (w *Walker) SetLogger(logger *logrus.Entry) {
	if logger != nil {
		w.logger = logger
	}
}

// SetObserver registers a deletion observer (metrics)
func (w *Walker) SetObserver(o Observer) {
	w.observer = o
}

// SetThrottle installs a hook called before each entry is processed
func (w *Walker) SetThrottle(fn func()) {
	w.throttle = fn
}

// SetConcurrency bounds how many sibling subtrees are walked at once.
// Values below 2 keep the walk sequential and its visit order reproducible.
func (w *Walker) SetConcurrency(n int) {
	if n < 1 {
		n = 1
	}
	w.concurrency = n
}

// SetMaxDepth bounds directory nesting below the root
func (w *Walker) SetMaxDepth(n int) {
	if n <= 0 {
		n = DefaultMaxDepth
	}
	w.maxDepth = n
}

// Options returns the delete options the walker applies
func (w *Walker) Options() DeleteOptions {
	return w.opts
}

// Walk deletes root and everything below it and returns what was deleted.
// On failure the counts are discarded and the tree is left partially deleted.
func (w *Walker) Walk(ctx context.Context, root string) (Counters, error) {
	start := time.Now()

	info, err := w.fs.Stat(root)
	if err != nil {
		return Counters{}, wrap("stat", root, err)
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	r := &walkRun{
		w:      w,
		ctx:    ctx,
		cancel: cancel,
		policy: policy{fs: w.fs, opts: w.opts, root: info.Path, cleared: w.readOnlyCleared},
	}
	if w.concurrency > 1 {
		// The calling goroutine is one worker; the semaphore bounds the rest
		r.sem = semaphore.NewWeighted(int64(w.concurrency - 1))
	}

	counters, err := r.visit(info, 0)
	if err != nil {
		if cause := context.Cause(ctx); cause != nil {
			err = cause
		}
		w.logger.WithError(err).WithField("root", root).Warn("walk failed")
		return Counters{}, err
	}

	w.logger.WithFields(logrus.Fields{
		"root":        root,
		"directories": counters.Directories,
		"files":       counters.Files,
		"bytes":       counters.Bytes,
		"options":     w.opts.String(),
		"duration":    time.Since(start).String(),
	}).Info("walk complete")
	return counters, nil
}

func (w *Walker) readOnlyCleared(path string) {
	w.logger.WithField("path", path).Debug("cleared read-only restriction")
	if w.observer != nil {
		w.observer.ReadOnlyCleared(path)
	}
}

// walkRun is the state of a single Walk call
type walkRun struct {
	w      *Walker
	ctx    context.Context
	cancel context.CancelCauseFunc
	policy policy
	sem    *semaphore.Weighted
	once   sync.Once
}

// fail cancels outstanding work; the first failure becomes the walk's cause.
func (r *walkRun) fail(err error) error {
	r.once.Do(func() { r.cancel(err) })
	return err
}

func (r *walkRun) visit(entry fsops.Info, depth int) (Counters, error) {
	if r.ctx.Err() != nil {
		return Counters{}, context.Cause(r.ctx)
	}
	if r.w.throttle != nil {
		r.w.throttle()
	}

	switch entry.Kind {
	case fsops.KindDir:
		return r.visitDir(entry, depth)
	case fsops.KindFile:
		if err := r.policy.remove(entry); err != nil {
			return Counters{}, r.fail(err)
		}
		r.deleted(entry)
		return Counters{Files: 1, Bytes: entry.Size}, nil
	default:
		// Links and special files are removed as leaves and not counted
		if err := r.policy.remove(entry); err != nil {
			return Counters{}, r.fail(err)
		}
		r.deleted(entry)
		return Counters{}, nil
	}
}

func (r *walkRun) visitDir(entry fsops.Info, depth int) (Counters, error) {
	if depth > r.w.maxDepth {
		return Counters{}, r.fail(&PathError{Op: "walk", Path: entry.Path, Kind: ErrIOFailure, Err: ErrTooDeep})
	}

	children, err := r.w.fs.ReadDir(entry.Path)
	if err != nil {
		return Counters{}, r.fail(wrap("readdir", entry.Path, err))
	}

	var total Counters
	if r.sem == nil {
		for _, child := range children {
			c, err := r.visit(child, depth+1)
			if err != nil {
				return Counters{}, err
			}
			total = total.Add(c)
		}
	} else {
		total, err = r.visitParallel(children, depth+1)
		if err != nil {
			return Counters{}, err
		}
	}

	if err := r.policy.remove(entry); err != nil {
		return Counters{}, r.fail(err)
	}
	r.deleted(entry)
	return total.Add(Counters{Directories: 1}), nil
}

// visitParallel hands children to idle workers and walks the rest inline, so
// a parent never blocks waiting for a worker slot held by its own ancestors.
func (r *walkRun) visitParallel(children []fsops.Info, depth int) (Counters, error) {
	results := make([]Counters, len(children))
	var g errgroup.Group
	var inlineErr error

	for i, child := range children {
		if r.sem.TryAcquire(1) {
			g.Go(func() error {
				defer r.sem.Release(1)
				c, err := r.visit(child, depth)
				results[i] = c
				return err
			})
			continue
		}
		c, err := r.visit(child, depth)
		if err != nil {
			inlineErr = err
			break
		}
		results[i] = c
	}

	if err := g.Wait(); err != nil {
		return Counters{}, err
	}
	if inlineErr != nil {
		return Counters{}, inlineErr
	}
	return Sum(results...), nil
}

func (r *walkRun) deleted(entry fsops.Info) {
	r.w.logger.WithFields(logrus.Fields{
		"path": entry.Path,
		"kind": entry.Kind.String(),
		"size": entry.Size,
	}).Debug("deleted")
	if r.w.observer != nil {
		r.w.observer.EntryDeleted(entry)
	}
}
