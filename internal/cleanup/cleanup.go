package cleanup

import (
	"context"
	"errors"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"dirsweep/internal/config"
	"dirsweep/internal/database"
	"dirsweep/internal/deltree"
	"dirsweep/internal/disk"
	"dirsweep/internal/fsops"
	"dirsweep/internal/metrics"
	"dirsweep/internal/safety"
)

// Skip reasons recorded with SKIP results
const (
	ReasonUnsafePath = "unsafe_path"
	ReasonNFSStale   = "nfs_stale"
	ReasonMissing    = "missing"
)

// Result is the outcome of sweeping one target
type Result struct {
	Target   string
	Action   string // One of the database.Action* values
	Reason   string // Why a target was skipped
	Counters deltree.Counters
	Duration time.Duration
	Err      error // Set for ERROR results and safety rejections
}

// Summary aggregates the results of one sweep cycle
type Summary struct {
	Results []Result
}

// Total sums the counters of every target that was deleted or counted
func (s Summary) Total() deltree.Counters {
	var total deltree.Counters
	for _, r := range s.Results {
		total = total.Add(r.Counters)
	}
	return total
}

// Count returns how many results carry action
func (s Summary) Count(action string) int {
	n := 0
	for _, r := range s.Results {
		if r.Action == action {
			n++
		}
	}
	return n
}

// Err joins the errors of failed and rejected targets
func (s Summary) Err() error {
	var errs []error
	for _, r := range s.Results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errors.Join(errs...)
}

// Sweeper deletes configured target trees and records every outcome
type Sweeper struct {
	logger    *logrus.Logger
	db        *database.SweepDB // Optional sweep history
	dryRun    bool
	fs        fsops.FileSystem
	validator *safety.Validator
	throttle  func()
	notify    func(Result)
	mkdirAll  func(path string, perm os.FileMode) error
	nfsStale  func(path string, timeout time.Duration) bool
}

// NewSweeper creates a Sweeper working on the host filesystem
func NewSweeper(logger *logrus.Logger, db *database.SweepDB, dryRun bool) *Sweeper {
	if logger == nil {
		logger = logrus.New()
		logger.Out = io.Discard
	}
	return &Sweeper{
		logger:   logger,
		db:       db,
		dryRun:   dryRun,
		fs:       fsops.OSFileSystem{},
		mkdirAll: os.MkdirAll,
		nfsStale: disk.IsNFSStale,
	}
}

// SetFileSystem replaces the filesystem walked by the sweeper (for testing)
func (s *Sweeper) SetFileSystem(fsys fsops.FileSystem) {
	s.fs = fsys
}

// SetValidator overrides the validator built from the configuration
func (s *Sweeper) SetValidator(v *safety.Validator) {
	s.validator = v
}

// SetThrottle installs the per-entry throttle passed to every walk
func (s *Sweeper) SetThrottle(fn func()) {
	s.throttle = fn
}

// SetNotifier registers a callback receiving every finished result
func (s *Sweeper) SetNotifier(fn func(Result)) {
	s.notify = fn
}

// SweepWithConfig sweeps every configured target in order. It stops early
// only when ctx is done; individual target failures are part of the summary.
func (s *Sweeper) SweepWithConfig(ctx context.Context, cfg *config.Config) (Summary, error) {
	if cfg == nil {
		return Summary{}, errors.New("nil config")
	}

	validator := s.validator
	if validator == nil {
		validator = safety.NewValidator(cfg.AllowedRoots, cfg.ProtectedPaths)
	}

	var summary Summary
	for _, target := range cfg.Targets {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		summary.Results = append(summary.Results, s.SweepTarget(ctx, cfg, validator, target))
	}

	total := summary.Total()
	s.logger.WithFields(logrus.Fields{
		"targets":     len(summary.Results),
		"deleted":     summary.Count(database.ActionDelete),
		"skipped":     summary.Count(database.ActionSkip),
		"errors":      summary.Count(database.ActionError),
		"directories": total.Directories,
		"files":       total.Files,
		"bytes":       total.Bytes,
		"dry_run":     s.dryRun,
	}).Info("sweep complete")

	return summary, nil
}

// SweepTarget validates and deletes a single target tree
func (s *Sweeper) SweepTarget(ctx context.Context, cfg *config.Config, validator *safety.Validator, target config.Target) Result {
	start := time.Now()
	opts := target.DeleteOptions()
	res := Result{Target: target.Path}

	if err := validator.ValidateDeleteTarget(target.Path); err != nil {
		res.Action, res.Reason, res.Err = database.ActionSkip, ReasonUnsafePath, err
		return s.finish(res, opts, start)
	}

	if cfg.NFSTimeout > 0 && s.nfsStale(target.Path, cfg.NFSTimeoutDuration()) {
		res.Action, res.Reason = database.ActionSkip, ReasonNFSStale
		return s.finish(res, opts, start)
	}

	entry := s.logger.WithField("target", target.Path)
	fsys := s.fs
	if s.dryRun {
		fsys = fsops.NewDryRunFileSystem(fsys)
	}

	walker := deltree.NewWalker(fsys, opts)
	walker.SetLogger(entry)
	walker.SetThrottle(s.throttle)
	walker.SetConcurrency(cfg.WorkerPool.Concurrency)
	walker.SetMaxDepth(cfg.Depth(target))
	if !s.dryRun {
		walker.SetObserver(metrics.WalkObserver{})
	}

	counters, err := walker.Walk(ctx, target.Path)
	switch {
	case err == nil:
		res.Counters = counters
		res.Action = database.ActionDelete
		if s.dryRun {
			res.Action = database.ActionDryRun
		}
	case cfg.MissingOK && isMissingRoot(err, target.Path):
		res.Action, res.Reason = database.ActionSkip, ReasonMissing
	default:
		res.Action, res.Err = database.ActionError, err
	}

	if res.Action == database.ActionDelete && target.Recreate {
		if err := s.mkdirAll(target.Path, 0o755); err != nil {
			entry.WithError(err).Error("failed to recreate target root")
			res.Action, res.Err = database.ActionError, err
		}
	}

	return s.finish(res, opts, start)
}

// finish logs, meters and records a result
func (s *Sweeper) finish(res Result, opts deltree.DeleteOptions, start time.Time) Result {
	res.Duration = time.Since(start)
	s.logStructured(res, opts)

	if res.Err != nil {
		metrics.RecordFailure(res.Err)
	}
	metrics.RecordSweep(res.Target, res.Action, res.Counters, res.Duration)

	if s.db != nil {
		rec := database.SweepRecord{
			Action:   res.Action,
			Path:     res.Target,
			Options:  opts.String(),
			Counters: res.Counters,
			Duration: res.Duration,
		}
		if res.Err != nil {
			rec.ErrorKind = deltree.KindName(res.Err)
			rec.ErrorMessage = res.Err.Error()
			var violation *safety.Violation
			if errors.As(res.Err, &violation) {
				rec.ErrorKind = ReasonUnsafePath
			}
		} else if res.Reason != "" {
			rec.ErrorKind = res.Reason
		}
		if err := s.db.RecordSweep(rec); err != nil {
			// History is best effort
			s.logger.WithError(err).Error("failed to record sweep to database")
		}
	}

	if s.notify != nil {
		s.notify(res)
	}
	return res
}

// logStructured logs one line per target: action, path, counters and reason
func (s *Sweeper) logStructured(res Result, opts deltree.DeleteOptions) {
	fields := logrus.Fields{
		"action":      res.Action,
		"path":        res.Target,
		"options":     opts.String(),
		"directories": res.Counters.Directories,
		"files":       res.Counters.Files,
		"bytes":       res.Counters.Bytes,
		"duration":    res.Duration.String(),
	}
	if res.Reason != "" {
		fields["reason"] = res.Reason
	}

	entry := s.logger.WithFields(fields)
	switch res.Action {
	case database.ActionError:
		entry.WithError(res.Err).Error("sweep failed")
	case database.ActionSkip:
		if res.Err != nil {
			entry = entry.WithError(res.Err)
		}
		entry.Warn("sweep skipped")
	default:
		entry.Info("sweep")
	}
}

// isMissingRoot reports whether err says the target root itself is absent
func isMissingRoot(err error, root string) bool {
	var pe *deltree.PathError
	return errors.As(err, &pe) && pe.Path == root && errors.Is(err, deltree.ErrNotFound)
}
