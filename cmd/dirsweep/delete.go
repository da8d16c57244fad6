package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"dirsweep/internal/cleanup"
	"dirsweep/internal/config"
	"dirsweep/internal/database"
	"dirsweep/internal/deltree"
	"dirsweep/internal/logging"
	"dirsweep/internal/metrics"
	"dirsweep/internal/safety"
)

type deleteFlags struct {
	overrideReadOnly bool
	workers          int
	maxDepth         int
	timeout          time.Duration
	allow            []string
	protect          []string
	dbPath           string
	dryRun           bool
	jsonOutput       bool
	verbose          bool
}

// resultView is the JSON shape of one target outcome
type resultView struct {
	Path        string `json:"path"`
	Action      string `json:"action"`
	Reason      string `json:"reason,omitempty"`
	Directories int64  `json:"directories"`
	Files       int64  `json:"files"`
	Bytes       int64  `json:"bytes"`
	DurationMS  int64  `json:"duration_ms"`
	ErrorKind   string `json:"error_kind,omitempty"`
	Error       string `json:"error,omitempty"`
}

func newDeleteCmd() *cobra.Command {
	f := &deleteFlags{}
	cmd := &cobra.Command{
		Use:   "delete PATH...",
		Short: "Delete directory trees and report what was removed",
		Example: `  dirsweep delete /srv/scratch
  dirsweep delete --override-read-only --workers 4 /srv/build /srv/cache
  dirsweep delete --dry-run --json /srv/scratch`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), f, args)
		},
	}

	cmd.Flags().BoolVar(&f.overrideReadOnly, "override-read-only", false, "Clear read-only restrictions that block a deletion and retry once")
	cmd.Flags().IntVar(&f.workers, "workers", 1, "Sibling subtrees deleted at once; 1 keeps the order reproducible")
	cmd.Flags().IntVar(&f.maxDepth, "max-depth", 0, "Maximum directory nesting below each path (0 uses the default)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Abort deletion after this long (0 disables)")
	cmd.Flags().StringSliceVar(&f.allow, "allow", nil, "Allowed root; defaults to the paths themselves")
	cmd.Flags().StringSliceVar(&f.protect, "protect", nil, "Additional protected path")
	cmd.Flags().StringVar(&f.dbPath, "db", "", "Record results in this sweep history database")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Count what would be deleted without deleting")
	cmd.Flags().BoolVar(&f.jsonOutput, "json", false, "Output in JSON format")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Log every deleted entry")
	return cmd
}

func runDelete(ctx context.Context, stdout, stderr io.Writer, f *deleteFlags, paths []string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	var options []string
	if f.overrideReadOnly {
		options = append(options, deltree.OverrideReadOnly.String())
	}

	targets := make([]config.Target, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("%s: %w", p, config.ErrInvalidPath)
		}
		targets = append(targets, config.Target{Path: abs, Options: options, MaxDepth: f.maxDepth})
	}
	targets = lo.UniqBy(targets, func(t config.Target) string { return t.Path })

	cfg := &config.Config{
		Targets:    targets,
		MaxDepth:   f.maxDepth,
		WorkerPool: config.WorkerPoolConfig{Concurrency: f.workers},
	}

	allowed := f.allow
	if len(allowed) == 0 {
		allowed = cfg.TargetPaths()
	}

	logger := logging.New()
	logger.SetOutput(stderr)
	logger.SetLevel(logrus.WarnLevel)
	if f.verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	var db *database.SweepDB
	if f.dbPath != "" {
		var err error
		db, err = database.NewSweepDB(f.dbPath)
		if err != nil {
			return fmt.Errorf("open database %s: %w", f.dbPath, err)
		}
		defer db.Close()
	}

	metrics.Init()
	sweeper := cleanup.NewSweeper(logger, db, f.dryRun)
	sweeper.SetValidator(safety.NewValidator(allowed, f.protect))

	summary, err := sweeper.SweepWithConfig(ctx, cfg)
	if err != nil {
		return err
	}

	if f.jsonOutput {
		views := lo.Map(summary.Results, func(r cleanup.Result, _ int) resultView { return toView(r) })
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(views); err != nil {
			return err
		}
	} else {
		printResults(stdout, summary)
	}

	return summary.Err()
}

func toView(r cleanup.Result) resultView {
	v := resultView{
		Path:        r.Target,
		Action:      r.Action,
		Reason:      r.Reason,
		Directories: r.Counters.Directories,
		Files:       r.Counters.Files,
		Bytes:       r.Counters.Bytes,
		DurationMS:  r.Duration.Milliseconds(),
	}
	if r.Err != nil {
		v.ErrorKind = deltree.KindName(r.Err)
		v.Error = r.Err.Error()
	}
	return v
}

func printResults(w io.Writer, summary cleanup.Summary) {
	for _, r := range summary.Results {
		switch r.Action {
		case database.ActionDelete, database.ActionDryRun:
			verb := "deleted"
			if r.Action == database.ActionDryRun {
				verb = "would delete"
			}
			fmt.Fprintf(w, "%s: %s %d directories, %d files, %s\n",
				r.Target, verb, r.Counters.Directories, r.Counters.Files, formatBytes(r.Counters.Bytes))
		case database.ActionSkip:
			fmt.Fprintf(w, "%s: skipped (%s)\n", r.Target, r.Reason)
		default:
			fmt.Fprintf(w, "%s: failed: %v\n", r.Target, r.Err)
		}
	}
	if len(summary.Results) > 1 {
		fmt.Fprintf(w, "total: %s\n", summary.Total())
	}
}
