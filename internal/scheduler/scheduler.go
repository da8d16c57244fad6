package scheduler

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"dirsweep/internal/cleanup"
	"dirsweep/internal/config"
	"dirsweep/internal/database"
	"dirsweep/internal/disk"
	"dirsweep/internal/limiter"
	"dirsweep/internal/metrics"
)

var (
	notifierMu sync.RWMutex
	notifier   func(cleanup.Result)
)

// SetResultNotifier registers a callback receiving every target result of
// every cycle, e.g. the API event hub. Pass nil to remove it.
func SetResultNotifier(fn func(cleanup.Result)) {
	notifierMu.Lock()
	defer notifierMu.Unlock()
	notifier = fn
}

func resultNotifier() func(cleanup.Result) {
	notifierMu.RLock()
	defer notifierMu.RUnlock()
	return notifier
}

// RunOnce sweeps every configured target once without recording history
func RunOnce(ctx context.Context, cfg *config.Config, dryRun bool, logger *logrus.Logger) (cleanup.Summary, error) {
	return RunOnceWithDB(ctx, cfg, dryRun, logger, nil)
}

// RunOnceWithDB sweeps every configured target once. The returned error is
// set when the cycle could not run or when any target failed or was rejected.
func RunOnceWithDB(ctx context.Context, cfg *config.Config, dryRun bool, logger *logrus.Logger, db *database.SweepDB) (cleanup.Summary, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg == nil {
		return cleanup.Summary{}, errors.New("nil config")
	}

	select {
	case <-ctx.Done():
		return cleanup.Summary{}, ctx.Err()
	default:
	}

	start := time.Now()

	// Record sweep run timestamp
	metrics.RecordSweepRun()

	sweeper := cleanup.NewSweeper(logger, db, dryRun)
	sweeper.SetNotifier(resultNotifier())

	// Throttle CPU per deleted entry
	if cfg.ResourceLimits.MaxCPUPercent > 0 && cfg.ResourceLimits.MaxCPUPercent < 100 {
		cpuLimiter := limiter.NewCPULimiter(cfg.ResourceLimits.MaxCPUPercent)
		sweeper.SetThrottle(cpuLimiter.Throttle)
	}

	summary, err := sweeper.SweepWithConfig(ctx, cfg)
	if err != nil {
		metrics.ErrorsTotal.Inc()
		return summary, err
	}

	// Free space is read after the sweep so the gauges show its effect
	updateFreeSpaceMetrics(cfg, logger)

	total := summary.Total()
	logger.WithFields(logrus.Fields{
		"targets":  len(summary.Results),
		"deleted":  summary.Count(database.ActionDelete),
		"skipped":  summary.Count(database.ActionSkip),
		"errors":   summary.Count(database.ActionError),
		"bytes":    total.Bytes,
		"duration": time.Since(start).String(),
	}).Info("cycle complete")

	return summary, summary.Err()
}

// Run sweeps once, then again on every interval tick and every trigger
// received from the metrics server, until ctx is canceled.
func Run(ctx context.Context, cfg *config.Config, dryRun bool, logger *logrus.Logger, db *database.SweepDB) error {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg == nil {
		return errors.New("nil config")
	}
	if cfg.Interval() <= 0 {
		return errors.New("sweep interval must be positive")
	}

	runCycle := func(reason string) {
		logger.WithField("reason", reason).Info("starting sweep cycle")
		if _, err := RunOnceWithDB(ctx, cfg, dryRun, logger, db); err != nil {
			logger.WithError(err).Error("error running cycle")
		}
	}

	runCycle("startup")

	ticker := time.NewTicker(cfg.Interval())
	defer ticker.Stop()

	trigger := metrics.TriggerChannel()

	for {
		select {
		case <-ctx.Done():
			logger.Info("scheduler shutting down")
			return ctx.Err()
		case <-ticker.C:
			runCycle("interval")
		case <-trigger:
			runCycle("trigger")
		}
	}
}

// updateFreeSpaceMetrics updates free space metrics for the filesystem of
// every target. A deleted target is measured through its parent.
func updateFreeSpaceMetrics(cfg *config.Config, logger *logrus.Logger) {
	for _, path := range cfg.TargetPaths() {
		usage, err := disk.GetUsage(path)
		if err != nil {
			usage, err = disk.GetUsage(filepath.Dir(path))
		}
		if err != nil {
			logger.WithError(err).WithField("path", path).Debug("failed to get disk usage")
			continue
		}
		metrics.UpdateDiskMetrics(path, usage)
	}
}
