package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"dirsweep/internal/database"
	"dirsweep/internal/deltree"
	"dirsweep/internal/fsops"
)

// Sweep subsystem metrics
var (
	// SweepDuration tracks how long a target sweep takes
	SweepDuration prometheus.Histogram

	// SweepsTotal counts sweeps by outcome (DELETE, SKIP, ERROR)
	SweepsTotal *prometheus.CounterVec

	// DirectoriesDeletedTotal tracks directories removed by sweeps
	DirectoriesDeletedTotal prometheus.Counter

	// FilesDeletedTotal tracks regular files removed by sweeps
	FilesDeletedTotal prometheus.Counter

	// BytesDeletedTotal tracks the size of regular files removed
	BytesDeletedTotal prometheus.Counter

	// ReadOnlyOverridesTotal counts entries whose read-only restriction was cleared
	ReadOnlyOverridesTotal prometheus.Counter

	// SweepFailuresTotal counts failed sweeps by error kind
	SweepFailuresTotal *prometheus.CounterVec

	// SweepLastRunTimestamp records Unix timestamp of last sweep cycle
	SweepLastRunTimestamp prometheus.Gauge

	// TargetBytesDeletedTotal tracks bytes deleted per target
	TargetBytesDeletedTotal *prometheus.CounterVec
)

func initSweepMetrics() {
	SweepDuration = NewDurationHistogram(
		"dirsweep_sweep_duration_seconds",
		"Duration of target sweeps in seconds.",
	)

	SweepsTotal = NewCounterVec(
		"dirsweep_sweeps_total",
		"Total number of target sweeps by action.",
		[]string{"action"},
	)

	DirectoriesDeletedTotal = NewCounter(
		"dirsweep_directories_deleted_total",
		"Total number of directories deleted.",
	)

	FilesDeletedTotal = NewCounter(
		"dirsweep_files_deleted_total",
		"Total number of regular files deleted.",
	)

	BytesDeletedTotal = NewCounter(
		"dirsweep_bytes_deleted_total",
		"Total bytes of regular files deleted.",
	)

	ReadOnlyOverridesTotal = NewCounter(
		"dirsweep_read_only_overrides_total",
		"Total number of entries whose read-only restriction was cleared before deletion.",
	)

	SweepFailuresTotal = NewCounterVec(
		"dirsweep_sweep_failures_total",
		"Total number of failed sweeps by error kind.",
		[]string{"kind"},
	)

	SweepLastRunTimestamp = NewGauge(
		"dirsweep_sweep_last_run_timestamp",
		"Timestamp of the last sweep cycle (Unix epoch seconds).",
	)

	TargetBytesDeletedTotal = NewCounterVec(
		"dirsweep_target_bytes_deleted_total",
		"Total bytes deleted per target.",
		[]string{"target"},
	)
}

func registerSweepMetrics() {
	prometheus.MustRegister(SweepDuration)
	prometheus.MustRegister(SweepsTotal)
	prometheus.MustRegister(DirectoriesDeletedTotal)
	prometheus.MustRegister(FilesDeletedTotal)
	prometheus.MustRegister(BytesDeletedTotal)
	prometheus.MustRegister(ReadOnlyOverridesTotal)
	prometheus.MustRegister(SweepFailuresTotal)
	prometheus.MustRegister(SweepLastRunTimestamp)
	prometheus.MustRegister(TargetBytesDeletedTotal)
}

// RecordSweepRun updates the last run timestamp to current time
func RecordSweepRun() {
	SweepLastRunTimestamp.Set(float64(time.Now().Unix()))
}

// RecordSweep records the outcome of one target sweep. Per-entry totals are
// fed by WalkObserver while the walk runs. Only DELETE results add to the
// per-target byte total; a dry run's counters describe nothing removed.
func RecordSweep(target, action string, counters deltree.Counters, duration time.Duration) {
	SweepsTotal.WithLabelValues(action).Inc()
	SweepDuration.Observe(duration.Seconds())
	if action == database.ActionDelete && counters.Bytes > 0 {
		TargetBytesDeletedTotal.WithLabelValues(target).Add(float64(counters.Bytes))
	}
}

// RecordFailure counts a failed sweep under the kind of err
func RecordFailure(err error) {
	SweepFailuresTotal.WithLabelValues(deltree.KindName(err)).Inc()
	ErrorsTotal.Inc()
}

// WalkObserver feeds per-entry deletions into the sweep counters
type WalkObserver struct{}

func (WalkObserver) EntryDeleted(entry fsops.Info) {
	switch entry.Kind {
	case fsops.KindDir:
		DirectoriesDeletedTotal.Inc()
	case fsops.KindFile:
		FilesDeletedTotal.Inc()
		BytesDeletedTotal.Add(float64(entry.Size))
	}
}

func (WalkObserver) ReadOnlyCleared(string) {
	ReadOnlyOverridesTotal.Inc()
}
