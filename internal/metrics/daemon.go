package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"dirsweep/internal/disk"
)

// Daemon subsystem metrics
var (
	// ErrorsTotal tracks total errors encountered by the daemon
	ErrorsTotal prometheus.Counter

	// FreeSpacePercent tracks free space percentage on the filesystem of each target
	FreeSpacePercent *prometheus.GaugeVec

	// PathFreeBytes tracks free space available on the filesystem containing the target
	PathFreeBytes *prometheus.GaugeVec

	// PathTotalBytes tracks total capacity of the filesystem containing the target
	PathTotalBytes *prometheus.GaugeVec
)

func initDaemonMetrics() {
	ErrorsTotal = NewCounter(
		"dirsweep_daemon_errors_total",
		"Total number of errors encountered by dirsweep.",
	)

	FreeSpacePercent = NewGaugeVec(
		"dirsweep_daemon_free_space_percent",
		"Current free space percentage for the filesystem of each target.",
		[]string{"path"},
	)

	PathFreeBytes = NewGaugeVec(
		"dirsweep_path_free_bytes",
		"Free space available on the filesystem containing this target.",
		[]string{"path"},
	)

	PathTotalBytes = NewGaugeVec(
		"dirsweep_path_total_bytes",
		"Total capacity of the filesystem containing this target.",
		[]string{"path"},
	)
}

func registerDaemonMetrics() {
	prometheus.MustRegister(ErrorsTotal)
	prometheus.MustRegister(FreeSpacePercent)
	prometheus.MustRegister(PathFreeBytes)
	prometheus.MustRegister(PathTotalBytes)
}

// UpdateDiskMetrics publishes filesystem capacity for a target
func UpdateDiskMetrics(path string, usage disk.Usage) {
	FreeSpacePercent.WithLabelValues(path).Set(usage.FreePercent)
	PathFreeBytes.WithLabelValues(path).Set(float64(usage.FreeBytes))
	PathTotalBytes.WithLabelValues(path).Set(float64(usage.TotalBytes))
}
