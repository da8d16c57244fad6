package metrics

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Health metrics
var (
	// ServiceHealthy indicates overall daemon health status
	ServiceHealthy *prometheus.GaugeVec

	// ServiceStartTime records daemon start timestamp
	ServiceStartTime prometheus.Gauge

	// ComponentHealthy tracks individual component health
	ComponentHealthy *prometheus.GaugeVec

	// LastHealthCheck records timestamp of last health check
	LastHealthCheck *prometheus.GaugeVec

	// HealthCheckDuration tracks health check execution time
	HealthCheckDuration *prometheus.HistogramVec

	// HealthCheckFailures counts consecutive failures per component
	HealthCheckFailures *prometheus.GaugeVec

	// HealthCheckTimeouts counts checks abandoned after their timeout
	HealthCheckTimeouts prometheus.Counter
)

var errHealthCheckTimeout = errors.New("health check timeout")

// HealthChecker runs periodic checks against daemon components (history
// database, target filesystems) and backs the /health endpoint
type HealthChecker struct {
	mu            sync.RWMutex
	startTime     time.Time
	components    map[string]*ComponentHealth
	checkInterval time.Duration
	stopCh        chan struct{}
	wg            sync.WaitGroup
	started       bool
	stopped       bool
}

// ComponentHealth represents health status of a single component
type ComponentHealth struct {
	Name         string    `json:"name"`
	LastCheck    time.Time `json:"last_check"`
	Healthy      bool      `json:"healthy"`
	LastError    string    `json:"last_error,omitempty"`
	FailureCount int       `json:"failure_count"`

	check   func() error
	timeout time.Duration
}

func initHealthMetrics() {
	ServiceHealthy = NewGaugeVec(
		"dirsweep_daemon_healthy",
		"Daemon health status (1=healthy, 0=unhealthy).",
		[]string{"component"},
	)

	ServiceStartTime = NewGauge(
		"dirsweep_daemon_start_timestamp_seconds",
		"Unix timestamp when daemon started.",
	)

	ComponentHealthy = NewGaugeVec(
		"dirsweep_component_healthy",
		"Individual component health status (1=healthy, 0=unhealthy).",
		[]string{"component"},
	)

	LastHealthCheck = NewGaugeVec(
		"dirsweep_last_health_check_timestamp_seconds",
		"Unix timestamp of last health check.",
		[]string{"component"},
	)

	HealthCheckDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dirsweep_health_check_duration_seconds",
			Help:    "Time taken to execute health checks.",
			Buckets: HealthBuckets,
		},
		[]string{"component"},
	)

	HealthCheckFailures = NewGaugeVec(
		"dirsweep_health_check_failures_consecutive",
		"Consecutive health check failures per component.",
		[]string{"component"},
	)

	HealthCheckTimeouts = NewCounter(
		"dirsweep_health_check_timeouts_total",
		"Total number of health check timeouts.",
	)
}

func registerHealthMetrics() {
	prometheus.MustRegister(ServiceHealthy)
	prometheus.MustRegister(ServiceStartTime)
	prometheus.MustRegister(ComponentHealthy)
	prometheus.MustRegister(LastHealthCheck)
	prometheus.MustRegister(HealthCheckDuration)
	prometheus.MustRegister(HealthCheckFailures)
	prometheus.MustRegister(HealthCheckTimeouts)
}

// NewHealthChecker creates a health checker. Init must have been called.
func NewHealthChecker(interval time.Duration) *HealthChecker {
	hc := &HealthChecker{
		startTime:     time.Now(),
		components:    make(map[string]*ComponentHealth),
		checkInterval: interval,
		stopCh:        make(chan struct{}),
	}

	ServiceStartTime.Set(float64(hc.startTime.Unix()))
	ServiceHealthy.WithLabelValues("overall").Set(1)

	return hc
}

// RegisterComponent adds a component check; check returns nil when healthy.
// A zero timeout runs the check without a deadline.
func (hc *HealthChecker) RegisterComponent(name string, check func() error, timeout time.Duration) {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	hc.components[name] = &ComponentHealth{
		Name:    name,
		Healthy: true,
		check:   check,
		timeout: timeout,
	}

	ComponentHealthy.WithLabelValues(name).Set(1)
	HealthCheckFailures.WithLabelValues(name).Set(0)
}

// Start begins periodic health checking
// Must be called after registering all components
func (hc *HealthChecker) Start() {
	hc.mu.Lock()
	if hc.started {
		hc.mu.Unlock()
		return
	}
	hc.started = true
	hc.mu.Unlock()

	hc.wg.Add(1)
	go hc.runHealthCheckLoop()
}

// Stop halts health checking and waits for completion
func (hc *HealthChecker) Stop() {
	hc.mu.Lock()
	if !hc.started || hc.stopped {
		hc.mu.Unlock()
		return
	}
	hc.stopped = true
	hc.mu.Unlock()

	close(hc.stopCh)
	hc.wg.Wait()
}

func (hc *HealthChecker) runHealthCheckLoop() {
	defer hc.wg.Done()

	ticker := time.NewTicker(hc.checkInterval)
	defer ticker.Stop()

	hc.RunChecks()

	for {
		select {
		case <-ticker.C:
			hc.RunChecks()
		case <-hc.stopCh:
			return
		}
	}
}

// RunChecks executes all registered checks once
func (hc *HealthChecker) RunChecks() {
	hc.mu.Lock()
	defer hc.mu.Unlock()

	overallHealthy := true

	for name, comp := range hc.components {
		start := time.Now()

		var err error
		if comp.timeout > 0 {
			err = runWithTimeout(comp.check, comp.timeout)
		} else {
			err = comp.check()
		}

		HealthCheckDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

		comp.LastCheck = time.Now()
		LastHealthCheck.WithLabelValues(name).Set(float64(comp.LastCheck.Unix()))

		if err != nil {
			comp.Healthy = false
			comp.LastError = err.Error()
			comp.FailureCount++
			overallHealthy = false

			ComponentHealthy.WithLabelValues(name).Set(0)
			HealthCheckFailures.WithLabelValues(name).Set(float64(comp.FailureCount))
			ErrorsTotal.Inc()
		} else {
			comp.Healthy = true
			comp.LastError = ""
			comp.FailureCount = 0

			ComponentHealthy.WithLabelValues(name).Set(1)
			HealthCheckFailures.WithLabelValues(name).Set(0)
		}
	}

	if overallHealthy {
		ServiceHealthy.WithLabelValues("overall").Set(1)
	} else {
		ServiceHealthy.WithLabelValues("overall").Set(0)
	}
}

func runWithTimeout(fn func() error, timeout time.Duration) error {
	errCh := make(chan error, 1)

	go func() {
		errCh <- fn()
	}()

	select {
	case err := <-errCh:
		return err
	case <-time.After(timeout):
		HealthCheckTimeouts.Inc()
		return errHealthCheckTimeout
	}
}

// Components returns a snapshot of every component's status
func (hc *HealthChecker) Components() []ComponentHealth {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	out := make([]ComponentHealth, 0, len(hc.components))
	for _, comp := range hc.components {
		out = append(out, *comp)
	}
	slices.SortFunc(out, func(a, b ComponentHealth) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// IsHealthy returns true if all components are healthy
func (hc *HealthChecker) IsHealthy() bool {
	hc.mu.RLock()
	defer hc.mu.RUnlock()

	for _, comp := range hc.components {
		if !comp.Healthy {
			return false
		}
	}
	return true
}

// Uptime returns how long the checker has existed
func (hc *HealthChecker) Uptime() time.Duration {
	return time.Since(hc.startTime)
}
