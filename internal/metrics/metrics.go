package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	initOnce       sync.Once
	serverMutex    sync.Mutex
	currentSrv     *http.Server
	triggerMutex   sync.RWMutex
	triggerChannel chan struct{}

	globalHealthChecker *HealthChecker
	healthMutex         sync.RWMutex
)

// Init initializes all metrics subsystems and registers them with Prometheus
// This function is safe to call multiple times (uses sync.Once)
func Init() {
	initOnce.Do(func() {
		initSweepMetrics()
		initDaemonMetrics()
		initAPIMetrics()
		initHealthMetrics()

		registerSweepMetrics()
		registerDaemonMetrics()
		registerAPIMetrics()
		registerHealthMetrics()

		// Present in /metrics before the first sweep
		SweepLastRunTimestamp.Set(0)

		triggerChannel = make(chan struct{}, 1)
	})
}

// SetTriggerChannel sets the channel /trigger sends sweep requests on
func SetTriggerChannel(ch chan struct{}) {
	triggerMutex.Lock()
	defer triggerMutex.Unlock()
	triggerChannel = ch
}

// TriggerChannel returns the channel /trigger sends sweep requests on
func TriggerChannel() <-chan struct{} {
	triggerMutex.RLock()
	defer triggerMutex.RUnlock()
	return triggerChannel
}

type healthResponse struct {
	Status        string            `json:"status"`
	Healthy       bool              `json:"healthy"`
	UptimeSeconds float64           `json:"uptime_seconds,omitempty"`
	Components    []ComponentHealth `json:"components,omitempty"`
}

// Handler returns the HTTP handler serving /metrics, /health and /trigger
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/health", InstrumentHandler("health", http.HandlerFunc(handleHealth)))
	mux.Handle("/trigger", InstrumentHandler("trigger", http.HandlerFunc(handleTrigger)))
	return mux
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Healthy: true}
	code := http.StatusOK

	if hc := GetHealthChecker(); hc != nil {
		resp.UptimeSeconds = hc.Uptime().Seconds()
		resp.Components = hc.Components()
		if !hc.IsHealthy() {
			resp.Status = "degraded"
			resp.Healthy = false
			code = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

func handleTrigger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	switch err := RequestSweep(); {
	case errors.Is(err, ErrTriggerUnavailable):
		http.Error(w, "Trigger channel not initialized", http.StatusServiceUnavailable)
	case errors.Is(err, ErrSweepPending):
		http.Error(w, "Sweep already pending", http.StatusServiceUnavailable)
	default:
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("Sweep triggered"))
	}
}

var (
	ErrTriggerUnavailable = errors.New("trigger channel not initialized")
	ErrSweepPending       = errors.New("sweep already pending")
)

// RequestSweep asks the scheduler for an immediate sweep without blocking
func RequestSweep() error {
	triggerMutex.RLock()
	ch := triggerChannel
	triggerMutex.RUnlock()

	if ch == nil {
		return ErrTriggerUnavailable
	}
	select {
	case ch <- struct{}{}:
		return nil
	default:
		return ErrSweepPending
	}
}

// StartServer starts the metrics HTTP server on the specified address
func StartServer(addr string, logger *logrus.Logger) {
	serverMutex.Lock()
	defer serverMutex.Unlock()

	if currentSrv != nil {
		logger.Infof("metrics server already running on %s", currentSrv.Addr)
		return
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	currentSrv = srv

	go func() {
		logger.Infof("metrics server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Error("metrics server error")
			ErrorsTotal.Inc()
		}
	}()
}

// Shutdown gracefully shuts down the metrics server and the health checker
func Shutdown(ctx context.Context, logger *logrus.Logger) {
	serverMutex.Lock()
	defer serverMutex.Unlock()

	healthMutex.Lock()
	if globalHealthChecker != nil {
		globalHealthChecker.Stop()
		globalHealthChecker = nil
	}
	healthMutex.Unlock()

	if currentSrv == nil {
		return
	}

	if err := currentSrv.Shutdown(ctx); err != nil {
		logger.WithError(err).Warn("metrics server shutdown error")
		ErrorsTotal.Inc()
	}
	currentSrv = nil
}

// SetHealthChecker sets the global health checker instance
func SetHealthChecker(hc *HealthChecker) {
	healthMutex.Lock()
	defer healthMutex.Unlock()
	globalHealthChecker = hc
}

// GetHealthChecker returns the global health checker instance
func GetHealthChecker() *HealthChecker {
	healthMutex.RLock()
	defer healthMutex.RUnlock()
	return globalHealthChecker
}
