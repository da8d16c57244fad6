// Package api serves the authenticated sweep API: history queries, sweep
// triggers and a websocket stream of sweep events.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"dirsweep/internal/database"
	"dirsweep/internal/metrics"
)

const (
	ReadTimeout     = 15 * time.Second
	WriteTimeout    = 15 * time.Second
	IdleTimeout     = 60 * time.Second
	ShutdownTimeout = 10 * time.Second
)

// Options configures a Server
type Options struct {
	DB        *database.SweepDB // Optional; history routes answer 503 without it
	Tokens    *TokenManager     // Optional; without it every route is open
	Hub       *Hub
	RateLimit rate.Limit // Requests per second per client on mutating routes
	RateBurst int
	Logger    *logrus.Logger
}

// Server is the sweep API
type Server struct {
	opts    Options
	limiter *rateLimiter

	mu  sync.Mutex
	srv *http.Server
}

// NewServer creates a Server; call Handler or ListenAndServe to use it
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Hub == nil {
		opts.Hub = NewHub(opts.Logger)
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 1
	}
	if opts.RateBurst <= 0 {
		opts.RateBurst = 5
	}
	return &Server{
		opts:    opts,
		limiter: newRateLimiter(opts.RateLimit, opts.RateBurst),
	}
}

// Hub returns the event hub sweep results are published on
func (s *Server) Hub() *Hub {
	return s.opts.Hub
}

// Handler builds the API routes
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(securityHeaders)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	if s.opts.Tokens != nil {
		v1.Use(authMiddleware(s.opts.Tokens))
	}

	v1.Handle("/sweeps", s.route("api_sweeps", PermissionViewHistory, s.handleSweeps)).Methods(http.MethodGet)
	v1.Handle("/sweeps/stats", s.route("api_stats", PermissionViewHistory, s.handleStats)).Methods(http.MethodGet)
	v1.Handle("/sweeps/trigger", s.limiter.middleware(
		s.route("api_trigger", PermissionTriggerSweep, s.handleTrigger))).Methods(http.MethodPost)
	v1.Handle("/events", s.require(PermissionWatchEvents, s.opts.Hub)).Methods(http.MethodGet)

	return r
}

// route wraps h with metrics instrumentation and a permission check
func (s *Server) route(name, permission string, h http.HandlerFunc) http.Handler {
	return metrics.InstrumentHandler(name, s.require(permission, h))
}

func (s *Server) require(permission string, h http.Handler) http.Handler {
	if s.opts.Tokens == nil {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := getClaims(r)
		if !ok || !HasPermission(claims.Roles, permission) {
			respondError(w, ErrUnauthorized.Error(), http.StatusForbidden)
			return
		}
		h.ServeHTTP(w, r)
	})
}

func (s *Server) handleSweeps(w http.ResponseWriter, r *http.Request) {
	if s.opts.DB == nil {
		respondError(w, "sweep history is not enabled", http.StatusServiceUnavailable)
		return
	}

	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"), 50)
	if err != nil {
		respondError(w, "limit must be a positive integer", http.StatusBadRequest)
		return
	}

	var records []database.SweepRecord
	switch {
	case q.Get("action") != "":
		records, err = s.opts.DB.GetSweepsByAction(q.Get("action"))
	case q.Get("path") != "":
		records, err = s.opts.DB.GetSweepsByPath(q.Get("path"))
	default:
		records, err = s.opts.DB.GetRecentSweeps(limit)
	}
	if err != nil {
		s.opts.Logger.WithError(err).Error("history query failed")
		respondError(w, "history query failed", http.StatusInternalServerError)
		return
	}
	if len(records) > limit {
		records = records[:limit]
	}
	if records == nil {
		records = []database.SweepRecord{}
	}
	respondJSON(w, records, http.StatusOK)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.opts.DB == nil {
		respondError(w, "sweep history is not enabled", http.StatusServiceUnavailable)
		return
	}
	days, err := intParam(r.URL.Query().Get("days"), 30)
	if err != nil {
		respondError(w, "days must be a positive integer", http.StatusBadRequest)
		return
	}

	stats, err := s.opts.DB.GetSweepStats(days)
	if err != nil {
		s.opts.Logger.WithError(err).Error("stats query failed")
		respondError(w, "stats query failed", http.StatusInternalServerError)
		return
	}
	respondJSON(w, stats, http.StatusOK)
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	entry := s.opts.Logger.WithField("remote", clientAddr(r))
	if claims, ok := getClaims(r); ok {
		entry = entry.WithField("subject", claims.Subject)
	}

	switch err := metrics.RequestSweep(); {
	case errors.Is(err, metrics.ErrSweepPending):
		respondError(w, err.Error(), http.StatusConflict)
	case err != nil:
		respondError(w, err.Error(), http.StatusServiceUnavailable)
	default:
		entry.Info("sweep triggered through api")
		respondJSON(w, map[string]string{"status": "triggered"}, http.StatusAccepted)
	}
}

// ListenAndServe serves the API on addr until Shutdown is called
func (s *Server) ListenAndServe(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  ReadTimeout,
		WriteTimeout: WriteTimeout,
		IdleTimeout:  IdleTimeout,
	}
	s.mu.Lock()
	s.srv = srv
	s.mu.Unlock()

	s.opts.Logger.WithField("addr", addr).Info("api server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server and disconnects event clients
func (s *Server) Shutdown(ctx context.Context) error {
	s.opts.Hub.Close()

	s.mu.Lock()
	srv := s.srv
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, errors.New("not a positive integer")
	}
	return n, nil
}

func respondJSON(w http.ResponseWriter, v any, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, msg string, code int) {
	respondJSON(w, map[string]string{"error": msg}, code)
}
