package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/khanhnv2901/seca-certwatch/internal/api/middleware"
	"github.com/khanhnv2901/seca-certwatch/internal/application/monitor"
	"github.com/khanhnv2901/seca-certwatch/internal/application/scheduler"
	"github.com/khanhnv2901/seca-certwatch/internal/domain/target"
	sharedErrors "github.com/khanhnv2901/seca-certwatch/internal/shared/errors"
)

// Target is the read-only view of a monitored target.
type Target struct {
	ID                   string                      `json:"id"`
	Hostname             string                      `json:"hostname"`
	Name                 string                      `json:"name"`
	Description          string                      `json:"description,omitempty"`
	NotificationsEnabled bool                        `json:"notifications_enabled"`
	Status               target.Status               `json:"status"`
	LastCheck            *time.Time                  `json:"last_check,omitempty"`
	LastError            string                      `json:"last_error,omitempty"`
	Certificate          *target.CertificateSnapshot `json:"certificate,omitempty"`
	Protocols            *target.ProtocolReport      `json:"protocols,omitempty"`
	Assessment           *target.SecurityAssessment  `json:"assessment,omitempty"`
	Notifications        []target.NotificationRecord `json:"notifications,omitempty"`
	CreatedAt            time.Time                   `json:"created_at"`
	UpdatedAt            time.Time                   `json:"updated_at"`
}

// NewTarget converts a domain target into its API view.
func NewTarget(t *target.MonitoredTarget) Target {
	view := Target{
		ID:                   t.ID(),
		Hostname:             t.Hostname(),
		Name:                 t.Name(),
		Description:          t.Description(),
		NotificationsEnabled: t.NotificationsEnabled(),
		Status:               t.Status(),
		LastError:            t.LastError(),
		Certificate:          t.Certificate(),
		Protocols:            t.Protocols(),
		Assessment:           t.Assessment(),
		Notifications:        t.Notifications(),
		CreatedAt:            t.CreatedAt(),
		UpdatedAt:            t.UpdatedAt(),
	}
	if last := t.LastCheck(); !last.IsZero() {
		view.LastCheck = &last
	}
	return view
}

type TargetService interface {
	ListTargets(ctx context.Context) ([]*target.MonitoredTarget, error)
	GetTarget(ctx context.Context, ref string) (*target.MonitoredTarget, error)
}

// BatchService triggers full runs and reports the schedule.
type BatchService interface {
	RunNow(ctx context.Context) (monitor.BatchSummary, error)
	Info() scheduler.Info
}

type CheckService interface {
	RunCheck(ctx context.Context, id string) (monitor.CheckOutcome, error)
}

type HealthService interface {
	Check(ctx context.Context) error
	Ready(ctx context.Context) error
}

type Config struct {
	Targets        TargetService
	Batches        BatchService
	Checks         CheckService
	Health         HealthService
	MetricsHandler http.Handler
	AuthToken      string
	Logger         *zap.Logger
	CORSOrigins    []string // Allowed CORS origins (empty = allow all)
	RateLimit      int      // Requests per second per IP (0 = disabled)
	RateBurst      int      // Burst size for rate limiter
}

type Server struct {
	cfg      Config
	mux      *http.ServeMux
	limiters *rateLimiterMap
}

func NewServer(cfg Config) *Server {
	srv := &Server{
		cfg:      cfg,
		mux:      http.NewServeMux(),
		limiters: newRateLimiterMap(),
	}
	srv.routes()
	return srv
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// RequestID -> Logging -> RateLimit -> CORS -> Auth -> Handler
	handler := middleware.RequestID(s.withLogging(s.withRateLimit(s.withCORS(s.mux))))
	handler.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.Handle("/api/v1/health", http.HandlerFunc(s.handleHealth))
	s.mux.Handle("/api/v1/ready", http.HandlerFunc(s.handleReady))
	s.mux.Handle("/api/v1/targets", s.withAuth(http.HandlerFunc(s.handleTargets)))
	s.mux.Handle("/api/v1/targets/", s.withAuth(http.HandlerFunc(s.handleTargetByID)))
	s.mux.Handle("/api/v1/checks", s.withAuth(http.HandlerFunc(s.handleChecks)))
	s.mux.Handle("/api/v1/schedule", s.withAuth(http.HandlerFunc(s.handleSchedule)))

	if s.cfg.MetricsHandler != nil {
		s.mux.Handle("/metrics", s.cfg.MetricsHandler)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, r)
		return
	}
	if s.cfg.Health != nil {
		if err := s.cfg.Health.Check(r.Context()); err != nil {
			s.writeError(w, r, http.StatusInternalServerError, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, r)
		return
	}
	if s.cfg.Health != nil {
		if err := s.cfg.Health.Ready(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) handleTargets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, r)
		return
	}
	items, err := s.cfg.Targets.ListTargets(r.Context())
	if err != nil {
		s.writeError(w, r, http.StatusInternalServerError, err)
		return
	}
	resp := make([]Target, 0, len(items))
	for _, t := range items {
		resp = append(resp, NewTarget(t))
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleTargetByID serves GET /api/v1/targets/{id} and POST /api/v1/targets/{id}/check.
func (s *Server) handleTargetByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1/targets/"), "/")
	if rest == "" {
		s.writeError(w, r, http.StatusNotFound, errors.New("target ID required"))
		return
	}

	if id, ok := strings.CutSuffix(rest, "/check"); ok {
		s.handleTargetCheck(w, r, id)
		return
	}
	if strings.Contains(rest, "/") {
		s.writeError(w, r, http.StatusNotFound, errors.New("not found"))
		return
	}

	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, r)
		return
	}
	t, err := s.cfg.Targets.GetTarget(r.Context(), rest)
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, NewTarget(t))
}

func (s *Server) handleTargetCheck(w http.ResponseWriter, r *http.Request, ref string) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, r)
		return
	}
	if s.cfg.Checks == nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("check service not available"))
		return
	}
	// Resolve hostnames to IDs so both forms are accepted.
	t, err := s.cfg.Targets.GetTarget(r.Context(), ref)
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	outcome, err := s.cfg.Checks.RunCheck(r.Context(), t.ID())
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleChecks(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Batches == nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("check service not available"))
		return
	}
	switch r.Method {
	case http.MethodGet:
		info := s.cfg.Batches.Info()
		writeJSON(w, http.StatusOK, map[string]bool{"running": info.Running})
	case http.MethodPost:
		summary, err := s.cfg.Batches.RunNow(r.Context())
		if err != nil {
			s.writeError(w, r, statusFor(err), err)
			return
		}
		writeJSON(w, http.StatusOK, summary)
	default:
		s.methodNotAllowed(w, r)
	}
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Batches == nil {
		s.writeError(w, r, http.StatusNotFound, errors.New("scheduler not available"))
		return
	}
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, r)
		return
	}
	writeJSON(w, http.StatusOK, s.cfg.Batches.Info())
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, sharedErrors.ErrTargetNotFound):
		return http.StatusNotFound
	case errors.Is(err, sharedErrors.ErrInvalidTargetID), errors.Is(err, sharedErrors.ErrInvalidHostname):
		return http.StatusBadRequest
	case errors.Is(err, sharedErrors.ErrAlreadyRunning):
		return http.StatusConflict
	case errors.Is(err, sharedErrors.ErrSchedulerClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.RateLimit <= 0 {
			next.ServeHTTP(w, r)
			return
		}

		clientIP := clientAddress(r)
		limiter := s.limiters.getLimiter(clientIP, s.cfg.RateLimit, s.cfg.RateBurst)
		if !limiter.Allow() {
			s.requestLogger(r).Warn("rate_limit_exceeded", zap.String("client_ip", clientIP))
			s.writeError(w, r, http.StatusTooManyRequests, errors.New("rate limit exceeded"))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// clientAddress returns the first X-Forwarded-For hop, or the remote host.
func clientAddress(r *http.Request) string {
	clientIP := r.RemoteAddr
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		clientIP = strings.TrimSpace(first)
	}
	if host, _, err := net.SplitHostPort(clientIP); err == nil {
		return host
	}
	return strings.Trim(clientIP, "[]")
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		allowOrigin := "*"
		if len(s.cfg.CORSOrigins) > 0 {
			allowOrigin = ""
			for _, allowed := range s.cfg.CORSOrigins {
				if allowed == origin {
					allowOrigin = origin
					break
				}
			}
		}

		if allowOrigin != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowOrigin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Auth-Token")
			w.Header().Set("Access-Control-Max-Age", "3600")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(lrw, r)

		if s.cfg.Logger != nil {
			s.cfg.Logger.Info("http_request",
				zap.String("request_id", middleware.GetRequestID(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Int("status", lrw.statusCode),
				zap.Duration("duration", time.Since(start)),
				zap.Int64("bytes", lrw.bytesWritten),
			)
		}
	})
}

func (s *Server) withAuth(next http.Handler) http.Handler {
	if s.cfg.AuthToken == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("X-Auth-Token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AuthToken)) != 1 {
			s.writeError(w, r, http.StatusUnauthorized, errors.New("unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// loggingResponseWriter captures the status code and bytes written.
type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	n, err := lrw.ResponseWriter.Write(b)
	lrw.bytesWritten += int64(n)
	return n, err
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	msg := err.Error()

	// 5xx details stay in the server log.
	if status >= 500 && status != http.StatusServiceUnavailable && status != http.StatusGatewayTimeout {
		s.requestLogger(r).Error("internal_server_error",
			zap.Error(err),
			zap.Int("status", status),
		)
		msg = "internal server error"
	}

	writeJSON(w, status, map[string]string{"error": msg})
}

// requestLogger returns a logger carrying the request ID, method and path.
func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	if s.cfg.Logger == nil {
		return zap.NewNop()
	}
	return s.cfg.Logger.With(
		zap.String("request_id", middleware.GetRequestID(r.Context())),
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
	)
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, r *http.Request) {
	s.writeError(w, r, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

// rateLimiterMap manages per-IP rate limiters with automatic cleanup
type rateLimiterMap struct {
	mu       sync.Mutex
	limiters map[string]*ipLimiter
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newRateLimiterMap() *rateLimiterMap {
	m := &rateLimiterMap{
		limiters: make(map[string]*ipLimiter),
	}
	go m.cleanupLoop()
	return m
}

func (m *rateLimiterMap) getLimiter(ip string, rps, burst int) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	if burst <= 0 {
		burst = rps
	}
	entry, exists := m.limiters[ip]
	if !exists {
		entry = &ipLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
		m.limiters[ip] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

// cleanupLoop removes limiters that haven't been used in 5 minutes
func (m *rateLimiterMap) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		m.prune(5 * time.Minute)
	}
}

func (m *rateLimiterMap) prune(idle time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for ip, entry := range m.limiters {
		if time.Since(entry.lastSeen) > idle {
			delete(m.limiters, ip)
		}
	}
}
