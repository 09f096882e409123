// File: internal/server/server.go
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/smartdevs17/factory-monitor/internal/config"
	"github.com/smartdevs17/factory-monitor/internal/metrics"
	"github.com/smartdevs17/factory-monitor/internal/models"
	"github.com/smartdevs17/factory-monitor/internal/monitor"
	"github.com/smartdevs17/factory-monitor/internal/notification"
	"github.com/smartdevs17/factory-monitor/internal/storage"
	"github.com/smartdevs17/factory-monitor/pkg/utils"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// SystemMonitor is the part of the monitor the API exposes
type SystemMonitor interface {
	GetSystemStatus() *monitor.SystemStatus
	RunHealthCheckCycle(ctx context.Context) ([]*models.HealthCheckResult, error)
}

// DataSource is the read side of storage used by the API
type DataSource interface {
	Ping() error
	GetHealthChecks(ctx context.Context) ([]*models.SystemHealthCheck, error)
	GetAlerts(ctx context.Context, filter models.AlertFilter) ([]*models.SystemAlert, error)
	GetNotifications(ctx context.Context, recipientType string, recipientID int64, limit int) ([]*models.Notification, error)
	GetStorageStats(ctx context.Context) (*storage.StorageStats, error)
}

// NotificationStatus reports dispatcher health
type NotificationStatus interface {
	GetHealth() *notification.NotificationHealth
	GetStats() *notification.NotificationStats
}

// HTTPServer represents the HTTP server
type HTTPServer struct {
	config         *config.ServerConfig
	version        string
	server         *http.Server
	router         *mux.Router
	data           DataSource
	monitor        SystemMonitor
	notification   NotificationStatus
	metricsManager *metrics.Manager
	logger         *logrus.Entry
	stopChan       chan struct{}
}

// NewHTTPServer creates a new HTTP server
func NewHTTPServer(
	cfg *config.ServerConfig,
	version string,
	data DataSource,
	mon SystemMonitor,
	notifier NotificationStatus,
	metricsManager *metrics.Manager,
) *HTTPServer {
	s := &HTTPServer{
		config:         cfg,
		version:        version,
		data:           data,
		monitor:        mon,
		notification:   notifier,
		metricsManager: metricsManager,
		logger:         utils.ComponentLogger("http_server"),
		stopChan:       make(chan struct{}),
	}

	s.setupRouter()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s
}

// Handler returns the router, mainly for tests
func (s *HTTPServer) Handler() http.Handler {
	return s.router
}

// setupRouter sets up the HTTP routes
func (s *HTTPServer) setupRouter() {
	s.router = mux.NewRouter()

	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.corsMiddleware)
	if s.metricsManager != nil {
		s.router.Use(s.metricsMiddleware)
	}

	// OPTIONS is listed so preflight requests reach the cors middleware
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", s.healthHandler).Methods("GET", "OPTIONS")
	api.HandleFunc("/status", s.statusHandler).Methods("GET", "OPTIONS")
	api.HandleFunc("/health-checks", s.healthChecksHandler).Methods("GET", "OPTIONS")
	api.HandleFunc("/alerts", s.alertsHandler).Methods("GET", "OPTIONS")
	api.HandleFunc("/notifications/{type}/{id:[0-9]+}", s.notificationsHandler).Methods("GET", "OPTIONS")
	api.HandleFunc("/stats", s.statsHandler).Methods("GET", "OPTIONS")
	api.HandleFunc("/monitor/check", s.runCheckHandler).Methods("POST", "OPTIONS")

	if s.config.EnableMetrics && s.metricsManager != nil {
		s.router.Handle("/metrics", promhttp.HandlerFor(s.metricsManager.Registry(), promhttp.HandlerOpts{}))
	}
}

// Start starts the HTTP server
func (s *HTTPServer) Start() error {
	s.logger.WithFields(logrus.Fields{
		"address":         s.server.Addr,
		"metrics_enabled": s.config.EnableMetrics,
	}).Info("Starting HTTP server")

	if s.metricsManager != nil {
		s.metricsManager.UpdateSystemMetrics()
		go s.systemMetricsUpdater()
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("HTTP server error")
			errChan <- err
		}
	}()

	// Catch immediate binding errors
	select {
	case err := <-errChan:
		return fmt.Errorf("failed to start HTTP server: %w", err)
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

func (s *HTTPServer) systemMetricsUpdater() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.metricsManager.UpdateSystemMetrics()
		}
	}
}

// Stop stops the HTTP server
func (s *HTTPServer) Stop() error {
	s.logger.Info("Stopping HTTP server")
	close(s.stopChan)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// healthHandler reports liveness plus the overall check status
func (s *HTTPServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	status := s.monitor.GetSystemStatus()

	overall := models.HealthStatusHealthy
	for _, res := range status.LastKnownStatus {
		switch res.Status {
		case models.HealthStatusCritical:
			overall = models.HealthStatusCritical
		case models.HealthStatusWarning:
			if overall != models.HealthStatusCritical {
				overall = models.HealthStatusWarning
			}
		}
	}

	code := http.StatusOK
	dbOK := s.data.Ping() == nil
	if !dbOK || overall == models.HealthStatusCritical {
		code = http.StatusServiceUnavailable
	}

	s.writeJSON(w, code, map[string]interface{}{
		"status":      overall,
		"database_ok": dbOK,
		"monitoring":  status.HealthCheckArmed,
		"degraded":    status.Degraded,
		"timestamp":   time.Now().UTC().Format(time.RFC3339Nano),
		"version":     s.version,
	})
}

func (s *HTTPServer) statusHandler(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.monitor.GetSystemStatus())
}

func (s *HTTPServer) healthChecksHandler(w http.ResponseWriter, r *http.Request) {
	checks, err := s.data.GetHealthChecks(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to retrieve health checks", err)
		return
	}
	if checks == nil {
		checks = []*models.SystemHealthCheck{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"health_checks": checks,
		"count":         len(checks),
	})
}

// alertsHandler lists recent alerts; supports limit, type, severity and source
func (s *HTTPServer) alertsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid limit parameter", err)
		return
	}
	filter := models.AlertFilter{Limit: limit}

	if v := q.Get("type"); v != "" {
		t := models.AlertType(v)
		filter.Type = &t
	}
	if v := q.Get("severity"); v != "" {
		sev, ok := models.ParseSeverity(v)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "Invalid severity parameter", nil)
			return
		}
		filter.Severity = &sev
	}
	if v := q.Get("source"); v != "" {
		filter.Source = &v
	}

	alerts, err := s.data.GetAlerts(r.Context(), filter)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to retrieve alerts", err)
		return
	}
	if alerts == nil {
		alerts = []*models.SystemAlert{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

func (s *HTTPServer) notificationsHandler(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	recipientType := vars["type"]
	if recipientType != models.RecipientTypeRole && recipientType != models.RecipientTypeUser {
		s.writeError(w, http.StatusBadRequest, "Recipient type must be role or user", nil)
		return
	}
	recipientID, err := strconv.ParseInt(vars["id"], 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid recipient id", err)
		return
	}

	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid limit parameter", err)
		return
	}

	items, err := s.data.GetNotifications(r.Context(), recipientType, recipientID, limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to retrieve notifications", err)
		return
	}
	if items == nil {
		items = []*models.Notification{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": items,
		"count":         len(items),
	})
}

func (s *HTTPServer) statsHandler(w http.ResponseWriter, r *http.Request) {
	storageStats, err := s.data.GetStorageStats(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "Failed to retrieve storage stats", err)
		return
	}

	stats := map[string]interface{}{
		"timestamp": time.Now(),
		"storage":   storageStats,
	}
	if s.notification != nil {
		stats["notification"] = s.notification.GetStats()
		stats["notification_health"] = s.notification.GetHealth()
	}
	s.writeJSON(w, http.StatusOK, stats)
}

// runCheckHandler runs a health check cycle immediately
func (s *HTTPServer) runCheckHandler(w http.ResponseWriter, r *http.Request) {
	results, err := s.monitor.RunHealthCheckCycle(r.Context())
	resp := map[string]interface{}{
		"results": results,
		"count":   len(results),
	}
	if err != nil {
		resp["error"] = err.Error()
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// parseLimit reads a list limit; empty means the default and larger values
// are capped.
func parseLimit(v string) (int, error) {
	if v == "" {
		return defaultListLimit, nil
	}
	limit, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if limit <= 0 {
		return 0, fmt.Errorf("limit must be positive, got %d", limit)
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, nil
}

func (s *HTTPServer) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.WithError(err).Error("Failed to encode JSON response")
	}
}

func (s *HTTPServer) writeError(w http.ResponseWriter, status int, message string, err error) {
	errorResponse := map[string]interface{}{
		"error":     message,
		"status":    status,
		"timestamp": time.Now(),
	}

	if err != nil {
		errorResponse["details"] = err.Error()
		s.logger.WithError(err).WithFields(logrus.Fields{
			"status":  status,
			"message": message,
		}).Error("HTTP error")
	}

	s.writeJSON(w, status, errorResponse)
}
