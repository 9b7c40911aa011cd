// Package api serves the pgwire-check status API: per-target health,
// an on-demand recheck endpoint, liveness/readiness probes, and the
// Prometheus metrics endpoint.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"runtime"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pgwire/pgwire/internal/checker"
	"github.com/pgwire/pgwire/internal/config"
)

// Server is the REST status/metrics server for pgwire-check.
type Server struct {
	checker    *checker.Checker
	cfg        *config.Config
	httpServer *http.Server
	startTime  time.Time
}

// NewServer creates a status API server bound to chk.
func NewServer(chk *checker.Checker, cfg *config.Config) *Server {
	return &Server{
		checker:   chk,
		cfg:       cfg,
		startTime: time.Now(),
	}
}

// Start begins serving the API on the configured bind address and port.
func (s *Server) Start() error {
	r := mux.NewRouter()

	r.HandleFunc("/targets", s.listTargets).Methods("GET")
	r.HandleFunc("/targets/{name}", s.getTarget).Methods("GET")
	r.HandleFunc("/targets/{name}/check", s.checkTarget).Methods("POST")

	r.HandleFunc("/status", s.statusHandler).Methods("GET")
	r.HandleFunc("/health", s.healthHandler).Methods("GET")
	r.HandleFunc("/ready", s.readyHandler).Methods("GET")

	r.Handle("/metrics", promhttp.Handler())

	r.HandleFunc("/", s.dashboardHandler).Methods("GET")

	addr := fmt.Sprintf("%s:%d", s.cfg.Listen.APIBind, s.cfg.Listen.APIPort)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	log.Printf("[api] listening on %s", addr)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("[api] server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the API server.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

type targetResponse struct {
	Name   string               `json:"name"`
	Target config.TargetConfig  `json:"target"`
	Health checker.TargetHealth `json:"health"`
}

func (s *Server) listTargets(w http.ResponseWriter, r *http.Request) {
	var result []targetResponse
	for name, tc := range s.cfg.Targets {
		result = append(result, targetResponse{
			Name:   name,
			Target: tc.Redacted(),
			Health: s.checker.GetStatus(name),
		})
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) getTarget(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	tc, ok := s.cfg.Targets[name]
	if !ok {
		writeError(w, http.StatusNotFound, "target not found")
		return
	}

	writeJSON(w, http.StatusOK, targetResponse{
		Name:   name,
		Target: tc.Redacted(),
		Health: s.checker.GetStatus(name),
	})
}

// checkTarget forces a single synchronous recheck of one target and
// returns its resulting health record.
func (s *Server) checkTarget(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	tc, ok := s.cfg.Targets[name]
	if !ok {
		writeError(w, http.StatusNotFound, "target not found")
		return
	}

	s.checker.CheckNow(name, tc)
	writeJSON(w, http.StatusOK, targetResponse{
		Name:   name,
		Target: tc.Redacted(),
		Health: s.checker.GetStatus(name),
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	statuses := s.checker.GetAllStatuses()
	allHealthy := s.checker.OverallHealthy()

	status := http.StatusOK
	if !allHealthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]interface{}{
		"status":  boolToStatus(allHealthy),
		"targets": statuses,
	})
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	if len(s.cfg.Targets) == 0 {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}

	for name := range s.cfg.Targets {
		if s.checker.IsHealthy(name) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
			return
		}
	}

	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"uptime_seconds": int(time.Since(s.startTime).Seconds()),
		"go_version":     runtime.Version(),
		"goroutines":     runtime.NumGoroutine(),
		"memory_mb":      float64(mem.Alloc) / 1024 / 1024,
		"num_targets":    len(s.cfg.Targets),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func boolToStatus(b bool) string {
	if b {
		return "healthy"
	}
	return "unhealthy"
}
