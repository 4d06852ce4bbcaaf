package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/nexuscore/nexuscore/pkg/metrics"
)

// RaftStatus is the slice of raftcluster.Adapter the health server needs,
// kept as a small interface here so this package never imports raftcluster.
type RaftStatus interface {
	IsLeader() bool
	LeaderAddr() string
}

// HealthServer provides HTTP health check endpoints
type HealthServer struct {
	raft RaftStatus
	mux  *http.ServeMux
}

// NewHealthServer creates a new health check HTTP server
func NewHealthServer(raft RaftStatus) *HealthServer {
	mux := http.NewServeMux()
	hs := &HealthServer{
		raft: raft,
		mux:  mux,
	}

	mux.HandleFunc("/health", hs.healthHandler)
	mux.HandleFunc("/ready", hs.readyHandler)
	mux.Handle("/metrics", metrics.Handler())

	// /healthz, /readyz, and /livez report per-component status from the
	// metrics package's health registry (internal/node registers "raft"
	// and "kvstore" against it), distinct from /health and /ready above,
	// which report only this node's Raft role.
	mux.Handle("/healthz", metrics.HealthHandler())
	mux.Handle("/readyz", metrics.ReadyHandler())
	mux.Handle("/livez", metrics.LivenessHandler())

	return hs
}

// Start starts the health check HTTP server
func (hs *HealthServer) Start(addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      hs.mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return server.ListenAndServe()
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse represents the readiness check response
type ReadyResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
	Message   string            `json:"message,omitempty"`
}

// healthHandler implements the /health endpoint: a liveness check that
// returns 200 as long as the process is alive, independent of Raft state.
func (hs *HealthServer) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(response)
}

// readyHandler implements the /ready endpoint: ready means this node either
// leads the Raft group or knows who does.
func (hs *HealthServer) readyHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	checks := make(map[string]string)
	ready := true
	message := ""

	if hs.raft == nil {
		checks["raft"] = "not initialized"
		ready = false
		message = "raft adapter not initialized"
	} else if hs.raft.IsLeader() {
		checks["raft"] = "leader"
	} else if leaderAddr := hs.raft.LeaderAddr(); leaderAddr != "" {
		checks["raft"] = "follower (leader: " + leaderAddr + ")"
	} else {
		checks["raft"] = "no leader elected"
		ready = false
		message = "waiting for leader election"
	}

	status := "ready"
	statusCode := http.StatusOK
	if !ready {
		status = "not ready"
		statusCode = http.StatusServiceUnavailable
	}

	response := ReadyResponse{
		Status:    status,
		Timestamp: time.Now(),
		Checks:    checks,
		Message:   message,
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(response)
}

// GetHandler returns the HTTP handler for embedding in other servers
func (hs *HealthServer) GetHandler() http.Handler {
	return hs.mux
}
