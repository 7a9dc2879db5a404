package middleware

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// HealthChecker is implemented by the history database and the preview stores.
type HealthChecker interface {
	Check(ctx context.Context) error
}

// DatabaseHealthChecker pings the history database.
type DatabaseHealthChecker struct {
	DB *sql.DB
}

func (d *DatabaseHealthChecker) Check(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return d.DB.PingContext(ctx)
}

type HealthStatus struct {
	Status         string                 `json:"status"`
	Timestamp      time.Time              `json:"timestamp"`
	ActiveSessions int                    `json:"active_sessions"`
	Checks         map[string]CheckStatus `json:"checks"`
}

type CheckStatus struct {
	Status    string `json:"status"`
	LatencyMS int64  `json:"latency_ms"`
	Message   string `json:"message,omitempty"`
}

// Health serves /health and /readyz from one set of dependency checks.
type Health struct {
	Checkers map[string]HealthChecker
	Sessions func() int // optional
}

// run executes every checker concurrently.
func (h Health) run(ctx context.Context) HealthStatus {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	status := HealthStatus{
		Status:    "healthy",
		Timestamp: time.Now(),
		Checks:    make(map[string]CheckStatus, len(h.Checkers)),
	}
	if h.Sessions != nil {
		status.ActiveSessions = h.Sessions()
	}

	var mu sync.Mutex
	var wg sync.WaitGroup
	for name, checker := range h.Checkers {
		wg.Add(1)
		go func(name string, checker HealthChecker) {
			defer wg.Done()
			start := time.Now()
			err := checker.Check(ctx)
			cs := CheckStatus{Status: "healthy", LatencyMS: time.Since(start).Milliseconds()}
			if err != nil {
				cs.Status = "unhealthy"
				cs.Message = err.Error()
			}
			mu.Lock()
			status.Checks[name] = cs
			if err != nil {
				status.Status = "unhealthy"
			}
			mu.Unlock()
		}(name, checker)
	}
	wg.Wait()
	return status
}

// Handler reports every check; any failure turns the response into 503.
func (h Health) Handler(w http.ResponseWriter, r *http.Request) {
	status := h.run(r.Context())
	code := http.StatusOK
	if status.Status != "healthy" {
		code = http.StatusServiceUnavailable
	}
	writeHealth(w, code, status)
}

// Ready is the load balancer probe: ready only while every dependency answers.
func (h Health) Ready(w http.ResponseWriter, r *http.Request) {
	status := h.run(r.Context())
	if status.Status == "healthy" {
		writeHealth(w, http.StatusOK, map[string]interface{}{
			"status":    "ready",
			"timestamp": status.Timestamp,
		})
		return
	}

	failing := make([]string, 0, len(status.Checks))
	for name, cs := range status.Checks {
		if cs.Status != "healthy" {
			failing = append(failing, name)
		}
	}
	sort.Strings(failing)
	writeHealth(w, http.StatusServiceUnavailable, map[string]interface{}{
		"status":    "not_ready",
		"timestamp": status.Timestamp,
		"failing":   failing,
	})
}

func writeHealth(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
