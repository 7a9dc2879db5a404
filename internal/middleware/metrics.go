package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	domain "github.com/bryanwahyu/deepfake-detector/internal/domain/detection"
)

// Metrics stores application metrics
type Metrics struct {
	RequestsTotal      uint64
	RequestsInProgress uint64
	RequestsSuccess    uint64
	RequestsFailed     uint64
	SessionsOpened     uint64
	SessionsActive     uint64
	FilesAccepted      uint64
	FilesImage         uint64
	FilesAudio         uint64
	FilesRejected      uint64
	FilesTooLarge      uint64
	AnalysesTotal      uint64
	AnalysesRunning    uint64
	AnalysesFailed     uint64
	AnalysesCancelled  uint64
	StartTime          time.Time
}

var globalMetrics = &Metrics{
	StartTime: time.Now(),
}

func inc(p *uint64) { atomic.AddUint64(p, 1) }

func dec(p *uint64) { atomic.AddUint64(p, ^uint64(0)) }

// Recorder feeds workflow events from the detection service into the global counters.
type Recorder struct{}

func (Recorder) SessionOpened() {
	inc(&globalMetrics.SessionsOpened)
	inc(&globalMetrics.SessionsActive)
}

func (Recorder) SessionClosed() { dec(&globalMetrics.SessionsActive) }

func (Recorder) FileAccepted(kind domain.MediaKind) {
	inc(&globalMetrics.FilesAccepted)
	switch kind {
	case domain.KindImage:
		inc(&globalMetrics.FilesImage)
	case domain.KindAudio:
		inc(&globalMetrics.FilesAudio)
	}
}

func (Recorder) FileRejected(err error) {
	inc(&globalMetrics.FilesRejected)
	var tooLarge *domain.FileTooLargeError
	if errors.As(err, &tooLarge) {
		inc(&globalMetrics.FilesTooLarge)
	}
}

func (Recorder) AnalysisStarted(domain.MediaKind) {
	inc(&globalMetrics.AnalysesTotal)
	inc(&globalMetrics.AnalysesRunning)
}

func (Recorder) AnalysisFinished(_ domain.MediaKind, err error) {
	dec(&globalMetrics.AnalysesRunning)
	switch {
	case errors.Is(err, context.Canceled):
		inc(&globalMetrics.AnalysesCancelled)
	case err != nil:
		inc(&globalMetrics.AnalysesFailed)
	}
}

// GetMetrics returns current metrics
func GetMetrics() map[string]interface{} {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return map[string]interface{}{
		"requests_total":       atomic.LoadUint64(&globalMetrics.RequestsTotal),
		"requests_in_progress": atomic.LoadUint64(&globalMetrics.RequestsInProgress),
		"requests_success":     atomic.LoadUint64(&globalMetrics.RequestsSuccess),
		"requests_failed":      atomic.LoadUint64(&globalMetrics.RequestsFailed),
		"sessions_opened":      atomic.LoadUint64(&globalMetrics.SessionsOpened),
		"sessions_active":      atomic.LoadUint64(&globalMetrics.SessionsActive),
		"files_accepted":       atomic.LoadUint64(&globalMetrics.FilesAccepted),
		"files_image":          atomic.LoadUint64(&globalMetrics.FilesImage),
		"files_audio":          atomic.LoadUint64(&globalMetrics.FilesAudio),
		"files_rejected":       atomic.LoadUint64(&globalMetrics.FilesRejected),
		"files_too_large":      atomic.LoadUint64(&globalMetrics.FilesTooLarge),
		"analyses_total":       atomic.LoadUint64(&globalMetrics.AnalysesTotal),
		"analyses_running":     atomic.LoadUint64(&globalMetrics.AnalysesRunning),
		"analyses_failed":      atomic.LoadUint64(&globalMetrics.AnalysesFailed),
		"analyses_cancelled":   atomic.LoadUint64(&globalMetrics.AnalysesCancelled),
		"uptime_seconds":       time.Since(globalMetrics.StartTime).Seconds(),
		"memory": map[string]interface{}{
			"alloc_bytes":       m.Alloc,
			"total_alloc_bytes": m.TotalAlloc,
			"sys_bytes":         m.Sys,
			"num_gc":            m.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// MetricsMiddleware tracks request metrics
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		inc(&globalMetrics.RequestsTotal)
		inc(&globalMetrics.RequestsInProgress)
		defer dec(&globalMetrics.RequestsInProgress)

		wrapped := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			inc(&globalMetrics.RequestsSuccess)
		} else {
			inc(&globalMetrics.RequestsFailed)
		}
	})
}

// MetricsHandler returns metrics as JSON
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(GetMetrics())
}
