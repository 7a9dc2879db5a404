package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	domain "github.com/bryanwahyu/deepfake-detector/internal/domain/detection"
)

func TestRecorderRunningGaugeBalances(t *testing.T) {
	load := func(p *uint64) uint64 { return atomic.LoadUint64(p) }
	running := load(&globalMetrics.AnalysesRunning)
	failed := load(&globalMetrics.AnalysesFailed)
	cancelled := load(&globalMetrics.AnalysesCancelled)

	var r Recorder
	for _, err := range []error{nil, errors.New("backend down"), fmt.Errorf("run: %w", context.Canceled)} {
		r.AnalysisStarted(domain.KindImage)
		r.AnalysisFinished(domain.KindImage, err)
	}

	if got := load(&globalMetrics.AnalysesRunning); got != running {
		t.Errorf("analyses_running = %d, want %d", got, running)
	}
	if got := load(&globalMetrics.AnalysesFailed); got != failed+1 {
		t.Errorf("analyses_failed = %d, want %d", got, failed+1)
	}
	if got := load(&globalMetrics.AnalysesCancelled); got != cancelled+1 {
		t.Errorf("analyses_cancelled = %d, want %d", got, cancelled+1)
	}
}
