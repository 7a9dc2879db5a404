package detection

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	domain "github.com/bryanwahyu/deepfake-detector/internal/domain/detection"
)

// instantClock fires every timer immediately and advances virtual time.
type instantClock struct {
	mu    sync.Mutex
	now   time.Time
	waits []time.Duration
}

func newInstantClock() *instantClock {
	return &instantClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *instantClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *instantClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.waits = append(c.waits, d)
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

func (c *instantClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func (c *instantClock) Waits() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.waits...)
}

// manualClock hands every timer to the test, which fires it explicitly.
type manualClock struct {
	requests chan chan time.Time
}

func newManualClock() *manualClock {
	return &manualClock{requests: make(chan chan time.Time, 512)}
}

func (c *manualClock) Now() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

func (c *manualClock) After(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	c.requests <- ch
	return ch
}

// fire releases the next pending timer.
func (c *manualClock) fire(t *testing.T) {
	t.Helper()
	select {
	case ch := <-c.requests:
		ch <- time.Time{}
	case <-time.After(2 * time.Second):
		t.Fatal("no timer pending")
	}
}

type fixedStepper float64

func (s fixedStepper) Step() float64 { return float64(s) }

type seqStepper struct {
	mu    sync.Mutex
	steps []float64
	i     int
}

func (s *seqStepper) Step() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.steps[s.i%len(s.steps)]
	s.i++
	return v
}

// countingStore is a PreviewStore that reports double releases.
type countingStore struct {
	mu         sync.Mutex
	acquired   int
	released   int
	live       map[string]bool
	failAcq    error
	doubleFree int
}

func newCountingStore() *countingStore {
	return &countingStore{live: map[string]bool{}}
}

func (s *countingStore) Acquire(ctx context.Context, f domain.SubmittedFile) (domain.Preview, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAcq != nil {
		return domain.Preview{}, s.failAcq
	}
	s.acquired++
	key := f.Name + "#" + strconv.Itoa(s.acquired)
	s.live[key] = true
	return domain.Preview{Kind: domain.PreviewObjectRef, URI: "mem://" + key, Key: key}, nil
}

func (s *countingStore) Release(ctx context.Context, p domain.Preview) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.live[p.Key] {
		s.doubleFree++
		return domain.ErrPreviewReleased
	}
	delete(s.live, p.Key)
	s.released++
	return nil
}

func (s *countingStore) counts() (acquired, released, live, doubleFree int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquired, s.released, len(s.live), s.doubleFree
}

type failingProvider struct{ err error }

func (p failingProvider) Detect(context.Context, domain.SubmittedFile, domain.Preview) (domain.Result, error) {
	return domain.Result{}, p.err
}

type staticProvider struct{ res domain.Result }

func (p staticProvider) Detect(context.Context, domain.SubmittedFile, domain.Preview) (domain.Result, error) {
	return p.res.Clone(), nil
}

var (
	imagePayload = domain.Result{
		Authenticity: 0.23,
		Confidence:   0.89,
		ManipulatedAreas: []domain.ManipulatedArea{
			{X: 0.3, Y: 0.4, Width: 0.2, Height: 0.1, Confidence: 0.92, Type: "face_swap"},
		},
		Metadata: domain.ResultMetadata{
			Inconsistencies:    []string{"lighting"},
			TechniquesDetected: []string{"gan_generated"},
		},
	}
	audioPayload = domain.Result{
		Authenticity: 0.18,
		Confidence:   0.92,
		ManipulatedSegments: []domain.ManipulatedSegment{
			{Start: 2.4, End: 5.7, Confidence: 0.95, Type: "voice_synthesis"},
		},
		Metadata: domain.ResultMetadata{
			Inconsistencies:    []string{"voice_timbre"},
			TechniquesDetected: []string{"neural_voice"},
		},
	}
	errBackend = errors.New("backend down")
)

func testProviders() domain.Providers {
	return domain.Providers{
		domain.KindImage: staticProvider{imagePayload},
		domain.KindAudio: staticProvider{audioPayload},
	}
}

func pngFile(name string) domain.SubmittedFile {
	data := []byte("\x89PNG\r\n\x1a\n")
	return domain.SubmittedFile{Name: name, MIMEType: "image/png", Size: int64(len(data)), Content: data}
}

func mp3File(name string) domain.SubmittedFile {
	data := []byte("ID3\x03")
	return domain.SubmittedFile{Name: name, MIMEType: "audio/mpeg", Size: int64(len(data)), Content: data}
}

func waitTask(t *testing.T, task *Task) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := task.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("task did not finish")
	}
	return err
}
