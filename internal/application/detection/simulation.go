package detection

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"
)

const (
	DefaultTick   = 200 * time.Millisecond
	DefaultSettle = 500 * time.Millisecond

	// minIncrement keeps every run finite: at most 100/minIncrement ticks.
	minIncrement = 0.5
	maxIncrement = 9.5
)

// Stepper yields the progress increment applied on each tick.
type Stepper interface {
	Step() float64
}

// UniformStepper samples increments uniformly from [Min, Max).
type UniformStepper struct {
	mu  sync.Mutex
	rnd *rand.Rand
	Min float64
	Max float64
}

func NewUniformStepper(min, max float64) *UniformStepper {
	// dedicated source, shared across sessions behind the mutex
	src := rand.NewSource(time.Now().UnixNano())
	return &UniformStepper{rnd: rand.New(src), Min: min, Max: max}
}

func (s *UniformStepper) Step() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Max <= s.Min {
		return s.Min
	}
	return s.Min + s.rnd.Float64()*(s.Max-s.Min)
}

// SimulationConfig tunes the progress animation.
type SimulationConfig struct {
	Tick    time.Duration
	Settle  time.Duration
	Stepper Stepper
}

// DefaultSimulation: 200ms ticks, mean step of 5 points, 500ms settle.
func DefaultSimulation() SimulationConfig {
	return SimulationConfig{
		Tick:    DefaultTick,
		Settle:  DefaultSettle,
		Stepper: NewUniformStepper(minIncrement, maxIncrement),
	}
}

func (c SimulationConfig) withDefaults() SimulationConfig {
	if c.Tick <= 0 {
		c.Tick = DefaultTick
	}
	if c.Settle < 0 {
		c.Settle = 0
	}
	if c.Stepper == nil {
		c.Stepper = NewUniformStepper(minIncrement, maxIncrement)
	}
	return c
}

// nextProgress applies one increment, never going backwards and never past 100.
func (c SimulationConfig) nextProgress(prev float64) float64 {
	step := c.Stepper.Step()
	if math.IsNaN(step) || step < minIncrement {
		step = minIncrement
	}
	next := prev + step
	if next >= 100 {
		return 100
	}
	return next
}

// Task is the handle of one running analysis. Cancel is safe to call any
// number of times; Done closes once the simulation goroutine has exited.
type Task struct {
	RunID string

	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

func newTask(runID string, cancel context.CancelFunc) *Task {
	return &Task{RunID: runID, cancel: cancel, done: make(chan struct{})}
}

func (t *Task) Cancel() { t.cancel() }

func (t *Task) Done() <-chan struct{} { return t.done }

// Err is valid after Done is closed: nil on completion, context.Canceled when
// cancelled, or the provider error.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the task ends or ctx is done.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
