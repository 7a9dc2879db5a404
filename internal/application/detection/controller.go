package detection

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/deepfake-detector/internal/application"
	domain "github.com/bryanwahyu/deepfake-detector/internal/domain/detection"
)

// Completion is handed to the completion hook when a run ends: with a result,
// with the provider error, or with context.Canceled when the run was superseded.
type Completion struct {
	SessionID domain.SessionID
	File      domain.SubmittedFile
	Kind      domain.MediaKind
	Run       domain.AnalysisRun
	Result    *domain.Result
	Err       error
}

// ControllerOptions wires the controller's collaborators.
type ControllerOptions struct {
	Providers  domain.Providers
	Previews   domain.PreviewStore
	Clock      application.Clock
	Simulation SimulationConfig
	// OnStart runs under the controller lock; it must not call back into the controller.
	OnStart    func(id domain.SessionID, kind domain.MediaKind, runID string)
	OnComplete func(Completion)
}

// Controller owns the lifecycle of a single submitted file:
// empty -> loaded -> analyzing -> resulted, with reset back to empty from anywhere.
// All methods are safe for concurrent use; transitions are serialized by mu.
type Controller struct {
	id         domain.SessionID
	providers  domain.Providers
	previews   domain.PreviewStore
	clock      application.Clock
	sim        SimulationConfig
	onStart    func(domain.SessionID, domain.MediaKind, string)
	onComplete func(Completion)

	mu       sync.Mutex
	state    domain.State
	kind     domain.MediaKind
	file     *domain.SubmittedFile
	preview  *domain.Preview
	run      *domain.AnalysisRun
	result   *domain.Result
	lastErr  string
	task     *Task
	gen      uint64
	playback domain.Playback
	display  domain.Display

	subs    map[int]chan Event
	nextSub int
	closed  bool
}

func NewController(id domain.SessionID, opts ControllerOptions) *Controller {
	clock := opts.Clock
	if clock == nil {
		clock = application.SystemClock{}
	}
	return &Controller{
		id:         id,
		providers:  opts.Providers,
		previews:   opts.Previews,
		clock:      clock,
		sim:        opts.Simulation.withDefaults(),
		onStart:    opts.OnStart,
		onComplete: opts.OnComplete,
		state:      domain.StateEmpty,
		kind:       domain.KindNone,
		playback:   domain.NewPlayback(),
		display:    domain.NewDisplay(),
		subs:       make(map[int]chan Event),
	}
}

func (c *Controller) ID() domain.SessionID { return c.id }

// State returns the current workflow state.
func (c *Controller) State() domain.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Intake accepts a new file, replacing the current one. A rejected file leaves
// the controller untouched.
func (c *Controller) Intake(ctx context.Context, file domain.SubmittedFile) error {
	_, err := c.intake(ctx, file)
	return err
}

// intake returns the snapshot taken under the same lock as the transition.
func (c *Controller) intake(ctx context.Context, file domain.SubmittedFile) (Snapshot, error) {
	file.MIMEType = domain.NormalizeMIME(file.MIMEType)
	if file.Size == 0 && len(file.Content) > 0 {
		file.Size = int64(len(file.Content))
	}
	if err := domain.ValidateFile(file); err != nil {
		return Snapshot{}, err
	}
	kind := domain.Classify(file.MIMEType)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return Snapshot{}, domain.ErrSessionNotFound
	}

	c.cancelTaskLocked()
	// old object reference goes before a new one is created
	c.releasePreviewLocked(ctx)

	var preview domain.Preview
	if kind == domain.KindAudio {
		if c.previews == nil {
			c.clearLocked()
			c.emitLocked(EventReset)
			return Snapshot{}, fmt.Errorf("acquire preview: no preview store configured")
		}
		p, err := c.previews.Acquire(ctx, file)
		if err != nil {
			c.clearLocked()
			c.emitLocked(EventReset)
			return Snapshot{}, fmt.Errorf("acquire preview: %w", err)
		}
		preview = p
	} else {
		preview = dataURIPreview(file)
	}

	c.file = &file
	c.kind = kind
	c.preview = &preview
	c.run = nil
	c.result = nil
	c.lastErr = ""
	c.playback = domain.NewPlayback()
	c.state = domain.StateLoaded
	c.emitLocked(EventIntake)
	return c.snapshotLocked(true), nil
}

// StartAnalysis begins the simulated analysis. Only valid in the loaded state.
// The returned task outlives ctx's cancellation; use Task.Cancel or Reset to stop it.
func (c *Controller) StartAnalysis(ctx context.Context) (*Task, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.file == nil {
		return nil, domain.ErrNoFile
	}
	if c.state != domain.StateLoaded {
		return nil, fmt.Errorf("%w: cannot start analysis while %s", domain.ErrInvalidTransition, c.state)
	}

	c.gen++
	gen := c.gen
	runID := uuid.New().String()
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	task := newTask(runID, cancel)

	c.run = &domain.AnalysisRun{
		ID:        runID,
		Status:    domain.RunRunning,
		Progress:  0,
		StartedAt: c.clock.Now(),
	}
	c.result = nil
	c.lastErr = ""
	c.task = task
	c.state = domain.StateAnalyzing

	file := *c.file
	kind := c.kind
	preview := *c.preview
	if c.onStart != nil {
		c.onStart(c.id, kind, runID)
	}
	go c.simulate(runCtx, gen, task, file, kind, preview)

	c.emitLocked(EventAnalysisStarted)
	return task, nil
}

func (c *Controller) simulate(ctx context.Context, gen uint64, t *Task, file domain.SubmittedFile, kind domain.MediaKind, preview domain.Preview) {
	defer close(t.done)
	defer t.cancel()

	completed := false
	defer func() {
		if !completed {
			c.superseded(t.RunID, file, kind)
		}
	}()

	progress := 0.0
	for progress < 100 {
		select {
		case <-ctx.Done():
			t.err = ctx.Err()
			return
		case <-c.clock.After(c.sim.Tick):
		}
		progress = c.sim.nextProgress(progress)
		if !c.advance(gen, progress) {
			t.err = context.Canceled
			return
		}
	}

	select {
	case <-ctx.Done():
		t.err = ctx.Err()
		return
	case <-c.clock.After(c.sim.Settle):
	}

	var res domain.Result
	provider, err := c.providers.For(kind)
	if err == nil {
		res, err = provider.Detect(ctx, file, preview)
	}
	if ctx.Err() != nil {
		t.err = ctx.Err()
		return
	}
	if !c.finish(gen, res, err) {
		t.err = context.Canceled
		return
	}
	completed = true
	t.err = err
}

// superseded reports a run that ended without reaching finish (reset, new
// intake, close). Every started run is reported exactly once.
func (c *Controller) superseded(runID string, file domain.SubmittedFile, kind domain.MediaKind) {
	if c.onComplete == nil {
		return
	}
	file.Content = nil
	c.onComplete(Completion{
		SessionID: c.id,
		File:      file,
		Kind:      kind,
		Run:       domain.AnalysisRun{ID: runID, Status: domain.RunFailed},
		Err:       context.Canceled,
	})
}

// advance records progress for the run identified by gen. It returns false
// when the run has been superseded.
func (c *Controller) advance(gen uint64, progress float64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.gen || c.state != domain.StateAnalyzing || c.run == nil {
		return false
	}
	if progress < c.run.Progress {
		progress = c.run.Progress
	}
	c.run.Progress = progress
	c.emitLocked(EventProgress)
	return true
}

func (c *Controller) finish(gen uint64, res domain.Result, runErr error) bool {
	c.mu.Lock()
	if gen != c.gen || c.state != domain.StateAnalyzing || c.run == nil {
		c.mu.Unlock()
		return false
	}

	now := c.clock.Now()
	c.run.CompletedAt = &now
	c.task = nil

	done := Completion{SessionID: c.id, File: *c.file, Kind: c.kind, Err: runErr}
	done.File.Content = nil

	if runErr != nil {
		c.run.Status = domain.RunFailed
		c.lastErr = runErr.Error()
		c.state = domain.StateLoaded
		c.emitLocked(EventAnalysisFailed)
	} else {
		c.run.Progress = 100
		c.run.Status = domain.RunComplete
		out := res.Clone()
		c.result = &out
		c.display.Overlay = true
		c.state = domain.StateResulted
		c.emitLocked(EventResult)
		r := out.Clone()
		done.Result = &r
	}
	done.Run = *c.run
	hook := c.onComplete
	c.mu.Unlock()

	if hook != nil {
		hook(done)
	}
	return true
}

// Reset returns to empty from any state, cancelling a running analysis and
// releasing the preview.
func (c *Controller) Reset(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked(ctx)
}

func (c *Controller) resetLocked(ctx context.Context) {
	c.cancelTaskLocked()
	c.releasePreviewLocked(ctx)
	c.clearLocked()
	c.display = domain.NewDisplay()
	c.emitLocked(EventReset)
}

// Close resets the controller and disconnects every subscriber. Later intakes
// fail with ErrSessionNotFound.
func (c *Controller) Close(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked(ctx)
	c.closed = true
	for id, ch := range c.subs {
		close(ch)
		delete(c.subs, id)
	}
}

func (c *Controller) cancelTaskLocked() {
	if c.task != nil {
		c.task.Cancel()
		c.task = nil
	}
	// invalidates any in-flight tick of the previous run
	c.gen++
}

func (c *Controller) releasePreviewLocked(ctx context.Context) {
	if c.preview == nil {
		return
	}
	p := *c.preview
	c.preview = nil
	if p.Kind != domain.PreviewObjectRef || c.previews == nil {
		return
	}
	if err := c.previews.Release(ctx, p); err != nil {
		log.Printf("preview release failed session=%s key=%s err=%v", c.id, p.Key, err)
	}
}

func (c *Controller) clearLocked() {
	c.state = domain.StateEmpty
	c.kind = domain.KindNone
	c.file = nil
	c.preview = nil
	c.run = nil
	c.result = nil
	c.lastErr = ""
	c.playback = domain.NewPlayback()
}

func dataURIPreview(f domain.SubmittedFile) domain.Preview {
	return domain.Preview{
		Kind: domain.PreviewDataURI,
		URI:  "data:" + f.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(f.Content),
	}
}

//
// ==== PLAYBACK (audio only) ====
//

func (c *Controller) withAudio(fn func(p *domain.Playback)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return domain.ErrNoFile
	}
	if c.kind != domain.KindAudio {
		return domain.ErrWrongMediaKind
	}
	fn(&c.playback)
	c.emitLocked(EventPlayback)
	return nil
}

func (c *Controller) Play() error { return c.withAudio(func(p *domain.Playback) { p.Play() }) }

func (c *Controller) Pause() error { return c.withAudio(func(p *domain.Playback) { p.Pause() }) }

func (c *Controller) Seek(t float64) error {
	return c.withAudio(func(p *domain.Playback) { p.Seek(t) })
}

// EndPlayback handles the media resource reaching its natural end.
func (c *Controller) EndPlayback() error { return c.withAudio(func(p *domain.Playback) { p.End() }) }

// SetDuration is called once the media resource reports its duration.
func (c *Controller) SetDuration(d float64) error {
	return c.withAudio(func(p *domain.Playback) { p.SetDuration(d) })
}

func (c *Controller) SetMuted(muted bool) error {
	return c.withAudio(func(p *domain.Playback) { p.Muted = muted })
}

// PlaybackFailed records a failed play attempt. The player falls back to
// stopped and the failure is only logged.
func (c *Controller) PlaybackFailed(reason string) error {
	return c.withAudio(func(p *domain.Playback) {
		perr := &domain.PlaybackError{Reason: reason}
		log.Printf("audio playback error session=%s err=%v", c.id, perr)
		p.Fail()
	})
}

//
// ==== DISPLAY (image only) ====
//

func (c *Controller) withImage(fn func(d *domain.Display) error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.file == nil {
		return domain.ErrNoFile
	}
	if c.kind != domain.KindImage {
		return domain.ErrWrongMediaKind
	}
	if err := fn(&c.display); err != nil {
		return err
	}
	c.emitLocked(EventDisplay)
	return nil
}

func (c *Controller) ZoomIn() error {
	return c.withImage(func(d *domain.Display) error { d.ZoomIn(); return nil })
}

func (c *Controller) ZoomOut() error {
	return c.withImage(func(d *domain.Display) error { d.ZoomOut(); return nil })
}

func (c *Controller) SetZoom(z float64) error {
	return c.withImage(func(d *domain.Display) error { d.SetZoom(z); return nil })
}

// SetOverlay toggles the manipulated-area boxes; needs a result.
func (c *Controller) SetOverlay(visible bool) error {
	return c.withImage(func(d *domain.Display) error {
		if c.result == nil {
			return domain.ErrNoResult
		}
		d.Overlay = visible
		return nil
	})
}

// currentTime is used by Snapshot and events.
func (c *Controller) currentTime() time.Time { return c.clock.Now() }
