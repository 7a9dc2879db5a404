package detection

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	domain "github.com/bryanwahyu/deepfake-detector/internal/domain/detection"
)

type memRepo struct {
	mu   sync.Mutex
	recs []*domain.Record
}

func (r *memRepo) Save(ctx context.Context, rec *domain.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recs = append(r.recs, rec)
	return nil
}

func (r *memRepo) Get(ctx context.Context, id string) (*domain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.recs {
		if rec.ID == id {
			return rec, nil
		}
	}
	return nil, domain.ErrRecordNotFound
}

func (r *memRepo) Latest(ctx context.Context, limit int) ([]*domain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*domain.Record{}
	for i := len(r.recs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, r.recs[i])
	}
	return out, nil
}

type countingObserver struct {
	mu       sync.Mutex
	opened   int
	closed   int
	accepted int
	rejected int
	started  int
	finished int
	failed   int
}

func (o *countingObserver) bump(p *int) {
	o.mu.Lock()
	*p++
	o.mu.Unlock()
}

func (o *countingObserver) SessionOpened() { o.bump(&o.opened) }

func (o *countingObserver) SessionClosed() { o.bump(&o.closed) }

func (o *countingObserver) FileAccepted(domain.MediaKind) { o.bump(&o.accepted) }

func (o *countingObserver) FileRejected(error) { o.bump(&o.rejected) }

func (o *countingObserver) AnalysisStarted(domain.MediaKind) { o.bump(&o.started) }

func (o *countingObserver) AnalysisFinished(_ domain.MediaKind, err error) {
	o.bump(&o.finished)
	if err != nil {
		o.bump(&o.failed)
	}
}

func newTestService(clk *instantClock, repo domain.Repository, obs Observer) *Service {
	return &Service{
		Providers:  testProviders(),
		Previews:   newCountingStore(),
		Repo:       repo,
		Clock:      clk,
		Simulation: SimulationConfig{Stepper: fixedStepper(25)},
		SessionTTL: time.Minute,
		Observer:   obs,
	}
}

func TestServiceWorkflowPersistsHistory(t *testing.T) {
	ctx := context.Background()
	repo := &memRepo{}
	obs := &countingObserver{}
	svc := newTestService(newInstantClock(), repo, obs)

	snap, err := svc.CreateSession(ctx)
	if err != nil {
		t.Fatal(err)
	}
	id := snap.SessionID

	if _, err := svc.Intake(ctx, id, domain.SubmittedFile{Name: "x.txt", MIMEType: "text/plain", Size: 3}); err == nil {
		t.Fatal("text file accepted")
	}
	if _, err := svc.Intake(ctx, id, mp3File("voice.mp3")); err != nil {
		t.Fatal(err)
	}
	_, task, err := svc.StartAnalysis(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if err := waitTask(t, task); err != nil {
		t.Fatal(err)
	}

	list, err := svc.History(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Fatalf("history = %d records", len(list))
	}
	rec := list[0]
	if rec.ID != task.RunID || rec.SessionID != id || rec.MediaKind != domain.KindAudio || rec.Authenticity != 0.18 {
		t.Fatalf("record = %+v", rec)
	}
	var res domain.Result
	if err := json.Unmarshal([]byte(rec.Result), &res); err != nil {
		t.Fatal(err)
	}
	if len(res.ManipulatedSegments) != 1 {
		t.Fatalf("stored result = %+v", res)
	}
	if got, err := svc.HistoryRecord(ctx, rec.ID); err != nil || got.ID != rec.ID {
		t.Fatalf("HistoryRecord = %v, %v", got, err)
	}

	obs.mu.Lock()
	defer obs.mu.Unlock()
	if obs.opened != 1 || obs.accepted != 1 || obs.rejected != 1 || obs.started != 1 || obs.finished != 1 || obs.failed != 0 {
		t.Fatalf("observer = %+v", obs)
	}
}

func TestServiceUnknownSession(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newInstantClock(), nil, nil)

	if _, err := svc.Snapshot(ctx, "nope"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("snapshot: %v", err)
	}
	if _, _, err := svc.StartAnalysis(ctx, "nope"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("start: %v", err)
	}
	if err := svc.CloseSession(ctx, "nope"); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("close: %v", err)
	}
	if _, err := svc.HistoryRecord(ctx, "r1"); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Fatalf("history record without repo: %v", err)
	}
	if list, err := svc.History(ctx, 5); err != nil || len(list) != 0 {
		t.Fatalf("history without repo: %v %v", list, err)
	}
}

func TestServiceEvictsIdleSessions(t *testing.T) {
	ctx := context.Background()
	clk := newInstantClock()
	svc := newTestService(clk, nil, nil)
	store := svc.Previews.(*countingStore)

	idle, _ := svc.CreateSession(ctx)
	svc.Intake(ctx, idle.SessionID, mp3File("idle.mp3"))

	clk.Advance(45 * time.Second)
	busy, _ := svc.CreateSession(ctx)

	clk.Advance(30 * time.Second)
	if n := svc.EvictIdle(ctx); n != 1 {
		t.Fatalf("evicted = %d, want 1", n)
	}
	if _, err := svc.Snapshot(ctx, idle.SessionID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("idle session still present: %v", err)
	}
	if _, err := svc.Snapshot(ctx, busy.SessionID); err != nil {
		t.Fatalf("busy session evicted: %v", err)
	}
	if _, released, live, _ := store.counts(); released != 1 || live != 0 {
		t.Fatalf("eviction must release previews: released=%d live=%d", released, live)
	}
	if svc.ActiveSessions() != 1 {
		t.Fatalf("active = %d", svc.ActiveSessions())
	}

	svc.Shutdown(ctx)
	if svc.ActiveSessions() != 0 {
		t.Fatal("shutdown left sessions")
	}
}

func TestServiceIntakeWithConcurrentReset(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(newInstantClock(), nil, nil)
	snap, _ := svc.CreateSession(ctx)
	id := snap.SessionID
	ctrl, err := svc.Controller(id)
	if err != nil {
		t.Fatal(err)
	}

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					ctrl.Reset(ctx)
				}
			}
		}()
	}

	for i := 0; i < 5000; i++ {
		got, err := svc.Intake(ctx, id, pngFile("x.png"))
		if err != nil {
			t.Fatalf("intake %d: %v", i, err)
		}
		// the returned snapshot is the one taken by the intake itself
		if got.State != domain.StateLoaded || got.File == nil || got.File.Name != "x.png" {
			t.Fatalf("intake %d snapshot = %+v", i, got)
		}
	}
	close(stop)
	wg.Wait()
}

func TestServiceCancelledRunsAreReported(t *testing.T) {
	cancellers := map[string]func(ctx context.Context, svc *Service, id domain.SessionID){
		"reset": func(ctx context.Context, svc *Service, id domain.SessionID) {
			svc.Reset(ctx, id)
		},
		"new intake": func(ctx context.Context, svc *Service, id domain.SessionID) {
			svc.Intake(ctx, id, pngFile("other.png"))
		},
		"close": func(ctx context.Context, svc *Service, id domain.SessionID) {
			svc.CloseSession(ctx, id)
		},
		"shutdown": func(ctx context.Context, svc *Service, _ domain.SessionID) {
			svc.Shutdown(ctx)
		},
	}
	for name, cancelRun := range cancellers {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			clk := newManualClock()
			obs := &countingObserver{}
			repo := &memRepo{}
			svc := &Service{
				Providers:  testProviders(),
				Previews:   newCountingStore(),
				Repo:       repo,
				Clock:      clk,
				Simulation: SimulationConfig{Stepper: fixedStepper(10)},
				Observer:   obs,
			}
			snap, _ := svc.CreateSession(ctx)
			id := snap.SessionID
			if _, err := svc.Intake(ctx, id, pngFile("a.png")); err != nil {
				t.Fatal(err)
			}
			_, task, err := svc.StartAnalysis(ctx, id)
			if err != nil {
				t.Fatal(err)
			}
			clk.fire(t)

			cancelRun(ctx, svc, id)
			if err := waitTask(t, task); !errors.Is(err, context.Canceled) {
				t.Fatalf("task err = %v", err)
			}

			obs.mu.Lock()
			started, finished, failed := obs.started, obs.finished, obs.failed
			obs.mu.Unlock()
			if started != 1 || finished != 1 || failed != 1 {
				t.Fatalf("started=%d finished=%d failed=%d", started, finished, failed)
			}
			if list, _ := svc.History(ctx, 10); len(list) != 0 {
				t.Fatalf("cancelled run persisted: %+v", list)
			}
		})
	}
}

func TestCloseRacingIntakeLeavesNoPreview(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 200; i++ {
		svc := newTestService(newInstantClock(), nil, nil)
		store := svc.Previews.(*countingStore)
		snap, _ := svc.CreateSession(ctx)
		ctrl, _ := svc.Controller(snap.SessionID)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			ctrl.Intake(ctx, mp3File("late.mp3"))
		}()
		go func() {
			defer wg.Done()
			svc.CloseSession(ctx, snap.SessionID)
		}()
		wg.Wait()

		if _, _, live, doubleFree := store.counts(); live != 0 || doubleFree != 0 {
			t.Fatalf("iteration %d: live=%d doubleFree=%d", i, live, doubleFree)
		}
		if err := ctrl.Intake(ctx, mp3File("after.mp3")); !errors.Is(err, domain.ErrSessionNotFound) {
			t.Fatalf("intake after close: %v", err)
		}
	}
}
