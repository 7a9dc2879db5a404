package detection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/deepfake-detector/internal/application"
	domain "github.com/bryanwahyu/deepfake-detector/internal/domain/detection"
)

// DefaultSessionTTL is how long an untouched session survives the janitor.
const DefaultSessionTTL = 30 * time.Minute

// Observer receives workflow counters (metrics).
type Observer interface {
	SessionOpened()
	SessionClosed()
	FileAccepted(kind domain.MediaKind)
	FileRejected(err error)
	AnalysisStarted(kind domain.MediaKind)
	AnalysisFinished(kind domain.MediaKind, err error)
}

type nopObserver struct{}

func (nopObserver) SessionOpened() {}
func (nopObserver) SessionClosed() {}
func (nopObserver) FileAccepted(domain.MediaKind) {}
func (nopObserver) FileRejected(error) {}
func (nopObserver) AnalysisStarted(domain.MediaKind) {}
func (nopObserver) AnalysisFinished(domain.MediaKind, error) {}

// Service implements use-cases untuk detection sessions.
// One Controller per session; the service is safe for concurrent use.
type Service struct {
	Providers  domain.Providers
	Previews   domain.PreviewStore
	Repo       domain.Repository // optional
	Clock      application.Clock
	Simulation SimulationConfig
	SessionTTL time.Duration
	Observer   Observer

	mu       sync.RWMutex
	sessions map[domain.SessionID]*session
}

type session struct {
	ctrl     *Controller
	lastSeen time.Time
}

func (s *Service) clock() application.Clock {
	if s.Clock == nil {
		return application.SystemClock{}
	}
	return s.Clock
}

func (s *Service) observer() Observer {
	if s.Observer == nil {
		return nopObserver{}
	}
	return s.Observer
}

//
// ==== USE CASES ====
//

// CreateSession opens a new empty session.
func (s *Service) CreateSession(ctx context.Context) (Snapshot, error) {
	id := domain.SessionID(uuid.New().String())
	ctrl := NewController(id, ControllerOptions{
		Providers:  s.Providers,
		Previews:   s.Previews,
		Clock:      s.clock(),
		Simulation: s.Simulation,
		OnStart:    s.onStart,
		OnComplete: s.onComplete,
	})

	s.mu.Lock()
	if s.sessions == nil {
		s.sessions = make(map[domain.SessionID]*session)
	}
	s.sessions[id] = &session{ctrl: ctrl, lastSeen: s.clock().Now()}
	s.mu.Unlock()

	s.observer().SessionOpened()
	log.Printf("session opened id=%s", id)
	return ctrl.Snapshot(), nil
}

// Controller returns the session's controller and marks the session as used.
func (s *Service) Controller(id domain.SessionID) (*Controller, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	sess.lastSeen = s.clock().Now()
	return sess.ctrl, nil
}

// Snapshot ambil state 1 session
func (s *Service) Snapshot(ctx context.Context, id domain.SessionID) (Snapshot, error) {
	ctrl, err := s.Controller(id)
	if err != nil {
		return Snapshot{}, err
	}
	return ctrl.Snapshot(), nil
}

// Intake loads a file into the session.
func (s *Service) Intake(ctx context.Context, id domain.SessionID, file domain.SubmittedFile) (Snapshot, error) {
	ctrl, err := s.Controller(id)
	if err != nil {
		return Snapshot{}, err
	}
	snap, err := ctrl.intake(ctx, file)
	if err != nil {
		var unsupported *domain.UnsupportedFileError
		var tooLarge *domain.FileTooLargeError
		if errors.As(err, &unsupported) || errors.As(err, &tooLarge) {
			s.observer().FileRejected(err)
			log.Printf("intake rejected session=%s name=%q type=%q size=%d err=%v",
				id, file.Name, file.MIMEType, file.Size, err)
		}
		return Snapshot{}, err
	}
	s.observer().FileAccepted(snap.MediaKind)
	log.Printf("intake accepted session=%s kind=%s type=%s size=%d", id, snap.MediaKind, file.MIMEType, file.Size)
	return snap, nil
}

// StartAnalysis launches the simulated analysis in the background.
func (s *Service) StartAnalysis(ctx context.Context, id domain.SessionID) (Snapshot, *Task, error) {
	ctrl, err := s.Controller(id)
	if err != nil {
		return Snapshot{}, nil, err
	}
	task, err := ctrl.StartAnalysis(ctx)
	if err != nil {
		return Snapshot{}, nil, err
	}
	return ctrl.Snapshot(), task, nil
}

// Reset clears the session back to empty.
func (s *Service) Reset(ctx context.Context, id domain.SessionID) (Snapshot, error) {
	ctrl, err := s.Controller(id)
	if err != nil {
		return Snapshot{}, err
	}
	ctrl.Reset(ctx)
	return ctrl.Snapshot(), nil
}

// CloseSession resets and forgets the session.
func (s *Service) CloseSession(ctx context.Context, id domain.SessionID) error {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if !ok {
		return domain.ErrSessionNotFound
	}
	sess.ctrl.Close(ctx)
	s.observer().SessionClosed()
	log.Printf("session closed id=%s", id)
	return nil
}

// ActiveSessions returns the number of open sessions.
func (s *Service) ActiveSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// EvictIdle closes sessions untouched for longer than SessionTTL.
func (s *Service) EvictIdle(ctx context.Context) int {
	ttl := s.SessionTTL
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	cut := s.clock().Now().Add(-ttl)

	var stale []domain.SessionID
	s.mu.RLock()
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cut) {
			stale = append(stale, id)
		}
	}
	s.mu.RUnlock()

	n := 0
	for _, id := range stale {
		if err := s.CloseSession(ctx, id); err == nil {
			n++
		}
	}
	return n
}

// RunJanitor evicts idle sessions every interval until ctx is done.
func (s *Service) RunJanitor(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.EvictIdle(ctx); n > 0 {
				log.Printf("janitor evicted=%d active=%d", n, s.ActiveSessions())
			}
		}
	}
}

// Shutdown closes every session, releasing all previews.
func (s *Service) Shutdown(ctx context.Context) {
	s.mu.Lock()
	all := s.sessions
	s.sessions = nil
	s.mu.Unlock()
	for _, sess := range all {
		sess.ctrl.Close(ctx)
	}
}

// History returns the latest persisted analyses.
func (s *Service) History(ctx context.Context, limit int) ([]*domain.Record, error) {
	if s.Repo == nil {
		return []*domain.Record{}, nil
	}
	return s.Repo.Latest(ctx, limit)
}

// HistoryRecord returns one persisted analysis.
func (s *Service) HistoryRecord(ctx context.Context, id string) (*domain.Record, error) {
	if s.Repo == nil {
		return nil, domain.ErrRecordNotFound
	}
	return s.Repo.Get(ctx, id)
}

func (s *Service) onStart(id domain.SessionID, kind domain.MediaKind, runID string) {
	s.observer().AnalysisStarted(kind)
	log.Printf("analysis started session=%s run=%s kind=%s", id, runID, kind)
}

func (s *Service) onComplete(c Completion) {
	s.observer().AnalysisFinished(c.Kind, c.Err)
	if errors.Is(c.Err, context.Canceled) {
		log.Printf("analysis cancelled session=%s run=%s", c.SessionID, c.Run.ID)
		return
	}
	if c.Err != nil {
		log.Printf("analysis failed session=%s run=%s err=%v", c.SessionID, c.Run.ID, c.Err)
		return
	}
	log.Printf("analysis complete session=%s run=%s kind=%s authenticity=%.2f",
		c.SessionID, c.Run.ID, c.Kind, c.Result.Authenticity)
	if s.Repo == nil {
		return
	}

	rec, err := newRecord(c)
	if err != nil {
		log.Printf("history encode error session=%s: %v", c.SessionID, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Repo.Save(ctx, rec); err != nil {
		log.Printf("history save error session=%s run=%s: %v", c.SessionID, c.Run.ID, err)
	}
}

func newRecord(c Completion) (*domain.Record, error) {
	b, err := json.Marshal(c.Result)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	completed := time.Now()
	if c.Run.CompletedAt != nil {
		completed = *c.Run.CompletedAt
	}
	return &domain.Record{
		ID:           c.Run.ID,
		SessionID:    c.SessionID,
		FileName:     c.File.Name,
		MIMEType:     c.File.MIMEType,
		Size:         c.File.Size,
		MediaKind:    c.Kind,
		Authenticity: c.Result.Authenticity,
		Confidence:   c.Result.Confidence,
		Result:       string(b),
		StartedAt:    c.Run.StartedAt,
		CompletedAt:  completed,
	}, nil
}
