package detection

import (
	"time"

	domain "github.com/bryanwahyu/deepfake-detector/internal/domain/detection"
)

// EventType enum
type EventType string

const (
	EventSnapshot        EventType = "snapshot"
	EventIntake          EventType = "intake"
	EventAnalysisStarted EventType = "analysis_started"
	EventProgress        EventType = "progress"
	EventResult          EventType = "result"
	EventAnalysisFailed  EventType = "analysis_failed"
	EventReset           EventType = "reset"
	EventPlayback        EventType = "playback"
	EventDisplay         EventType = "display"
)

// Event is pushed to subscribers on every transition.
type Event struct {
	Type     EventType `json:"type"`
	At       time.Time `json:"at"`
	Snapshot Snapshot  `json:"snapshot"`
}

// Snapshot is the read model of a controller.
type Snapshot struct {
	SessionID        domain.SessionID      `json:"session_id"`
	State            domain.State          `json:"state"`
	MediaKind        domain.MediaKind      `json:"media_kind"`
	File             *domain.SubmittedFile `json:"file,omitempty"`
	Preview          *domain.Preview       `json:"preview,omitempty"`
	Analysis         *domain.AnalysisRun   `json:"analysis,omitempty"`
	Result           *domain.Result        `json:"result,omitempty"`
	Verdict          string                `json:"verdict,omitempty"`
	Issues           []domain.Issue        `json:"issues,omitempty"`
	Segments         []domain.SegmentLabel `json:"segments,omitempty"`
	Playback         *domain.Playback      `json:"playback,omitempty"`
	PlaybackFraction *float64              `json:"playback_fraction,omitempty"`
	Display          *domain.Display       `json:"display,omitempty"`
	Error            string                `json:"error,omitempty"`
}

// Snapshot returns a copy of the current state including the preview.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked(true)
}

// StreamSnapshot is the snapshot as carried by events: data-URI previews are left out.
func (c *Controller) StreamSnapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked(false)
}

func (c *Controller) snapshotLocked(withPreview bool) Snapshot {
	s := Snapshot{
		SessionID: c.id,
		State:     c.state,
		MediaKind: c.kind,
		Error:     c.lastErr,
	}
	if c.file != nil {
		f := *c.file
		f.Content = nil
		s.File = &f
	}
	// data URIs can be tens of megabytes; events only carry object references
	if c.preview != nil && (withPreview || c.preview.Kind == domain.PreviewObjectRef) {
		p := *c.preview
		s.Preview = &p
	}
	if c.run != nil {
		r := *c.run
		s.Analysis = &r
	}
	if c.result != nil {
		r := c.result.Clone()
		s.Result = &r
		s.Verdict = r.Verdict(c.kind)
		s.Issues = r.DescribeIssues(c.kind)
		if c.kind == domain.KindAudio {
			s.Segments = r.SegmentLabels()
		}
	}
	switch c.kind {
	case domain.KindAudio:
		pb := c.playback
		frac := pb.Fraction()
		s.Playback = &pb
		s.PlaybackFraction = &frac
	case domain.KindImage:
		d := c.display
		s.Display = &d
	}
	return s
}

// Subscribe registers an observer. The returned func unsubscribes and closes
// the channel. Slow subscribers miss events rather than blocking transitions.
func (c *Controller) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	ch := make(chan Event, buffer)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	c.mu.Unlock()

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

func (c *Controller) emitLocked(t EventType) {
	if len(c.subs) == 0 {
		return
	}
	ev := Event{Type: t, At: c.currentTime(), Snapshot: c.snapshotLocked(false)}
	for _, ch := range c.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
