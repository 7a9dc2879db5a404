package detection

import "math"

// PlaybackStatus enum
type PlaybackStatus string

const (
	PlaybackStopped PlaybackStatus = "stopped"
	PlaybackPlaying PlaybackStatus = "playing"
)

// Playback tracks the audio player. Duration is 0 until the media resource reports it.
type Playback struct {
	Status   PlaybackStatus `json:"status"`
	Position float64        `json:"position"`
	Duration float64        `json:"duration"`
	Muted    bool           `json:"muted"`
}

// NewPlayback returns a stopped player at position 0 with unknown duration.
func NewPlayback() Playback {
	return Playback{Status: PlaybackStopped}
}

func (p *Playback) Play() {
	p.Status = PlaybackPlaying
}

func (p *Playback) Pause() {
	p.Status = PlaybackStopped
}

// Seek clamps t to [0, duration]. With unknown duration the only valid position is 0.
func (p *Playback) Seek(t float64) {
	if math.IsNaN(t) || t < 0 {
		t = 0
	}
	if t > p.Duration {
		t = p.Duration
	}
	p.Position = t
}

// End handles the natural end of the media: stop and rewind.
func (p *Playback) End() {
	p.Status = PlaybackStopped
	p.Position = 0
}

// SetDuration records the duration reported by the media resource.
func (p *Playback) SetDuration(d float64) {
	if math.IsNaN(d) || math.IsInf(d, 0) || d < 0 {
		d = 0
	}
	p.Duration = d
	if p.Position > d {
		p.Position = d
	}
}

// Fail recovers from a playback failure by returning to Stopped.
func (p *Playback) Fail() {
	p.Status = PlaybackStopped
}

// Fraction is position/duration, using 1 as divisor while the duration is unknown.
func (p Playback) Fraction() float64 {
	d := p.Duration
	if d <= 0 {
		d = 1
	}
	return p.Position / d
}
