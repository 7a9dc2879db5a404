package detection

import (
	"time"
)

// SessionID identifies one detection session (one browser tab).
type SessionID string

// MediaKind enum
type MediaKind string

const (
	KindNone  MediaKind = "none"
	KindImage MediaKind = "image"
	KindAudio MediaKind = "audio"
)

// State of the workflow controller
type State string

const (
	StateEmpty     State = "empty"
	StateLoaded    State = "loaded"
	StateAnalyzing State = "analyzing"
	StateResulted  State = "resulted"
)

// RunStatus enum
type RunStatus string

const (
	RunIdle     RunStatus = "idle"
	RunRunning  RunStatus = "running"
	RunComplete RunStatus = "complete"
	RunFailed   RunStatus = "failed"
)

// SubmittedFile is the artifact dropped by the user.
// Content is kept only to build previews; detection never reads it.
type SubmittedFile struct {
	Name     string `json:"name"`
	MIMEType string `json:"mime_type"`
	Size     int64  `json:"size"`
	Content  []byte `json:"-"`
}

// AnalysisRun is one simulated pass over the current file.
type AnalysisRun struct {
	ID          string     `json:"id"`
	Status      RunStatus  `json:"status"`
	Progress    float64    `json:"progress"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ManipulatedArea is a flagged image region; coordinates are fractions of the image size.
type ManipulatedArea struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Confidence float64 `json:"confidence"`
	Type       string  `json:"type"`
}

// ManipulatedSegment is a flagged audio interval in seconds.
type ManipulatedSegment struct {
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
	Type       string  `json:"type"`
}

// ResultMetadata value object
type ResultMetadata struct {
	Inconsistencies    []string `json:"inconsistencies"`
	TechniquesDetected []string `json:"techniquesDetected"`
	OriginalDetected   bool     `json:"originalDetected"`
}

// Result is the payload rendered by the front-end. Field names are part of the
// wire contract and must not change.
type Result struct {
	Authenticity        float64              `json:"authenticity"`
	Confidence          float64              `json:"confidence"`
	ManipulatedAreas    []ManipulatedArea    `json:"manipulatedAreas,omitempty"`
	ManipulatedSegments []ManipulatedSegment `json:"manipulatedSegments,omitempty"`
	Metadata            ResultMetadata       `json:"metadata"`
}

// Clone returns a deep copy so callers can never mutate a shared payload.
func (r Result) Clone() Result {
	out := r
	if r.ManipulatedAreas != nil {
		out.ManipulatedAreas = append([]ManipulatedArea(nil), r.ManipulatedAreas...)
	}
	if r.ManipulatedSegments != nil {
		out.ManipulatedSegments = append([]ManipulatedSegment(nil), r.ManipulatedSegments...)
	}
	out.Metadata.Inconsistencies = append([]string(nil), r.Metadata.Inconsistencies...)
	out.Metadata.TechniquesDetected = append([]string(nil), r.Metadata.TechniquesDetected...)
	return out
}

// PreviewKind enum
type PreviewKind string

const (
	PreviewDataURI   PreviewKind = "data_uri"
	PreviewObjectRef PreviewKind = "object_ref"
)

// Preview is a renderable handle for the submitted file. Object references
// must be released through the PreviewStore that issued them.
type Preview struct {
	Kind PreviewKind `json:"kind"`
	URI  string      `json:"uri"`
	Key  string      `json:"-"`
}

// Record is a completed analysis kept for history.
type Record struct {
	ID           string    `json:"id"`
	SessionID    SessionID `json:"session_id"`
	FileName     string    `json:"file_name"`
	MIMEType     string    `json:"mime_type"`
	Size         int64     `json:"size"`
	MediaKind    MediaKind `json:"media_kind"`
	Authenticity float64   `json:"authenticity"`
	Confidence   float64   `json:"confidence"`
	Result       string    `json:"result"` // JSON string
	StartedAt    time.Time `json:"started_at"`
	CompletedAt  time.Time `json:"completed_at"`
}
