package detection

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrNoFile            = errors.New("no file loaded")
	ErrNoResult          = errors.New("no detection result yet")
	ErrWrongMediaKind    = errors.New("operation not supported for this media kind")
	ErrMultipleFiles     = errors.New("only one file may be submitted at a time")
	ErrSessionNotFound   = errors.New("session not found")
	ErrRecordNotFound    = errors.New("analysis record not found")
	ErrPreviewReleased   = errors.New("preview already released")
	ErrNoProvider        = errors.New("no result provider for media kind")

	// ErrQuotaExceeded indicates the inference backend returned a quota/limit error (HTTP 429 or similar).
	ErrQuotaExceeded = errors.New("detection quota exceeded")
)

// UnsupportedFileError is returned when the declared MIME type is not accepted.
type UnsupportedFileError struct {
	MIMEType string
}

func (e *UnsupportedFileError) Error() string {
	if e.MIMEType == "" {
		return "unsupported file: missing content type"
	}
	return fmt.Sprintf("unsupported file type %q", e.MIMEType)
}

// FileTooLargeError is returned when a file exceeds MaxFileSize.
type FileTooLargeError struct {
	Size  int64
	Limit int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("file too large: %d bytes (limit %d)", e.Size, e.Limit)
}

// PlaybackError reports a media resource that failed to play. It is never fatal.
type PlaybackError struct {
	Reason string
}

func (e *PlaybackError) Error() string {
	return "playback failed: " + e.Reason
}
