package detection

import "context"

// ResultProvider produces the detection result for a file. The mock variants
// never read the file; a real backend may.
type ResultProvider interface {
	Detect(ctx context.Context, file SubmittedFile, preview Preview) (Result, error)
}

// Providers selects a ResultProvider per media kind.
type Providers map[MediaKind]ResultProvider

// For returns the provider registered for kind.
func (p Providers) For(kind MediaKind) (ResultProvider, error) {
	rp, ok := p[kind]
	if !ok || rp == nil {
		return nil, ErrNoProvider
	}
	return rp, nil
}

// PreviewStore issues revocable object references (port for storage).
// Each acquired preview must be released exactly once.
type PreviewStore interface {
	Acquire(ctx context.Context, file SubmittedFile) (Preview, error)
	Release(ctx context.Context, p Preview) error
}

// Repository port for completed analyses
type Repository interface {
	Save(ctx context.Context, r *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	Latest(ctx context.Context, limit int) ([]*Record, error)
}
