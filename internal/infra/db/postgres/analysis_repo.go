package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	domain "github.com/bryanwahyu/deepfake-detector/internal/domain/detection"
	"github.com/bryanwahyu/deepfake-detector/internal/infra/db/dbutil"
)

type AnalysisRepository struct {
	db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

// Save inserts or updates an analysis record
func (r *AnalysisRepository) Save(ctx context.Context, a *domain.Record) error {
	const q = `
INSERT INTO detection_analyses
  (id, session_id, file_name, mime_type, size_bytes, media_kind,
   authenticity, confidence, result_json, started_at, completed_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
  authenticity=EXCLUDED.authenticity,
  confidence=EXCLUDED.confidence,
  result_json=EXCLUDED.result_json,
  completed_at=EXCLUDED.completed_at;
`
	completed := a.CompletedAt
	if completed.IsZero() {
		completed = time.Now()
	}
	started := a.StartedAt
	if started.IsZero() {
		started = completed
	}
	_, err := r.db.ExecContext(ctx, q,
		a.ID, dbutil.StringOrDash(string(a.SessionID)), dbutil.StringOrDash(a.FileName), a.MIMEType, a.Size,
		string(a.MediaKind), a.Authenticity, a.Confidence, dbutil.JSONOrEmpty(a.Result),
		started, completed,
	)
	return err
}

// Get returns one analysis by id
func (r *AnalysisRepository) Get(ctx context.Context, id string) (*domain.Record, error) {
	const q = `
SELECT id, session_id, file_name, mime_type, size_bytes, media_kind,
       authenticity, confidence, result_json, started_at, completed_at
FROM detection_analyses
WHERE id=$1
LIMIT 1;`
	row := r.db.QueryRowContext(ctx, q, id)
	var a domain.Record
	if err := row.Scan(
		&a.ID, &a.SessionID, &a.FileName, &a.MIMEType, &a.Size, &a.MediaKind,
		&a.Authenticity, &a.Confidence, &a.Result, &a.StartedAt, &a.CompletedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, err
	}
	return &a, nil
}

// Latest returns analyses ordered by completed_at desc
func (r *AnalysisRepository) Latest(ctx context.Context, limit int) ([]*domain.Record, error) {
	const q = `
SELECT id, session_id, file_name, mime_type, size_bytes, media_kind,
       authenticity, confidence, result_json, started_at, completed_at
FROM detection_analyses
ORDER BY completed_at DESC, id DESC
LIMIT $1;
`
	rows, err := r.db.QueryContext(ctx, q, dbutil.Limit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Record{}
	for rows.Next() {
		var a domain.Record
		if err := rows.Scan(
			&a.ID, &a.SessionID, &a.FileName, &a.MIMEType, &a.Size, &a.MediaKind,
			&a.Authenticity, &a.Confidence, &a.Result, &a.StartedAt, &a.CompletedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, &a)
	}
	return out, rows.Err()
}
