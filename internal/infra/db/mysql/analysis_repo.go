package mysql

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

// Save inserts an analysis record
func (r *AnalysisRepository) Save(ctx context.Context, a *domain.Record) error {
	const q = `
INSERT INTO detection_analyses
  (id, session_id, file_name, mime_type, size_bytes, media_kind,
   authenticity, confidence, result_json, started_at, completed_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
  authenticity=VALUES(authenticity), confidence=VALUES(confidence),
  result_json=VALUES(result_json), completed_at=VALUES(completed_at);
`
	started, completed := recordTimes(a)
	_, err := r.db.ExecContext(ctx, q,
		a.ID, dbutil.StringOrDash(string(a.SessionID)), dbutil.StringOrDash(a.FileName), a.MIMEType, a.Size,
		string(a.MediaKind), a.Authenticity, a.Confidence, dbutil.JSONOrEmpty(a.Result),
		started, completed,
	)
	return err
}

// Get by ID
func (r *AnalysisRepository) Get(ctx context.Context, id string) (*domain.Record, error) {
	const q = `
SELECT id, session_id, file_name, mime_type, size_bytes, media_kind,
       authenticity, confidence, result_json, started_at, completed_at
FROM detection_analyses
WHERE id=? LIMIT 1;
`
	a, err := scanRecord(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrRecordNotFound
	}
	return a, err
}

// Latest returns analyses ordered by completed_at desc
func (r *AnalysisRepository) Latest(ctx context.Context, limit int) ([]*domain.Record, error) {
	const q = `
SELECT id, session_id, file_name, mime_type, size_bytes, media_kind,
       authenticity, confidence, result_json, started_at, completed_at
FROM detection_analyses
ORDER BY completed_at DESC, id DESC
LIMIT ?;
`
	rows, err := r.db.QueryContext(ctx, q, dbutil.Limit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*domain.Record{}
	for rows.Next() {
		a, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*domain.Record, error) {
	var a domain.Record
	var started, completed time.Time
	if err := s.Scan(
		&a.ID, &a.SessionID, &a.FileName, &a.MIMEType, &a.Size, &a.MediaKind,
		&a.Authenticity, &a.Confidence, &a.Result, &started, &completed,
	); err != nil {
		return nil, err
	}
	a.StartedAt = started.UTC()
	a.CompletedAt = completed.UTC()
	return &a, nil
}

func recordTimes(a *domain.Record) (time.Time, time.Time) {
	completed := a.CompletedAt
	if completed.IsZero() {
		completed = time.Now()
	}
	started := a.StartedAt
	if started.IsZero() {
		started = completed
	}
	return started.UTC(), completed.UTC()
}
