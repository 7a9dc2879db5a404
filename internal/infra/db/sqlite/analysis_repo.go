package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	domain "github.com/bryanwahyu/deepfake-detector/internal/domain/detection"
	"github.com/bryanwahyu/deepfake-detector/internal/infra/db/dbutil"
)

// AnalysisRepository stores analyses in SQLite. Times are unix milliseconds.
type AnalysisRepository struct {
	db *sql.DB
}

func NewAnalysisRepository(db *sql.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

func (r *AnalysisRepository) Save(ctx context.Context, a *domain.Record) error {
	completed := a.CompletedAt
	if completed.IsZero() {
		completed = time.Now()
	}
	started := a.StartedAt
	if started.IsZero() {
		started = completed
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO detection_analyses(
			id, session_id, file_name, mime_type, size_bytes, media_kind,
			authenticity, confidence, result_json, started_at, completed_at
		)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			authenticity=excluded.authenticity,
			confidence=excluded.confidence,
			result_json=excluded.result_json,
			completed_at=excluded.completed_at
	`, a.ID, dbutil.StringOrDash(string(a.SessionID)), dbutil.StringOrDash(a.FileName), a.MIMEType, a.Size,
		string(a.MediaKind), a.Authenticity, a.Confidence, dbutil.JSONOrEmpty(a.Result),
		started.UnixMilli(), completed.UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert analysis: %w", err)
	}
	return nil
}

func (r *AnalysisRepository) Get(ctx context.Context, id string) (*domain.Record, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, session_id, file_name, mime_type, size_bytes, media_kind,
		       authenticity, confidence, result_json, started_at, completed_at
		FROM detection_analyses
		WHERE id = ?
		LIMIT 1
	`, id)
	a, err := scanRecord(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrRecordNotFound
		}
		return nil, fmt.Errorf("query analysis %s: %w", id, err)
	}
	return a, nil
}

func (r *AnalysisRepository) Latest(ctx context.Context, limit int) ([]*domain.Record, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, file_name, mime_type, size_bytes, media_kind,
		       authenticity, confidence, result_json, started_at, completed_at
		FROM detection_analyses
		ORDER BY completed_at DESC, id DESC
		LIMIT ?
	`, dbutil.Limit(limit))
	if err != nil {
		return nil, fmt.Errorf("query analyses: %w", err)
	}
	defer rows.Close()

	out := []*domain.Record{}
	for rows.Next() {
		a, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan analysis: %w", err)
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
	var started, completed int64
	if err := s.Scan(
		&a.ID, &a.SessionID, &a.FileName, &a.MIMEType, &a.Size, &a.MediaKind,
		&a.Authenticity, &a.Confidence, &a.Result, &started, &completed,
	); err != nil {
		return nil, err
	}
	a.StartedAt = time.UnixMilli(started).UTC()
	a.CompletedAt = time.UnixMilli(completed).UTC()
	return &a, nil
}
