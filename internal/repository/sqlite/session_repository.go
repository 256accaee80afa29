package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shutterbox/internal/session"
)

// ErrNotFound は指定したセッションが履歴にないことを表す
var ErrNotFound = errors.New("セッションが見つかりません")

// 文字列の大小と時刻の前後が一致するよう、桁数固定のUTCで保存する
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SessionRepository はセッション結果を保存する
type SessionRepository struct {
	db *DB
}

// NewSessionRepository は新しいSessionRepositoryを作成する
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Record はセッション結果を保存する。同じIDは上書きする
func (r *SessionRepository) Record(ctx context.Context, report session.Report) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	_, err := r.db.conn.ExecContext(ctx, `
		INSERT OR REPLACE INTO sessions
			(id, kind, outcome, directory, requested, succeeded, failed, started_at, finished_at, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.SessionID,
		string(report.Kind),
		string(report.Outcome),
		report.Directory,
		report.Requested,
		report.Succeeded,
		report.Failed,
		formatTime(report.StartedAt),
		formatTime(report.FinishedAt),
		report.Error,
	)
	if err != nil {
		return fmt.Errorf("セッション履歴の保存に失敗: %w", err)
	}
	return nil
}

// List は新しい順に最大 limit 件を返す
func (r *SessionRepository) List(ctx context.Context, limit int) ([]session.Report, error) {
	if limit <= 0 {
		limit = 50
	}

	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT id, kind, outcome, directory, requested, succeeded, failed, started_at, finished_at, error
		FROM sessions ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("セッション履歴の取得に失敗: %w", err)
	}
	defer rows.Close()

	reports := make([]session.Report, 0)
	for rows.Next() {
		report, err := scanReport(rows)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("セッション履歴の取得に失敗: %w", err)
	}

	return reports, nil
}

// Get はIDでセッション結果を取得する
func (r *SessionRepository) Get(ctx context.Context, id string) (session.Report, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	row := r.db.conn.QueryRowContext(ctx, `
		SELECT id, kind, outcome, directory, requested, succeeded, failed, started_at, finished_at, error
		FROM sessions WHERE id = ?
	`, id)

	report, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return session.Report{}, ErrNotFound
	}
	return report, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(s scanner) (session.Report, error) {
	var (
		report              session.Report
		kind, outcome       string
		startedAt, finished string
	)
	err := s.Scan(
		&report.SessionID,
		&kind,
		&outcome,
		&report.Directory,
		&report.Requested,
		&report.Succeeded,
		&report.Failed,
		&startedAt,
		&finished,
		&report.Error,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return report, err
	}
	if err != nil {
		return report, fmt.Errorf("セッション履歴の読み取りに失敗: %w", err)
	}

	report.Kind = session.Kind(kind)
	report.Outcome = session.Outcome(outcome)
	report.StartedAt = parseTime(startedAt)
	report.FinishedAt = parseTime(finished)
	if report.Error != "" {
		report.Err = errors.New(report.Error)
	}
	return report, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
