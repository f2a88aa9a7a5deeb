package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/life-tracker/internal/model"
)

// UpsertDailyMetric creates the (email, date) row or overwrites only the
// fields set in patch.
func (db *DB) UpsertDailyMetric(ctx context.Context, email, date string, patch model.MetricPatch) (*model.DailyMetric, error) {
	now := time.Now().UTC()
	key := model.NormalizeEmail(email)

	var mood sql.NullString
	if patch.MorningMood != nil {
		mood = sql.NullString{String: *patch.MorningMood, Valid: true}
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO daily_metrics (id, email, email_key, date, morning_mood, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (email_key, date) DO UPDATE SET
			morning_mood = COALESCE(excluded.morning_mood, daily_metrics.morning_mood),
			updated_at   = excluded.updated_at`,
		xid.New().String(), email, key, date, mood, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: upserting metric for %s on %s: %w", email, date, err)
	}

	row := db.conn.QueryRowContext(ctx,
		`SELECT id, email, date, morning_mood, created_at, updated_at
		 FROM daily_metrics WHERE email_key = ? AND date = ?`, key, date)
	m, err := scanMetric(row)
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading metric for %s on %s: %w", email, date, err)
	}
	return m, nil
}

// ListDailyMetrics returns the newest limit rows for the address.
func (db *DB) ListDailyMetrics(ctx context.Context, email string, limit int) ([]model.DailyMetric, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, email, date, morning_mood, created_at, updated_at
		 FROM daily_metrics WHERE email_key = ?
		 ORDER BY date DESC
		 LIMIT ?`, model.NormalizeEmail(email), limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing metrics for %s: %w", email, err)
	}
	defer rows.Close()

	metrics := make([]model.DailyMetric, 0)
	for rows.Next() {
		m, err := scanMetric(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning metric row: %w", err)
		}
		metrics = append(metrics, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating metrics: %w", err)
	}
	return metrics, nil
}

func scanMetric(s rowScanner) (*model.DailyMetric, error) {
	var (
		m    model.DailyMetric
		mood sql.NullString
	)
	if err := s.Scan(&m.ID, &m.Email, &m.Date, &mood, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	if mood.Valid {
		m.MorningMood = &mood.String
	}
	return &m, nil
}
