package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/life-tracker/internal/apperror"
	"github.com/sakif/life-tracker/internal/model"
)

// CreateDeliveryLog inserts the log row unless the same (user, category,
// fingerprint) already exists, in which case it returns apperror.ErrConflict
// and leaves the table untouched.
func (db *DB) CreateDeliveryLog(ctx context.Context, log *model.DeliveryLog) error {
	id := xid.New().String()
	sentAt := nowOr(log.SentAt)
	if log.Fingerprint == "" {
		log.Fingerprint = model.Fingerprint(log.Content)
	}

	result, err := db.conn.ExecContext(ctx,
		`INSERT INTO delivery_logs (id, user_id, category, content, fingerprint, sent_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, category, fingerprint) DO NOTHING`,
		id, log.UserID, log.Category, log.Content, log.Fingerprint, sentAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating delivery log: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.Conflict("delivery_log", log.Fingerprint)
	}

	log.ID = id
	log.SentAt = sentAt
	return nil
}

// GetDeliveryLog retrieves a log row by ID.
func (db *DB) GetDeliveryLog(ctx context.Context, id string) (*model.DeliveryLog, error) {
	var (
		l      model.DeliveryLog
		opened sql.NullTime
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, category, content, fingerprint, sent_at, opened_at
		 FROM delivery_logs WHERE id = ?`, id,
	).Scan(&l.ID, &l.UserID, &l.Category, &l.Content, &l.Fingerprint, &l.SentAt, &opened)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("delivery_log", id)
		}
		return nil, fmt.Errorf("sqlite: getting delivery log %s: %w", id, err)
	}
	l.OpenedAt = timePtr(opened)
	return &l, nil
}

// CountDeliveriesSince counts the user's logs of any category sent at or after since.
func (db *DB) CountDeliveriesSince(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	err := db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM delivery_logs WHERE user_id = ? AND sent_at >= ?`,
		userID, since.UTC(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("sqlite: counting deliveries for %s: %w", userID, err)
	}
	return count, nil
}

// MarkOpened stamps opened_at only while it is still NULL, so a repeated
// open never moves the first timestamp.
func (db *DB) MarkOpened(ctx context.Context, id string, at time.Time) (bool, error) {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE delivery_logs SET opened_at = ? WHERE id = ? AND opened_at IS NULL`,
		at.UTC(), id)
	if err != nil {
		return false, fmt.Errorf("sqlite: marking delivery log %s opened: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	var exists int
	err = db.conn.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM delivery_logs WHERE id = ?`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking delivery log %s: %w", id, err)
	}
	if exists == 0 {
		return false, apperror.NotFound("delivery_log", id)
	}
	return false, nil
}
