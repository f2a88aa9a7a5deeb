package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/xid"
	"github.com/sakif/life-tracker/internal/apperror"
	"github.com/sakif/life-tracker/internal/model"
)

// GetPreference looks the preference up case-insensitively.
func (db *DB) GetPreference(ctx context.Context, email string) (*model.SubscriptionPreference, error) {
	var (
		p            model.SubscriptionPreference
		subscribed   sql.NullTime
		unsubscribed sql.NullTime
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, email, subscribed, subscribed_at, unsubscribed_at
		 FROM subscription_preferences WHERE email_key = ?`,
		model.NormalizeEmail(email),
	).Scan(&p.ID, &p.Email, &p.Subscribed, &subscribed, &unsubscribed)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("subscription preference", email)
		}
		return nil, fmt.Errorf("sqlite: getting preference for %s: %w", email, err)
	}
	p.SubscribedAt = timePtr(subscribed)
	p.UnsubscribedAt = timePtr(unsubscribed)
	return &p, nil
}

// SavePreference inserts the preference or updates the existing row for the
// same normalised address; there is never more than one row per address.
func (db *DB) SavePreference(ctx context.Context, pref *model.SubscriptionPreference) error {
	err := db.conn.QueryRowContext(ctx,
		`INSERT INTO subscription_preferences
			(id, email, email_key, subscribed, subscribed_at, unsubscribed_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (email_key) DO UPDATE SET
			subscribed      = excluded.subscribed,
			subscribed_at   = excluded.subscribed_at,
			unsubscribed_at = excluded.unsubscribed_at
		 RETURNING id`,
		xid.New().String(),
		pref.Email,
		model.NormalizeEmail(pref.Email),
		pref.Subscribed,
		nullTime(pref.SubscribedAt),
		nullTime(pref.UnsubscribedAt),
	).Scan(&pref.ID)
	if err != nil {
		return fmt.Errorf("sqlite: saving preference for %s: %w", pref.Email, err)
	}
	return nil
}
