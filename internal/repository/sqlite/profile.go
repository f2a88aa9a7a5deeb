package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/rs/xid"
	"github.com/sakif/life-tracker/internal/apperror"
	"github.com/sakif/life-tracker/internal/model"
)

// LatestProfile returns the most recently created snapshot for the user.
func (db *DB) LatestProfile(ctx context.Context, userID string) (*model.ProfileSnapshot, error) {
	var (
		p   model.ProfileSnapshot
		raw string
	)
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, document, created_at FROM profiles
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`, userID,
	).Scan(&p.ID, &p.UserID, &raw, &p.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("profile", userID)
		}
		return nil, fmt.Errorf("sqlite: getting profile for %s: %w", userID, err)
	}

	if err := json.Unmarshal([]byte(raw), &p.Document); err != nil {
		return nil, fmt.Errorf("sqlite: decoding profile %s: %w", p.ID, err)
	}
	if p.Document == nil {
		p.Document = model.Document{}
	}
	return &p, nil
}

// CreateProfile appends a new snapshot; older snapshots are kept as history.
func (db *DB) CreateProfile(ctx context.Context, snapshot *model.ProfileSnapshot) error {
	if snapshot.Document == nil {
		snapshot.Document = model.Document{}
	}
	raw, err := json.Marshal(snapshot.Document)
	if err != nil {
		return fmt.Errorf("sqlite: encoding profile: %w", err)
	}

	snapshot.ID = xid.New().String()
	snapshot.CreatedAt = nowOr(snapshot.CreatedAt)

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO profiles (id, user_id, document, created_at) VALUES (?, ?, ?, ?)`,
		snapshot.ID, snapshot.UserID, string(raw), snapshot.CreatedAt)
	if err != nil {
		return fmt.Errorf("sqlite: creating profile: %w", err)
	}
	return nil
}
