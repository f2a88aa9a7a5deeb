package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/xid"
	"github.com/sakif/life-tracker/internal/apperror"
	"github.com/sakif/life-tracker/internal/model"
	"github.com/sakif/life-tracker/internal/repository"
)

// CreateNote inserts a note, defaulting the category.
func (db *DB) CreateNote(ctx context.Context, note *model.Note) error {
	note.ID = xid.New().String()
	note.CreatedAt = nowOr(note.CreatedAt)
	if note.Category == "" {
		note.Category = model.DefaultNoteCategory
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO notes (id, user_id, content, category, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		note.ID, note.UserID, note.Content, note.Category, note.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating note: %w", err)
	}
	return nil
}

// ListNotes returns the user's notes, newest first. A zero limit means all.
func (db *DB) ListNotes(ctx context.Context, userID string, opts repository.ListOptions) ([]model.Note, error) {
	query := `SELECT id, user_id, content, category, created_at
		 FROM notes WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC`
	args := []any{userID}
	if opts.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, opts.Limit, max(opts.Offset, 0))
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing notes: %w", err)
	}
	defer rows.Close()

	notes := make([]model.Note, 0)
	for rows.Next() {
		var n model.Note
		if err := rows.Scan(&n.ID, &n.UserID, &n.Content, &n.Category, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning note row: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating notes: %w", err)
	}
	return notes, nil
}

// ApplyNoteChanges deletes and updates in one transaction.
func (db *DB) ApplyNoteChanges(ctx context.Context, userID string, cs model.ChangeSet[model.Note]) error {
	if cs.Empty() {
		return nil
	}
	return db.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range cs.Deleted {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM notes WHERE user_id = ? AND id = ?`, userID, id); err != nil {
				return fmt.Errorf("sqlite: deleting note %s: %w", id, err)
			}
		}
		for _, note := range cs.Updated {
			if note.UserID != userID {
				return apperror.Forbidden(fmt.Sprintf("note %s does not belong to user", note.ID))
			}
			result, err := tx.ExecContext(ctx,
				`UPDATE notes SET content = ?, category = ? WHERE id = ? AND user_id = ?`,
				note.Content, note.Category, note.ID, userID)
			if err != nil {
				return fmt.Errorf("sqlite: updating note %s: %w", note.ID, err)
			}
			n, err := result.RowsAffected()
			if err != nil {
				return fmt.Errorf("sqlite: checking rows affected: %w", err)
			}
			if n == 0 {
				return apperror.NotFound("note", note.ID)
			}
		}
		return nil
	})
}
