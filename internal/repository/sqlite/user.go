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

// compile-time check that *DB implements the whole store
var _ repository.Store = (*DB)(nil)

const userColumns = `id, email, name, created_at, updated_at`

// CreateUser inserts a new user. The ID and timestamps are generated here.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	user.CreatedAt = nowOr(user.CreatedAt)
	user.UpdatedAt = user.CreatedAt

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, email, email_key, name, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.Email,
		model.NormalizeEmail(user.Email),
		user.Name,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating user %s: %w", user.Email, err)
	}
	return nil
}

// GetUserByID retrieves a user by internal ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", id)
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", id, err)
	}
	return u, nil
}

// GetUserByEmail prefers an exact match and falls back to a case-insensitive one.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users
		 WHERE email = ? OR email_key = ?
		 ORDER BY (email = ?) DESC, created_at
		 LIMIT 1`,
		email, model.NormalizeEmail(email), email)
	u, err := scanUser(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", email)
		}
		return nil, fmt.Errorf("sqlite: getting user by email %s: %w", email, err)
	}
	return u, nil
}

// ListSubscribedUsers joins users to their active subscription preference.
func (db *DB) ListSubscribedUsers(ctx context.Context) ([]model.User, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT u.id, u.email, u.name, u.created_at, u.updated_at
		 FROM users u
		 JOIN subscription_preferences p ON p.email_key = u.email_key
		 WHERE p.subscribed = 1
		 ORDER BY u.created_at, u.id`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing subscribed users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}
	return users, nil
}

// PurgeUser deletes the user's delivery logs, tasks, notes and profile
// snapshots, then the user row, in a single transaction.
func (db *DB) PurgeUser(ctx context.Context, id string) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"delivery_logs", "tasks", "notes", "profiles"} {
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf(`DELETE FROM %s WHERE user_id = ?`, table), id); err != nil {
				return fmt.Errorf("sqlite: purging %s for user %s: %w", table, id, err)
			}
		}

		result, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("sqlite: deleting user %s: %w", id, err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("sqlite: checking rows affected: %w", err)
		}
		if n == 0 {
			return apperror.NotFound("user", id)
		}
		return nil
	})
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(s rowScanner) (*model.User, error) {
	var u model.User
	if err := s.Scan(&u.ID, &u.Email, &u.Name, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}
