package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/rs/xid"
	"github.com/sakif/life-tracker/internal/apperror"
	"github.com/sakif/life-tracker/internal/model"
	"github.com/sakif/life-tracker/internal/repository"
)

const taskColumns = `id, user_id, description, status, created_at, deadline, completed_at`

// Active work first, then open, then completed; newest first within a group.
const taskOrder = `ORDER BY CASE status
		WHEN 'in_progress' THEN 0
		WHEN 'open' THEN 1
		ELSE 2 END,
	created_at DESC, id DESC`

// execer is the subset of *sql.DB and *sql.Tx the write helpers need.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// CreateTask inserts a task. ID and creation time are generated here; the
// creation time is never written again.
func (db *DB) CreateTask(ctx context.Context, task *model.Task) error {
	task.ID = xid.New().String()
	task.CreatedAt = nowOr(task.CreatedAt)
	if task.Status == "" {
		task.Status = model.StatusOpen
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		task.ID,
		task.UserID,
		task.Description,
		string(task.Status),
		task.CreatedAt,
		nullTime(task.Deadline),
		nullTime(task.CompletedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating task: %w", err)
	}
	return nil
}

// GetTask retrieves one of the user's tasks.
func (db *DB) GetTask(ctx context.Context, userID, id string) (*model.Task, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE user_id = ? AND id = ?`, userID, id)
	task, err := scanTask(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFoundMessage(fmt.Sprintf("Task with ID %s not found.", id))
		}
		return nil, fmt.Errorf("sqlite: getting task %s: %w", id, err)
	}
	return task, nil
}

// ListTasks returns the user's tasks in display order.
func (db *DB) ListTasks(ctx context.Context, userID string, filter repository.TaskFilter) ([]model.Task, error) {
	var (
		where strings.Builder
		args  = []any{userID}
	)
	where.WriteString(`WHERE user_id = ?`)
	if filter.Status != "" {
		where.WriteString(` AND status = ?`)
		args = append(args, string(filter.Status))
	}

	query := `SELECT ` + taskColumns + ` FROM tasks ` + where.String() + ` ` + taskOrder
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]model.Task, 0)
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning task row: %w", err)
		}
		tasks = append(tasks, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating tasks: %w", err)
	}
	return tasks, nil
}

// UpdateTask writes back the mutable fields of a task.
func (db *DB) UpdateTask(ctx context.Context, task *model.Task) error {
	return updateTask(ctx, db.conn, task)
}

// DeleteTask removes one of the user's tasks.
func (db *DB) DeleteTask(ctx context.Context, userID, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM tasks WHERE user_id = ? AND id = ?`, userID, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting task %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFoundMessage(fmt.Sprintf("Task with ID %s not found.", id))
	}
	return nil
}

// ApplyTaskChanges deletes and updates in one transaction. If any statement
// fails, or an update no longer matches a row owned by the user, nothing is
// committed.
func (db *DB) ApplyTaskChanges(ctx context.Context, userID string, cs model.ChangeSet[model.Task]) error {
	if cs.Empty() {
		return nil
	}
	return db.withTx(ctx, func(tx *sql.Tx) error {
		for _, id := range cs.Deleted {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM tasks WHERE user_id = ? AND id = ?`, userID, id); err != nil {
				return fmt.Errorf("sqlite: deleting task %s: %w", id, err)
			}
		}
		for i := range cs.Updated {
			task := cs.Updated[i]
			if task.UserID != userID {
				return apperror.Forbidden(fmt.Sprintf("task %s does not belong to user", task.ID))
			}
			if err := updateTask(ctx, tx, &task); err != nil {
				return err
			}
		}
		return nil
	})
}

func updateTask(ctx context.Context, ex execer, task *model.Task) error {
	result, err := ex.ExecContext(ctx,
		`UPDATE tasks
		 SET description = ?, status = ?, deadline = ?, completed_at = ?
		 WHERE id = ? AND user_id = ?`,
		task.Description,
		string(task.Status),
		nullTime(task.Deadline),
		nullTime(task.CompletedAt),
		task.ID,
		task.UserID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating task %s: %w", task.ID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFoundMessage(fmt.Sprintf("Task with ID %s not found.", task.ID))
	}
	return nil
}

func scanTask(s rowScanner) (*model.Task, error) {
	var (
		t         model.Task
		status    string
		deadline  sql.NullTime
		completed sql.NullTime
	)
	if err := s.Scan(&t.ID, &t.UserID, &t.Description, &status,
		&t.CreatedAt, &deadline, &completed); err != nil {
		return nil, err
	}
	t.Status = model.TaskStatus(status)
	t.Deadline = timePtr(deadline)
	t.CompletedAt = timePtr(completed)
	return &t, nil
}
