// Package reconcile converges a user's persisted task or note list onto a
// client-submitted desired-state list.
//
// A reconciliation deletes what the client dropped, updates what the client
// changed and never creates anything. All writes of one call commit as a
// single transaction. Concurrent calls for the same user are not
// coordinated: the last commit wins.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sakif/life-tracker/internal/apperror"
	"github.com/sakif/life-tracker/internal/clock"
	"github.com/sakif/life-tracker/internal/model"
	"github.com/sakif/life-tracker/internal/repository"
)

// TaskItem is one entry of a submitted task list. Nil fields are not compared.
// An empty Deadline clears the deadline.
type TaskItem struct {
	ID          string            `json:"id,omitempty"`
	Description *string           `json:"description,omitempty"`
	Status      *model.TaskStatus `json:"status,omitempty"`
	Deadline    *string           `json:"deadline,omitempty"`
}

// NoteItem is one entry of a submitted note list. Nil fields are not compared.
type NoteItem struct {
	ID       string  `json:"id,omitempty"`
	Content  *string `json:"content,omitempty"`
	Category *string `json:"category,omitempty"`
}

// Result summarises one reconciliation.
type Result struct {
	Status  string `json:"status"`
	Deleted int    `json:"deleted"`
	Updated int    `json:"updated"`
	Message string `json:"message"`
}

// Engine applies reconciliations through the store.
type Engine struct {
	tasks  repository.TaskRepository
	notes  repository.NoteRepository
	clock  clock.Clock
	logger *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(tasks repository.TaskRepository, notes repository.NoteRepository, clk clock.Clock, logger *slog.Logger) *Engine {
	return &Engine{tasks: tasks, notes: notes, clock: clk, logger: logger}
}

// ReconcileTasks converges the user's tasks onto items.
func (e *Engine) ReconcileTasks(ctx context.Context, userID string, items []TaskItem) (*Result, error) {
	persisted, err := e.tasks.ListTasks(ctx, userID, repository.TaskFilter{})
	if err != nil {
		return nil, fmt.Errorf("loading tasks: %w", err)
	}

	now := e.clock.Now()
	cs, err := plan(persisted, items,
		func(t model.Task) string { return t.ID },
		func(i TaskItem) string { return strings.TrimSpace(i.ID) },
		func(t *model.Task, i TaskItem) (bool, error) { return MergeTask(t, i, now) },
	)
	if err != nil {
		return nil, err
	}

	if err := e.tasks.ApplyTaskChanges(ctx, userID, cs); err != nil {
		e.logger.Error("task reconciliation failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("applying task changes: %w", err)
	}

	res := newResult("task", len(cs.Deleted), len(cs.Updated))
	e.logger.Info("tasks reconciled",
		slog.String("user_id", userID),
		slog.Int("deleted", res.Deleted),
		slog.Int("updated", res.Updated),
	)
	return res, nil
}

// ReconcileNotes converges the user's notes onto items.
func (e *Engine) ReconcileNotes(ctx context.Context, userID string, items []NoteItem) (*Result, error) {
	persisted, err := e.notes.ListNotes(ctx, userID, repository.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("loading notes: %w", err)
	}

	cs, err := plan(persisted, items,
		func(n model.Note) string { return n.ID },
		func(i NoteItem) string { return strings.TrimSpace(i.ID) },
		mergeNote,
	)
	if err != nil {
		return nil, err
	}

	if err := e.notes.ApplyNoteChanges(ctx, userID, cs); err != nil {
		e.logger.Error("note reconciliation failed",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("applying note changes: %w", err)
	}

	res := newResult("log", len(cs.Deleted), len(cs.Updated))
	e.logger.Info("notes reconciled",
		slog.String("user_id", userID),
		slog.Int("deleted", res.Deleted),
		slog.Int("updated", res.Updated),
	)
	return res, nil
}

// MergeTask applies the non-nil fields of item to t and reports whether t
// changed. Invalid values yield a validation error and leave t partially
// modified, so callers must work on a copy.
func MergeTask(t *model.Task, item TaskItem, now time.Time) (bool, error) {
	changed := false

	if item.Description != nil {
		desc := strings.TrimSpace(*item.Description)
		if desc == "" {
			return false, apperror.ValidationFailed("description", "Task description cannot be empty.")
		}
		if desc != t.Description {
			t.Description = desc
			changed = true
		}
	}

	if item.Status != nil {
		if !item.Status.Valid() {
			return false, apperror.ValidationFailed("status",
				fmt.Sprintf("Invalid status '%s'. Must be one of: open, in_progress, completed.", *item.Status))
		}
		if t.SetStatus(*item.Status, now) {
			changed = true
		}
	}

	if item.Deadline != nil {
		deadline, err := model.ParseFixedDeadline(*item.Deadline)
		if err != nil {
			return false, apperror.ValidationFailed("deadline", model.DeadlineFormatMessage)
		}
		if t.SetDeadline(deadline) {
			changed = true
		}
	}

	return changed, nil
}

func mergeNote(n *model.Note, item NoteItem) (bool, error) {
	changed := false

	if item.Content != nil {
		content := strings.TrimSpace(*item.Content)
		if content == "" {
			return false, apperror.ValidationFailed("content", "Log content cannot be empty.")
		}
		if content != n.Content {
			n.Content = content
			changed = true
		}
	}

	if item.Category != nil {
		category := strings.TrimSpace(*item.Category)
		if category == "" {
			category = model.DefaultNoteCategory
		}
		if category != n.Category {
			n.Category = category
			changed = true
		}
	}

	return changed, nil
}

func newResult(noun string, deleted, updated int) *Result {
	var msg string
	switch {
	case deleted > 0 && updated > 0:
		msg = fmt.Sprintf("%d %s(s) deleted and %d %s(s) updated successfully.", deleted, noun, updated, noun)
	case deleted > 0:
		msg = fmt.Sprintf("%d %s(s) deleted successfully.", deleted, noun)
	case updated > 0:
		msg = fmt.Sprintf("%d %s(s) updated successfully.", updated, noun)
	default:
		msg = "No changes detected."
	}
	return &Result{Status: "success", Deleted: deleted, Updated: updated, Message: msg}
}
