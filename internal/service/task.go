// Package service contains the business rules of the tracker.
//
// Handlers parse HTTP, services validate and orchestrate, repositories talk
// to the database. Services accept primitives or small input structs, never
// *http.Request, so the same rules serve the HTTP API, the operation
// dispatcher and the CLI.
//
// Every service takes its repository as an interface (see
// internal/repository); tests inject in-memory fakes.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/life-tracker/internal/apperror"
	"github.com/sakif/life-tracker/internal/clock"
	"github.com/sakif/life-tracker/internal/model"
	"github.com/sakif/life-tracker/internal/reconcile"
	"github.com/sakif/life-tracker/internal/repository"
)

// TaskUpdate carries the fields of a single-task edit. Nil means unchanged;
// an empty Deadline clears the deadline.
type TaskUpdate struct {
	Description *string           `json:"description,omitempty"`
	Status      *model.TaskStatus `json:"status,omitempty"`
	Deadline    *string           `json:"deadline,omitempty"`
}

// TaskService handles single-item task operations. Whole-list edits go
// through reconcile.Engine.
type TaskService struct {
	repo   repository.TaskRepository
	clock  clock.Clock
	logger *slog.Logger
}

func NewTaskService(repo repository.TaskRepository, clk clock.Clock, logger *slog.Logger) *TaskService {
	return &TaskService{repo: repo, clock: clk, logger: logger}
}

// Create validates and saves a new open task.
func (s *TaskService) Create(ctx context.Context, userID, description, deadline string) (*model.Task, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, apperror.ValidationFailed("description", "Task description is required to add a task.")
	}

	now := s.clock.Now()
	due, err := model.ParseDeadline(deadline, now)
	if err != nil {
		return nil, apperror.ValidationFailed("deadline", model.DeadlineFormatMessage)
	}

	task := &model.Task{
		UserID:      userID,
		Description: description,
		Status:      model.StatusOpen,
		CreatedAt:   now,
		Deadline:    due,
	}
	if err := s.repo.CreateTask(ctx, task); err != nil {
		s.logger.Error("failed to create task",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating task: %w", err)
	}

	s.logger.Info("task created",
		slog.String("id", task.ID),
		slog.String("user_id", userID),
	)
	return task, nil
}

// Update applies upd to one of the user's tasks. Returns apperror.ErrNotFound
// with "Task with ID {id} not found." when the task is missing or belongs to
// someone else.
func (s *TaskService) Update(ctx context.Context, userID, id string, upd TaskUpdate) (*model.Task, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "Task ID is required to update a task.")
	}

	task, err := s.repo.GetTask(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	changed, err := reconcile.MergeTask(task, reconcile.TaskItem{
		ID:          id,
		Description: upd.Description,
		Status:      upd.Status,
		Deadline:    upd.Deadline,
	}, s.clock.Now())
	if err != nil {
		return nil, err
	}
	if !changed {
		return task, nil
	}

	if err := s.repo.UpdateTask(ctx, task); err != nil {
		s.logger.Error("failed to update task",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating task: %w", err)
	}

	s.logger.Info("task updated",
		slog.String("id", id),
		slog.String("status", string(task.Status)),
	)
	return task, nil
}

// List returns the user's tasks, active work first. An empty status lists all.
func (s *TaskService) List(ctx context.Context, userID, status string) ([]model.Task, error) {
	filter := repository.TaskFilter{Status: model.TaskStatus(strings.TrimSpace(status))}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperror.ValidationFailed("status",
			fmt.Sprintf("Invalid status '%s'. Must be one of: open, in_progress, completed.", status))
	}

	tasks, err := s.repo.ListTasks(ctx, userID, filter)
	if err != nil {
		s.logger.Error("failed to list tasks", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	return tasks, nil
}

// Delete removes one of the user's tasks.
func (s *TaskService) Delete(ctx context.Context, userID, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.ValidationFailed("id", "Task ID is required.")
	}
	if err := s.repo.DeleteTask(ctx, userID, id); err != nil {
		return err
	}
	s.logger.Info("task deleted", slog.String("id", id))
	return nil
}
