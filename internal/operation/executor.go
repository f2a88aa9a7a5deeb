package operation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sakif/life-tracker/internal/reconcile"
	"github.com/sakif/life-tracker/internal/service"
)

// Outcome is what one executed operation produced.
type Outcome struct {
	Kind   Kind `json:"kind"`
	Result any  `json:"result"`
}

// Executor runs operations against the services for one user at a time.
type Executor struct {
	tasks      *service.TaskService
	notes      *service.NoteService
	profiles   *service.ProfileService
	reconciler *reconcile.Engine
	logger     *slog.Logger
}

func NewExecutor(tasks *service.TaskService, notes *service.NoteService, profiles *service.ProfileService, reconciler *reconcile.Engine, logger *slog.Logger) *Executor {
	return &Executor{
		tasks:      tasks,
		notes:      notes,
		profiles:   profiles,
		reconciler: reconciler,
		logger:     logger,
	}
}

func (e *Executor) Execute(ctx context.Context, userID string, op Operation) (*Outcome, error) {
	var (
		result any
		err    error
	)
	switch op := op.(type) {
	case CreateTask:
		result, err = e.tasks.Create(ctx, userID, op.Description, op.Deadline)
	case UpdateTask:
		result, err = e.tasks.Update(ctx, userID, op.ID, service.TaskUpdate{
			Description: op.Description,
			Status:      op.Status,
			Deadline:    op.Deadline,
		})
	case ReconcileList:
		if op.Entity == EntityNotes {
			result, err = e.reconciler.ReconcileNotes(ctx, userID, op.Notes)
		} else {
			result, err = e.reconciler.ReconcileTasks(ctx, userID, op.Tasks)
		}
	case UpdateProfile:
		result, err = e.profiles.Update(ctx, userID, op.Patch, op.Replace)
	case LogNote:
		result, err = e.notes.Log(ctx, userID, op.Content, op.Category)
	default:
		return nil, fmt.Errorf("unhandled operation %T", op)
	}
	if err != nil {
		return nil, fmt.Errorf("executing %s: %w", op.Kind(), err)
	}

	e.logger.Info("operation executed", slog.String("user_id", userID), slog.String("kind", string(op.Kind())))
	return &Outcome{Kind: op.Kind(), Result: result}, nil
}
