package delivery

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/life-tracker/internal/model"
	"github.com/sakif/life-tracker/internal/snapshot"
	"github.com/sakif/life-tracker/internal/workflow"
)

// SnapshotBuilder is satisfied by *snapshot.Builder.
type SnapshotBuilder interface {
	Build(ctx context.Context, user *model.User) (*snapshot.Snapshot, error)
}

// WorkflowRunner is satisfied by *workflow.Workflow.
type WorkflowRunner interface {
	Run(ctx context.Context, snap *snapshot.Snapshot) (*workflow.Verdict, error)
}

// Briefer produces and delivers one user's briefing: snapshot, workflow,
// then the delivery pipeline.
type Briefer struct {
	snapshots SnapshotBuilder
	workflow  WorkflowRunner
	pipeline  *Pipeline
}

func NewBriefer(snapshots SnapshotBuilder, wf WorkflowRunner, pipeline *Pipeline) *Briefer {
	return &Briefer{snapshots: snapshots, workflow: wf, pipeline: pipeline}
}

func (b *Briefer) Brief(ctx context.Context, user *model.User) (*Result, error) {
	snap, err := b.snapshots.Build(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("building snapshot: %w", err)
	}
	verdict, err := b.workflow.Run(ctx, snap)
	if err != nil {
		return nil, fmt.Errorf("running workflow: %w", err)
	}
	return b.pipeline.Deliver(ctx, user, verdict.Text)
}

// SubscriberLister is satisfied by the user repository.
type SubscriberLister interface {
	ListSubscribedUsers(ctx context.Context) ([]model.User, error)
}

type briefer interface {
	Brief(ctx context.Context, user *model.User) (*Result, error)
}

// UserOutcome is one line of a batch summary.
type UserOutcome struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Summary reports what a batch run did for every subscriber.
type Summary struct {
	Delivered int           `json:"delivered"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Users     []UserOutcome `json:"users"`
	Duration  time.Duration `json:"duration"`
}

// BatchRunner briefs every subscriber, one user at a time so the model
// backend sees at most one workflow from the batch.
type BatchRunner struct {
	users   SubscriberLister
	briefer briefer
	logger  *slog.Logger
}

func NewBatchRunner(users SubscriberLister, b *Briefer, logger *slog.Logger) *BatchRunner {
	return &BatchRunner{users: users, briefer: b, logger: logger}
}

// Run returns an error only when the subscriber list cannot be read. A
// failure for one user is logged and counted, and the batch moves on.
func (r *BatchRunner) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	users, err := r.users.ListSubscribedUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing subscribers: %w", err)
	}
	r.logger.Info("daily briefing batch started", slog.Int("subscribers", len(users)))

	sum := &Summary{Users: make([]UserOutcome, 0, len(users))}
	for i := range users {
		if err := ctx.Err(); err != nil {
			return sum, fmt.Errorf("batch interrupted after %d users: %w", i, err)
		}
		sum.record(r.briefOne(ctx, &users[i]))
	}
	sum.Duration = time.Since(start)

	r.logger.Info("daily briefing batch finished",
		slog.Int("delivered", sum.Delivered),
		slog.Int("skipped", sum.Skipped),
		slog.Int("failed", sum.Failed),
		slog.Duration("duration", sum.Duration),
	)
	return sum, nil
}

func (r *BatchRunner) briefOne(ctx context.Context, user *model.User) (out UserOutcome) {
	out = UserOutcome{UserID: user.ID, Email: user.Email}
	defer func() {
		if rec := recover(); rec != nil {
			out.Status, out.Error = "failed", fmt.Sprintf("panic: %v", rec)
			r.logger.Error("briefing panicked", slog.String("user_id", user.ID), slog.Any("panic", rec))
		}
	}()

	res, err := r.briefer.Brief(ctx, user)
	if err != nil {
		r.logger.Error("briefing failed", slog.String("user_id", user.ID), slog.String("error", err.Error()))
		out.Status, out.Error = "failed", err.Error()
		return out
	}
	out.Reason = res.Reason
	if res.Status == StatusSkipped {
		out.Status = "skipped"
	} else {
		out.Status = "delivered"
	}
	return out
}

func (s *Summary) record(o UserOutcome) {
	switch o.Status {
	case "delivered":
		s.Delivered++
	case "skipped":
		s.Skipped++
	default:
		s.Failed++
	}
	s.Users = append(s.Users, o)
}

// VerdictArchiver returns a workflow completion hook that keeps every
// verdict in a. Failures are logged only.
func VerdictArchiver(a Archive, logger *slog.Logger) workflow.CompletionHook {
	return func(ctx context.Context, v *workflow.Verdict) {
		key := VerdictKey(v.UserID, time.Now())
		body := []byte(v.Text)
		if err := a.Put(ctx, key, bytes.NewReader(body), int64(len(body)), "text/markdown; charset=utf-8"); err != nil {
			logger.Error("archiving verdict failed", slog.String("key", key), slog.String("error", err.Error()))
		}
	}
}
