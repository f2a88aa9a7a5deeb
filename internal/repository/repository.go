// Package repository declares the data-access contracts the services depend
// on. The sqlite package provides the production implementation; tests use
// in-memory fakes.
package repository

import (
	"context"
	"time"

	"github.com/sakif/life-tracker/internal/model"
)

type ListOptions struct {
	Limit  int
	Offset int
}

// TaskFilter narrows a task listing. A zero Status means all statuses.
type TaskFilter struct {
	Status model.TaskStatus
	Limit  int
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	// ListSubscribedUsers returns every user whose address has an active
	// subscription preference, oldest account first.
	ListSubscribedUsers(ctx context.Context) ([]model.User, error)
	// PurgeUser removes the user and everything the user owns in one transaction.
	PurgeUser(ctx context.Context, id string) error
}

type TaskRepository interface {
	CreateTask(ctx context.Context, task *model.Task) error
	GetTask(ctx context.Context, userID, id string) (*model.Task, error)
	ListTasks(ctx context.Context, userID string, filter TaskFilter) ([]model.Task, error)
	UpdateTask(ctx context.Context, task *model.Task) error
	DeleteTask(ctx context.Context, userID, id string) error
	// ApplyTaskChanges commits every delete and update in cs atomically.
	ApplyTaskChanges(ctx context.Context, userID string, cs model.ChangeSet[model.Task]) error
}

type NoteRepository interface {
	CreateNote(ctx context.Context, note *model.Note) error
	ListNotes(ctx context.Context, userID string, opts ListOptions) ([]model.Note, error)
	// ApplyNoteChanges commits every delete and update in cs atomically.
	ApplyNoteChanges(ctx context.Context, userID string, cs model.ChangeSet[model.Note]) error
}

type ProfileRepository interface {
	// LatestProfile returns the most recent snapshot, or apperror.ErrNotFound.
	LatestProfile(ctx context.Context, userID string) (*model.ProfileSnapshot, error)
	CreateProfile(ctx context.Context, snapshot *model.ProfileSnapshot) error
}

type DeliveryRepository interface {
	// CreateDeliveryLog inserts the row; a duplicate (user, category,
	// fingerprint) yields apperror.ErrConflict and writes nothing.
	CreateDeliveryLog(ctx context.Context, log *model.DeliveryLog) error
	GetDeliveryLog(ctx context.Context, id string) (*model.DeliveryLog, error)
	CountDeliveriesSince(ctx context.Context, userID string, since time.Time) (int, error)
	// MarkOpened sets opened_at if it is still unset and reports whether it did.
	MarkOpened(ctx context.Context, id string, at time.Time) (bool, error)
}

type PreferenceRepository interface {
	GetPreference(ctx context.Context, email string) (*model.SubscriptionPreference, error)
	// SavePreference inserts or updates the row for the normalised email.
	SavePreference(ctx context.Context, pref *model.SubscriptionPreference) error
}

type MetricRepository interface {
	UpsertDailyMetric(ctx context.Context, email, date string, patch model.MetricPatch) (*model.DailyMetric, error)
	ListDailyMetrics(ctx context.Context, email string, limit int) ([]model.DailyMetric, error)
}

// Store bundles every repository; *sqlite.DB satisfies it.
type Store interface {
	UserRepository
	TaskRepository
	NoteRepository
	ProfileRepository
	DeliveryRepository
	PreferenceRepository
	MetricRepository
}
