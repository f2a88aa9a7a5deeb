package service

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/sakif/life-tracker/internal/apperror"
	"github.com/sakif/life-tracker/internal/model"
	"github.com/sakif/life-tracker/internal/repository"
)

// =========================================================================
// IN-MEMORY STORE
// =========================================================================
//
// memStore implements every repository interface with maps. It is only as
// clever as the services need: ordering matches the sqlite store where a
// test depends on it, and failOn injects an error into one named method.

type memStore struct {
	mu       sync.Mutex
	nextID   int
	users    map[string]model.User
	tasks    map[string]model.Task
	notes    []model.Note
	profiles []model.ProfileSnapshot
	prefs    map[string]model.SubscriptionPreference
	metrics  map[string]model.DailyMetric
	failOn   map[string]error
}

var _ repository.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		users:   map[string]model.User{},
		tasks:   map[string]model.Task{},
		prefs:   map[string]model.SubscriptionPreference{},
		metrics: map[string]model.DailyMetric{},
		failOn:  map[string]error{},
	}
}

func (m *memStore) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

func (m *memStore) CreateUser(_ context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOn["CreateUser"]; err != nil {
		return err
	}
	u.ID = m.id("user")
	m.users[u.ID] = *u
	return nil
}

func (m *memStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	return &u, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if model.NormalizeEmail(u.Email) == model.NormalizeEmail(email) {
			return &u, nil
		}
	}
	return nil, apperror.NotFound("user", email)
}

func (m *memStore) ListSubscribedUsers(_ context.Context) ([]model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.User
	for _, u := range m.users {
		if p, ok := m.prefs[model.NormalizeEmail(u.Email)]; ok && p.Subscribed {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) PurgeUser(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOn["PurgeUser"]; err != nil {
		return err
	}
	if _, ok := m.users[id]; !ok {
		return apperror.NotFound("user", id)
	}
	delete(m.users, id)
	for k, t := range m.tasks {
		if t.UserID == id {
			delete(m.tasks, k)
		}
	}
	return nil
}

func (m *memStore) CreateTask(_ context.Context, t *model.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.ID = m.id("task")
	m.tasks[t.ID] = *t
	return nil
}

func (m *memStore) GetTask(_ context.Context, userID, id string) (*model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.UserID != userID {
		return nil, apperror.NotFoundMessage(fmt.Sprintf("Task with ID %s not found.", id))
	}
	return &t, nil
}

func (m *memStore) ListTasks(_ context.Context, userID string, f repository.TaskFilter) ([]model.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Task
	for _, t := range m.tasks {
		if t.UserID == userID && (f.Status == "" || t.Status == f.Status) {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memStore) UpdateTask(_ context.Context, t *model.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[t.ID]; !ok {
		return apperror.NotFound("task", t.ID)
	}
	m.tasks[t.ID] = *t
	return nil
}

func (m *memStore) DeleteTask(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok || t.UserID != userID {
		return apperror.NotFoundMessage(fmt.Sprintf("Task with ID %s not found.", id))
	}
	delete(m.tasks, id)
	return nil
}

func (m *memStore) ApplyTaskChanges(_ context.Context, _ string, cs model.ChangeSet[model.Task]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range cs.Deleted {
		delete(m.tasks, id)
	}
	for _, t := range cs.Updated {
		m.tasks[t.ID] = t
	}
	return nil
}

func (m *memStore) CreateNote(_ context.Context, n *model.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	n.ID = m.id("note")
	m.notes = append(m.notes, *n)
	return nil
}

// ListNotes returns newest first: the reverse of insertion order.
func (m *memStore) ListNotes(_ context.Context, userID string, opts repository.ListOptions) ([]model.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.Note
	for i := len(m.notes) - 1; i >= 0; i-- {
		if m.notes[i].UserID == userID {
			out = append(out, m.notes[i])
		}
	}
	if opts.Offset > len(out) {
		return nil, nil
	}
	out = out[opts.Offset:]
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *memStore) ApplyNoteChanges(_ context.Context, _ string, cs model.ChangeSet[model.Note]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	deleted := map[string]bool{}
	for _, id := range cs.Deleted {
		deleted[id] = true
	}
	updated := map[string]model.Note{}
	for _, n := range cs.Updated {
		updated[n.ID] = n
	}
	kept := m.notes[:0]
	for _, n := range m.notes {
		if deleted[n.ID] {
			continue
		}
		if u, ok := updated[n.ID]; ok {
			n = u
		}
		kept = append(kept, n)
	}
	m.notes = kept
	return nil
}

func (m *memStore) LatestProfile(_ context.Context, userID string) (*model.ProfileSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.profiles) - 1; i >= 0; i-- {
		if m.profiles[i].UserID == userID {
			p := m.profiles[i]
			return &p, nil
		}
	}
	return nil, apperror.NotFound("profile", userID)
}

func (m *memStore) CreateProfile(_ context.Context, p *model.ProfileSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOn["CreateProfile"]; err != nil {
		return err
	}
	p.ID = m.id("profile")
	m.profiles = append(m.profiles, *p)
	return nil
}

func (m *memStore) CreateDeliveryLog(context.Context, *model.DeliveryLog) error { return nil }
func (m *memStore) GetDeliveryLog(_ context.Context, id string) (*model.DeliveryLog, error) {
	return nil, apperror.NotFound("delivery log", id)
}
func (m *memStore) CountDeliveriesSince(context.Context, string, time.Time) (int, error) {
	return 0, nil
}
func (m *memStore) MarkOpened(context.Context, string, time.Time) (bool, error) { return false, nil }

func (m *memStore) GetPreference(_ context.Context, email string) (*model.SubscriptionPreference, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prefs[model.NormalizeEmail(email)]
	if !ok {
		return nil, apperror.NotFound("subscription preference", email)
	}
	return &p, nil
}

func (m *memStore) SavePreference(_ context.Context, p *model.SubscriptionPreference) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := model.NormalizeEmail(p.Email)
	if existing, ok := m.prefs[key]; ok {
		p.ID = existing.ID
	} else {
		p.ID = m.id("pref")
	}
	m.prefs[key] = *p
	return nil
}

func (m *memStore) UpsertDailyMetric(_ context.Context, email, date string, patch model.MetricPatch) (*model.DailyMetric, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failOn["UpsertDailyMetric"]; err != nil {
		return nil, err
	}
	key := model.NormalizeEmail(email) + "|" + date
	metric, ok := m.metrics[key]
	if !ok {
		metric = model.DailyMetric{ID: m.id("metric"), Email: email, Date: date}
	}
	if patch.MorningMood != nil {
		metric.MorningMood = patch.MorningMood
	}
	m.metrics[key] = metric
	return &metric, nil
}

func (m *memStore) ListDailyMetrics(_ context.Context, email string, limit int) ([]model.DailyMetric, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.DailyMetric
	for _, metric := range m.metrics {
		if model.NormalizeEmail(metric.Email) == model.NormalizeEmail(email) {
			out = append(out, metric)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date > out[j].Date })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// staticVerifier accepts exactly one token per recipient.
type staticVerifier map[string]string

func (v staticVerifier) Verify(recipient, token string) bool {
	want, ok := v[recipient]
	return ok && want == token
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}
