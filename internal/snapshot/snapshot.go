// Package snapshot assembles the read-only context a briefing is reasoned
// over: the user's profile, recent tasks and recent notes, pinned to one
// instant. The snapshot is built once per run and shared by every worker.
package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/sakif/life-tracker/internal/apperror"
	"github.com/sakif/life-tracker/internal/clock"
	"github.com/sakif/life-tracker/internal/model"
	"github.com/sakif/life-tracker/internal/repository"
)

const (
	MaxTasks      = 20
	MaxNotes      = 50
	MaxNoteLength = 500
)

// Snapshot is immutable once built.
type Snapshot struct {
	User    model.User
	Profile model.Document
	Tasks   []model.Task
	Notes   []model.Note
	TakenAt time.Time
}

// Builder reads the three sources a snapshot is made of.
type Builder struct {
	tasks    repository.TaskRepository
	notes    repository.NoteRepository
	profiles repository.ProfileRepository
	clock    clock.Clock
}

func NewBuilder(tasks repository.TaskRepository, notes repository.NoteRepository, profiles repository.ProfileRepository, clk clock.Clock) *Builder {
	return &Builder{tasks: tasks, notes: notes, profiles: profiles, clock: clk}
}

// Build loads the user's context. A user without a profile gets an empty
// document; notes are truncated to MaxNoteLength runes.
func (b *Builder) Build(ctx context.Context, user *model.User) (*Snapshot, error) {
	doc := model.Document{}
	p, err := b.profiles.LatestProfile(ctx, user.ID)
	switch {
	case err == nil:
		doc = p.Document
	case !errors.Is(err, apperror.ErrNotFound):
		return nil, fmt.Errorf("loading profile: %w", err)
	}

	tasks, err := b.tasks.ListTasks(ctx, user.ID, repository.TaskFilter{})
	if err != nil {
		return nil, fmt.Errorf("loading tasks: %w", err)
	}
	sort.SliceStable(tasks, func(i, j int) bool { return tasks[i].CreatedAt.After(tasks[j].CreatedAt) })
	if len(tasks) > MaxTasks {
		tasks = tasks[:MaxTasks]
	}

	notes, err := b.notes.ListNotes(ctx, user.ID, repository.ListOptions{Limit: MaxNotes})
	if err != nil {
		return nil, fmt.Errorf("loading notes: %w", err)
	}
	for i := range notes {
		notes[i].Content = truncate(notes[i].Content, MaxNoteLength)
	}

	return &Snapshot{
		User:    *user,
		Profile: doc,
		Tasks:   tasks,
		Notes:   notes,
		TakenAt: b.clock.Now().UTC(),
	}, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// Text renders the snapshot as the worker input. The output depends only on
// the snapshot, so equal snapshots give byte-identical prompts.
func (s *Snapshot) Text() string {
	var sb strings.Builder

	sb.WriteString("CURRENT TIME (UTC):\n")
	fmt.Fprintf(&sb, "- ISO Format: %s\n", s.TakenAt.Format(time.DateTime))
	fmt.Fprintf(&sb, "- Weekday: %s\n\n", s.TakenAt.Weekday())

	// json.Marshal sorts map keys.
	profile, err := json.Marshal(s.Profile)
	if err != nil || s.Profile == nil {
		profile = []byte("{}")
	}
	sb.WriteString("CURRENT USER BACKGROUND INFO:\n")
	sb.Write(profile)
	sb.WriteString("\n\n")

	sb.WriteString("RECENT USER LOGS:\n")
	if len(s.Notes) == 0 {
		sb.WriteString("No recent logs.\n")
	}
	for _, n := range s.Notes {
		fmt.Fprintf(&sb, "- [%s] %s\n", n.CreatedAt.UTC().Format("2006-01-02 15:04:05 (Monday)"), n.Content)
	}
	sb.WriteString("\n")

	sb.WriteString("CURRENT TASKS:\n")
	if len(s.Tasks) == 0 {
		sb.WriteString("No open or in-progress tasks.\n")
	}
	for _, t := range s.Tasks {
		deadline := "None"
		if t.Deadline != nil {
			deadline = t.Deadline.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(&sb, "- ID: %s, Desc: %s, Status: %s, Deadline: %s, Created: %s\n",
			t.ID, t.Description, t.Status, deadline, t.CreatedAt.UTC().Format("2006-01-02 15:04"))
	}

	return sb.String()
}
