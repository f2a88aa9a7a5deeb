package model

import (
	"errors"
	"strings"
	"time"
)

// TaskStatus is one of a closed set of lifecycle states.
type TaskStatus string

const (
	StatusOpen       TaskStatus = "open"
	StatusInProgress TaskStatus = "in_progress"
	StatusCompleted  TaskStatus = "completed"
)

// Valid reports whether s is one of the three known states.
func (s TaskStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Task is a user-owned to-do item.
//
// Invariant: CompletedAt is non-nil exactly when Status == StatusCompleted.
// All mutations of Status go through SetStatus to keep it that way.
type Task struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Description string     `json:"description"`
	Status      TaskStatus `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// SetStatus moves the task to status and maintains the completion timestamp.
// It reports whether anything changed.
func (t *Task) SetStatus(status TaskStatus, now time.Time) bool {
	if t.Status == status {
		return false
	}
	t.Status = status
	if status == StatusCompleted {
		at := now.UTC()
		t.CompletedAt = &at
	} else {
		t.CompletedAt = nil
	}
	return true
}

// SetDeadline replaces the deadline and reports whether it changed. Instants
// are compared after UTC normalisation, so the same moment in two offsets is
// not a change.
func (t *Task) SetDeadline(deadline *time.Time) bool {
	if SameInstant(t.Deadline, deadline) {
		return false
	}
	if deadline == nil {
		t.Deadline = nil
		return true
	}
	d := deadline.UTC()
	t.Deadline = &d
	return true
}

// SameInstant compares two optional instants independent of their offsets.
func SameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.UTC().Equal(b.UTC())
}

// DeadlineFormatMessage is returned to clients for any unparsable deadline.
const DeadlineFormatMessage = "Invalid deadline format. Please use ISO format or YYYY-MM-DD."

// ErrDeadlineFormat is returned by ParseDeadline for unparsable input.
var ErrDeadlineFormat = errors.New("model: invalid deadline format")

var deadlineLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
}

// ParseDeadline accepts an ISO-8601 timestamp (a trailing Z is allowed, a
// missing offset means UTC) or a bare YYYY-MM-DD date, which is combined with
// the current UTC time of day. An empty string yields nil. The result is UTC.
// Use it when creating a task; edits go through ParseFixedDeadline.
func ParseDeadline(raw string, now time.Time) (*time.Time, error) {
	t, dateOnly, err := parseDeadline(raw)
	if err != nil || t == nil || !dateOnly {
		return t, err
	}
	now = now.UTC()
	d := time.Date(t.Year(), t.Month(), t.Day(),
		now.Hour(), now.Minute(), now.Second(), now.Nanosecond(), time.UTC)
	return &d, nil
}

// ParseFixedDeadline is ParseDeadline with a bare date resolved to 00:00 UTC,
// so the same input always yields the same instant. Reconciling a list twice
// must not move a date-only deadline.
func ParseFixedDeadline(raw string) (*time.Time, error) {
	t, _, err := parseDeadline(raw)
	return t, err
}

func parseDeadline(raw string) (*time.Time, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false, nil
	}

	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, false, nil
		}
	}

	if d, err := time.Parse(time.DateOnly, raw); err == nil {
		d = d.UTC()
		return &d, true, nil
	}

	return nil, false, ErrDeadlineFormat
}
