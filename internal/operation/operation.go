// Package operation is the closed set of state-changing requests a client
// (or a model acting for one) may issue, decoded from {"kind": ...} JSON and
// executed by an exhaustive type switch.
//
// Operation is sealed with an unexported marker method: only the types in
// this package implement it, so Executor.Execute covers every variant.
package operation

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sakif/life-tracker/internal/apperror"
	"github.com/sakif/life-tracker/internal/model"
	"github.com/sakif/life-tracker/internal/reconcile"
)

type Kind string

const (
	KindCreateTask    Kind = "create_task"
	KindUpdateTask    Kind = "update_task"
	KindReconcileList Kind = "reconcile_list"
	KindUpdateProfile Kind = "update_profile"
	KindLogNote       Kind = "log_note"
)

// Kinds lists every operation kind.
var Kinds = []Kind{KindCreateTask, KindUpdateTask, KindReconcileList, KindUpdateProfile, KindLogNote}

type Operation interface {
	Kind() Kind
	operation() // seals the interface to this package
}

type CreateTask struct {
	Description string `json:"description"`
	Deadline    string `json:"deadline,omitempty"`
}

type UpdateTask struct {
	ID          string            `json:"id"`
	Description *string           `json:"description,omitempty"`
	Status      *model.TaskStatus `json:"status,omitempty"`
	Deadline    *string           `json:"deadline,omitempty"`
}

// Entity names the collection a ReconcileList targets.
type Entity string

const (
	EntityTasks Entity = "tasks"
	EntityNotes Entity = "notes"
)

// ReconcileList converges one collection onto the submitted list. Only the
// slice matching Entity is used.
type ReconcileList struct {
	Entity Entity
	Tasks  []reconcile.TaskItem
	Notes  []reconcile.NoteItem
}

type UpdateProfile struct {
	Patch   model.Document `json:"patch"`
	Replace bool           `json:"replace,omitempty"`
}

type LogNote struct {
	Content  string `json:"content"`
	Category string `json:"category,omitempty"`
}

func (CreateTask) Kind() Kind    { return KindCreateTask }
func (UpdateTask) Kind() Kind    { return KindUpdateTask }
func (ReconcileList) Kind() Kind { return KindReconcileList }
func (UpdateProfile) Kind() Kind { return KindUpdateProfile }
func (LogNote) Kind() Kind       { return KindLogNote }

func (CreateTask) operation()    {}
func (UpdateTask) operation()    {}
func (ReconcileList) operation() {}
func (UpdateProfile) operation() {}
func (LogNote) operation()       {}

type envelope struct {
	Kind Kind `json:"kind"`
}

type reconcilePayload struct {
	Entity Entity          `json:"entity"`
	Items  json.RawMessage `json:"items"`
}

// Decode parses one operation. A missing or unknown kind, or a payload that
// does not fit its kind, is a validation error.
func Decode(data []byte) (Operation, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, apperror.ValidationFailed("kind", "Invalid JSON format.")
	}

	switch env.Kind {
	case KindCreateTask:
		return decodeAs[CreateTask](data)
	case KindUpdateTask:
		op, err := decodeAs[UpdateTask](data)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(op.ID) == "" {
			return nil, apperror.ValidationFailed("id", "Task ID is required to update a task.")
		}
		return op, nil
	case KindReconcileList:
		return decodeReconcile(data)
	case KindUpdateProfile:
		op, err := decodeAs[UpdateProfile](data)
		if err != nil {
			return nil, err
		}
		if op.Patch == nil {
			return nil, apperror.ValidationFailed("patch", "Invalid JSON format.")
		}
		return op, nil
	case KindLogNote:
		return decodeAs[LogNote](data)
	case "":
		return nil, apperror.ValidationFailed("kind", "Operation kind is required.")
	default:
		return nil, apperror.ValidationFailed("kind", fmt.Sprintf("Unknown operation kind %q.", env.Kind))
	}
}

func decodeAs[T Operation](data []byte) (T, error) {
	var op T
	if err := json.Unmarshal(data, &op); err != nil {
		return op, apperror.ValidationFailed(string(op.Kind()), fmt.Sprintf("Invalid %s payload.", op.Kind()))
	}
	return op, nil
}

func decodeReconcile(data []byte) (Operation, error) {
	var p reconcilePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, apperror.ValidationFailed(string(KindReconcileList), "Invalid reconcile_list payload.")
	}
	if len(p.Items) == 0 || string(p.Items) == "null" {
		return nil, apperror.ValidationFailed("items", "A list of items is required.")
	}

	op := ReconcileList{Entity: p.Entity}
	var err error
	switch p.Entity {
	case EntityTasks:
		err = json.Unmarshal(p.Items, &op.Tasks)
	case EntityNotes:
		err = json.Unmarshal(p.Items, &op.Notes)
	default:
		return nil, apperror.ValidationFailed("entity", `Entity must be "tasks" or "notes".`)
	}
	if err != nil {
		return nil, apperror.ValidationFailed("items", "Invalid list items.")
	}
	return op, nil
}
