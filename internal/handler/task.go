package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/life-tracker/internal/reconcile"
	"github.com/sakif/life-tracker/internal/service"
)

// TaskHandler serves single-task operations and whole-list reconciliation.
type TaskHandler struct {
	tasks      *service.TaskService
	reconciler *reconcile.Engine
	logger     *slog.Logger
}

func NewTaskHandler(tasks *service.TaskService, reconciler *reconcile.Engine, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, reconciler: reconciler, logger: logger}
}

type createTaskRequest struct {
	Description string `json:"description"`
	Deadline    string `json:"deadline"`
}

// HandleList returns the caller's tasks, optionally filtered by ?status=.
//
// HTTP: GET /api/tasks?status=open
func (h *TaskHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	tasks, err := h.tasks.List(r.Context(), user.ID, r.URL.Query().Get("status"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

// HandleCreate adds an open task.
//
// HTTP: POST /api/tasks
// REQUEST BODY: {"description": "Ship v1", "deadline": "2025-03-20"}
func (h *TaskHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req createTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	task, err := h.tasks.Create(r.Context(), user.ID, req.Description, req.Deadline)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// HandleReconcile converges the caller's task list onto the submitted one.
//
// HTTP: PUT /api/tasks
// REQUEST BODY: [{"id": "...", "status": "completed"}, ...]
func (h *TaskHandler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var items []reconcile.TaskItem
	if err := decodeJSON(w, r, &items); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.reconciler.ReconcileTasks(r.Context(), user.ID, items)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleUpdate edits one task.
//
// HTTP: PUT /api/tasks/{id}
func (h *TaskHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var upd service.TaskUpdate
	if err := decodeJSON(w, r, &upd); err != nil {
		writeError(w, err)
		return
	}
	task, err := h.tasks.Update(r.Context(), user.ID, chi.URLParam(r, "id"), upd)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// HandleDelete removes one task.
//
// HTTP: DELETE /api/tasks/{id}
func (h *TaskHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	if err := h.tasks.Delete(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
