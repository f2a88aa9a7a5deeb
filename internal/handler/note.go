package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/life-tracker/internal/reconcile"
	"github.com/sakif/life-tracker/internal/service"
)

type NoteHandler struct {
	notes      *service.NoteService
	reconciler *reconcile.Engine
	logger     *slog.Logger
}

func NewNoteHandler(notes *service.NoteService, reconciler *reconcile.Engine, logger *slog.Logger) *NoteHandler {
	return &NoteHandler{notes: notes, reconciler: reconciler, logger: logger}
}

type logNoteRequest struct {
	Content  string `json:"content"`
	Category string `json:"category"`
}

// HandleList returns the caller's notes, newest first.
//
// HTTP: GET /api/notes?limit=50&offset=0
func (h *NoteHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	offset, err := queryInt(r, "offset", 0)
	if err != nil {
		writeError(w, err)
		return
	}
	notes, err := h.notes.List(r.Context(), user.ID, limit, offset)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, notes)
}

// HandleCreate logs a note.
//
// HTTP: POST /api/notes
// REQUEST BODY: {"content": "Slept badly", "category": "Health"}
func (h *NoteHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var req logNoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	note, err := h.notes.Log(r.Context(), user.ID, req.Content, req.Category)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, note)
}

// HandleReconcile converges the caller's notes onto the submitted list.
//
// HTTP: PUT /api/notes
func (h *NoteHandler) HandleReconcile(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}
	var items []reconcile.NoteItem
	if err := decodeJSON(w, r, &items); err != nil {
		writeError(w, err)
		return
	}
	res, err := h.reconciler.ReconcileNotes(r.Context(), user.ID, items)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
