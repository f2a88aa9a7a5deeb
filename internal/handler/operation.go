package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/life-tracker/internal/apperror"
	"github.com/sakif/life-tracker/internal/operation"
)

type OperationHandler struct {
	executor *operation.Executor
	logger   *slog.Logger
}

func NewOperationHandler(executor *operation.Executor, logger *slog.Logger) *OperationHandler {
	return &OperationHandler{executor: executor, logger: logger}
}

// HandleExecute decodes one tagged operation and runs it for the caller.
//
// HTTP: POST /api/operations
// REQUEST BODY: {"kind": "create_task", "description": "Ship v1"}
func (h *OperationHandler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	user, ok := currentUser(w, r)
	if !ok {
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, apperror.ValidationFailed("body", "Invalid JSON format."))
		return
	}

	op, err := operation.Decode(body)
	if err != nil {
		writeError(w, err)
		return
	}

	out, err := h.executor.Execute(r.Context(), user.ID, op)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
