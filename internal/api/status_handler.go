package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alexfaker/autoGenVideo/internal/service"
	"github.com/alexfaker/autoGenVideo/internal/store"
)

// StatusHandler serves the read-only status endpoints.
type StatusHandler struct {
	ledger store.TaskLedger
	engine *service.Engine
	logger *slog.Logger
}

// NewStatusHandler creates the status handler.
func NewStatusHandler(ledger store.TaskLedger, engine *service.Engine, logger *slog.Logger) (*StatusHandler, error) {
	if ledger == nil {
		return nil, errors.New("task ledger cannot be nil")
	}
	if engine == nil {
		return nil, errors.New("engine cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &StatusHandler{
		ledger: ledger,
		engine: engine,
		logger: logger.With("component", "status_handler"),
	}, nil
}

// GetHealth handles GET /healthz.
func (h *StatusHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// ListTasks handles GET /tasks and returns every ledger record.
func (h *StatusHandler) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.ledger.All(r.Context())
	if err != nil {
		h.logger.Error("failed to list tasks", "error", err)
		RespondWithError(w, r, http.StatusInternalServerError, "Failed to list tasks")
		return
	}
	RespondWithJSON(w, r, http.StatusOK, tasks)
}

// GetTask handles GET /tasks/{id}.
func (h *StatusHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	task, err := h.ledger.Get(r.Context(), id)
	if err != nil {
		if store.IsNotFoundError(err) {
			RespondWithError(w, r, http.StatusNotFound, "Task not found")
			return
		}
		h.logger.Error("failed to get task", "task_id", id, "error", err)
		RespondWithError(w, r, http.StatusInternalServerError, "Failed to get task")
		return
	}
	RespondWithJSON(w, r, http.StatusOK, task)
}

// GetReport handles GET /report with the ledger summary.
func (h *StatusHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.engine.Report(r.Context())
	if err != nil {
		h.logger.Error("failed to build report", "error", err)
		RespondWithError(w, r, http.StatusInternalServerError, "Failed to build report")
		return
	}
	RespondWithJSON(w, r, http.StatusOK, report)
}

// NewRouter assembles the status API routes.
func NewRouter(h *StatusHandler) chi.Router {
	r := chi.NewRouter()

	r.Get("/healthz", h.GetHealth)
	r.Route("/tasks", func(r chi.Router) {
		r.Get("/", h.ListTasks)
		r.Get("/{id}", h.GetTask)
	})
	r.Get("/report", h.GetReport)

	return r
}
