package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/isdelr/tasktracker-be/internal/api/respond"
	"github.com/isdelr/tasktracker-be/internal/auth"
	"github.com/isdelr/tasktracker-be/internal/models"
	"github.com/isdelr/tasktracker-be/internal/services"
)

// TaskHandler handles HTTP requests related to tasks. Every route runs behind
// the auth middleware and acts on the caller's own tasks only.
type TaskHandler struct {
	service services.TaskServiceProvider
}

// NewTaskHandler creates a new TaskHandler.
func NewTaskHandler(service services.TaskServiceProvider) *TaskHandler {
	return &TaskHandler{service: service}
}

// Create handles the request to create a new task.
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}

	var input models.TaskInput
	if err := decodeJSON(r, &input); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.service.Create(r.Context(), ownerID, input)
	if err != nil {
		writeServiceError(w, r, err, "Failed to create task")
		return
	}

	respond.JSON(w, http.StatusCreated, map[string]interface{}{
		"message": "Task created successfully",
		"task":    task,
	})
}

// GetAll handles listing the caller's tasks with optional filters.
func (h *TaskHandler) GetAll(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := models.NewTaskFilter(q.Get("status"), q.Get("priority"), q.Get("sortBy"))

	tasks, err := h.service.List(r.Context(), ownerID, filter)
	if err != nil {
		writeServiceError(w, r, err, "Failed to retrieve tasks")
		return
	}

	respond.JSON(w, http.StatusOK, map[string]interface{}{"tasks": tasks})
}

// Get handles the request to get a single task by its ID.
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}

	task, err := h.service.GetOne(r.Context(), ownerID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err, "Failed to retrieve task")
		return
	}
	respond.JSON(w, http.StatusOK, task)
}

// Update handles a partial update; only fields present in the body change.
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}

	var patch models.TaskPatch
	if err := decodeJSON(r, &patch); err != nil {
		respond.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	task, err := h.service.Update(r.Context(), ownerID, chi.URLParam(r, "id"), patch)
	if err != nil {
		writeServiceError(w, r, err, "Failed to update task")
		return
	}
	respond.JSON(w, http.StatusOK, task)
}

// Toggle flips the task's completion status.
func (h *TaskHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}

	task, err := h.service.Toggle(r.Context(), ownerID, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, err, "Failed to toggle task")
		return
	}
	respond.JSON(w, http.StatusOK, task)
}

// Delete handles the request to delete a task.
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := ownerFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.service.Remove(r.Context(), ownerID, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, r, err, "Failed to delete task")
		return
	}
	w.WriteHeader(http.StatusOK)
}

func ownerFromRequest(w http.ResponseWriter, r *http.Request) (string, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respond.Error(w, http.StatusUnauthorized, "Missing auth token")
		return "", false
	}
	return claims.UserID, true
}
