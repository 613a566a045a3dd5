package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"team-tasks/internal/model"
	"team-tasks/internal/service"
)

// TaskHandler serves task creation, listing, member status and deletion.
type TaskHandler struct {
	tasks  *service.TaskService
	logger *slog.Logger
}

func NewTaskHandler(tasks *service.TaskService, logger *slog.Logger) *TaskHandler {
	return &TaskHandler{tasks: tasks, logger: logger}
}

func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	deadline, err := service.ParseDate(req.Deadline)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	task, err := h.tasks.CreateTask(r.Context(), service.TaskInput{
		Title:       req.Title,
		Description: req.Description,
		CreatedBy:   req.CreatedBy,
		Deadline:    deadline,
		RepeatType:  model.RepeatType(req.RepeatType),
		Members:     req.Members,
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusCreated, newTaskResponse(*task))
}

// List returns all tasks newest first, each with its members.
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.tasks.ListTasks(r.Context())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	out := make([]TaskResponse, 0, len(tasks))
	for _, t := range tasks {
		resp := newTaskResponse(t.Task)
		resp.Members = newMemberResponses(t.Members)
		out = append(out, resp)
	}
	respondJSON(w, h.logger, http.StatusOK, out)
}

func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	detail, err := h.tasks.GetTaskDetail(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, newTaskDetailResponse(*detail))
}

func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.tasks.DeleteTask(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, okResponse{OK: true})
}

// MemberStatus records one member's status and reports whether the task completed.
func (h *TaskHandler) MemberStatus(w http.ResponseWriter, r *http.Request) {
	var req MemberStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	transition, err := h.tasks.SetMemberStatus(r.Context(), chi.URLParam(r, "id"), req.UserID, req.Status)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	resp := MemberStatusResponse{OK: true, TaskDone: transition.Completed}
	if transition.Successor != nil {
		resp.NextTaskID = transition.Successor.ID
	}
	respondJSON(w, h.logger, http.StatusOK, resp)
}
