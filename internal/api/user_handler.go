package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"team-tasks/internal/model"
	"team-tasks/internal/service"
)

// UserHandler serves accounts, login and theme preferences.
type UserHandler struct {
	users  *service.UserService
	logger *slog.Logger
}

func NewUserHandler(users *service.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

func (h *UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	user, err := h.users.Login(r.Context(), req.Phone, req.Password)
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, newUserResponse(*user))
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListUsers(r.Context())
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, newUserResponse(u))
	}
	respondJSON(w, h.logger, http.StatusOK, out)
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	user, err := h.users.Register(r.Context(), service.RegisterInput{
		Name:       req.Name,
		Phone:      req.Phone,
		Password:   req.Password,
		Role:       model.Role(req.Role),
		TelegramID: req.TelegramID,
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusCreated, newUserResponse(*user))
}

// AddWorker creates an employee and returns the generated password once.
func (h *UserHandler) AddWorker(w http.ResponseWriter, r *http.Request) {
	var req AddWorkerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	user, password, err := h.users.AddWorker(r.Context(), service.WorkerInput{
		Name:       req.Name,
		Phone:      req.Phone,
		TelegramID: req.TelegramID,
		ManagerID:  req.ManagerID,
	})
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusCreated, AddWorkerResponse{ID: user.ID, Phone: user.Phone, Password: password})
}

func (h *UserHandler) SetTheme(w http.ResponseWriter, r *http.Request) {
	var req ThemeRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	if err := h.users.SetTheme(r.Context(), req.UserID, req.Color); err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, okResponse{OK: true})
}

func (h *UserHandler) GetTheme(w http.ResponseWriter, r *http.Request) {
	color, err := h.users.GetTheme(r.Context(), chi.URLParam(r, "userID"))
	if err != nil {
		respondError(w, r, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, ThemeResponse{ThemeColor: color})
}
