package api

import (
	"time"

	"github.com/go-playground/validator/v10"

	"team-tasks/internal/model"
	"team-tasks/internal/service"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type LoginRequest struct {
	Phone    string `json:"phone" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type CreateUserRequest struct {
	Name       string `json:"name" validate:"required"`
	Phone      string `json:"phone" validate:"required"`
	Password   string `json:"password" validate:"required"`
	Role       string `json:"role" validate:"required"`
	TelegramID string `json:"telegram_id"`
}

type AddWorkerRequest struct {
	Name       string `json:"name" validate:"required"`
	Phone      string `json:"phone" validate:"required"`
	TelegramID string `json:"telegram_id"`
	ManagerID  string `json:"managerId"`
}

type CreateTaskRequest struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description"`
	CreatedBy   string   `json:"created_by" validate:"required"`
	Deadline    string   `json:"deadline" validate:"required"`
	RepeatType  string   `json:"repeat_type"`
	Members     []string `json:"members" validate:"required,min=1"`
}

type MemberStatusRequest struct {
	UserID string `json:"userId" validate:"required"`
	Status string `json:"status" validate:"required"`
}

type ChatRequest struct {
	UserID  string `json:"user_id" validate:"required"`
	Message string `json:"message"`
}

type ThemeRequest struct {
	UserID string `json:"userId" validate:"required"`
	Color  string `json:"color"`
}

type DigestRequest struct {
	Value string `json:"value" validate:"required"`
}

type UserResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Phone      string `json:"phone"`
	Role       string `json:"role"`
	TelegramID string `json:"telegram_id"`
	Points     int    `json:"points"`
	ThemeColor string `json:"theme_color"`
}

type AddWorkerResponse struct {
	ID       string `json:"id"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type TaskResponse struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	CreatedBy   string           `json:"created_by"`
	Deadline    string           `json:"deadline"`
	RepeatType  string           `json:"repeat_type"`
	IsGroup     bool             `json:"is_group"`
	Status      string           `json:"status"`
	CreatedAt   time.Time        `json:"created_at"`
	Members     []MemberResponse `json:"members,omitempty"`
}

type MemberResponse struct {
	UserID string `json:"user_id"`
	Status string `json:"status"`
	Name   string `json:"name"`
}

type ChatMessageResponse struct {
	ID       string    `json:"id"`
	TaskID   string    `json:"task_id"`
	SenderID string    `json:"sender_id"`
	Message  string    `json:"message"`
	FilePath string    `json:"file_path,omitempty"`
	FileName string    `json:"file_name,omitempty"`
	SentAt   time.Time `json:"sent_at"`
}

type TaskDetailResponse struct {
	Task    TaskResponse          `json:"task"`
	Members []MemberResponse      `json:"members"`
	Chat    []ChatMessageResponse `json:"chat"`
}

type MemberStatusResponse struct {
	OK         bool   `json:"ok"`
	TaskDone   bool   `json:"task_done"`
	NextTaskID string `json:"next_task_id,omitempty"`
}

type ThemeResponse struct {
	ThemeColor string `json:"theme_color"`
}

type DigestResponse struct {
	Value string `json:"value"`
}

func newUserResponse(u model.User) UserResponse {
	return UserResponse{
		ID:         u.ID,
		Name:       u.Name,
		Phone:      u.Phone,
		Role:       string(u.Role),
		TelegramID: u.TelegramID,
		Points:     u.Points,
		ThemeColor: u.ThemeColor,
	}
}

func newTaskResponse(t model.Task) TaskResponse {
	return TaskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		CreatedBy:   t.CreatedBy,
		Deadline:    t.Deadline.Format(time.DateOnly),
		RepeatType:  string(t.RepeatType),
		IsGroup:     t.IsGroup,
		Status:      string(t.Status),
		CreatedAt:   t.CreatedAt,
	}
}

func newMemberResponses(members []model.MemberView) []MemberResponse {
	out := make([]MemberResponse, 0, len(members))
	for _, m := range members {
		out = append(out, MemberResponse{UserID: m.UserID, Status: m.Status, Name: m.Name})
	}
	return out
}

func newChatResponse(m model.ChatMessage) ChatMessageResponse {
	return ChatMessageResponse{
		ID:       m.ID,
		TaskID:   m.TaskID,
		SenderID: m.SenderID,
		Message:  m.Message,
		FilePath: m.FilePath,
		FileName: m.FileName,
		SentAt:   m.SentAt,
	}
}

func newChatResponses(msgs []model.ChatMessage) []ChatMessageResponse {
	out := make([]ChatMessageResponse, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, newChatResponse(m))
	}
	return out
}

func newTaskDetailResponse(d service.TaskDetail) TaskDetailResponse {
	return TaskDetailResponse{
		Task:    newTaskResponse(d.Task),
		Members: newMemberResponses(d.Members),
		Chat:    newChatResponses(d.Chat),
	}
}
