package service

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"team-tasks/internal/model"
	"team-tasks/internal/notify"
	"team-tasks/internal/repository"
)

// Attachment is a stored upload referenced by a chat message.
type Attachment struct {
	Path string
	Name string
}

// MessageInput is a chat message posted to a task. Text may be empty only when File is set.
type MessageInput struct {
	TaskID   string `validate:"required"`
	SenderID string `validate:"required"`
	Text     string
	File     *Attachment
}

// ChatService appends messages to task threads and fans them out to participants.
type ChatService struct {
	chatRepo *repository.ChatRepository
	taskRepo *repository.TaskRepository
	userRepo *repository.UserRepository
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewChatService(
	chatRepo *repository.ChatRepository,
	taskRepo *repository.TaskRepository,
	userRepo *repository.UserRepository,
	notifier Notifier,
	logger *slog.Logger,
) *ChatService {
	return &ChatService{
		chatRepo: chatRepo,
		taskRepo: taskRepo,
		userRepo: userRepo,
		notifier: notifier,
		logger:   logger.With("component", "chat_service"),
		now:      time.Now,
	}
}

// PostMessage appends a message and notifies every member and the task creator.
func (s *ChatService) PostMessage(ctx context.Context, input MessageInput) (*model.ChatMessage, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if input.File != nil && input.File.Path == "" {
		input.File = nil
	}
	if strings.TrimSpace(input.Text) == "" && input.File == nil {
		return nil, fmt.Errorf("%w: message text or file is required", ErrValidation)
	}

	task, err := s.taskRepo.FindByID(ctx, input.TaskID)
	if err != nil {
		return nil, notFound(err, ErrTaskNotFound)
	}

	msg := model.ChatMessage{
		TaskID:   input.TaskID,
		SenderID: input.SenderID,
		Message:  input.Text,
		SentAt:   s.now(),
	}
	if input.File != nil {
		msg.FilePath = input.File.Path
		msg.FileName = input.File.Name
	}
	if err := s.chatRepo.Create(ctx, &msg); err != nil {
		return nil, err
	}
	s.logger.Debug("chat message stored", "task_id", task.ID, "sender_id", msg.SenderID, "file", msg.FileName)

	intents, err := s.messageIntents(ctx, *task, msg)
	if err != nil {
		s.logger.Warn("build chat notifications", "task_id", task.ID, "error", err)
		return &msg, nil
	}
	s.notifier.DispatchAsync(ctx, intents)
	return &msg, nil
}

// History returns the task's messages oldest first.
func (s *ChatService) History(ctx context.Context, taskID string) ([]model.ChatMessage, error) {
	if taskID == "" {
		return nil, missing("task id")
	}
	return s.chatRepo.ListByTask(ctx, taskID)
}

// Recipients returns the task's member users plus its creator, deduplicated, members first.
func (s *ChatService) Recipients(ctx context.Context, task model.Task) ([]model.User, error) {
	rows, err := s.taskRepo.MemberRows(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(rows)+1)
	seen := make(map[string]bool, len(rows)+1)
	for _, row := range rows {
		if !seen[row.UserID] {
			seen[row.UserID] = true
			ids = append(ids, row.UserID)
		}
	}
	if task.CreatedBy != "" && !seen[task.CreatedBy] {
		ids = append(ids, task.CreatedBy)
	}

	users, err := s.userRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	recipients := make([]model.User, 0, len(ids))
	for _, id := range ids {
		if u, ok := users[id]; ok {
			recipients = append(recipients, u)
		}
	}
	return recipients, nil
}

func (s *ChatService) messageIntents(ctx context.Context, task model.Task, msg model.ChatMessage) ([]notify.Intent, error) {
	recipients, err := s.Recipients(ctx, task)
	if err != nil {
		return nil, err
	}

	senderName := "Someone"
	if sender, err := s.userRepo.FindByID(ctx, msg.SenderID); err == nil {
		senderName = sender.Name
	}
	content := msg.Message
	if strings.TrimSpace(content) == "" {
		content = msg.FileName
	}
	text := fmt.Sprintf("💬 %s sent %s\nTask: %s",
		html.EscapeString(senderName), html.EscapeString(content), html.EscapeString(task.Title))
	caption := fmt.Sprintf("📎 File: %s | %s", html.EscapeString(msg.FileName), html.EscapeString(task.Title))

	var intents []notify.Intent
	for _, u := range recipients {
		if u.TelegramID == "" {
			continue
		}
		intents = append(intents, notify.Text(u.TelegramID, text))
		if msg.HasFile() {
			intents = append(intents, notify.File(u.TelegramID, caption, msg.FilePath, msg.FileName))
		}
	}
	return intents, nil
}
