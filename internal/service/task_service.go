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

// Notifier delivers notification intents. notify.Dispatcher implements it.
type Notifier interface {
	Dispatch(ctx context.Context, intents []notify.Intent)
	DispatchAsync(ctx context.Context, intents []notify.Intent)
}

// TaskInput represents data required to create a task.
type TaskInput struct {
	Title       string           `validate:"required"`
	Description string
	CreatedBy   string           `validate:"required"`
	Deadline    time.Time        `validate:"required"`
	RepeatType  model.RepeatType `validate:"omitempty,oneof=none daily weekly monthly"`
	Members     []string         `validate:"required,min=1,dive,required"`
}

// TaskDetail is a task with its members and chat history.
type TaskDetail struct {
	Task    model.Task
	Members []model.MemberView
	Chat    []model.ChatMessage
}

// TaskService runs the task lifecycle: creation, per-member status, completion and recurrence.
type TaskService struct {
	taskRepo   *repository.TaskRepository
	userRepo   *repository.UserRepository
	chatRepo   *repository.ChatRepository
	notifier   Notifier
	projectURL string
	logger     *slog.Logger
	now        func() time.Time
}

func NewTaskService(
	taskRepo *repository.TaskRepository,
	userRepo *repository.UserRepository,
	chatRepo *repository.ChatRepository,
	notifier Notifier,
	projectURL string,
	logger *slog.Logger,
) *TaskService {
	return &TaskService{
		taskRepo:   taskRepo,
		userRepo:   userRepo,
		chatRepo:   chatRepo,
		notifier:   notifier,
		projectURL: projectURL,
		logger:     logger.With("component", "task_service"),
		now:        time.Now,
	}
}

// CreateTask stores a task with one pending member row per assignee and notifies the assignees.
func (s *TaskService) CreateTask(ctx context.Context, input TaskInput) (*model.Task, error) {
	input.Title = strings.TrimSpace(input.Title)
	if err := validateInput(input); err != nil {
		return nil, err
	}
	if input.RepeatType == "" {
		input.RepeatType = model.RepeatNone
	}

	task := model.Task{
		Title:       input.Title,
		Description: input.Description,
		CreatedBy:   input.CreatedBy,
		Deadline:    DateOnly(input.Deadline),
		RepeatType:  input.RepeatType,
		IsGroup:     len(input.Members) > 1,
		Status:      model.TaskPending,
		CreatedAt:   s.now(),
	}
	members := make([]model.TaskMember, 0, len(input.Members))
	for _, userID := range input.Members {
		members = append(members, model.TaskMember{UserID: userID, Status: model.MemberPending})
	}

	if err := s.taskRepo.CreateWithMembers(ctx, &task, members); err != nil {
		return nil, err
	}
	s.logger.Info("task created",
		"task_id", task.ID,
		"creator", task.CreatedBy,
		"members", len(members),
		"repeat", task.RepeatType)

	intents, err := s.assignmentIntents(ctx, task, input.Members)
	if err != nil {
		s.logger.Warn("build assignment notifications", "task_id", task.ID, "error", err)
		return &task, nil
	}
	s.notifier.DispatchAsync(ctx, intents)
	return &task, nil
}

func (s *TaskService) assignmentIntents(ctx context.Context, task model.Task, memberIDs []string) ([]notify.Intent, error) {
	users, err := s.userRepo.FindByIDs(ctx, append([]string{task.CreatedBy}, memberIDs...))
	if err != nil {
		return nil, err
	}
	creatorName := "System"
	if creator, ok := users[task.CreatedBy]; ok {
		creatorName = creator.Name
	}
	text := assignmentText(task, creatorName, s.projectURL)

	intents := make([]notify.Intent, 0, len(memberIDs))
	for _, id := range memberIDs {
		if u, ok := users[id]; ok && u.TelegramID != "" {
			intents = append(intents, notify.Text(u.TelegramID, text))
		}
	}
	return intents, nil
}

func assignmentText(task model.Task, creatorName, projectURL string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📌 New task: <b>%s</b>\n", html.EscapeString(task.Title)))
	sb.WriteString(fmt.Sprintf("Assigned by: %s\n", html.EscapeString(creatorName)))
	sb.WriteString(fmt.Sprintf("Deadline: %s", task.Deadline.Format(time.DateOnly)))
	if projectURL != "" {
		sb.WriteString("\n" + projectURL)
	}
	return sb.String()
}

// SetMemberStatus writes a member's status verbatim. When the last member reaches "done"
// the task becomes Done and a recurring task spawns its next occurrence.
// A missing (task, user) row is ignored.
func (s *TaskService) SetMemberStatus(ctx context.Context, taskID, userID, status string) (Transition, error) {
	switch {
	case taskID == "":
		return Transition{}, missing("task id")
	case userID == "":
		return Transition{}, missing("user id")
	case status == "":
		return Transition{}, missing("status")
	}

	updated, err := s.taskRepo.UpdateMemberStatus(ctx, taskID, userID, status)
	if err != nil {
		return Transition{}, err
	}
	if updated == 0 {
		s.logger.Debug("member status ignored, no such member", "task_id", taskID, "user_id", userID)
		return Transition{}, nil
	}

	unfinished, err := s.taskRepo.CountUnfinishedMembers(ctx, taskID)
	if err != nil {
		return Transition{}, err
	}
	if unfinished > 0 {
		return Transition{}, nil
	}

	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return Transition{}, notFound(err, ErrTaskNotFound)
	}
	members, err := s.taskRepo.MemberRows(ctx, taskID)
	if err != nil {
		return Transition{}, err
	}

	transition := Advance(*task, members, s.now())
	if !transition.Completed {
		return transition, nil
	}
	completed, err := s.taskRepo.Complete(ctx, taskID, transition.Successor, transition.SuccessorMembers)
	if err != nil {
		return Transition{}, err
	}
	if !completed {
		s.logger.Debug("task already completed elsewhere", "task_id", taskID)
		return Transition{}, nil
	}

	if transition.Successor != nil {
		s.logger.Info("task done, next occurrence created",
			"task_id", taskID,
			"next_task_id", transition.Successor.ID,
			"next_deadline", transition.Successor.Deadline.Format(time.DateOnly))
	} else {
		s.logger.Info("task done", "task_id", taskID)
	}
	return transition, nil
}

// DeleteTask removes the task with its chat and members. Unknown ids are not an error.
func (s *TaskService) DeleteTask(ctx context.Context, taskID string) error {
	if taskID == "" {
		return missing("task id")
	}
	if err := s.taskRepo.Delete(ctx, taskID); err != nil {
		return err
	}
	s.logger.Info("task deleted", "task_id", taskID)
	return nil
}

// ListTasks returns every task, newest first, with its members.
func (s *TaskService) ListTasks(ctx context.Context) ([]model.TaskWithMembers, error) {
	tasks, err := s.taskRepo.ListNewestFirst(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(tasks))
	for _, t := range tasks {
		ids = append(ids, t.ID)
	}
	members, err := s.taskRepo.MembersByTask(ctx, ids)
	if err != nil {
		return nil, err
	}
	result := make([]model.TaskWithMembers, 0, len(tasks))
	for _, t := range tasks {
		result = append(result, model.TaskWithMembers{Task: t, Members: members[t.ID]})
	}
	return result, nil
}

// GetTaskDetail returns the task, its members and its chat oldest first.
func (s *TaskService) GetTaskDetail(ctx context.Context, taskID string) (*TaskDetail, error) {
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, notFound(err, ErrTaskNotFound)
	}
	members, err := s.taskRepo.Members(ctx, taskID)
	if err != nil {
		return nil, err
	}
	chat, err := s.chatRepo.ListByTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	return &TaskDetail{Task: *task, Members: members, Chat: chat}, nil
}

// ListAssigned returns the open tasks where the user still has work to do.
func (s *TaskService) ListAssigned(ctx context.Context, userID string) ([]model.Task, error) {
	return s.taskRepo.ListOpenForUser(ctx, userID)
}
