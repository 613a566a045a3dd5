package service

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"team-tasks/internal/repository"
)

var (
	taskExportHeader        = []string{"id", "title", "description", "created_by", "deadline", "repeat_type", "is_group", "status", "created_at", "created_by_name"}
	leaderboardExportHeader = []string{"id", "name", "phone", "role", "points"}
)

// ExportService renders tasks and the points leaderboard as CSV.
type ExportService struct {
	taskRepo *repository.TaskRepository
	userRepo *repository.UserRepository
}

func NewExportService(taskRepo *repository.TaskRepository, userRepo *repository.UserRepository) *ExportService {
	return &ExportService{taskRepo: taskRepo, userRepo: userRepo}
}

// WriteTasksCSV writes every task with its creator's name.
func (s *ExportService) WriteTasksCSV(ctx context.Context, w io.Writer) error {
	rows, err := s.taskRepo.ListWithCreator(ctx)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(taskExportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.ID,
			row.Title,
			row.Description,
			row.CreatedBy,
			row.Deadline.Format(time.DateOnly),
			string(row.RepeatType),
			boolDigit(row.IsGroup),
			string(row.Status),
			row.CreatedAt.UTC().Format(time.RFC3339),
			row.CreatedByName,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write task %s: %w", row.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteLeaderboardCSV writes users ordered by points, highest first.
func (s *ExportService) WriteLeaderboardCSV(ctx context.Context, w io.Writer) error {
	users, err := s.userRepo.Leaderboard(ctx)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(leaderboardExportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, u := range users {
		if err := cw.Write([]string{u.ID, u.Name, u.Phone, string(u.Role), strconv.Itoa(u.Points)}); err != nil {
			return fmt.Errorf("write user %s: %w", u.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func boolDigit(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
