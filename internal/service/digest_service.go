package service

import (
	"context"
	"fmt"
	"html"
	"log/slog"
	"math"
	"strings"
	"time"

	"team-tasks/internal/model"
	"team-tasks/internal/notify"
	"team-tasks/internal/repository"
)

// UserSummary holds one user's outstanding work.
type UserSummary struct {
	User    model.User
	Pending int64
	Overdue int64
}

// OrgSummary holds organization-wide totals for managers.
type OrgSummary struct {
	Pending       int64
	Overdue       int64
	AveragePoints int
}

// DigestService builds and sends the daily digest.
type DigestService struct {
	settings   *repository.SettingRepository
	userRepo   *repository.UserRepository
	taskRepo   *repository.TaskRepository
	notifier   Notifier
	loc        *time.Location
	projectURL string
	logger     *slog.Logger
	now        func() time.Time
}

func NewDigestService(
	settings *repository.SettingRepository,
	userRepo *repository.UserRepository,
	taskRepo *repository.TaskRepository,
	notifier Notifier,
	loc *time.Location,
	projectURL string,
	logger *slog.Logger,
) *DigestService {
	if loc == nil {
		loc = time.UTC
	}
	return &DigestService{
		settings:   settings,
		userRepo:   userRepo,
		taskRepo:   taskRepo,
		notifier:   notifier,
		loc:        loc,
		projectURL: projectURL,
		logger:     logger.With("component", "digest_service"),
		now:        time.Now,
	}
}

// Run sends the digest when enabled. Errors are logged; it never fails the caller.
func (s *DigestService) Run(ctx context.Context) {
	intents, err := s.BuildIntents(ctx)
	if err != nil {
		s.logger.Error("daily digest aborted", "error", err)
		return
	}
	if intents == nil {
		s.logger.Info("daily digest disabled, skipping")
		return
	}
	s.notifier.Dispatch(ctx, intents)
	s.logger.Info("daily digest sent", "messages", len(intents))
}

// Enabled reports whether the digest setting is exactly "on".
func (s *DigestService) Enabled(ctx context.Context) (bool, error) {
	value, ok, err := s.settings.Get(ctx, model.SettingDailyDigest)
	if err != nil {
		return false, err
	}
	return ok && value == "on", nil
}

// Today is the current calendar date in the digest location, as UTC midnight.
func (s *DigestService) Today() time.Time {
	return DateOnly(s.now().In(s.loc))
}

// BuildIntents returns the per-user and per-manager messages, or nil when the digest is off.
func (s *DigestService) BuildIntents(ctx context.Context) ([]notify.Intent, error) {
	enabled, err := s.Enabled(ctx)
	if err != nil {
		return nil, err
	}
	if !enabled {
		return nil, nil
	}

	today := s.Today()
	users, err := s.userRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	intents := make([]notify.Intent, 0, len(users))
	for _, user := range users {
		if user.TelegramID == "" {
			continue
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		summary, err := s.UserSummary(ctx, user, today)
		if err != nil {
			s.logger.Warn("user digest skipped", "user_id", user.ID, "error", err)
			continue
		}
		intents = append(intents, notify.Text(user.TelegramID, s.userText(summary)))
	}

	managers, err := s.userRepo.ListManagers(ctx)
	if err != nil {
		s.logger.Warn("manager digest skipped", "error", err)
		return intents, nil
	}
	var org *OrgSummary
	for _, manager := range managers {
		if manager.TelegramID == "" {
			continue
		}
		if org == nil {
			summary, err := s.OrgSummary(ctx, today)
			if err != nil {
				s.logger.Warn("manager digest skipped", "error", err)
				return intents, nil
			}
			org = &summary
		}
		intents = append(intents, notify.Text(manager.TelegramID, s.managerText(manager, *org)))
	}
	return intents, nil
}

// UserSummary counts the user's assignments on tasks that are not Done.
func (s *DigestService) UserSummary(ctx context.Context, user model.User, today time.Time) (UserSummary, error) {
	pending, err := s.taskRepo.CountPending(ctx, user.ID)
	if err != nil {
		return UserSummary{}, err
	}
	overdue, err := s.taskRepo.CountOverdue(ctx, user.ID, today)
	if err != nil {
		return UserSummary{}, err
	}
	return UserSummary{User: user, Pending: pending, Overdue: overdue}, nil
}

// OrgSummary counts all open assignments and averages points across users.
func (s *DigestService) OrgSummary(ctx context.Context, today time.Time) (OrgSummary, error) {
	pending, err := s.taskRepo.CountPending(ctx, "")
	if err != nil {
		return OrgSummary{}, err
	}
	overdue, err := s.taskRepo.CountOverdue(ctx, "", today)
	if err != nil {
		return OrgSummary{}, err
	}
	avg, err := s.userRepo.AveragePoints(ctx)
	if err != nil {
		return OrgSummary{}, err
	}
	return OrgSummary{Pending: pending, Overdue: overdue, AveragePoints: int(math.Round(avg))}, nil
}

func (s *DigestService) userText(summary UserSummary) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("👋 Hello, %s!\n", html.EscapeString(summary.User.Name)))
	sb.WriteString(fmt.Sprintf("📋 Pending: %d\n", summary.Pending))
	sb.WriteString(fmt.Sprintf("❌ Overdue: %d\n", summary.Overdue))
	sb.WriteString(fmt.Sprintf("💯 Points: %d", summary.User.Points))
	s.writeFooter(&sb)
	return sb.String()
}

func (s *DigestService) managerText(manager model.User, org OrgSummary) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("👋 Hello, %s!\n", html.EscapeString(manager.Name)))
	sb.WriteString(fmt.Sprintf("⏳ Pending across the team: %d\n", org.Pending))
	sb.WriteString(fmt.Sprintf("❌ Overdue: %d\n", org.Overdue))
	sb.WriteString(fmt.Sprintf("💯 Average points: %d", org.AveragePoints))
	s.writeFooter(&sb)
	return sb.String()
}

func (s *DigestService) writeFooter(sb *strings.Builder) {
	if s.projectURL != "" {
		sb.WriteString("\n\n" + s.projectURL)
	}
}
