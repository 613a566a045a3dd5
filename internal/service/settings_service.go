package service

import (
	"context"
	"strings"

	"team-tasks/internal/model"
	"team-tasks/internal/repository"
)

// SettingsService exposes the digest toggle.
type SettingsService struct {
	repo *repository.SettingRepository
}

func NewSettingsService(repo *repository.SettingRepository) *SettingsService {
	return &SettingsService{repo: repo}
}

// DigestValue returns the stored digest value; an unset key reads as "on".
func (s *SettingsService) DigestValue(ctx context.Context) (string, error) {
	value, ok, err := s.repo.Get(ctx, model.SettingDailyDigest)
	if err != nil {
		return "", err
	}
	if !ok {
		return "on", nil
	}
	return value, nil
}

// SetDigest stores the digest value verbatim. Only "on" enables the job.
func (s *SettingsService) SetDigest(ctx context.Context, value string) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return missing("value")
	}
	return s.repo.Set(ctx, model.SettingDailyDigest, value)
}
