package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"team-tasks/internal/model"
)

// UserRepository handles CRUD for users.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

func (r *UserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByPhone(ctx context.Context, phone string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("phone = ?", phone).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) FindByTelegramID(ctx context.Context, telegramID string) (*model.User, error) {
	var user model.User
	if err := r.db.WithContext(ctx).Where("telegram_id = ?", telegramID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByIDs returns the users with the given ids keyed by id. Unknown ids are absent from the map.
func (r *UserRepository) FindByIDs(ctx context.Context, ids []string) (map[string]model.User, error) {
	result := make(map[string]model.User, len(ids))
	if len(ids) == 0 {
		return result, nil
	}
	var users []model.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("find users: %w", err)
	}
	for _, u := range users {
		result[u.ID] = u
	}
	return result, nil
}

func (r *UserRepository) ListAll(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Order("created_at ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// ListManagers returns users with the Manager or Admin role.
func (r *UserRepository) ListManagers(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Where("role IN ?", []model.Role{model.RoleManager, model.RoleAdmin}).
		Order("created_at ASC").
		Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// Leaderboard returns all users ordered by points, highest first.
func (r *UserRepository) Leaderboard(ctx context.Context) ([]model.User, error) {
	var users []model.User
	if err := r.db.WithContext(ctx).Order("points DESC").Order("name ASC").Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// UpdateTheme stores the theme color. Unknown users are ignored.
func (r *UserRepository) UpdateTheme(ctx context.Context, id, color string) error {
	if err := r.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		Update("theme_color", color).Error; err != nil {
		return fmt.Errorf("update theme: %w", err)
	}
	return nil
}

// AveragePoints returns the mean of all users' points, or 0 when there are no users.
func (r *UserRepository) AveragePoints(ctx context.Context) (float64, error) {
	var avg float64
	if err := r.db.WithContext(ctx).Model(&model.User{}).
		Select("COALESCE(AVG(points), 0)").
		Scan(&avg).Error; err != nil {
		return 0, fmt.Errorf("average points: %w", err)
	}
	return avg, nil
}
