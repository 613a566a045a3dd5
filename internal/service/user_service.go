package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"math/big"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"team-tasks/internal/model"
	"team-tasks/internal/notify"
	"team-tasks/internal/repository"
)

// RegisterInput is a full user registration.
type RegisterInput struct {
	Name       string     `validate:"required"`
	Phone      string     `validate:"required"`
	Password   string     `validate:"required,max=72"`
	Role       model.Role `validate:"required,oneof=Employee Manager Admin"`
	TelegramID string
}

// WorkerInput is a manager adding an employee by phone.
type WorkerInput struct {
	Name       string `validate:"required"`
	Phone      string `validate:"required"`
	TelegramID string
	ManagerID  string
}

// UserService manages accounts, credentials and UI preferences.
type UserService struct {
	userRepo   *repository.UserRepository
	notifier   Notifier
	bcryptCost int
	projectURL string
	logger     *slog.Logger
}

func NewUserService(userRepo *repository.UserRepository, notifier Notifier, bcryptCost int, projectURL string, logger *slog.Logger) *UserService {
	if bcryptCost < bcrypt.MinCost {
		bcryptCost = bcrypt.DefaultCost
	}
	return &UserService{
		userRepo:   userRepo,
		notifier:   notifier,
		bcryptCost: bcryptCost,
		projectURL: projectURL,
		logger:     logger.With("component", "user_service"),
	}
}

// Register creates a user with a hashed password.
func (s *UserService) Register(ctx context.Context, input RegisterInput) (*model.User, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Phone = strings.TrimSpace(input.Phone)
	if err := validateInput(input); err != nil {
		return nil, err
	}
	return s.create(ctx, input.Name, input.Phone, input.Password, input.Role, input.TelegramID)
}

// AddWorker creates an Employee with a generated password. The plaintext password is
// returned once and, when the worker has a Telegram handle, sent to them.
func (s *UserService) AddWorker(ctx context.Context, input WorkerInput) (*model.User, string, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Phone = strings.TrimSpace(input.Phone)
	if err := validateInput(input); err != nil {
		return nil, "", err
	}
	password, err := generatePassword()
	if err != nil {
		return nil, "", fmt.Errorf("generate password: %w", err)
	}
	user, err := s.create(ctx, input.Name, input.Phone, password, model.RoleEmployee, input.TelegramID)
	if err != nil {
		return nil, "", err
	}
	s.logger.Info("worker added", "user_id", user.ID, "manager_id", input.ManagerID)

	if user.TelegramID != "" {
		s.notifier.DispatchAsync(ctx, []notify.Intent{notify.Text(user.TelegramID, s.welcomeText(*user, password))})
	}
	return user, password, nil
}

func (s *UserService) create(ctx context.Context, name, phone, password string, role model.Role, telegramID string) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := model.User{
		Name:         name,
		Phone:        phone,
		PasswordHash: string(hash),
		Role:         role,
		TelegramID:   strings.TrimSpace(telegramID),
		ThemeColor:   model.DefaultThemeColor,
	}
	if err := s.userRepo.Create(ctx, &user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, ErrPhoneExists
		}
		return nil, err
	}
	return &user, nil
}

func (s *UserService) welcomeText(user model.User, password string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Hello, %s!\nYou have been added to the team workspace.\n", html.EscapeString(user.Name)))
	sb.WriteString(fmt.Sprintf("Login: %s\nPassword: %s", html.EscapeString(user.Phone), html.EscapeString(password)))
	if s.projectURL != "" {
		sb.WriteString("\nOpen: " + s.projectURL)
	}
	return sb.String()
}

// Login checks the phone and password. Unknown phones and wrong passwords both yield ErrUnauthorized.
func (s *UserService) Login(ctx context.Context, phone, password string) (*model.User, error) {
	if phone == "" || password == "" {
		return nil, fmt.Errorf("%w: phone and password are required", ErrValidation)
	}
	user, err := s.userRepo.FindByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrUnauthorized
	}
	return user, nil
}

func (s *UserService) ListUsers(ctx context.Context) ([]model.User, error) {
	return s.userRepo.ListAll(ctx)
}

func (s *UserService) GetUser(ctx context.Context, id string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return user, nil
}

// FindByTelegramID resolves the user linked to a Telegram chat.
func (s *UserService) FindByTelegramID(ctx context.Context, telegramID string) (*model.User, error) {
	user, err := s.userRepo.FindByTelegramID(ctx, telegramID)
	if err != nil {
		return nil, notFound(err, ErrUserNotFound)
	}
	return user, nil
}

func (s *UserService) SetTheme(ctx context.Context, userID, color string) error {
	if userID == "" {
		return missing("user id")
	}
	return s.userRepo.UpdateTheme(ctx, userID, color)
}

// GetTheme returns the user's theme color, falling back to the default for unknown users.
func (s *UserService) GetTheme(ctx context.Context, userID string) (string, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return model.DefaultThemeColor, nil
		}
		return "", err
	}
	if user.ThemeColor == "" {
		return model.DefaultThemeColor, nil
	}
	return user.ThemeColor, nil
}

const passwordAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// generatePassword returns eight base36 characters followed by a two-digit number.
func generatePassword() (string, error) {
	var sb strings.Builder
	for i := 0; i < 8; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(passwordAlphabet))))
		if err != nil {
			return "", err
		}
		sb.WriteByte(passwordAlphabet[n.Int64()])
	}
	suffix, err := rand.Int(rand.Reader, big.NewInt(90))
	if err != nil {
		return "", err
	}
	sb.WriteString(fmt.Sprintf("%d", suffix.Int64()+10))
	return sb.String(), nil
}
