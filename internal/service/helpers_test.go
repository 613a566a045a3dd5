package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"team-tasks/internal/model"
	"team-tasks/internal/notify"
	"team-tasks/internal/repository"
)

type recordingNotifier struct {
	mu      sync.Mutex
	intents []notify.Intent
	batches int
}

func (n *recordingNotifier) Dispatch(_ context.Context, intents []notify.Intent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.batches++
	n.intents = append(n.intents, intents...)
}

func (n *recordingNotifier) DispatchAsync(ctx context.Context, intents []notify.Intent) {
	n.Dispatch(ctx, intents)
}

func (n *recordingNotifier) sent() []notify.Intent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notify.Intent(nil), n.intents...)
}

func (n *recordingNotifier) reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.intents = nil
	n.batches = 0
}

type fixture struct {
	db       *gorm.DB
	users    *repository.UserRepository
	tasks    *repository.TaskRepository
	chat     *repository.ChatRepository
	settings *repository.SettingRepository
	notifier *recordingNotifier
	logger   *slog.Logger
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := repository.NewDB(dsn)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	return &fixture{
		db:       db,
		users:    repository.NewUserRepository(db),
		tasks:    repository.NewTaskRepository(db),
		chat:     repository.NewChatRepository(db),
		settings: repository.NewSettingRepository(db),
		notifier: &recordingNotifier{},
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:    time.Date(2026, time.October, 17, 9, 0, 0, 0, time.UTC),
	}
}

// now returns a strictly increasing clock so creation order is observable.
func (f *fixture) now() time.Time {
	f.clock = f.clock.Add(time.Second)
	return f.clock
}

func (f *fixture) taskService() *TaskService {
	s := NewTaskService(f.tasks, f.users, f.chat, f.notifier, "https://tasks.example.com", f.logger)
	s.now = f.now
	return s
}

func (f *fixture) chatService() *ChatService {
	s := NewChatService(f.chat, f.tasks, f.users, f.notifier, f.logger)
	s.now = f.now
	return s
}

func (f *fixture) userService() *UserService {
	return NewUserService(f.users, f.notifier, bcrypt.MinCost, "https://tasks.example.com", f.logger)
}

func (f *fixture) addUser(t *testing.T, name string, role model.Role, telegramID string) model.User {
	t.Helper()
	user := model.User{
		Name:       name,
		Phone:      "+998" + uuid.NewString()[:8],
		Role:       role,
		TelegramID: telegramID,
		ThemeColor: model.DefaultThemeColor,
	}
	require.NoError(t, f.users.Create(context.Background(), &user))
	return user
}

func (f *fixture) setPoints(t *testing.T, userID string, points int) {
	t.Helper()
	require.NoError(t, f.db.Model(&model.User{}).Where("id = ?", userID).Update("points", points).Error)
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
