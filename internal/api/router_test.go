package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"team-tasks/internal/notify"
	"team-tasks/internal/repository"
	"team-tasks/internal/service"
	"team-tasks/internal/upload"
)

type testEnv struct {
	handler http.Handler
	fs      afero.Fs
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := repository.NewDB(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	notifier := notify.NewDispatcher(nil, logger)
	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	chatRepo := repository.NewChatRepository(db)

	fs := afero.NewMemMapFs()
	store, err := upload.NewStore(fs, "uploads")
	require.NoError(t, err)

	handler := NewRouter(Services{
		Users:    service.NewUserService(userRepo, notifier, bcrypt.MinCost, "", logger),
		Tasks:    service.NewTaskService(taskRepo, userRepo, chatRepo, notifier, "", logger),
		Chat:     service.NewChatService(chatRepo, taskRepo, userRepo, notifier, logger),
		Settings: service.NewSettingsService(repository.NewSettingRepository(db)),
		Export:   service.NewExportService(taskRepo, userRepo),
		Files:    store,
	}, logger)
	return &testEnv{handler: handler, fs: fs}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = strings.NewReader(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) upload(t *testing.T, taskID, userID, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("user_id", userID))
	if filename != "" {
		part, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload/"+taskID, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (e *testEnv) createUser(t *testing.T, name, phone, role string) UserResponse {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/users", CreateUserRequest{Name: name, Phone: phone, Password: "pass-" + phone, Role: role})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[UserResponse](t, rec)
}

func (e *testEnv) createTask(t *testing.T, req CreateTaskRequest) TaskResponse {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/task", req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[TaskResponse](t, rec)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestUsersAPI(t *testing.T) {
	env := newTestEnv(t)
	boss := env.createUser(t, "Boss", "+998900000001", "Manager")
	assert.Equal(t, "#2563eb", boss.ThemeColor)

	t.Run("duplicate phone is a conflict", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/users", CreateUserRequest{Name: "Dup", Phone: "+998900000001", Password: "x", Role: "Employee"})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("unknown role is rejected", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/users", CreateUserRequest{Name: "X", Phone: "+1", Password: "x", Role: "Owner"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed json", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/users", "{")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, decodeBody[errorResponse](t, rec).Error, "invalid JSON body")
	})

	t.Run("list never exposes password hashes", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/users", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.NotContains(t, rec.Body.String(), "password")
		users := decodeBody[[]UserResponse](t, rec)
		require.Len(t, users, 1)
		assert.Equal(t, boss.ID, users[0].ID)
	})

	t.Run("login", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/login", LoginRequest{Phone: "+998900000001", Password: "pass-+998900000001"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, boss.ID, decodeBody[UserResponse](t, rec).ID)

		wrong := env.do(t, http.MethodPost, "/api/login", LoginRequest{Phone: "+998900000001", Password: "nope"})
		unknown := env.do(t, http.MethodPost, "/api/login", LoginRequest{Phone: "+000", Password: "nope"})
		assert.Equal(t, http.StatusUnauthorized, wrong.Code)
		assert.Equal(t, http.StatusUnauthorized, unknown.Code)
		assert.Equal(t, decodeBody[errorResponse](t, wrong).Error, decodeBody[errorResponse](t, unknown).Error)

		missing := env.do(t, http.MethodPost, "/api/login", LoginRequest{Phone: "+998900000001"})
		assert.Equal(t, http.StatusBadRequest, missing.Code)
	})

	t.Run("add worker returns a usable password", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/add-worker", AddWorkerRequest{Name: "Aziz", Phone: "+998900000002", ManagerID: boss.ID})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		worker := decodeBody[AddWorkerResponse](t, rec)
		assert.Len(t, worker.Password, 10)

		login := env.do(t, http.MethodPost, "/api/login", LoginRequest{Phone: worker.Phone, Password: worker.Password})
		require.Equal(t, http.StatusOK, login.Code)
		assert.Equal(t, "Employee", decodeBody[UserResponse](t, login).Role)
	})

	t.Run("theme", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/theme/unknown", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "#2563eb", decodeBody[ThemeResponse](t, rec).ThemeColor)

		rec = env.do(t, http.MethodPost, "/api/theme", ThemeRequest{UserID: boss.ID, Color: "#111827"})
		require.Equal(t, http.StatusOK, rec.Code)
		rec = env.do(t, http.MethodGet, "/api/theme/"+boss.ID, nil)
		assert.Equal(t, "#111827", decodeBody[ThemeResponse](t, rec).ThemeColor)

		rec = env.do(t, http.MethodPost, "/api/theme", ThemeRequest{Color: "#111827"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestTasksAPI(t *testing.T) {
	env := newTestEnv(t)
	boss := env.createUser(t, "Boss", "+998900000001", "Manager")
	alice := env.createUser(t, "Alice", "+998900000002", "Employee")
	bob := env.createUser(t, "Bob", "+998900000003", "Employee")

	t.Run("validation", func(t *testing.T) {
		cases := map[string]CreateTaskRequest{
			"bad deadline":   {Title: "x", CreatedBy: boss.ID, Deadline: "17.10.2026", Members: []string{alice.ID}},
			"no members":     {Title: "x", CreatedBy: boss.ID, Deadline: "2026-10-20"},
			"no title":       {CreatedBy: boss.ID, Deadline: "2026-10-20", Members: []string{alice.ID}},
			"bad repeat":     {Title: "x", CreatedBy: boss.ID, Deadline: "2026-10-20", RepeatType: "yearly", Members: []string{alice.ID}},
			"missing author": {Title: "x", Deadline: "2026-10-20", Members: []string{alice.ID}},
		}
		for name, req := range cases {
			t.Run(name, func(t *testing.T) {
				rec := env.do(t, http.MethodPost, "/api/task", req)
				assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			})
		}
	})

	task := env.createTask(t, CreateTaskRequest{
		Title:      "Weekly stock count",
		CreatedBy:  boss.ID,
		Deadline:   "2026-10-20",
		RepeatType: "weekly",
		Members:    []string{alice.ID, bob.ID},
	})
	assert.True(t, task.IsGroup)
	assert.Equal(t, "Pending", task.Status)
	assert.Equal(t, "2026-10-20", task.Deadline)

	t.Run("detail lists members with names", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/task/"+task.ID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		detail := decodeBody[TaskDetailResponse](t, rec)
		assert.Equal(t, task.ID, detail.Task.ID)
		require.Len(t, detail.Members, 2)
		assert.Equal(t, MemberResponse{UserID: alice.ID, Status: "pending", Name: "Alice"}, detail.Members[0])
		assert.Equal(t, "Bob", detail.Members[1].Name)
		assert.NotNil(t, detail.Chat)
		assert.Empty(t, detail.Chat)
	})

	t.Run("unknown task is 404", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/task/missing", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("member status drives completion and recurrence", func(t *testing.T) {
		path := "/api/task/" + task.ID + "/member-status"

		rec := env.do(t, http.MethodPut, path, MemberStatusRequest{UserID: alice.ID, Status: "done"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, MemberStatusResponse{OK: true}, decodeBody[MemberStatusResponse](t, rec))

		rec = env.do(t, http.MethodPut, path, MemberStatusRequest{UserID: "stranger", Status: "done"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.False(t, decodeBody[MemberStatusResponse](t, rec).TaskDone)

		rec = env.do(t, http.MethodPut, path, MemberStatusRequest{UserID: bob.ID, Status: "done"})
		require.Equal(t, http.StatusOK, rec.Code)
		result := decodeBody[MemberStatusResponse](t, rec)
		assert.True(t, result.TaskDone)
		require.NotEmpty(t, result.NextTaskID)

		rec = env.do(t, http.MethodGet, "/api/task/"+result.NextTaskID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		next := decodeBody[TaskDetailResponse](t, rec)
		assert.Equal(t, "2026-10-27", next.Task.Deadline)
		assert.Equal(t, "Pending", next.Task.Status)
		require.Len(t, next.Members, 2)
		assert.Equal(t, "pending", next.Members[0].Status)

		rec = env.do(t, http.MethodPut, path, MemberStatusRequest{UserID: bob.ID})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("list is newest first with members", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/api/tasks", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		tasks := decodeBody[[]TaskResponse](t, rec)
		require.Len(t, tasks, 2)
		assert.Equal(t, "2026-10-27", tasks[0].Deadline)
		assert.Equal(t, "Done", tasks[1].Status)
		assert.Len(t, tasks[1].Members, 2)
	})

	t.Run("delete", func(t *testing.T) {
		rec := env.do(t, http.MethodDelete, "/api/task/"+task.ID, nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, decodeBody[okResponse](t, rec).OK)

		rec = env.do(t, http.MethodGet, "/api/task/"+task.ID, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		rec = env.do(t, http.MethodDelete, "/api/task/"+task.ID, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestChatAPI(t *testing.T) {
	env := newTestEnv(t)
	boss := env.createUser(t, "Boss", "+998900000001", "Manager")
	alice := env.createUser(t, "Alice", "+998900000002", "Employee")
	task := env.createTask(t, CreateTaskRequest{Title: "Photos", CreatedBy: boss.ID, Deadline: "2026-10-20", Members: []string{alice.ID}})
	chatPath := "/api/chat/" + task.ID

	rec := env.do(t, http.MethodPost, chatPath, ChatRequest{UserID: alice.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, chatPath, ChatRequest{UserID: alice.ID, Message: "uploading now"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "uploading now", decodeBody[ChatMessageResponse](t, rec).Message)

	rec = env.upload(t, task.ID, alice.ID, "site photo.jpg", "jpeg-bytes")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	uploaded := decodeBody[ChatMessageResponse](t, rec)
	assert.Equal(t, "site photo.jpg", uploaded.FileName)
	assert.Empty(t, uploaded.Message)
	data, err := afero.ReadFile(env.fs, uploaded.FilePath)
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))

	rec = env.do(t, http.MethodGet, chatPath, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decodeBody[[]ChatMessageResponse](t, rec)
	require.Len(t, history, 2)
	assert.Equal(t, "uploading now", history[0].Message)
	assert.Equal(t, uploaded.ID, history[1].ID)

	t.Run("stored file is served back", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/"+uploaded.FilePath, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, "jpeg-bytes", rec.Body.String())
		assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))

		rec = env.do(t, http.MethodGet, "/uploads/0_missing.jpg", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("file route stays inside the upload dir", func(t *testing.T) {
		require.NoError(t, afero.WriteFile(env.fs, "secret.txt", []byte("token"), 0o600))
		for _, target := range []string{"/uploads/..%2Fsecret.txt", "/uploads/%2E%2E", "/uploads/../secret.txt"} {
			rec := env.do(t, http.MethodGet, target, nil)
			assert.Contains(t, []int{http.StatusBadRequest, http.StatusNotFound}, rec.Code, target)
			assert.NotContains(t, rec.Body.String(), "token", target)
		}
	})

	t.Run("upload without a file", func(t *testing.T) {
		rec := env.upload(t, task.ID, alice.ID, "", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("upload to an unknown task leaves no file behind", func(t *testing.T) {
		before, err := afero.ReadDir(env.fs, "uploads")
		require.NoError(t, err)

		rec := env.upload(t, "missing", alice.ID, "doc.pdf", "pdf")
		assert.Equal(t, http.StatusNotFound, rec.Code)

		after, err := afero.ReadDir(env.fs, "uploads")
		require.NoError(t, err)
		assert.Len(t, after, len(before))
	})

	t.Run("post to unknown task", func(t *testing.T) {
		rec := env.do(t, http.MethodPost, "/api/chat/missing", ChatRequest{UserID: alice.ID, Message: "hi"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestSettingsAPI(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/settings/digest", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "on", decodeBody[DigestResponse](t, rec).Value)

	rec = env.do(t, http.MethodPost, "/api/settings/digest", DigestRequest{Value: "off"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = env.do(t, http.MethodGet, "/api/settings/digest", nil)
	assert.Equal(t, "off", decodeBody[DigestResponse](t, rec).Value)

	rec = env.do(t, http.MethodPost, "/api/settings/digest", DigestRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExportAPI(t *testing.T) {
	env := newTestEnv(t)
	boss := env.createUser(t, "Boss", "+998900000001", "Manager")
	env.createTask(t, CreateTaskRequest{Title: "Audit", CreatedBy: boss.ID, Deadline: "2026-10-20", Members: []string{boss.ID}})

	rec := env.do(t, http.MethodGet, "/api/export/tasks", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), `filename="tasks.csv"`)
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasSuffix(lines[1], ",Boss"))

	rec = env.do(t, http.MethodGet, "/api/export/leaderboard", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(rec.Body.String(), "id,name,phone,role,points\n"))
	assert.Contains(t, rec.Body.String(), ",Boss,+998900000001,Manager,0")
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, statusFor(service.ErrValidation))
	assert.Equal(t, http.StatusBadRequest, statusFor(upload.ErrEmptyName))
	assert.Equal(t, http.StatusBadRequest, statusFor(upload.ErrInvalidName))
	assert.Equal(t, http.StatusNotFound, statusFor(fmt.Errorf("open x: %w", os.ErrNotExist)))
	assert.Equal(t, http.StatusUnauthorized, statusFor(service.ErrUnauthorized))
	assert.Equal(t, http.StatusNotFound, statusFor(service.ErrTaskNotFound))
	assert.Equal(t, http.StatusConflict, statusFor(service.ErrPhoneExists))
	assert.Equal(t, http.StatusInternalServerError, statusFor(io.ErrUnexpectedEOF))
}

func TestRespondJSON_LogsEncodeFailureWithHandlerLogger(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil)).With("component", "http")

	rec := httptest.NewRecorder()
	respondJSON(rec, logger, http.StatusOK, map[string]any{"bad": make(chan int)})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, logs.String(), "encode JSON response")
	assert.Contains(t, logs.String(), "component=http")
}
