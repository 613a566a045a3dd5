package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"team-tasks/internal/service"
)

// Services are the dependencies the HTTP layer dispatches to.
type Services struct {
	Users    *service.UserService
	Tasks    *service.TaskService
	Chat     *service.ChatService
	Settings *service.SettingsService
	Export   *service.ExportService
	Files    FileStore
}

// NewRouter builds the chi router with every API route and /health.
func NewRouter(svc Services, logger *slog.Logger) http.Handler {
	logger = logger.With("component", "http")

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	users := NewUserHandler(svc.Users, logger)
	tasks := NewTaskHandler(svc.Tasks, logger)
	chat := NewChatHandler(svc.Chat, svc.Files, logger)
	settings := NewSettingsHandler(svc.Settings, logger)
	export := NewExportHandler(svc.Export, logger)

	r.Route("/api", func(r chi.Router) {
		r.Post("/login", users.Login)
		r.Get("/users", users.List)
		r.Post("/users", users.Create)
		r.Post("/add-worker", users.AddWorker)

		r.Post("/task", tasks.Create)
		r.Get("/tasks", tasks.List)
		r.Get("/task/{id}", tasks.Get)
		r.Delete("/task/{id}", tasks.Delete)
		r.Put("/task/{id}/member-status", tasks.MemberStatus)

		r.Post("/upload/{taskID}", chat.Upload)
		r.Get("/chat/{taskID}", chat.History)
		r.Post("/chat/{taskID}", chat.Post)

		r.Post("/theme", users.SetTheme)
		r.Get("/theme/{userID}", users.GetTheme)

		r.Get("/settings/digest", settings.GetDigest)
		r.Post("/settings/digest", settings.SetDigest)

		r.Get("/export/tasks", export.Tasks)
		r.Get("/export/leaderboard", export.Leaderboard)
	})

	r.Get("/uploads/{name}", chat.File)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			logger.Error("write health check response", "error", err)
		}
	})

	return r
}

func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()))
		})
	}
}
