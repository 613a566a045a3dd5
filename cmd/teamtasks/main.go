package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"team-tasks/internal/api"
	"team-tasks/internal/bot"
	"team-tasks/internal/config"
	"team-tasks/internal/logging"
	"team-tasks/internal/notify"
	"team-tasks/internal/repository"
	"team-tasks/internal/service"
	"team-tasks/internal/upload"
)

const (
	digestTimeout   = 2 * time.Minute
	shutdownTimeout = 10 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := repository.NewDB(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	sqlDB, err := db.DB()
	if err == nil {
		defer sqlDB.Close()
	}

	files, err := upload.NewOsStore(cfg.UploadDir)
	if err != nil {
		log.Fatalf("uploads: %v", err)
	}
	logger.Info("upload store ready", "dir", files.Dir())

	var (
		botAPI *tgbotapi.BotAPI
		sender notify.Sender
	)
	if cfg.TelegramEnabled() {
		botAPI, err = tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			log.Fatalf("telegram: %v", err)
		}
		sender = notify.NewTelegramSender(botAPI)
	} else {
		logger.Warn("TELEGRAM_TOKEN is empty, notifications and the bot are disabled")
	}
	dispatcher := notify.NewDispatcher(sender, logger)

	userRepo := repository.NewUserRepository(db)
	taskRepo := repository.NewTaskRepository(db)
	chatRepo := repository.NewChatRepository(db)
	settingRepo := repository.NewSettingRepository(db)

	userSvc := service.NewUserService(userRepo, dispatcher, cfg.BcryptCost, cfg.ProjectURL, logger)
	taskSvc := service.NewTaskService(taskRepo, userRepo, chatRepo, dispatcher, cfg.ProjectURL, logger)
	chatSvc := service.NewChatService(chatRepo, taskRepo, userRepo, dispatcher, logger)
	settingsSvc := service.NewSettingsService(settingRepo)
	exportSvc := service.NewExportService(taskRepo, userRepo)
	digestSvc := service.NewDigestService(settingRepo, userRepo, taskRepo, dispatcher, loc, cfg.ProjectURL, logger)

	scheduler := service.NewSchedulerService(loc, logger)
	entryID, err := scheduler.ScheduleDaily("daily_digest", cfg.DigestTime, digestTimeout, digestSvc.Run)
	if err != nil {
		log.Fatalf("schedule digest: %v", err)
	}
	scheduler.Start()
	defer scheduler.Stop()
	logger.Info("daily digest scheduled", "at", cfg.DigestTime, "timezone", loc.String(), "next", scheduler.Next(entryID))

	server := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: api.NewRouter(api.Services{
			Users:    userSvc,
			Tasks:    taskSvc,
			Chat:     chatSvc,
			Settings: settingsSvc,
			Export:   exportSvc,
			Files:    files,
		}, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	if botAPI != nil {
		telegramBot := bot.New(botAPI, userSvc, taskSvc, loc, logger)
		go func() {
			if err := telegramBot.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("bot stopped with error", "error", err)
			}
		}()
	}

	logger.Info("team tasks service started")
	select {
	case <-ctx.Done():
	case err := <-serverErr:
		logger.Error("http server failed", "error", err)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	logger.Info("shutdown complete")
}
