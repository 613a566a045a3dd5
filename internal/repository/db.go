package repository

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"team-tasks/internal/model"
)

// NewDB opens a SQLite database, runs migrations and seeds default settings.
func NewDB(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		dsn = "team_tasks.db"
	}

	if err := ensureDirForSQLite(dsn); err != nil {
		return nil, err
	}

	dbLogger := logger.New(
		log.New(os.Stdout, "", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         dbLogger,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	if err := db.AutoMigrate(&model.User{}, &model.Task{}, &model.TaskMember{}, &model.ChatMessage{}, &model.Setting{}); err != nil {
		return nil, fmt.Errorf("migrate db: %w", err)
	}

	if err := seedSettings(db); err != nil {
		return nil, err
	}

	return db, nil
}

// seedSettings enables the daily digest on a fresh database.
func seedSettings(db *gorm.DB) error {
	var setting model.Setting
	err := db.Where(&model.Setting{Key: model.SettingDailyDigest}).First(&setting).Error
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := db.Create(&model.Setting{Key: model.SettingDailyDigest, Value: "on"}).Error; err != nil {
			return fmt.Errorf("seed settings: %w", err)
		}
		return nil
	default:
		return fmt.Errorf("read settings: %w", err)
	}
}

// ensureDirForSQLite creates parent dir for SQLite file if needed.
func ensureDirForSQLite(dsn string) error {
	// Ignore DSNs with explicit mode=memory or network.
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		return nil
	}
	// Strip file: prefix if present.
	clean := strings.TrimPrefix(dsn, "file:")
	clean = strings.Split(clean, "?")[0]
	dir := filepath.Dir(clean)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create db dir %q: %w", dir, err)
	}
	return nil
}
