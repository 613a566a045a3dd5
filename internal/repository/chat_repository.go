package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"team-tasks/internal/model"
)

// ChatRepository stores task chat messages.
type ChatRepository struct {
	db *gorm.DB
}

func NewChatRepository(db *gorm.DB) *ChatRepository {
	return &ChatRepository{db: db}
}

func (r *ChatRepository) Create(ctx context.Context, msg *model.ChatMessage) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return fmt.Errorf("create chat message: %w", err)
	}
	return nil
}

// ListByTask returns the task's messages oldest first; insertion order breaks timestamp ties.
func (r *ChatRepository) ListByTask(ctx context.Context, taskID string) ([]model.ChatMessage, error) {
	var messages []model.ChatMessage
	if err := r.db.WithContext(ctx).Where("task_id = ?", taskID).
		Order("sent_at ASC, rowid ASC").
		Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}
