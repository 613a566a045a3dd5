package model

import "time"

// ChatMessage is an append-only message in a task's thread.
// Message may be empty when a file is attached.
type ChatMessage struct {
	ID       string `gorm:"primaryKey"`
	TaskID   string `gorm:"index"`
	SenderID string
	Message  string
	FilePath string
	FileName string
	SentAt   time.Time `gorm:"index"`
}

// HasFile reports whether the message carries an attachment.
func (m ChatMessage) HasFile() bool {
	return m.FilePath != ""
}
