package model

import "time"

// Role is the organizational role of a user.
type Role string

const (
	RoleEmployee Role = "Employee"
	RoleManager  Role = "Manager"
	RoleAdmin    Role = "Admin"
)

// DefaultThemeColor is applied to users that never picked a theme.
const DefaultThemeColor = "#2563eb"

// User is a member of the organization. TelegramID is the chat handle used for notifications.
type User struct {
	ID           string `gorm:"primaryKey"`
	Name         string
	Phone        string `gorm:"uniqueIndex"`
	PasswordHash string
	Role         Role   `gorm:"index"`
	TelegramID   string `gorm:"index"`
	Points       int    `gorm:"default:0"`
	ThemeColor   string `gorm:"default:#2563eb"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsManager reports whether the user receives the organization-wide digest.
func (u User) IsManager() bool {
	return u.Role == RoleManager || u.Role == RoleAdmin
}
